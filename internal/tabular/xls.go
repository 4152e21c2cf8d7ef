package tabular

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/extrame/xls"
)

// xlsMaxColumns is the column limit of a BIFF8 worksheet.
const xlsMaxColumns = 256

// xlsReader reads the first sheet of a legacy Excel workbook.
type xlsReader struct {
	sheet   *xls.WorkSheet
	columns []string
	next    int
}

func newXLSReader(r io.Reader) (Reader, error) {
	// The OLE2 container is read by seeking.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading workbook: %w", err)
	}

	var sheet *xls.WorkSheet
	err = catch(func() error {
		wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return err
		}
		if wb == nil {
			return errors.New("no workbook stream")
		}
		if wb.NumSheets() == 0 {
			return errors.New("workbook has no sheets")
		}
		sheet = wb.GetSheet(0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}

	x := &xlsReader{sheet: sheet, next: 1}
	header, ok, err := x.row(0, xlsMaxColumns)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if !ok {
		return nil, errors.New("file has no header row")
	}
	end := len(header)
	for end > 0 && header[end-1] == "" {
		end--
	}
	x.columns = header[:end]
	return x, nil
}

func (x *xlsReader) Columns() []string { return x.columns }

func (x *xlsReader) Next() ([]string, error) {
	for x.next <= int(x.sheet.MaxRow) {
		i := x.next
		x.next++
		cells, ok, err := x.row(i, len(x.columns))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if !ok || blank(cells) {
			continue
		}
		return cells, nil
	}
	return nil, io.EOF
}

func (x *xlsReader) Close() error { return nil }

// row returns the first n cells of row i. ok is false for a row the sheet
// does not contain.
func (x *xlsReader) row(i, n int) (cells []string, ok bool, err error) {
	var row *xls.Row
	// Row panics for a row the sheet does not contain.
	if catch(func() error { row = x.sheet.Row(i); return nil }) != nil {
		return nil, false, nil
	}
	err = catch(func() error {
		cells = make([]string, n)
		for c := range cells {
			cells[c] = row.Col(c)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return cells, true, nil
}

// catch runs fn, turning a panic in the xls package into an error.
func catch(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = fmt.Errorf("malformed workbook: %w", rerr)
				return
			}
			err = fmt.Errorf("malformed workbook: %v", r)
		}
	}()
	return fn()
}
