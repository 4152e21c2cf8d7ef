package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupported is returned for file formats that cannot be read.
var ErrUnsupported = errors.New("unsupported file format")

// Reader yields the rows of a data file after its header row.
type Reader interface {
	// Columns returns the header names.
	Columns() []string
	// Next returns the next row, padded or truncated to len(Columns()).
	// It returns io.EOF after the last row.
	Next() ([]string, error)
	Close() error
}

// ErrNoColumns is returned for a file whose header row names no columns.
var ErrNoColumns = errors.New("file has no columns")

// NewReader picks a reader from the content type Dataverse served the file
// with, falling back to the file name extension.
func NewReader(r io.Reader, contentType, fileName string) (Reader, error) {
	open, err := opener(contentType, fileName)
	if err != nil {
		return nil, err
	}
	rd, err := open(r)
	if err != nil {
		return nil, err
	}
	if blank(rd.Columns()) {
		rd.Close()
		return nil, ErrNoColumns
	}
	return rd, nil
}

func opener(contentType, fileName string) (func(io.Reader) (Reader, error), error) {
	ct := strings.ToLower(contentType)
	ext := strings.ToLower(path.Ext(fileName))
	switch {
	case strings.HasPrefix(ct, "text/tab-separated-values"), ext == ".tab", ext == ".tsv":
		return func(r io.Reader) (Reader, error) { return newCSVReader(r, '\t') }, nil
	case strings.HasPrefix(ct, "text/comma-separated-values"), strings.HasPrefix(ct, "text/csv"), ext == ".csv":
		return func(r io.Reader) (Reader, error) { return newCSVReader(r, ',') }, nil
	case strings.HasPrefix(ct, "text/semicolon-separated-values"):
		return func(r io.Reader) (Reader, error) { return newCSVReader(r, ';') }, nil
	// application/xls is a prefix of application/xlsx.
	case strings.HasPrefix(ct, "application/xlsx"),
		strings.HasPrefix(ct, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
		ext == ".xlsx":
		return newExcelReader, nil
	case strings.HasPrefix(ct, "application/xls"),
		strings.HasPrefix(ct, "application/vnd.ms-excel"),
		ext == ".xls":
		return newXLSReader, nil
	case strings.HasPrefix(ct, "application/ods"),
		strings.HasPrefix(ct, "application/vnd.oasis.opendocument.spreadsheet"),
		ext == ".ods":
		return newODSReader, nil
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupported, contentType, fileName)
}

// Analyze infers column types from up to sampleRows rows of r.
func Analyze(r Reader, sampleRows int) ([]Column, error) {
	names := r.Columns()
	samples := make([][]string, len(names))
	for n := 0; n < sampleRows; n++ {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, v := range row {
			samples[i] = append(samples[i], v)
		}
	}

	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, Type: InferType(samples[i])}
	}
	return cols, nil
}

func fit(row []string, n int) []string {
	if len(row) >= n {
		return row[:n]
	}
	out := make([]string, n)
	copy(out, row)
	return out
}

type csvReader struct {
	r       *csv.Reader
	columns []string
}

func newCSVReader(r io.Reader, comma rune) (Reader, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("file has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return &csvReader{r: cr, columns: header}, nil
}

func (c *csvReader) Columns() []string { return c.columns }

func (c *csvReader) Next() ([]string, error) {
	rec, err := c.r.Read()
	if err != nil {
		return nil, err
	}
	return fit(rec, len(c.columns)), nil
}

func (c *csvReader) Close() error { return nil }

// excelReader reads the first sheet of a workbook.
type excelReader struct {
	f       *excelize.File
	rows    *excelize.Rows
	columns []string
}

func newExcelReader(r io.Reader) (Reader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}

	er := &excelReader{f: f, rows: rows}
	if !rows.Next() {
		er.Close()
		return nil, errors.New("file has no header row")
	}
	if er.columns, err = rows.Columns(); err != nil {
		er.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}
	return er, nil
}

func (e *excelReader) Columns() []string { return e.columns }

func (e *excelReader) Next() ([]string, error) {
	for e.rows.Next() {
		cells, err := e.rows.Columns()
		if err != nil {
			return nil, err
		}
		if blank(cells) {
			continue
		}
		return fit(cells, len(e.columns)), nil
	}
	if err := e.rows.Error(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (e *excelReader) Close() error {
	e.rows.Close()
	return e.f.Close()
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
