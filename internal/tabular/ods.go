package tabular

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	nsOffice = "urn:oasis:names:tc:opendocument:xmlns:office:1.0"
	nsTable  = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	nsText   = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"

	// odsMaxColumns caps repeated trailing cells, which spreadsheets write
	// out to the last column of the sheet.
	odsMaxColumns = 16384
)

// odsReader streams the first table of an OpenDocument spreadsheet.
type odsReader struct {
	content io.ReadCloser
	dec     *xml.Decoder
	columns []string

	// pending holds a repeated row still to be returned.
	pending []string
	repeat  int
	done    bool
}

func newODSReader(r io.Reader) (Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading spreadsheet: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet: %w", err)
	}
	content, err := zr.Open("content.xml")
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet: %w", err)
	}

	o := &odsReader{content: content, dec: xml.NewDecoder(content)}
	if err := o.seekTable(); err != nil {
		o.Close()
		return nil, err
	}
	header, err := o.Next()
	if err == io.EOF {
		o.Close()
		return nil, errors.New("file has no header row")
	}
	if err != nil {
		o.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}
	end := len(header)
	for end > 0 && header[end-1] == "" {
		end--
	}
	o.columns = header[:end]
	o.pending, o.repeat = nil, 0
	return o, nil
}

func (o *odsReader) Columns() []string { return o.columns }

func (o *odsReader) Next() ([]string, error) {
	for {
		if o.repeat > 0 {
			o.repeat--
			return o.fit(o.pending), nil
		}
		if o.done {
			return nil, io.EOF
		}
		cells, repeat, err := o.readRow()
		if err != nil {
			return nil, err
		}
		if cells == nil {
			continue
		}
		o.pending, o.repeat = cells, repeat
	}
}

func (o *odsReader) Close() error { return o.content.Close() }

func (o *odsReader) fit(cells []string) []string {
	if o.columns == nil {
		return cells
	}
	return fit(cells, len(o.columns))
}

// seekTable advances to the first table:table element.
func (o *odsReader) seekTable() error {
	for {
		tok, err := o.dec.Token()
		if err == io.EOF {
			return errors.New("spreadsheet has no tables")
		}
		if err != nil {
			return fmt.Errorf("reading content.xml: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Space == nsTable && se.Name.Local == "table" {
			return nil
		}
	}
}

// readRow reads up to the next table:table-row and returns its cells and
// repeat count. Blank rows come back as nil cells.
func (o *odsReader) readRow() ([]string, int, error) {
	for {
		tok, err := o.dec.Token()
		if err != nil {
			return nil, 0, fmt.Errorf("reading content.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsTable {
				continue
			}
			switch t.Name.Local {
			case "table-row":
				cells, err := o.readCells()
				if err != nil {
					return nil, 0, err
				}
				if blank(cells) {
					return nil, 0, nil
				}
				return cells, repeated(t, "number-rows-repeated"), nil
			case "table-header-rows", "table-rows", "table-row-group", "table-header-columns", "table-columns", "table-column-group":
				// Rows nest inside these; descend.
			default:
				if err := o.dec.Skip(); err != nil {
					return nil, 0, err
				}
			}
		case xml.EndElement:
			if t.Name.Space == nsTable && t.Name.Local == "table" {
				o.done = true
				return nil, 0, nil
			}
		}
	}
}

// readCells reads the cells of the current row up to its end element.
// Empty cells are only materialized when a later cell has a value.
func (o *odsReader) readCells() ([]string, error) {
	var cells []string
	empty := 0
	for {
		tok, err := o.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading content.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsTable || (t.Name.Local != "table-cell" && t.Name.Local != "covered-table-cell") {
				if err := o.dec.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			value, err := o.cellValue(t)
			if err != nil {
				return nil, err
			}
			n := repeated(t, "number-columns-repeated")
			if value == "" {
				empty += n
				continue
			}
			for ; empty > 0 && len(cells) < odsMaxColumns; empty-- {
				cells = append(cells, "")
			}
			empty = 0
			for ; n > 0 && len(cells) < odsMaxColumns; n-- {
				cells = append(cells, value)
			}
		case xml.EndElement:
			return cells, nil
		}
	}
}

// cellValue returns the text of a cell, preferring its typed value
// attributes, and consumes the cell's end element.
func (o *odsReader) cellValue(se xml.StartElement) (string, error) {
	text, err := o.cellText()
	if err != nil {
		return "", err
	}
	switch attr(se, nsOffice, "value-type") {
	case "float", "percentage", "currency":
		if v := attr(se, nsOffice, "value"); v != "" {
			return v, nil
		}
	case "date":
		if v := attr(se, nsOffice, "date-value"); v != "" {
			return strings.Replace(v, "T", " ", 1), nil
		}
	case "time":
		if v := attr(se, nsOffice, "time-value"); v != "" {
			return odsDuration(v), nil
		}
	case "boolean":
		if v := attr(se, nsOffice, "boolean-value"); v != "" {
			return v, nil
		}
	}
	return text, nil
}

// cellText joins the text:p paragraphs of a cell with newlines.
func (o *odsReader) cellText() (string, error) {
	var (
		b     strings.Builder
		paras int
		depth int
	)
	for {
		tok, err := o.dec.Token()
		if err != nil {
			return "", fmt.Errorf("reading content.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsOffice && t.Name.Local == "annotation":
				if err := o.dec.Skip(); err != nil {
					return "", err
				}
				continue
			case t.Name.Space != nsText:
			case t.Name.Local == "p" && depth == 0:
				if paras > 0 {
					b.WriteByte('\n')
				}
				paras++
			case t.Name.Local == "s":
				b.WriteString(strings.Repeat(" ", max(1, intAttr(t, nsText, "c"))))
			case t.Name.Local == "tab":
				b.WriteByte('\t')
			case t.Name.Local == "line-break":
				b.WriteByte('\n')
			}
			depth++
		case xml.CharData:
			if depth > 0 {
				b.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		}
	}
}

// odsDuration turns an ISO 8601 duration such as PT13H05M00S into 13:05:00.
func odsDuration(v string) string {
	rest, ok := strings.CutPrefix(v, "PT")
	if !ok {
		return v
	}
	var parts [3]string
	for i, unit := range []string{"H", "M", "S"} {
		before, after, found := strings.Cut(rest, unit)
		if !found {
			return v
		}
		parts[i], rest = before, after
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	s, _ := strconv.ParseFloat(parts[2], 64)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

func repeated(se xml.StartElement, name string) int {
	return max(1, intAttr(se, nsTable, name))
}

func intAttr(se xml.StartElement, space, local string) int {
	n, err := strconv.Atoi(attr(se, space, local))
	if err != nil {
		return 0
	}
	return n
}

func attr(se xml.StartElement, space, local string) string {
	for _, a := range se.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
