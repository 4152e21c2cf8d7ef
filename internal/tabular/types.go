// Package tabular reads Dataverse data files (CSV, TSV, XLSX, XLS and ODS)
// row by row and infers SQL column types from their values.
package tabular

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ColumnType is the SQL type chosen for a column.
type ColumnType int

const (
	Boolean ColumnType = iota
	Integer
	Floating
	Date
	Time
	DateTime
	Text
)

// inferenceOrder is the order in which types are tried; the first type
// accepting every non-empty value wins.
var inferenceOrder = []ColumnType{Boolean, Integer, Floating, Date, Time, DateTime, Text}

const (
	dateLayout     = "2006-1-2"
	timeLayout     = "15:04:05"
	dateTimeLayout = "2006-1-2 15:04:05.999999999"
)

func (t ColumnType) String() string {
	switch t {
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Floating:
		return "floating"
	case Date:
		return "date"
	case Time:
		return "time"
	case DateTime:
		return "datetime"
	case Text:
		return "text"
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// SQLType returns the column type used in CREATE TABLE.
func (t ColumnType) SQLType() string {
	switch t {
	case Boolean:
		return "BOOLEAN"
	case Integer:
		return "BIGINT"
	case Floating:
		return "FLOAT"
	case Date:
		return "DATE"
	case Time:
		return "TIME"
	case DateTime:
		return "TIMESTAMP"
	}
	return "TEXT"
}

// Parse converts v to the value stored for a column of type t. Blank values
// become nil (SQL NULL) except in text columns.
func (t ColumnType) Parse(v string) (any, error) {
	if t == Text {
		return v, nil
	}
	s := strings.TrimSpace(v)
	if s == "" {
		return nil, nil
	}
	switch t {
	case Boolean:
		switch strings.ToLower(s) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", v)
	case Integer:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", v)
		}
		return n, nil
	case Floating:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", v)
		}
		return f, nil
	case Date:
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", v)
		}
		return d.Format("2006-01-02"), nil
	case Time:
		d, err := time.Parse(timeLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid time %q", v)
		}
		return d.Format(timeLayout), nil
	case DateTime:
		d, err := time.Parse(dateTimeLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q", v)
		}
		return d.Format("2006-01-02 15:04:05.999999999"), nil
	}
	return nil, fmt.Errorf("unknown column type %d", int(t))
}

// accepts reports whether v is a non-blank value of type t.
func (t ColumnType) accepts(v string) bool {
	if strings.TrimSpace(v) == "" {
		return false
	}
	_, err := t.Parse(v)
	return err == nil
}

// InferType returns the narrowest type accepting every non-empty value.
// A column with no values at all is Boolean.
func InferType(values []string) ColumnType {
	for _, t := range inferenceOrder {
		ok := true
		for _, v := range values {
			if v != "" && !t.accepts(v) {
				ok = false
				break
			}
		}
		if ok {
			return t
		}
	}
	return Text
}

// Column is a named, typed column of a data file.
type Column struct {
	Name string
	Type ColumnType
}
