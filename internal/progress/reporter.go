// Package progress reports how many rows of a data file have been imported.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives row counts while a data file is imported.
type Reporter interface {
	Start(fileName string)
	Update(rows int)
	Finish(rows int)
}

// NewReporter returns a CIReporter when the CI environment variable is set
// and a TerminalReporter otherwise. Both write to w.
func NewReporter(w io.Writer) Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{w: w}
	}
	return &TerminalReporter{w: w}
}

// TerminalReporter shows a spinner with the number of rows written.
type TerminalReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(fileName string) {
	// The row count of a file is unknown until it has been read.
	r.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription("Importing "+fileName),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(rows int) {
	if r.bar != nil {
		_ = r.bar.Set(rows)
	}
}

func (r *TerminalReporter) Finish(rows int) {
	if r.bar != nil {
		_ = r.bar.Set(rows)
		_ = r.bar.Finish()
	}
}

// CIReporter prints one line per update, for logs.
type CIReporter struct {
	w    io.Writer
	name string
}

func (r *CIReporter) Start(fileName string) {
	r.name = fileName
	fmt.Fprintf(r.w, "Importing %s\n", fileName)
}

func (r *CIReporter) Update(rows int) {
	fmt.Fprintf(r.w, "[%s] %d rows\n", r.name, rows)
}

func (r *CIReporter) Finish(rows int) {
	fmt.Fprintf(r.w, "Imported %d rows from %s\n", rows, r.name)
}
