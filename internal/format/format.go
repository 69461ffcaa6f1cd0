// Package format renders bisection traces as terminal or Markdown tables.
package format

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"bisection/internal/solver"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps a flag value to a Mode. Unknown values fall back to ASCII.
func ParseMode(s string) Mode {
	switch s {
	case "md", "markdown":
		return Markdown
	default:
		return ASCII
	}
}

// TableBuilder wraps a go-pretty writer; build once, render in the Mode set at creation.
type TableBuilder struct {
	writer table.Writer
	mode   Mode
}

// NewTable returns a TableBuilder that renders in the given Mode.
func NewTable(m Mode) *TableBuilder {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &TableBuilder{writer: w, mode: m}
}

// Header sets the column headers.
func (b *TableBuilder) Header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	b.writer.AppendHeader(row)
}

// Row appends a data row.
func (b *TableBuilder) Row(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	b.writer.AppendRow(row)
}

// AlignRight right-aligns the given 1-based columns.
func (b *TableBuilder) AlignRight(cols ...int) {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c, Align: text.AlignRight}
	}
	b.writer.SetColumnConfigs(cfgs)
}

func (b *TableBuilder) String() string {
	if b.mode == Markdown {
		return b.writer.RenderMarkdown()
	}
	return b.writer.Render()
}

// Root formats a root estimate the way the result line shows it.
func Root(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// Error formats a relative error in scientific notation.
func Error(v float64) string { return strconv.FormatFloat(v, 'e', 10, 64) }

// Headline is the one-line outcome: "Root ≈ 1.414214 (iterations: 20)".
func Headline(res solver.Result) string {
	return fmt.Sprintf("Root ≈ %s (iterations: %d)", Root(res.Root), res.Iterations)
}

// Trace renders the per-iteration table: Iteration | xm | Error.
func Trace(res solver.Result, m Mode) string {
	t := NewTable(m)
	t.Header("Iteration", "xm", "Error")
	t.AlignRight(1, 2, 3)
	for _, it := range res.Trace {
		t.Row(it.K, Root(it.XM), Error(it.Err))
	}
	return t.String()
}
