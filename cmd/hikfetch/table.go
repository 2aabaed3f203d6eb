package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one listing column. Numeric columns are right aligned on
// a terminal.
type column struct {
	title   string
	numeric bool
}

// listing collects rows for jobs and archive output. Terminals get a rounded
// table; pipes get tab separated values with the same header row.
type listing struct {
	columns []column
	rows    []table.Row
}

func newListing(columns ...column) *listing {
	return &listing{columns: columns}
}

func (l *listing) add(cells ...any) {
	row := make(table.Row, len(l.columns))
	copy(row, cells)
	l.rows = append(l.rows, row)
}

func (l *listing) render(tty bool) string {
	tw := table.NewWriter()
	header := make(table.Row, len(l.columns))
	configs := make([]table.ColumnConfig, len(l.columns))
	for i, col := range l.columns {
		header[i] = col.title
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if col.numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(header)
	tw.AppendRows(l.rows)
	if !tty {
		return tw.RenderTSV()
	}
	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func (l *listing) write(w io.Writer) {
	fmt.Fprintln(w, l.render(isTerminal(w)))
}
