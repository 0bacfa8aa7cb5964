package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// table writes columns padded by display width, so modifier glyphs and
// wide characters line up.
type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths() []int {
	w := make([]int, len(t.header))
	for _, row := range append([][]string{t.header}, t.rows...) {
		for i, cell := range row {
			if i < len(w) {
				w[i] = max(w[i], runewidth.StringWidth(cell))
			}
		}
	}
	return w
}

func (t *table) write(out io.Writer) error {
	widths := t.widths()
	for _, row := range append([][]string{t.header}, t.rows...) {
		var sb strings.Builder
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		if _, err := fmt.Fprintln(out, strings.TrimRight(sb.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

// truncate shortens s to at most width display columns.
func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
