package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table renders rows of cells in aligned columns under a highlighted header
type Table struct {
	w       io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{w: w, headers: headers, noColor: noColor}
}

// AddRow appends a row. Missing cells render empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], width(cell))
		}
	}

	head := paint(t.noColor, color.Bold, color.FgCyan)
	rule := paint(t.noColor, color.FgHiBlack)

	cells := make([]string, len(t.headers))
	for i, h := range t.headers {
		cells[i] = head.Sprint(pad(h, widths[i]))
	}
	t.line(cells)

	for i, w := range widths {
		cells[i] = rule.Sprint(strings.Repeat("─", w))
	}
	t.line(cells)

	for _, row := range t.rows {
		for i, cell := range row {
			cells[i] = pad(cell, widths[i])
		}
		t.line(cells)
	}
}

func (t *Table) line(cells []string) {
	fmt.Fprintln(t.w, strings.TrimRight(strings.Join(cells, "  "), " "))
}

// Properties renders aligned "key: value" lines
type Properties struct {
	w       io.Writer
	keys    []string
	values  []string
	noColor bool
}

// NewProperties creates an empty property list
func NewProperties(w io.Writer, noColor bool) *Properties {
	return &Properties{w: w, noColor: noColor}
}

// Add appends a property
func (p *Properties) Add(key, value string) {
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
}

// AddOptional appends a property, rendering absent values as a dash
func (p *Properties) AddOptional(key, value string, ok bool) {
	if !ok {
		value = "-"
	}
	p.Add(key, value)
}

// Render writes the properties
func (p *Properties) Render() {
	keyWidth := 0
	for _, k := range p.keys {
		keyWidth = max(keyWidth, width(k)+1)
	}

	label := paint(p.noColor, color.FgCyan)
	for i, k := range p.keys {
		fmt.Fprintf(p.w, "%s %s\n", label.Sprint(pad(k+":", keyWidth)), p.values[i])
	}
}

// Header writes a title underlined to its own width
func Header(w io.Writer, title string, noColor bool) {
	paint(noColor, color.Bold, color.FgCyan).Fprintln(w, title)
	paint(noColor, color.FgHiBlack).Fprintln(w, strings.Repeat("─", width(title)))
}

func paint(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}

func width(s string) int {
	return utf8.RuneCountInString(s)
}

func pad(s string, n int) string {
	if w := width(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s
}
