package timeseries

import (
	"fmt"
	"math"
	"time"
)

// Table is a dense date-indexed table of float columns: one row per
// trading date, one column per ticker. Dates are strictly increasing
// and every retained row has a value for every column. Tables are
// treated as immutable once built; mutating helpers operate on copies
// obtained via Copy.
type Table struct {
	dates []time.Time
	order []string
	cols  map[string][]float64
}

// New creates a table from a date index and named columns. Every
// column must have the same length as the index and dates must be
// strictly increasing.
func New(dates []time.Time, order []string, cols map[string][]float64) (*Table, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("dates must be strictly increasing at index %d", i)
		}
	}

	if len(order) != len(cols) {
		return nil, fmt.Errorf("column order lists %d names, got %d columns", len(order), len(cols))
	}

	for _, name := range order {
		col, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("column %q missing from data", name)
		}
		if len(col) != len(dates) {
			return nil, fmt.Errorf("column %q has %d values for %d dates", name, len(col), len(dates))
		}
	}

	return &Table{dates: dates, order: order, cols: cols}, nil
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.dates)
}

// Dates returns the date index. Callers must not modify it.
func (t *Table) Dates() []time.Time {
	return t.dates
}

// Date returns the date of row i
func (t *Table) Date(i int) time.Time {
	return t.dates[i]
}

// Columns returns the column names in insertion order
func (t *Table) Columns() []string {
	return t.order
}

// Has reports whether a column exists
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns a column by name, or nil when absent. Callers must
// not modify the returned slice.
func (t *Table) Column(name string) []float64 {
	return t.cols[name]
}

// ColumnCopy returns a copy of a column, or nil when absent
func (t *Table) ColumnCopy(name string) []float64 {
	col, ok := t.cols[name]
	if !ok {
		return nil
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out
}

// Copy returns a deep copy of the table
func (t *Table) Copy() *Table {
	dates := make([]time.Time, len(t.dates))
	copy(dates, t.dates)

	order := make([]string, len(t.order))
	copy(order, t.order)

	cols := make(map[string][]float64, len(t.cols))
	for name, col := range t.cols {
		c := make([]float64, len(col))
		copy(c, col)
		cols[name] = c
	}

	return &Table{dates: dates, order: order, cols: cols}
}

// MulColumn multiplies a column element-wise by factor. It mutates the
// receiver and is only meant for tables obtained via Copy. The factor
// must have one value per row.
func (t *Table) MulColumn(name string, factor []float64) error {
	col, ok := t.cols[name]
	if !ok {
		return fmt.Errorf("column %q not found", name)
	}
	if len(factor) != len(col) {
		return fmt.Errorf("factor has %d values for %d rows", len(factor), len(col))
	}

	for i := range col {
		col[i] *= factor[i]
	}
	return nil
}

// PctChange converts the table to simple daily returns:
// r[i] = v[i+1]/v[i] - 1. The first row has no prior value and is
// dropped, as is any row where a column's return is not finite.
func (t *Table) PctChange() *Table {
	if t.Len() < 2 {
		return &Table{order: append([]string(nil), t.order...), cols: map[string][]float64{}}
	}

	n := t.Len() - 1
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	rets := make(map[string][]float64, len(t.cols))
	for name, col := range t.cols {
		r := make([]float64, n)
		for i := 0; i < n; i++ {
			r[i] = col[i+1]/col[i] - 1
			if math.IsNaN(r[i]) || math.IsInf(r[i], 0) {
				keep[i] = false
			}
		}
		rets[name] = r
	}

	rows := 0
	for _, k := range keep {
		if k {
			rows++
		}
	}

	dates := make([]time.Time, 0, rows)
	for i := 0; i < n; i++ {
		if keep[i] {
			dates = append(dates, t.dates[i+1])
		}
	}

	order := make([]string, len(t.order))
	copy(order, t.order)

	cols := make(map[string][]float64, len(rets))
	for name, r := range rets {
		c := make([]float64, 0, rows)
		for i := 0; i < n; i++ {
			if keep[i] {
				c = append(c, r[i])
			}
		}
		cols[name] = c
	}

	return &Table{dates: dates, order: order, cols: cols}
}

// CumulativeIndex compounds simple returns into an index series:
// out[i] = base * prod(1+returns[0..i]).
func CumulativeIndex(returns []float64, base float64) []float64 {
	out := make([]float64, len(returns))
	acc := base
	for i, r := range returns {
		acc *= 1 + r
		out[i] = acc
	}
	return out
}
