package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Point is one dated observation of a raw per-ticker series.
type Point struct {
	Date  time.Time
	Value float64
}

// Builder assembles raw per-ticker series into a dense Table.
//
// Each series is forward-filled over the union of all observed dates,
// then only dates covered by every column are retained. A date with a
// gap no forward-fill can resolve (before a series' first observation)
// drops the whole row, never part of it.
type Builder struct {
	order  []string
	series map[string][]Point
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{
		series: make(map[string][]Point),
	}
}

// Add registers a raw series under a column name. Adding the same name
// twice replaces the earlier series. Series with no points at all are
// ignored, which drops the column from the built table.
func (b *Builder) Add(name string, points []Point) *Builder {
	if len(points) == 0 {
		return b
	}
	if _, exists := b.series[name]; !exists {
		b.order = append(b.order, name)
	}
	b.series[name] = points
	return b
}

// Build produces the dense table
func (b *Builder) Build() (*Table, error) {
	if len(b.series) == 0 {
		return &Table{cols: map[string][]float64{}}, nil
	}

	// Union of all observation dates, keyed at day granularity.
	dateSet := make(map[int64]time.Time)
	for _, points := range b.series {
		for _, p := range points {
			d := dayStart(p.Date)
			dateSet[d.Unix()] = d
		}
	}

	union := make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		union = append(union, d)
	}
	sort.Slice(union, func(i, j int) bool { return union[i].Before(union[j]) })

	// Forward-fill each column over the union index.
	filled := make(map[string][]float64, len(b.series))
	for name, points := range b.series {
		sorted := make([]Point, len(points))
		copy(sorted, points)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

		col := make([]float64, len(union))
		last := math.NaN()
		j := 0
		for i, d := range union {
			for j < len(sorted) && !dayStart(sorted[j].Date).After(d) {
				// Duplicate observations for a day: last one wins.
				last = sorted[j].Value
				j++
			}
			col[i] = last
		}
		filled[name] = col
	}

	// Inner join: keep only rows dense across every column.
	keep := make([]bool, len(union))
	for i := range keep {
		keep[i] = true
		for _, col := range filled {
			if math.IsNaN(col[i]) {
				keep[i] = false
				break
			}
		}
	}

	rows := 0
	for _, k := range keep {
		if k {
			rows++
		}
	}

	dates := make([]time.Time, 0, rows)
	for i, d := range union {
		if keep[i] {
			dates = append(dates, d)
		}
	}

	cols := make(map[string][]float64, len(filled))
	for name, col := range filled {
		c := make([]float64, 0, rows)
		for i, v := range col {
			if keep[i] {
				c = append(c, v)
			}
		}
		cols[name] = c
	}

	order := make([]string, len(b.order))
	copy(order, b.order)

	table, err := New(dates, order, cols)
	if err != nil {
		return nil, fmt.Errorf("build price table: %w", err)
	}
	return table, nil
}

// dayStart truncates a timestamp to UTC midnight so that intraday
// timestamps from different sources land on the same row.
func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
