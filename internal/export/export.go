// Package export narrows a dataset by user, date range, and value range and
// writes the result in delimited form. The Exporter composes the pipeline's
// selection stages rather than reimplementing them.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/fhirtab/fhirtab/internal/dataset"
	"github.com/fhirtab/fhirtab/internal/pipeline"
	"github.com/fhirtab/fhirtab/internal/registry"
)

// Exporter holds one dataset plus the narrowing applied before writing.
type Exporter struct {
	ds         *dataset.Dataset
	proc       *pipeline.Processor
	users      []string
	startDate  string
	endDate    string
	valueRange *registry.ValueRange
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithUsers restricts the export to the given user ids.
func WithUsers(ids ...string) Option {
	return func(e *Exporter) { e.users = append(e.users, ids...) }
}

// WithDateRange restricts the export to rows between two 2006-01-02 dates,
// inclusive.
func WithDateRange(start, end string) Option {
	return func(e *Exporter) {
		e.startDate, e.endDate = start, end
	}
}

// WithValueRange drops rows whose quantity value falls outside [lo, hi].
func WithValueRange(lo, hi float64) Option {
	return func(e *Exporter) {
		e.valueRange = &registry.ValueRange{Lo: lo, Hi: hi}
	}
}

// WithProcessor supplies the pipeline processor running the selection
// stages. Without it a processor over the built-in registry is used.
func WithProcessor(proc *pipeline.Processor) Option {
	return func(e *Exporter) { e.proc = proc }
}

// New builds an Exporter over a dataset.
func New(ds *dataset.Dataset, opts ...Option) *Exporter {
	e := &Exporter{ds: ds}
	for _, opt := range opts {
		opt(e)
	}
	if e.proc == nil {
		e.proc = pipeline.New(registry.New())
	}
	return e
}

// Apply runs the configured narrowing and returns the resulting dataset.
// The source dataset is untouched.
func (e *Exporter) Apply() (*dataset.Dataset, error) {
	ds := e.ds

	if len(e.users) > 0 {
		want := make(map[string]bool, len(e.users))
		for _, id := range e.users {
			want[id] = true
		}
		userIdx, ok := ds.ColumnIndex(dataset.ColUserID)
		if !ok {
			return nil, fmt.Errorf("dataset has no %s column", dataset.ColUserID)
		}
		var kept [][]interface{}
		ds.Each(func(i int, row []interface{}) {
			if want[dataset.CellString(row[userIdx])] {
				kept = append(kept, ds.Row(i))
			}
		})
		narrowed, err := dataset.New(ds.ResourceType(), ds.Columns(), kept)
		if err != nil {
			return nil, err
		}
		ds = narrowed
	}

	if e.startDate != "" || e.endDate != "" {
		narrowed, err := e.proc.SelectDataByDateStrings(ds, e.startDate, e.endDate)
		if err != nil {
			return nil, err
		}
		ds = narrowed
	}

	if e.valueRange != nil {
		narrowed, err := e.proc.FilterOutliers(ds, e.valueRange)
		if err != nil {
			return nil, err
		}
		ds = narrowed
	}

	return ds, nil
}

// WriteCSV applies the narrowing and writes the result as CSV.
func (e *Exporter) WriteCSV(w io.Writer) error {
	ds, err := e.Apply()
	if err != nil {
		return err
	}
	return ds.WriteCSV(w)
}

// ExportCSV applies the narrowing and writes the result to a file.
func (e *Exporter) ExportCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()
	if err := e.WriteCSV(f); err != nil {
		return err
	}
	return f.Close()
}
