// Package pipeline implements the processing stages applied to flattened
// datasets: outlier filtering, user and date selection, daily aggregation,
// and rolling averages. Every stage is pure: it returns a new dataset and
// leaves its input untouched.
package pipeline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fhirtab/fhirtab/internal/dataset"
	"github.com/fhirtab/fhirtab/internal/registry"
	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

// RangeError reports an unusable date range passed to a selection stage.
type RangeError struct {
	Start  string
	End    string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid date range [%s, %s]: %s", e.Start, e.End, e.Reason)
}

// Processor runs pipeline stages against a code registry. Safe for
// concurrent use.
type Processor struct {
	reg *registry.Registry
	log zerolog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for stage diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Processor) { p.log = log }
}

// New builds a Processor over a code registry.
func New(reg *registry.Registry, opts ...Option) *Processor {
	p := &Processor{
		reg: reg,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FilterOutliers drops quantity rows whose value falls outside the
// acceptable range. An explicit range applies to every row; otherwise each
// row is checked against the registry range for its code. Rows whose code
// carries no range pass through. Only quantity observations are filtered;
// other dataset types are returned unchanged.
func (p *Processor) FilterOutliers(ds *dataset.Dataset, rng *registry.ValueRange) (*dataset.Dataset, error) {
	if ds.ResourceType() != fhirmodels.ResourceTypeObservation {
		return ds, nil
	}

	valueIdx, _ := ds.ColumnIndex(dataset.ColQuantityValue)
	loincIdx, _ := ds.ColumnIndex(dataset.ColLoincCode)
	hkIdx, _ := ds.ColumnIndex(dataset.ColAppleHealthKitCode)

	var kept [][]interface{}
	dropped := 0
	ds.Each(func(i int, row []interface{}) {
		r := rng
		if r == nil {
			code := dataset.CellString(row[loincIdx])
			if code == "" {
				code = dataset.CellString(row[hkIdx])
			}
			r = p.reg.Lookup(code).Range
		}
		if r == nil {
			kept = append(kept, ds.Row(i))
			return
		}
		value, ok := dataset.CellFloat(row[valueIdx])
		if ok && r.Contains(value) {
			kept = append(kept, ds.Row(i))
			return
		}
		dropped++
	})

	if dropped > 0 {
		p.log.Debug().Int("dropped", dropped).Msg("filtered outlier rows")
	}
	return dataset.New(ds.ResourceType(), ds.Columns(), kept)
}

// SelectDataByUser keeps only the rows belonging to one user. An unknown
// user yields an empty dataset, not an error.
func (p *Processor) SelectDataByUser(ds *dataset.Dataset, userID string) (*dataset.Dataset, error) {
	userIdx, ok := ds.ColumnIndex(dataset.ColUserID)
	if !ok {
		return nil, fmt.Errorf("dataset has no %s column", dataset.ColUserID)
	}
	var kept [][]interface{}
	ds.Each(func(i int, row []interface{}) {
		if dataset.CellString(row[userIdx]) == userID {
			kept = append(kept, ds.Row(i))
		}
	})
	return dataset.New(ds.ResourceType(), ds.Columns(), kept)
}

// SelectDataByDates keeps only rows whose civil date falls within
// [start, end], inclusive on both ends. The bound times are truncated to
// UTC civil dates before comparison.
func (p *Processor) SelectDataByDates(ds *dataset.Dataset, start, end time.Time) (*dataset.Dataset, error) {
	return p.selectDates(ds, dataset.DateOf(start), dataset.DateOf(end))
}

// SelectDataByDateStrings is SelectDataByDates for 2006-01-02 date strings.
// An empty string leaves that side of the range open.
func (p *Processor) SelectDataByDateStrings(ds *dataset.Dataset, start, end string) (*dataset.Dataset, error) {
	startDate := dataset.Date{Year: 1, Month: time.January, Day: 1}
	endDate := dataset.Date{Year: 9999, Month: time.December, Day: 31}

	var err error
	if start != "" {
		if startDate, err = dataset.ParseDate(start); err != nil {
			return nil, &RangeError{Start: start, End: end, Reason: err.Error()}
		}
	}
	if end != "" {
		if endDate, err = dataset.ParseDate(end); err != nil {
			return nil, &RangeError{Start: start, End: end, Reason: err.Error()}
		}
	}
	return p.selectDates(ds, startDate, endDate)
}

func (p *Processor) selectDates(ds *dataset.Dataset, start, end dataset.Date) (*dataset.Dataset, error) {
	if start.After(end) {
		return nil, &RangeError{
			Start:  start.String(),
			End:    end.String(),
			Reason: "start date is after end date",
		}
	}
	dateCol, err := dataset.DateColumn(ds.ResourceType())
	if err != nil {
		return nil, err
	}
	dateIdx, _ := ds.ColumnIndex(dateCol)

	var kept [][]interface{}
	ds.Each(func(i int, row []interface{}) {
		d, ok := dataset.CellDate(row[dateIdx])
		if !ok {
			return
		}
		if !d.Before(start) && !d.After(end) {
			kept = append(kept, ds.Row(i))
		}
	})
	return dataset.New(ds.ResourceType(), ds.Columns(), kept)
}
