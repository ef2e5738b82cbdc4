package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fhirtab/fhirtab/internal/dataset"
	"github.com/fhirtab/fhirtab/internal/registry"
	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

// QuantityName prefixes applied to aggregated rows. The prefix doubles as
// the idempotence guard: a row already carrying one is never re-prefixed.
const (
	PrefixDailyTotal   = "Total daily"
	PrefixDailyAverage = "Daily average"
)

// obsIndexes caches the column positions the aggregation stages read from a
// quantity observation dataset.
type obsIndexes struct {
	user, resource, date, name, unit, value, loinc, display, hk int
}

func observationIndexes(ds *dataset.Dataset) (obsIndexes, error) {
	if ds.ResourceType() != fhirmodels.ResourceTypeObservation {
		return obsIndexes{}, fmt.Errorf(
			"aggregation requires an %s dataset, got %s",
			fhirmodels.ResourceTypeObservation, ds.ResourceType(),
		)
	}
	var idx obsIndexes
	idx.user, _ = ds.ColumnIndex(dataset.ColUserID)
	idx.resource, _ = ds.ColumnIndex(dataset.ColResourceID)
	idx.date, _ = ds.ColumnIndex(dataset.ColEffectiveDateTime)
	idx.name, _ = ds.ColumnIndex(dataset.ColQuantityName)
	idx.unit, _ = ds.ColumnIndex(dataset.ColQuantityUnit)
	idx.value, _ = ds.ColumnIndex(dataset.ColQuantityValue)
	idx.loinc, _ = ds.ColumnIndex(dataset.ColLoincCode)
	idx.display, _ = ds.ColumnIndex(dataset.ColDisplay)
	idx.hk, _ = ds.ColumnIndex(dataset.ColAppleHealthKitCode)
	return idx, nil
}

// dailyKey identifies one aggregation group: one user, one calendar day,
// one code.
type dailyKey struct {
	user string
	date dataset.Date
	code string
}

// groupDaily partitions the dataset into per-user-per-day-per-code groups,
// keyed for deterministic sorted emission.
func groupDaily(ds *dataset.Dataset, idx obsIndexes) (map[dailyKey][]int, []dailyKey) {
	groups := make(map[dailyKey][]int)
	ds.Each(func(i int, row []interface{}) {
		date, _ := dataset.CellDate(row[idx.date])
		key := dailyKey{
			user: dataset.CellString(row[idx.user]),
			date: date,
			code: dataset.CellString(row[idx.loinc]),
		}
		groups[key] = append(groups[key], i)
	})

	keys := make([]dailyKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].user != keys[b].user {
			return keys[a].user < keys[b].user
		}
		if !keys[a].date.Equal(keys[b].date) {
			return keys[a].date.Before(keys[b].date)
		}
		return keys[a].code < keys[b].code
	})
	return groups, keys
}

// aggregateRow builds the single output row for a group: numeric value from
// the aggregation, descriptive fields copied from the group's first row,
// ResourceId collapsed to "N/A", QuantityName prefixed once.
func aggregateRow(ds *dataset.Dataset, idx obsIndexes, key dailyKey, first int, value interface{}, prefix string) []interface{} {
	row := ds.Row(first)
	out := make([]interface{}, len(row))
	copy(out, row)
	out[idx.user] = key.user
	out[idx.resource] = "N/A"
	out[idx.date] = key.date
	out[idx.value] = value

	name := dataset.CellString(row[idx.name])
	if name != "" && !strings.HasPrefix(name, prefix) {
		out[idx.name] = prefix + " " + name
	}
	return out
}

// groupSum sums the numeric values of a group, ignoring empty cells.
func groupSum(ds *dataset.Dataset, idx obsIndexes, members []int) interface{} {
	var sum float64
	var seen bool
	for _, i := range members {
		if v, ok := dataset.CellFloat(ds.Row(i)[idx.value]); ok {
			sum += v
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return sum
}

// groupMean averages the numeric values of a group, rounded half away from
// zero to whole units, ignoring empty cells.
func groupMean(ds *dataset.Dataset, idx obsIndexes, members []int) interface{} {
	var sum float64
	var n int
	for _, i := range members {
		if v, ok := dataset.CellFloat(ds.Row(i)[idx.value]); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return math.Round(sum / float64(n))
}

// CalculateDailyData aggregates a quantity dataset to one row per user, day,
// and code, applying the code's registry strategy: sum emits a daily total,
// mean emits a daily average, and codes without a strategy pass their rows
// through unchanged. Re-running on already aggregated data reproduces it.
func (p *Processor) CalculateDailyData(ds *dataset.Dataset) (*dataset.Dataset, error) {
	idx, err := observationIndexes(ds)
	if err != nil {
		return nil, err
	}

	groups, keys := groupDaily(ds, idx)
	var rows [][]interface{}
	for _, key := range keys {
		members := groups[key]
		switch p.reg.Lookup(key.code).Strategy {
		case registry.StrategySum:
			rows = append(rows, aggregateRow(ds, idx, key, members[0], groupSum(ds, idx, members), PrefixDailyTotal))
		case registry.StrategyMean:
			rows = append(rows, aggregateRow(ds, idx, key, members[0], groupMean(ds, idx, members), PrefixDailyAverage))
		default:
			for _, i := range members {
				rows = append(rows, ds.Row(i))
			}
		}
	}
	return dataset.New(ds.ResourceType(), ds.Columns(), rows)
}

// ProcessFHIRData is the composite stage: per user, day, and code it drops
// outliers against the registry range and then applies the code's
// aggregation strategy. Groups are independent; a bad group never affects
// another. Non-quantity datasets pass through unchanged.
func (p *Processor) ProcessFHIRData(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if ds.ResourceType() != fhirmodels.ResourceTypeObservation {
		return ds, nil
	}
	filtered, err := p.FilterOutliers(ds, nil)
	if err != nil {
		return nil, err
	}
	return p.CalculateDailyData(filtered)
}

// CalculateAverageData reduces a quantity dataset to one row per user and
// code: the mean across every date present, rounded to whole units, dated
// at the group's earliest day.
func (p *Processor) CalculateAverageData(ds *dataset.Dataset) (*dataset.Dataset, error) {
	idx, err := observationIndexes(ds)
	if err != nil {
		return nil, err
	}

	type overallKey struct {
		user string
		code string
	}
	type overallGroup struct {
		first    int
		earliest dataset.Date
		sum      float64
		n        int
	}
	groups := make(map[overallKey]*overallGroup)
	var order []overallKey

	ds.Each(func(i int, row []interface{}) {
		key := overallKey{
			user: dataset.CellString(row[idx.user]),
			code: dataset.CellString(row[idx.loinc]),
		}
		date, _ := dataset.CellDate(row[idx.date])
		g, ok := groups[key]
		if !ok {
			g = &overallGroup{first: i, earliest: date}
			groups[key] = g
			order = append(order, key)
		}
		if date.Before(g.earliest) {
			g.earliest = date
		}
		if v, ok := dataset.CellFloat(row[idx.value]); ok {
			g.sum += v
			g.n++
		}
	})

	sort.Slice(order, func(a, b int) bool {
		if order[a].user != order[b].user {
			return order[a].user < order[b].user
		}
		return order[a].code < order[b].code
	})

	var rows [][]interface{}
	for _, key := range order {
		g := groups[key]
		var mean interface{}
		if g.n > 0 {
			mean = math.Round(g.sum / float64(g.n))
		}
		row := aggregateRow(ds, idx, dailyKey{user: key.user, date: g.earliest, code: key.code}, g.first, mean, PrefixDailyAverage)
		rows = append(rows, row)
	}
	return dataset.New(ds.ResourceType(), ds.Columns(), rows)
}
