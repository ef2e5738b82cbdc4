package pipeline

import (
	"fmt"
	"sort"

	"github.com/fhirtab/fhirtab/internal/dataset"
	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

// Step-count metadata stamped onto activity index rows.
const (
	stepCountDisplay = "Number of steps in unspecified time Pedometer"
	stepCountUnit    = "steps"
)

// MovingAverage computes a plain n-day rolling mean over each user's
// per-code daily sequence, ordered by date. Only full windows are emitted:
// a sequence of m days yields m-n+1 rows, the first anchored at day n.
// Windows never span users or codes. The input must already be daily:
// duplicate rows for one user, code, and date are an error.
func (p *Processor) MovingAverage(ds *dataset.Dataset, n int) (*dataset.Dataset, error) {
	idx, err := observationIndexes(ds)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("moving average window must be positive, got %d", n)
	}

	type seriesKey struct {
		user string
		code string
	}
	type point struct {
		row   int
		date  dataset.Date
		value float64
	}
	series := make(map[seriesKey][]point)
	seen := make(map[dailyKey]bool)

	var walkErr error
	ds.Each(func(i int, row []interface{}) {
		if walkErr != nil {
			return
		}
		date, _ := dataset.CellDate(row[idx.date])
		key := dailyKey{
			user: dataset.CellString(row[idx.user]),
			date: date,
			code: dataset.CellString(row[idx.loinc]),
		}
		if seen[key] {
			walkErr = fmt.Errorf(
				"duplicate rows for user %s, code %s, date %s; aggregate with CalculateDailyData before computing a moving average",
				key.user, key.code, key.date,
			)
			return
		}
		seen[key] = true

		value, ok := dataset.CellFloat(row[idx.value])
		if !ok {
			return
		}
		sk := seriesKey{user: key.user, code: key.code}
		series[sk] = append(series[sk], point{row: i, date: date, value: value})
	})
	if walkErr != nil {
		return nil, walkErr
	}

	keys := make([]seriesKey, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].user != keys[b].user {
			return keys[a].user < keys[b].user
		}
		return keys[a].code < keys[b].code
	})

	var rows [][]interface{}
	for _, key := range keys {
		points := series[key]
		sort.Slice(points, func(a, b int) bool { return points[a].date.Before(points[b].date) })

		var sum float64
		for i, pt := range points {
			sum += pt.value
			if i >= n {
				sum -= points[i-n].value
			}
			if i < n-1 {
				continue
			}
			row := ds.Row(pt.row)
			row[idx.resource] = "N/A"
			row[idx.value] = sum / float64(n)
			rows = append(rows, row)
		}
	}
	return dataset.New(ds.ResourceType(), ds.Columns(), rows)
}

// ActivityIndex computes the n-day rolling mean of daily step counts per
// user. Unlike MovingAverage it zero-fills missing days across each user's
// date span and emits partial leading windows, so every day in the span
// produces a row. Input must hold only step-count data, one row per user
// and day.
func (p *Processor) ActivityIndex(ds *dataset.Dataset, n int) (*dataset.Dataset, error) {
	idx, err := observationIndexes(ds)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("activity index window must be positive, got %d", n)
	}

	type point struct {
		date  dataset.Date
		value float64
	}
	users := make(map[string][]point)
	seen := make(map[dailyKey]bool)

	var walkErr error
	ds.Each(func(i int, row []interface{}) {
		if walkErr != nil {
			return
		}
		if code := dataset.CellString(row[idx.loinc]); code != fhirmodels.CodeStepCount {
			walkErr = fmt.Errorf(
				"activity index accepts only step count data (code %s), found %q",
				fhirmodels.CodeStepCount, code,
			)
			return
		}
		date, _ := dataset.CellDate(row[idx.date])
		user := dataset.CellString(row[idx.user])
		key := dailyKey{user: user, date: date, code: fhirmodels.CodeStepCount}
		if seen[key] {
			walkErr = fmt.Errorf(
				"duplicate rows for user %s on %s; aggregate with ProcessFHIRData before computing an activity index",
				user, date,
			)
			return
		}
		seen[key] = true

		value, _ := dataset.CellFloat(row[idx.value])
		users[user] = append(users[user], point{date: date, value: value})
	})
	if walkErr != nil {
		return nil, walkErr
	}

	userIDs := make([]string, 0, len(users))
	for user := range users {
		userIDs = append(userIDs, user)
	}
	sort.Strings(userIDs)

	quantityName := fmt.Sprintf("%d-day moving average Step Count", n)

	var rows [][]interface{}
	for _, user := range userIDs {
		points := users[user]
		sort.Slice(points, func(a, b int) bool { return points[a].date.Before(points[b].date) })

		// Zero-fill the civil-date span so gaps count as inactive days.
		start, end := points[0].date, points[len(points)-1].date
		span := end.DaysSince(start) + 1
		daily := make([]float64, span)
		for _, pt := range points {
			daily[pt.date.DaysSince(start)] = pt.value
		}

		var sum float64
		for i, value := range daily {
			sum += value
			if i >= n {
				sum -= daily[i-n]
			}
			window := n
			if i < n-1 {
				window = i + 1
			}
			rows = append(rows, []interface{}{
				user,
				"N/A",
				start.AddDays(i),
				quantityName,
				stepCountUnit,
				sum / float64(window),
				fhirmodels.CodeStepCount,
				stepCountDisplay,
				fhirmodels.HKStepCount,
			})
		}
	}
	return dataset.New(ds.ResourceType(), ds.Columns(), rows)
}
