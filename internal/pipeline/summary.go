package pipeline

import (
	"math"
	"sort"

	"github.com/fhirtab/fhirtab/internal/dataset"
)

// UserSummary holds descriptive statistics over one user's quantity values.
type UserSummary struct {
	UserID string  `json:"user_id"`
	Rows   int     `json:"rows"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary computes per-user descriptive statistics over QuantityValue, one
// entry per user sorted by user id. Rows without a numeric value count
// toward Rows but not the statistics. Callers wanting date bounds select
// with SelectDataByDates first.
func (p *Processor) Summary(ds *dataset.Dataset) ([]UserSummary, error) {
	idx, err := observationIndexes(ds)
	if err != nil {
		return nil, err
	}

	type acc struct {
		rows   int
		values []float64
	}
	users := make(map[string]*acc)

	ds.Each(func(_ int, row []interface{}) {
		user := dataset.CellString(row[idx.user])
		a, ok := users[user]
		if !ok {
			a = &acc{}
			users[user] = a
		}
		a.rows++
		if v, ok := dataset.CellFloat(row[idx.value]); ok {
			a.values = append(a.values, v)
		}
	})

	userIDs := make([]string, 0, len(users))
	for user := range users {
		userIDs = append(userIDs, user)
	}
	sort.Strings(userIDs)

	out := make([]UserSummary, 0, len(userIDs))
	for _, user := range userIDs {
		a := users[user]
		s := UserSummary{UserID: user, Rows: a.rows}
		if n := len(a.values); n > 0 {
			s.Min, s.Max = a.values[0], a.values[0]
			var sum float64
			for _, v := range a.values {
				sum += v
				s.Min = math.Min(s.Min, v)
				s.Max = math.Max(s.Max, v)
			}
			s.Mean = sum / float64(n)
			if n > 1 {
				var ss float64
				for _, v := range a.values {
					ss += (v - s.Mean) * (v - s.Mean)
				}
				s.StdDev = math.Sqrt(ss / float64(n-1))
			}
		}
		out = append(out, s)
	}
	return out, nil
}
