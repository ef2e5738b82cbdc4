// Package dataset holds the tabular dataset produced by flattening: an
// ordered, schema-stamped row container tagged with one resource type. A
// dataset is immutable after construction; every pipeline stage builds a new
// one. Rows are positional slices aligned to the column schema.
package dataset

import (
	"fmt"
	"strings"
)

// SchemaError reports a dataset whose columns do not match the schema
// required for its resource type. Construction fails with this error; a
// dataset with a wrong column set never exists.
type SchemaError struct {
	ResourceType string
	Missing      []string
	Extra        []string
	Reason       string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dataset schema invalid for %s", e.ResourceType)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing columns %s", strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		fmt.Fprintf(&b, ": unexpected columns %s", strings.Join(e.Extra, ", "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// Dataset is an ordered collection of flattened rows sharing one resource
// type. Row order is insertion order and is never resorted.
type Dataset struct {
	resourceType string
	columns      []string
	rows         [][]interface{}
}

// New constructs a validated dataset. columns must exactly equal the schema
// for resourceType (same names, same order), every row must have one cell
// per column, and every date cell must hold a Date. Rows are copied, so the
// caller's slices stay independent of the dataset.
func New(resourceType string, columns []string, rows [][]interface{}) (*Dataset, error) {
	d := &Dataset{
		resourceType: resourceType,
		columns:      append([]string(nil), columns...),
		rows:         copyRows(rows),
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Empty returns a zero-row dataset for a resource type.
func Empty(resourceType string) (*Dataset, error) {
	cols, err := Schema(resourceType)
	if err != nil {
		return nil, err
	}
	return New(resourceType, cols, nil)
}

// Validate re-checks the schema invariant. It holds by construction, but the
// output contract allows consumers to re-invoke it.
func (d *Dataset) Validate() error {
	want, err := Schema(d.resourceType)
	if err != nil {
		return &SchemaError{ResourceType: d.resourceType, Reason: err.Error()}
	}

	wantSet := make(map[string]bool, len(want))
	for _, c := range want {
		wantSet[c] = true
	}
	gotSet := make(map[string]bool, len(d.columns))
	for _, c := range d.columns {
		gotSet[c] = true
	}

	var missing, extra []string
	for _, c := range want {
		if !gotSet[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range d.columns {
		if !wantSet[c] {
			extra = append(extra, c)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return &SchemaError{ResourceType: d.resourceType, Missing: missing, Extra: extra}
	}
	for i, c := range want {
		if d.columns[i] != c {
			return &SchemaError{
				ResourceType: d.resourceType,
				Reason:       fmt.Sprintf("column %d is %q, want %q", i, d.columns[i], c),
			}
		}
	}

	dateCol, err := DateColumn(d.resourceType)
	if err != nil {
		return &SchemaError{ResourceType: d.resourceType, Reason: err.Error()}
	}
	dateIdx := indexOf(d.columns, dateCol)

	for i, row := range d.rows {
		if len(row) != len(d.columns) {
			return &SchemaError{
				ResourceType: d.resourceType,
				Reason:       fmt.Sprintf("row %d has %d cells, want %d", i, len(row), len(d.columns)),
			}
		}
		if _, ok := row[dateIdx].(Date); !ok {
			return &SchemaError{
				ResourceType: d.resourceType,
				Reason:       fmt.Sprintf("row %d: %s cell is not a civil date", i, dateCol),
			}
		}
	}
	return nil
}

// ResourceType returns the variant tag the dataset carries.
func (d *Dataset) ResourceType() string {
	return d.resourceType
}

// Columns returns a copy of the column schema.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// Rows returns a deep copy of the rows; mutating it does not affect the
// dataset.
func (d *Dataset) Rows() [][]interface{} {
	return copyRows(d.rows)
}

// Len returns the row count.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// ColumnIndex returns the position of a column in the schema.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	idx := indexOf(d.columns, name)
	return idx, idx >= 0
}

// Each calls fn with each row in insertion order. The row slice is the
// dataset's own storage; callers must not retain or mutate it.
func (d *Dataset) Each(fn func(i int, row []interface{})) {
	for i, row := range d.rows {
		fn(i, row)
	}
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) []interface{} {
	return append([]interface{}(nil), d.rows[i]...)
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

func copyRows(rows [][]interface{}) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = append([]interface{}(nil), row...)
	}
	return out
}

// String is a compact debug form; serialization for consumers lives in
// render.go.
func (d *Dataset) String() string {
	return fmt.Sprintf("Dataset(%s, %d rows)", d.resourceType, len(d.rows))
}

// CellString reads a string cell, mapping nil to "".
func CellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// CellFloat reads a numeric cell.
func CellFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// CellDate reads a civil-date cell.
func CellDate(v interface{}) (Date, bool) {
	d, ok := v.(Date)
	return d, ok
}
