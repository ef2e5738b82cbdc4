package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes the dataset in delimited text form: a header line equal to
// the column schema, then one line per row in insertion order.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(d.columns))
	for _, row := range d.rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV renders the dataset as a CSV string.
func (d *Dataset) CSV() (string, error) {
	var buf bytes.Buffer
	if err := d.WriteCSV(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MarshalJSON renders the dataset as an array of objects keyed by column
// name.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.objects())
}

// WriteNDJSON writes one JSON object per row, newline-delimited.
func (d *Dataset) WriteNDJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, obj := range d.objects() {
		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("write ndjson row: %w", err)
		}
	}
	return nil
}

func (d *Dataset) objects() []map[string]interface{} {
	objects := make([]map[string]interface{}, len(d.rows))
	for i, row := range d.rows {
		obj := make(map[string]interface{}, len(d.columns))
		for j, col := range d.columns {
			obj[col] = row[j]
		}
		objects[i] = obj
	}
	return objects
}

// formatCell renders a cell for CSV output. Dates render 2006-01-02, floats
// without trailing zeros, nil as the empty string.
func formatCell(v interface{}) string {
	switch cell := v.(type) {
	case nil:
		return ""
	case Date:
		return cell.String()
	case string:
		return cell
	case float64:
		return strconv.FormatFloat(cell, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(cell), 'f', -1, 32)
	case int:
		return strconv.Itoa(cell)
	case int64:
		return strconv.FormatInt(cell, 10)
	case bool:
		return strconv.FormatBool(cell)
	default:
		return fmt.Sprintf("%v", cell)
	}
}
