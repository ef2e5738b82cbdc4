package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fhirtab/fhirtab/internal/dataset"
	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	cols, err := dataset.Schema(fhirmodels.ResourceTypeObservation)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	day := func(s string) dataset.Date {
		d, err := dataset.ParseDate(s)
		if err != nil {
			t.Fatalf("parse date: %v", err)
		}
		return d
	}
	row := func(user, id, date string, value float64) []interface{} {
		return []interface{}{
			user, id, day(date),
			"Number of steps in unspecified time Pedometer", "steps", value,
			"55423-8", "Number of steps in unspecified time Pedometer",
			"HKQuantityTypeIdentifierStepCount",
		}
	}
	ds, err := dataset.New(fhirmodels.ResourceTypeObservation, cols, [][]interface{}{
		row("u1", "r1", "2024-03-01", 1000),
		row("u1", "r2", "2024-03-02", 2000),
		row("u1", "r3", "2024-03-03", 99999),
		row("u2", "r4", "2024-03-02", 500),
	})
	if err != nil {
		t.Fatalf("build dataset: %v", err)
	}
	return ds
}

func TestExporter_ApplyWithoutOptionsIsIdentity(t *testing.T) {
	ds := testDataset(t)
	got, err := New(ds).Apply()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != ds.Len() {
		t.Errorf("expected all %d rows, got %d", ds.Len(), got.Len())
	}
}

func TestExporter_ApplyNarrows(t *testing.T) {
	ds := testDataset(t)
	exp := New(ds,
		WithUsers("u1"),
		WithDateRange("2024-03-01", "2024-03-02"),
		WithValueRange(0, 1500),
	)

	got, err := exp.Apply()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("expected a single surviving row, got %d", got.Len())
	}
	row := got.Row(0)
	if dataset.CellString(row[0]) != "u1" || dataset.CellString(row[1]) != "r1" {
		t.Errorf("wrong row survived: %v", row[:2])
	}
	if ds.Len() != 4 {
		t.Error("source dataset must be left untouched")
	}
}

func TestExporter_ApplyOpenEndedDateRange(t *testing.T) {
	ds := testDataset(t)

	got, err := New(ds, WithDateRange("2024-03-02", "")).Apply()
	if err != nil {
		t.Fatalf("start-only range: %v", err)
	}
	if got.Len() != 3 {
		t.Errorf("start-only range kept %d rows, want 3", got.Len())
	}

	got, err = New(ds, WithDateRange("", "2024-03-01")).Apply()
	if err != nil {
		t.Fatalf("end-only range: %v", err)
	}
	if got.Len() != 1 {
		t.Errorf("end-only range kept %d rows, want 1", got.Len())
	}
}

func TestExporter_ApplyInvalidDateRange(t *testing.T) {
	ds := testDataset(t)
	_, err := New(ds, WithDateRange("2024-03-05", "2024-03-01")).Apply()
	if err == nil {
		t.Fatal("expected error for inverted date range")
	}
}

func TestExporter_WriteCSV(t *testing.T) {
	ds := testDataset(t)
	var buf bytes.Buffer
	if err := New(ds, WithUsers("u2")).WriteCSV(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "UserId,ResourceId,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "u2,r4,2024-03-02,") {
		t.Errorf("unexpected row: %s", lines[1])
	}
}

func TestExporter_ExportCSV(t *testing.T) {
	ds := testDataset(t)
	path := filepath.Join(t.TempDir(), "out.csv")

	if err := New(ds).ExportCSV(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 5 {
		t.Errorf("expected header plus 4 rows, got %d lines", len(lines))
	}
}
