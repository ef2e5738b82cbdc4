package registry

import (
	"sort"
	"sync"
	"testing"

	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

func TestRegistry_LookupBuiltin(t *testing.T) {
	r := New()

	e := r.Lookup(fhirmodels.CodeStepCount)
	if e.Strategy != StrategySum {
		t.Errorf("expected step count strategy sum, got %s", e.Strategy)
	}
	if e.Unit != "steps" {
		t.Errorf("expected unit steps, got %q", e.Unit)
	}
	if e.Range == nil || e.Range.Lo != 0 || e.Range.Hi != 30000 {
		t.Errorf("unexpected step count range: %+v", e.Range)
	}

	e = r.Lookup(fhirmodels.CodeHeartRate)
	if e.Strategy != StrategyMean {
		t.Errorf("expected heart rate strategy mean, got %s", e.Strategy)
	}
}

func TestRegistry_LookupUnknownFallsBack(t *testing.T) {
	r := New()

	e := r.Lookup("totally-unknown")
	if e.Code != "totally-unknown" {
		t.Errorf("fallback entry should echo the code, got %q", e.Code)
	}
	if e.Strategy != StrategyNone {
		t.Errorf("fallback strategy should be none, got %s", e.Strategy)
	}
	if e.Range != nil {
		t.Error("fallback entry should carry no range")
	}
	if r.Known("totally-unknown") {
		t.Error("unknown code should not be reported as known")
	}
	if !r.Known(fhirmodels.CodeHeartRate) {
		t.Error("built-in code should be known")
	}
}

func TestRegistry_WithEntryOverrides(t *testing.T) {
	r := New(WithEntry(Entry{
		Code:     fhirmodels.CodeHeartRate,
		Display:  "Custom heart rate",
		Strategy: StrategyNone,
	}))

	e := r.Lookup(fhirmodels.CodeHeartRate)
	if e.Display != "Custom heart rate" {
		t.Errorf("expected override display, got %q", e.Display)
	}
	if e.Strategy != StrategyNone {
		t.Errorf("expected override strategy none, got %s", e.Strategy)
	}
}

func TestRegistry_CodesSorted(t *testing.T) {
	r := New()

	codes := r.Codes()
	if len(codes) == 0 {
		t.Fatal("expected built-in codes")
	}
	if !sort.StringsAreSorted(codes) {
		t.Error("Codes() should return sorted codes")
	}
	found := false
	for _, c := range codes {
		if c == fhirmodels.CodeStepCount {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s among codes", fhirmodels.CodeStepCount)
	}
}

func TestRegistry_ConcurrentLookup(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Lookup(fhirmodels.CodeStepCount)
				r.Lookup("unknown")
				r.Codes()
			}
		}()
	}
	wg.Wait()
}

func TestValueRange_Contains(t *testing.T) {
	r := ValueRange{Lo: 34, Hi: 200}
	if !r.Contains(34) || !r.Contains(200) {
		t.Error("range bounds should be inclusive")
	}
	if r.Contains(33.9) || r.Contains(200.1) {
		t.Error("values outside the range should be rejected")
	}
}
