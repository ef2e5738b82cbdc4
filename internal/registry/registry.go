// Package registry holds the static code registry: the lookup table from a
// measurement code to its display metadata, unit, plausible value range, and
// aggregation strategy. The registry is built once at startup and is
// read-only afterwards, so lookups are safe from concurrent goroutines.
package registry

import (
	"sort"

	"github.com/rs/zerolog"
)

// Strategy is the per-code rule for combining repeated measurements within a
// time bucket.
type Strategy string

const (
	// StrategySum totals all measurements in the bucket (step counts,
	// calories, distances).
	StrategySum Strategy = "sum"
	// StrategyMean averages the measurements in the bucket (heart rate,
	// oxygen saturation).
	StrategyMean Strategy = "mean"
	// StrategyNone passes measurements through unaggregated.
	StrategyNone Strategy = "none"
)

// ValueRange is an inclusive plausibility interval for a measurement value.
type ValueRange struct {
	Lo float64
	Hi float64
}

// Contains reports whether v lies inside the inclusive range.
func (r ValueRange) Contains(v float64) bool {
	return v >= r.Lo && v <= r.Hi
}

// Entry is the registered metadata for one measurement code. Range is nil
// for codes without a plausible interval; such codes are never
// outlier-filtered.
type Entry struct {
	Code     string      `json:"code"`
	Display  string      `json:"display"`
	Unit     string      `json:"unit,omitempty"`
	System   string      `json:"system,omitempty"`
	Range    *ValueRange `json:"range,omitempty"`
	Strategy Strategy    `json:"strategy"`
}

// Registry maps measurement codes to their entries. Immutable once New
// returns.
type Registry struct {
	entries map[string]Entry
	logger  zerolog.Logger
}

// Option customises a Registry during construction.
type Option func(*Registry)

// WithEntry registers (or overrides) an entry before the registry is sealed.
func WithEntry(e Entry) Option {
	return func(r *Registry) {
		r.entries[e.Code] = e
	}
}

// WithLogger sets the logger used for unknown-code warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New builds a registry seeded with the built-in code table, then applies
// the given options. The returned registry must not be modified.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]Entry, len(builtinEntries)),
		logger:  zerolog.Nop(),
	}
	for _, e := range builtinEntries {
		r.entries[e.Code] = e
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the entry for code. An unregistered code yields a fallback
// entry (generic display, no range, StrategyNone) and a warning; the
// pipeline never halts on an unknown code.
func (r *Registry) Lookup(code string) Entry {
	if e, ok := r.entries[code]; ok {
		return e
	}
	r.logger.Warn().
		Str("code", code).
		Msg("unknown measurement code, using fallback entry")
	return Entry{
		Code:     code,
		Display:  "Unknown code " + code,
		Strategy: StrategyNone,
	}
}

// Known reports whether code has a registered entry.
func (r *Registry) Known(code string) bool {
	_, ok := r.entries[code]
	return ok
}

// Codes returns all registered codes in sorted order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.entries))
	for code := range r.entries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
