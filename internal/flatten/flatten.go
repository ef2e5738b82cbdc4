// Package flatten turns hierarchical health records into tabular datasets:
// quantity observations, ECG waveform observations, and questionnaire
// responses each flatten to their own fixed column schema.
package flatten

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fhirtab/fhirtab/internal/dataset"
	"github.com/fhirtab/fhirtab/internal/platform/fhir"
	"github.com/fhirtab/fhirtab/internal/registry"
	"github.com/fhirtab/fhirtab/internal/survey"
	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

// ErrNoResources is returned when Flatten is called with no input. Callers
// that want an empty dataset build one with dataset.Empty.
var ErrNoResources = errors.New("no resources to flatten")

// MixedTypeError reports a batch holding more than one resource variant. A
// flattened dataset carries exactly one schema, so mixed batches produce
// zero rows.
type MixedTypeError struct {
	Types []string
}

func (e *MixedTypeError) Error() string {
	return fmt.Sprintf("mixed resource types in one batch: %s", strings.Join(e.Types, ", "))
}

// Coding triage: numeric codes with an optional dash segment are LOINC-style
// (includes MDC waveform codes), purely alphabetic codes are HealthKit
// quantity type identifiers.
var (
	loincCodeRe     = regexp.MustCompile(`^\d+(-\d+)?$`)
	healthKitCodeRe = regexp.MustCompile(`^[A-Za-z]+$`)
)

type resourceFlattener func(resources []fhir.Resource) (*dataset.Dataset, error)

// Flattener converts homogeneous batches of resources into datasets. Safe
// for concurrent use.
type Flattener struct {
	reg      *registry.Registry
	mapper   *survey.Mapper
	log      zerolog.Logger
	dispatch map[string]resourceFlattener
}

// Option configures a Flattener.
type Option func(*Flattener)

// WithLogger sets the logger used for flattening diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Flattener) { f.log = log }
}

// WithSurveyMapper supplies the questionnaire definitions used to resolve
// question text and answer labels. Required for questionnaire responses.
func WithSurveyMapper(m *survey.Mapper) Option {
	return func(f *Flattener) { f.mapper = m }
}

// New builds a Flattener over a code registry.
func New(reg *registry.Registry, opts ...Option) *Flattener {
	f := &Flattener{
		reg: reg,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.dispatch = map[string]resourceFlattener{
		fhirmodels.ResourceTypeObservation:           f.flattenObservations,
		fhirmodels.ResourceTypeECGObservation:        f.flattenECGObservations,
		fhirmodels.ResourceTypeQuestionnaireResponse: f.flattenResponses,
	}
	return f
}

// Flatten converts a homogeneous batch of resources into a dataset. The
// batch's variant is decided per resource by Kind(); heterogeneous batches
// fail with *MixedTypeError before any row is produced. Output row order
// follows input order.
func (f *Flattener) Flatten(resources []fhir.Resource) (*dataset.Dataset, error) {
	if len(resources) == 0 {
		return nil, ErrNoResources
	}

	seen := make(map[string]bool)
	for i := range resources {
		seen[resources[i].Kind()] = true
	}
	if len(seen) > 1 {
		types := make([]string, 0, len(seen))
		for t := range seen {
			types = append(types, t)
		}
		sort.Strings(types)
		return nil, &MixedTypeError{Types: types}
	}

	kind := resources[0].Kind()
	fn, ok := f.dispatch[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported resource type: %q", kind)
	}

	ds, err := fn(resources)
	if err != nil {
		return nil, err
	}
	f.log.Debug().
		Str("resource_type", kind).
		Int("resources", len(resources)).
		Int("rows", ds.Len()).
		Msg("flattened resource batch")
	return ds, nil
}

// codingInfo is the result of triaging one coding list.
type codingInfo struct {
	quantityName  interface{}
	loincCode     interface{}
	display       interface{}
	healthKitCode interface{}
}

// triageCodings splits a coding list into the LOINC-style code (with its
// display) and the HealthKit identifier. The quantity name prefers the
// second coding's display, which upstream exporters use for the
// human-readable name.
func triageCodings(codings []fhir.Coding) codingInfo {
	var info codingInfo
	if len(codings) > 1 {
		info.quantityName = stringOrNil(codings[1].Display)
	} else if len(codings) == 1 {
		info.quantityName = stringOrNil(codings[0].Display)
	}
	for _, c := range codings {
		switch {
		case loincCodeRe.MatchString(c.Code):
			info.loincCode = c.Code
			info.display = stringOrNil(c.Display)
		case healthKitCodeRe.MatchString(c.Code):
			info.healthKitCode = c.Code
		}
	}
	return info
}

// fillFromRegistry backfills the display and quantity name from the code
// registry when the resource omits them.
func (f *Flattener) fillFromRegistry(info *codingInfo, unit interface{}) interface{} {
	code := dataset.CellString(info.loincCode)
	if code == "" {
		code = dataset.CellString(info.healthKitCode)
	}
	if code == "" {
		return unit
	}
	entry := f.reg.Lookup(code)
	if info.display == nil && f.reg.Known(code) {
		info.display = stringOrNil(entry.Display)
	}
	if info.quantityName == nil && f.reg.Known(code) {
		info.quantityName = stringOrNil(entry.Display)
	}
	if unit == nil && entry.Unit != "" {
		unit = entry.Unit
	}
	return unit
}

// flattenObservations emits one row per component, or one row from the
// top-level valueQuantity when an observation has no components. Row count
// is the sum over resources of max(1, component count).
func (f *Flattener) flattenObservations(resources []fhir.Resource) (*dataset.Dataset, error) {
	cols, err := dataset.Schema(fhirmodels.ResourceTypeObservation)
	if err != nil {
		return nil, err
	}

	var rows [][]interface{}
	for i := range resources {
		r := &resources[i]
		effective, ok := r.EffectiveTime()
		if !ok {
			return nil, fmt.Errorf("observation %q has no effective time", r.ID)
		}
		date := dataset.DateOf(effective)
		user := r.SubjectID()
		resourceInfo := triageCodings(r.Codings())

		if len(r.Component) == 0 {
			info := resourceInfo
			var unit, value interface{}
			if q := r.ValueQuantity; q != nil {
				unit = stringOrNil(q.Unit)
				if q.Value != nil {
					value = *q.Value
				}
			}
			unit = f.fillFromRegistry(&info, unit)
			rows = append(rows, []interface{}{
				user, r.ID, date,
				info.quantityName, unit, value,
				info.loincCode, info.display, info.healthKitCode,
			})
			continue
		}

		for _, comp := range r.Component {
			info := triageCodings(comp.Code.Coding)
			if len(comp.Code.Coding) == 0 {
				info = resourceInfo
			}
			var unit, value interface{}
			if q := comp.ValueQuantity; q != nil {
				unit = stringOrNil(q.Unit)
				if q.Value != nil {
					value = *q.Value
				}
			}
			unit = f.fillFromRegistry(&info, unit)
			rows = append(rows, []interface{}{
				user, r.ID, date,
				info.quantityName, unit, value,
				info.loincCode, info.display, info.healthKitCode,
			})
		}
	}

	return dataset.New(fhirmodels.ResourceTypeObservation, cols, rows)
}

// flattenECGObservations emits exactly one row per waveform observation.
// Components are positional: [0] measurement count, [1] sampling frequency,
// [2] classification, [3] heart rate; the recording itself is the
// concatenation of every component's sampled data.
func (f *Flattener) flattenECGObservations(resources []fhir.Resource) (*dataset.Dataset, error) {
	cols, err := dataset.Schema(fhirmodels.ResourceTypeECGObservation)
	if err != nil {
		return nil, err
	}

	rows := make([][]interface{}, 0, len(resources))
	for i := range resources {
		r := &resources[i]
		effective, ok := r.EffectiveTime()
		if !ok {
			return nil, fmt.Errorf("observation %q has no effective time", r.ID)
		}
		date := dataset.DateOf(effective)
		info := triageCodings(r.Codings())

		recording, recordingUnit := mergeSampledData(r.Component)

		rows = append(rows, []interface{}{
			r.SubjectID(), r.ID, date,
			orNA(info.quantityName),
			componentValue(r.Component, 0),
			componentValue(r.Component, 1),
			orNA(componentUnit(r.Component, 1)),
			orNA(componentString(r.Component, 2)),
			componentValue(r.Component, 3),
			orNA(componentUnit(r.Component, 3)),
			orNA(recordingUnit),
			orNA(recording),
			info.loincCode, info.display, info.healthKitCode,
		})
	}

	return dataset.New(fhirmodels.ResourceTypeECGObservation, cols, rows)
}

// flattenResponses emits one row per answered question, plus a synthetic
// composite-score row per response for instruments with built-in scoring.
func (f *Flattener) flattenResponses(resources []fhir.Resource) (*dataset.Dataset, error) {
	if f.mapper == nil {
		return nil, fmt.Errorf("no survey mapper configured; questionnaire responses cannot be flattened")
	}
	cols, err := dataset.Schema(fhirmodels.ResourceTypeQuestionnaireResponse)
	if err != nil {
		return nil, err
	}

	var rows [][]interface{}
	for i := range resources {
		r := &resources[i]
		authored, ok := r.AuthoredTime()
		if !ok {
			return nil, fmt.Errorf("questionnaire response %q has no authored time", r.ID)
		}
		date := dataset.DateOf(authored)
		user := r.SubjectID()
		title := f.mapper.TitleFor(r.Questionnaire)

		var answerCodes []string
		for _, item := range leafItems(r.Item) {
			questionText, ok := f.mapper.QuestionText(item.LinkID)
			if !ok || questionText == "" {
				questionText = survey.UnknownQuestionText
			}
			code, text := f.resolveAnswer(item)
			answerCodes = append(answerCodes, code)
			rows = append(rows, []interface{}{
				user, r.ID, date, title,
				item.LinkID, questionText, code, text,
			})
		}

		if survey.SupportsScoring(title) {
			score, label, err := survey.Composite(title, answerCodes)
			if err != nil {
				return nil, err
			}
			rows = append(rows, []interface{}{
				user, r.ID, date, title,
				survey.ScoreQuestionID, "Composite risk score",
				strconv.FormatFloat(score, 'f', -1, 64), label,
			})
		}
	}

	return dataset.New(fhirmodels.ResourceTypeQuestionnaireResponse, cols, rows)
}

// leafItems flattens the response item tree into the answered questions;
// group items contribute their children.
func leafItems(items []fhir.ResponseItem) []fhir.ResponseItem {
	var out []fhir.ResponseItem
	for _, item := range items {
		if len(item.Item) > 0 {
			out = append(out, leafItems(item.Item)...)
			continue
		}
		out = append(out, item)
	}
	return out
}

// resolveAnswer picks the first populated value of the item's first answer
// and resolves its display text through the mapper.
func (f *Flattener) resolveAnswer(item fhir.ResponseItem) (code, text string) {
	if len(item.Answer) == 0 {
		return "No answer provided", "No answer provided"
	}
	answer := item.Answer[0]

	switch {
	case answer.ValueInteger != nil:
		code = strconv.Itoa(*answer.ValueInteger)
		if display, ok := f.mapper.AnswerText(item.LinkID, code); ok {
			return code, display
		}
		return code, code
	case answer.ValueDate != "":
		return answer.ValueDate, answer.ValueDate
	case answer.ValueTime != "":
		return answer.ValueTime, answer.ValueTime
	case answer.ValueString != "":
		return answer.ValueString, answer.ValueString
	case answer.ValueCoding != nil:
		code = answer.ValueCoding.Code
		if display, ok := f.mapper.AnswerText(item.LinkID, code); ok {
			return code, display
		}
		if answer.ValueCoding.Display != "" {
			return code, answer.ValueCoding.Display
		}
		return code, code
	default:
		return "N/A", "N/A"
	}
}

// mergeSampledData joins every component's waveform samples into one
// space-separated series and returns the unit of the first origin seen.
func mergeSampledData(components []fhir.Component) (data, unit string) {
	var parts []string
	for _, comp := range components {
		sampled := comp.ValueSampledData
		if sampled == nil {
			continue
		}
		if sampled.Data != "" {
			parts = append(parts, sampled.Data)
		}
		if unit == "" && sampled.Origin != nil {
			unit = sampled.Origin.Unit
		}
	}
	return strings.Join(parts, " "), unit
}

func componentValue(components []fhir.Component, i int) interface{} {
	if i >= len(components) || components[i].ValueQuantity == nil {
		return nil
	}
	if v := components[i].ValueQuantity.Value; v != nil {
		return *v
	}
	return nil
}

func componentUnit(components []fhir.Component, i int) string {
	if i >= len(components) || components[i].ValueQuantity == nil {
		return ""
	}
	return components[i].ValueQuantity.Unit
}

func componentString(components []fhir.Component, i int) string {
	if i >= len(components) {
		return ""
	}
	return components[i].ValueString
}

func stringOrNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func orNA(v interface{}) interface{} {
	switch cell := v.(type) {
	case nil:
		return "N/A"
	case string:
		if cell == "" {
			return "N/A"
		}
		return cell
	default:
		return v
	}
}
