package fhir

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

// UnknownSubjectID is used when a resource carries no usable subject reference.
const UnknownSubjectID = "N/A"

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Reference points at another resource. Mobile health exports frequently
// carry the subject as an element id rather than a relative reference, so
// both forms are kept.
type Reference struct {
	ID        string `json:"id,omitempty"`
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Quantity struct {
	Value  *float64 `json:"value,omitempty"`
	Unit   string   `json:"unit,omitempty"`
	System string   `json:"system,omitempty"`
	Code   string   `json:"code,omitempty"`
}

// SampledData carries a waveform: a space-separated series of sampled
// values plus the origin and sampling period metadata.
type SampledData struct {
	Origin     *Quantity `json:"origin,omitempty"`
	Period     *float64  `json:"period,omitempty"`
	Factor     *float64  `json:"factor,omitempty"`
	Dimensions *int      `json:"dimensions,omitempty"`
	Data       string    `json:"data,omitempty"`
}

// Component is one sub-reading of an observation (e.g. the systolic half of
// a blood pressure panel, or one lead of an ECG recording).
type Component struct {
	Code             CodeableConcept `json:"code"`
	ValueQuantity    *Quantity       `json:"valueQuantity,omitempty"`
	ValueString      string          `json:"valueString,omitempty"`
	ValueSampledData *SampledData    `json:"valueSampledData,omitempty"`
}

// Period holds raw FHIR date strings; FHIR permits date-only values that
// encoding/json cannot decode into time.Time directly.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Answer is a single questionnaire item answer. Exactly one value field is
// populated in conformant data.
type Answer struct {
	ValueInteger *int     `json:"valueInteger,omitempty"`
	ValueDecimal *float64 `json:"valueDecimal,omitempty"`
	ValueBoolean *bool    `json:"valueBoolean,omitempty"`
	ValueDate    string   `json:"valueDate,omitempty"`
	ValueTime    string   `json:"valueTime,omitempty"`
	ValueString  string   `json:"valueString,omitempty"`
	ValueCoding  *Coding  `json:"valueCoding,omitempty"`
}

// ResponseItem is one answered (or skipped) question in a
// QuestionnaireResponse. Groups nest one level deep in practice.
type ResponseItem struct {
	LinkID string         `json:"linkId"`
	Text   string         `json:"text,omitempty"`
	Answer []Answer       `json:"answer,omitempty"`
	Item   []ResponseItem `json:"item,omitempty"`
}

// Resource is a lenient decoding of the raw record shapes handed over by
// the ingestion side: quantity observations, ECG waveform observations, and
// questionnaire responses. Fields irrelevant to flattening are dropped at
// decode time.
type Resource struct {
	ResourceType      string           `json:"resourceType"`
	ID                string           `json:"id,omitempty"`
	Status            string           `json:"status,omitempty"`
	Code              *CodeableConcept `json:"code,omitempty"`
	Subject           *Reference       `json:"subject,omitempty"`
	EffectiveDateTime string           `json:"effectiveDateTime,omitempty"`
	EffectivePeriod   *Period          `json:"effectivePeriod,omitempty"`
	ValueQuantity     *Quantity        `json:"valueQuantity,omitempty"`
	Component         []Component      `json:"component,omitempty"`
	Questionnaire     string           `json:"questionnaire,omitempty"`
	Authored          string           `json:"authored,omitempty"`
	Item              []ResponseItem   `json:"item,omitempty"`
}

// Kind returns the variant tag used for flattening dispatch. Observations
// whose coding carries the MDC ECG waveform code are promoted to the
// electrocardiographic variant, matching how the upstream exporters tag
// ECG recordings.
func (r *Resource) Kind() string {
	if r.ResourceType != fhirmodels.ResourceTypeObservation {
		return r.ResourceType
	}
	for _, c := range r.Codings() {
		if c.Code == fhirmodels.CodeECGRecording {
			return fhirmodels.ResourceTypeECGObservation
		}
	}
	return fhirmodels.ResourceTypeObservation
}

// SubjectID resolves the user this record belongs to: the subject element
// id when present, else the trailing segment of a relative reference
// ("Patient/u1" -> "u1"), else UnknownSubjectID.
func (r *Resource) SubjectID() string {
	if r.Subject == nil {
		return UnknownSubjectID
	}
	if r.Subject.ID != "" {
		return r.Subject.ID
	}
	if ref := r.Subject.Reference; ref != "" {
		if idx := strings.LastIndexByte(ref, '/'); idx >= 0 && idx+1 < len(ref) {
			return ref[idx+1:]
		}
		return ref
	}
	return UnknownSubjectID
}

// EffectiveTime returns the observation timestamp: effectiveDateTime when
// set, else the start of effectivePeriod.
func (r *Resource) EffectiveTime() (time.Time, bool) {
	if t, ok := ParseDateTime(r.EffectiveDateTime); ok {
		return t, true
	}
	if r.EffectivePeriod != nil {
		return ParseDateTime(r.EffectivePeriod.Start)
	}
	return time.Time{}, false
}

// AuthoredTime returns the completion timestamp of a questionnaire response.
func (r *Resource) AuthoredTime() (time.Time, bool) {
	return ParseDateTime(r.Authored)
}

// Codings returns the resource's code.coding list, or nil.
func (r *Resource) Codings() []Coding {
	if r.Code == nil {
		return nil
	}
	return r.Code.Coding
}

// FromMap decodes a generic JSON map into a Resource.
func FromMap(m map[string]interface{}) (Resource, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return Resource{}, fmt.Errorf("encode resource map: %w", err)
	}
	var r Resource
	if err := json.Unmarshal(raw, &r); err != nil {
		return Resource{}, fmt.Errorf("decode resource: %w", err)
	}
	return r, nil
}

// ParseResources decodes a JSON payload holding either a bare array of
// resources or a FHIR Bundle with entry[].resource.
func ParseResources(data []byte) ([]Resource, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty resource payload")
	}

	if strings.HasPrefix(trimmed, "[") {
		var resources []Resource
		if err := json.Unmarshal(data, &resources); err != nil {
			return nil, fmt.Errorf("decode resource array: %w", err)
		}
		return resources, nil
	}

	var bundle struct {
		ResourceType string `json:"resourceType"`
		Entry        []struct {
			Resource Resource `json:"resource"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if bundle.ResourceType != "" && bundle.ResourceType != "Bundle" {
		var single Resource
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("decode resource: %w", err)
		}
		return []Resource{single}, nil
	}
	resources := make([]Resource, 0, len(bundle.Entry))
	for _, e := range bundle.Entry {
		resources = append(resources, e.Resource)
	}
	return resources, nil
}

// dateTimeLayouts are tried in order; FHIR instants carry zone offsets
// while plain dates and local datetimes do not.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDateTime parses a FHIR date, dateTime, or instant string.
func ParseDateTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
	Expression  []string         `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome("error", "processing", diagnostics)
}

func InvalidOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome("error", "invalid", diagnostics)
}
