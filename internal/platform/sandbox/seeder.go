// Package sandbox provides synthetic health record generation for
// sandbox/demo environments. It produces reproducible mobile-health style
// resources suitable for integration testing, developer on-boarding, and
// demos of the flattening pipeline.
package sandbox

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/fhirtab/fhirtab/internal/platform/fhir"
	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config controls the volume and shape of generated synthetic data.
type Config struct {
	Users int   `json:"users"`
	Days  int   `json:"days"`
	Seed  int64 `json:"seed"`
}

// DefaultConfig returns a Config with sensible demo defaults.
func DefaultConfig() Config {
	return Config{
		Users: 3,
		Days:  30,
		Seed:  1,
	}
}

// PHQ9Canonical is the canonical reference stamped on generated depression
// questionnaire responses.
const PHQ9Canonical = "http://fhirtab.dev/questionnaires/phq-9"

// PHQ9Definition is a minimal PHQ-9 questionnaire definition matching the
// generated responses, usable as a survey mapper input.
var PHQ9Definition = []byte(`{
  "resourceType": "Questionnaire",
  "url": "http://fhirtab.dev/questionnaires/phq-9",
  "title": "PHQ-9",
  "contained": [
    {
      "resourceType": "ValueSet",
      "id": "phq9-frequency",
      "compose": {
        "include": [
          {
            "concept": [
              {"code": "na", "display": "Not at all", "extension": [{"url": "http://hl7.org/fhir/StructureDefinition/ordinalValue", "valueDecimal": 0}]},
              {"code": "sd", "display": "Several days", "extension": [{"url": "http://hl7.org/fhir/StructureDefinition/ordinalValue", "valueDecimal": 1}]},
              {"code": "mh", "display": "More than half the days", "extension": [{"url": "http://hl7.org/fhir/StructureDefinition/ordinalValue", "valueDecimal": 2}]},
              {"code": "ne", "display": "Nearly every day", "extension": [{"url": "http://hl7.org/fhir/StructureDefinition/ordinalValue", "valueDecimal": 3}]}
            ]
          }
        ]
      }
    }
  ],
  "item": [
    {"linkId": "phq9-q1", "text": "Little interest or pleasure in doing things", "answerValueSet": "#phq9-frequency"},
    {"linkId": "phq9-q2", "text": "Feeling down, depressed, or hopeless", "answerValueSet": "#phq9-frequency"},
    {"linkId": "phq9-q3", "text": "Trouble falling or staying asleep, or sleeping too much", "answerValueSet": "#phq9-frequency"},
    {"linkId": "phq9-q4", "text": "Feeling tired or having little energy", "answerValueSet": "#phq9-frequency"},
    {"linkId": "phq9-q5", "text": "Poor appetite or overeating", "answerValueSet": "#phq9-frequency"},
    {"linkId": "phq9-q6", "text": "Feeling bad about yourself", "answerValueSet": "#phq9-frequency"},
    {"linkId": "phq9-q7", "text": "Trouble concentrating on things", "answerValueSet": "#phq9-frequency"},
    {"linkId": "phq9-q8", "text": "Moving or speaking noticeably slowly, or being fidgety or restless", "answerValueSet": "#phq9-frequency"},
    {"linkId": "phq9-q9", "text": "Thoughts that you would be better off dead or of hurting yourself", "answerValueSet": "#phq9-frequency"}
  ]
}`)

// ---------------------------------------------------------------------------
// Generator
// ---------------------------------------------------------------------------

// Generator produces synthetic resources. Values are reproducible for a
// given seed; resource ids are random.
type Generator struct {
	cfg Config
}

// NewGenerator builds a Generator, filling zero config fields from the
// defaults.
func NewGenerator(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.Users <= 0 {
		cfg.Users = def.Users
	}
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &Generator{cfg: cfg}
}

// userID returns the synthetic id of the n-th sandbox user.
func userID(n int) string {
	return fmt.Sprintf("sandbox-user-%02d", n+1)
}

// Observations generates daily step count, heart rate, and oxygen
// saturation observations for every sandbox user, ending yesterday.
func (g *Generator) Observations() []fhir.Resource {
	rng := rand.New(rand.NewSource(g.cfg.Seed))
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -g.cfg.Days)

	var out []fhir.Resource
	for u := 0; u < g.cfg.Users; u++ {
		user := userID(u)
		for day := 0; day < g.cfg.Days; day++ {
			at := start.AddDate(0, 0, day).Add(8 * time.Hour)
			out = append(out,
				quantityObservation(user, at,
					fhirmodels.CodeStepCount, "Number of steps in unspecified time Pedometer",
					fhirmodels.HKStepCount, "steps",
					float64(2000+rng.Intn(13000))),
				quantityObservation(user, at,
					fhirmodels.CodeHeartRate, "Heart rate",
					fhirmodels.HKHeartRate, "beats/minute",
					float64(55+rng.Intn(40))),
				quantityObservation(user, at,
					fhirmodels.CodeOxygenSaturation, "Oxygen saturation in Arterial blood by Pulse oximetry",
					"HKQuantityTypeIdentifierOxygenSaturation", "%",
					float64(94+rng.Intn(6))),
			)
		}
	}
	return out
}

// ECGObservations generates one electrocardiogram recording per user.
func (g *Generator) ECGObservations() []fhir.Resource {
	rng := rand.New(rand.NewSource(g.cfg.Seed + 1))
	at := time.Now().UTC().Truncate(24 * time.Hour).Add(-12 * time.Hour)

	out := make([]fhir.Resource, 0, g.cfg.Users)
	for u := 0; u < g.cfg.Users; u++ {
		out = append(out, ecgObservation(userID(u), at, rng))
	}
	return out
}

// QuestionnaireResponses generates one completed depression screening
// response per user.
func (g *Generator) QuestionnaireResponses() []fhir.Resource {
	rng := rand.New(rand.NewSource(g.cfg.Seed + 2))
	at := time.Now().UTC().Truncate(24 * time.Hour).Add(-10 * time.Hour)

	out := make([]fhir.Resource, 0, g.cfg.Users)
	for u := 0; u < g.cfg.Users; u++ {
		items := make([]fhir.ResponseItem, 0, 9)
		for q := 1; q <= 9; q++ {
			v := rng.Intn(4)
			items = append(items, fhir.ResponseItem{
				LinkID: fmt.Sprintf("phq9-q%d", q),
				Answer: []fhir.Answer{{ValueInteger: &v}},
			})
		}
		out = append(out, fhir.Resource{
			ResourceType:  fhirmodels.ResourceTypeQuestionnaireResponse,
			ID:            uuid.NewString(),
			Status:        fhirmodels.QRStatusCompleted,
			Subject:       &fhir.Reference{ID: userID(u)},
			Questionnaire: PHQ9Canonical,
			Authored:      at.Format(time.RFC3339),
			Item:          items,
		})
	}
	return out
}

func quantityObservation(user string, at time.Time, loinc, display, hkCode, unit string, value float64) fhir.Resource {
	return fhir.Resource{
		ResourceType:      fhirmodels.ResourceTypeObservation,
		ID:                uuid.NewString(),
		Status:            "final",
		Subject:           &fhir.Reference{ID: user},
		EffectiveDateTime: at.Format(time.RFC3339),
		Code: &fhir.CodeableConcept{
			Coding: []fhir.Coding{
				{System: fhirmodels.SystemLOINC, Code: loinc, Display: display},
				{System: fhirmodels.SystemAppleHealthKit, Code: hkCode, Display: display},
			},
		},
		ValueQuantity: &fhir.Quantity{Value: &value, Unit: unit},
	}
}

func ecgObservation(user string, at time.Time, rng *rand.Rand) fhir.Resource {
	count := float64(15360)
	freq := float64(512)
	heartRate := float64(60 + rng.Intn(30))
	period := 1.953125

	samples := make([]byte, 0, 256)
	for i := 0; i < 30; i++ {
		if i > 0 {
			samples = append(samples, ' ')
		}
		samples = append(samples, fmt.Sprintf("%.2f", rng.Float64()*120-60)...)
	}

	return fhir.Resource{
		ResourceType:      fhirmodels.ResourceTypeObservation,
		ID:                uuid.NewString(),
		Status:            "final",
		Subject:           &fhir.Reference{ID: user},
		EffectiveDateTime: at.Format(time.RFC3339),
		Code: &fhir.CodeableConcept{
			Coding: []fhir.Coding{
				{System: fhirmodels.SystemMDC, Code: fhirmodels.CodeECGRecording, Display: "MDC_ECG_ELEC_POTL"},
			},
		},
		Component: []fhir.Component{
			{
				Code:          fhir.CodeableConcept{Text: "Number of measurements"},
				ValueQuantity: &fhir.Quantity{Value: &count},
			},
			{
				Code:          fhir.CodeableConcept{Text: "Sampling frequency"},
				ValueQuantity: &fhir.Quantity{Value: &freq, Unit: "Hz"},
			},
			{
				Code:        fhir.CodeableConcept{Text: "Classification"},
				ValueString: "sinusRhythm",
			},
			{
				Code:          fhir.CodeableConcept{Text: "Average heart rate"},
				ValueQuantity: &fhir.Quantity{Value: &heartRate, Unit: "beats/minute"},
			},
			{
				Code: fhir.CodeableConcept{Text: "Recording"},
				ValueSampledData: &fhir.SampledData{
					Origin: &fhir.Quantity{Unit: "uV"},
					Period: &period,
					Data:   string(samples),
				},
			},
		},
	}
}
