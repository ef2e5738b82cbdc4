// Package survey resolves questionnaire response items against their
// questionnaire definitions (question text, answer ordinal values, titles)
// and computes composite risk scores for the supported instruments.
package survey

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

// UnknownQuestionText is used when a response item has no matching question
// in any loaded questionnaire definition.
const UnknownQuestionText = "Unknown Question"

// questionnaireDoc is a lenient decoding of a FHIR Questionnaire definition,
// limited to the elements the mapper reads.
type questionnaireDoc struct {
	ResourceType string              `json:"resourceType"`
	URL          string              `json:"url,omitempty"`
	Title        string              `json:"title,omitempty"`
	Item         []questionnaireItem `json:"item,omitempty"`
	Contained    []containedValueSet `json:"contained,omitempty"`
}

type questionnaireItem struct {
	LinkID         string              `json:"linkId"`
	Text           string              `json:"text,omitempty"`
	AnswerValueSet string              `json:"answerValueSet,omitempty"`
	AnswerOption   []answerOption      `json:"answerOption,omitempty"`
	Item           []questionnaireItem `json:"item,omitempty"`
}

type answerOption struct {
	ValueInteger *int    `json:"valueInteger,omitempty"`
	ValueDate    string  `json:"valueDate,omitempty"`
	ValueTime    string  `json:"valueTime,omitempty"`
	ValueString  string  `json:"valueString,omitempty"`
	ValueCoding  *coding `json:"valueCoding,omitempty"`
}

type coding struct {
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type containedValueSet struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	Compose      struct {
		Include []struct {
			Concept []valueSetConcept `json:"concept,omitempty"`
		} `json:"include,omitempty"`
	} `json:"compose"`
}

type valueSetConcept struct {
	Code      string `json:"code,omitempty"`
	Display   string `json:"display,omitempty"`
	Extension []struct {
		URL          string   `json:"url"`
		ValueDecimal *float64 `json:"valueDecimal,omitempty"`
	} `json:"extension,omitempty"`
}

// definition is one parsed questionnaire: question text and answer display
// lookups keyed by linkId.
type definition struct {
	url       string
	title     string
	questions map[string]string
	answers   map[string]map[string]string
}

// Mapper resolves question text, answer labels, and titles across one or
// more questionnaire definitions. Immutable after construction.
type Mapper struct {
	defs []definition
}

// NewMapper parses questionnaire definition JSON documents into a Mapper.
// At least one definition is required.
func NewMapper(docs ...[]byte) (*Mapper, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("at least one questionnaire definition is required")
	}
	m := &Mapper{defs: make([]definition, 0, len(docs))}
	for i, raw := range docs {
		var doc questionnaireDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode questionnaire %d: %w", i, err)
		}
		m.defs = append(m.defs, buildDefinition(&doc))
	}
	return m, nil
}

func buildDefinition(doc *questionnaireDoc) definition {
	def := definition{
		url:       doc.URL,
		title:     doc.Title,
		questions: make(map[string]string),
		answers:   make(map[string]map[string]string),
	}
	collectItems(doc, doc.Item, &def)
	return def
}

// collectItems walks the questionnaire item tree. Group items contribute
// their children; leaf items contribute question text and answer options.
func collectItems(doc *questionnaireDoc, items []questionnaireItem, def *definition) {
	for _, item := range items {
		if len(item.Item) > 0 {
			collectItems(doc, item.Item, def)
			continue
		}
		if item.LinkID == "" {
			continue
		}
		def.questions[item.LinkID] = item.Text
		def.answers[item.LinkID] = answerMapFor(doc, item)
	}
}

// answerMapFor extracts the answer-code -> display map for one question,
// either from a contained ValueSet referenced by answerValueSet or from an
// inline answerOption list. ValueSet concepts carrying the ordinalValue
// extension are keyed by the ordinal instead of the concept code.
func answerMapFor(doc *questionnaireDoc, item questionnaireItem) map[string]string {
	out := make(map[string]string)

	if ref := strings.TrimPrefix(item.AnswerValueSet, "#"); item.AnswerValueSet != "" {
		for _, contained := range doc.Contained {
			if contained.ID != ref {
				continue
			}
			for _, include := range contained.Compose.Include {
				for _, concept := range include.Concept {
					key := concept.Code
					for _, ext := range concept.Extension {
						if ext.URL == fhirmodels.ExtOrdinalValue && ext.ValueDecimal != nil {
							key = strconv.FormatFloat(*ext.ValueDecimal, 'f', -1, 64)
						}
					}
					if key != "" {
						out[key] = concept.Display
					}
				}
			}
		}
		return out
	}

	for _, opt := range item.AnswerOption {
		switch {
		case opt.ValueInteger != nil:
			v := strconv.Itoa(*opt.ValueInteger)
			out[v] = v
		case opt.ValueDate != "":
			out[opt.ValueDate] = opt.ValueDate
		case opt.ValueTime != "":
			out[opt.ValueTime] = opt.ValueTime
		case opt.ValueString != "":
			out[opt.ValueString] = opt.ValueString
		case opt.ValueCoding != nil:
			out[opt.ValueCoding.Code] = opt.ValueCoding.Display
		}
	}
	return out
}

// Title returns the first loaded questionnaire's title.
func (m *Mapper) Title() string {
	if len(m.defs) == 0 {
		return ""
	}
	return m.defs[0].title
}

// TitleFor resolves a response's canonical questionnaire reference to a
// title. Canonical references may carry a |version suffix. An unmatched or
// empty reference falls back to the first definition's title.
func (m *Mapper) TitleFor(canonical string) string {
	if canonical != "" {
		base := canonical
		if idx := strings.IndexByte(base, '|'); idx >= 0 {
			base = base[:idx]
		}
		for _, def := range m.defs {
			if def.url != "" && def.url == base {
				return def.title
			}
		}
	}
	return m.Title()
}

// QuestionText returns the question text for a linkId, searching all loaded
// definitions in order.
func (m *Mapper) QuestionText(linkID string) (string, bool) {
	for _, def := range m.defs {
		if text, ok := def.questions[linkID]; ok {
			return text, true
		}
	}
	return "", false
}

// AnswerText resolves an answer code (or ordinal value) to its display text
// for a question.
func (m *Mapper) AnswerText(linkID, code string) (string, bool) {
	for _, def := range m.defs {
		if options, ok := def.answers[linkID]; ok {
			if text, ok := options[code]; ok && text != "" {
				return text, true
			}
		}
	}
	return "", false
}
