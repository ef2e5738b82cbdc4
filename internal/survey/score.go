package survey

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fhirtab/fhirtab/internal/dataset"
	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

// Instrument titles with built-in composite scoring.
const (
	TitlePHQ9 = "PHQ-9"
	TitleGAD7 = "GAD-7"
	TitleWIQ  = "WIQ"
)

// InvalidScoreLabel marks a composite score outside the instrument's valid
// range.
const InvalidScoreLabel = "Invalid score"

// ScoreQuestionID tags the synthetic per-response row carrying the composite
// score alongside the individual answers.
const ScoreQuestionID = "score"

type severityBand struct {
	lo, hi float64
	label  string
}

var depressionBands = []severityBand{
	{0, 4, "No or minimal depression"},
	{5, 9, "Mild depression"},
	{10, 14, "Moderate depression"},
	{15, 19, "Moderately severe depression"},
	{20, 27, "Severe depression"},
}

var anxietyBands = []severityBand{
	{0, 4, "Minimal anxiety"},
	{5, 9, "Mild anxiety"},
	{10, 14, "Moderate anxiety"},
	{15, math.Inf(1), "Severe anxiety"},
}

var impairmentBands = []severityBand{
	{0, 10, "Severe walking impairment"},
	{20, 50, "Moderate walking impairment"},
	{60, 80, "Mild walking impairment"},
	{90, 100, "No walking impairment"},
}

// wiqDistanceScores maps the WIQ distance answer codes (walking distance in
// feet) to the instrument's 0-100 capability score.
var wiqDistanceScores = map[string]float64{
	"50":   0,
	"150":  10,
	"300":  20,
	"600":  50,
	"900":  80,
	"1500": 100,
}

func interpret(bands []severityBand, score float64) string {
	for _, b := range bands {
		if score >= b.lo && score <= b.hi {
			return b.label
		}
	}
	return InvalidScoreLabel
}

// SupportsScoring reports whether a questionnaire title has a built-in
// composite score.
func SupportsScoring(title string) bool {
	switch title {
	case TitlePHQ9, TitleGAD7, TitleWIQ:
		return true
	}
	return false
}

// SupportedTitles lists the instruments with built-in scoring, sorted.
func SupportedTitles() []string {
	titles := []string{TitlePHQ9, TitleGAD7, TitleWIQ}
	sort.Strings(titles)
	return titles
}

// Composite computes the composite risk score and its interpretation for one
// response's answer codes. PHQ-9 and GAD-7 sum the ordinal answer values; WIQ
// averages the capability scores mapped from the distance answers. Answer
// codes that carry no numeric value (unanswered items) are skipped.
func Composite(title string, answerCodes []string) (float64, string, error) {
	switch title {
	case TitlePHQ9, TitleGAD7:
		var sum float64
		for _, code := range answerCodes {
			v, err := strconv.ParseFloat(code, 64)
			if err != nil {
				continue
			}
			sum += v
		}
		if title == TitlePHQ9 {
			return sum, interpret(depressionBands, sum), nil
		}
		return sum, interpret(anxietyBands, sum), nil

	case TitleWIQ:
		var sum float64
		var n int
		for _, code := range answerCodes {
			v, ok := wiqDistanceScores[code]
			if !ok {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			return 0, InvalidScoreLabel, nil
		}
		score := math.Round(sum/float64(n)*100) / 100
		return score, interpret(impairmentBands, score), nil

	default:
		return 0, "", fmt.Errorf(
			"no risk score defined for questionnaire %q (supported: %s)",
			title, strings.Join(SupportedTitles(), ", "),
		)
	}
}

// Score computes one composite risk score per response in a flattened
// questionnaire dataset. Rows are grouped by user, authored date, and
// questionnaire title; synthetic score rows already present are ignored. The
// result is a ScoredQuestionnaireResponse dataset with one row per group, in
// first-seen order.
func Score(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if ds.ResourceType() != fhirmodels.ResourceTypeQuestionnaireResponse {
		return nil, fmt.Errorf(
			"risk scoring requires a %s dataset, got %s",
			fhirmodels.ResourceTypeQuestionnaireResponse, ds.ResourceType(),
		)
	}

	userIdx, _ := ds.ColumnIndex(dataset.ColUserID)
	dateIdx, _ := ds.ColumnIndex(dataset.ColAuthoredDate)
	titleIdx, _ := ds.ColumnIndex(dataset.ColQuestionnaireTitle)
	questionIdx, _ := ds.ColumnIndex(dataset.ColQuestionID)
	answerIdx, _ := ds.ColumnIndex(dataset.ColAnswerCode)

	type groupKey struct {
		user  string
		date  dataset.Date
		title string
	}
	groups := make(map[groupKey][]string)
	var order []groupKey

	var walkErr error
	ds.Each(func(_ int, row []interface{}) {
		if walkErr != nil {
			return
		}
		if dataset.CellString(row[questionIdx]) == ScoreQuestionID {
			return
		}
		date, ok := dataset.CellDate(row[dateIdx])
		if !ok {
			walkErr = fmt.Errorf("row has no authored date")
			return
		}
		key := groupKey{
			user:  dataset.CellString(row[userIdx]),
			date:  date,
			title: dataset.CellString(row[titleIdx]),
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], dataset.CellString(row[answerIdx]))
	})
	if walkErr != nil {
		return nil, walkErr
	}

	cols, err := dataset.Schema(fhirmodels.ResourceTypeScoredResponse)
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, 0, len(order))
	for _, key := range order {
		score, label, err := Composite(key.title, groups[key])
		if err != nil {
			return nil, err
		}
		rows = append(rows, []interface{}{
			key.user, "N/A", key.date, key.title, score, label,
		})
	}
	return dataset.New(fhirmodels.ResourceTypeScoredResponse, cols, rows)
}
