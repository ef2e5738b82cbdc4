package dataset

import (
	"fmt"

	"github.com/fhirtab/fhirtab/pkg/fhirmodels"
)

// Column names shared by all flattened datasets. The UpperCamel spelling is
// the wire format consumed by downstream exports and must not change.
const (
	ColUserID                 = "UserId"
	ColResourceID             = "ResourceId"
	ColEffectiveDateTime      = "EffectiveDateTime"
	ColQuantityName           = "QuantityName"
	ColQuantityUnit           = "QuantityUnit"
	ColQuantityValue          = "QuantityValue"
	ColLoincCode              = "LoincCode"
	ColDisplay                = "Display"
	ColAppleHealthKitCode     = "AppleHealthKitCode"
	ColNumberOfMeasurements   = "NumberOfMeasurements"
	ColSamplingFrequency      = "SamplingFrequency"
	ColSamplingFrequencyUnit  = "SamplingFrequencyUnit"
	ColECGClassification      = "AppleElectrocardiogramClassification"
	ColHeartRate              = "HeartRate"
	ColHeartRateUnit          = "HeartRateUnit"
	ColECGRecordingUnit       = "ECGRecordingUnit"
	ColECGRecording           = "ECGRecording"
	ColAuthoredDate           = "AuthoredDate"
	ColQuestionnaireTitle     = "QuestionnaireTitle"
	ColQuestionID             = "QuestionId"
	ColQuestionText           = "QuestionText"
	ColAnswerCode             = "AnswerCode"
	ColAnswerText             = "AnswerText"
	ColRiskScore              = "RiskScore"
	ColScoreInterpretation    = "ScoreInterpretation"
)

// resourceColumns maps each resource type tag to its required column schema,
// in output order.
var resourceColumns = map[string][]string{
	fhirmodels.ResourceTypeObservation: {
		ColUserID,
		ColResourceID,
		ColEffectiveDateTime,
		ColQuantityName,
		ColQuantityUnit,
		ColQuantityValue,
		ColLoincCode,
		ColDisplay,
		ColAppleHealthKitCode,
	},
	fhirmodels.ResourceTypeECGObservation: {
		ColUserID,
		ColResourceID,
		ColEffectiveDateTime,
		ColQuantityName,
		ColNumberOfMeasurements,
		ColSamplingFrequency,
		ColSamplingFrequencyUnit,
		ColECGClassification,
		ColHeartRate,
		ColHeartRateUnit,
		ColECGRecordingUnit,
		ColECGRecording,
		ColLoincCode,
		ColDisplay,
		ColAppleHealthKitCode,
	},
	fhirmodels.ResourceTypeQuestionnaireResponse: {
		ColUserID,
		ColResourceID,
		ColAuthoredDate,
		ColQuestionnaireTitle,
		ColQuestionID,
		ColQuestionText,
		ColAnswerCode,
		ColAnswerText,
	},
	fhirmodels.ResourceTypeScoredResponse: {
		ColUserID,
		ColResourceID,
		ColAuthoredDate,
		ColQuestionnaireTitle,
		ColRiskScore,
		ColScoreInterpretation,
	},
}

// Schema returns the required column set, in order, for a resource type.
func Schema(resourceType string) ([]string, error) {
	cols, ok := resourceColumns[resourceType]
	if !ok {
		return nil, fmt.Errorf("unsupported resource type: %q", resourceType)
	}
	out := make([]string, len(cols))
	copy(out, cols)
	return out, nil
}

// DateColumn returns the column carrying the civil date for a resource type:
// EffectiveDateTime for observation variants, AuthoredDate for survey
// variants.
func DateColumn(resourceType string) (string, error) {
	switch resourceType {
	case fhirmodels.ResourceTypeObservation, fhirmodels.ResourceTypeECGObservation:
		return ColEffectiveDateTime, nil
	case fhirmodels.ResourceTypeQuestionnaireResponse, fhirmodels.ResourceTypeScoredResponse:
		return ColAuthoredDate, nil
	default:
		return "", fmt.Errorf("unsupported resource type: %q", resourceType)
	}
}
