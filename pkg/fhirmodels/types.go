package fhirmodels

// Common FHIR value set and code system constants used across the application.

// Resource type tags for the record variants the pipeline accepts.
// ScoredQuestionnaireResponse is a derived tag produced by risk scoring, not
// an ingested variant.
const (
	ResourceTypeObservation           = "Observation"
	ResourceTypeECGObservation        = "ElectrocardiographicObservation"
	ResourceTypeQuestionnaireResponse = "QuestionnaireResponse"
	ResourceTypeScoredResponse        = "ScoredQuestionnaireResponse"
)

// Coding systems.
const (
	SystemLOINC          = "http://loinc.org"
	SystemAppleHealthKit = "http://developer.apple.com/documentation/healthkit"
	SystemMDC            = "urn:oid:2.16.840.1.113883.6.24"
	SystemUCUM           = "http://unitsofmeasure.org"
)

// Well-known measurement codes.
const (
	CodeECGRecording      = "131328"
	CodeStepCount         = "55423-8"
	CodeHeartRate         = "8867-4"
	CodeOxygenSaturation  = "59408-5"
	CodeRespiratoryRate   = "9279-1"
	CodeBloodGlucose      = "41653-7"
	CodeBodyWeight        = "29463-7"
	CodeBodyTemperature   = "8310-5"
	CodeSystolicPressure  = "8480-6"
	CodeDiastolicPressure = "8462-4"
	CodeDietaryEnergy     = "9052-2"
	CodeActiveEnergy      = "41981-2"
)

// HealthKit quantity type identifiers that appear alongside LOINC codes.
const (
	HKStepCount               = "HKQuantityTypeIdentifierStepCount"
	HKHeartRate               = "HKQuantityTypeIdentifierHeartRate"
	HKWalkingHeartRateAverage = "HKQuantityTypeIdentifierWalkingHeartRateAverage"
	HKPhysicalEffort          = "HKQuantityTypeIdentifierPhysicalEffort"
	HKVO2Max                  = "HKQuantityTypeIdentifierVO2Max"
	HKDietaryProtein          = "HKQuantityTypeIdentifierDietaryProtein"
)

// ObservationCategory codes per FHIR R4.
const (
	ObsCategoryVitalSigns    = "vital-signs"
	ObsCategoryActivity      = "activity"
	ObsCategorySurvey        = "survey"
	ObsCategoryLaboratory    = "laboratory"
	ObsCategorySocialHistory = "social-history"
)

// Extension URLs.
const (
	ExtOrdinalValue = "http://hl7.org/fhir/StructureDefinition/ordinalValue"
)

// QuestionnaireResponse status codes per FHIR R4.
const (
	QRStatusInProgress = "in-progress"
	QRStatusCompleted  = "completed"
	QRStatusAmended    = "amended"
	QRStatusStopped    = "stopped"
)
