package registry

import "github.com/fhirtab/fhirtab/pkg/fhirmodels"

// rng is a table-literal shorthand for an inclusive plausibility interval.
func rng(lo, hi float64) *ValueRange {
	return &ValueRange{Lo: lo, Hi: hi}
}

// builtinEntries is the static code table: LOINC and HealthKit quantity
// codes with display names, units, plausible value ranges, and the
// aggregation strategy applied by the processing pipeline. Codes without a
// range pass through outlier filtering unfiltered.
var builtinEntries = []Entry{
	// Summed per day: cumulative quantities.
	{Code: "9052-2", Display: "Calorie intake total", Unit: "kcal", System: fhirmodels.SystemLOINC, Range: rng(0, 2700), Strategy: StrategySum},
	{Code: "55423-8", Display: "Number of steps in unspecified time Pedometer", Unit: "steps", System: fhirmodels.SystemLOINC, Range: rng(0, 30000), Strategy: StrategySum},
	{Code: "41981-2", Display: "Calories burned", Unit: "kcal", System: fhirmodels.SystemLOINC, Strategy: StrategySum},
	{Code: "93816-7", Display: "Swimming distance unspecified time", Unit: "m", System: fhirmodels.SystemLOINC, Strategy: StrategySum},
	{Code: "100304-5", Display: "Cycling distance unspecified time", Unit: "m", System: fhirmodels.SystemLOINC, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierAppleExerciseTime", Display: "Apple Exercise Time", Unit: "min", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierAppleMoveTime", Display: "Apple Move Time", Unit: "min", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierAppleStandTime", Display: "Apple Stand Time", Unit: "min", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierBasalEnergyBurned", Display: "Basal Energy Burned", Unit: "kcal", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryBiotin", Display: "Dietary Biotin", Unit: "ug", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryCaffeine", Display: "Dietary Caffeine", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryCalcium", Display: "Dietary Calcium", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryCarbohydrates", Display: "Dietary Carbohydrates", Unit: "g", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryChloride", Display: "Dietary Chloride", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryCholesterol", Display: "Dietary Cholesterol", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryChromium", Display: "Dietary Chromium", Unit: "ug", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryCopper", Display: "Dietary Copper", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryFatMonounsaturated", Display: "Dietary Monounsaturated Fat", Unit: "g", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryFatPolyunsaturated", Display: "Dietary Polyunsaturated Fat", Unit: "g", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryFatSaturated", Display: "Dietary Saturated Fat", Unit: "g", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryFatTotal", Display: "Dietary Fat", Unit: "g", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryFiber", Display: "Dietary Fiber", Unit: "g", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryFolate", Display: "Dietary Folate", Unit: "ug", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryIodine", Display: "Dietary Iodine", Unit: "ug", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryIron", Display: "Dietary Iron", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryMagnesium", Display: "Dietary Magnesium", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryManganese", Display: "Dietary Manganese", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryMolybdenum", Display: "Dietary Molybdenum", Unit: "ug", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryNiacin", Display: "Dietary Niacin", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryPantothenicAcid", Display: "Dietary Pantothenic Acid", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryPhosphorus", Display: "Dietary Phosphorus", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryPotassium", Display: "Dietary Potassium", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryProtein", Display: "Dietary Protein", Unit: "g", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryRiboflavin", Display: "Dietary Riboflavin", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietarySelenium", Display: "Dietary Selenium", Unit: "ug", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietarySodium", Display: "Dietary Sodium", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietarySugar", Display: "Dietary Sugar", Unit: "g", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryThiamin", Display: "Dietary Thiamin", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryVitaminA", Display: "Dietary Vitamin A", Unit: "ug", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryVitaminB12", Display: "Dietary Vitamin B12", Unit: "ug", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryVitaminB6", Display: "Dietary Vitamin B6", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryVitaminC", Display: "Dietary Vitamin C", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryVitaminD", Display: "Dietary Vitamin D", Unit: "ug", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryVitaminE", Display: "Dietary Vitamin E", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryVitaminK", Display: "Dietary Vitamin K", Unit: "ug", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryWater", Display: "Dietary Water", Unit: "L", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDietaryZinc", Display: "Dietary Zinc", Unit: "mg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDistanceCycling", Display: "Cycling Distance", Unit: "m", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDistanceDownhillSnowSports", Display: "Downhill Snow Sports Distance", Unit: "m", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDistanceWalkingRunning", Display: "Walking + Running Distance", Unit: "m", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierDistanceWheelchair", Display: "Wheelchair Distance", Unit: "m", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},
	{Code: "HKQuantityTypeIdentifierSwimmingStrokeCount", Display: "Swimming Stroke Count", Unit: "count", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategySum},

	// Averaged per day: rate-like quantities.
	{Code: "8867-4", Display: "Heart rate", Unit: "beats/minute", System: fhirmodels.SystemLOINC, Range: rng(34, 200), Strategy: StrategyMean},
	{Code: "59408-5", Display: "Oxygen saturation in Arterial blood by Pulse oximetry", Unit: "%", System: fhirmodels.SystemLOINC, Range: rng(80, 100), Strategy: StrategyMean},
	{Code: "61006-3", Display: "Peripheral Perfusion Index", Unit: "%", System: fhirmodels.SystemLOINC, Range: rng(0.2, 5), Strategy: StrategyMean},
	{Code: "9279-1", Display: "Respiratory rate", Unit: "breaths/minute", System: fhirmodels.SystemLOINC, Range: rng(10, 24), Strategy: StrategyMean},
	{Code: "40443-4", Display: "Heart rate --resting", Unit: "beats/minute", System: fhirmodels.SystemLOINC, Range: rng(40, 110), Strategy: StrategyMean},
	{Code: "HKQuantityTypeIdentifierWalkingHeartRateAverage", Display: "Walking Heart Rate Average", Unit: "beats/minute", System: fhirmodels.SystemAppleHealthKit, Range: rng(55, 120), Strategy: StrategyMean},

	// Neither summed nor averaged, but range-filtered.
	{Code: "80404-7", Display: "Heart rate variability SDNN", Unit: "ms", System: fhirmodels.SystemLOINC, Range: rng(40, 120), Strategy: StrategyNone},
	{Code: "8462-4", Display: "Diastolic blood pressure", Unit: "mmHg", System: fhirmodels.SystemLOINC, Range: rng(30, 100), Strategy: StrategyNone},
	{Code: "8480-6", Display: "Systolic blood pressure", Unit: "mmHg", System: fhirmodels.SystemLOINC, Range: rng(50, 200), Strategy: StrategyNone},
	{Code: "8310-5", Display: "Body temperature", Unit: "C", System: fhirmodels.SystemLOINC, Range: rng(34, 42), Strategy: StrategyNone},
	{Code: "HKQuantityTypeIdentifierBasalBodyTemperature", Display: "Basal Body Temperature", Unit: "C", System: fhirmodels.SystemAppleHealthKit, Range: rng(34, 42), Strategy: StrategyNone},
	{Code: "74859-0", Display: "Blood alcohol content", Unit: "%", System: fhirmodels.SystemLOINC, Range: rng(0, 5), Strategy: StrategyNone},
	{Code: "41653-7", Display: "Glucose [Mass/volume] in Capillary blood by Glucometer", Unit: "mg/dL", System: fhirmodels.SystemLOINC, Range: rng(18, 190), Strategy: StrategyNone},
	{Code: "29463-7", Display: "Body weight", Unit: "lbs", System: fhirmodels.SystemLOINC, Range: rng(0, 1000), Strategy: StrategyNone},
	{Code: "39156-5", Display: "Body mass index", Unit: "kg/m2", System: fhirmodels.SystemLOINC, Range: rng(5, 40), Strategy: StrategyNone},
	{Code: "41982-0", Display: "Percentage of body fat Measured", Unit: "%", System: fhirmodels.SystemLOINC, Range: rng(5, 60), Strategy: StrategyNone},
	{Code: "20150-9", Display: "FEV1", Unit: "L", System: fhirmodels.SystemLOINC, Range: rng(1, 6), Strategy: StrategyNone},

	// Neither aggregated nor range-filtered.
	{Code: "HKQuantityTypeIdentifierElectrodermalActivity", Display: "Electrodermal Activity", Unit: "siemens", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategyNone},
	{Code: "HKQuantityTypeIdentifierEnvironmentalAudioExposure", Display: "Environmental Audio Exposure", Unit: "dB(SPL)", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategyNone},
	{Code: "19870-5", Display: "Forced vital capacity [Volume] Respiratory system", Unit: "L", System: fhirmodels.SystemLOINC, Strategy: StrategyNone},
	{Code: "HKQuantityTypeIdentifierHeadphoneAudioExposure", Display: "Headphone Audio Exposure", Unit: "dB(SPL)", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategyNone},
	{Code: "8302-2", Display: "Body height", Unit: "in", System: fhirmodels.SystemLOINC, Strategy: StrategyNone},
	{Code: "HKQuantityTypeIdentifierInhalerUsage", Display: "Inhaler Usage", Unit: "count", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategyNone},
	{Code: "91557-9", Display: "Lean body weight", Unit: "lbs", System: fhirmodels.SystemLOINC, Strategy: StrategyNone},
	{Code: "HKQuantityTypeIdentifierNumberOfTimesFallen", Display: "Number of Times Fallen", Unit: "falls", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategyNone},
	{Code: "19935-6", Display: "Maximum expiratory gas flow Respiratory system airway by Peak flow meter", Unit: "L/min", System: fhirmodels.SystemLOINC, Strategy: StrategyNone},
	{Code: "HKQuantityTypeIdentifierPhysicalEffort", Display: "Apple Physical Effort", Unit: "kcal/hr/kg", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategyNone},
	{Code: "96502-0", Display: "Push count", Unit: "wheelchair pushes", System: fhirmodels.SystemLOINC, Strategy: StrategyNone},
	{Code: "HKQuantityTypeIdentifierUVExposure", Display: "UV Exposure", Unit: "count", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategyNone},
	{Code: "HKQuantityTypeIdentifierVO2Max", Display: "VO2 Max", Unit: "mL/kg/min", System: fhirmodels.SystemAppleHealthKit, Strategy: StrategyNone},
	{Code: "8280-0", Display: "Waist Circumference at umbilicus by Tape measure", Unit: "in", System: fhirmodels.SystemLOINC, Strategy: StrategyNone},

	// Waveform recordings are never aggregated.
	{Code: fhirmodels.CodeECGRecording, Display: "MDC_ECG_ELEC_POTL", Unit: "uV", System: fhirmodels.SystemMDC, Strategy: StrategyNone},
}
