package validation

// Code identifies a validation outcome or calculation failure.
type Code string

// Blocking codes: date and stay.
const (
	CodeMissingDates        Code = "MISSING_DATES"
	CodeInvalidDateRange    Code = "INVALID_DATE_RANGE"
	CodeStayTooLong         Code = "STAY_TOO_LONG"
	CodeBlackoutDate        Code = "BLACKOUT_DATE_CONFLICT"
	CodeMinimumStayNotMet   Code = "MINIMUM_STAY_NOT_MET"
	CodeInvalidValidityDays Code = "INVALID_VALIDITY_DAYS"
)

// Blocking codes: resort, room type and season.
const (
	CodeResortNotFound         Code = "RESORT_NOT_FOUND"
	CodeResortInactive         Code = "RESORT_INACTIVE"
	CodeRoomTypeNotFound       Code = "ROOM_TYPE_NOT_FOUND"
	CodeRoomTypeInactive       Code = "ROOM_TYPE_INACTIVE"
	CodeRoomTypeResortMismatch Code = "ROOM_TYPE_RESORT_MISMATCH"
)

// Blocking codes: occupancy.
const (
	CodeNoAdults                  Code = "NO_ADULTS"
	CodeMissingChildAge           Code = "MISSING_CHILD_AGE"
	CodeInvalidChildAge           Code = "INVALID_CHILD_AGE"
	CodeAgeBandNotFound           Code = "AGE_BAND_NOT_FOUND"
	CodeAgeBandMismatch           Code = "AGE_BAND_MISMATCH"
	CodeMaxAdultsExceeded         Code = "MAX_ADULTS_EXCEEDED"
	CodeMaxChildrenExceeded       Code = "MAX_CHILDREN_EXCEEDED"
	CodeMaxOccupancyExceeded      Code = "MAX_OCCUPANCY_EXCEEDED"
	CodeExtraPersonChargeNotFound Code = "EXTRA_PERSON_CHARGE_NOT_FOUND"
)

// Blocking codes: components.
const (
	CodeMealPlanNotFound        Code = "MEAL_PLAN_NOT_FOUND"
	CodeTransferTypeNotFound    Code = "TRANSFER_TYPE_NOT_FOUND"
	CodeActivityNotFound        Code = "ACTIVITY_NOT_FOUND"
	CodeActivityNotAvailable    Code = "ACTIVITY_NOT_AVAILABLE"
	CodeTransferRequiredMissing Code = "TRANSFER_REQUIRED_MISSING"
	CodeComponentResortMismatch Code = "COMPONENT_RESORT_MISMATCH"
	CodeDiscountConfigInvalid   Code = "DISCOUNT_CONFIG_INVALID"
)

// Blocking codes: currency and markup.
const (
	CodeCurrencyNotFound               Code = "CURRENCY_NOT_FOUND"
	CodeCurrencyMismatch               Code = "CURRENCY_MISMATCH"
	CodeMarkupConfigNotFound           Code = "MARKUP_CONFIG_NOT_FOUND"
	CodeMarkupConfigInvalid            Code = "MARKUP_CONFIG_INVALID"
	CodePercentageOverrideNotSupported Code = "PERCENTAGE_OVERRIDE_NOT_SUPPORTED"
	CodeInvalidMarkupOverride          Code = "INVALID_MARKUP_OVERRIDE"
)

// Blocking codes: multi-resort itineraries.
const (
	CodeNoLegs                          Code = "NO_LEGS"
	CodeTooManyLegs                     Code = "TOO_MANY_LEGS"
	CodeLegDatesOverlap                 Code = "LEG_DATES_OVERLAP"
	CodeInvalidTransferLegIndex         Code = "INVALID_TRANSFER_LEG_INDEX"
	CodeInterResortTransferTypeNotFound Code = "INTER_RESORT_TRANSFER_TYPE_NOT_FOUND"
)

// Blocking codes: quote lifecycle, raised by the calling service only.
const (
	CodeQuoteNotFound        Code = "QUOTE_NOT_FOUND"
	CodeQuoteVersionNotFound Code = "QUOTE_VERSION_NOT_FOUND"
	CodeQuoteLocked          Code = "QUOTE_LOCKED"
)

// Warning codes.
const (
	CodeSeasonBoundaryCrossing      Code = "SEASON_BOUNDARY_CROSSING"
	CodeDefaultSeasonFallback       Code = "DEFAULT_SEASON_FALLBACK"
	CodeDiscountAutoRemoved         Code = "DISCOUNT_AUTO_REMOVED"
	CodeDiscountExceedsBase         Code = "DISCOUNT_EXCEEDS_BASE"
	CodeFestiveSupplementApplied    Code = "FESTIVE_SUPPLEMENT_APPLIED"
	CodeMandatorySupplementRetained Code = "MANDATORY_SUPPLEMENT_RETAINED"
	CodeExchangeRateExtreme         Code = "EXCHANGE_RATE_EXTREME"
	CodeLegDateGap                  Code = "LEG_DATE_GAP"
	CodeSameResortConsecutiveLegs   Code = "SAME_RESORT_CONSECUTIVE_LEGS"
	CodeInterResortTransferMissing  Code = "INTER_RESORT_TRANSFER_MISSING"
	CodeCheckInDatePassed           Code = "CHECK_IN_DATE_PASSED"
	CodeQuoteValidityExceedsCheckIn Code = "QUOTE_VALIDITY_EXCEEDS_CHECK_IN"
	CodeRateValidityEnding          Code = "RATE_VALIDITY_ENDING"
	CodeLowMargin                   Code = "LOW_MARGIN"
	CodeZeroMarkup                  Code = "ZERO_MARKUP"
	CodeGlobalMarkupFallback        Code = "GLOBAL_MARKUP_FALLBACK"
	CodeQuoteLevelMarkupApplied     Code = "QUOTE_LEVEL_MARKUP_APPLIED"
	CodeChildTaxExemptionApplied    Code = "CHILD_TAX_EXEMPTION_APPLIED"
	CodeExtraPersonChargesApplied   Code = "EXTRA_PERSON_CHARGES_APPLIED"
	CodeNoMealPlanSelected          Code = "NO_MEAL_PLAN_SELECTED"
	CodeLongStay                    Code = "LONG_STAY"
	CodeDuplicateDiscountCode       Code = "DUPLICATE_DISCOUNT_CODE"
	CodeDuplicateActivity           Code = "DUPLICATE_ACTIVITY"
)

// Calculation error codes. Only CodeCalcInitFailed and CodeCalcFXLockFailed are retryable.
const (
	CodeCalcInitFailed          Code = "CALC_INIT_FAILED"
	CodeCalcFXLockFailed        Code = "CALC_FX_LOCK_FAILED"
	CodeCalcSeasonNotFound      Code = "CALC_SEASON_NOT_FOUND"
	CodeCalcRateNotFound        Code = "CALC_RATE_NOT_FOUND"
	CodeCalcTaxConfigInvalid    Code = "CALC_TAX_CONFIG_INVALID"
	CodeCalcNegativeFinalAmount Code = "CALC_NEGATIVE_FINAL_AMOUNT"
	CodeCalcVerificationFailed  Code = "CALC_VERIFICATION_FAILED"
	CodeCalcArithmeticOverflow  Code = "CALC_ARITHMETIC_OVERFLOW"
	CodeCalcDivisionByZero      Code = "CALC_DIVISION_BY_ZERO"
	CodeCalcNonFiniteResult     Code = "CALC_NON_FINITE_RESULT"
)

var retryable = map[Code]bool{
	CodeCalcInitFailed:   true,
	CodeCalcFXLockFailed: true,
}

// Retryable reports whether a calculation failing with code may be retried as-is.
func Retryable(code Code) bool {
	return retryable[code]
}
