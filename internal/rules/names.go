package rules

// Kind distinguishes the two rule vocabularies. A name such as toLowerCase
// exists in both and means a transform in one and a check in the other.
type Kind int

const (
	KindStandardisation Kind = iota
	KindValidation
)

// String returns the name used in error reports.
func (k Kind) String() string {
	switch k {
	case KindStandardisation:
		return "standardisation"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// StandardisationRuleName names a transform applied before validation.
type StandardisationRuleName string

const (
	StdToLowerCase           StandardisationRuleName = "toLowerCase"
	StdToUpperCase           StandardisationRuleName = "toUpperCase"
	StdTrimSpaces            StandardisationRuleName = "trimSpaces"
	StdParseDate             StandardisationRuleName = "parseDate"
	StdNormalizeDuration     StandardisationRuleName = "normalizeDuration"
	StdExtractGenreIds       StandardisationRuleName = "extractGenreIds"
	StdNormalizeTags         StandardisationRuleName = "normalizeTags"
	StdNormalizeBoolean      StandardisationRuleName = "normalizeBoolean"
	StdToArray               StandardisationRuleName = "toArray"
	StdToInt                 StandardisationRuleName = "toInt"
	StdToFloat               StandardisationRuleName = "toFloat"
	StdToDouble              StandardisationRuleName = "toDouble"
	StdToString              StandardisationRuleName = "toString"
	StdToBoolean             StandardisationRuleName = "toBoolean"
	StdTrimEmoji             StandardisationRuleName = "trimEmoji"
	StdConvertToQuantitative StandardisationRuleName = "convertToQuantitative"
)

// ValidationRuleName names a check applied to a (possibly standardised) value.
type ValidationRuleName string

const (
	ValNotNull        ValidationRuleName = "notNull"
	ValNotNegative    ValidationRuleName = "notNegative"
	ValPositiveNumber ValidationRuleName = "positiveNumber"
	ValToLowerCase    ValidationRuleName = "toLowerCase"
	ValToUpperCase    ValidationRuleName = "toUpperCase"
	ValBeforeNow      ValidationRuleName = "beforeNow"
	ValAfterNow       ValidationRuleName = "afterNow"
	ValInt            ValidationRuleName = "int"
	ValString         ValidationRuleName = "string"
	ValFloat          ValidationRuleName = "float"
	ValDouble         ValidationRuleName = "double"
	ValBoolean        ValidationRuleName = "boolean"
	ValArray          ValidationRuleName = "array"
	ValDate           ValidationRuleName = "date"
	ValUnique         ValidationRuleName = "unique"
)

// MalformedRow is the rule name reported for a line that has fewer fields
// than the header. It is not part of either vocabulary.
const MalformedRow = "malformed_row"

var standardisationNames = []StandardisationRuleName{
	StdToLowerCase, StdToUpperCase, StdTrimSpaces, StdParseDate,
	StdNormalizeDuration, StdExtractGenreIds, StdNormalizeTags,
	StdNormalizeBoolean, StdToArray, StdToInt, StdToFloat, StdToDouble,
	StdToString, StdToBoolean, StdTrimEmoji, StdConvertToQuantitative,
}

var validationNames = []ValidationRuleName{
	ValNotNull, ValNotNegative, ValPositiveNumber, ValToLowerCase,
	ValToUpperCase, ValBeforeNow, ValAfterNow, ValInt, ValString, ValFloat,
	ValDouble, ValBoolean, ValArray, ValDate, ValUnique,
}

var (
	standardisationSet = make(map[StandardisationRuleName]bool, len(standardisationNames))
	validationSet      = make(map[ValidationRuleName]bool, len(validationNames))
)

func init() {
	for _, n := range standardisationNames {
		standardisationSet[n] = true
	}
	for _, n := range validationNames {
		validationSet[n] = true
	}
}

// IsStandardisation reports whether name belongs to the standardisation vocabulary.
func IsStandardisation(name string) bool {
	return standardisationSet[StandardisationRuleName(name)]
}

// IsValidation reports whether name belongs to the validation vocabulary.
func IsValidation(name string) bool {
	return validationSet[ValidationRuleName(name)]
}

// IsMember reports whether name belongs to the vocabulary of kind.
func IsMember(kind Kind, name string) bool {
	switch kind {
	case KindStandardisation:
		return IsStandardisation(name)
	case KindValidation:
		return IsValidation(name)
	default:
		return false
	}
}

// StandardisationNames returns the standardisation vocabulary in declaration order.
func StandardisationNames() []StandardisationRuleName {
	out := make([]StandardisationRuleName, len(standardisationNames))
	copy(out, standardisationNames)
	return out
}

// ValidationNames returns the validation vocabulary in declaration order.
func ValidationNames() []ValidationRuleName {
	out := make([]ValidationRuleName, len(validationNames))
	copy(out, validationNames)
	return out
}
