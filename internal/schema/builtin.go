package schema

import "github.com/JonMunkholm/csvclean/internal/rules"

// BuiltinFile is the source file the builtin rules target: the per-commune
// sports license export.
const BuiltinFile = "sports_light.csv"

// Builtin returns the rule set used when no rules file is configured.
func Builtin() RulesByCsv {
	text := []rules.StandardisationRuleName{rules.StdTrimSpaces, rules.StdToString, rules.StdToLowerCase}
	required := []rules.ValidationRuleName{rules.ValNotNull, rules.ValString}

	return RulesByCsv{
		BuiltinFile: {
			HeaderRows: []int{0},
			SkipRows:   []int{},
			RenameColumns: map[string]string{
				"Commune":    "commune",
				"Région":     "region",
				"Fédération": "federation",
				"Total":      "total",
			},
			StandardisationRules: map[string][]rules.StandardisationRuleName{
				"commune":    text,
				"region":     text,
				"federation": text,
				"total":      {rules.StdTrimSpaces, rules.StdToInt},
			},
			ValidationRules: map[string][]rules.ValidationRuleName{
				"commune":    required,
				"region":     required,
				"federation": required,
				"total":      {rules.ValNotNull, rules.ValPositiveNumber},
			},
		},
	}
}
