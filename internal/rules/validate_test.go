package rules

import (
	"testing"
)

type mapHistory map[string]bool

func (h mapHistory) Observe(key string) bool {
	seen := h[key]
	h[key] = true
	return seen
}

func TestValidators(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name  string
		rule  ValidationRuleName
		input any
		pass  bool
	}{
		{"notNull nil", ValNotNull, nil, false},
		{"notNull empty", ValNotNull, "", false},
		{"notNull whitespace", ValNotNull, " \t ", false},
		{"notNull empty array", ValNotNull, []string{}, false},
		{"notNull text", ValNotNull, "a", true},
		{"notNull zero", ValNotNull, int64(0), true},

		{"notNegative negative text", ValNotNegative, "-2", false},
		{"notNegative zero", ValNotNegative, "0", true},
		{"notNegative int zero", ValNotNegative, int64(0), true},
		{"notNegative text", ValNotNegative, "abc", false},
		{"positive zero", ValPositiveNumber, "0", false},
		{"positive int", ValPositiveNumber, int64(5), true},
		{"positive negative int", ValPositiveNumber, int64(-2), false},
		{"positive bool", ValPositiveNumber, true, false},
		{"positive float", ValPositiveNumber, 0.5, true},

		{"lower ok", ValToLowerCase, "abc", true},
		{"lower mixed", ValToLowerCase, "Abc", false},
		{"lower int", ValToLowerCase, int64(1), false},
		{"upper ok", ValToUpperCase, "ABC", true},
		{"upper mixed", ValToUpperCase, "ABc", false},

		{"beforeNow past", ValBeforeNow, date(2020, 1, 1), true},
		{"beforeNow future text", ValBeforeNow, "01/01/2030", false},
		{"beforeNow not a date", ValBeforeNow, "x", false},
		{"afterNow future", ValAfterNow, date(2030, 1, 1), true},
		{"afterNow past text", ValAfterNow, "2020-01-01", false},

		{"int typed", ValInt, int64(3), true},
		{"int text", ValInt, "42", true},
		{"int float", ValInt, 4.5, false},
		{"int fraction text", ValInt, "4.5", false},
		{"string ok", ValString, "x", true},
		{"string int", ValString, int64(1), false},
		{"float text", ValFloat, "1.5", true},
		{"float typed", ValFloat, float64(2), true},
		{"float out of range", ValFloat, 1e39, false},
		{"double out of float range", ValDouble, 1e39, true},
		{"double text", ValDouble, "x", false},
		{"boolean french", ValBoolean, "vrai", true},
		{"boolean typed", ValBoolean, true, true},
		{"boolean unknown", ValBoolean, "maybe", false},
		{"array empty", ValArray, []string{}, true},
		{"array text", ValArray, "a,b", false},
		{"date text", ValDate, "2024-01-01", true},
		{"date typed", ValDate, date(2024, 1, 1), true},
		{"date bad", ValDate, "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, _, err := r.Validator(tt.rule)
			if err != nil {
				t.Fatalf("Validator(%q) error = %v", tt.rule, err)
			}
			err = fn(tt.input, nil)
			if tt.pass && err != nil {
				t.Errorf("%s(%#v) = %v, want pass", tt.rule, tt.input, err)
			}
			if !tt.pass && err == nil {
				t.Errorf("%s(%#v) passed, want failure", tt.rule, tt.input)
			}
		})
	}
}

func TestUnique_FirstOccurrencePasses(t *testing.T) {
	r := testRegistry(t)
	fn, needsHistory, err := r.Validator(ValUnique)
	if err != nil {
		t.Fatal(err)
	}
	if !needsHistory {
		t.Fatal("unique must be registered with history")
	}

	h := mapHistory{}
	inputs := []any{"a", "b", "a", int64(1), "1", "a"}
	want := []bool{true, true, false, true, true, false}

	for i, in := range inputs {
		err := fn(in, h)
		if (err == nil) != want[i] {
			t.Errorf("unique(%#v) #%d = %v, want pass=%v", in, i, err, want[i])
		}
	}
}

func TestKey_TypesDoNotCollide(t *testing.T) {
	if Key(int64(1)) == Key("1") {
		t.Error("int 1 and text 1 share a key")
	}
	if Key([]string{"a,b"}) == Key([]string{"a", "b"}) {
		t.Error("array keys collide")
	}
	if Key(date(2024, 1, 1)) != Key(date(2024, 1, 1)) {
		t.Error("equal dates have different keys")
	}
}
