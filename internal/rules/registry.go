package rules

import (
	"fmt"
	"sort"
	"sync"
)

// StandardiseFunc transforms a value. A non-nil error is the failure reason;
// implementations never panic on malformed input.
type StandardiseFunc func(v any) (any, error)

// ValidateFunc checks a value. h is the column's seen-set for the current
// file and is only supplied to rules registered as needing history.
type ValidateFunc func(v any, h History) error

// History records the canonical keys already observed for one column.
type History interface {
	// Observe records key and reports whether it had been observed before.
	Observe(key string) (seen bool)
}

// NameNormalizer maps a raw label to its canonical form.
type NameNormalizer func(raw string) string

type validator struct {
	fn           ValidateFunc
	needsHistory bool
}

// Registry maps rule names to implementations. It is populated at startup,
// frozen, and read concurrently afterwards.
type Registry struct {
	mu           sync.RWMutex
	frozen       bool
	standardised map[StandardisationRuleName]StandardiseFunc
	validators   map[ValidationRuleName]validator
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		standardised: make(map[StandardisationRuleName]StandardiseFunc),
		validators:   make(map[ValidationRuleName]validator),
	}
}

// RegisterStandardiser adds a standardisation rule implementation.
func (r *Registry) RegisterStandardiser(name StandardisationRuleName, fn StandardiseFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRegistration(KindStandardisation, string(name), fn == nil); err != nil {
		return err
	}
	if _, exists := r.standardised[name]; exists {
		return &RegistrationError{Kind: KindStandardisation, Name: string(name), Reason: "already registered"}
	}
	r.standardised[name] = fn
	return nil
}

// RegisterValidator adds a validation rule implementation. Rules that need
// the per-column seen-set must set needsHistory; the pipeline defers them to
// the ordered merge stage.
func (r *Registry) RegisterValidator(name ValidationRuleName, fn ValidateFunc, needsHistory bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRegistration(KindValidation, string(name), fn == nil); err != nil {
		return err
	}
	if _, exists := r.validators[name]; exists {
		return &RegistrationError{Kind: KindValidation, Name: string(name), Reason: "already registered"}
	}
	r.validators[name] = validator{fn: fn, needsHistory: needsHistory}
	return nil
}

func (r *Registry) checkRegistration(kind Kind, name string, nilImpl bool) error {
	if r.frozen {
		return &RegistrationError{Kind: kind, Name: name, Reason: "registry is frozen"}
	}
	if !IsMember(kind, name) {
		return &RegistrationError{Kind: kind, Name: name, Reason: "not in the " + kind.String() + " vocabulary"}
	}
	if nilImpl {
		return &RegistrationError{Kind: kind, Name: name, Reason: "nil implementation"}
	}
	return nil
}

// Freeze forbids further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Standardiser resolves a standardisation rule.
func (r *Registry) Standardiser(name StandardisationRuleName) (StandardiseFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.standardised[name]
	if !ok {
		return nil, &UnknownRuleError{Kind: KindStandardisation, Name: string(name)}
	}
	return fn, nil
}

// Validator resolves a validation rule and reports whether it needs history.
func (r *Registry) Validator(name ValidationRuleName) (ValidateFunc, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.validators[name]
	if !ok {
		return nil, false, &UnknownRuleError{Kind: KindValidation, Name: string(name)}
	}
	return v.fn, v.needsHistory, nil
}

// Resolve looks up name in the vocabulary of kind and returns either a
// StandardiseFunc or a ValidateFunc.
func (r *Registry) Resolve(kind Kind, name string) (any, error) {
	switch kind {
	case KindStandardisation:
		return r.Standardiser(StandardisationRuleName(name))
	case KindValidation:
		fn, _, err := r.Validator(ValidationRuleName(name))
		return fn, err
	default:
		return nil, &UnknownRuleError{Kind: kind, Name: name}
	}
}

// Missing lists vocabulary members without an implementation, sorted by kind then name.
func (r *Registry) Missing() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, n := range standardisationNames {
		if _, ok := r.standardised[n]; !ok {
			out = append(out, fmt.Sprintf("%s:%s", KindStandardisation, n))
		}
	}
	for _, n := range validationNames {
		if _, ok := r.validators[n]; !ok {
			out = append(out, fmt.Sprintf("%s:%s", KindValidation, n))
		}
	}
	sort.Strings(out)
	return out
}

// Register adds impl under name in the vocabulary of kind. impl must be a
// StandardiseFunc for standardisation rules or a ValidateFunc for
// validation rules; validation rules registered this way never receive history.
func (r *Registry) Register(kind Kind, name string, impl any) error {
	switch kind {
	case KindStandardisation:
		var fn StandardiseFunc
		switch f := impl.(type) {
		case StandardiseFunc:
			fn = f
		case func(any) (any, error):
			fn = f
		case nil:
		default:
			return &RegistrationError{Kind: kind, Name: name, Reason: fmt.Sprintf("implementation is %T, want StandardiseFunc", impl)}
		}
		return r.RegisterStandardiser(StandardisationRuleName(name), fn)
	case KindValidation:
		var fn ValidateFunc
		switch f := impl.(type) {
		case ValidateFunc:
			fn = f
		case func(any, History) error:
			fn = f
		case nil:
		default:
			return &RegistrationError{Kind: kind, Name: name, Reason: fmt.Sprintf("implementation is %T, want ValidateFunc", impl)}
		}
		return r.RegisterValidator(ValidationRuleName(name), fn, false)
	default:
		return &RegistrationError{Kind: kind, Name: name, Reason: "unknown rule kind"}
	}
}

// NeedsHistory reports whether a validation rule consults the column's seen-set.
func (r *Registry) NeedsHistory(name ValidationRuleName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validators[name].needsHistory
}
