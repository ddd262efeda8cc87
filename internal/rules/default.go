package rules

import (
	"fmt"
	"time"
)

// Option configures DefaultRegistry.
type Option func(*defaults)

type defaults struct {
	now       func() time.Time
	normalize NameNormalizer
}

// WithClock sets the clock read by date rules (parseDate pivot, beforeNow, afterNow).
func WithClock(now func() time.Time) Option {
	return func(d *defaults) {
		if now != nil {
			d.now = now
		}
	}
}

// WithNameNormalizer sets the label normaliser used by normalizeTags.
func WithNameNormalizer(fn NameNormalizer) Option {
	return func(d *defaults) {
		if fn != nil {
			d.normalize = fn
		}
	}
}

// DefaultRegistry returns a frozen registry holding every rule of both
// vocabularies.
func DefaultRegistry(opts ...Option) (*Registry, error) {
	d := defaults{now: time.Now, normalize: NormalizeFederation}
	for _, opt := range opts {
		opt(&d)
	}

	r := NewRegistry()
	for name, fn := range (standardisers{now: d.now, normalize: d.normalize}).table() {
		if err := r.RegisterStandardiser(name, fn); err != nil {
			return nil, err
		}
	}
	for name, fn := range (validators{now: d.now}).table() {
		if err := r.RegisterValidator(name, fn, name == ValUnique); err != nil {
			return nil, err
		}
	}

	if missing := r.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("rules without implementation: %v", missing)
	}
	r.Freeze()
	return r, nil
}

// MustDefaultRegistry is DefaultRegistry for package-level initialisation.
func MustDefaultRegistry(opts ...Option) *Registry {
	r, err := DefaultRegistry(opts...)
	if err != nil {
		panic(err)
	}
	return r
}
