// Package intensity maps the user-facing intensity control onto the
// multiplicative factor used by the pixel adjuster.
package intensity

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinLevel and MaxLevel bound the accepted intensity domain.
	MinLevel Level = 0
	MaxLevel Level = 100

	// Span is the factor increase at MaxLevel.
	Span = 0.5
)

// Neutral is the factor that leaves pixels unchanged.
const Neutral Factor = 1

var (
	// ErrOutOfRange is returned for intensities outside [MinLevel, MaxLevel].
	ErrOutOfRange = errors.New("intensity out of range")
	// ErrInvalidFactor is returned for negative or non-finite factors.
	ErrInvalidFactor = errors.New("invalid adjustment factor")
)

// Level is an intensity value in [0, 100].
type Level float64

// Factor is the multiplier applied to channels, saturation and value.
type Factor float32

// ParseLevel validates a raw intensity value.
func ParseLevel(raw float64) (Level, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("%w: %v is not a finite number", ErrOutOfRange, raw)
	}
	if raw < float64(MinLevel) || raw > float64(MaxLevel) {
		return 0, fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfRange, raw, MinLevel, MaxLevel)
	}
	return Level(raw), nil
}

// Factor returns 1 + level/100 * Span, which lies in [1.0, 1.5].
func (l Level) Factor() Factor {
	return Extrapolate(float64(l))
}

// Map validates raw and returns its adjustment factor.
func Map(raw float64) (Factor, error) {
	level, err := ParseLevel(raw)
	if err != nil {
		return 0, err
	}
	return level.Factor(), nil
}

// Extrapolate applies the linear mapping without validating raw.
// Values outside [0, 100] produce factors outside [1.0, 1.5].
func Extrapolate(raw float64) Factor {
	return Factor(1 + raw/float64(MaxLevel)*Span)
}

// NewFactor validates a factor supplied directly by a caller.
// Values too large for float32 are rejected rather than becoming +Inf.
func NewFactor(f float64) (Factor, error) {
	factor := Factor(f)
	if !factor.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFactor, f)
	}
	return factor, nil
}

// Valid reports whether f can be applied to a pixel buffer.
func (f Factor) Valid() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
