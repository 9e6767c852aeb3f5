// Package unit provides the numeric value kernel of the mapping engine:
// normalized unit values, discrete fractions, signed increments and the
// control value union that flows from sources into modes.
package unit

import "math"

// Value is a continuous value normalized to the interval [0.0, 1.0].
type Value float64

// NewValue clamps f into the unit interval.
func NewValue(f float64) Value {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return Value(f)
}

// Get returns the raw float.
func (v Value) Get() float64 { return float64(v) }

// IsOn reports whether the value is greater than zero. Buttons use this to
// distinguish press from release.
func (v Value) IsOn() bool { return v > 0 }

// Add returns v + d clamped to the unit interval.
func (v Value) Add(d float64) Value { return NewValue(float64(v) + d) }

// SoftSymmetric is a value in [-1.0, 1.0]. "Soft" because the negative half
// is an alternative encoding (slow-down fraction) rather than a mirrored
// magnitude: -0.05 means "a fifth of base speed", +0.05 means "5% step".
type SoftSymmetric float64

// NewSoftSymmetric clamps f into [-1, 1].
func NewSoftSymmetric(f float64) SoftSymmetric {
	if f < -1 {
		return -1
	}
	if f > 1 {
		return 1
	}
	return SoftSymmetric(f)
}

// Get returns the raw float.
func (v SoftSymmetric) Get() float64 { return float64(v) }

// Abs returns the magnitude as a unit value.
func (v SoftSymmetric) Abs() Value { return NewValue(math.Abs(float64(v))) }

// Fraction is a discrete value: an actual numerator out of a maximum.
// Max is the highest possible actual value, so a 7-bit CC value is
// Fraction{Actual: v, Max: 127}.
type Fraction struct {
	Actual int
	Max    int
}

// NewFraction clamps actual into [0, max].
func NewFraction(actual, max int) Fraction {
	if actual < 0 {
		actual = 0
	}
	if actual > max {
		actual = max
	}
	return Fraction{Actual: actual, Max: max}
}

// Unit converts the fraction to a unit value. Max 0 maps to 0.
func (f Fraction) Unit() Value {
	if f.Max == 0 {
		return 0
	}
	return NewValue(float64(f.Actual) / float64(f.Max))
}

// IsOn reports whether the numerator is non-zero.
func (f Fraction) IsOn() bool { return f.Actual > 0 }

// WithActual returns a copy with a different numerator, clamped.
func (f Fraction) WithActual(actual int) Fraction { return NewFraction(actual, f.Max) }

// Increment is a signed non-zero discrete increment as emitted by relative
// sources (endless encoders). Magnitudes above 1 encode speed.
type Increment int

// NewIncrement returns i as an Increment; zero is coerced to +1 because a
// zero increment has no meaning on the wire.
func NewIncrement(i int) Increment {
	if i == 0 {
		return 1
	}
	return Increment(i)
}

// Signum returns -1 or +1.
func (i Increment) Signum() int {
	if i < 0 {
		return -1
	}
	return 1
}

// Abs returns the magnitude.
func (i Increment) Abs() int {
	if i < 0 {
		return int(-i)
	}
	return int(i)
}

// IsPositive reports the direction.
func (i Increment) IsPositive() bool { return i > 0 }

// Inverse flips the direction.
func (i Increment) Inverse() Increment { return -i }

// ClampMagnitude limits the magnitude to [min, max], keeping the sign.
func (i Increment) ClampMagnitude(min, max int) Increment {
	m := i.Abs()
	if m < min {
		m = min
	}
	if m > max {
		m = max
	}
	return Increment(m * i.Signum())
}
