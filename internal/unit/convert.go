package unit

import "math"

// DiscreteToUnit maps index i of a value set of the given count evenly
// across the unit interval, covering both endpoints: for count N the
// denominator is N-1, so 0 maps to 0.0 and N-1 maps to 1.0.
func DiscreteToUnit(i, count int) Value {
	if count < 2 {
		return 0
	}
	return NewValue(float64(i) / float64(count-1))
}

// UnitToDiscrete is the inverse of DiscreteToUnit.
func UnitToDiscrete(v Value, count int) int {
	if count < 2 {
		return 0
	}
	return int(math.Round(float64(v) * float64(count-1)))
}

// FactorToUnit converts a percentage factor to a soft symmetric value.
// Factor 0 converts to 0.01, never exactly zero: a zero step would make
// relative speed arithmetic divide by zero.
func FactorToUnit(factor int) SoftSymmetric {
	if factor == 0 {
		return 0.01
	}
	return NewSoftSymmetric(float64(factor) / 100.0)
}

// UnitToFactor converts a soft symmetric value to a percentage factor.
//
//	-1.00 => -100
//	-0.01 =>   -1
//	 0.00 =>    1
//	 0.01 =>    1
//	 1.00 =>  100
func UnitToFactor(v SoftSymmetric) int {
	tmp := int(math.Round(float64(v) * 100.0))
	if tmp == 0 {
		return 1
	}
	return tmp
}

// ToStepCount interprets a soft symmetric step value as a signed step
// count with a magnitude floor of 1.
func ToStepCount(v SoftSymmetric) Increment {
	return NewIncrement(UnitToFactor(v))
}
