package unit

// ControlKind discriminates the control value union.
type ControlKind int

const (
	// KindAbsoluteContinuous is a continuous absolute value (fader, OSC float).
	KindAbsoluteContinuous ControlKind = iota
	// KindAbsoluteDiscrete is a discrete absolute value with a known maximum
	// (7-bit CC, 14-bit pitch bend).
	KindAbsoluteDiscrete
	// KindRelative is a signed increment from an endless encoder.
	KindRelative
)

// ControlValue is the value a source extracts from an incoming message.
type ControlValue struct {
	Kind      ControlKind
	Abs       AbsoluteValue
	Increment Increment
}

// AbsoluteContinuous wraps a unit value as a control value.
func AbsoluteContinuous(v Value) ControlValue {
	return ControlValue{Kind: KindAbsoluteContinuous, Abs: AbsoluteValue{value: v}}
}

// AbsoluteDiscrete wraps a fraction as a control value.
func AbsoluteDiscrete(f Fraction) ControlValue {
	return ControlValue{Kind: KindAbsoluteDiscrete, Abs: AbsoluteValue{fraction: f, discrete: true}}
}

// Relative wraps an increment as a control value.
func Relative(i Increment) ControlValue {
	return ControlValue{Kind: KindRelative, Increment: i}
}

// IsRelative reports whether this is an increment.
func (cv ControlValue) IsRelative() bool { return cv.Kind == KindRelative }

// Unit returns the absolute payload as a unit value. For relative values it
// returns 0.
func (cv ControlValue) Unit() Value {
	if cv.Kind == KindRelative {
		return 0
	}
	return cv.Abs.Unit()
}

// AbsoluteValue is an absolute value that is either continuous or discrete.
// Discrete values keep their resolution so step arithmetic can stay exact.
type AbsoluteValue struct {
	value    Value
	fraction Fraction
	discrete bool
}

// ContinuousValue builds a continuous absolute value.
func ContinuousValue(v Value) AbsoluteValue { return AbsoluteValue{value: v} }

// DiscreteValue builds a discrete absolute value.
func DiscreteValue(f Fraction) AbsoluteValue { return AbsoluteValue{fraction: f, discrete: true} }

// IsDiscrete reports whether the value carries a fraction.
func (a AbsoluteValue) IsDiscrete() bool { return a.discrete }

// Fraction returns the discrete payload; only meaningful if IsDiscrete.
func (a AbsoluteValue) Fraction() Fraction { return a.fraction }

// Unit converts to a unit value regardless of representation.
func (a AbsoluteValue) Unit() Value {
	if a.discrete {
		return a.fraction.Unit()
	}
	return a.value
}

// IsOn reports whether the value is greater than zero.
func (a AbsoluteValue) IsOn() bool { return a.Unit().IsOn() }

// WithUnit returns a continuous copy carrying v.
func (a AbsoluteValue) WithUnit(v Value) AbsoluteValue { return AbsoluteValue{value: v} }
