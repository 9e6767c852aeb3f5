package unit

// Interval is a closed interval of unit values. Min and Max are normalized
// on construction so Min <= Max always holds.
type Interval struct {
	Min Value
	Max Value
}

// NewInterval normalizes min/max order.
func NewInterval(min, max Value) Interval {
	if min > max {
		min, max = max, min
	}
	return Interval{Min: min, Max: max}
}

// FullInterval covers the whole unit range.
func FullInterval() Interval { return Interval{Min: 0, Max: 1} }

// IsFull reports whether the interval covers the whole unit range.
func (iv Interval) IsFull() bool { return iv.Min == 0 && iv.Max == 1 }

// Span returns Max - Min.
func (iv Interval) Span() float64 { return float64(iv.Max - iv.Min) }

// Contains reports whether v lies within the interval (inclusive).
func (iv Interval) Contains(v Value) bool { return v >= iv.Min && v <= iv.Max }

// Clamp limits v to the interval.
func (iv Interval) Clamp(v Value) Value {
	if v < iv.Min {
		return iv.Min
	}
	if v > iv.Max {
		return iv.Max
	}
	return v
}

// Normalize maps a value within the interval to the full unit range.
// A zero-span interval maps everything to 0.
func (iv Interval) Normalize(v Value) Value {
	span := iv.Span()
	if span == 0 {
		return 0
	}
	return NewValue((float64(v) - float64(iv.Min)) / span)
}

// Denormalize maps a full-range unit value into the interval.
func (iv Interval) Denormalize(v Value) Value {
	return NewValue(float64(iv.Min) + float64(v)*iv.Span())
}

// SoftSymmetricInterval is a closed interval of soft symmetric values, used
// for the configured step size/speed range.
type SoftSymmetricInterval struct {
	Min SoftSymmetric
	Max SoftSymmetric
}

// NewSoftSymmetricInterval normalizes min/max order.
func NewSoftSymmetricInterval(min, max SoftSymmetric) SoftSymmetricInterval {
	if min > max {
		min, max = max, min
	}
	return SoftSymmetricInterval{Min: min, Max: max}
}

// IncrementInterval is a closed interval of signed step counts.
type IncrementInterval struct {
	Min Increment
	Max Increment
}

// NewIncrementInterval normalizes min/max order.
func NewIncrementInterval(min, max Increment) IncrementInterval {
	if min > max {
		min, max = max, min
	}
	return IncrementInterval{Min: min, Max: max}
}
