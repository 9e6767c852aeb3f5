package unit

import "testing"

func TestDiscreteRoundTrip(t *testing.T) {
	for count := 2; count <= 130; count++ {
		for i := 0; i < count; i++ {
			v := DiscreteToUnit(i, count)
			back := UnitToDiscrete(v, count)
			if back != i {
				t.Fatalf("count=%d i=%d: went to %v and back to %d", count, i, v, back)
			}
		}
	}
}

func TestDiscreteToUnitEndpoints(t *testing.T) {
	if got := DiscreteToUnit(0, 128); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := DiscreteToUnit(127, 128); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
}

func TestFactorConversionBoundary(t *testing.T) {
	if got := UnitToFactor(NewSoftSymmetric(0.0)); got != 1 {
		t.Errorf("factor for 0.0: expected 1, got %d", got)
	}
	if got := FactorToUnit(0); got != 0.01 {
		t.Errorf("unit for factor 0: expected 0.01, got %v", got)
	}
}

func TestFactorConversionTable(t *testing.T) {
	cases := []struct {
		in   SoftSymmetric
		want int
	}{
		{-1.00, -100},
		{-0.01, -1},
		{0.00, 1},
		{0.01, 1},
		{0.05, 5},
		{1.00, 100},
	}
	for _, c := range cases {
		if got := UnitToFactor(c.in); got != c.want {
			t.Errorf("UnitToFactor(%v): expected %d, got %d", c.in, c.want, got)
		}
	}
}

func TestNewIncrementCoercesZero(t *testing.T) {
	if got := NewIncrement(0); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestIncrementClampMagnitude(t *testing.T) {
	if got := Increment(-7).ClampMagnitude(1, 5); got != -5 {
		t.Errorf("expected -5, got %d", got)
	}
	if got := Increment(1).ClampMagnitude(2, 5); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestIntervalNormalizeDenormalize(t *testing.T) {
	iv := NewInterval(0.25, 0.75)
	if got := iv.Normalize(0.5); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
	if got := iv.Denormalize(1); got != 0.75 {
		t.Errorf("expected 0.75, got %v", got)
	}
	if got := iv.Denormalize(0); got != 0.25 {
		t.Errorf("expected 0.25, got %v", got)
	}
}

func TestIntervalZeroSpan(t *testing.T) {
	iv := NewInterval(0.5, 0.5)
	if got := iv.Normalize(0.5); got != 0 {
		t.Errorf("zero-span normalize: expected 0, got %v", got)
	}
}

func TestFractionUnit(t *testing.T) {
	if got := NewFraction(127, 127).Unit(); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := NewFraction(0, 0).Unit(); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}
