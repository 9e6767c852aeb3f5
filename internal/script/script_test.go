package script

import "testing"

func TestTransformationControlDirection(t *testing.T) {
	tr, err := CompileTransformation("x * 2")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	got, err := tr.Transform(0.25, 0.9, 0, ControlDirection)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestTransformationFeedbackDirection(t *testing.T) {
	tr, err := CompileTransformation("1 - y")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	got, err := tr.Transform(0.25, 0, 0, FeedbackDirection)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if got != 0.75 {
		t.Errorf("expected 0.75, got %v", got)
	}
}

func TestTransformationYLast(t *testing.T) {
	tr, err := CompileTransformation("y_last + 0.1")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	got, err := tr.Transform(0, 0, 0.4, ControlDirection)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if got < 0.49 || got > 0.51 {
		t.Errorf("expected ~0.5, got %v", got)
	}
}

func TestCompileEmptyScript(t *testing.T) {
	if _, err := CompileTransformation("   "); err == nil {
		t.Error("expected error for empty script")
	}
}

func TestCompileBrokenScript(t *testing.T) {
	if _, err := CompileTransformation("x +* 2"); err == nil {
		t.Error("expected error for broken script")
	}
}

func TestConditionNumericTruthiness(t *testing.T) {
	c, err := CompileCondition("p[0] > 0.5")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	params := make([]float64, 200)
	on, err := c.Eval(params)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if on {
		t.Error("expected condition off")
	}
	params[0] = 0.7
	on, err = c.Eval(params)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if !on {
		t.Error("expected condition on")
	}
}

func TestIndexEval(t *testing.T) {
	ix, err := CompileIndex("p[5] * 8")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	params := make([]float64, 200)
	params[5] = 0.5
	got, err := ix.Eval(params)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
}
