// Package mode implements the value transform between source and target:
// intervals, step sizes, fire modes, takeover modes, toggle/increment
// button logic, value sequences and scripted transformations.
package mode

import (
	"time"

	"github.com/tilde-audio/remap/internal/script"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/unit"
)

// AbsoluteMode decides how absolute control values drive the target.
type AbsoluteMode int

const (
	// AbsoluteNormal maps the source range onto the target range.
	AbsoluteNormal AbsoluteMode = iota
	// IncrementalButton turns button presses into relative increments.
	IncrementalButton
	// ToggleButton flips the target between the interval bounds on press.
	ToggleButton
	// MakeRelativeMode emits the difference between consecutive absolute
	// values as increments (useful for touch strips).
	MakeRelativeMode
)

// FireMode decides when a button-like source actually fires.
type FireMode int

const (
	// FireOnPressAndRelease passes presses and releases through directly.
	FireOnPressAndRelease FireMode = iota
	// FireAfterTimeout fires once after the press has been held for the
	// configured minimum duration.
	FireAfterTimeout
	// FireAfterTimeoutKeepFiring fires after the timeout and then keeps
	// firing at the turbo rate until release.
	FireAfterTimeoutKeepFiring
	// FireOnSinglePress fires on release if the press duration lies within
	// the configured window, which makes double-press detection possible
	// on the same button.
	FireOnSinglePress
	// FireOnDoublePress fires when a second press arrives within the
	// configured maximum duration.
	FireOnDoublePress
)

// TakeoverMode decides what happens when an absolute control value would
// jump further than the allowed jump interval.
type TakeoverMode int

const (
	// TakeoverPickUp ignores values until the control crosses the current
	// target value.
	TakeoverPickUp TakeoverMode = iota
	// TakeoverLongTimeNoSee moves the target a bounded distance toward the
	// control value on every event, catching up gradually.
	TakeoverLongTimeNoSee
	// TakeoverParallel applies the control's movement as a relative delta.
	TakeoverParallel
	// TakeoverValueScaling scales the remaining control range onto the
	// remaining target range.
	TakeoverValueScaling
)

// OutOfRangeBehavior decides how source values outside the configured
// source interval are handled.
type OutOfRangeBehavior int

const (
	// OutOfRangeMinOrMax clamps to the nearer interval bound.
	OutOfRangeMinOrMax OutOfRangeBehavior = iota
	// OutOfRangeMin maps everything outside to the minimum.
	OutOfRangeMin
	// OutOfRangeIgnore drops the value entirely.
	OutOfRangeIgnore
)

// GroupInteraction propagates one mapping's hit to its group siblings.
type GroupInteraction int

const (
	InteractionNone GroupInteraction = iota
	// SameControl forwards the incoming control value to siblings.
	SameControl
	// InverseControl forwards the inverted control value.
	InverseControl
	// SameTargetValue forwards the resulting target value, normalized.
	SameTargetValue
	// InverseTargetValue forwards the inverted resulting target value.
	InverseTargetValue
	// InverseTargetValueOnOnly behaves like InverseTargetValue but only
	// when the resulting value is "on".
	InverseTargetValueOnOnly
)

// IsTargetBased reports whether the interaction forwards the resulting
// target value instead of the control value.
func (g GroupInteraction) IsTargetBased() bool {
	switch g {
	case SameTargetValue, InverseTargetValue, InverseTargetValueOnOnly:
		return true
	}
	return false
}

// IsInverse reports whether the forwarded value is inverted.
func (g GroupInteraction) IsInverse() bool {
	switch g {
	case InverseControl, InverseTargetValue, InverseTargetValueOnOnly:
		return true
	}
	return false
}

// ButtonUsage filters button messages before the transform sees them.
type ButtonUsage int

const (
	ButtonBoth ButtonUsage = iota
	ButtonPressOnly
	ButtonReleaseOnly
)

// EncoderUsage filters encoder increments before the transform sees them.
type EncoderUsage int

const (
	EncoderBoth EncoderUsage = iota
	EncoderIncrementOnly
	EncoderDecrementOnly
)

// FeedbackType selects numeric or textual feedback rendering.
type FeedbackType int

const (
	FeedbackNumeric FeedbackType = iota
	FeedbackText
)

// Settings is the full, user-configured transform description. All
// parameters are always populated; relevance filtering decides which ones
// the runtime mode actually honors.
type Settings struct {
	AbsoluteMode       AbsoluteMode
	SourceInterval     unit.Interval
	TargetInterval     unit.Interval
	JumpInterval       unit.Interval
	StepInterval       unit.SoftSymmetricInterval
	PressDurationMin   time.Duration
	PressDurationMax   time.Duration
	TurboRate          time.Duration
	FireMode           FireMode
	TakeoverMode       TakeoverMode
	ButtonUsage        ButtonUsage
	EncoderUsage       EncoderUsage
	Reverse            bool
	Rotate             bool
	RoundTargetValue   bool
	MakeAbsolute       bool
	OutOfRangeBehavior OutOfRangeBehavior
	GroupInteraction   GroupInteraction
	// Scripts are source texts; compilation happens when the runtime mode
	// is built. A failing compile silently disables the transformation.
	ControlTransformation  string
	FeedbackTransformation string
	TargetValueSequence    []unit.Value
	FeedbackType           FeedbackType
	TextualFeedbackExpr    string
	FeedbackColor          int32
	FeedbackBackgroundCol  int32
	HasFeedbackColor       bool
}

// DefaultSettings returns settings that pass values through unchanged.
func DefaultSettings() Settings {
	return Settings{
		SourceInterval:   unit.FullInterval(),
		TargetInterval:   unit.FullInterval(),
		JumpInterval:     unit.FullInterval(),
		StepInterval:     unit.NewSoftSymmetricInterval(0.01, 0.01),
		PressDurationMin: 0,
		PressDurationMax: 0,
		TurboRate:        0,
	}
}

// Parameter identifies one mode setting for relevance checks.
type Parameter int

const (
	ParamAbsoluteMode Parameter = iota
	ParamSourceMinMax
	ParamTargetMinMax
	ParamJumpMinMax
	ParamTakeoverMode
	ParamFireMode
	ParamButtonFilter
	ParamRelativeFilter
	ParamReverse
	ParamRotate
	ParamRoundTargetValue
	ParamOutOfRangeBehavior
	ParamControlTransformation
	ParamFeedbackTransformation
	ParamMakeAbsolute
	ParamTargetValueSequence
	ParamTextualFeedbackExpr
	ParamStepSizeMax
	ParamSpeedMax
)

// ApplicabilityInput is the context a relevance check runs against.
type ApplicabilityInput struct {
	AbsoluteMode    AbsoluteMode
	FireMode        FireMode
	MakeAbsolute    bool
	UseTextFeedback bool
	SourceCharacter source.Character
	IsFeedback      bool
}

// parameterIsApplicable is the applicability matrix for one concrete
// character/direction combination.
func parameterIsApplicable(p Parameter, in ApplicabilityInput) bool {
	char := in.SourceCharacter
	isAbsolute := char == source.CharacterRange || char == source.CharacterMomentaryButton
	isButton := char == source.CharacterMomentaryButton || char == source.CharacterTrigger
	isRelative := char == source.CharacterRelative || in.MakeAbsolute
	actsIncremental := in.AbsoluteMode == IncrementalButton && isButton
	if in.IsFeedback {
		switch p {
		case ParamTargetMinMax, ParamSourceMinMax, ParamReverse, ParamOutOfRangeBehavior:
			return true
		case ParamFeedbackTransformation:
			return !in.UseTextFeedback
		case ParamTextualFeedbackExpr:
			return in.UseTextFeedback
		default:
			return false
		}
	}
	switch p {
	case ParamAbsoluteMode:
		return isAbsolute
	case ParamSourceMinMax:
		return isAbsolute
	case ParamTargetMinMax:
		return true
	case ParamJumpMinMax, ParamTakeoverMode:
		return char == source.CharacterRange && in.AbsoluteMode == AbsoluteNormal
	case ParamFireMode:
		return isButton
	case ParamButtonFilter:
		return char == source.CharacterMomentaryButton
	case ParamRelativeFilter:
		return char == source.CharacterRelative
	case ParamReverse:
		return true
	case ParamRotate:
		return isRelative || actsIncremental
	case ParamRoundTargetValue:
		return char == source.CharacterRange
	case ParamOutOfRangeBehavior:
		return isAbsolute
	case ParamControlTransformation:
		return isAbsolute
	case ParamMakeAbsolute:
		return char == source.CharacterRelative
	case ParamTargetValueSequence:
		return !isButton || actsIncremental
	case ParamStepSizeMax, ParamSpeedMax:
		return isRelative || actsIncremental
	default:
		return false
	}
}

// ParameterIsRelevant reports whether a mode parameter has any effect for
// at least one combination of direction and possible source character.
// Irrelevant parameters collapse to hard defaults when the runtime mode is
// built, so stale settings entered while switching source types never
// leak into behavior.
func ParameterIsRelevant(p Parameter, base ApplicabilityInput, characters []source.Character, control, feedback bool) bool {
	for _, c := range characters {
		in := base
		in.SourceCharacter = c
		in.IsFeedback = false
		if control && parameterIsApplicable(p, in) {
			return true
		}
		in.IsFeedback = true
		if feedback && parameterIsApplicable(p, in) {
			return true
		}
	}
	return false
}

// effective returns a copy of s with all irrelevant parameters reset to
// their defaults, plus the derived step count/size intervals.
func (s Settings) effective(characters []source.Character) (Settings, unit.IncrementInterval, stepSizeInterval) {
	base := ApplicabilityInput{
		AbsoluteMode:    s.AbsoluteMode,
		FireMode:        s.FireMode,
		MakeAbsolute:    s.MakeAbsolute,
		UseTextFeedback: s.FeedbackType == FeedbackText,
	}
	relevant := func(p Parameter) bool {
		// Control and feedback are both taken into account so behavior does
		// not subtly change when feedback gets disabled.
		return ParameterIsRelevant(p, base, characters, true, true)
	}
	e := s
	if !relevant(ParamAbsoluteMode) {
		e.AbsoluteMode = AbsoluteNormal
	}
	if !relevant(ParamSourceMinMax) {
		e.SourceInterval = unit.FullInterval()
	}
	if !relevant(ParamTargetMinMax) {
		e.TargetInterval = unit.FullInterval()
	}
	if !relevant(ParamJumpMinMax) {
		e.JumpInterval = unit.FullInterval()
	}
	if !relevant(ParamTakeoverMode) {
		e.TakeoverMode = TakeoverPickUp
	}
	if !relevant(ParamFireMode) {
		e.FireMode = FireOnPressAndRelease
	}
	if !relevant(ParamButtonFilter) {
		e.ButtonUsage = ButtonBoth
	}
	if !relevant(ParamRelativeFilter) {
		e.EncoderUsage = EncoderBoth
	}
	if !relevant(ParamReverse) {
		e.Reverse = false
	}
	if !relevant(ParamRotate) {
		e.Rotate = false
	}
	if !relevant(ParamRoundTargetValue) {
		e.RoundTargetValue = false
	}
	if !relevant(ParamOutOfRangeBehavior) {
		e.OutOfRangeBehavior = OutOfRangeMinOrMax
	}
	if !relevant(ParamControlTransformation) {
		e.ControlTransformation = ""
	}
	if !relevant(ParamFeedbackTransformation) {
		e.FeedbackTransformation = ""
	}
	if !relevant(ParamMakeAbsolute) {
		e.MakeAbsolute = false
	}
	if !relevant(ParamTargetValueSequence) {
		e.TargetValueSequence = nil
	}
	if !relevant(ParamTextualFeedbackExpr) {
		e.TextualFeedbackExpr = ""
	}
	// Step interval duality: the minimum's magnitude is the minimum step
	// size, its sign-aware factor conversion the minimum step count. The
	// maximum only participates if acceleration is relevant at all,
	// otherwise it collapses to the minimum.
	stepMaxRelevant := relevant(ParamStepSizeMax) || relevant(ParamSpeedMax)
	minCount := unit.ToStepCount(s.StepInterval.Min)
	maxCount := minCount
	minSize := s.StepInterval.Min.Abs()
	maxSize := minSize
	if stepMaxRelevant {
		maxCount = unit.ToStepCount(s.StepInterval.Max)
		maxSize = s.StepInterval.Max.Abs()
	}
	counts := unit.NewIncrementInterval(minCount, maxCount)
	sizes := stepSizeInterval{Min: minSize, Max: maxSize}
	if sizes.Min > sizes.Max {
		sizes.Min, sizes.Max = sizes.Max, sizes.Min
	}
	return e, counts, sizes
}

type stepSizeInterval struct {
	Min unit.Value
	Max unit.Value
}

// compileScripts builds the runtime transformations, silently dropping
// scripts that fail to compile.
func (s Settings) compileScripts() (control, feedback *script.Transformation) {
	if s.ControlTransformation != "" {
		if t, err := script.CompileTransformation(s.ControlTransformation); err == nil {
			control = t
		}
	}
	if s.FeedbackTransformation != "" {
		if t, err := script.CompileTransformation(s.FeedbackTransformation); err == nil {
			feedback = t
		}
	}
	return control, feedback
}
