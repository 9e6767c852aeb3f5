package preset

import (
	"fmt"

	"github.com/tilde-audio/remap/internal/mode"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
)

// Enum name tables. Name functions return "" for the default value so
// omitempty keeps saved presets minimal; parse functions accept "" as the
// default and reject anything unknown.

func parseFeedbackBehavior(s string) (source.FeedbackBehavior, error) {
	switch s {
	case "", "normal":
		return source.FeedbackNormal, nil
	case "send-after-control":
		return source.SendFeedbackAfterControl, nil
	case "prevent-echo":
		return source.PreventEchoFeedback, nil
	default:
		return 0, fmt.Errorf("unknown feedback behavior %q", s)
	}
}

func feedbackBehaviorName(b source.FeedbackBehavior) string {
	switch b {
	case source.SendFeedbackAfterControl:
		return "send-after-control"
	case source.PreventEchoFeedback:
		return "prevent-echo"
	default:
		return ""
	}
}

func parseCCCharacter(s string) (source.CCCharacter, error) {
	switch s {
	case "", "range":
		return source.CCRange, nil
	case "button":
		return source.CCButton, nil
	case "encoder-1":
		return source.CCEncoder1, nil
	case "encoder-2":
		return source.CCEncoder2, nil
	case "encoder-3":
		return source.CCEncoder3, nil
	default:
		return 0, fmt.Errorf("unknown cc character %q", s)
	}
}

func ccCharacterName(c source.CCCharacter) string {
	switch c {
	case source.CCButton:
		return "button"
	case source.CCEncoder1:
		return "encoder-1"
	case source.CCEncoder2:
		return "encoder-2"
	case source.CCEncoder3:
		return "encoder-3"
	default:
		return ""
	}
}

func parseTransportMessage(s string) (source.TransportMessage, error) {
	switch s {
	case "", "start":
		return source.TransportStart, nil
	case "continue":
		return source.TransportContinue, nil
	case "stop":
		return source.TransportStop, nil
	default:
		return 0, fmt.Errorf("unknown transport message %q", s)
	}
}

func transportMessageName(m source.TransportMessage) string {
	switch m {
	case source.TransportContinue:
		return "continue"
	case source.TransportStop:
		return "stop"
	default:
		return ""
	}
}

func parseOscArgKind(s string) (source.OscArgKind, error) {
	switch s {
	case "", "float":
		return source.ArgFloat, nil
	case "double":
		return source.ArgDouble, nil
	case "bool":
		return source.ArgBool, nil
	case "int":
		return source.ArgInt, nil
	case "long":
		return source.ArgLong, nil
	case "string":
		return source.ArgString, nil
	case "blob":
		return source.ArgBlob, nil
	case "nil":
		return source.ArgNil, nil
	case "inf":
		return source.ArgInf, nil
	default:
		return 0, fmt.Errorf("unknown osc argument kind %q", s)
	}
}

func oscArgKindName(k source.OscArgKind) string {
	switch k {
	case source.ArgDouble:
		return "double"
	case source.ArgBool:
		return "bool"
	case source.ArgInt:
		return "int"
	case source.ArgLong:
		return "long"
	case source.ArgString:
		return "string"
	case source.ArgBlob:
		return "blob"
	case source.ArgNil:
		return "nil"
	case source.ArgInf:
		return "inf"
	default:
		return ""
	}
}

func parseElementCharacter(s string) (source.ElementCharacter, error) {
	switch s {
	case "", "multi":
		return source.Multi, nil
	case "button":
		return source.Button, nil
	default:
		return 0, fmt.Errorf("unknown element character %q", s)
	}
}

func elementCharacterName(c source.ElementCharacter) string {
	if c == source.Button {
		return "button"
	}
	return ""
}

func parseAbsoluteMode(s string) (mode.AbsoluteMode, error) {
	switch s {
	case "", "normal":
		return mode.AbsoluteNormal, nil
	case "incremental-button":
		return mode.IncrementalButton, nil
	case "toggle-button":
		return mode.ToggleButton, nil
	case "make-relative":
		return mode.MakeRelativeMode, nil
	default:
		return 0, fmt.Errorf("unknown absolute mode %q", s)
	}
}

func absoluteModeName(m mode.AbsoluteMode) string {
	switch m {
	case mode.IncrementalButton:
		return "incremental-button"
	case mode.ToggleButton:
		return "toggle-button"
	case mode.MakeRelativeMode:
		return "make-relative"
	default:
		return ""
	}
}

func parseOutOfRangeBehavior(s string) (mode.OutOfRangeBehavior, error) {
	switch s {
	case "", "min-or-max":
		return mode.OutOfRangeMinOrMax, nil
	case "min":
		return mode.OutOfRangeMin, nil
	case "ignore":
		return mode.OutOfRangeIgnore, nil
	default:
		return 0, fmt.Errorf("unknown out-of-range behavior %q", s)
	}
}

func outOfRangeBehaviorName(b mode.OutOfRangeBehavior) string {
	switch b {
	case mode.OutOfRangeMin:
		return "min"
	case mode.OutOfRangeIgnore:
		return "ignore"
	default:
		return ""
	}
}

func parseTakeoverMode(s string) (mode.TakeoverMode, error) {
	switch s {
	case "", "pick-up":
		return mode.TakeoverPickUp, nil
	case "long-time-no-see":
		return mode.TakeoverLongTimeNoSee, nil
	case "parallel":
		return mode.TakeoverParallel, nil
	case "value-scaling":
		return mode.TakeoverValueScaling, nil
	default:
		return 0, fmt.Errorf("unknown takeover mode %q", s)
	}
}

func takeoverModeName(m mode.TakeoverMode) string {
	switch m {
	case mode.TakeoverLongTimeNoSee:
		return "long-time-no-see"
	case mode.TakeoverParallel:
		return "parallel"
	case mode.TakeoverValueScaling:
		return "value-scaling"
	default:
		return ""
	}
}

func parseButtonUsage(s string) (mode.ButtonUsage, error) {
	switch s {
	case "", "both":
		return mode.ButtonBoth, nil
	case "press-only":
		return mode.ButtonPressOnly, nil
	case "release-only":
		return mode.ButtonReleaseOnly, nil
	default:
		return 0, fmt.Errorf("unknown button usage %q", s)
	}
}

func buttonUsageName(u mode.ButtonUsage) string {
	switch u {
	case mode.ButtonPressOnly:
		return "press-only"
	case mode.ButtonReleaseOnly:
		return "release-only"
	default:
		return ""
	}
}

func parseEncoderUsage(s string) (mode.EncoderUsage, error) {
	switch s {
	case "", "both":
		return mode.EncoderBoth, nil
	case "increment-only":
		return mode.EncoderIncrementOnly, nil
	case "decrement-only":
		return mode.EncoderDecrementOnly, nil
	default:
		return 0, fmt.Errorf("unknown encoder usage %q", s)
	}
}

func encoderUsageName(u mode.EncoderUsage) string {
	switch u {
	case mode.EncoderIncrementOnly:
		return "increment-only"
	case mode.EncoderDecrementOnly:
		return "decrement-only"
	default:
		return ""
	}
}

func parseFireMode(s string) (mode.FireMode, error) {
	switch s {
	case "", "press-and-release":
		return mode.FireOnPressAndRelease, nil
	case "after-timeout":
		return mode.FireAfterTimeout, nil
	case "after-timeout-keep-firing":
		return mode.FireAfterTimeoutKeepFiring, nil
	case "single-press":
		return mode.FireOnSinglePress, nil
	case "double-press":
		return mode.FireOnDoublePress, nil
	default:
		return 0, fmt.Errorf("unknown fire mode %q", s)
	}
}

func fireModeName(m mode.FireMode) string {
	switch m {
	case mode.FireAfterTimeout:
		return "after-timeout"
	case mode.FireAfterTimeoutKeepFiring:
		return "after-timeout-keep-firing"
	case mode.FireOnSinglePress:
		return "single-press"
	case mode.FireOnDoublePress:
		return "double-press"
	default:
		return ""
	}
}

func parseGroupInteraction(s string) (mode.GroupInteraction, error) {
	switch s {
	case "", "none":
		return mode.InteractionNone, nil
	case "same-control":
		return mode.SameControl, nil
	case "inverse-control":
		return mode.InverseControl, nil
	case "same-target-value":
		return mode.SameTargetValue, nil
	case "inverse-target-value":
		return mode.InverseTargetValue, nil
	case "inverse-target-value-on-only":
		return mode.InverseTargetValueOnOnly, nil
	default:
		return 0, fmt.Errorf("unknown group interaction %q", s)
	}
}

func groupInteractionName(g mode.GroupInteraction) string {
	switch g {
	case mode.SameControl:
		return "same-control"
	case mode.InverseControl:
		return "inverse-control"
	case mode.SameTargetValue:
		return "same-target-value"
	case mode.InverseTargetValue:
		return "inverse-target-value"
	case mode.InverseTargetValueOnOnly:
		return "inverse-target-value-on-only"
	default:
		return ""
	}
}

func parseTransportOp(s string) (target.TransportOp, error) {
	switch s {
	case "", "play-stop":
		return target.OpPlayStop, nil
	case "play-pause":
		return target.OpPlayPause, nil
	case "stop":
		return target.OpStop, nil
	case "pause":
		return target.OpPause, nil
	case "record":
		return target.OpRecord, nil
	case "repeat":
		return target.OpRepeat, nil
	default:
		return 0, fmt.Errorf("unknown transport action %q", s)
	}
}

func transportOpName(op target.TransportOp) string {
	switch op {
	case target.OpPlayPause:
		return "play-pause"
	case target.OpStop:
		return "stop"
	case target.OpPause:
		return "pause"
	case target.OpRecord:
		return "record"
	case target.OpRepeat:
		return "repeat"
	default:
		return "play-stop"
	}
}
