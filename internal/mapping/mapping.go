// Package mapping binds one source, one mode and one target descriptor
// into a controllable, feedback-capable unit, gated by enabled flags and
// activation conditions. It also provides the lighter real-time splinter
// that is pushed to the audio thread.
package mapping

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tilde-audio/remap/internal/mode"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
	"github.com/tilde-audio/remap/internal/unit"
)

// Compartment is the mapping namespace. Controller mappings face the
// hardware (virtual targets), main mappings face the host (real targets).
type Compartment int

const (
	CompartmentController Compartment = iota
	CompartmentMain
)

func (c Compartment) String() string {
	if c == CompartmentController {
		return "controller"
	}
	return "main"
}

// Parameter array layout: 200 slots total, fixed 100-slot ranges per
// compartment.
const (
	ParamSlotCount        = 200
	CompartmentParamCount = 100
	MainParamOffset       = 0
	ControllerParamOffset = 100
)

// ParamOffset returns the compartment's base slot in the 200-slot array.
func (c Compartment) ParamOffset() int {
	if c == CompartmentController {
		return ControllerParamOffset
	}
	return MainParamOffset
}

// QualifiedID identifies a mapping across compartments.
type QualifiedID struct {
	Compartment Compartment
	ID          uuid.UUID
}

func (q QualifiedID) String() string {
	return fmt.Sprintf("%s/%s", q.Compartment, q.ID)
}

// Lifecycle holds raw MIDI byte sequences sent to the feedback output when
// the mapping becomes active/inactive (controller init/shutdown ramps).
type Lifecycle struct {
	OnActivate   [][]byte
	OnDeactivate [][]byte
}

// Mapping is the full main-thread mapping.
type Mapping struct {
	ID          uuid.UUID
	Compartment Compartment
	Name        string
	Tags        []string
	GroupID     uuid.UUID

	Enabled             bool
	ControlEnabled      bool
	FeedbackEnabled     bool
	VisibleInProjection bool

	Activation ActivationCondition
	Lifecycle  Lifecycle

	// FeedbackBehavior controls echo handling for this mapping's source.
	FeedbackBehavior source.FeedbackBehavior

	Source     source.Source
	Settings   mode.Settings
	Descriptor target.Descriptor

	mode    *mode.Mode
	targets []target.Target
	// active is the own activation condition result; groupActive the
	// owning group's. Both must hold for the mapping to be live.
	active      bool
	groupActive bool
}

// New builds a mapping with all enabled flags on and activation pending
// evaluation.
func New(compartment Compartment, id uuid.UUID, src source.Source, settings mode.Settings, desc target.Descriptor) *Mapping {
	return &Mapping{
		ID:              id,
		Compartment:     compartment,
		Enabled:         true,
		ControlEnabled:  true,
		FeedbackEnabled: true,
		Source:          src,
		Settings:        settings,
		Descriptor:      desc,
		mode:            mode.New(settings, src.Characters()),
		active:          true,
		groupActive:     true,
	}
}

// QualifiedID returns the mapping's cross-compartment identity.
func (m *Mapping) QualifiedID() QualifiedID {
	return QualifiedID{Compartment: m.Compartment, ID: m.ID}
}

// Mode exposes the runtime transform (the engine needs its polling and
// feedback prop information).
func (m *Mapping) Mode() *mode.Mode { return m.mode }

// Targets returns the currently resolved targets.
func (m *Mapping) Targets() []target.Target { return m.targets }

// HasVirtualTarget reports whether this mapping feeds the virtual routing
// layer instead of host state.
func (m *Mapping) HasVirtualTarget() bool { return m.Descriptor.IsVirtual() }

// VirtualTargetElement returns the addressed control element for virtual
// target mappings.
func (m *Mapping) VirtualTargetElement() (source.ElementID, bool) {
	if !m.HasVirtualTarget() {
		return source.ElementID{}, false
	}
	return m.Descriptor.Element, true
}

// HasVirtualSource reports whether this mapping listens to the virtual
// routing layer.
func (m *Mapping) HasVirtualSource() bool {
	_, ok := m.Source.(*source.Virtual)
	return ok
}

// ControlIsEffectivelyOn is the conjunction of the mapping's own flags,
// its activation state and the instance-wide enable flag.
func (m *Mapping) ControlIsEffectivelyOn(instanceControlOn bool) bool {
	return instanceControlOn && m.Enabled && m.ControlEnabled && m.active && m.groupActive
}

// FeedbackIsEffectivelyOn is the feedback-side conjunction.
func (m *Mapping) FeedbackIsEffectivelyOn(instanceFeedbackOn bool) bool {
	return instanceFeedbackOn && m.Enabled && m.FeedbackEnabled && m.active && m.groupActive
}

// IsActive returns the combined activation state without the enabled
// flags.
func (m *Mapping) IsActive() bool { return m.active && m.groupActive }

// ActivationChange reports an activation flip.
type ActivationChange struct {
	ID        QualifiedID
	NowActive bool
}

// RefreshActivation re-evaluates the own and group activation conditions
// against the compartment's parameter slots. It returns the flip, if any.
func (m *Mapping) RefreshActivation(params []float64, groupActive bool) (ActivationChange, bool) {
	was := m.IsActive()
	m.active = m.Activation.IsActive(params)
	m.groupActive = groupActive
	now := m.IsActive()
	if now == was {
		return ActivationChange{}, false
	}
	return ActivationChange{ID: m.QualifiedID(), NowActive: now}, true
}

// DependsOnParameter reports whether the given compartment-relative
// parameter slot can affect this mapping's activation or target
// resolution.
func (m *Mapping) DependsOnParameter(i int) bool {
	return m.Activation.DependsOnParameter(i) || m.Descriptor.DependsOnParameters()
}

// RefreshTargets re-resolves the target descriptor. An empty resolution
// leaves the mapping without targets (unavailable) and is not fatal.
func (m *Mapping) RefreshTargets(ctx target.ResolveContext) error {
	targets, err := m.Descriptor.Resolve(ctx)
	if err != nil {
		m.targets = nil
		return err
	}
	m.targets = targets
	return nil
}

// firstAvailableTarget returns the transform's reference target.
func (m *Mapping) firstAvailableTarget(ctx target.Context) (target.Target, bool) {
	for _, t := range m.targets {
		if t.IsAvailable(ctx) {
			return t, true
		}
	}
	return nil, false
}

// ControlResult is the outcome of offering a message to a mapping.
type ControlResult struct {
	// Matched is true when the source recognized the message, regardless
	// of whether anything was hit.
	Matched bool
	// Successful is true when at least one target was hit.
	Successful bool
	// NewTargetValue is the value the transform produced.
	NewTargetValue unit.AbsoluteValue
	HasNewValue    bool
	// Instructions are deferred mapping-table side effects from meta
	// targets.
	Instructions []*target.Instruction
	// Feedback is set when the source behavior requests an explicit echo
	// after control.
	Feedback    source.FeedbackValue
	HasFeedback bool
}

// Control offers a message to the mapping's source and, on match, runs the
// transform and hits the resolved targets.
func (m *Mapping) Control(msg source.Message, ctx target.Context, now time.Time) ControlResult {
	cv, ok := m.Source.Control(msg)
	if !ok {
		return ControlResult{}
	}
	return m.controlWithValue(cv, ctx, now)
}

// ControlWithValue skips source matching and feeds a control value
// directly into the transform. Group interaction fan-out uses this.
func (m *Mapping) ControlWithValue(cv unit.ControlValue, ctx target.Context, now time.Time) ControlResult {
	return m.controlWithValue(cv, ctx, now)
}

func (m *Mapping) controlWithValue(cv unit.ControlValue, ctx target.Context, now time.Time) ControlResult {
	res := ControlResult{Matched: true}
	ref, ok := m.firstAvailableTarget(ctx)
	if !ok {
		return res
	}
	out, ok := m.mode.Control(cv, modeTarget{t: ref, ctx: ctx}, now)
	if !ok {
		return res
	}
	res.NewTargetValue = out
	res.HasNewValue = true
	m.hitTargets(out, ctx, &res)
	m.attachEchoFeedback(ctx, &res)
	return res
}

// Poll advances deferred fire timers and hits targets when a fire is due.
func (m *Mapping) Poll(ctx target.Context, now time.Time) ControlResult {
	if !m.mode.WantsPolling() {
		return ControlResult{}
	}
	ref, ok := m.firstAvailableTarget(ctx)
	if !ok {
		return ControlResult{}
	}
	out, ok := m.mode.Poll(modeTarget{t: ref, ctx: ctx}, now)
	if !ok {
		return ControlResult{}
	}
	res := ControlResult{Matched: true, NewTargetValue: out, HasNewValue: true}
	m.hitTargets(out, ctx, &res)
	m.attachEchoFeedback(ctx, &res)
	return res
}

func (m *Mapping) hitTargets(v unit.AbsoluteValue, ctx target.Context, res *ControlResult) {
	for _, t := range m.targets {
		if !t.IsAvailable(ctx) {
			continue
		}
		instr, err := t.Hit(v, ctx)
		if err != nil {
			continue
		}
		res.Successful = true
		if instr != nil {
			res.Instructions = append(res.Instructions, instr)
		}
	}
}

func (m *Mapping) attachEchoFeedback(ctx target.Context, res *ControlResult) {
	if m.FeedbackBehavior != source.SendFeedbackAfterControl || !res.Successful {
		return
	}
	if fb, ok := m.Feedback(ctx); ok {
		res.Feedback = fb
		res.HasFeedback = true
	}
}

// Feedback computes the current outgoing feedback value from the first
// available target.
func (m *Mapping) Feedback(ctx target.Context) (source.FeedbackValue, bool) {
	ref, ok := m.firstAvailableTarget(ctx)
	if !ok {
		return source.FeedbackValue{}, false
	}
	cur, ok := ref.CurrentValue(ctx)
	if !ok {
		return source.FeedbackValue{}, false
	}
	v, ok := m.mode.Feedback(cur)
	if !ok {
		return source.FeedbackValue{}, false
	}
	return m.Source.Feedback(v, m.feedbackStyle(ref, ctx))
}

// OffFeedback renders the "lights off" value for this mapping's source.
func (m *Mapping) OffFeedback() (source.FeedbackValue, bool) {
	return m.Source.Feedback(0, source.FeedbackStyle{})
}

// FeedbackAddress returns the output address this mapping's feedback lands
// on.
func (m *Mapping) FeedbackAddress() (source.Address, bool) {
	return m.Source.FeedbackAddress()
}

// UsesPolledFeedback reports whether the mapping must be re-evaluated by
// the polling loop instead of change events, and at which resolution.
func (m *Mapping) UsesPolledFeedback() (target.FeedbackResolution, bool) {
	for _, t := range m.targets {
		if r := t.FeedbackResolution(); r != target.ResolutionNormal {
			return r, true
		}
	}
	if len(m.mode.FeedbackProps()) > 0 {
		// Textual feedback can change without the numeric value changing.
		return target.ResolutionHigh, true
	}
	return target.ResolutionNormal, false
}

func (m *Mapping) feedbackStyle(ref target.Target, ctx target.Context) source.FeedbackStyle {
	style := source.FeedbackStyle{
		Color:           m.Settings.FeedbackColor,
		BackgroundColor: m.Settings.FeedbackBackgroundCol,
		HasColor:        m.Settings.HasFeedbackColor,
	}
	if m.mode.UsesTextFeedback() {
		style.Text = m.mode.RenderText(func(key string) (string, bool) {
			return m.lookupProp(key, ref, ctx)
		})
	}
	return style
}

// lookupProp resolves one textual feedback placeholder.
func (m *Mapping) lookupProp(key string, ref target.Target, ctx target.Context) (string, bool) {
	switch key {
	case "target.text_value":
		return ref.TextValue(ctx), true
	case "target.numeric_value":
		if cur, ok := ref.CurrentValue(ctx); ok {
			return fmt.Sprintf("%.2f", cur.Unit().Get()), true
		}
		return "", false
	case "mapping.name":
		return m.Name, true
	default:
		return "", false
	}
}

// modeTarget adapts a resolved target to the transform's target view.
type modeTarget struct {
	t   target.Target
	ctx target.Context
}

func (a modeTarget) CurrentValue() (unit.AbsoluteValue, bool) {
	return a.t.CurrentValue(a.ctx)
}

func (a modeTarget) Character() mode.TargetCharacter {
	switch a.t.Character() {
	case target.CharacterDiscrete:
		return mode.TargetDiscrete
	case target.CharacterSwitch:
		return mode.TargetSwitch
	case target.CharacterTrigger:
		return mode.TargetTrigger
	default:
		return mode.TargetContinuous
	}
}

func (a modeTarget) DiscreteCount() int { return a.t.DiscreteCount() }
