package engine

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/mapping"
	"github.com/tilde-audio/remap/internal/mode"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
	"github.com/tilde-audio/remap/internal/unit"
)

// Per-cycle drain limits. Control drains generously because one hardware
// gesture can produce many messages; session and parameter tasks arrive
// rarely.
const (
	sessionBulkSize   = 10
	parameterBulkSize = 100
	changeBulkSize    = 500
	feedbackCmdBulk   = 50
	instanceBulkSize  = 50
	controlBulkSize   = 500
)

// snapshotEntry is one recorded mapping target value.
type snapshotEntry struct {
	ID    mapping.QualifiedID
	Value unit.AbsoluteValue
}

// MainProcessor owns one instance's mapping tables, parameter array and
// feedback state. It runs on the main thread; everything reaches it
// through bounded channels drained once per cycle in a fixed phase order
// (session, parameter, feedback, instance events, poll-for-feedback,
// control), so a parameter update always resolves before that cycle's
// feedback is computed.
type MainProcessor struct {
	log        *slog.Logger
	instanceID string

	hook     *AudioHook
	backbone *Backbone
	rt       *RealTimeProcessor

	provider      target.Provider
	midiOutDevice string
	oscOut        target.OscSender

	fromRT         chan ControlEvent
	sessionCmds    chan SessionCommand
	paramTasks     chan ParameterTask
	changeEvents   chan target.ChangeEvent
	feedbackCmds   chan FeedbackCommand
	instanceEvents chan InstanceEvent
	adapterControl chan source.Message

	beatPending atomic.Bool

	controlMode ControlMode
	capture     chan<- source.Message
	enabled     bool
	controlOn   bool
	feedbackOn  bool
	suspended   bool
	upperFloor  bool

	params [mapping.ParamSlotCount]float64
	// One mapping slice and group table per compartment, indexed by the
	// compartment constant. Registration order is control order.
	mappings [2][]*mapping.Mapping
	groups   [2]map[uuid.UUID]*mapping.Group

	snapshots map[string][]snapshotEntry

	cache       *feedbackCache
	lastPolled  map[mapping.QualifiedID]float64
	echoed      map[source.Address]bool
	lastTouched target.Target
}

// NewMainProcessor builds the instance's main-thread half plus its
// real-time splinter and registers nothing; the caller registers with the
// backbone and the audio hook.
func NewMainProcessor(instanceID string, log *slog.Logger, hook *AudioHook, backbone *Backbone, provider target.Provider, midiOutDevice string, oscOut target.OscSender) *MainProcessor {
	p := &MainProcessor{
		log:            log.With("instance", instanceID),
		instanceID:     instanceID,
		hook:           hook,
		backbone:       backbone,
		provider:       provider,
		midiOutDevice:  midiOutDevice,
		oscOut:         oscOut,
		fromRT:         make(chan ControlEvent, 1024),
		sessionCmds:    make(chan SessionCommand, 64),
		paramTasks:     make(chan ParameterTask, 256),
		changeEvents:   make(chan target.ChangeEvent, 1024),
		feedbackCmds:   make(chan FeedbackCommand, 64),
		instanceEvents: make(chan InstanceEvent, 256),
		adapterControl: make(chan source.Message, 1024),
		controlMode:    Controlling,
		enabled:        true,
		controlOn:      true,
		feedbackOn:     true,
		snapshots:      make(map[string][]snapshotEntry),
		cache:          newFeedbackCache(),
		lastPolled:     make(map[mapping.QualifiedID]float64),
		echoed:         make(map[source.Address]bool),
	}
	p.rt = NewRealTimeProcessor(instanceID, p.fromRT)
	p.rt.SetOutputDevice(midiOutDevice)
	p.rt.SetControlOn(true)
	return p
}

// InstanceID implements Instance.
func (p *MainProcessor) InstanceID() string { return p.instanceID }

// RealTime returns the audio-thread half for hook registration.
func (p *MainProcessor) RealTime() *RealTimeProcessor { return p.rt }

// SetInputDevice assigns the MIDI input both halves listen to.
func (p *MainProcessor) SetInputDevice(device string) { p.rt.SetInputDevice(device) }

// Enqueue methods. All drop when full except where noted; the senders run
// inside host callbacks and must never block.

// EnqueueSessionCommand queues a session task.
func (p *MainProcessor) EnqueueSessionCommand(cmd SessionCommand) {
	select {
	case p.sessionCmds <- cmd:
	default:
		p.log.Warn("session command dropped")
	}
}

// EnqueueParameter queues a parameter slot update.
func (p *MainProcessor) EnqueueParameter(t ParameterTask) {
	select {
	case p.paramTasks <- t:
	default:
		p.log.Warn("parameter task dropped", "index", t.Index)
	}
}

// EnqueueChangeEvent queues one host change notification.
func (p *MainProcessor) EnqueueChangeEvent(evt target.ChangeEvent) {
	select {
	case p.changeEvents <- evt:
	default:
	}
}

// EnqueueFeedbackCommand queues a feedback recomputation request.
func (p *MainProcessor) EnqueueFeedbackCommand(cmd FeedbackCommand) {
	select {
	case p.feedbackCmds <- cmd:
	default:
	}
}

// EnqueueInstanceEvent queues a cross-instance orchestration event.
func (p *MainProcessor) EnqueueInstanceEvent(evt InstanceEvent) {
	select {
	case p.instanceEvents <- evt:
	default:
		p.log.Warn("instance event dropped")
	}
}

// EnqueueControl queues a control message from the adapter (OSC, meta).
func (p *MainProcessor) EnqueueControl(msg source.Message) {
	select {
	case p.adapterControl <- msg:
	default:
	}
}

// NotifyBeat marks that a musical beat boundary passed since the last
// cycle. Beat-resolution mappings are re-polled on the next cycle.
func (p *MainProcessor) NotifyBeat() { p.beatPending.Store(true) }

// SetLastTouched updates the globally last touched target.
func (p *MainProcessor) SetLastTouched(t target.Target) { p.lastTouched = t }

// Parameter returns one parameter slot value.
func (p *MainProcessor) Parameter(i int) float64 {
	if i < 0 || i >= mapping.ParamSlotCount {
		return 0
	}
	return p.params[i]
}

func (p *MainProcessor) ctx() target.Context {
	return target.Context{
		Provider:    p.provider,
		MidiOut:     p.hook.Sender(p.midiOutDevice),
		OscOut:      p.oscOut,
		LastTouched: p.lastTouched,
	}
}

func (p *MainProcessor) resolveCtx() target.ResolveContext {
	return target.ResolveContext{Provider: p.provider, Params: p.params[:]}
}

// instanceControlOn is the instance-wide control conjunction fed into each
// mapping's effective-on check.
func (p *MainProcessor) instanceControlOn() bool {
	return p.enabled && p.controlOn && p.controlMode == Controlling
}

func (p *MainProcessor) instanceFeedbackOn() bool {
	return p.enabled && p.feedbackOn && !p.suspended
}

// Run executes one main-loop cycle. Phases run in a fixed order every
// cycle; control comes last so it always sees this cycle's parameter and
// structure updates.
func (p *MainProcessor) Run(now time.Time) {
	p.drainSessionCommands()
	p.drainParameterTasks()
	p.drainChangeEvents()
	// Echo marks live until the change-event wave caused by the hit has
	// been drained; the hit happens in the control phase of cycle N, the
	// host's notification arrives in cycle N+1.
	for addr := range p.echoed {
		delete(p.echoed, addr)
	}
	p.drainFeedbackCommands()
	p.drainInstanceEvents()
	p.pollForFeedback()
	p.drainControl(now)
	p.pollMappings(now)
}

// --- session phase ---

func (p *MainProcessor) drainSessionCommands() {
	for i := 0; i < sessionBulkSize; i++ {
		select {
		case cmd := <-p.sessionCmds:
			p.applySessionCommand(cmd)
		default:
			return
		}
	}
}

func (p *MainProcessor) applySessionCommand(cmd SessionCommand) {
	switch c := cmd.(type) {
	case UpdateAllMappings:
		p.updateAllMappings(c)
	case UpdateSingleMapping:
		p.updateSingleMapping(c.Mapping)
	case UpdateSettings:
		p.updateSettings(c)
	case StartLearning:
		p.controlMode = LearningSource
		p.capture = c.Capture
		p.syncRealTime()
	case StopLearning:
		p.controlMode = Controlling
		p.capture = nil
		p.syncRealTime()
	case TakeSnapshot:
		p.takeSnapshot(c.Name)
	}
}

func (p *MainProcessor) updateAllMappings(c UpdateAllMappings) {
	before := p.activeAddresses()
	groups := make(map[uuid.UUID]*mapping.Group, len(c.Groups))
	for _, g := range c.Groups {
		groups[g.ID] = g
	}
	p.groups[c.Compartment] = groups
	p.mappings[c.Compartment] = c.Mappings
	p.refreshCompartment(c.Compartment)
	p.finishStructureChange(before)
	p.log.Info("mappings updated",
		"compartment", c.Compartment.String(), "count", len(c.Mappings))
}

func (p *MainProcessor) updateSingleMapping(m *mapping.Mapping) {
	before := p.activeAddresses()
	ms := p.mappings[m.Compartment]
	replaced := false
	for i, existing := range ms {
		if existing.ID == m.ID {
			ms[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		ms = append(ms, m)
	}
	p.mappings[m.Compartment] = ms
	rel := p.compartmentParams(m.Compartment)
	m.RefreshActivation(rel, p.groupActive(m))
	if err := m.RefreshTargets(p.resolveCtx()); err != nil {
		p.log.Debug("target resolution failed", "mapping", m.ID, "err", err)
	}
	p.finishStructureChange(before)
}

func (p *MainProcessor) updateSettings(c UpdateSettings) {
	before := p.activeAddresses()
	p.controlOn = c.ControlOn
	p.feedbackOn = c.FeedbackOn
	p.rt.SetControlOn(p.instanceControlOn())
	p.rt.SetClaimMatched(c.ClaimMatchedEvents)
	if c.UpperFloor != p.upperFloor && p.backbone != nil {
		p.upperFloor = c.UpperFloor
		if c.UpperFloor {
			p.backbone.SuspendLowerFloors(p, p.midiOutDevice)
		} else {
			p.backbone.ReleaseCeiling(p, p.midiOutDevice)
		}
	}
	p.finishStructureChange(before)
}

func (p *MainProcessor) takeSnapshot(name string) {
	var entries []snapshotEntry
	ctx := p.ctx()
	for _, m := range p.mappings[mapping.CompartmentMain] {
		for _, t := range m.Targets() {
			if v, ok := t.CurrentValue(ctx); ok {
				entries = append(entries, snapshotEntry{ID: m.QualifiedID(), Value: v})
				break
			}
		}
	}
	p.snapshots[name] = entries
}

// refreshCompartment re-evaluates activation and targets for every mapping
// in the compartment against the current parameter array.
func (p *MainProcessor) refreshCompartment(c mapping.Compartment) {
	rel := p.compartmentParams(c)
	for _, g := range p.groups[c] {
		g.RefreshActivation(rel)
	}
	rctx := p.resolveCtx()
	for _, m := range p.mappings[c] {
		m.RefreshActivation(rel, p.groupActive(m))
		if err := m.RefreshTargets(rctx); err != nil {
			p.log.Debug("target resolution failed", "mapping", m.ID, "err", err)
		}
	}
}

// finishStructureChange runs after anything that can alter the set of
// effectively-on mappings: sync the real-time splinter, send off-feedback
// for addresses that fell out of use (with takeover arbitration) and
// initial feedback for the rest.
func (p *MainProcessor) finishStructureChange(before map[source.Address]source.FeedbackValue) {
	p.syncRealTime()
	after := p.activeAddresses()
	for addr, off := range before {
		if _, still := after[addr]; !still {
			p.releaseSource(addr, off)
		}
	}
	p.sendAllFeedback(ReasonNormal)
}

// compartmentParams returns the compartment-relative 100-slot window.
func (p *MainProcessor) compartmentParams(c mapping.Compartment) []float64 {
	off := c.ParamOffset()
	return p.params[off : off+mapping.CompartmentParamCount]
}

func (p *MainProcessor) groupActive(m *mapping.Mapping) bool {
	g := p.groups[m.Compartment][m.GroupID]
	if g == nil {
		return true
	}
	return g.IsActive()
}

// syncRealTime pushes a fresh splinter table to the audio thread.
func (p *MainProcessor) syncRealTime() {
	on := p.instanceControlOn()
	var rts []*mapping.RealTimeMapping
	for _, ms := range p.mappings {
		for _, m := range ms {
			rts = append(rts, m.SplinterRealTime(on))
		}
	}
	p.rt.SetControlOn(on)
	p.rt.UpdateMappings(rts)
}

// --- parameter phase ---

func (p *MainProcessor) drainParameterTasks() {
	for i := 0; i < parameterBulkSize; i++ {
		select {
		case t := <-p.paramTasks:
			p.applyParameterTask(t)
		default:
			return
		}
	}
}

// applyParameterTask updates parameter slots and propagates the change:
// group and mapping activation are re-evaluated in a read pass that only
// collects flips, then the flips are applied (lifecycle hooks, feedback),
// so the mapping table is never mutated while being evaluated.
func (p *MainProcessor) applyParameterTask(t ParameterTask) {
	before := p.activeAddresses()
	if t.All != nil {
		p.params = *t.All
	} else if t.Index >= 0 && t.Index < mapping.ParamSlotCount {
		p.params[t.Index] = t.Value
	}

	var activated []*mapping.Mapping
	var deactivated []*mapping.Mapping
	rctx := p.resolveCtx()
	for _, c := range []mapping.Compartment{mapping.CompartmentController, mapping.CompartmentMain} {
		rel := p.compartmentParams(c)
		for _, g := range p.groups[c] {
			g.RefreshActivation(rel)
		}
		for _, m := range p.mappings[c] {
			change, flipped := m.RefreshActivation(rel, p.groupActive(m))
			if flipped {
				if change.NowActive {
					activated = append(activated, m)
				} else {
					deactivated = append(deactivated, m)
				}
			}
			if m.Descriptor.DependsOnParameters() {
				if err := m.RefreshTargets(rctx); err != nil {
					p.log.Debug("target resolution failed", "mapping", m.ID, "err", err)
				}
			}
		}
	}

	p.syncRealTime()

	for _, m := range deactivated {
		p.sendLifecycle(m.Lifecycle.OnDeactivate)
	}
	after := p.activeAddresses()
	for addr, off := range before {
		if _, still := after[addr]; !still {
			p.releaseSource(addr, off)
		}
	}
	for _, m := range activated {
		p.sendLifecycle(m.Lifecycle.OnActivate)
		p.sendMappingFeedback(m, ReasonNormal)
	}
}

// sendLifecycle writes raw MIDI lifecycle sequences straight to the
// feedback device, bypassing dedup (they are commands, not state).
func (p *MainProcessor) sendLifecycle(seqs [][]byte) {
	for _, raw := range seqs {
		if len(raw) == 0 {
			continue
		}
		p.hook.EnqueueFeedback(FeedbackTask{Device: p.midiOutDevice, Msg: midi.Message(raw)})
	}
}

// --- feedback phase ---

func (p *MainProcessor) drainChangeEvents() {
	for i := 0; i < changeBulkSize; i++ {
		select {
		case evt := <-p.changeEvents:
			p.processChangeEvent(evt)
		default:
			return
		}
	}
}

// processChangeEvent pushes a host change into feedback for every mapping
// whose target recognizes it.
func (p *MainProcessor) processChangeEvent(evt target.ChangeEvent) {
	ctx := p.ctx()
	for _, ms := range p.mappings {
		for _, m := range ms {
			if !m.FeedbackIsEffectivelyOn(p.instanceFeedbackOn()) {
				continue
			}
			for _, t := range m.Targets() {
				if _, ok := t.ProcessChangeEvent(evt, ctx); ok {
					p.sendMappingFeedback(m, ReasonNormal)
					break
				}
			}
		}
	}
}

func (p *MainProcessor) drainFeedbackCommands() {
	for i := 0; i < feedbackCmdBulk; i++ {
		select {
		case cmd := <-p.feedbackCmds:
			p.applyFeedbackCommand(cmd)
		default:
			return
		}
	}
}

func (p *MainProcessor) applyFeedbackCommand(cmd FeedbackCommand) {
	if cmd.RefreshTargets {
		before := p.activeAddresses()
		p.refreshCompartment(mapping.CompartmentController)
		p.refreshCompartment(mapping.CompartmentMain)
		p.finishStructureChange(before)
		return
	}
	if cmd.Resync {
		p.cache.reset()
		p.sendAllFeedback(ReasonNormal)
		return
	}
	if cmd.HasID {
		if m := p.find(cmd.MappingID); m != nil {
			p.sendMappingFeedback(m, ReasonNormal)
		}
	}
}

func (p *MainProcessor) find(id mapping.QualifiedID) *mapping.Mapping {
	for _, m := range p.mappings[id.Compartment] {
		if m.ID == id.ID {
			return m
		}
	}
	return nil
}

// --- instance event phase ---

func (p *MainProcessor) drainInstanceEvents() {
	for i := 0; i < instanceBulkSize; i++ {
		select {
		case evt := <-p.instanceEvents:
			if evt.Suspend {
				p.Suspend()
			}
			if evt.Reactivate {
				p.Reactivate()
			}
		default:
			return
		}
	}
}

// Suspend implements Instance: all lights off with an always-allowed
// reason, then park.
func (p *MainProcessor) Suspend() {
	if p.suspended {
		return
	}
	for _, off := range p.activeAddresses() {
		p.sendRendered(off, ReasonSuspension)
	}
	p.suspended = true
	p.log.Debug("instance suspended")
}

// Reactivate implements Instance: resume with a full resend, since the
// cache predates the suspension.
func (p *MainProcessor) Reactivate() {
	if !p.suspended {
		return
	}
	p.suspended = false
	p.cache.reset()
	p.sendAllFeedback(ReasonReactivation)
	p.log.Debug("instance reactivated")
}

// SetEnabled implements Instance (enable-instances meta target).
func (p *MainProcessor) SetEnabled(on bool) {
	if p.enabled == on {
		return
	}
	before := p.activeAddresses()
	p.enabled = on
	p.finishStructureChange(before)
}

// UsesFeedbackOutput implements Instance.
func (p *MainProcessor) UsesFeedbackOutput(device string) bool {
	return device != "" && device == p.midiOutDevice
}

// MaybeTakeoverSource implements Instance: if a live mapping here shares
// the released address, re-assert its feedback so the control never
// flickers to off.
func (p *MainProcessor) MaybeTakeoverSource(device string, addr source.Address) bool {
	if device != p.midiOutDevice || !p.instanceFeedbackOn() {
		return false
	}
	for _, ms := range p.mappings {
		for _, m := range ms {
			if !m.FeedbackIsEffectivelyOn(p.instanceFeedbackOn()) {
				continue
			}
			a, ok := m.FeedbackAddress()
			if !ok || a != addr {
				continue
			}
			if fv, ok := m.Feedback(p.ctx()); ok {
				p.sendRendered(fv, ReasonTakeover)
				return true
			}
		}
	}
	return false
}

// releaseSource runs the takeover protocol for one no-longer-used address
// and switches it off only when nobody took over. The cached value is
// forgotten either way so a later re-registration of the address sends
// unconditionally.
func (p *MainProcessor) releaseSource(addr source.Address, off source.FeedbackValue) {
	defer p.cache.forget(addr)
	if p.backbone != nil && p.backbone.MaybeTakeoverSource(p, p.midiOutDevice, addr) {
		return
	}
	p.sendRendered(off, ReasonFinalOff)
}

// activeAddresses maps every feedback address currently driven by an
// effectively-on mapping to its off value.
func (p *MainProcessor) activeAddresses() map[source.Address]source.FeedbackValue {
	out := make(map[source.Address]source.FeedbackValue)
	for _, ms := range p.mappings {
		for _, m := range ms {
			if !m.FeedbackIsEffectivelyOn(p.instanceFeedbackOn()) {
				continue
			}
			addr, ok := m.FeedbackAddress()
			if !ok {
				continue
			}
			if _, seen := out[addr]; seen {
				continue
			}
			if off, ok := m.OffFeedback(); ok {
				out[addr] = off
			}
		}
	}
	return out
}

// sendAllFeedback recomputes and sends feedback for every effectively-on
// mapping.
func (p *MainProcessor) sendAllFeedback(reason FeedbackReason) {
	for _, ms := range p.mappings {
		for _, m := range ms {
			p.sendMappingFeedback(m, reason)
		}
	}
}

func (p *MainProcessor) sendMappingFeedback(m *mapping.Mapping, reason FeedbackReason) {
	if !m.FeedbackIsEffectivelyOn(p.instanceFeedbackOn()) && !reason.AlwaysAllowed() {
		return
	}
	if fv, ok := m.Feedback(p.ctx()); ok {
		p.sendRendered(fv, reason)
	}
}

// sendRendered is the single exit point for feedback values: gates,
// dedup, then dispatch by kind. Virtual values are routed back through
// controller mappings targeting the same control element.
func (p *MainProcessor) sendRendered(fv source.FeedbackValue, reason FeedbackReason) {
	if !reason.AlwaysAllowed() {
		if !p.instanceFeedbackOn() {
			return
		}
		if reason == ReasonNormal && p.echoed[fv.Address] {
			return
		}
	}
	if !p.cache.shouldSend(fv, reason) {
		return
	}
	switch fv.Kind {
	case source.MidiFeedback:
		for _, msg := range fv.Midi {
			p.hook.EnqueueFeedback(FeedbackTask{Device: p.midiOutDevice, Msg: msg})
		}
	case source.OscFeedback:
		if p.oscOut != nil && fv.Osc != nil {
			p.oscOut.SendOsc(fv.Osc)
		}
	case source.VirtualFeedback:
		p.routeVirtualFeedback(fv, reason)
	}
}

// routeVirtualFeedback translates a virtual control element value into
// hardware feedback via every controller mapping whose target addresses
// that element.
func (p *MainProcessor) routeVirtualFeedback(fv source.FeedbackValue, reason FeedbackReason) {
	val := unit.ContinuousValue(fv.Virtual.Value.Unit())
	for _, m := range p.mappings[mapping.CompartmentController] {
		elem, ok := m.VirtualTargetElement()
		if !ok || elem != fv.Virtual.Element {
			continue
		}
		if !m.FeedbackIsEffectivelyOn(p.instanceFeedbackOn()) && !reason.AlwaysAllowed() {
			continue
		}
		v, ok := m.Mode().Feedback(val)
		if !ok {
			continue
		}
		rendered, ok := m.Source.Feedback(v, fv.Style)
		if !ok || rendered.Kind == source.VirtualFeedback {
			continue
		}
		p.sendRendered(rendered, reason)
	}
}

// --- poll-for-feedback phase ---

// pollForFeedback re-evaluates mappings whose targets have no usable push
// notification. High resolution polls every cycle and suppresses sends
// while the value compares exactly equal to the last one; beat resolution
// polls only when a beat boundary passed. Textual feedback skips the
// value compare because the displayed text can change independently.
func (p *MainProcessor) pollForFeedback() {
	beat := p.beatPending.Swap(false)
	ctx := p.ctx()
	for _, ms := range p.mappings {
		for _, m := range ms {
			res, polled := m.UsesPolledFeedback()
			if !polled || !m.FeedbackIsEffectivelyOn(p.instanceFeedbackOn()) {
				continue
			}
			if res == target.ResolutionBeat && !beat {
				continue
			}
			fv, ok := m.Feedback(ctx)
			if !ok {
				continue
			}
			if len(m.Mode().FeedbackProps()) == 0 {
				cur := pollValue(m, ctx)
				if last, seen := p.lastPolled[m.QualifiedID()]; seen && last == cur {
					continue
				}
				p.lastPolled[m.QualifiedID()] = cur
			}
			p.sendRendered(fv, ReasonNormal)
		}
	}
}

func pollValue(m *mapping.Mapping, ctx target.Context) float64 {
	for _, t := range m.Targets() {
		if v, ok := t.CurrentValue(ctx); ok {
			return v.Unit().Get()
		}
	}
	return 0
}

// --- control phase ---

func (p *MainProcessor) drainControl(now time.Time) {
rt:
	for i := 0; i < controlBulkSize; i++ {
		select {
		case evt := <-p.fromRT:
			p.processControlMessage(evt.Msg, evt.Timestamp, true)
		default:
			break rt
		}
	}
	for i := 0; i < controlBulkSize; i++ {
		select {
		case msg := <-p.adapterControl:
			p.processControlMessage(msg, now, false)
		default:
			return
		}
	}
}

// processControlMessage routes one incoming message by control mode.
// While learning, the message goes to the capture channel and nothing
// touches host state. fromRT marks messages that already passed through
// the real-time processor.
func (p *MainProcessor) processControlMessage(msg source.Message, now time.Time, fromRT bool) {
	switch p.controlMode {
	case LearningSource:
		if p.capture != nil {
			select {
			case p.capture <- msg:
			default:
			}
		}
		return
	case ControlDisabled:
		return
	}
	for _, c := range []mapping.Compartment{mapping.CompartmentController, mapping.CompartmentMain} {
		for _, m := range p.mappings[c] {
			if !m.ControlIsEffectivelyOn(p.instanceControlOn()) {
				continue
			}
			// The audio thread already hit this one locally.
			if fromRT && m.HitsOnAudioThread() {
				continue
			}
			cv, ok := m.Source.Control(msg)
			if !ok {
				continue
			}
			p.controlMapping(m, cv, now)
		}
	}
}

// controlMapping runs the three control stages for one matched mapping:
// transform, value/feedback notification, then deferred side effects
// (instructions, group fan-out, virtual routing).
func (p *MainProcessor) controlMapping(m *mapping.Mapping, cv unit.ControlValue, now time.Time) {
	p.log.Debug("mapping matched", "mapping", m.ID, "name", m.Name)
	ctx := p.ctx()
	res := m.ControlWithValue(cv, ctx, now)
	p.finishControl(m, cv, res, now)
}

// finishControl handles stages two and three of a control result.
func (p *MainProcessor) finishControl(m *mapping.Mapping, cv unit.ControlValue, res mapping.ControlResult, now time.Time) {
	if !res.Matched {
		return
	}
	if res.HasNewValue {
		p.log.Debug("target value changed",
			"mapping", m.ID, "value", res.NewTargetValue.Unit().Get())
	}
	if res.HasFeedback {
		p.sendRendered(res.Feedback, ReasonAfterControl)
	}
	if res.Successful && m.FeedbackBehavior == source.PreventEchoFeedback {
		if addr, ok := m.FeedbackAddress(); ok {
			p.echoed[addr] = true
		}
	}
	p.executeInstructions(res.Instructions)
	if res.Successful {
		p.fanOutToGroup(m, cv, res, now)
	}
	if res.HasNewValue && m.HasVirtualTarget() {
		p.routeVirtualControl(m, res.NewTargetValue, now)
	}
}

// routeVirtualControl feeds a controller mapping's virtual target value
// into every main mapping listening on the same control element. Only
// absolute values travel through the virtual layer; the controller
// mapping's mode already turned relative input into an absolute element
// value.
func (p *MainProcessor) routeVirtualControl(m *mapping.Mapping, v unit.AbsoluteValue, now time.Time) {
	elem, ok := m.VirtualTargetElement()
	if !ok {
		return
	}
	msg := source.NewVirtualMessage(source.VirtualValue{
		Element: elem,
		Value:   unit.AbsoluteContinuous(v.Unit()),
	})
	for _, mm := range p.mappings[mapping.CompartmentMain] {
		if !mm.ControlIsEffectivelyOn(p.instanceControlOn()) || !mm.HasVirtualSource() {
			continue
		}
		cv, ok := mm.Source.Control(msg)
		if !ok {
			continue
		}
		p.controlMapping(mm, cv, now)
	}
}

// executeInstructions applies deferred mapping-table side effects.
// Instructions may produce one more generation; the loop stops after two
// so a snapshot that re-enables a snapshot-loading mapping cannot cascade
// forever.
func (p *MainProcessor) executeInstructions(instrs []*target.Instruction) {
	for gen := 0; gen < 2 && len(instrs) > 0; gen++ {
		var next []*target.Instruction
		for _, in := range instrs {
			next = append(next, p.executeInstruction(in)...)
		}
		instrs = next
	}
}

func (p *MainProcessor) executeInstruction(in *target.Instruction) []*target.Instruction {
	switch in.Kind {
	case target.InstructionEnableMappings:
		p.enableMappings(in.Tags, in.On, in.Exclusive)
		return nil
	case target.InstructionEnableInstances:
		if p.backbone != nil {
			p.backbone.EnableInstances(p, in.Instances, in.On, in.Exclusive)
		}
		return nil
	case target.InstructionLoadSnapshot:
		return p.loadSnapshot(in.Snapshot)
	}
	return nil
}

// enableMappings flips the enabled flag of tag-matched mappings. With
// exclusive set, unmatched mappings are flipped the other way.
func (p *MainProcessor) enableMappings(tags []string, on, exclusive bool) {
	before := p.activeAddresses()
	for _, ms := range p.mappings {
		for _, m := range ms {
			matched := tagsIntersect(p.effectiveTags(m), tags)
			switch {
			case matched:
				m.Enabled = on
			case exclusive:
				m.Enabled = !on
			}
		}
	}
	p.finishStructureChange(before)
}

func (p *MainProcessor) effectiveTags(m *mapping.Mapping) []string {
	g := p.groups[m.Compartment][m.GroupID]
	if g == nil {
		return m.Tags
	}
	return g.EffectiveTags(m.Tags)
}

func tagsIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// loadSnapshot restores recorded target values, collecting any
// second-generation instructions the hits produce.
func (p *MainProcessor) loadSnapshot(name string) []*target.Instruction {
	entries, ok := p.snapshots[name]
	if !ok {
		p.log.Warn("unknown snapshot", "name", name)
		return nil
	}
	ctx := p.ctx()
	var next []*target.Instruction
	for _, e := range entries {
		m := p.find(e.ID)
		if m == nil {
			continue
		}
		for _, t := range m.Targets() {
			if !t.IsAvailable(ctx) {
				continue
			}
			if instr, err := t.Hit(e.Value, ctx); err == nil && instr != nil {
				next = append(next, instr)
			}
		}
		p.sendMappingFeedback(m, ReasonAfterControl)
	}
	return next
}

// fanOutToGroup propagates one mapping's hit to its group siblings.
// Every sibling after the first hit gets a fresh target resolution, since
// earlier siblings in the same transaction may have changed host state.
func (p *MainProcessor) fanOutToGroup(m *mapping.Mapping, cv unit.ControlValue, res mapping.ControlResult, now time.Time) {
	gi := m.Mode().GroupInteraction()
	if gi == mode.InteractionNone {
		return
	}
	var forward unit.ControlValue
	if gi.IsTargetBased() {
		v := res.NewTargetValue.Unit()
		if gi == mode.InverseTargetValueOnOnly && !v.IsOn() {
			return
		}
		if gi.IsInverse() {
			v = unit.NewValue(1 - v.Get())
		}
		forward = unit.AbsoluteContinuous(v)
	} else {
		forward = cv
		if gi.IsInverse() && !forward.IsRelative() {
			forward = unit.AbsoluteContinuous(unit.NewValue(1 - forward.Unit().Get()))
		}
	}
	ctx := p.ctx()
	rctx := p.resolveCtx()
	enforceRefresh := res.Successful
	for _, sib := range p.mappings[m.Compartment] {
		if sib == m || sib.GroupID != m.GroupID {
			continue
		}
		if !sib.ControlIsEffectivelyOn(p.instanceControlOn()) {
			continue
		}
		if enforceRefresh {
			if err := sib.RefreshTargets(rctx); err != nil {
				continue
			}
		}
		sres := sib.ControlWithValue(forward, ctx, now)
		if sres.HasFeedback {
			p.sendRendered(sres.Feedback, ReasonAfterControl)
		}
		p.executeInstructions(sres.Instructions)
		if sres.Successful {
			enforceRefresh = true
		}
	}
}

// pollMappings advances deferred fire timers (long press, turbo).
func (p *MainProcessor) pollMappings(now time.Time) {
	if p.controlMode != Controlling {
		return
	}
	ctx := p.ctx()
	for _, ms := range p.mappings {
		for _, m := range ms {
			if !m.ControlIsEffectivelyOn(p.instanceControlOn()) {
				continue
			}
			res := m.Poll(ctx, now)
			if res.Matched {
				p.finishControl(m, unit.ControlValue{}, res, now)
			}
		}
	}
}
