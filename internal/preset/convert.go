package preset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tilde-audio/remap/internal/mapping"
	"github.com/tilde-audio/remap/internal/mode"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
	"github.com/tilde-audio/remap/internal/unit"
)

// Compartment is a compiled preset: the domain objects the engine loads.
type Compartment struct {
	Mappings []*mapping.Mapping
	Groups   []*mapping.Group
	// Parameters maps compartment-relative slots to initial values.
	Parameters     map[int]float64
	ParameterNames map[int]string
}

// Compile turns the record into domain objects for the given compartment.
// A broken mapping record fails the whole compile; presets are loaded
// atomically or not at all.
func (r *CompartmentRecord) Compile(c mapping.Compartment) (*Compartment, error) {
	out := &Compartment{
		Parameters:     make(map[int]float64),
		ParameterNames: make(map[int]string),
	}
	for i := range r.Groups {
		g, err := recordToGroup(&r.Groups[i])
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		out.Groups = append(out.Groups, g)
	}
	for i := range r.Mappings {
		m, err := ToMapping(&r.Mappings[i], c)
		if err != nil {
			return nil, fmt.Errorf("mapping %d (%s): %w", i, r.Mappings[i].Name, err)
		}
		out.Mappings = append(out.Mappings, m)
	}
	for _, p := range r.Parameters {
		if p.Name != "" {
			out.ParameterNames[p.Index] = p.Name
		}
		if p.Value != 0 {
			out.Parameters[p.Index] = p.Value
		}
	}
	return out, nil
}

// ToMapping compiles one mapping record.
func ToMapping(rec *MappingRecord, c mapping.Compartment) (*mapping.Mapping, error) {
	id, err := parseID(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	src, err := recordToSource(rec.Source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	settings, err := recordToSettings(rec.Glue)
	if err != nil {
		return nil, fmt.Errorf("glue: %w", err)
	}
	desc, err := recordToDescriptor(rec.Target)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	m := mapping.New(c, id, src, settings, desc)
	m.Name = rec.Name
	m.Tags = rec.Tags
	if rec.Group != "" {
		gid, err := uuid.Parse(rec.Group)
		if err != nil {
			return nil, fmt.Errorf("group id: %w", err)
		}
		m.GroupID = gid
	}
	m.Enabled = boolOr(rec.Enabled, true)
	m.ControlEnabled = boolOr(rec.ControlEnabled, true)
	m.FeedbackEnabled = boolOr(rec.FeedbackEnabled, true)
	m.VisibleInProjection = boolOr(rec.VisibleInProjection, true)
	m.Activation, err = recordToActivation(rec.Activation)
	if err != nil {
		return nil, fmt.Errorf("activation: %w", err)
	}
	m.Lifecycle = mapping.Lifecycle{
		OnActivate:   rawMidiSeqs(rec.OnActivate),
		OnDeactivate: rawMidiSeqs(rec.OnDeactivate),
	}
	if rec.Source != nil {
		m.FeedbackBehavior, err = parseFeedbackBehavior(rec.Source.FeedbackBehavior)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
	}
	return m, nil
}

// FromMapping renders one mapping back into its record form. Defaults are
// omitted so saved presets stay minimal.
func FromMapping(m *mapping.Mapping) MappingRecord {
	rec := MappingRecord{
		ID:   m.ID.String(),
		Name: m.Name,
		Tags: m.Tags,
	}
	if m.GroupID != uuid.Nil {
		rec.Group = m.GroupID.String()
	}
	if !m.Enabled {
		rec.Enabled = boolPtr(false)
	}
	if !m.ControlEnabled {
		rec.ControlEnabled = boolPtr(false)
	}
	if !m.FeedbackEnabled {
		rec.FeedbackEnabled = boolPtr(false)
	}
	if !m.VisibleInProjection {
		rec.VisibleInProjection = boolPtr(false)
	}
	rec.Activation = activationToRecord(m.Activation)
	for _, seq := range m.Lifecycle.OnActivate {
		rec.OnActivate = append(rec.OnActivate, RawMidi(seq))
	}
	for _, seq := range m.Lifecycle.OnDeactivate {
		rec.OnDeactivate = append(rec.OnDeactivate, RawMidi(seq))
	}
	rec.Source = sourceToRecord(m.Source, m.FeedbackBehavior)
	rec.Glue = settingsToRecord(m.Settings)
	rec.Target = descriptorToRecord(m.Descriptor)
	return rec
}

// FromCompartment renders compiled domain objects back into a record.
func FromCompartment(c *Compartment) CompartmentRecord {
	rec := CompartmentRecord{Kind: "compartment", Version: "1"}
	for _, g := range c.Groups {
		rec.Groups = append(rec.Groups, groupToRecord(g))
	}
	for _, m := range c.Mappings {
		rec.Mappings = append(rec.Mappings, FromMapping(m))
	}
	for idx, name := range c.ParameterNames {
		rec.Parameters = append(rec.Parameters, ParameterRecord{
			Index: idx,
			Name:  name,
			Value: c.Parameters[idx],
		})
	}
	return rec
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(s)
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func rawMidiSeqs(in []RawMidi) [][]byte {
	var out [][]byte
	for _, r := range in {
		out = append(out, []byte(r))
	}
	return out
}

func recordToGroup(rec *GroupRecord) (*mapping.Group, error) {
	id, err := parseID(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	g := mapping.NewGroup(id, rec.Name)
	g.Tags = rec.Tags
	g.Activation, err = recordToActivation(rec.Activation)
	if err != nil {
		return nil, fmt.Errorf("activation: %w", err)
	}
	return g, nil
}

func groupToRecord(g *mapping.Group) GroupRecord {
	return GroupRecord{
		ID:         g.ID.String(),
		Name:       g.Name,
		Tags:       g.Tags,
		Activation: activationToRecord(g.Activation),
	}
}

func recordToActivation(rec *ActivationRecord) (mapping.ActivationCondition, error) {
	if rec == nil || rec.Kind == "" {
		return mapping.ActivationCondition{}, nil
	}
	switch rec.Kind {
	case "modifier":
		var mods []mapping.ModifierState
		for _, m := range rec.Modifiers {
			mods = append(mods, mapping.ModifierState{ParamIndex: m.Param, On: m.On})
		}
		return mapping.ActivationCondition{Kind: mapping.ActivationModifier, Modifiers: mods}, nil
	case "bank":
		c := mapping.ActivationCondition{Kind: mapping.ActivationBank}
		if rec.ParamIndex != nil {
			c.BankParamIndex = *rec.ParamIndex
		}
		if rec.BankIndex != nil {
			c.BankIndex = *rec.BankIndex
		}
		return c, nil
	case "expression":
		return mapping.NewExprActivation(rec.Expression)
	default:
		return mapping.ActivationCondition{}, fmt.Errorf("unknown activation kind %q", rec.Kind)
	}
}

func activationToRecord(c mapping.ActivationCondition) *ActivationRecord {
	switch c.Kind {
	case mapping.ActivationModifier:
		rec := &ActivationRecord{Kind: "modifier"}
		for _, m := range c.Modifiers {
			rec.Modifiers = append(rec.Modifiers, ModifierRecord{Param: m.ParamIndex, On: m.On})
		}
		return rec
	case mapping.ActivationBank:
		return &ActivationRecord{
			Kind:       "bank",
			ParamIndex: intPtr(c.BankParamIndex),
			BankIndex:  intPtr(c.BankIndex),
		}
	case mapping.ActivationExpr:
		return &ActivationRecord{Kind: "expression", Expression: c.Expr}
	default:
		return nil
	}
}

// Source kind strings. MIDI kinds carry a "midi-" prefix so the union
// stays flat.
var midiKindNames = map[source.MidiKind]string{
	source.NoteVelocity:         "midi-note-velocity",
	source.NoteKeyNumber:        "midi-note-key-number",
	source.PolyPressure:         "midi-poly-pressure",
	source.ControlChangeValue:   "midi-cc",
	source.ProgramChangeNumber:  "midi-program-change",
	source.ChannelPressure:      "midi-channel-pressure",
	source.PitchBendChangeValue: "midi-pitch-bend",
	source.ParameterNumberValue: "midi-parameter-number",
	source.ClockTempo:           "midi-clock-tempo",
	source.ClockTransport:       "midi-clock-transport",
	source.Raw:                  "midi-raw",
}

func parseMidiKind(s string) (source.MidiKind, bool) {
	for k, name := range midiKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

func recordToSource(rec *SourceRecord) (source.Source, error) {
	if rec == nil || rec.Kind == "" {
		return nil, fmt.Errorf("missing source")
	}
	if kind, ok := parseMidiKind(rec.Kind); ok {
		return recordToMidiSource(rec, kind)
	}
	switch rec.Kind {
	case "osc":
		s := &source.Osc{Address: rec.OscAddress}
		if rec.OscArgIndex != nil {
			s.ArgIndex = *rec.OscArgIndex
		}
		var err error
		s.ArgKind, err = parseOscArgKind(rec.OscArgKind)
		if err != nil {
			return nil, err
		}
		s.Relative = boolOr(rec.OscRelative, false)
		if rec.OscRange != nil {
			s.RangeMin, s.RangeMax = rec.OscRange[0], rec.OscRange[1]
		}
		s.Behavior, err = parseFeedbackBehavior(rec.FeedbackBehavior)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "virtual":
		elem, err := recordToElement(rec.Element)
		if err != nil {
			return nil, err
		}
		char, err := parseElementCharacter(rec.ElementCharacter)
		if err != nil {
			return nil, err
		}
		return &source.Virtual{Element: elem, Character: char}, nil
	case "meta":
		switch rec.MetaEvent {
		case "device-changes":
			return &source.Meta{Kind: source.DeviceChanges}, nil
		case "instance-start":
			return &source.Meta{Kind: source.InstanceStart}, nil
		default:
			return nil, fmt.Errorf("unknown meta event %q", rec.MetaEvent)
		}
	default:
		return nil, fmt.Errorf("unknown source kind %q", rec.Kind)
	}
}

func recordToMidiSource(rec *SourceRecord, kind source.MidiKind) (source.Source, error) {
	s := source.NewMidi(kind)
	if rec.Channel != nil {
		s.Channel = *rec.Channel
	}
	if rec.Number != nil {
		s.Number = *rec.Number
	}
	var err error
	s.Character, err = parseCCCharacter(rec.Character)
	if err != nil {
		return nil, err
	}
	s.FourteenBit = boolOr(rec.FourteenBit, false)
	s.Registered = boolOr(rec.Registered, false)
	s.Behavior, err = parseFeedbackBehavior(rec.FeedbackBehavior)
	if err != nil {
		return nil, err
	}
	s.Transport, err = parseTransportMessage(rec.Transport)
	if err != nil {
		return nil, err
	}
	if rec.Pattern != "" {
		s.Pattern, err = ParsePattern(rec.Pattern)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func sourceToRecord(src source.Source, behavior source.FeedbackBehavior) *SourceRecord {
	rec := &SourceRecord{FeedbackBehavior: feedbackBehaviorName(behavior)}
	switch s := src.(type) {
	case *source.Midi:
		rec.Kind = midiKindNames[s.Kind]
		if s.Channel != source.AnyChannel {
			rec.Channel = intPtr(s.Channel)
		}
		if s.Number != source.AnyNumber {
			rec.Number = intPtr(s.Number)
		}
		rec.Character = ccCharacterName(s.Character)
		if s.FourteenBit {
			rec.FourteenBit = boolPtr(true)
		}
		if s.Registered {
			rec.Registered = boolPtr(true)
		}
		rec.Transport = transportMessageName(s.Transport)
		if len(s.Pattern) > 0 {
			rec.Pattern = FormatPattern(s.Pattern)
		}
	case *source.Osc:
		rec.Kind = "osc"
		rec.OscAddress = s.Address
		if s.ArgIndex != 0 {
			rec.OscArgIndex = intPtr(s.ArgIndex)
		}
		rec.OscArgKind = oscArgKindName(s.ArgKind)
		if s.Relative {
			rec.OscRelative = boolPtr(true)
		}
		if s.RangeMin != 0 || s.RangeMax != 0 {
			rec.OscRange = &[2]float64{s.RangeMin, s.RangeMax}
		}
	case *source.Virtual:
		rec.Kind = "virtual"
		rec.Element = elementToRecord(s.Element)
		rec.ElementCharacter = elementCharacterName(s.Character)
	case *source.Meta:
		rec.Kind = "meta"
		if s.Kind == source.DeviceChanges {
			rec.MetaEvent = "device-changes"
		} else {
			rec.MetaEvent = "instance-start"
		}
	}
	return rec
}

func recordToElement(rec *ElementRecord) (source.ElementID, error) {
	if rec == nil {
		return source.ElementID{}, fmt.Errorf("missing virtual element")
	}
	if rec.Name != "" {
		return source.NamedElement(rec.Name), nil
	}
	if rec.Index == nil {
		return source.ElementID{}, fmt.Errorf("virtual element needs index or name")
	}
	return source.IndexedElement(*rec.Index), nil
}

func elementToRecord(e source.ElementID) *ElementRecord {
	if e.Named {
		return &ElementRecord{Name: e.Name}
	}
	return &ElementRecord{Index: intPtr(e.Index)}
}

func recordToSettings(rec *GlueRecord) (mode.Settings, error) {
	s := mode.DefaultSettings()
	if rec == nil {
		return s, nil
	}
	var err error
	s.AbsoluteMode, err = parseAbsoluteMode(rec.AbsoluteMode)
	if err != nil {
		return s, err
	}
	if rec.SourceInterval != nil {
		s.SourceInterval = unit.NewInterval(unit.Value(rec.SourceInterval[0]), unit.Value(rec.SourceInterval[1]))
	}
	if rec.TargetInterval != nil {
		s.TargetInterval = unit.NewInterval(unit.Value(rec.TargetInterval[0]), unit.Value(rec.TargetInterval[1]))
	}
	if rec.JumpInterval != nil {
		s.JumpInterval = unit.NewInterval(unit.Value(rec.JumpInterval[0]), unit.Value(rec.JumpInterval[1]))
	}
	if rec.StepInterval != nil {
		s.StepInterval = unit.NewSoftSymmetricInterval(
			unit.SoftSymmetric(rec.StepInterval[0]), unit.SoftSymmetric(rec.StepInterval[1]))
	}
	s.Reverse = boolOr(rec.Reverse, false)
	s.Rotate = boolOr(rec.Rotate, false)
	s.RoundTargetValue = boolOr(rec.RoundTargetValue, false)
	s.MakeAbsolute = boolOr(rec.MakeAbsolute, false)
	s.OutOfRangeBehavior, err = parseOutOfRangeBehavior(rec.OutOfRangeBehavior)
	if err != nil {
		return s, err
	}
	s.TakeoverMode, err = parseTakeoverMode(rec.TakeoverMode)
	if err != nil {
		return s, err
	}
	s.ButtonUsage, err = parseButtonUsage(rec.ButtonUsage)
	if err != nil {
		return s, err
	}
	s.EncoderUsage, err = parseEncoderUsage(rec.EncoderUsage)
	if err != nil {
		return s, err
	}
	s.FireMode, err = parseFireMode(rec.FireMode)
	if err != nil {
		return s, err
	}
	if rec.PressDurationMinMillis != nil {
		s.PressDurationMin = time.Duration(*rec.PressDurationMinMillis) * time.Millisecond
	}
	if rec.PressDurationMaxMillis != nil {
		s.PressDurationMax = time.Duration(*rec.PressDurationMaxMillis) * time.Millisecond
	}
	if rec.TurboRateMillis != nil {
		s.TurboRate = time.Duration(*rec.TurboRateMillis) * time.Millisecond
	}
	s.GroupInteraction, err = parseGroupInteraction(rec.GroupInteraction)
	if err != nil {
		return s, err
	}
	s.ControlTransformation = rec.ControlTransformation
	s.FeedbackTransformation = rec.FeedbackTransformation
	for _, v := range rec.TargetValueSequence {
		s.TargetValueSequence = append(s.TargetValueSequence, unit.Value(v))
	}
	if rec.FeedbackType == "text" {
		s.FeedbackType = mode.FeedbackText
	} else if rec.FeedbackType != "" && rec.FeedbackType != "numeric" {
		return s, fmt.Errorf("unknown feedback type %q", rec.FeedbackType)
	}
	s.TextualFeedbackExpr = rec.TextualFeedbackExpr
	if rec.FeedbackColor != nil || rec.FeedbackBackground != nil {
		s.HasFeedbackColor = true
		if rec.FeedbackColor != nil {
			s.FeedbackColor = *rec.FeedbackColor
		}
		if rec.FeedbackBackground != nil {
			s.FeedbackBackgroundCol = *rec.FeedbackBackground
		}
	}
	return s, nil
}

func settingsToRecord(s mode.Settings) *GlueRecord {
	rec := &GlueRecord{}
	rec.AbsoluteMode = absoluteModeName(s.AbsoluteMode)
	if !s.SourceInterval.IsFull() {
		rec.SourceInterval = &[2]float64{float64(s.SourceInterval.Min), float64(s.SourceInterval.Max)}
	}
	if !s.TargetInterval.IsFull() {
		rec.TargetInterval = &[2]float64{float64(s.TargetInterval.Min), float64(s.TargetInterval.Max)}
	}
	if !s.JumpInterval.IsFull() {
		rec.JumpInterval = &[2]float64{float64(s.JumpInterval.Min), float64(s.JumpInterval.Max)}
	}
	if s.StepInterval.Min != 0.01 || s.StepInterval.Max != 0.01 {
		rec.StepInterval = &[2]float64{float64(s.StepInterval.Min), float64(s.StepInterval.Max)}
	}
	if s.Reverse {
		rec.Reverse = boolPtr(true)
	}
	if s.Rotate {
		rec.Rotate = boolPtr(true)
	}
	if s.RoundTargetValue {
		rec.RoundTargetValue = boolPtr(true)
	}
	if s.MakeAbsolute {
		rec.MakeAbsolute = boolPtr(true)
	}
	rec.OutOfRangeBehavior = outOfRangeBehaviorName(s.OutOfRangeBehavior)
	rec.TakeoverMode = takeoverModeName(s.TakeoverMode)
	rec.ButtonUsage = buttonUsageName(s.ButtonUsage)
	rec.EncoderUsage = encoderUsageName(s.EncoderUsage)
	rec.FireMode = fireModeName(s.FireMode)
	if s.PressDurationMin > 0 {
		rec.PressDurationMinMillis = intPtr(int(s.PressDurationMin / time.Millisecond))
	}
	if s.PressDurationMax > 0 {
		rec.PressDurationMaxMillis = intPtr(int(s.PressDurationMax / time.Millisecond))
	}
	if s.TurboRate > 0 {
		rec.TurboRateMillis = intPtr(int(s.TurboRate / time.Millisecond))
	}
	rec.GroupInteraction = groupInteractionName(s.GroupInteraction)
	rec.ControlTransformation = s.ControlTransformation
	rec.FeedbackTransformation = s.FeedbackTransformation
	for _, v := range s.TargetValueSequence {
		rec.TargetValueSequence = append(rec.TargetValueSequence, float64(v))
	}
	if s.FeedbackType == mode.FeedbackText {
		rec.FeedbackType = "text"
	}
	rec.TextualFeedbackExpr = s.TextualFeedbackExpr
	if s.HasFeedbackColor {
		c, b := s.FeedbackColor, s.FeedbackBackgroundCol
		rec.FeedbackColor = &c
		rec.FeedbackBackground = &b
	}
	return rec
}

var targetKindNames = map[target.Kind]string{
	target.KindTrackVolume:         "track-volume",
	target.KindTrackPan:            "track-pan",
	target.KindTrackWidth:          "track-width",
	target.KindTrackMute:           "track-mute",
	target.KindTrackArm:            "track-arm",
	target.KindTrackSelection:      "track-selection",
	target.KindFxParameter:         "fx-parameter",
	target.KindFxEnable:            "fx-enable",
	target.KindFxPreset:            "fx-preset",
	target.KindRouteVolume:         "route-volume",
	target.KindRoutePan:            "route-pan",
	target.KindTransportAction:     "transport-action",
	target.KindTempo:               "tempo",
	target.KindSeek:                "seek",
	target.KindGoToBookmark:        "go-to-bookmark",
	target.KindSendMidi:            "send-midi",
	target.KindSendOsc:             "send-osc",
	target.KindLastTouched:         "last-touched",
	target.KindEnableMappings:      "enable-mappings",
	target.KindEnableInstances:     "enable-instances",
	target.KindLoadMappingSnapshot: "load-mapping-snapshot",
	target.KindVirtual:             "virtual",
}

func parseTargetKind(s string) (target.Kind, error) {
	for k, name := range targetKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown target kind %q", s)
}

func recordToDescriptor(rec *TargetRecord) (target.Descriptor, error) {
	if rec == nil || rec.Kind == "" {
		return target.Descriptor{}, fmt.Errorf("missing target")
	}
	kind, err := parseTargetKind(rec.Kind)
	if err != nil {
		return target.Descriptor{}, err
	}
	d := target.Descriptor{Kind: kind}
	d.Track, err = recordToTrackSelector(rec.Track)
	if err != nil {
		return d, err
	}
	d.Fx, err = recordToFxSelector(rec.Fx)
	if err != nil {
		return d, err
	}
	d.Route, err = recordToRouteSelector(rec.Route)
	if err != nil {
		return d, err
	}
	if rec.ParamIndex != nil {
		d.ParamIndex = *rec.ParamIndex
	}
	d.Op, err = parseTransportOp(rec.Action)
	if err != nil {
		return d, err
	}
	if rec.BookmarkID != nil {
		d.BookmarkID = *rec.BookmarkID
	}
	if rec.Pattern != "" {
		d.MidiPattern, err = ParsePattern(rec.Pattern)
		if err != nil {
			return d, err
		}
	}
	d.OscAddress = rec.OscAddress
	d.OscArgKind, err = parseOscArgKind(rec.OscArgKind)
	if err != nil {
		return d, err
	}
	if kind == target.KindVirtual {
		d.Element, err = recordToElement(rec.Element)
		if err != nil {
			return d, err
		}
		d.ElementCharacter, err = parseElementCharacter(rec.ElementCharacter)
		if err != nil {
			return d, err
		}
	}
	d.Tags = rec.Tags
	d.Exclusive = boolOr(rec.Exclusive, false)
	d.Instances = rec.Instances
	d.Snapshot = rec.Snapshot
	return d, nil
}

func descriptorToRecord(d target.Descriptor) *TargetRecord {
	rec := &TargetRecord{Kind: targetKindNames[d.Kind]}
	if trackBased(d.Kind) {
		rec.Track = trackSelectorToRecord(d.Track)
	}
	switch d.Kind {
	case target.KindFxParameter, target.KindFxEnable, target.KindFxPreset:
		rec.Fx = fxSelectorToRecord(d.Fx)
	case target.KindRouteVolume, target.KindRoutePan:
		rec.Route = routeSelectorToRecord(d.Route)
	}
	if d.Kind == target.KindFxParameter {
		rec.ParamIndex = intPtr(d.ParamIndex)
	}
	if d.Kind == target.KindTransportAction {
		rec.Action = transportOpName(d.Op)
	}
	if d.Kind == target.KindGoToBookmark {
		rec.BookmarkID = intPtr(d.BookmarkID)
	}
	if len(d.MidiPattern) > 0 {
		rec.Pattern = FormatPattern(d.MidiPattern)
	}
	rec.OscAddress = d.OscAddress
	if d.Kind == target.KindSendOsc {
		rec.OscArgKind = oscArgKindName(d.OscArgKind)
	}
	if d.Kind == target.KindVirtual {
		rec.Element = elementToRecord(d.Element)
		rec.ElementCharacter = elementCharacterName(d.ElementCharacter)
	}
	rec.Tags = d.Tags
	if d.Exclusive {
		rec.Exclusive = boolPtr(true)
	}
	rec.Instances = d.Instances
	rec.Snapshot = d.Snapshot
	return rec
}

func trackBased(k target.Kind) bool {
	switch k {
	case target.KindTrackVolume, target.KindTrackPan, target.KindTrackWidth,
		target.KindTrackMute, target.KindTrackArm, target.KindTrackSelection,
		target.KindFxParameter, target.KindFxEnable, target.KindFxPreset,
		target.KindRouteVolume, target.KindRoutePan:
		return true
	}
	return false
}

func recordToTrackSelector(rec *TrackSelectorRecord) (target.TrackSelector, error) {
	if rec == nil {
		// Like an unconfigured mapping: the instance's own track.
		return target.TrackSelector{Kind: target.TrackThis}, nil
	}
	switch rec.Kind {
	case "by-id":
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			return target.TrackSelector{}, fmt.Errorf("track id: %w", err)
		}
		return target.TrackSelector{Kind: target.TrackByID, ID: id}, nil
	case "by-name":
		return target.TrackSelector{Kind: target.TrackByName, Name: rec.Name}, nil
	case "by-index":
		sel := target.TrackSelector{Kind: target.TrackByIndex}
		if rec.Index != nil {
			sel.Index = *rec.Index
		}
		return sel, nil
	case "dynamic":
		return target.NewDynamicTrackSelector(rec.Expression)
	case "this", "":
		return target.TrackSelector{Kind: target.TrackThis}, nil
	case "selected":
		return target.TrackSelector{Kind: target.TrackSelected}, nil
	case "all-selected":
		return target.TrackSelector{Kind: target.TrackAllSelected}, nil
	case "master":
		return target.TrackSelector{Kind: target.TrackMaster}, nil
	default:
		return target.TrackSelector{}, fmt.Errorf("unknown track selector %q", rec.Kind)
	}
}

func trackSelectorToRecord(s target.TrackSelector) *TrackSelectorRecord {
	switch s.Kind {
	case target.TrackByID:
		return &TrackSelectorRecord{Kind: "by-id", ID: s.ID.String()}
	case target.TrackByName:
		return &TrackSelectorRecord{Kind: "by-name", Name: s.Name}
	case target.TrackByIndex:
		return &TrackSelectorRecord{Kind: "by-index", Index: intPtr(s.Index)}
	case target.TrackDynamic:
		return &TrackSelectorRecord{Kind: "dynamic", Expression: s.Expr}
	case target.TrackSelected:
		return &TrackSelectorRecord{Kind: "selected"}
	case target.TrackAllSelected:
		return &TrackSelectorRecord{Kind: "all-selected"}
	case target.TrackMaster:
		return &TrackSelectorRecord{Kind: "master"}
	default:
		return &TrackSelectorRecord{Kind: "this"}
	}
}

func recordToFxSelector(rec *FxSelectorRecord) (target.FxSelector, error) {
	if rec == nil {
		return target.FxSelector{Kind: target.FxByIndex}, nil
	}
	switch rec.Kind {
	case "by-index", "":
		sel := target.FxSelector{Kind: target.FxByIndex}
		if rec.Index != nil {
			sel.Index = *rec.Index
		}
		return sel, nil
	case "by-name":
		return target.FxSelector{Kind: target.FxByName, Name: rec.Name}, nil
	case "dynamic":
		return target.NewDynamicFxSelector(rec.Expression)
	default:
		return target.FxSelector{}, fmt.Errorf("unknown fx selector %q", rec.Kind)
	}
}

func fxSelectorToRecord(s target.FxSelector) *FxSelectorRecord {
	switch s.Kind {
	case target.FxByName:
		return &FxSelectorRecord{Kind: "by-name", Name: s.Name}
	case target.FxDynamic:
		return &FxSelectorRecord{Kind: "dynamic", Expression: s.Expr}
	default:
		return &FxSelectorRecord{Kind: "by-index", Index: intPtr(s.Index)}
	}
}

func recordToRouteSelector(rec *RouteSelectorRecord) (target.RouteSelector, error) {
	if rec == nil {
		return target.RouteSelector{Kind: target.RouteByIndex}, nil
	}
	switch rec.Kind {
	case "by-index", "":
		sel := target.RouteSelector{Kind: target.RouteByIndex}
		if rec.Index != nil {
			sel.Index = *rec.Index
		}
		return sel, nil
	case "by-name":
		return target.RouteSelector{Kind: target.RouteByName, Name: rec.Name}, nil
	default:
		return target.RouteSelector{}, fmt.Errorf("unknown route selector %q", rec.Kind)
	}
}

func routeSelectorToRecord(s target.RouteSelector) *RouteSelectorRecord {
	if s.Kind == target.RouteByName {
		return &RouteSelectorRecord{Kind: "by-name", Name: s.Name}
	}
	return &RouteSelectorRecord{Kind: "by-index", Index: intPtr(s.Index)}
}

// ParsePattern parses a raw midi pattern like "B0 14 xx" where "xx" marks
// the variable data byte carrying the value.
func ParsePattern(s string) ([]source.PatternByte, error) {
	var out []source.PatternByte
	for _, tok := range strings.Fields(s) {
		if strings.EqualFold(tok, "xx") {
			out = append(out, source.PatternByte{Variable: true})
			continue
		}
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern byte %q", tok)
		}
		out = append(out, source.PatternByte{Value: byte(b)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	return out, nil
}

// FormatPattern is the inverse of ParsePattern.
func FormatPattern(p []source.PatternByte) string {
	parts := make([]string, len(p))
	for i, b := range p {
		if b.Variable {
			parts[i] = "xx"
		} else {
			parts[i] = fmt.Sprintf("%02X", b.Value)
		}
	}
	return strings.Join(parts, " ")
}
