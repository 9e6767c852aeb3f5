// Package preset defines the JSON schema for compartment presets:
// mappings, groups, parameter names and opaque custom data. Unknown
// fields survive a load/save round trip untouched, so presets written by
// newer versions never silently lose data here.
package preset

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// CompartmentRecord is one preset file.
type CompartmentRecord struct {
	Kind       string                     `json:"kind,omitempty"`
	Version    string                     `json:"version,omitempty"`
	Mappings   []MappingRecord            `json:"mappings,omitempty"`
	Groups     []GroupRecord              `json:"groups,omitempty"`
	Parameters []ParameterRecord          `json:"parameters,omitempty"`
	CustomData map[string]json.RawMessage `json:"custom_data,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ParameterRecord names one parameter slot and optionally pins its value.
type ParameterRecord struct {
	Index int     `json:"index"`
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value,omitempty"`
}

// GroupRecord is one mapping group.
type GroupRecord struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Activation *ActivationRecord `json:"activation_condition,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// MappingRecord is one mapping. Optional booleans default to true on the
// domain side, so absence and explicit true are equivalent.
type MappingRecord struct {
	ID                  string            `json:"id,omitempty"`
	Name                string            `json:"name,omitempty"`
	Tags                []string          `json:"tags,omitempty"`
	Group               string            `json:"group,omitempty"`
	VisibleInProjection *bool             `json:"visible_in_projection,omitempty"`
	Enabled             *bool             `json:"enabled,omitempty"`
	ControlEnabled      *bool             `json:"control_enabled,omitempty"`
	FeedbackEnabled     *bool             `json:"feedback_enabled,omitempty"`
	Activation          *ActivationRecord `json:"activation_condition,omitempty"`
	OnActivate          []RawMidi         `json:"on_activate,omitempty"`
	OnDeactivate        []RawMidi         `json:"on_deactivate,omitempty"`
	Source              *SourceRecord     `json:"source,omitempty"`
	Glue                *GlueRecord       `json:"glue,omitempty"`
	Target              *TargetRecord     `json:"target,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ActivationRecord is a tagged activation condition
// (modifier/bank/expression).
type ActivationRecord struct {
	Kind       string           `json:"kind"`
	Modifiers  []ModifierRecord `json:"modifiers,omitempty"`
	ParamIndex *int             `json:"param_index,omitempty"`
	BankIndex  *int             `json:"bank_index,omitempty"`
	Expression string           `json:"expression,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ModifierRecord is one modifier condition: the parameter must be in the
// given on/off state.
type ModifierRecord struct {
	Param int  `json:"param"`
	On    bool `json:"on"`
}

// SourceRecord is a tagged source union, flat with per-kind optional
// fields.
type SourceRecord struct {
	Kind             string         `json:"kind"`
	Channel          *int           `json:"channel,omitempty"`
	Number           *int           `json:"number,omitempty"`
	Character        string         `json:"character,omitempty"`
	FourteenBit      *bool          `json:"fourteen_bit,omitempty"`
	Registered       *bool          `json:"registered,omitempty"`
	FeedbackBehavior string         `json:"feedback_behavior,omitempty"`
	Transport        string         `json:"transport,omitempty"`
	Pattern          string         `json:"pattern,omitempty"`
	OscAddress       string         `json:"osc_address,omitempty"`
	OscArgIndex      *int           `json:"osc_arg_index,omitempty"`
	OscArgKind       string         `json:"osc_arg_kind,omitempty"`
	OscRelative      *bool          `json:"osc_relative,omitempty"`
	OscRange         *[2]float64    `json:"osc_range,omitempty"`
	Element          *ElementRecord `json:"element,omitempty"`
	ElementCharacter string         `json:"element_character,omitempty"`
	MetaEvent        string         `json:"meta_event,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ElementRecord addresses a virtual control element by index or name.
type ElementRecord struct {
	Index *int   `json:"index,omitempty"`
	Name  string `json:"name,omitempty"`
}

// GlueRecord is the mode configuration. Every field is optional; absent
// fields keep the passthrough defaults.
type GlueRecord struct {
	AbsoluteMode           string      `json:"absolute_mode,omitempty"`
	SourceInterval         *[2]float64 `json:"source_interval,omitempty"`
	TargetInterval         *[2]float64 `json:"target_interval,omitempty"`
	JumpInterval           *[2]float64 `json:"jump_interval,omitempty"`
	StepInterval           *[2]float64 `json:"step_interval,omitempty"`
	Reverse                *bool       `json:"reverse,omitempty"`
	Rotate                 *bool       `json:"rotate,omitempty"`
	RoundTargetValue       *bool       `json:"round_target_value,omitempty"`
	MakeAbsolute           *bool       `json:"make_absolute,omitempty"`
	OutOfRangeBehavior     string      `json:"out_of_range_behavior,omitempty"`
	TakeoverMode           string      `json:"takeover_mode,omitempty"`
	ButtonUsage            string      `json:"button_usage,omitempty"`
	EncoderUsage           string      `json:"encoder_usage,omitempty"`
	FireMode               string      `json:"fire_mode,omitempty"`
	PressDurationMinMillis *int        `json:"press_duration_min_millis,omitempty"`
	PressDurationMaxMillis *int        `json:"press_duration_max_millis,omitempty"`
	TurboRateMillis        *int        `json:"turbo_rate_millis,omitempty"`
	GroupInteraction       string      `json:"group_interaction,omitempty"`
	ControlTransformation  string      `json:"control_transformation,omitempty"`
	FeedbackTransformation string      `json:"feedback_transformation,omitempty"`
	TargetValueSequence    []float64   `json:"target_value_sequence,omitempty"`
	FeedbackType           string      `json:"feedback_type,omitempty"`
	TextualFeedbackExpr    string      `json:"textual_feedback_expression,omitempty"`
	FeedbackColor          *int32      `json:"feedback_color,omitempty"`
	FeedbackBackground     *int32      `json:"feedback_background_color,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// TargetRecord is a tagged target union.
type TargetRecord struct {
	Kind             string               `json:"kind"`
	Track            *TrackSelectorRecord `json:"track,omitempty"`
	Fx               *FxSelectorRecord    `json:"fx,omitempty"`
	Route            *RouteSelectorRecord `json:"route,omitempty"`
	ParamIndex       *int                 `json:"param_index,omitempty"`
	Action           string               `json:"action,omitempty"`
	BookmarkID       *int                 `json:"bookmark_id,omitempty"`
	Pattern          string               `json:"pattern,omitempty"`
	OscAddress       string               `json:"osc_address,omitempty"`
	OscArgKind       string               `json:"osc_arg_kind,omitempty"`
	Element          *ElementRecord       `json:"element,omitempty"`
	ElementCharacter string               `json:"element_character,omitempty"`
	Tags             []string             `json:"tags,omitempty"`
	Exclusive        *bool                `json:"exclusive,omitempty"`
	Instances        []string             `json:"instances,omitempty"`
	Snapshot         string               `json:"snapshot,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// TrackSelectorRecord is a tagged track selector.
type TrackSelectorRecord struct {
	Kind       string `json:"kind"`
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Index      *int   `json:"index,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// FxSelectorRecord is a tagged FX selector.
type FxSelectorRecord struct {
	Kind       string `json:"kind"`
	Index      *int   `json:"index,omitempty"`
	Name       string `json:"name,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// RouteSelectorRecord is a tagged route selector.
type RouteSelectorRecord struct {
	Kind  string `json:"kind"`
	Index *int   `json:"index,omitempty"`
	Name  string `json:"name,omitempty"`
}

// RawMidi is a raw MIDI byte sequence that accepts both a hex string
// ("B0 00 7F") and a plain byte array in JSON, and always writes the hex
// string form.
type RawMidi []byte

func (r *RawMidi) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
		if err != nil {
			return fmt.Errorf("invalid raw midi hex %q: %w", s, err)
		}
		*r = b
		return nil
	}
	var arr []byte
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*r = arr
	return nil
}

func (r RawMidi) MarshalJSON() ([]byte, error) {
	parts := make([]string, len(r))
	for i, b := range r {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return json.Marshal(strings.Join(parts, " "))
}

// Unknown-field preservation. Each record decodes its known fields
// normally and keeps everything else verbatim in Extra; marshalling
// merges Extra back in. Known fields always win over stale Extra copies.

func knownKeys(v interface{}) map[string]bool {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.IndexByte(tag, ','); idx >= 0 {
			tag = tag[:idx]
		}
		keys[tag] = true
	}
	return keys
}

func captureExtra(data []byte, v interface{}) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	known := knownKeys(v)
	for k := range all {
		if known[k] {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func mergeExtra(base []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return base, nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(base, &all); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := all[k]; !exists {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

func (r *CompartmentRecord) UnmarshalJSON(data []byte) error {
	type plain CompartmentRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = CompartmentRecord(p)
	extra, err := captureExtra(data, r)
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}

func (r CompartmentRecord) MarshalJSON() ([]byte, error) {
	type plain CompartmentRecord
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, r.Extra)
}

func (r *GroupRecord) UnmarshalJSON(data []byte) error {
	type plain GroupRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = GroupRecord(p)
	extra, err := captureExtra(data, r)
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}

func (r GroupRecord) MarshalJSON() ([]byte, error) {
	type plain GroupRecord
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, r.Extra)
}

func (r *MappingRecord) UnmarshalJSON(data []byte) error {
	type plain MappingRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = MappingRecord(p)
	extra, err := captureExtra(data, r)
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}

func (r MappingRecord) MarshalJSON() ([]byte, error) {
	type plain MappingRecord
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, r.Extra)
}

func (r *ActivationRecord) UnmarshalJSON(data []byte) error {
	type plain ActivationRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ActivationRecord(p)
	extra, err := captureExtra(data, r)
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}

func (r ActivationRecord) MarshalJSON() ([]byte, error) {
	type plain ActivationRecord
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, r.Extra)
}

func (r *SourceRecord) UnmarshalJSON(data []byte) error {
	type plain SourceRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = SourceRecord(p)
	extra, err := captureExtra(data, r)
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}

func (r SourceRecord) MarshalJSON() ([]byte, error) {
	type plain SourceRecord
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, r.Extra)
}

func (r *GlueRecord) UnmarshalJSON(data []byte) error {
	type plain GlueRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = GlueRecord(p)
	extra, err := captureExtra(data, r)
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}

func (r GlueRecord) MarshalJSON() ([]byte, error) {
	type plain GlueRecord
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, r.Extra)
}

func (r *TargetRecord) UnmarshalJSON(data []byte) error {
	type plain TargetRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = TargetRecord(p)
	extra, err := captureExtra(data, r)
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}

func (r TargetRecord) MarshalJSON() ([]byte, error) {
	type plain TargetRecord
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, r.Extra)
}
