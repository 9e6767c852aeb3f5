package preset

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/tilde-audio/remap/internal/mapping"
	"github.com/tilde-audio/remap/internal/mode"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
)

const presetWithUnknownFields = `{
  "kind": "compartment",
  "version": "1",
  "future_top_level": {"a": 1, "b": [true, null]},
  "groups": [
    {
      "id": "7f9c24e5-2f33-4c44-9d3b-1e5a6c7d8e9f",
      "name": "Faders",
      "group_color": "#ff0000"
    }
  ],
  "mappings": [
    {
      "id": "0f8fad5b-d9cb-469f-a165-70867728950e",
      "name": "Volume",
      "group": "7f9c24e5-2f33-4c44-9d3b-1e5a6c7d8e9f",
      "custom_ui_hint": "knob",
      "source": {
        "kind": "midi-cc",
        "channel": 0,
        "number": 20,
        "vendor_extension": true
      },
      "glue": {
        "reverse": true,
        "experimental_curve": "log"
      },
      "target": {
        "kind": "track-volume",
        "track": {"kind": "by-index", "index": 2},
        "future_field": [1, 2, 3]
      }
    }
  ]
}`

func TestUnknownFieldsSurviveRoundTrip(t *testing.T) {
	var rec CompartmentRecord
	if err := json.Unmarshal([]byte(presetWithUnknownFields), &rec); err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var want, got interface{}
	if err := json.Unmarshal([]byte(presetWithUnknownFields), &want); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("round trip changed the document:\nwant %v\ngot  %v", want, got)
	}
}

func TestCompile(t *testing.T) {
	var rec CompartmentRecord
	if err := json.Unmarshal([]byte(presetWithUnknownFields), &rec); err != nil {
		t.Fatal(err)
	}
	c, err := rec.Compile(mapping.CompartmentMain)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Groups) != 1 || c.Groups[0].Name != "Faders" {
		t.Fatalf("unexpected groups: %v", c.Groups)
	}
	if len(c.Mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d", len(c.Mappings))
	}
	m := c.Mappings[0]
	if m.Name != "Volume" || !m.Enabled || !m.ControlEnabled || !m.FeedbackEnabled {
		t.Errorf("unexpected mapping flags: %+v", m)
	}
	if m.GroupID != c.Groups[0].ID {
		t.Error("group id not resolved")
	}
	src, ok := m.Source.(*source.Midi)
	if !ok {
		t.Fatalf("expected midi source, got %T", m.Source)
	}
	if src.Kind != source.ControlChangeValue || src.Channel != 0 || src.Number != 20 {
		t.Errorf("unexpected source: %+v", src)
	}
	if !m.Settings.Reverse {
		t.Error("reverse flag lost")
	}
	if m.Descriptor.Kind != target.KindTrackVolume {
		t.Errorf("unexpected target kind %v", m.Descriptor.Kind)
	}
	if m.Descriptor.Track.Kind != target.TrackByIndex || m.Descriptor.Track.Index != 2 {
		t.Errorf("unexpected track selector: %+v", m.Descriptor.Track)
	}
}

func TestCompileRejectsUnknownEnum(t *testing.T) {
	rec := MappingRecord{
		Source: &SourceRecord{Kind: "telepathy"},
		Target: &TargetRecord{Kind: "track-volume"},
	}
	if _, err := ToMapping(&rec, mapping.CompartmentMain); err == nil {
		t.Error("expected error for unknown source kind")
	}
}

func TestMappingRoundTrip(t *testing.T) {
	four := true
	rec := MappingRecord{
		Name: "Pan",
		Tags: []string{"mixer"},
		Source: &SourceRecord{
			Kind:             "midi-cc",
			Channel:          intPtr(3),
			Number:           intPtr(10),
			FourteenBit:      &four,
			FeedbackBehavior: "prevent-echo",
		},
		Glue: &GlueRecord{
			AbsoluteMode:   "toggle-button",
			TargetInterval: &[2]float64{0.2, 0.8},
			StepInterval:   &[2]float64{0.05, 0.2},
			FireMode:       "double-press",
		},
		Target: &TargetRecord{
			Kind:  "track-pan",
			Track: &TrackSelectorRecord{Kind: "by-name", Name: "Drums*"},
		},
		Activation: &ActivationRecord{Kind: "bank", ParamIndex: intPtr(5), BankIndex: intPtr(2)},
		OnActivate: []RawMidi{{0xF0, 0x7E, 0xF7}},
	}
	m, err := ToMapping(&rec, mapping.CompartmentMain)
	if err != nil {
		t.Fatal(err)
	}
	if m.FeedbackBehavior != source.PreventEchoFeedback {
		t.Error("feedback behavior lost")
	}
	if m.Settings.AbsoluteMode != mode.ToggleButton || m.Settings.FireMode != mode.FireOnDoublePress {
		t.Errorf("glue enums lost: %+v", m.Settings)
	}
	if m.Settings.TargetInterval.Min != 0.2 || m.Settings.TargetInterval.Max != 0.8 {
		t.Errorf("target interval lost: %v", m.Settings.TargetInterval)
	}
	if m.Activation.Kind != mapping.ActivationBank || m.Activation.BankParamIndex != 5 || m.Activation.BankIndex != 2 {
		t.Errorf("activation lost: %+v", m.Activation)
	}
	back := FromMapping(m)
	m2, err := ToMapping(&back, mapping.CompartmentMain)
	if err != nil {
		t.Fatal(err)
	}
	if m2.Name != m.Name || m2.FeedbackBehavior != m.FeedbackBehavior {
		t.Error("mapping header changed on round trip")
	}
	if !reflect.DeepEqual(m2.Settings, m.Settings) {
		t.Error("settings changed on round trip")
	}
	if m2.Descriptor.Kind != m.Descriptor.Kind || m2.Descriptor.Track != m.Descriptor.Track {
		t.Error("descriptor changed on round trip")
	}
	if len(m2.Lifecycle.OnActivate) != 1 || m2.Lifecycle.OnActivate[0][0] != 0xF0 {
		t.Error("lifecycle bytes lost")
	}
}

func TestRawMidiAcceptsBothForms(t *testing.T) {
	var fromHex, fromArray RawMidi
	if err := json.Unmarshal([]byte(`"B0 00 7F"`), &fromHex); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`[176, 0, 127]`), &fromArray); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fromHex, fromArray) {
		t.Errorf("forms disagree: %v vs %v", fromHex, fromArray)
	}
	out, err := json.Marshal(fromHex)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"B0 00 7F"` {
		t.Errorf("unexpected marshal form %s", out)
	}
}

func TestPatternRoundTrip(t *testing.T) {
	p, err := ParsePattern("B0 14 xx")
	if err != nil {
		t.Fatal(err)
	}
	want := []source.PatternByte{{Value: 0xB0}, {Value: 0x14}, {Variable: true}}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("unexpected pattern %v", p)
	}
	if s := FormatPattern(p); s != "B0 14 xx" {
		t.Errorf("unexpected format %q", s)
	}
	if _, err := ParsePattern("B0 GG"); err == nil {
		t.Error("expected error for invalid byte")
	}
	if _, err := ParsePattern(""); err == nil {
		t.Error("expected error for empty pattern")
	}
}
