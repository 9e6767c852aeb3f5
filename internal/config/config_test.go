package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.CycleMillis != 10 {
		t.Errorf("CycleMillis = %d, want 10", cfg.CycleMillis)
	}
	if len(cfg.Instances) != 0 {
		t.Errorf("Instances = %d, want none", len(cfg.Instances))
	}
}

func TestLoadFillsInstanceIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log_level: debug
cycle_millis: 0
instances:
  - midi_input: "X-Touch"
  - id: custom
    osc_listen: "127.0.0.1:9000"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CycleMillis != 10 {
		t.Errorf("CycleMillis = %d, want default 10 for non-positive value", cfg.CycleMillis)
	}
	if got := cfg.Instances[0].ID; got != "instance-1" {
		t.Errorf("Instances[0].ID = %q, want instance-1", got)
	}
	if got := cfg.Instances[1].ID; got != "custom" {
		t.Errorf("Instances[1].ID = %q, want custom", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := &Config{
		LogLevel:    "warn",
		CycleMillis: 5,
		Instances: []InstanceConfig{{
			ID:         "main",
			MidiInput:  "in",
			MidiOutput: "out",
			OscSend:    "127.0.0.1:9001",
			MainPreset: "/tmp/main.json",
		}},
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.LogLevel != "warn" || loaded.CycleMillis != 5 {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Instances[0] != cfg.Instances[0] {
		t.Errorf("instance = %+v, want %+v", loaded.Instances[0], cfg.Instances[0])
	}
}
