// Package config holds the standalone host configuration: devices,
// preset paths and per-instance wiring, loaded from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// InstanceConfig wires one engine instance to its devices and preset.
type InstanceConfig struct {
	ID string `yaml:"id"`
	// MidiInput and MidiOutput are rtmidi port names. Empty disables the
	// side.
	MidiInput  string `yaml:"midi_input"`
	MidiOutput string `yaml:"midi_output"`
	// OscListen is a UDP listen address for OSC input ("127.0.0.1:9000").
	OscListen string `yaml:"osc_listen"`
	// OscSend is the UDP address OSC feedback goes to.
	OscSend string `yaml:"osc_send"`
	// ControllerPreset and MainPreset are preset file paths per
	// compartment.
	ControllerPreset string `yaml:"controller_preset"`
	MainPreset       string `yaml:"main_preset"`
	// ClaimMatchedEvents withholds matched input events from instances
	// configured after this one.
	ClaimMatchedEvents bool `yaml:"claim_matched_events"`
	// UpperFloor suspends every other instance sharing the output device
	// while this instance runs.
	UpperFloor bool `yaml:"upper_floor"`
}

// Config is the root host configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	// CycleMillis is the pseudo audio callback period. Defaults to 10.
	CycleMillis int              `yaml:"cycle_millis"`
	Instances   []InstanceConfig `yaml:"instances"`
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "remapd", "config.yaml"), nil
}

// Load reads the config file, returning defaults if it does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaults(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.CycleMillis <= 0 {
		cfg.CycleMillis = 10
	}
	for i, inst := range cfg.Instances {
		if inst.ID == "" {
			cfg.Instances[i].ID = fmt.Sprintf("instance-%d", i+1)
		}
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func defaults() *Config {
	return &Config{
		LogLevel:    "info",
		CycleMillis: 10,
	}
}
