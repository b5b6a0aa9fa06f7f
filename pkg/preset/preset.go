// Package preset persists named metronome presets and the tuner's
// standing configuration to a single YAML document, the format
// spec.md §6 describes for this device's local state (presets list,
// lastUsedPresetId, tunerConfiguration). Each preset gets a stable
// google/uuid identifier so renames and reorders never invalidate
// lastUsedPresetId.
package preset

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/halcyon-audio/metrocore/pkg/metrotime"
)

// TunerConfig is the persisted tuner standing configuration.
type TunerConfig struct {
	ReferencePitch        float64 `yaml:"referencePitch"`
	InTuneThreshold       float64 `yaml:"inTuneThreshold"`
	CloseThreshold        float64 `yaml:"closeThreshold"`
	HapticFeedbackEnabled bool    `yaml:"hapticFeedbackEnabled"`
	AutoDetectEnabled     bool    `yaml:"autoDetectEnabled"`
}

// DefaultTunerConfig matches the thresholds NoteClassifier itself uses
// (5 / 20 cents), so a fresh install's UI agrees with the classifier out
// of the box.
func DefaultTunerConfig() TunerConfig {
	return TunerConfig{
		ReferencePitch:        440,
		InTuneThreshold:       5,
		CloseThreshold:        20,
		HapticFeedbackEnabled: true,
		AutoDetectEnabled:     true,
	}
}

// Preset is one saved metronome configuration, persisted with the field
// set spec.md §6 names (subdivisionEnabled/subdivisionType split out from
// the richer internal metrotime.Subdivision, createdAt/updatedAt for
// library sorting and sync conflict display).
type Preset struct {
	ID                 string                  `yaml:"id"`
	Name               string                  `yaml:"name"`
	BPM                int                     `yaml:"bpm"`
	TimeSignature      metrotime.TimeSignature `yaml:"timeSignature"`
	AccentPattern      []bool                  `yaml:"accentPattern"`
	SubdivisionEnabled bool                    `yaml:"subdivisionEnabled"`
	SubdivisionType    int                     `yaml:"subdivisionType"`
	CreatedAt          time.Time               `yaml:"createdAt"`
	UpdatedAt          time.Time               `yaml:"updatedAt"`
}

// NewPreset builds a Preset from a live Config, minting a fresh ID and
// stamping createdAt/updatedAt to now.
func NewPreset(name string, cfg *metrotime.Config) Preset {
	now := time.Now()
	return Preset{
		ID:                 uuid.NewString(),
		Name:               name,
		BPM:                cfg.BPM,
		TimeSignature:      cfg.TimeSignature,
		AccentPattern:      append([]bool(nil), cfg.AccentPattern...),
		SubdivisionEnabled: cfg.Subdivision != metrotime.SubdivisionNone,
		SubdivisionType:    cfg.Subdivision.Divisor(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Touch stamps UpdatedAt to now, called whenever an existing preset is
// overwritten in place rather than replaced by a fresh NewPreset.
func (p *Preset) Touch() {
	p.UpdatedAt = time.Now()
}

// ToConfig rebuilds a live Config from a saved Preset.
func (p Preset) ToConfig() *metrotime.Config {
	return &metrotime.Config{
		BPM:           p.BPM,
		TimeSignature: p.TimeSignature,
		AccentPattern: append(metrotime.AccentPattern(nil), p.AccentPattern...),
		Subdivision:   metrotime.SubdivisionFromWire(p.SubdivisionEnabled, p.SubdivisionType),
		ReferenceHz:   440,
	}
}

// Store is the on-disk document: the preset library plus the tuner's
// standing configuration.
type Store struct {
	Presets          []Preset    `yaml:"presets"`
	LastUsedPresetID string      `yaml:"lastUsedPresetId"`
	TunerConfig      TunerConfig `yaml:"tunerConfiguration"`
}

// NewStore returns an empty Store with default tuner settings.
func NewStore() *Store {
	return &Store{TunerConfig: DefaultTunerConfig()}
}

// Add appends p to the library and marks it as last-used.
func (s *Store) Add(p Preset) {
	s.Presets = append(s.Presets, p)
	s.LastUsedPresetID = p.ID
}

// Find returns the preset with the given ID, if present.
func (s *Store) Find(id string) (Preset, bool) {
	for _, p := range s.Presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// Remove deletes the preset with the given ID, if present.
func (s *Store) Remove(id string) {
	out := s.Presets[:0]
	for _, p := range s.Presets {
		if p.ID != id {
			out = append(out, p)
		}
	}
	s.Presets = out
	if s.LastUsedPresetID == id {
		s.LastUsedPresetID = ""
	}
}

// Load reads and parses a Store from path. A missing file yields a fresh
// default Store rather than an error, matching first-run behavior.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("preset: read %s: %w", path, err)
	}
	var s Store
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("preset: parse %s: %w", path, err)
	}
	if s.TunerConfig == (TunerConfig{}) {
		s.TunerConfig = DefaultTunerConfig()
	}
	return &s, nil
}

// Save serializes s to path as YAML, creating or truncating the file.
func Save(path string, s *Store) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("preset: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("preset: write %s: %w", path, err)
	}
	return nil
}
