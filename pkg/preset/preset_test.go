package preset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/metrocore/pkg/metrotime"
)

func TestNewPresetRoundTripsConfig(t *testing.T) {
	cfg := metrotime.DefaultConfig()
	cfg.BPM = 96
	p := NewPreset("Warmup", cfg)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Warmup", p.Name)
	assert.Equal(t, 96, p.BPM)

	back := p.ToConfig()
	assert.Equal(t, 96, back.BPM)
	assert.Equal(t, cfg.TimeSignature, back.TimeSignature)
}

func TestStoreAddFindRemove(t *testing.T) {
	s := NewStore()
	p1 := NewPreset("A", metrotime.DefaultConfig())
	p2 := NewPreset("B", metrotime.DefaultConfig())

	s.Add(p1)
	s.Add(p2)
	assert.Equal(t, p2.ID, s.LastUsedPresetID)

	found, ok := s.Find(p1.ID)
	require.True(t, ok)
	assert.Equal(t, "A", found.Name)

	s.Remove(p2.ID)
	assert.Len(t, s.Presets, 1)
	assert.Empty(t, s.LastUsedPresetID, "removing the last-used preset clears the pointer")
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.Presets)
	assert.Equal(t, DefaultTunerConfig(), s.TunerConfig)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")

	s := NewStore()
	s.Add(NewPreset("Warmup", metrotime.DefaultConfig()))
	s.TunerConfig.ReferencePitch = 432

	require.NoError(t, Save(path, s))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Presets, 1)
	assert.Equal(t, "Warmup", loaded.Presets[0].Name)
	assert.Equal(t, 432.0, loaded.TunerConfig.ReferencePitch)
	assert.Equal(t, s.LastUsedPresetID, loaded.LastUsedPresetID)
}
