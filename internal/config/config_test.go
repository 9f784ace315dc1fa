package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 320.0, cfg.Counting.LineX)
	assert.Equal(t, 0.4, cfg.Counting.ConfidenceThreshold)
	assert.Equal(t, 192.0, cfg.Counting.MaxMatchDistance)
	assert.Equal(t, 5, cfg.Counting.MissingFrameEvictionThreshold)
	assert.Equal(t, 30, cfg.Counting.TrajectoryCapacity)
	assert.Equal(t, 640, cfg.Counting.FrameWidth)
	assert.Equal(t, 480, cfg.Counting.FrameHeight)
	assert.Equal(t, 50, cfg.Aggregation.HistoryCapacity)
	assert.Equal(t, 2*time.Second, cfg.Aggregation.LockTimeout)
	assert.Equal(t, 200, cfg.Server.UpdateFrequencyMs)
	assert.Equal(t, "person", cfg.Counting.Label)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
counting:
  line_x: 400
  confidence_threshold: 0.6
aggregation:
  history_capacity: 10
  lock_timeout: 500ms
source:
  kind: nats
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("PC_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 400.0, cfg.Counting.LineX)
	assert.Equal(t, 0.6, cfg.Counting.ConfidenceThreshold)
	assert.Equal(t, 10, cfg.Aggregation.HistoryCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.Aggregation.LockTimeout)
	assert.Equal(t, SourceNATS, cfg.Source.Kind)
	assert.True(t, cfg.NATS.Enabled, "nats source implies nats")
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("counting:\n  confidence_threshold: 1.5\n"), 0o644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	require.NoError(t, os.WriteFile(path, []byte("source:\n  kind: camera\n"), 0o644))
	_, err = Load(path)
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	require.NoError(t, os.WriteFile(path, []byte("source:\n  kind: minio\n"), 0o644))
	_, err = Load(path)
	require.ErrorIs(t, err, ErrInvalidConfiguration, "minio source without endpoint")
}

func TestSettingsApply(t *testing.T) {
	s := NewSettings(Default())

	threshold := 0.7
	freq := 500
	got, err := s.Apply(SettingsUpdate{ConfidenceThreshold: &threshold, UpdateFrequencyMs: &freq})
	require.NoError(t, err)
	assert.Equal(t, 0.7, got.ConfidenceThreshold)
	assert.Equal(t, 500, got.UpdateFrequencyMs)
	assert.Equal(t, 0.7, s.ConfidenceThreshold())
}

func TestSettingsApplyRejectsWithoutPartialChange(t *testing.T) {
	s := NewSettings(Default())
	before := s.Get()

	freq := 1000
	bad := math.NaN()
	_, err := s.Apply(SettingsUpdate{UpdateFrequencyMs: &freq, ConfidenceThreshold: &bad})
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, before, s.Get())

	neg := -1
	_, err = s.Apply(SettingsUpdate{UpdateFrequencyMs: &neg})
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, before, s.Get())
}
