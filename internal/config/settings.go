package config

import (
	"fmt"
	"sync"
)

// SettingsUpdate is a partial change to the runtime settings.
// Nil fields are left as they are.
type SettingsUpdate struct {
	UpdateFrequencyMs   *int
	ConfidenceThreshold *float64
}

// SettingsValues is a point-in-time copy of the runtime settings.
type SettingsValues struct {
	UpdateFrequencyMs   int
	ConfidenceThreshold float64
}

// Settings holds the values that may change while the process runs.
type Settings struct {
	mu     sync.RWMutex
	values SettingsValues
}

func NewSettings(cfg *Config) *Settings {
	return &Settings{values: SettingsValues{
		UpdateFrequencyMs:   cfg.Server.UpdateFrequencyMs,
		ConfidenceThreshold: cfg.Counting.ConfidenceThreshold,
	}}
}

func (s *Settings) Get() SettingsValues {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

func (s *Settings) ConfidenceThreshold() float64 {
	return s.Get().ConfidenceThreshold
}

// Apply validates every field of u before changing anything, so a rejected
// update leaves the previous settings in effect.
func (s *Settings) Apply(u SettingsUpdate) (SettingsValues, error) {
	if u.UpdateFrequencyMs != nil && *u.UpdateFrequencyMs <= 0 {
		return s.Get(), fmt.Errorf("%w: update_frequency must be positive, got %d", ErrInvalidConfiguration, *u.UpdateFrequencyMs)
	}
	if u.ConfidenceThreshold != nil && !validThreshold(*u.ConfidenceThreshold) {
		return s.Get(), fmt.Errorf("%w: confidence_threshold %v not in [0,1]", ErrInvalidConfiguration, *u.ConfidenceThreshold)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u.UpdateFrequencyMs != nil {
		s.values.UpdateFrequencyMs = *u.UpdateFrequencyMs
	}
	if u.ConfidenceThreshold != nil {
		s.values.ConfidenceThreshold = *u.ConfidenceThreshold
	}
	return s.values, nil
}
