package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/peoplecounter/internal/config"
	"github.com/your-org/peoplecounter/internal/state"
	"github.com/your-org/peoplecounter/pkg/dto"
)

func TestHandleControl(t *testing.T) {
	ctx := context.Background()
	st := state.New(state.Options{LockTimeout: 50 * time.Millisecond})
	settings := config.NewSettings(config.Default())

	require.NoError(t, st.ApplyCrossings(ctx, 2))
	handleControl(ctx, st, settings, dto.ControlMessage{Action: "reset"})
	snap, err := st.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.TotalCrossings)

	thr := 0.7
	handleControl(ctx, st, settings, dto.ControlMessage{Action: "settings", Settings: &dto.SettingsRequest{ConfidenceThreshold: &thr}})
	assert.Equal(t, 0.7, settings.ConfidenceThreshold())

	bad := 3.0
	handleControl(ctx, st, settings, dto.ControlMessage{Action: "settings", Settings: &dto.SettingsRequest{ConfidenceThreshold: &bad}})
	assert.Equal(t, 0.7, settings.ConfidenceThreshold(), "rejected update keeps prior value")
}
