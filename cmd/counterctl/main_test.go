package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("reset", nil)
	require.NoError(t, err)
	assert.Equal(t, "reset", msg.Action)
	assert.Nil(t, msg.Settings)

	msg, err = buildMessage("settings", []string{"-threshold", "0.55"})
	require.NoError(t, err)
	require.NotNil(t, msg.Settings)
	require.NotNil(t, msg.Settings.ConfidenceThreshold)
	assert.Equal(t, 0.55, *msg.Settings.ConfidenceThreshold)
	assert.Nil(t, msg.Settings.UpdateFrequency)

	_, err = buildMessage("settings", nil)
	assert.Error(t, err)

	_, err = buildMessage("explode", nil)
	assert.Error(t, err)
}
