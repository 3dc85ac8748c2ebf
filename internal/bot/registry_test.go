package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackRoundTrip(t *testing.T) {
	for _, cmd := range registryOrder {
		data, err := EncodeCallback(cmd, "")
		require.NoError(t, err)
		require.LessOrEqual(t, len(data), maxCallbackData)

		decoded, payload, err := DecodeCallback(data)
		require.NoError(t, err)
		assert.Equal(t, cmd, decoded)
		assert.Empty(t, payload)
	}
}

func TestCallbackPayload(t *testing.T) {
	data, err := EncodeCallback(CmdPublish, "Backups/2026")
	require.NoError(t, err)

	cmd, payload, err := DecodeCallback(data)
	require.NoError(t, err)
	assert.Equal(t, CmdPublish, cmd)
	assert.Equal(t, "Backups/2026", payload)
}

func TestCallbackErrors(t *testing.T) {
	_, err := EncodeCallback(Command("/not_registered"), "")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, _, err = DecodeCallback("garbage")
	assert.Error(t, err)

	_, _, err = DecodeCallback("9999:x")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("/upload_photo")
	require.True(t, ok)
	assert.Equal(t, CmdUploadPhoto, cmd)

	_, ok = ParseCommand("/frobnicate")
	assert.False(t, ok)
}

func TestCommandsExcludesFallback(t *testing.T) {
	for _, cmd := range Commands() {
		assert.NotEqual(t, CmdUnknown, cmd)
	}
	assert.Len(t, Commands(), len(registryOrder)-1)
}
