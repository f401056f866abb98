package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuio/nubert-hass/internal/protocol"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		cmd      byte
		payload  []byte
		expected []byte
	}{
		{"no payload", protocol.CmdPowerGet, nil, []byte{0x1E, 0x00}},
		{"one byte payload", protocol.CmdPowerSet, []byte{0x01}, []byte{0x1F, 0x01, 0x01}},
		{"volume set", protocol.CmdVolumeSet, []byte{0x32}, []byte{0x0B, 0x01, 0x32}},
		{"indication on", protocol.CmdConnectIndication, []byte{0x01}, []byte{0x4D, 0x01, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, protocol.Encode(tt.cmd, tt.payload...))
		})
	}
}

func TestStateQuery(t *testing.T) {
	// One frame requesting power, volume, source, mute and role.
	expected := []byte{0x40, 0x05, 0x1E, 0x0A, 0x0E, 0x4A, 0x4C}
	assert.Equal(t, expected, protocol.StateQuery())
}

func TestDecode(t *testing.T) {
	t.Run("well-formed frame", func(t *testing.T) {
		frame, err := protocol.Decode([]byte{0x0A, 0x01, 0x32})
		require.NoError(t, err)
		assert.Equal(t, protocol.CmdVolumeGet, frame.Cmd)
		assert.Equal(t, []byte{0x32}, frame.Payload)
		assert.True(t, frame.Recognized())
	})

	t.Run("empty payload", func(t *testing.T) {
		frame, err := protocol.Decode([]byte{0x1E, 0x00})
		require.NoError(t, err)
		assert.Empty(t, frame.Payload)
	})

	t.Run("one byte frame is malformed", func(t *testing.T) {
		_, err := protocol.Decode([]byte{0x1E})
		assert.ErrorIs(t, err, protocol.ErrMalformedFrame)
	})

	t.Run("empty frame is malformed", func(t *testing.T) {
		_, err := protocol.Decode(nil)
		assert.ErrorIs(t, err, protocol.ErrMalformedFrame)
	})

	t.Run("advertised length beyond data is truncated", func(t *testing.T) {
		frame, err := protocol.Decode([]byte{0x0A, 0x05, 0x32})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x32}, frame.Payload)
	})

	t.Run("unrecognized command id decodes but is flagged", func(t *testing.T) {
		frame, err := protocol.Decode([]byte{0x86, 0x01, 0x00})
		require.NoError(t, err)
		assert.False(t, frame.Recognized())
	})

	t.Run("payload is copied out of the input buffer", func(t *testing.T) {
		raw := []byte{0x0A, 0x01, 0x32}
		frame, err := protocol.Decode(raw)
		require.NoError(t, err)
		raw[2] = 0xFF
		assert.Equal(t, []byte{0x32}, frame.Payload)
	})
}

func TestParsePower(t *testing.T) {
	on, ok := protocol.ParsePower([]byte{0x00})
	assert.True(t, ok)
	assert.True(t, on)

	on, ok = protocol.ParsePower([]byte{0x01})
	assert.True(t, ok)
	assert.False(t, on)

	_, ok = protocol.ParsePower(nil)
	assert.False(t, ok)
}

func TestParseBool(t *testing.T) {
	val, ok := protocol.ParseBool([]byte{0x01})
	assert.True(t, ok)
	assert.True(t, val)

	val, ok = protocol.ParseBool([]byte{0x00})
	assert.True(t, ok)
	assert.False(t, val)

	_, ok = protocol.ParseBool([]byte{})
	assert.False(t, ok)
}

func TestParseByte(t *testing.T) {
	val, ok := protocol.ParseByte([]byte{0x32, 0xAA})
	assert.True(t, ok)
	assert.Equal(t, byte(0x32), val)

	_, ok = protocol.ParseByte(nil)
	assert.False(t, ok)
}
