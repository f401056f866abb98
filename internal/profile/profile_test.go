package profile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuio/nubert-hass/internal/profile"
)

func TestByCharacteristic(t *testing.T) {
	tests := []struct {
		name string
		uuid string
		want *profile.Profile
		ok   bool
	}{
		{"speaker dashed form", "8e2cece4-0e27-11e7-93ae-92361f002671", profile.Speaker, true},
		{"speaker normalized form", "8e2cece40e2711e793ae92361f002671", profile.Speaker, true},
		{"speaker uppercase", "8E2CECE4-0E27-11E7-93AE-92361F002671", profile.Speaker, true},
		{"subwoofer", "8e2cef1e-0e27-11e7-93ae-92361f002671", profile.Subwoofer, true},
		{"unknown", "2a00", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := profile.ByCharacteristic(tt.uuid)
			assert.Equal(t, tt.ok, ok)
			assert.Same(t, tt.want, p)
		})
	}
}

func TestVolumeFromRaw(t *testing.T) {
	t.Run("speaker full raw domain", func(t *testing.T) {
		// raw 0..100 maps to -100..0 dB
		for raw := 0; raw <= 100; raw++ {
			assert.Equal(t, raw-100, profile.Speaker.VolumeFromRaw(byte(raw)))
		}
	})

	t.Run("speaker clamps above max before offset", func(t *testing.T) {
		assert.Equal(t, 0, profile.Speaker.VolumeFromRaw(101))
		assert.Equal(t, 0, profile.Speaker.VolumeFromRaw(255))
	})

	t.Run("subwoofer full raw domain", func(t *testing.T) {
		// raw 0..21 maps to -15..+6 dB
		for raw := 0; raw <= 21; raw++ {
			assert.Equal(t, raw-15, profile.Subwoofer.VolumeFromRaw(byte(raw)))
		}
	})

	t.Run("subwoofer clamps above max before offset", func(t *testing.T) {
		assert.Equal(t, 6, profile.Subwoofer.VolumeFromRaw(22))
		assert.Equal(t, 6, profile.Subwoofer.VolumeFromRaw(255))
	})
}

func TestRawFromVolume(t *testing.T) {
	t.Run("speaker clamps into legal range", func(t *testing.T) {
		assert.Equal(t, byte(0), profile.Speaker.RawFromVolume(-120))
		assert.Equal(t, byte(50), profile.Speaker.RawFromVolume(-50))
		assert.Equal(t, byte(100), profile.Speaker.RawFromVolume(0))
		assert.Equal(t, byte(100), profile.Speaker.RawFromVolume(10))
	})

	t.Run("subwoofer clamps into legal range", func(t *testing.T) {
		assert.Equal(t, byte(0), profile.Subwoofer.RawFromVolume(-40))
		assert.Equal(t, byte(15), profile.Subwoofer.RawFromVolume(0))
		assert.Equal(t, byte(21), profile.Subwoofer.RawFromVolume(6))
		assert.Equal(t, byte(21), profile.Subwoofer.RawFromVolume(12))
	})

	t.Run("round trip over the legal dB range", func(t *testing.T) {
		for _, p := range []*profile.Profile{profile.Speaker, profile.Subwoofer} {
			for db := p.MinDb(); db <= p.MaxDb(); db++ {
				assert.Equal(t, db, p.VolumeFromRaw(p.RawFromVolume(db)))
			}
		}
	})
}

func TestSourceTables(t *testing.T) {
	t.Run("speaker table order and size", func(t *testing.T) {
		names := profile.Speaker.SourceNames()
		assert.Equal(t, []string{"AUX", "XLR", "COAX 1", "COAX 2", "OPTO 1", "OPTO 2", "USB", "PORT"}, names)
	})

	t.Run("subwoofer table order and size", func(t *testing.T) {
		assert.Equal(t, []string{"AUX", "WIRELESS"}, profile.Subwoofer.SourceNames())
	})

	t.Run("name lookup by code", func(t *testing.T) {
		name, ok := profile.Speaker.SourceName(0x04)
		require.True(t, ok)
		assert.Equal(t, "COAX 1", name)

		_, ok = profile.Speaker.SourceName(0x01)
		assert.False(t, ok)
	})
}

func TestSourceCodeResolution(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  byte
		ok    bool
	}{
		{"exact", "AUX", 0x00, true},
		{"lowercase", "aux", 0x00, true},
		{"no separator", "coax1", 0x04, true},
		{"dash separator", "coax-2", 0x05, true},
		{"underscore separator", "opto_1", 0x06, true},
		{"mixed case", "Usb", 0x08, true},
		{"unknown", "HDMI", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := profile.Speaker.SourceCode(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.code, code)
			}
		})
	}

	t.Run("wireless only on subwoofer", func(t *testing.T) {
		_, ok := profile.Speaker.SourceCode("wireless")
		assert.False(t, ok)
		code, ok := profile.Subwoofer.SourceCode("wireless")
		require.True(t, ok)
		assert.Equal(t, byte(0x02), code)
	})
}

func TestAckRequired(t *testing.T) {
	assert.True(t, profile.Speaker.AckRequired())
	assert.False(t, profile.Subwoofer.AckRequired())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "speaker", profile.KindSpeaker.String())
	assert.Equal(t, "subwoofer", profile.KindSubwoofer.String())
}
