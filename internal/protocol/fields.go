package protocol

// ParsePower interprets a power payload: 0 means on, 1 means off. An empty
// payload yields no update.
func ParsePower(payload []byte) (on bool, ok bool) {
	if len(payload) == 0 {
		return false, false
	}
	return payload[0] == 0, true
}

// ParseBool interprets a boolean payload (mute, slave role). An empty
// payload yields no update.
func ParseBool(payload []byte) (val bool, ok bool) {
	if len(payload) == 0 {
		return false, false
	}
	return payload[0] != 0, true
}

// ParseByte extracts a raw value byte (volume raw value, source code).
// Scaling and table validity are the profile's concern, not the codec's.
func ParseByte(payload []byte) (val byte, ok bool) {
	if len(payload) == 0 {
		return 0, false
	}
	return payload[0], true
}
