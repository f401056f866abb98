// Package protocol implements the Nubert binary control protocol: a
// request/notification frame codec plus the per-field payload transforms.
//
// Wire format in both directions:
//
//	byte[0]              command id
//	byte[1]              payload length
//	byte[2:2+length]     payload
package protocol

import "errors"

// ErrMalformedFrame is returned when a frame is too short to carry the
// two-byte header. Such frames are dropped by the caller.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one decoded request/notification frame.
type Frame struct {
	Cmd     byte
	Payload []byte
}

// Recognized reports whether the frame carries a state update. Unrecognized
// frames are normal; the device emits unsolicited filler.
func (f Frame) Recognized() bool {
	return Recognized(f.Cmd)
}

// Encode builds a wire frame from a command id and payload.
func Encode(cmd byte, payload ...byte) []byte {
	frame := make([]byte, 0, 2+len(payload))
	frame = append(frame, cmd, byte(len(payload)))
	return append(frame, payload...)
}

// EncodeBulkQuery builds a single frame requesting several fields at once.
// The device answers with one notification per listed GET id.
func EncodeBulkQuery(cmds ...byte) []byte {
	return Encode(CmdBulkGet, cmds...)
}

// StateQuery is the standard bulk query covering every field the session
// mirrors: power, volume, source, mute and slave role.
func StateQuery() []byte {
	return EncodeBulkQuery(CmdPowerGet, CmdVolumeGet, CmdSourceGet, CmdMuteGet, CmdSlaveGet)
}

// Decode parses a notification/response frame. Frames shorter than the
// two-byte header fail with ErrMalformedFrame. A payload length that
// overruns the actual data is tolerated: the payload is silently truncated,
// mirroring the device's own lenient framing.
func Decode(data []byte) (Frame, error) {
	if len(data) < 2 {
		return Frame{}, ErrMalformedFrame
	}

	length := int(data[1])
	end := 2 + length
	if end > len(data) {
		end = len(data)
	}

	payload := make([]byte, end-2)
	copy(payload, data[2:end])
	return Frame{Cmd: data[0], Payload: payload}, nil
}
