package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xuio/nubert-hass/internal/device"
	"github.com/xuio/nubert-hass/internal/profile"
	"github.com/xuio/nubert-hass/internal/protocol"
)

// SetPower turns the device on or off. A request matching the cached state
// is a no-op (no wire write). After a successful write the cached state is
// updated optimistically; the device applies power changes immediately and
// a confirming notification is not waited for.
func (s *Session) SetPower(ctx context.Context, on bool) error {
	if cached := s.state.powerState(); cached != nil && *cached == on {
		s.logger.WithField("power", on).Debug("Power already in requested state")
		return nil
	}

	val := byte(0x01)
	if on {
		val = 0x00
	}
	if err := s.send(ctx, func(*profile.Profile) ([]byte, error) {
		return protocol.Encode(protocol.CmdPowerSet, val), nil
	}); err != nil {
		return err
	}

	if s.state.setPower(on) {
		s.publish()
	}
	return nil
}

// SetVolume sets the volume in dB, clamped into the active profile's legal
// range before conversion to the raw byte. Confirmation arrives by
// notification only; the cache is not updated proactively.
func (s *Session) SetVolume(ctx context.Context, db int) error {
	return s.send(ctx, func(prof *profile.Profile) ([]byte, error) {
		raw := prof.RawFromVolume(db)
		if clamped := prof.ClampDb(db); clamped != db {
			s.logger.WithFields(logrus.Fields{
				"requested": db,
				"clamped":   clamped,
			}).Debug("Volume request clamped to profile range")
		}
		return protocol.Encode(protocol.CmdVolumeSet, raw), nil
	})
}

// SetMute mutes or unmutes the device. Confirmation arrives by notification.
func (s *Session) SetMute(ctx context.Context, mute bool) error {
	return s.send(ctx, func(*profile.Profile) ([]byte, error) {
		val := byte(0x00)
		if mute {
			val = 0x01
		}
		return protocol.Encode(protocol.CmdMuteSet, val), nil
	})
}

// SelectSource switches the input source by display name, resolved
// case-insensitively with separators stripped against the active profile's
// table. An unknown name performs no write.
func (s *Session) SelectSource(ctx context.Context, name string) error {
	return s.send(ctx, func(prof *profile.Profile) ([]byte, error) {
		code, ok := prof.SourceCode(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q (%s profile)", ErrUnknownSource, name, prof.Kind())
		}
		return protocol.Encode(protocol.CmdSourceSet, code), nil
	})
}

// SelectSourceCode switches the input source by raw code. Codes outside the
// active profile's table perform no write.
func (s *Session) SelectSourceCode(ctx context.Context, code byte) error {
	return s.send(ctx, func(prof *profile.Profile) ([]byte, error) {
		if _, ok := prof.SourceName(code); !ok {
			return nil, fmt.Errorf("%w: code 0x%02X (%s profile)", ErrUnknownSource, code, prof.Kind())
		}
		return protocol.Encode(protocol.CmdSourceSet, code), nil
	})
}

// send performs exactly one command write under the link lock: ensure
// connectivity, build the frame against the active profile, write. The
// build step runs after connect because the profile is only known then.
func (s *Session) send(ctx context.Context, build func(*profile.Profile) ([]byte, error)) error {
	s.linkMu.Lock()
	defer s.linkMu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return err
	}

	frame, err := build(s.state.activeProfile())
	if err != nil {
		return err
	}
	return s.writeLocked(frame)
}

// writeLocked transmits one frame on the bound characteristic; caller holds
// linkMu. Writes are acknowledged unless the active profile disallows it.
// A failure with the link still up is a device-level rejection; a failure
// with the link down invalidates the handle so the next cycle reconnects.
func (s *Session) writeLocked(frame []byte) error {
	char := s.boundChar()
	if char == nil {
		return device.ErrNotConnected
	}

	prof := s.state.activeProfile()
	withResponse := prof == nil || prof.AckRequired()

	err := char.Write(frame, withResponse, s.opts.WriteTimeout)
	if err == nil {
		s.recorder.record(DirOut, frame[0], frame[2:])
		return nil
	}

	if withResponse && !errors.Is(err, device.ErrTimeout) && s.dev.IsConnected() {
		s.logger.WithField("cmd", frame[0]).WithError(err).Warn("Device rejected command")
		return fmt.Errorf("%w: %w", ErrCommandRejected, err)
	}

	s.logger.WithField("cmd", frame[0]).WithError(err).Warn("Write failed, invalidating connection handle")
	s.invalidateHandle()
	return device.NormalizeError(err)
}
