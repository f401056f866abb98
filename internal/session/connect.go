package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuio/nubert-hass/internal/device"
	"github.com/xuio/nubert-hass/internal/groutine"
	"github.com/xuio/nubert-hass/internal/profile"
	"github.com/xuio/nubert-hass/internal/protocol"
)

// EnsureConnected establishes the link if needed: up to ConnectAttempts
// connect cycles with ConnectBackoff between them, profile detection from
// whichever control characteristic answers, and notification subscription
// with polling fallback. Idempotent when already connected.
func (s *Session) EnsureConnected(ctx context.Context) error {
	s.linkMu.Lock()
	defer s.linkMu.Unlock()
	return s.ensureConnectedLocked(ctx)
}

// ensureConnectedLocked does the work of EnsureConnected; caller holds
// linkMu.
func (s *Session) ensureConnectedLocked(ctx context.Context) error {
	if s.boundChar() != nil && s.dev.IsConnected() {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.ConnectAttempts; attempt++ {
		err := s.connectOnce(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		s.logger.WithFields(logrus.Fields{
			"attempt": attempt,
		}).WithError(err).Debug("Connect attempt failed")

		if disconnectErr := s.dev.Disconnect(); disconnectErr != nil {
			s.logger.WithError(disconnectErr).Debug("Cleanup disconnect failed")
		}

		if attempt < s.opts.ConnectAttempts {
			select {
			case <-time.After(s.opts.ConnectBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrConnectFailed, s.opts.ConnectAttempts, lastErr)
}

// connectOnce performs one connect cycle: dial, bind the control
// characteristic, resolve the profile, subscribe, and fire the LED cue.
func (s *Session) connectOnce(ctx context.Context) error {
	err := s.dev.Connect(ctx, &device.ConnectOptions{ConnectTimeout: s.opts.ConnectTimeout})
	if err != nil && !errors.Is(err, device.ErrAlreadyConnected) {
		return err
	}

	conn := s.dev.Connection()
	char, err := conn.FindCharacteristic(profile.CharacteristicUUIDs()...)
	if err != nil {
		return err
	}

	prof, ok := profile.ByCharacteristic(char.UUID())
	if !ok {
		// FindCharacteristic only matches known UUIDs; this cannot happen.
		return fmt.Errorf("characteristic %s matches no known profile", char.UUID())
	}

	// Profile is immutable for the lifetime of this connected session;
	// re-detected on the next reconnect.
	s.state.setProfile(prof)

	notifSupported := false
	if char.CanNotify() {
		if subErr := char.Subscribe(s.handleNotification); subErr != nil {
			// Some stacks report spurious subscribe failures while
			// notifications keep working; degrade to polling, don't fail.
			s.logger.WithError(subErr).Debug("Notification subscription rejected, using polling fallback")
		} else {
			notifSupported = true
		}
	} else {
		s.logger.Debug("Characteristic lacks notify capability, using polling fallback")
	}

	s.handleMu.Lock()
	s.char = char
	s.notifSupported = notifSupported
	s.handleMu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"profile":       prof.Kind().String(),
		"notifications": notifSupported,
	}).Info("Device session established")

	// Cosmetic LED cue; runs detached, failures never affect the session.
	groutine.Go(context.Background(), "presence-indication", func(context.Context) {
		s.presenceIndication()
	})

	return nil
}

// presenceIndication blinks the device's connect LED: indicator on, hold,
// indicator off. Every failure here is swallowed.
func (s *Session) presenceIndication() {
	send := func(val byte) error {
		s.linkMu.Lock()
		defer s.linkMu.Unlock()
		return s.writeLocked(protocol.Encode(protocol.CmdConnectIndication, val))
	}

	if err := send(0x01); err != nil {
		s.logger.WithError(err).Debug("Presence indication sequence failed")
		return
	}
	time.Sleep(s.opts.IndicationHold)
	if err := send(0x00); err != nil {
		s.logger.WithError(err).Debug("Presence indication sequence failed")
	}
}

// Disconnect closes the link and invalidates the handle. It intentionally
// does not take linkMu: a reconciliation attempt waiting for notifications
// must be interrupted, not waited out. Idempotent.
func (s *Session) Disconnect() {
	s.handleMu.Lock()
	s.char = nil
	s.notifSupported = false
	s.handleMu.Unlock()

	s.signalPoll()

	if err := s.dev.Disconnect(); err != nil {
		s.logger.WithError(err).Debug("Disconnect reported an error")
	}
}

// boundChar returns the currently bound control characteristic, nil when
// the handle is invalid.
func (s *Session) boundChar() device.Characteristic {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	return s.char
}

// invalidateHandle drops the bound characteristic after a link error so the
// next cycle reconnects.
func (s *Session) invalidateHandle() {
	s.handleMu.Lock()
	s.char = nil
	s.notifSupported = false
	s.handleMu.Unlock()
}
