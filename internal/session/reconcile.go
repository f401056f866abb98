package session

import (
	"context"
	"fmt"
	"time"

	"github.com/xuio/nubert-hass/internal/protocol"
)

// queryAttempts is how many bulk queries one reconciliation cycle issues
// before giving up on the missing fields.
const queryAttempts = 2

// Refresh runs one reconciliation cycle: connect if needed, send the bulk
// state query, and wait for the device to report back. The cycle ends early
// once volume and source are known; other fields ride along when the device
// reports them. The whole cycle is bounded by QueryDeadline.
//
// A device that answers nothing, or only partially, is not an error: the
// cached values stay as they are and the next cycle tries again. Only a
// connect or write failure fails the cycle.
func (s *Session) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryDeadline)
	defer cancel()

	for attempt := 1; attempt <= queryAttempts; attempt++ {
		if err := s.queryOnce(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.WithField("attempt", attempt).Debug("Query deadline exceeded")
				break
			}
			return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
		}
		if s.state.satisfied() {
			return nil
		}
	}

	return nil
}

// queryOnce issues one bulk query under the link lock and waits for the
// response. Subscribed sessions wait on the notification signal with a
// NotifyWait cap; polling sessions just give the device PollWait to push
// indications through the read path.
func (s *Session) queryOnce(ctx context.Context) error {
	signal := s.armPoll()
	defer s.disarmPoll()

	s.linkMu.Lock()
	defer s.linkMu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return err
	}

	if err := s.writeLocked(protocol.StateQuery()); err != nil {
		return err
	}

	if s.NotificationsSupported() {
		select {
		case <-signal:
		case <-time.After(s.opts.NotifyWait):
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	select {
	case <-time.After(s.opts.PollWait):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Run drives the session until ctx is cancelled: one immediate
// reconciliation, then one per UpdateInterval. Cycle failures are logged and
// the loop keeps going; the device may simply be off.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.WithError(err).Warn("Initial state query failed")
	}

	ticker := time.NewTicker(s.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.WithError(err).Warn("Periodic state query failed")
			}
		case <-ctx.Done():
			s.Disconnect()
			return ctx.Err()
		}
	}
}
