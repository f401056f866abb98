// Package session implements the device session manager: connection
// establishment with bounded retries, profile detection, a serialized write
// path shared by commands and the reconciliation loop, and the notification
// decode path that keeps the cached state converged with device truth.
package session

import (
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/xuio/nubert-hass/internal/device"
	"github.com/xuio/nubert-hass/internal/devicefactory"
	"github.com/xuio/nubert-hass/internal/profile"
	"github.com/xuio/nubert-hass/internal/protocol"
	"github.com/xuio/nubert-hass/internal/ringchan"
)

// eventBuffer bounds the state-change event channel; producers never block,
// slow consumers lose the oldest events.
const eventBuffer = 32

// Options configures a Session. Zero fields take the tagged defaults.
type Options struct {
	// Address is the BLE address of the device. Required.
	Address string

	// Name is the display name; defaults to the address.
	Name string

	Logger *logrus.Logger

	ConnectTimeout  time.Duration `default:"20s"`
	ConnectAttempts int           `default:"3"`
	ConnectBackoff  time.Duration `default:"2s"`

	// UpdateInterval is the reconciliation loop period.
	UpdateInterval time.Duration `default:"60s"`

	// QueryDeadline bounds one reconciliation cycle overall; NotifyWait is
	// the per-attempt wait for notifications, PollWait the fallback sleep
	// when notifications are unavailable.
	QueryDeadline time.Duration `default:"8s"`
	NotifyWait    time.Duration `default:"3s"`
	PollWait      time.Duration `default:"2s"`

	WriteTimeout time.Duration `default:"5s"`

	// IndicationHold is how long the LED connect cue stays lit.
	IndicationHold time.Duration `default:"5s"`
}

// Session maintains the live, reconciled state mirror of one Nubert device
// and issues state-changing commands against it.
type Session struct {
	opts   Options
	logger *logrus.Entry

	dev device.Device

	// linkMu is the single exclusive lock around every link operation:
	// connect, subscribe, command and query writes. The notification
	// callback runs outside it.
	linkMu sync.Mutex

	// handleMu guards the bound-characteristic handle so Disconnect can
	// invalidate it without taking linkMu (a pending wait must not block
	// disconnection).
	handleMu       sync.Mutex
	char           device.Characteristic
	notifSupported bool

	// refreshMu serializes reconciliation cycles.
	refreshMu sync.Mutex

	pollMu sync.Mutex
	pollCh chan struct{}

	state    *sessionState
	events   *ringchan.RingChannel[Snapshot]
	recorder *frameRecorder
}

// New creates a Session for the device at opts.Address. The BLE device is
// constructed through the device factory so tests can substitute fakes.
func New(opts Options) *Session {
	defaults.SetDefaults(&opts)
	if opts.Name == "" {
		opts.Name = opts.Address
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	logger := opts.Logger.WithFields(logrus.Fields{
		"device": opts.Address,
		"name":   opts.Name,
	})

	return &Session{
		opts:     opts,
		logger:   logger,
		dev:      devicefactory.NewDevice(opts.Address, opts.Logger),
		state:    &sessionState{},
		events:   ringchan.New[Snapshot](eventBuffer),
		recorder: newFrameRecorder(),
	}
}

// Address returns the device BLE address.
func (s *Session) Address() string { return s.opts.Address }

// Name returns the display name.
func (s *Session) Name() string { return s.opts.Name }

// State returns a value copy of the cached device state.
func (s *Session) State() Snapshot {
	return s.state.snapshot()
}

// Profile returns the active device profile, or nil before first connect.
func (s *Session) Profile() *profile.Profile {
	return s.state.activeProfile()
}

// NotificationsSupported reports whether the session runs subscribed or in
// polling fallback. Meaningful after a successful connect.
func (s *Session) NotificationsSupported() bool {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	return s.notifSupported
}

// Events returns the state-change event channel. Events are dropped oldest
// first when the consumer lags.
func (s *Session) Events() <-chan Snapshot {
	return s.events.C()
}

// Frames drains and returns the recent protocol frame history, oldest
// first. Debug aid for watch --frames and bridge tracing.
func (s *Session) Frames() []FrameRecord {
	return s.recorder.drain()
}

// publish emits the current snapshot on the event channel.
func (s *Session) publish() {
	s.events.ForceSend(s.state.snapshot())
}

// handleNotification is the decode path feeding session state. It runs on
// the transport's delivery goroutine, outside the link lock, and must stay
// memory-only.
func (s *Session) handleNotification(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		s.logger.WithField("len", len(data)).Debug("Dropping malformed frame")
		return
	}

	s.recorder.record(DirIn, frame.Cmd, frame.Payload)

	if !frame.Recognized() {
		// Normal: the device emits unsolicited filler frames.
		s.logger.WithField("cmd", frame.Cmd).Trace("Ignoring unrecognized frame")
		return
	}

	updated := false
	changed := false

	switch frame.Cmd {
	case protocol.CmdPowerGet:
		if on, ok := protocol.ParsePower(frame.Payload); ok {
			changed = s.state.setPower(on)
			updated = true
		}
	case protocol.CmdVolumeGet:
		if raw, ok := protocol.ParseByte(frame.Payload); ok {
			prof := s.state.activeProfile()
			if prof == nil {
				prof = profile.Speaker
			}
			changed = s.state.setVolumeDb(prof.VolumeFromRaw(raw))
			updated = true
		}
	case protocol.CmdSourceGet:
		if code, ok := protocol.ParseByte(frame.Payload); ok {
			changed = s.state.setSourceCode(code)
			updated = true
		}
	case protocol.CmdMuteGet:
		if muted, ok := protocol.ParseBool(frame.Payload); ok {
			changed = s.state.setMuted(muted)
			updated = true
		}
	case protocol.CmdSlaveGet:
		if slave, ok := protocol.ParseBool(frame.Payload); ok {
			changed = s.state.setSlaveRole(slave)
			updated = true
		}
	}

	if updated {
		s.signalPoll()
	}
	if changed {
		s.publish()
	}
}

// armPoll installs a fresh wait channel for the next reconciliation attempt.
func (s *Session) armPoll() <-chan struct{} {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	ch := make(chan struct{})
	s.pollCh = ch
	return ch
}

// signalPoll releases a waiting reconciliation attempt, once.
func (s *Session) signalPoll() {
	s.pollMu.Lock()
	ch := s.pollCh
	s.pollCh = nil
	s.pollMu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// disarmPoll abandons the current wait channel.
func (s *Session) disarmPoll() {
	s.pollMu.Lock()
	s.pollCh = nil
	s.pollMu.Unlock()
}
