package session

import (
	"sync"

	"github.com/xuio/nubert-hass/internal/profile"
)

// Snapshot is a value copy of the session's reconciled device state. Fields
// are nil until the device first reports them; a partial snapshot is normal.
type Snapshot struct {
	Profile    *profile.Profile
	Power      *bool
	VolumeDb   *int
	SourceCode *byte
	Muted      *bool
	SlaveRole  *bool
}

// SourceName resolves the snapshot's source code against its profile table.
func (s Snapshot) SourceName() (string, bool) {
	if s.Profile == nil || s.SourceCode == nil {
		return "", false
	}
	return s.Profile.SourceName(*s.SourceCode)
}

// sessionState is the cached, reconciled mirror of device-reported fields.
// It is owned by the session: only the notification decode path and the
// optimistic power update mutate it. All setters report whether the stored
// value actually changed.
type sessionState struct {
	mu         sync.RWMutex
	profile    *profile.Profile
	power      *bool
	volumeDb   *int
	sourceCode *byte
	muted      *bool
	slaveRole  *bool
}

func (s *sessionState) snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Profile:    s.profile,
		Power:      copyPtr(s.power),
		VolumeDb:   copyPtr(s.volumeDb),
		SourceCode: copyPtr(s.sourceCode),
		Muted:      copyPtr(s.muted),
		SlaveRole:  copyPtr(s.slaveRole),
	}
}

func (s *sessionState) setProfile(p *profile.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

func (s *sessionState) activeProfile() *profile.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *sessionState) setPower(on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.power == nil || *s.power != on
	s.power = &on
	return changed
}

func (s *sessionState) powerState() *bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPtr(s.power)
}

func (s *sessionState) setVolumeDb(db int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.volumeDb == nil || *s.volumeDb != db
	s.volumeDb = &db
	return changed
}

func (s *sessionState) setSourceCode(code byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.sourceCode == nil || *s.sourceCode != code
	s.sourceCode = &code
	return changed
}

func (s *sessionState) setMuted(muted bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.muted == nil || *s.muted != muted
	s.muted = &muted
	return changed
}

func (s *sessionState) setSlaveRole(slave bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.slaveRole == nil || *s.slaveRole != slave
	s.slaveRole = &slave
	return changed
}

// satisfied reports whether a reconciliation cycle has what it needs to end
// early: volume and source both populated.
func (s *sessionState) satisfied() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volumeDb != nil && s.sourceCode != nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
