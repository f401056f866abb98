package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"github.com/xuio/nubert-hass/internal/profile"
	"github.com/xuio/nubert-hass/internal/protocol"
	"github.com/xuio/nubert-hass/internal/testutils"
)

type SessionSuite struct {
	suite.Suite
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) newSession(p *testutils.FakePeripheral) *Session {
	p.Install(s.T())

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	return New(Options{
		Address:         "aa:bb:cc:dd:ee:ff",
		Name:            "test-device",
		Logger:          logger,
		ConnectTimeout:  100 * time.Millisecond,
		ConnectAttempts: 3,
		ConnectBackoff:  30 * time.Millisecond,
		UpdateInterval:  100 * time.Millisecond,
		QueryDeadline:   500 * time.Millisecond,
		NotifyWait:      40 * time.Millisecond,
		PollWait:        20 * time.Millisecond,
		WriteTimeout:    50 * time.Millisecond,
		IndicationHold:  10 * time.Millisecond,
	})
}

func (s *SessionSuite) speakerPeripheral() *testutils.FakePeripheral {
	return testutils.NewFakePeripheral("aa:bb:cc:dd:ee:ff", profile.Speaker.CharacteristicUUID(), true)
}

func (s *SessionSuite) subwooferPeripheral() *testutils.FakePeripheral {
	return testutils.NewFakePeripheral("aa:bb:cc:dd:ee:ff", profile.Subwoofer.CharacteristicUUID(), false)
}

func framesWithCmd(p *testutils.FakePeripheral, cmd byte) [][]byte {
	var out [][]byte
	for _, frame := range p.WrittenFrames() {
		if len(frame) > 0 && frame[0] == cmd {
			out = append(out, frame)
		}
	}
	return out
}

func (s *SessionSuite) TestSpeakerRefreshConvergesAndExitsEarly() {
	p := s.speakerPeripheral()
	p.AutoRespond(func(frame []byte) [][]byte {
		if frame[0] != protocol.CmdBulkGet {
			return nil
		}
		return [][]byte{
			{protocol.CmdPowerGet, 0x01, 0x00},  // on
			{protocol.CmdVolumeGet, 0x01, 0x32}, // raw 50 -> -50 dB
			{protocol.CmdSourceGet, 0x01, 0x00}, // AUX
		}
	})
	sess := s.newSession(p)

	s.Require().NoError(sess.Refresh(context.Background()))

	state := sess.State()
	s.Require().NotNil(state.Power)
	s.True(*state.Power)
	s.Require().NotNil(state.VolumeDb)
	s.Equal(-50, *state.VolumeDb)
	name, ok := state.SourceName()
	s.Require().True(ok)
	s.Equal("AUX", name)
	s.Equal(profile.KindSpeaker, sess.Profile().Kind())
	s.True(sess.NotificationsSupported())

	// All fields answered on the first query, so no second attempt.
	s.Len(framesWithCmd(p, protocol.CmdBulkGet), 1)
	s.Equal(protocol.StateQuery(), framesWithCmd(p, protocol.CmdBulkGet)[0])
}

func (s *SessionSuite) TestRefreshRetainsCachedStateWhenDeviceGoesQuiet() {
	p := s.speakerPeripheral()
	answered := false
	p.AutoRespond(func(frame []byte) [][]byte {
		if frame[0] != protocol.CmdBulkGet || answered {
			return nil
		}
		answered = true
		return [][]byte{
			{protocol.CmdVolumeGet, 0x01, 0x28},
			{protocol.CmdSourceGet, 0x01, 0x06},
		}
	})
	sess := s.newSession(p)

	s.Require().NoError(sess.Refresh(context.Background()))
	s.Require().NoError(sess.Refresh(context.Background()))

	state := sess.State()
	s.Require().NotNil(state.VolumeDb)
	s.Equal(-60, *state.VolumeDb)
	name, _ := state.SourceName()
	s.Equal("OPTO 1", name)
}

func (s *SessionSuite) TestSubwooferUsesPollingFallbackAndUnackedWrites() {
	p := s.subwooferPeripheral()
	sess := s.newSession(p)

	s.Require().NoError(sess.Refresh(context.Background()))

	s.False(sess.NotificationsSupported())
	s.False(p.Subscribed())
	s.Equal(profile.KindSubwoofer, sess.Profile().Kind())

	queries := framesWithCmd(p, protocol.CmdBulkGet)
	s.Len(queries, 2)
	for _, w := range p.Writes() {
		s.False(w.WithResponse)
	}
}

func (s *SessionSuite) TestConnectRetriesWithBackoff() {
	p := s.speakerPeripheral()
	p.FailConnects(errors.New("le connection refused"), errors.New("le connection refused"))
	sess := s.newSession(p)

	start := time.Now()
	s.Require().NoError(sess.EnsureConnected(context.Background()))
	s.GreaterOrEqual(time.Since(start), 60*time.Millisecond)
	s.Equal(3, p.ConnectCalls())

	// The connect LED cue runs once per established link: on, hold, off.
	s.Require().Eventually(func() bool {
		return len(framesWithCmd(p, protocol.CmdConnectIndication)) == 2
	}, time.Second, 5*time.Millisecond)
	cues := framesWithCmd(p, protocol.CmdConnectIndication)
	s.Equal([]byte{protocol.CmdConnectIndication, 0x01, 0x01}, cues[0])
	s.Equal([]byte{protocol.CmdConnectIndication, 0x01, 0x00}, cues[1])
}

func (s *SessionSuite) TestConnectGivesUpAfterAllAttempts() {
	p := s.speakerPeripheral()
	cause := errors.New("device unreachable")
	p.FailConnects(cause, cause, cause)
	sess := s.newSession(p)

	err := sess.EnsureConnected(context.Background())
	s.Require().ErrorIs(err, ErrConnectFailed)
	s.ErrorIs(err, cause)
	s.Equal(3, p.ConnectCalls())
}

func (s *SessionSuite) TestSetPowerIsOptimisticAndIdempotent() {
	p := s.speakerPeripheral()
	sess := s.newSession(p)
	ctx := context.Background()

	s.Require().NoError(sess.SetPower(ctx, true))
	s.Require().NotNil(sess.State().Power)
	s.True(*sess.State().Power)
	s.Len(framesWithCmd(p, protocol.CmdPowerSet), 1)
	s.Equal([]byte{protocol.CmdPowerSet, 0x01, 0x00}, framesWithCmd(p, protocol.CmdPowerSet)[0])

	// Same state requested again: no second wire write.
	s.Require().NoError(sess.SetPower(ctx, true))
	s.Len(framesWithCmd(p, protocol.CmdPowerSet), 1)

	s.Require().NoError(sess.SetPower(ctx, false))
	writes := framesWithCmd(p, protocol.CmdPowerSet)
	s.Len(writes, 2)
	s.Equal([]byte{protocol.CmdPowerSet, 0x01, 0x01}, writes[1])
	s.False(*sess.State().Power)
}

func (s *SessionSuite) TestSetVolumeClampsToProfileRange() {
	p := s.speakerPeripheral()
	sess := s.newSession(p)
	ctx := context.Background()

	s.Require().NoError(sess.SetVolume(ctx, -50))
	s.Require().NoError(sess.SetVolume(ctx, -200))
	s.Require().NoError(sess.SetVolume(ctx, 5))

	writes := framesWithCmd(p, protocol.CmdVolumeSet)
	s.Require().Len(writes, 3)
	s.Equal([]byte{protocol.CmdVolumeSet, 0x01, 0x32}, writes[0])
	s.Equal([]byte{protocol.CmdVolumeSet, 0x01, 0x00}, writes[1])
	s.Equal([]byte{protocol.CmdVolumeSet, 0x01, 0x64}, writes[2])
}

func (s *SessionSuite) TestSelectSourceResolvesNamesLoosely() {
	p := s.speakerPeripheral()
	sess := s.newSession(p)
	ctx := context.Background()

	s.Require().NoError(sess.SelectSource(ctx, "aux"))
	s.Require().NoError(sess.SelectSource(ctx, "Coax 1"))
	s.Require().NoError(sess.SelectSource(ctx, "opto_2"))

	err := sess.SelectSource(ctx, "PHONO")
	s.Require().ErrorIs(err, ErrUnknownSource)

	writes := framesWithCmd(p, protocol.CmdSourceSet)
	s.Require().Len(writes, 3)
	s.Equal([]byte{protocol.CmdSourceSet, 0x01, 0x00}, writes[0])
	s.Equal([]byte{protocol.CmdSourceSet, 0x01, 0x04}, writes[1])
	s.Equal([]byte{protocol.CmdSourceSet, 0x01, 0x07}, writes[2])
}

func (s *SessionSuite) TestSelectSourceCodeChecksProfileTable() {
	p := s.speakerPeripheral()
	sess := s.newSession(p)
	ctx := context.Background()

	s.Require().NoError(sess.SelectSourceCode(ctx, 0x04))

	err := sess.SelectSourceCode(ctx, 0x03) // gap in the speaker table
	s.Require().ErrorIs(err, ErrUnknownSource)

	writes := framesWithCmd(p, protocol.CmdSourceSet)
	s.Require().Len(writes, 1)
	s.Equal([]byte{protocol.CmdSourceSet, 0x01, 0x04}, writes[0])
}

func (s *SessionSuite) TestSetMute() {
	p := s.speakerPeripheral()
	sess := s.newSession(p)

	s.Require().NoError(sess.SetMute(context.Background(), true))
	writes := framesWithCmd(p, protocol.CmdMuteSet)
	s.Require().Len(writes, 1)
	s.Equal([]byte{protocol.CmdMuteSet, 0x01, 0x01}, writes[0])
}

func (s *SessionSuite) TestMalformedAndUnrecognizedFramesLeaveStateUntouched() {
	p := s.speakerPeripheral()
	sess := s.newSession(p)
	s.Require().NoError(sess.EnsureConnected(context.Background()))

	p.Notify([]byte{protocol.CmdPowerGet}) // truncated, no length byte
	p.Notify([]byte{0x99, 0x01, 0x00})     // unknown command
	p.Notify([]byte{})                     // empty

	state := sess.State()
	s.Nil(state.Power)
	s.Nil(state.VolumeDb)
	s.Nil(state.SourceCode)
	s.Nil(state.Muted)
	s.Nil(state.SlaveRole)
}

func (s *SessionSuite) TestNotificationsUpdateStateAndPublishEvents() {
	p := s.speakerPeripheral()
	sess := s.newSession(p)
	s.Require().NoError(sess.EnsureConnected(context.Background()))

	p.Notify([]byte{protocol.CmdMuteGet, 0x01, 0x01})
	p.Notify([]byte{protocol.CmdSlaveGet, 0x01, 0x01})

	select {
	case snap := <-sess.Events():
		s.Require().NotNil(snap.Muted)
		s.True(*snap.Muted)
	case <-time.After(time.Second):
		s.Fail("no event published")
	}

	state := sess.State()
	s.Require().NotNil(state.SlaveRole)
	s.True(*state.SlaveRole)
}

func (s *SessionSuite) TestSilentDeviceIsNotAnError() {
	p := s.speakerPeripheral()
	sess := s.newSession(p)

	start := time.Now()
	s.Require().NoError(sess.Refresh(context.Background()))
	// Two attempts, each bounded by the notify wait; no fields reported.
	s.Less(time.Since(start), 500*time.Millisecond)
	s.Len(framesWithCmd(p, protocol.CmdBulkGet), 2)

	state := sess.State()
	s.Nil(state.Power)
	s.Nil(state.VolumeDb)
	s.Nil(state.SourceCode)
}

func (s *SessionSuite) TestRefreshFailsOnFirstTransportError() {
	p := s.subwooferPeripheral()
	p.FailWrites(errors.New("characteristic write failed"))
	sess := s.newSession(p)

	err := sess.Refresh(context.Background())
	s.Require().ErrorIs(err, ErrUpdateFailed)
	// A link failure aborts the cycle: the second query attempt would have
	// reconnected the invalidated handle, so one connect means one attempt.
	s.Empty(p.Writes())
	s.Equal(1, p.ConnectCalls())
}

func (s *SessionSuite) TestWriteFailureOnLiveLinkIsRejection() {
	p := s.speakerPeripheral()
	sess := s.newSession(p)
	s.Require().NoError(sess.EnsureConnected(context.Background()))

	p.FailWrites(errors.New("att error 0x0e"))
	err := sess.SetMute(context.Background(), true)
	s.Require().ErrorIs(err, ErrCommandRejected)
}

func (s *SessionSuite) TestFrameRecorderCapturesTraffic() {
	p := s.speakerPeripheral()
	p.AutoRespond(func(frame []byte) [][]byte {
		if frame[0] != protocol.CmdBulkGet {
			return nil
		}
		return [][]byte{
			{protocol.CmdVolumeGet, 0x01, 0x32},
			{protocol.CmdSourceGet, 0x01, 0x00},
		}
	})
	sess := s.newSession(p)
	s.Require().NoError(sess.Refresh(context.Background()))

	frames := sess.Frames()
	s.Require().NotEmpty(frames)

	var sawOut, sawIn bool
	for _, f := range frames {
		switch f.Dir {
		case DirOut:
			sawOut = true
		case DirIn:
			sawIn = true
		}
	}
	s.True(sawOut)
	s.True(sawIn)

	// drain empties the history
	s.Empty(sess.Frames())
}

func (s *SessionSuite) TestRunReconnectsAfterLinkLoss() {
	p := s.speakerPeripheral()
	p.AutoRespond(func(frame []byte) [][]byte {
		if frame[0] != protocol.CmdBulkGet {
			return nil
		}
		return [][]byte{
			{protocol.CmdVolumeGet, 0x01, 0x32},
			{protocol.CmdSourceGet, 0x01, 0x00},
		}
	})
	sess := s.newSession(p)
	s.Require().NoError(sess.Refresh(context.Background()))
	first := p.ConnectCalls()

	p.DropLink()
	s.Require().NoError(sess.Refresh(context.Background()))
	s.Greater(p.ConnectCalls(), first)
}
