package hass

import (
	"context"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/xuio/nubert-hass/internal/config"
	"github.com/xuio/nubert-hass/internal/profile"
	"github.com/xuio/nubert-hass/internal/protocol"
	"github.com/xuio/nubert-hass/internal/session"
	"github.com/xuio/nubert-hass/internal/testutils"
)

type fakeToken struct{}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (fakeToken) Error() error { return nil }

type publishRecord struct {
	topic    string
	payload  string
	retained bool
}

// fakeMQTT records publishes and subscriptions and fires the configured
// OnConnect handler when Connect is called, like the real client does.
type fakeMQTT struct {
	mu        sync.Mutex
	opts      *mqtt.ClientOptions
	connected bool
	published []publishRecord
	handlers  map[string]mqtt.MessageHandler
}

func newFakeMQTT(opts *mqtt.ClientOptions) *fakeMQTT {
	return &fakeMQTT{opts: opts, handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeMQTT) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
func (f *fakeMQTT) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakeMQTT) Connect() mqtt.Token {
	f.mu.Lock()
	f.connected = true
	onConnect := f.opts.OnConnect
	f.mu.Unlock()
	if onConnect != nil {
		onConnect(f)
	}
	return fakeToken{}
}

func (f *fakeMQTT) Disconnect(quiesce uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	f.published = append(f.published, publishRecord{topic: topic, payload: body, retained: retained})
	return fakeToken{}
}

func (f *fakeMQTT) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = callback
	return fakeToken{}
}

func (f *fakeMQTT) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}

func (f *fakeMQTT) Unsubscribe(topics ...string) mqtt.Token { return fakeToken{} }

func (f *fakeMQTT) AddRoute(topic string, callback mqtt.MessageHandler) {}

func (f *fakeMQTT) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func (f *fakeMQTT) publishesTo(topic string) []publishRecord {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishRecord
	for _, p := range f.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeMQTT) deliver(topic, payload string) bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(f, &fakeMessage{topic: topic, payload: []byte(payload)})
	return true
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestDeviceID(t *testing.T) {
	assert.Equal(t, "aabbccddeeff", DeviceID("AA:BB:CC:DD:EE:FF"))
	assert.Equal(t, "aabbccddeeff", DeviceID("aa-bb-cc-dd-ee-ff"))
}

func TestStatePayloadOmitsUnknownFields(t *testing.T) {
	ja := testutils.NewJSONAsserter(t)
	ja.StrictKeys = true

	ja.Assert(string(statePayload(session.Snapshot{})), `{}`)

	on := true
	db := -50
	src := byte(0x00)
	muted := false
	slave := true
	snap := session.Snapshot{
		Profile:    profile.Speaker,
		Power:      &on,
		VolumeDb:   &db,
		SourceCode: &src,
		Muted:      &muted,
		SlaveRole:  &slave,
	}
	ja.Assert(string(statePayload(snap)),
		`{"power":"ON","volume_db":-50,"source":"AUX","mute":"OFF","role":"slave"}`)
}

func TestDiscoveryConfigs(t *testing.T) {
	topics := newDeviceTopics("nubert", "AA:BB:CC:DD:EE:FF")
	msgs, err := discoveryConfigs("homeassistant", "Living Room", topics, profile.Speaker)
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	byTopic := make(map[string]string, len(msgs))
	for _, m := range msgs {
		byTopic[m.Topic] = string(m.Payload)
	}

	ja := testutils.NewJSONAsserter(t)

	powerTopic := "homeassistant/switch/nubert_aabbccddeeff/power/config"
	require.Contains(t, byTopic, powerTopic)
	ja.Assert(byTopic[powerTopic], `{
		"~": "nubert/aabbccddeeff",
		"name": "Living Room Power",
		"unique_id": "nubert_aabbccddeeff_power",
		"state_topic": "~/state",
		"command_topic": "~/power/set",
		"availability_topic": "~/availability",
		"value_template": "{{ value_json.power }}",
		"payload_on": "ON",
		"payload_off": "OFF",
		"device": {
			"identifiers": ["nubert_aabbccddeeff"],
			"name": "Living Room",
			"manufacturer": "Nubert",
			"model": "nuPro speaker"
		}
	}`)

	volumeTopic := "homeassistant/number/nubert_aabbccddeeff/volume/config"
	require.Contains(t, byTopic, volumeTopic)
	ja.Assert(byTopic[volumeTopic], `{
		"command_topic": "~/volume/set",
		"min": -100,
		"max": 0,
		"step": 1,
		"unit_of_measurement": "dB"
	}`)

	sourceTopic := "homeassistant/select/nubert_aabbccddeeff/source/config"
	require.Contains(t, byTopic, sourceTopic)
	ja.Assert(byTopic[sourceTopic], `{
		"command_topic": "~/source/set",
		"options": ["AUX","XLR","COAX 1","COAX 2","OPTO 1","OPTO 2","USB","PORT"]
	}`)

	roleTopic := "homeassistant/binary_sensor/nubert_aabbccddeeff/role/config"
	require.Contains(t, byTopic, roleTopic)
	ja.Assert(byTopic[roleTopic], `{
		"payload_on": "slave",
		"payload_off": "master",
		"value_template": "{{ value_json.role }}"
	}`)
}

func TestParseOnOff(t *testing.T) {
	for _, in := range []string{"ON", "on", " 1 ", "true"} {
		v, err := parseOnOff([]byte(in))
		require.NoError(t, err, in)
		assert.True(t, v, in)
	}
	for _, in := range []string{"OFF", "off", "0", "false"} {
		v, err := parseOnOff([]byte(in))
		require.NoError(t, err, in)
		assert.False(t, v, in)
	}
	_, err := parseOnOff([]byte("toggle"))
	require.Error(t, err)
}

type BridgeSuite struct {
	suite.Suite

	peripheral *testutils.FakePeripheral
	client     *fakeMQTT
	cancel     context.CancelFunc
	done       chan struct{}
	topics     deviceTopics
}

func TestBridgeSuite(t *testing.T) {
	suite.Run(t, new(BridgeSuite))
}

func (s *BridgeSuite) SetupTest() {
	s.peripheral = testutils.NewFakePeripheral("AA:BB:CC:DD:EE:FF", profile.Speaker.CharacteristicUUID(), true)
	s.peripheral.AutoRespond(func(frame []byte) [][]byte {
		if frame[0] != protocol.CmdBulkGet {
			return nil
		}
		return [][]byte{
			{protocol.CmdPowerGet, 0x01, 0x00},
			{protocol.CmdVolumeGet, 0x01, 0x32},
			{protocol.CmdSourceGet, 0x01, 0x00},
		}
	})
	s.peripheral.Install(s.T())

	s.client = nil
	origClient := newMQTTClient
	newMQTTClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		s.client = newFakeMQTT(opts)
		return s.client
	}
	s.T().Cleanup(func() { newMQTTClient = origClient })

	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://127.0.0.1:1883"
	cfg.Devices = []config.DeviceConfig{{Name: "Living Room", Address: "AA:BB:CC:DD:EE:FF"}}
	s.topics = newDeviceTopics(cfg.MQTT.BaseTopic, "AA:BB:CC:DD:EE:FF")

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	bridge := New(cfg, logger)
	go func() {
		_ = bridge.Run(ctx)
		close(s.done)
	}()
}

func (s *BridgeSuite) TearDownTest() {
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		s.Fail("bridge did not stop")
	}
}

func (s *BridgeSuite) TestAnnouncesAvailabilityAndState() {
	s.Require().Eventually(func() bool {
		return len(s.client.publishesTo(s.topics.state())) > 0
	}, 2*time.Second, 10*time.Millisecond)

	avail := s.client.publishesTo(s.topics.availability())
	s.Require().NotEmpty(avail)
	s.Equal(payloadOnline, avail[0].payload)
	s.True(avail[0].retained)

	states := s.client.publishesTo(s.topics.state())
	s.True(states[0].retained)
	ja := testutils.NewJSONAsserter(s.T())
	ja.Assert(states[len(states)-1].payload, `{"power":"ON","volume_db":-50,"source":"AUX"}`)
}

func (s *BridgeSuite) TestPublishesDiscoveryOnceProfileKnown() {
	powerTopic := "homeassistant/switch/nubert_aabbccddeeff/power/config"
	s.Require().Eventually(func() bool {
		return len(s.client.publishesTo(powerTopic)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	for _, component := range []string{"number/nubert_aabbccddeeff/volume", "select/nubert_aabbccddeeff/source", "binary_sensor/nubert_aabbccddeeff/role"} {
		s.Len(s.client.publishesTo("homeassistant/"+component+"/config"), 1)
	}
}

func (s *BridgeSuite) TestCommandTopicDrivesDevice() {
	s.Require().Eventually(func() bool {
		return s.client.deliver(s.topics.command("power"), "OFF")
	}, 2*time.Second, 10*time.Millisecond)

	s.Require().Eventually(func() bool {
		for _, frame := range s.peripheral.WrittenFrames() {
			if len(frame) == 3 && frame[0] == protocol.CmdPowerSet && frame[2] == 0x01 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *BridgeSuite) TestOfflinePublishedOnShutdown() {
	s.Require().Eventually(func() bool {
		return len(s.client.publishesTo(s.topics.availability())) > 0
	}, 2*time.Second, 10*time.Millisecond)

	s.cancel()
	s.Require().Eventually(func() bool {
		avail := s.client.publishesTo(s.topics.availability())
		return avail[len(avail)-1].payload == payloadOffline
	}, 2*time.Second, 10*time.Millisecond)
}
