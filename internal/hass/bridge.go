// Package hass bridges Nubert device sessions to Home Assistant over MQTT:
// retained state, discovery payloads, availability and command topics.
package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/xuio/nubert-hass/internal/config"
	"github.com/xuio/nubert-hass/internal/groutine"
	"github.com/xuio/nubert-hass/internal/session"
)

const (
	mqttKeepAlive  = 60 * time.Second
	mqttOpTimeout  = 10 * time.Second
	commandTimeout = 30 * time.Second

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// newMQTTClient is overridable in tests.
var newMQTTClient = func(opts *mqtt.ClientOptions) mqtt.Client {
	return mqtt.NewClient(opts)
}

// newSession is overridable in tests.
var newSession = func(opts session.Options) *session.Session {
	return session.New(opts)
}

// Bridge runs one session plus one MQTT connection per configured device.
type Bridge struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func New(cfg *config.Config, logger *logrus.Logger) *Bridge {
	return &Bridge{cfg: cfg, logger: logger}
}

// Run drives all configured devices until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, dev := range b.cfg.Devices {
		worker, err := b.newWorker(dev)
		if err != nil {
			return err
		}
		wg.Add(1)
		groutine.Go(ctx, "bridge-"+worker.topics.id, func(ctx context.Context) {
			defer wg.Done()
			worker.run(ctx)
		})
	}
	wg.Wait()
	return ctx.Err()
}

// deviceWorker owns the MQTT client and session of one device. A client per
// device keeps the availability last-will per device as well.
type deviceWorker struct {
	logger *logrus.Entry
	cfg    *config.Config
	topics deviceTopics
	name   string

	sess   *session.Session
	client mqtt.Client

	discoveryOnce sync.Once
}

func (b *Bridge) newWorker(dev config.DeviceConfig) (*deviceWorker, error) {
	topics := newDeviceTopics(b.cfg.MQTT.BaseTopic, dev.Address)
	name := dev.Name
	if name == "" {
		name = dev.Address
	}

	w := &deviceWorker{
		logger: b.logger.WithFields(logrus.Fields{
			"device": dev.Address,
			"name":   name,
		}),
		cfg:    b.cfg,
		topics: topics,
		name:   name,
		sess: newSession(session.Options{
			Address:        dev.Address,
			Name:           name,
			Logger:         b.logger,
			UpdateInterval: b.cfg.UpdateInterval.D(),
		}),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.MQTT.Broker).
		SetClientID(fmt.Sprintf("%s-%s", b.cfg.MQTT.ClientID, topics.id)).
		SetUsername(b.cfg.MQTT.Username).
		SetPassword(b.cfg.MQTT.Password).
		SetAutoReconnect(true).
		SetKeepAlive(mqttKeepAlive).
		SetWill(topics.availability(), payloadOffline, 1, true).
		SetOnConnectHandler(func(mqtt.Client) {
			w.onMQTTConnect()
		})

	w.client = newMQTTClient(opts)
	return w, nil
}

func (w *deviceWorker) run(ctx context.Context) {
	if token := w.client.Connect(); !token.WaitTimeout(mqttOpTimeout) || token.Error() != nil {
		w.logger.WithError(token.Error()).Error("MQTT connect failed")
		return
	}
	defer w.shutdown()

	groutine.Go(ctx, "session-"+w.topics.id, func(ctx context.Context) {
		_ = w.sess.Run(ctx)
	})

	for {
		select {
		case snap := <-w.sess.Events():
			w.publishState(snap)
		case <-ctx.Done():
			return
		}
	}
}

func (w *deviceWorker) shutdown() {
	w.publish(w.topics.availability(), payloadOffline, true)
	w.client.Disconnect(250)
}

// onMQTTConnect runs on every (re)connect: announce availability and
// (re)install the command subscriptions.
func (w *deviceWorker) onMQTTConnect() {
	w.publish(w.topics.availability(), payloadOnline, true)

	subs := map[string]mqtt.MessageHandler{
		w.topics.command("power"):  w.handlePower,
		w.topics.command("volume"): w.handleVolume,
		w.topics.command("mute"):   w.handleMute,
		w.topics.command("source"): w.handleSource,
	}
	for topic, handler := range subs {
		if token := w.client.Subscribe(topic, 1, handler); !token.WaitTimeout(mqttOpTimeout) || token.Error() != nil {
			w.logger.WithField("topic", topic).WithError(token.Error()).Error("MQTT subscribe failed")
		}
	}

	w.logger.Info("MQTT connected")
}

// publishState pushes one retained state document and, the first time the
// profile is known, the discovery configs.
func (w *deviceWorker) publishState(snap session.Snapshot) {
	if snap.Profile != nil {
		w.discoveryOnce.Do(func() {
			w.publishDiscovery(snap)
		})
	}
	w.publish(w.topics.state(), string(statePayload(snap)), true)
}

func (w *deviceWorker) publishDiscovery(snap session.Snapshot) {
	msgs, err := discoveryConfigs(w.cfg.MQTT.DiscoveryPrefix, w.name, w.topics, snap.Profile)
	if err != nil {
		w.logger.WithError(err).Error("Building discovery configs failed")
		return
	}
	for _, msg := range msgs {
		w.publish(msg.Topic, string(msg.Payload), true)
	}
	w.logger.WithField("profile", snap.Profile.Kind().String()).Info("Published discovery configs")
}

func (w *deviceWorker) publish(topic, payload string, retained bool) {
	if token := w.client.Publish(topic, 1, retained, payload); !token.WaitTimeout(mqttOpTimeout) || token.Error() != nil {
		w.logger.WithField("topic", topic).WithError(token.Error()).Warn("MQTT publish failed")
	}
}

func (w *deviceWorker) handlePower(_ mqtt.Client, msg mqtt.Message) {
	on, err := parseOnOff(msg.Payload())
	if err != nil {
		w.logger.WithField("payload", string(msg.Payload())).Warn("Ignoring bad power command")
		return
	}
	w.runCommand("power", func(ctx context.Context) error {
		return w.sess.SetPower(ctx, on)
	})
}

func (w *deviceWorker) handleVolume(_ mqtt.Client, msg mqtt.Message) {
	db, err := strconv.Atoi(strings.TrimSpace(string(msg.Payload())))
	if err != nil {
		w.logger.WithField("payload", string(msg.Payload())).Warn("Ignoring bad volume command")
		return
	}
	w.runCommand("volume", func(ctx context.Context) error {
		return w.sess.SetVolume(ctx, db)
	})
}

func (w *deviceWorker) handleMute(_ mqtt.Client, msg mqtt.Message) {
	mute, err := parseOnOff(msg.Payload())
	if err != nil {
		w.logger.WithField("payload", string(msg.Payload())).Warn("Ignoring bad mute command")
		return
	}
	w.runCommand("mute", func(ctx context.Context) error {
		return w.sess.SetMute(ctx, mute)
	})
}

func (w *deviceWorker) handleSource(_ mqtt.Client, msg mqtt.Message) {
	name := strings.TrimSpace(string(msg.Payload()))
	w.runCommand("source", func(ctx context.Context) error {
		return w.sess.SelectSource(ctx, name)
	})
}

// runCommand executes one device command off the MQTT delivery goroutine.
// Polling sessions get a follow-up refresh so the state topic converges
// without waiting for the next cycle.
func (w *deviceWorker) runCommand(kind string, fn func(ctx context.Context) error) {
	groutine.Go(context.Background(), "command-"+kind, func(context.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			w.logger.WithField("command", kind).WithError(err).Warn("Device command failed")
			return
		}
		if kind != "power" && !w.sess.NotificationsSupported() {
			if err := w.sess.Refresh(ctx); err != nil {
				w.logger.WithError(err).Debug("Post-command refresh failed")
			}
		}
	})
}

// statePayload renders the retained state document; unknown fields are
// omitted.
func statePayload(snap session.Snapshot) []byte {
	doc := make(map[string]any, 5)
	if snap.Power != nil {
		doc["power"] = onOff(*snap.Power)
	}
	if snap.VolumeDb != nil {
		doc["volume_db"] = *snap.VolumeDb
	}
	if name, ok := snap.SourceName(); ok {
		doc["source"] = name
	}
	if snap.Muted != nil {
		doc["mute"] = onOff(*snap.Muted)
	}
	if snap.SlaveRole != nil {
		role := "master"
		if *snap.SlaveRole {
			role = "slave"
		}
		doc["role"] = role
	}

	payload, _ := json.Marshal(doc)
	return payload
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func parseOnOff(payload []byte) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "TRUE", "1":
		return true, nil
	case "OFF", "FALSE", "0":
		return false, nil
	default:
		return false, fmt.Errorf("not an ON/OFF payload: %q", payload)
	}
}
