package hass

import (
	"encoding/json"
	"fmt"

	"github.com/xuio/nubert-hass/internal/profile"
)

// haDevice is the shared device block linking all entities of one speaker in
// the Home Assistant device registry.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// entityConfig is the superset of the MQTT discovery payloads the bridge
// publishes; unused fields are omitted per entity.
type entityConfig struct {
	BaseTopic         string   `json:"~"`
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	Min               *int     `json:"min,omitempty"`
	Max               *int     `json:"max,omitempty"`
	Step              *int     `json:"step,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	Options           []string `json:"options,omitempty"`
	Device            haDevice `json:"device"`
}

// discoveryMessage pairs one retained discovery payload with its topic.
type discoveryMessage struct {
	Topic   string
	Payload []byte
}

// discoveryConfigs builds the entity set for one device. Called after the
// first successful connect, once the profile (and with it volume bounds,
// source options and model name) is known.
func discoveryConfigs(prefix, deviceName string, topics deviceTopics, prof *profile.Profile) ([]discoveryMessage, error) {
	dev := haDevice{
		Identifiers:  []string{"nubert_" + topics.id},
		Name:         deviceName,
		Manufacturer: "Nubert",
		Model:        prof.Model(),
	}

	base := func(object, name, template string) entityConfig {
		return entityConfig{
			BaseTopic:         topics.root(),
			Name:              fmt.Sprintf("%s %s", deviceName, name),
			UniqueID:          fmt.Sprintf("nubert_%s_%s", topics.id, object),
			StateTopic:        "~/state",
			AvailabilityTopic: "~/availability",
			ValueTemplate:     template,
			Device:            dev,
		}
	}

	minDb, maxDb, step := prof.MinDb(), prof.MaxDb(), 1

	power := base("power", "Power", "{{ value_json.power }}")
	power.CommandTopic = "~/power/set"
	power.PayloadOn = "ON"
	power.PayloadOff = "OFF"

	volume := base("volume", "Volume", "{{ value_json.volume_db }}")
	volume.CommandTopic = "~/volume/set"
	volume.Min = &minDb
	volume.Max = &maxDb
	volume.Step = &step
	volume.UnitOfMeasurement = "dB"

	source := base("source", "Source", "{{ value_json.source }}")
	source.CommandTopic = "~/source/set"
	source.Options = prof.SourceNames()

	mute := base("mute", "Mute", "{{ value_json.mute }}")
	mute.CommandTopic = "~/mute/set"
	mute.PayloadOn = "ON"
	mute.PayloadOff = "OFF"

	role := base("role", "Slave Mode", "{{ value_json.role }}")
	role.PayloadOn = "slave"
	role.PayloadOff = "master"

	entities := []struct {
		component string
		object    string
		cfg       entityConfig
	}{
		{"switch", "power", power},
		{"number", "volume", volume},
		{"select", "source", source},
		{"switch", "mute", mute},
		{"binary_sensor", "role", role},
	}

	msgs := make([]discoveryMessage, 0, len(entities))
	for _, e := range entities {
		payload, err := json.Marshal(e.cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal %s discovery config: %w", e.object, err)
		}
		msgs = append(msgs, discoveryMessage{
			Topic:   discoveryTopic(prefix, e.component, topics.id, e.object),
			Payload: payload,
		})
	}
	return msgs, nil
}
