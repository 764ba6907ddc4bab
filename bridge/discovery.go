package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// homeAssistantPrefix is the discovery prefix Home Assistant listens
// on by default.
const homeAssistantPrefix = "homeassistant"

type haSensorConfiguration struct {
	UniqueId          string `json:"unique_id"`
	Name              string `json:"name"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateTopic        string `json:"state_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement"`
}

type haFanConfiguration struct {
	UniqueId               string   `json:"unique_id"`
	Name                   string   `json:"name"`
	StateTopic             string   `json:"state_topic"`
	CommandTopic           string   `json:"command_topic"`
	PresetModeStateTopic   string   `json:"preset_mode_state_topic"`
	PresetModeCommandTopic string   `json:"preset_mode_command_topic"`
	PresetModes            []string `json:"preset_modes"`
}

type haSwitchConfiguration struct {
	UniqueId     string `json:"unique_id"`
	Name         string `json:"name"`
	StateTopic   string `json:"state_topic"`
	CommandTopic string `json:"command_topic"`
}

// haClient publishes Home Assistant MQTT discovery configurations.
type haClient struct {
	mqtt   mqtt.Client
	prefix string // state/command topic prefix, e.g. "visionair"
}

func (h *haClient) registerFan(uniqueId, name string, presets []string) error {
	payload, _ := json.Marshal(haFanConfiguration{
		UniqueId:               uniqueId,
		Name:                   name,
		StateTopic:             fmt.Sprintf("%v/fan/state", h.prefix),
		CommandTopic:           fmt.Sprintf("%v/fan/cmd", h.prefix),
		PresetModeStateTopic:   fmt.Sprintf("%v/fan/preset/state", h.prefix),
		PresetModeCommandTopic: fmt.Sprintf("%v/fan/preset/cmd", h.prefix),
		PresetModes:            presets,
	})

	configTopic := fmt.Sprintf("%v/fan/%v/config", homeAssistantPrefix, uniqueId)
	if t := h.mqtt.Publish(configTopic, 0, true, payload); t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

func (h *haClient) registerSwitch(uniqueId, name, kind string) error {
	payload, _ := json.Marshal(haSwitchConfiguration{
		UniqueId:     uniqueId,
		Name:         name,
		StateTopic:   fmt.Sprintf("%v/%v/state", h.prefix, kind),
		CommandTopic: fmt.Sprintf("%v/%v/cmd", h.prefix, kind),
	})

	configTopic := fmt.Sprintf("%v/switch/%v/config", homeAssistantPrefix, uniqueId)
	if t := h.mqtt.Publish(configTopic, 0, true, payload); t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

func (h *haClient) registerSensor(name string, class string, unit string) (string, error) {
	uniqueId := strings.Replace(strings.ToLower(name), " ", "_", -1)

	var stateTopic string
	if class == "" {
		stateTopic = fmt.Sprintf("%v/%v", h.prefix, uniqueId)
	} else {
		stateTopic = fmt.Sprintf("%v/%v/%v", h.prefix, class, uniqueId)
	}

	payload, _ := json.Marshal(haSensorConfiguration{
		UniqueId:          uniqueId,
		Name:              name,
		DeviceClass:       class,
		StateTopic:        stateTopic,
		UnitOfMeasurement: unit,
	})

	configTopic := fmt.Sprintf("%v/sensor/%v/config", homeAssistantPrefix, uniqueId)
	if t := h.mqtt.Publish(configTopic, 0, true, payload); t.Wait() && t.Error() != nil {
		return "", t.Error()
	}
	return stateTopic, nil
}
