// Package bridge exposes a VisionAir device to Home Assistant over
// MQTT: a fan entity for the airflow mode, a switch for boost, and the
// sensor set assembled from full-status polls. Entities are announced
// through MQTT discovery, so no Home Assistant configuration is needed
// beyond the broker.
package bridge

import (
	"context"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/muurk/visionair/internal/config"
	"github.com/muurk/visionair/internal/logging"
	"github.com/muurk/visionair/protocol"
	"github.com/muurk/visionair/session"
)

// Device is the slice of the session the bridge drives.
type Device interface {
	PollFullStatus(ctx context.Context) (*session.CompositeStatus, error)
	SetMode(ctx context.Context, m protocol.Mode) error
	SetBoost(ctx context.Context, on bool) error
}

// Bridge connects one VisionAir device to an MQTT broker.
type Bridge struct {
	prefs    *config.MQTTPrefs
	dev      Device
	deviceID string
	prefix   string

	mu       sync.Mutex
	lastMode string
}

// New creates a bridge for dev. deviceID distinguishes entities when
// several bridges share a broker.
func New(prefs *config.MQTTPrefs, dev Device, deviceID string) *Bridge {
	prefix := prefs.TopicPrefix
	if prefix == "" {
		prefix = config.DefaultTopicPrefix
	}
	return &Bridge{
		prefs:    prefs,
		dev:      dev,
		deviceID: deviceID,
		prefix:   prefix,
	}
}

// ClientOptions builds the paho client options for the configured
// broker. Subscriptions are installed through the connect handler so
// they survive reconnects.
func (b *Bridge) ClientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(b.prefs.Broker).
		SetClientID(b.prefs.ClientID).
		SetUsername(b.prefs.Username).
		SetPassword(b.prefs.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(client mqtt.Client, err error) {
			logging.Warn("MQTT connection lost", zap.Error(err))
		}).
		SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
			logging.Info("MQTT reconnecting")
		}).
		SetOnConnectHandler(func(client mqtt.Client) {
			b.Subscribe(client)
		})
	return opts
}

// Register announces all entities through MQTT discovery.
func (b *Bridge) Register(mqttClient mqtt.Client) error {
	ha := &haClient{mqtt: mqttClient, prefix: b.prefix}

	fanID := fmt.Sprintf("visionair_%v_fan", b.deviceID)
	presets := []string{
		protocol.ModeLow.String(),
		protocol.ModeMedium.String(),
		protocol.ModeHigh.String(),
	}
	if err := ha.registerFan(fanID, "VisionAir", presets); err != nil {
		return err
	}

	boostID := fmt.Sprintf("visionair_%v_boost", b.deviceID)
	if err := ha.registerSwitch(boostID, "VisionAir Boost", "boost"); err != nil {
		return err
	}

	for _, sensorConfig := range sensorDefinitions {
		stateTopic, err := ha.registerSensor(sensorConfig.name, sensorConfig.class, sensorConfig.unit)
		if err != nil {
			return err
		}
		logging.Debug("Registered sensor", zap.String("name", sensorConfig.name))
		sensorConfig.stateTopic = stateTopic
	}

	return nil
}

// Subscribe installs the command topic handlers. Called from the MQTT
// connect handler so the subscriptions are re-established after a
// broker reconnect.
func (b *Bridge) Subscribe(mqttClient mqtt.Client) {
	if t := mqttClient.Subscribe(fmt.Sprintf("%v/fan/preset/cmd", b.prefix), 0, func(client mqtt.Client, msg mqtt.Message) {
		b.handlePresetCommand(client, string(msg.Payload()))
	}); t.Wait() && t.Error() != nil {
		logging.Warn("MQTT subscribe failed", zap.Error(t.Error()))
	}

	if t := mqttClient.Subscribe(fmt.Sprintf("%v/fan/cmd", b.prefix), 0, func(client mqtt.Client, msg mqtt.Message) {
		// The ventilation unit has no off state; only acknowledge.
		b.publish(client, fmt.Sprintf("%v/fan/state", b.prefix), "ON")
	}); t.Wait() && t.Error() != nil {
		logging.Warn("MQTT subscribe failed", zap.Error(t.Error()))
	}

	if t := mqttClient.Subscribe(fmt.Sprintf("%v/boost/cmd", b.prefix), 0, func(client mqtt.Client, msg mqtt.Message) {
		b.handleBoostCommand(client, string(msg.Payload()))
	}); t.Wait() && t.Error() != nil {
		logging.Warn("MQTT subscribe failed", zap.Error(t.Error()))
	}
}

func (b *Bridge) handlePresetCommand(client mqtt.Client, preset string) {
	mode, err := protocol.ParseMode(preset)
	if err != nil {
		logging.Warn("Ignoring unknown fan preset", zap.String("preset", preset))
		return
	}
	if err := b.dev.SetMode(context.Background(), mode); err != nil {
		logging.Error("Setting airflow mode failed", zap.Error(err), zap.String("mode", preset))
		return
	}
	b.publish(client, fmt.Sprintf("%v/fan/preset/state", b.prefix), preset)
	b.mu.Lock()
	b.lastMode = preset
	b.mu.Unlock()
}

func (b *Bridge) handleBoostCommand(client mqtt.Client, command string) {
	on := command == "ON"
	if err := b.dev.SetBoost(context.Background(), on); err != nil {
		logging.Error("Setting boost failed", zap.Error(err), zap.String("command", command))
		return
	}
	b.publish(client, fmt.Sprintf("%v/boost/state", b.prefix), command)
}

// Poll runs one full-status poll and publishes every entity state.
func (b *Bridge) Poll(ctx context.Context, mqttClient mqtt.Client) error {
	status, err := b.dev.PollFullStatus(ctx)
	if err != nil {
		logging.Warn("Status poll failed", zap.Error(err))
		return err
	}

	for _, sensorConfig := range sensorDefinitions {
		value := sensorConfig.get(status)
		if value == nil || sensorConfig.stateTopic == "" {
			continue
		}
		b.publish(mqttClient, sensorConfig.stateTopic, fmt.Sprintf("%v", value))
	}

	b.publish(mqttClient, fmt.Sprintf("%v/fan/state", b.prefix), "ON")
	if mode, ok := status.State.Mode(); ok {
		preset := mode.String()
		b.mu.Lock()
		changed := b.lastMode != preset
		b.lastMode = preset
		b.mu.Unlock()
		if changed {
			b.publish(mqttClient, fmt.Sprintf("%v/fan/preset/state", b.prefix), preset)
		}
	}

	boostState := "OFF"
	if status.State.BoostActive {
		boostState = "ON"
	}
	b.publish(mqttClient, fmt.Sprintf("%v/boost/state", b.prefix), boostState)

	return nil
}

func (b *Bridge) publish(client mqtt.Client, topic, payload string) {
	if t := client.Publish(topic, 0, true, payload); t.Wait() && t.Error() != nil {
		logging.Warn("MQTT publish failed", zap.Error(t.Error()), zap.String("topic", topic))
	}
}
