package config

import (
	"fmt"
	"time"
)

// Registry represents the entire user configuration file.
// This stores link settings and metadata for VisionAir devices plus
// application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by decimal device ID
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Link kinds for a device entry.
const (
	LinkDirect = "direct" // local BLE adapter
	LinkProxy  = "proxy"  // WebSocket relay holding the BLE link
)

// Device represents link settings and user metadata for a single
// VisionAir unit, keyed by its decimal device ID in the Registry.
type Device struct {
	Nickname string `yaml:"nickname,omitempty"` // User-friendly name
	Link     string `yaml:"link,omitempty"`     // "direct" or "proxy"
	Address  string `yaml:"address,omitempty"`  // BLE address for direct links
	RelayURL string `yaml:"relay_url,omitempty"`

	// PollInterval overrides the global poll cadence for this device.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Validate checks the device entry for configurations that cannot be
// dialed.
func (d *Device) Validate() error {
	switch d.Link {
	case "", LinkDirect:
		if d.Address == "" {
			return fmt.Errorf("direct link requires a BLE address")
		}
	case LinkProxy:
		if d.RelayURL == "" {
			return fmt.Errorf("proxy link requires relay_url")
		}
	default:
		return fmt.Errorf("unknown link kind %q", d.Link)
	}
	return nil
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	// PollInterval is the default full-status poll cadence.
	PollInterval time.Duration `yaml:"poll_interval"`
	MQTT         *MQTTPrefs    `yaml:"mqtt,omitempty"`
}

// MQTTPrefs configures the Home Assistant bridge's broker connection.
type MQTTPrefs struct {
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// Default preference values.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultBroker       = "tcp://localhost:1883"
	DefaultClientID     = "visionair-bridge"
	DefaultTopicPrefix  = "visionair"
)

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			PollInterval: DefaultPollInterval,
			MQTT: &MQTTPrefs{
				Broker:      DefaultBroker,
				ClientID:    DefaultClientID,
				TopicPrefix: DefaultTopicPrefix,
			},
		},
	}
}

// GetDevice retrieves device metadata by device ID.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(id string) *Device {
	return r.Devices[id]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry with default values.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(id string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[id]; exists {
		return device
	}

	device := &Device{Link: LinkDirect}
	r.Devices[id] = device
	return device
}

// UpdateDeviceLastSeen updates the last seen timestamp for a device.
func (r *Registry) UpdateDeviceLastSeen(id string) {
	device := r.EnsureDevice(id)
	device.LastSeen = time.Now()
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(id, nickname string) {
	device := r.EnsureDevice(id)
	device.Nickname = nickname
}

// SetDeviceLink configures how the device is reached. addr is the BLE
// address for direct links or the relay URL for proxy links.
func (r *Registry) SetDeviceLink(id, link, addr string) error {
	device := r.EnsureDevice(id)
	switch link {
	case LinkDirect:
		device.Link = LinkDirect
		device.Address = addr
	case LinkProxy:
		device.Link = LinkProxy
		device.RelayURL = addr
	default:
		return fmt.Errorf("unknown link kind %q", link)
	}
	return device.Validate()
}

// PollIntervalFor resolves the effective poll cadence for a device,
// falling back to the global preference and then the built-in default.
func (r *Registry) PollIntervalFor(id string) time.Duration {
	if d := r.GetDevice(id); d != nil && d.PollInterval > 0 {
		return d.PollInterval
	}
	if r.Preferences != nil && r.Preferences.PollInterval > 0 {
		return r.Preferences.PollInterval
	}
	return DefaultPollInterval
}
