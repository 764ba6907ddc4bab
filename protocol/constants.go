package protocol

import "fmt"

// Packet framing
const (
	// MagicByte0 and MagicByte1 open every packet in both directions.
	MagicByte0 = 0xa5
	MagicByte1 = 0xb6

	// MinPacketSize is magic(2) + type(1) + checksum(1), the smallest
	// decodable envelope.
	MinPacketSize = 4

	// CommandPacketSize is the fixed total size of REQUEST (0x10) packets.
	CommandPacketSize = 11

	// SettingsPacketSize is the fixed total size of SETTINGS (0x1a) packets.
	SettingsPacketSize = 12

	// ScheduleWritePacketSize is the fixed total size of SCHEDULE_WRITE
	// (0x40) packets: magic + 4-byte header + 24 two-byte slots + checksum.
	ScheduleWritePacketSize = 55

	// StatusPacketSize is the fixed total size of status-class responses
	// (DEVICE_STATE, SCHEDULE, PROBE_SENSORS, SCHEDULE_CONFIG). Devices pad
	// with trailing zeros; decoders accept shorter packets down to each
	// type's own minimum.
	StatusPacketSize = 182
)

// Packet types (byte 2 of every packet).
const (
	// Device → host responses
	TypeDeviceState    = 0x01 // device config + selected-sensor reading (182 bytes)
	TypeSchedule       = 0x02 // time slot data + remote sensor readings
	TypeProbeSensors   = 0x03 // live wired probe readings (182 bytes)
	TypeSettingsAck    = 0x23 // acknowledgment of a settings-class write
	TypeScheduleConfig = 0x46 // 24-slot schedule configuration
	TypeScheduleQuery  = 0x47 // response to ParamScheduleQuery; layout unconfirmed
	TypeUnknown50      = 0x50 // constant-payload response to ParamDiagnosticQuery

	// Host → device commands
	TypeRequest       = 0x10 // general-purpose command envelope
	TypeSettings      = 0x1a // clock sync, and unverified config writes
	TypeScheduleWrite = 0x40 // 24-slot schedule write
)

// REQUEST parameters (byte 5 of 0x10 packets). A single parameter byte
// selects the operation; queries answer with the requested packet type,
// actions answer with an updated DEVICE_STATE or a SETTINGS_ACK.
const (
	ParamDeviceState     = 0x03 // query → DEVICE_STATE
	ParamFullData        = 0x06 // query → SETTINGS_ACK + DEVICE_STATE + SCHEDULE + PROBE_SENSORS
	ParamProbeSensors    = 0x07 // query → PROBE_SENSORS
	ParamSensorSelect    = 0x18 // action: switch mode/sensor selector (0, 1, 2)
	ParamBoost           = 0x19 // action: boost on/off
	ParamHoliday         = 0x1a // action: holiday days (0 = off)
	ParamPreheatTemp     = 0x1c // action: preheat target temperature
	ParamScheduleToggle  = 0x1d // action: time slot schedule on/off
	ParamScheduleQuery   = 0x26 // query → 0x47 (experimental, layout unconfirmed)
	ParamScheduleConfig  = 0x27 // query → SCHEDULE_CONFIG
	ParamDiagnosticQuery = 0x2c // query → 0x50 (constant payload, purpose unknown)
	ParamPreheat         = 0x2f // action: preheat on/off
)

// Mode is an airflow mode as carried on the wire by the mode/sensor
// selector (REQUEST param 0x18 value byte, DEVICE_STATE byte 34).
type Mode byte

const (
	ModeLow    Mode = 0
	ModeMedium Mode = 1
	ModeHigh   Mode = 2
)

// String returns the lowercase mode name used across the public API.
func (m Mode) String() string {
	switch m {
	case ModeLow:
		return "low"
	case ModeMedium:
		return "medium"
	case ModeHigh:
		return "high"
	default:
		return fmt.Sprintf("unknown(%d)", byte(m))
	}
}

// Valid reports whether m is one of the three known selector values.
func (m Mode) Valid() bool { return m <= ModeHigh }

// ParseMode converts a lowercase mode name back to its wire value.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "low":
		return ModeLow, nil
	case "medium":
		return ModeMedium, nil
	case "high":
		return ModeHigh, nil
	}
	return 0, &InvalidArgumentError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", name)}
}

// Sensor identifies a temperature/humidity source. The device shares one
// selector byte between airflow mode and sensor selection; these are the
// same wire values as Mode but named for the sensor-select operation.
type Sensor byte

const (
	SensorProbe2 Sensor = 0 // wired inlet probe
	SensorProbe1 Sensor = 1 // wired outlet probe
	SensorRemote Sensor = 2 // radio-linked remote control unit
)

// String returns a human-readable sensor name.
func (s Sensor) String() string {
	switch s {
	case SensorProbe2:
		return "probe2"
	case SensorProbe1:
		return "probe1"
	case SensorRemote:
		return "remote"
	default:
		return fmt.Sprintf("unknown(%d)", byte(s))
	}
}

// Valid reports whether s is one of the three known selector values.
func (s Sensor) Valid() bool { return s <= SensorRemote }

// DEVICE_STATE (0x01) field offsets, absolute into the full packet.
// Probe temperatures at 35/42 lag the live values; PROBE_SENSORS is the
// reliable source for wired probe readings.
const (
	offStateRemoteHumidity    = 4  // legacy scaled field: raw value is 2x percent
	offStateDeviceID          = 5  // 3 bytes little-endian, constant per device
	offStateConfiguredVolume  = 22 // 2 bytes little-endian, m³
	offStateOperatingDays     = 26 // 2 bytes little-endian
	offStateFilterDays        = 28 // 2 bytes little-endian
	offStateActiveTemp        = 32 // live reading of the selected sensor
	offStateSelector          = 34 // mode/sensor selector: 0, 1, 2
	offStateProbe1Temp        = 35 // stale, see PROBE_SENSORS
	offStateSummerLimitTemp   = 38
	offStateProbe2Temp        = 42 // stale, see PROBE_SENSORS
	offStateHolidayDays       = 43 // 0 = holiday mode off
	offStateBoostActive       = 44
	offStateAirflowIndicator  = 47
	offStateDiagnostics       = 49 // bit mapping unverified; only the healthy value observed
	offStateSummerLimitEnable = 50
	offStatePreheatEnable     = 53
	offStatePreheatTemp       = 56

	// MinDeviceStateLen is the smallest DEVICE_STATE packet that carries
	// every decoded field.
	MinDeviceStateLen = 61
)

// PROBE_SENSORS (0x03) field offsets, absolute into the full packet.
const (
	offProbe1Temp       = 6
	offProbe1Humidity   = 8
	offProbe2Temp       = 11
	offFilterPercent    = 13
	minProbeSensorsLen  = 14
	minScheduleDataLen  = 14
	minScheduleCfgLen   = 55
	offScheduleRemoteT  = 11 // SCHEDULE (0x02): remote temperature, direct °C
	offScheduleRemoteRH = 13 // SCHEDULE (0x02): remote humidity, direct %
)

// Airflow indicator values (DEVICE_STATE byte 47), confirmed by a
// controlled capture session per mode.
const (
	IndicatorLow    = 0x68
	IndicatorMedium = 0xc2
	IndicatorHigh   = 0x26
)

// indicatorModes maps DEVICE_STATE byte 47 to the airflow mode it encodes.
var indicatorModes = map[byte]Mode{
	IndicatorLow:    ModeLow,
	IndicatorMedium: ModeMedium,
	IndicatorHigh:   ModeHigh,
}

// Schedule slot mode bytes (one byte per slot). The HIGH value has never
// been observed in a capture; it is carried for completeness but writes
// using it are not confirmed against a real device.
const (
	ScheduleModeLow    = 0x28
	ScheduleModeMedium = 0x32
	ScheduleModeHigh   = 0x3c // unverified
)

var scheduleModeBytes = map[Mode]byte{
	ModeLow:    ScheduleModeLow,
	ModeMedium: ScheduleModeMedium,
	ModeHigh:   ScheduleModeHigh,
}

var scheduleModeLookup = map[byte]Mode{
	ScheduleModeLow:    ModeLow,
	ScheduleModeMedium: ModeMedium,
	ScheduleModeHigh:   ModeHigh,
}

// SETTINGS (0x1a) bytes 9-10 keyed by mode. These byte pairs are also
// valid as clock minute:second values and their role as airflow
// configuration is unverified; the phone app changes airflow via REQUEST
// param 0x18, not SETTINGS.
var settingsModeBytes = map[Mode][2]byte{
	ModeLow:    {0x19, 0x0a},
	ModeMedium: {0x28, 0x15},
	ModeHigh:   {0x07, 0x30},
}

// scheduleCfgHeader is the fixed header (bytes 3-5) of SCHEDULE_CONFIG
// responses and SCHEDULE_WRITE commands.
var scheduleCfgHeader = [3]byte{0x06, 0x31, 0x00}

// ScheduleSlots is the fixed slot count of a schedule: one per hour.
const ScheduleSlots = 24

// PacketTypeName returns a human-readable name for a packet type byte.
func PacketTypeName(typ byte) string {
	switch typ {
	case TypeDeviceState:
		return "DeviceState"
	case TypeSchedule:
		return "Schedule"
	case TypeProbeSensors:
		return "ProbeSensors"
	case TypeSettingsAck:
		return "SettingsAck"
	case TypeScheduleConfig:
		return "ScheduleConfig"
	case TypeRequest:
		return "Request"
	case TypeSettings:
		return "Settings"
	case TypeScheduleWrite:
		return "ScheduleWrite"
	case TypeScheduleQuery:
		return "ScheduleQuery"
	case TypeUnknown50:
		return "Unknown50"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", typ)
	}
}
