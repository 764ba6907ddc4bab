package protocol

import (
	"encoding/binary"
	"fmt"
)

// DeviceState is the decoded DEVICE_STATE (0x01) record: device
// configuration, settings, and the reading of whichever sensor the
// selector currently points at. A fresh record is produced on every
// decode and superseded wholesale by the next one.
type DeviceState struct {
	// DeviceID is the 3-byte little-endian value at offset 5, constant per
	// device. Not a serial number, just a unique-ish identifier.
	DeviceID uint32

	ConfiguredVolume int // installation volume, m³
	OperatingDays    int
	FilterDays       int

	// Selector is the shared mode/sensor selector byte. The device
	// switches it after acknowledging a select command, so a poll issued
	// immediately after a select may still report the previous sensor.
	Selector Sensor

	// ActiveTemp is the live temperature of the sensor Selector points at.
	ActiveTemp int

	// RemoteHumidity is the remote unit humidity. Legacy scaled field:
	// the wire byte is twice the percentage.
	RemoteHumidity int

	// Probe1Temp and Probe2Temp lag the live values; use a PROBE_SENSORS
	// poll for current wired probe readings.
	Probe1Temp int
	Probe2Temp int

	SummerLimitTemp    int
	SummerLimitEnabled bool
	PreheatEnabled     bool
	PreheatTemp        int
	HolidayDays        int // 0 = holiday mode off
	BoostActive        bool

	// AirflowIndicator is the raw byte 47 value; Mode() interprets it.
	AirflowIndicator byte

	// Diagnostics is the byte 49 bitfield. The bit-to-component mapping is
	// unverified; only the all-healthy value has ever been observed, so
	// consumers must treat anything beyond equality with a known-good
	// baseline as uninterpreted.
	Diagnostics byte

	Raw []byte // complete packet, including all undecoded offsets
}

// Mode interprets the airflow indicator byte. ok is false for indicator
// values that have not been captured.
func (s *DeviceState) Mode() (Mode, bool) {
	m, ok := indicatorModes[s.AirflowIndicator]
	return m, ok
}

// DecodeDeviceState decodes a DEVICE_STATE frame. The packet may be
// longer than MinDeviceStateLen (trailing zero padding is common); a
// shorter packet is a transport defect and fails with
// TruncatedPayloadError rather than being zero-filled.
func DecodeDeviceState(f *Frame) (*DeviceState, error) {
	if f.Type != TypeDeviceState {
		return nil, &WrongTypeError{Want: TypeDeviceState, Got: f.Type}
	}
	if len(f.Raw) < MinDeviceStateLen {
		return nil, &TruncatedPayloadError{Kind: "DeviceState", Length: len(f.Raw), Need: MinDeviceStateLen}
	}

	raw := f.Raw
	var id [4]byte
	copy(id[:], raw[offStateDeviceID:offStateDeviceID+3])

	return &DeviceState{
		DeviceID:           binary.LittleEndian.Uint32(id[:]),
		ConfiguredVolume:   int(binary.LittleEndian.Uint16(raw[offStateConfiguredVolume:])),
		OperatingDays:      int(binary.LittleEndian.Uint16(raw[offStateOperatingDays:])),
		FilterDays:         int(binary.LittleEndian.Uint16(raw[offStateFilterDays:])),
		Selector:           Sensor(raw[offStateSelector]),
		ActiveTemp:         int(raw[offStateActiveTemp]),
		RemoteHumidity:     int(raw[offStateRemoteHumidity]) / 2,
		Probe1Temp:         int(raw[offStateProbe1Temp]),
		Probe2Temp:         int(raw[offStateProbe2Temp]),
		SummerLimitTemp:    int(raw[offStateSummerLimitTemp]),
		SummerLimitEnabled: raw[offStateSummerLimitEnable] != 0,
		PreheatEnabled:     raw[offStatePreheatEnable] != 0,
		PreheatTemp:        int(raw[offStatePreheatTemp]),
		HolidayDays:        int(raw[offStateHolidayDays]),
		BoostActive:        raw[offStateBoostActive] == 0x01,
		AirflowIndicator:   raw[offStateAirflowIndicator],
		Diagnostics:        raw[offStateDiagnostics],
		Raw:                raw,
	}, nil
}

// ProbeSensors is the decoded PROBE_SENSORS (0x03) record: live readings
// from the wired probes. These are always current, regardless of the
// mode/sensor selector.
type ProbeSensors struct {
	Probe1Temp     int // outlet temperature, °C
	Probe1Humidity int // outlet humidity, %
	Probe2Temp     int // inlet temperature, °C
	FilterPercent  int // filter life remaining, %

	Raw []byte
}

// DecodeProbeSensors decodes a PROBE_SENSORS frame.
func DecodeProbeSensors(f *Frame) (*ProbeSensors, error) {
	if f.Type != TypeProbeSensors {
		return nil, &WrongTypeError{Want: TypeProbeSensors, Got: f.Type}
	}
	if len(f.Raw) < minProbeSensorsLen {
		return nil, &TruncatedPayloadError{Kind: "ProbeSensors", Length: len(f.Raw), Need: minProbeSensorsLen}
	}

	return &ProbeSensors{
		Probe1Temp:     int(f.Raw[offProbe1Temp]),
		Probe1Humidity: int(f.Raw[offProbe1Humidity]),
		Probe2Temp:     int(f.Raw[offProbe2Temp]),
		FilterPercent:  int(f.Raw[offFilterPercent]),
		Raw:            f.Raw,
	}, nil
}

// ScheduleData is the decoded SCHEDULE (0x02) record delivered inside
// the full-data burst. Besides slot data the packet carries the remote
// unit's temperature and humidity; 0x00 and 0xff mean "no reading".
type ScheduleData struct {
	RemoteTemp       int
	RemoteTempOK     bool
	RemoteHumidity   int
	RemoteHumidityOK bool

	Raw []byte
}

// DecodeScheduleData decodes a SCHEDULE frame.
func DecodeScheduleData(f *Frame) (*ScheduleData, error) {
	if f.Type != TypeSchedule {
		return nil, &WrongTypeError{Want: TypeSchedule, Got: f.Type}
	}
	if len(f.Raw) < minScheduleDataLen {
		return nil, &TruncatedPayloadError{Kind: "ScheduleData", Length: len(f.Raw), Need: minScheduleDataLen}
	}

	d := &ScheduleData{Raw: f.Raw}
	if t := f.Raw[offScheduleRemoteT]; t != 0x00 && t != 0xff {
		d.RemoteTemp = int(t)
		d.RemoteTempOK = true
	}
	if h := f.Raw[offScheduleRemoteRH]; h != 0x00 && h != 0xff {
		d.RemoteHumidity = int(h)
		d.RemoteHumidityOK = true
	}
	return d, nil
}

// ScheduleSlot is one hourly schedule slot. ModeByte keeps the raw
// protocol byte for round-trip fidelity: a schedule read from the device
// can be written back unchanged even when it contains a mode byte that
// has never been captured.
type ScheduleSlot struct {
	PreheatTemp int
	ModeByte    byte
}

// Mode interprets the slot's mode byte; ok is false for unrecognized
// bytes.
func (s ScheduleSlot) Mode() (Mode, bool) {
	m, ok := scheduleModeLookup[s.ModeByte]
	return m, ok
}

// SlotForMode builds a slot from a Mode value. The HIGH slot byte is
// unverified (never captured); it is still accepted so callers can
// program the full mode range, but writes using it may not behave.
func SlotForMode(preheatTemp int, m Mode) (ScheduleSlot, error) {
	b, ok := scheduleModeBytes[m]
	if !ok {
		return ScheduleSlot{}, &InvalidArgumentError{Field: "mode", Reason: m.String()}
	}
	return ScheduleSlot{PreheatTemp: preheatTemp, ModeByte: b}, nil
}

// ScheduleConfig is the decoded SCHEDULE_CONFIG (0x46) record: exactly
// 24 hourly slots, index = hour.
type ScheduleConfig struct {
	Slots [ScheduleSlots]ScheduleSlot

	Raw []byte
}

// DecodeScheduleConfig decodes a SCHEDULE_CONFIG frame. The packet is
// usually padded to the full 182-byte status size; only the first 55
// bytes are significant.
func DecodeScheduleConfig(f *Frame) (*ScheduleConfig, error) {
	if f.Type != TypeScheduleConfig {
		return nil, &WrongTypeError{Want: TypeScheduleConfig, Got: f.Type}
	}
	if len(f.Raw) < minScheduleCfgLen {
		return nil, &TruncatedPayloadError{Kind: "ScheduleConfig", Length: len(f.Raw), Need: minScheduleCfgLen}
	}
	if f.Raw[3] != scheduleCfgHeader[0] || f.Raw[4] != scheduleCfgHeader[1] || f.Raw[5] != scheduleCfgHeader[2] {
		return nil, fmt.Errorf("%w: schedule config header % x", ErrMalformedFrame, f.Raw[3:6])
	}

	cfg := &ScheduleConfig{Raw: f.Raw}
	for i := 0; i < ScheduleSlots; i++ {
		off := 6 + i*2
		cfg.Slots[i] = ScheduleSlot{
			PreheatTemp: int(f.Raw[off]),
			ModeByte:    f.Raw[off+1],
		}
	}
	return cfg, nil
}
