package protocol

import (
	"fmt"
	"time"
)

// PreheatTempMin and PreheatTempMax bound the preheat target
// temperature accepted by the device (and by the phone app's slider).
const (
	PreheatTempMin = 12
	PreheatTempMax = 18
)

// HolidayDaysMax is the largest holiday duration the single value byte
// can carry.
const HolidayDaysMax = 255

// FullDataBurst lists the packet types the device emits, in capture
// order, when answering a full data request. The order is not
// guaranteed; callers should match on type, not position.
var FullDataBurst = []byte{TypeSettingsAck, TypeDeviceState, TypeSchedule, TypeProbeSensors}

// buildRequest assembles a REQUEST (0x10) packet. Every request shares
// the 7-byte payload layout {flag, 0x05, param, 0, 0, 0, value}; flag is
// 0x06 for all captured requests except the bare device-state query,
// which uses 0x00.
func buildRequest(param, value byte, extended bool) *Frame {
	flag := byte(0x00)
	if extended {
		flag = 0x06
	}
	return Encode(TypeRequest, []byte{flag, 0x05, param, 0x00, 0x00, 0x00, value})
}

// NewStatusRequest builds the DEVICE_STATE query. The device answers
// with a single DEVICE_STATE packet.
func NewStatusRequest() *Frame {
	return buildRequest(ParamDeviceState, 0x00, false)
}

// NewFullDataRequest builds the full data query. The device answers
// with a four-packet burst: SETTINGS_ACK, DEVICE_STATE, SCHEDULE and
// PROBE_SENSORS (see FullDataBurst).
func NewFullDataRequest() *Frame {
	return buildRequest(ParamFullData, 0x00, true)
}

// NewSensorRequest builds the PROBE_SENSORS query for live wired probe
// readings.
func NewSensorRequest() *Frame {
	return buildRequest(ParamProbeSensors, 0x00, true)
}

// NewScheduleConfigRequest builds the SCHEDULE_CONFIG query. The device
// answers with a 0x46 packet carrying all 24 slots.
func NewScheduleConfigRequest() *Frame {
	return buildRequest(ParamScheduleConfig, 0x00, true)
}

// NewDiagnosticQuery builds the 0x2c query. The device answers with a
// 0x50 packet whose payload has been constant in every capture; its
// meaning is unknown, so the response is exposed raw only.
func NewDiagnosticQuery() *Frame {
	return buildRequest(ParamDiagnosticQuery, 0x00, true)
}

// NewScheduleQuery builds the experimental 0x26 query. The device
// answers with a 0x47 packet whose layout is unconfirmed; use
// NewScheduleConfigRequest to read the slot data.
func NewScheduleQuery() *Frame {
	return buildRequest(ParamScheduleQuery, 0x00, true)
}

// NewModeSelect builds the command that switches the airflow mode. The
// device confirms with an updated DEVICE_STATE, not a SETTINGS_ACK.
func NewModeSelect(m Mode) (*Frame, error) {
	if !m.Valid() {
		return nil, &InvalidArgumentError{Field: "mode", Reason: m.String()}
	}
	return buildRequest(ParamSensorSelect, byte(m), true), nil
}

// NewSensorSelect builds the command that points the shared selector at
// a sensor. Identical on the wire to NewModeSelect; the device uses one
// selector byte for both meanings.
func NewSensorSelect(s Sensor) (*Frame, error) {
	if !s.Valid() {
		return nil, &InvalidArgumentError{Field: "sensor", Reason: s.String()}
	}
	return buildRequest(ParamSensorSelect, byte(s), true), nil
}

// NewBoostCommand builds the boost on/off command.
func NewBoostCommand(on bool) *Frame {
	return buildRequest(ParamBoost, boolByte(on), true)
}

// NewPreheatCommand builds the preheat enable/disable command.
func NewPreheatCommand(on bool) *Frame {
	return buildRequest(ParamPreheat, boolByte(on), true)
}

// NewPreheatTempCommand builds the preheat target temperature command.
// The device accepts 12 through 18 °C; anything else is rejected here
// rather than sent and silently ignored.
func NewPreheatTempCommand(temp int) (*Frame, error) {
	if temp < PreheatTempMin || temp > PreheatTempMax {
		return nil, &InvalidArgumentError{
			Field:  "preheat temperature",
			Reason: fmt.Sprintf("%d outside %d-%d", temp, PreheatTempMin, PreheatTempMax),
		}
	}
	return buildRequest(ParamPreheatTemp, byte(temp), true), nil
}

// NewHolidayCommand builds the holiday mode command. days is the number
// of days the device stays in holiday ventilation; 0 cancels it.
func NewHolidayCommand(days int) (*Frame, error) {
	if days < 0 || days > HolidayDaysMax {
		return nil, &InvalidArgumentError{
			Field:  "holiday days",
			Reason: fmt.Sprintf("%d outside 0-%d", days, HolidayDaysMax),
		}
	}
	return buildRequest(ParamHoliday, byte(days), true), nil
}

// NewScheduleToggle builds the command enabling or disabling the time
// slot schedule. The schedule contents are untouched.
func NewScheduleToggle(on bool) *Frame {
	return buildRequest(ParamScheduleToggle, boolByte(on), true)
}

// NewScheduleWrite builds the SCHEDULE_WRITE (0x40) packet programming
// all 24 hourly slots at once. There is no partial write on the wire;
// callers modify a decoded ScheduleConfig and write it back whole.
func NewScheduleWrite(slots []ScheduleSlot) (*Frame, error) {
	if len(slots) != ScheduleSlots {
		return nil, &InvalidArgumentError{
			Field:  "slots",
			Reason: fmt.Sprintf("%d slots, schedule writes carry exactly %d", len(slots), ScheduleSlots),
		}
	}

	payload := make([]byte, 0, 3+ScheduleSlots*2)
	payload = append(payload, scheduleCfgHeader[0], scheduleCfgHeader[1], scheduleCfgHeader[2])
	for _, s := range slots {
		payload = append(payload, byte(s.PreheatTemp), s.ModeByte)
	}
	return Encode(TypeScheduleWrite, payload), nil
}

// NewSettingsWrite builds a config-mode SETTINGS (0x1a) packet: summer
// limit flag (byte 7, 0x02 on / 0x00 off), preheat target temperature
// (byte 8) and the airflow byte pair captured for the given mode. The
// layout is unverified; the same bytes parse as a clock sync (day,
// hour, minute, second), and the phone app changes airflow through
// NewModeSelect. The device does answer with a SETTINGS_ACK.
func NewSettingsWrite(summerLimit bool, preheatTemp int, m Mode) (*Frame, error) {
	pair, ok := settingsModeBytes[m]
	if !ok {
		return nil, &InvalidArgumentError{Field: "mode", Reason: m.String()}
	}
	if preheatTemp < 0 || preheatTemp > 0xff {
		return nil, &InvalidArgumentError{
			Field:  "preheat temperature",
			Reason: fmt.Sprintf("%d outside 0-255", preheatTemp),
		}
	}
	summer := byte(0x00)
	if summerLimit {
		summer = 0x02
	}
	return Encode(TypeSettings, []byte{0x06, 0x06, 0x1a, 0x02, summer, byte(preheatTemp), pair[0], pair[1]}), nil
}

// NewClockSync builds the SETTINGS packet that sets the device clock to
// t's local day-of-month, hour, minute and second. The device confirms
// with a SETTINGS_ACK.
func NewClockSync(t time.Time) *Frame {
	h, m, s := t.Clock()
	return Encode(TypeSettings, []byte{0x06, 0x06, 0x1a, 0x02, byte(t.Day()), byte(h), byte(m), byte(s)})
}

func boolByte(on bool) byte {
	if on {
		return 0x01
	}
	return 0x00
}
