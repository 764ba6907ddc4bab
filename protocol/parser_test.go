package protocol

import (
	"bytes"
	"errors"
	"testing"
)

// statusPacket builds a full-size DEVICE_STATE frame and lets the test
// poke fields at their wire offsets before the checksum is computed.
func statusPacket(t *testing.T, set func(raw []byte)) *Frame {
	t.Helper()
	raw := make([]byte, StatusPacketSize)
	raw[0] = MagicByte0
	raw[1] = MagicByte1
	raw[2] = TypeDeviceState
	if set != nil {
		set(raw)
	}
	raw[len(raw)-1] = Checksum(raw[2 : len(raw)-1])

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return f
}

func TestDecodeDeviceState(t *testing.T) {
	f := statusPacket(t, func(raw []byte) {
		raw[4] = 80 // remote humidity, wire value is 2x percent
		raw[5], raw[6], raw[7] = 0x39, 0x30, 0x00
		raw[22], raw[23] = 0x6b, 0x01 // 363 m³
		raw[26], raw[27] = 0xa4, 0x01 // 420 days
		raw[28], raw[29] = 0x82, 0x00 // 130 days
		raw[32] = 22
		raw[34] = byte(SensorRemote)
		raw[35] = 21
		raw[38] = 24
		raw[42] = 15
		raw[43] = 5
		raw[44] = 0x01
		raw[47] = IndicatorMedium
		raw[49] = 0x00
		raw[50] = 0x01
		raw[53] = 0x01
		raw[56] = 16
	})

	s, err := DecodeDeviceState(f)
	if err != nil {
		t.Fatalf("DecodeDeviceState() error = %v", err)
	}

	if s.DeviceID != 12345 {
		t.Errorf("DeviceID = %d, want 12345", s.DeviceID)
	}
	if s.RemoteHumidity != 40 {
		t.Errorf("RemoteHumidity = %d, want 40", s.RemoteHumidity)
	}
	if s.ConfiguredVolume != 363 {
		t.Errorf("ConfiguredVolume = %d, want 363", s.ConfiguredVolume)
	}
	if s.OperatingDays != 420 {
		t.Errorf("OperatingDays = %d, want 420", s.OperatingDays)
	}
	if s.FilterDays != 130 {
		t.Errorf("FilterDays = %d, want 130", s.FilterDays)
	}
	if s.ActiveTemp != 22 {
		t.Errorf("ActiveTemp = %d, want 22", s.ActiveTemp)
	}
	if s.Selector != SensorRemote {
		t.Errorf("Selector = %v, want remote", s.Selector)
	}
	if s.Probe1Temp != 21 || s.Probe2Temp != 15 {
		t.Errorf("probe temps = %d/%d, want 21/15", s.Probe1Temp, s.Probe2Temp)
	}
	if s.SummerLimitTemp != 24 || !s.SummerLimitEnabled {
		t.Errorf("summer limit = %d/%v, want 24/true", s.SummerLimitTemp, s.SummerLimitEnabled)
	}
	if s.HolidayDays != 5 {
		t.Errorf("HolidayDays = %d, want 5", s.HolidayDays)
	}
	if !s.BoostActive {
		t.Error("BoostActive = false, want true")
	}
	if !s.PreheatEnabled || s.PreheatTemp != 16 {
		t.Errorf("preheat = %v/%d, want true/16", s.PreheatEnabled, s.PreheatTemp)
	}
	if m, ok := s.Mode(); !ok || m != ModeMedium {
		t.Errorf("Mode() = %v/%v, want medium/true", m, ok)
	}
	if s.Diagnostics != 0x00 {
		t.Errorf("Diagnostics = 0x%02x, want 0x00", s.Diagnostics)
	}
	if !bytes.Equal(s.Raw, f.Raw) {
		t.Error("Raw does not carry the full packet")
	}
}

func TestDecodeDeviceStateUnknownIndicator(t *testing.T) {
	f := statusPacket(t, func(raw []byte) {
		raw[47] = 0x99
	})

	s, err := DecodeDeviceState(f)
	if err != nil {
		t.Fatalf("DecodeDeviceState() error = %v", err)
	}
	if _, ok := s.Mode(); ok {
		t.Error("Mode() ok = true for uncaptured indicator byte")
	}
	if s.AirflowIndicator != 0x99 {
		t.Errorf("AirflowIndicator = 0x%02x, want 0x99", s.AirflowIndicator)
	}
}

func TestDecodeDeviceStateErrors(t *testing.T) {
	short := Encode(TypeDeviceState, make([]byte, MinDeviceStateLen-4-1))
	var tr *TruncatedPayloadError
	if _, err := DecodeDeviceState(short); !errors.As(err, &tr) {
		t.Errorf("short packet error = %v, want TruncatedPayloadError", err)
	}

	wrong := Encode(TypeProbeSensors, make([]byte, StatusPacketSize-4))
	var wt *WrongTypeError
	if _, err := DecodeDeviceState(wrong); !errors.As(err, &wt) {
		t.Errorf("wrong type error = %v, want WrongTypeError", err)
	}
}

func TestDecodeProbeSensors(t *testing.T) {
	payload := make([]byte, StatusPacketSize-4)
	payload[offProbe1Temp-3] = 19
	payload[offProbe1Humidity-3] = 52
	payload[offProbe2Temp-3] = 11
	payload[offFilterPercent-3] = 87
	f := Encode(TypeProbeSensors, payload)

	p, err := DecodeProbeSensors(f)
	if err != nil {
		t.Fatalf("DecodeProbeSensors() error = %v", err)
	}
	if p.Probe1Temp != 19 || p.Probe1Humidity != 52 {
		t.Errorf("probe1 = %d/%d, want 19/52", p.Probe1Temp, p.Probe1Humidity)
	}
	if p.Probe2Temp != 11 {
		t.Errorf("Probe2Temp = %d, want 11", p.Probe2Temp)
	}
	if p.FilterPercent != 87 {
		t.Errorf("FilterPercent = %d, want 87", p.FilterPercent)
	}

	short := Encode(TypeProbeSensors, make([]byte, 9))
	var tr *TruncatedPayloadError
	if _, err := DecodeProbeSensors(short); !errors.As(err, &tr) {
		t.Errorf("short packet error = %v, want TruncatedPayloadError", err)
	}
}

func TestDecodeScheduleData(t *testing.T) {
	tests := []struct {
		name      string
		tempByte  byte
		humByte   byte
		wantTemp  int
		wantTOK   bool
		wantHum   int
		wantHumOK bool
	}{
		{
			name:     "both present",
			tempByte: 21, humByte: 47,
			wantTemp: 21, wantTOK: true, wantHum: 47, wantHumOK: true,
		},
		{
			name:     "zero means absent",
			tempByte: 0x00, humByte: 44,
			wantHum: 44, wantHumOK: true,
		},
		{
			name:     "ff means absent",
			tempByte: 20, humByte: 0xff,
			wantTemp: 20, wantTOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, StatusPacketSize-4)
			payload[offScheduleRemoteT-3] = tt.tempByte
			payload[offScheduleRemoteRH-3] = tt.humByte
			f := Encode(TypeSchedule, payload)

			d, err := DecodeScheduleData(f)
			if err != nil {
				t.Fatalf("DecodeScheduleData() error = %v", err)
			}
			if d.RemoteTemp != tt.wantTemp || d.RemoteTempOK != tt.wantTOK {
				t.Errorf("temp = %d/%v, want %d/%v", d.RemoteTemp, d.RemoteTempOK, tt.wantTemp, tt.wantTOK)
			}
			if d.RemoteHumidity != tt.wantHum || d.RemoteHumidityOK != tt.wantHumOK {
				t.Errorf("humidity = %d/%v, want %d/%v", d.RemoteHumidity, d.RemoteHumidityOK, tt.wantHum, tt.wantHumOK)
			}
		})
	}
}

func TestDecodeScheduleConfig(t *testing.T) {
	payload := make([]byte, StatusPacketSize-4)
	payload[0], payload[1], payload[2] = 0x06, 0x31, 0x00
	for i := 0; i < ScheduleSlots; i++ {
		payload[3+i*2] = byte(12 + i%7)
		payload[3+i*2+1] = ScheduleModeLow
	}
	payload[3+9*2+1] = ScheduleModeMedium
	f := Encode(TypeScheduleConfig, payload)

	cfg, err := DecodeScheduleConfig(f)
	if err != nil {
		t.Fatalf("DecodeScheduleConfig() error = %v", err)
	}
	if cfg.Slots[0].PreheatTemp != 12 {
		t.Errorf("slot 0 temp = %d, want 12", cfg.Slots[0].PreheatTemp)
	}
	if m, ok := cfg.Slots[9].Mode(); !ok || m != ModeMedium {
		t.Errorf("slot 9 mode = %v/%v, want medium/true", m, ok)
	}
	if m, ok := cfg.Slots[0].Mode(); !ok || m != ModeLow {
		t.Errorf("slot 0 mode = %v/%v, want low/true", m, ok)
	}

	// A decoded schedule writes back byte for byte.
	w, err := NewScheduleWrite(cfg.Slots[:])
	if err != nil {
		t.Fatalf("NewScheduleWrite() error = %v", err)
	}
	if !bytes.Equal(w.Raw[3:3+3+ScheduleSlots*2], f.Raw[3:3+3+ScheduleSlots*2]) {
		t.Error("write body differs from decoded config body")
	}
}

func TestDecodeScheduleConfigBadHeader(t *testing.T) {
	payload := make([]byte, StatusPacketSize-4)
	payload[0] = 0x07
	f := Encode(TypeScheduleConfig, payload)

	if _, err := DecodeScheduleConfig(f); err == nil {
		t.Error("expected error for bad header")
	}
}

func TestScheduleSlotUnknownModeByte(t *testing.T) {
	s := ScheduleSlot{PreheatTemp: 14, ModeByte: 0x44}
	if _, ok := s.Mode(); ok {
		t.Error("Mode() ok = true for unknown byte")
	}

	if _, err := SlotForMode(14, Mode(9)); err == nil {
		t.Error("expected error for out of range mode")
	}
	slot, err := SlotForMode(14, ModeHigh)
	if err != nil {
		t.Fatalf("SlotForMode() error = %v", err)
	}
	if slot.ModeByte != ScheduleModeHigh {
		t.Errorf("ModeByte = 0x%02x, want 0x%02x", slot.ModeByte, ScheduleModeHigh)
	}
}

func BenchmarkDecodeDeviceState(b *testing.B) {
	raw := make([]byte, StatusPacketSize)
	raw[0], raw[1], raw[2] = MagicByte0, MagicByte1, TypeDeviceState
	raw[len(raw)-1] = Checksum(raw[2 : len(raw)-1])
	f, err := Decode(raw)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeDeviceState(f); err != nil {
			b.Fatal(err)
		}
	}
}
