package session

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/visionair/protocol"
)

type fakeTransport struct {
	mu      sync.Mutex
	writes  [][]byte
	respond func(n int, cmd []byte) [][]byte
	notify  func([]byte)
	closed  bool
}

func (f *fakeTransport) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	n := len(f.writes)
	cmd := append([]byte(nil), data...)
	f.writes = append(f.writes, cmd)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		for _, pkt := range respond(n, cmd) {
			f.notify(pkt)
		}
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func newTestSession(respond func(n int, cmd []byte) [][]byte) (*Session, *fakeTransport) {
	tr := &fakeTransport{respond: respond}
	s := New(tr, Config{Timeout: 50 * time.Millisecond})
	tr.notify = s.HandleNotify
	return s, tr
}

// statePacket builds a full-size DEVICE_STATE packet; set pokes fields
// at their wire offsets before the checksum is sealed.
func statePacket(set func(raw []byte)) []byte {
	raw := make([]byte, protocol.StatusPacketSize)
	raw[0], raw[1], raw[2] = protocol.MagicByte0, protocol.MagicByte1, protocol.TypeDeviceState
	if set != nil {
		set(raw)
	}
	raw[len(raw)-1] = protocol.Checksum(raw[2 : len(raw)-1])
	return raw
}

func typedPacket(typ byte, set func(raw []byte)) []byte {
	raw := make([]byte, protocol.StatusPacketSize)
	raw[0], raw[1], raw[2] = protocol.MagicByte0, protocol.MagicByte1, typ
	if set != nil {
		set(raw)
	}
	raw[len(raw)-1] = protocol.Checksum(raw[2 : len(raw)-1])
	return raw
}

func ackPacket() []byte {
	return typedPacket(protocol.TypeSettingsAck, nil)
}

func TestPollFullStatus(t *testing.T) {
	s, _ := newTestSession(func(n int, cmd []byte) [][]byte {
		// Burst delivered in reverse capture order on purpose.
		return [][]byte{
			typedPacket(protocol.TypeProbeSensors, func(raw []byte) {
				raw[6] = 19  // probe 1 temperature
				raw[8] = 52  // probe 1 humidity
				raw[11] = 11 // probe 2 temperature
				raw[13] = 87 // filter percent
			}),
			typedPacket(protocol.TypeSchedule, func(raw []byte) {
				raw[11] = 21 // remote temperature
				raw[13] = 47 // remote humidity
			}),
			statePacket(func(raw []byte) {
				raw[22], raw[23] = 0x6b, 0x01 // 363 m³
				raw[47] = protocol.IndicatorLow
			}),
			ackPacket(),
		}
	})

	st, err := s.PollFullStatus(context.Background())
	if err != nil {
		t.Fatalf("PollFullStatus() error = %v", err)
	}
	if st.State.ConfiguredVolume != 363 {
		t.Errorf("ConfiguredVolume = %d, want 363", st.State.ConfiguredVolume)
	}
	if want := (AirflowRates{Low: 131, Medium: 163, High: 200}); st.Airflow != want {
		t.Errorf("Airflow = %+v, want %+v", st.Airflow, want)
	}
	if !st.Schedule.RemoteTempOK || st.Schedule.RemoteTemp != 21 {
		t.Errorf("remote temp = %d/%v, want 21/true", st.Schedule.RemoteTemp, st.Schedule.RemoteTempOK)
	}
	if st.Probes.FilterPercent != 87 {
		t.Errorf("FilterPercent = %d, want 87", st.Probes.FilterPercent)
	}

	cached, ok := s.Status()
	if !ok || cached.State.ConfiguredVolume != 363 {
		t.Error("Status() does not reflect the poll")
	}
}

func TestPollFullStatusPartialBurstTimesOut(t *testing.T) {
	s, _ := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{
			ackPacket(),
			statePacket(nil),
			typedPacket(protocol.TypeSchedule, nil),
			// PROBE_SENSORS never arrives.
		}
	})

	if _, err := s.PollFullStatus(context.Background()); !errors.Is(err, ErrResponseTimeout) {
		t.Fatalf("PollFullStatus() error = %v, want ErrResponseTimeout", err)
	}
}

func TestPollStatusTimeout(t *testing.T) {
	s, _ := newTestSession(nil)
	if _, err := s.PollStatus(context.Background()); !errors.Is(err, ErrResponseTimeout) {
		t.Fatalf("PollStatus() error = %v, want ErrResponseTimeout", err)
	}
	// Slot is free again after the timeout.
	if _, err := s.PollStatus(context.Background()); !errors.Is(err, ErrResponseTimeout) {
		t.Fatalf("second PollStatus() error = %v, want ErrResponseTimeout", err)
	}
}

func TestReadFreshSensorWired(t *testing.T) {
	s, _ := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{typedPacket(protocol.TypeProbeSensors, func(raw []byte) {
			raw[6] = 19
			raw[8] = 52
			raw[11] = 11
		})}
	})

	r, err := s.ReadFreshSensor(context.Background(), protocol.SensorProbe1)
	if err != nil {
		t.Fatalf("ReadFreshSensor(probe1) error = %v", err)
	}
	if r.Temp != 19 || !r.HumidityOK || r.Humidity != 52 {
		t.Errorf("probe1 reading = %+v, want 19 °C / 52 %%", r)
	}

	r, err = s.ReadFreshSensor(context.Background(), protocol.SensorProbe2)
	if err != nil {
		t.Fatalf("ReadFreshSensor(probe2) error = %v", err)
	}
	if r.Temp != 11 || r.HumidityOK {
		t.Errorf("probe2 reading = %+v, want 11 °C and no humidity", r)
	}
}

func TestReadFreshSensorRemote(t *testing.T) {
	stale := statePacket(func(raw []byte) {
		raw[34] = byte(protocol.SensorProbe1)
		raw[32] = 19
	})
	fresh := statePacket(func(raw []byte) {
		raw[34] = byte(protocol.SensorRemote)
		raw[32] = 23
		raw[4] = 94 // remote humidity, wire value is 2x percent
	})

	s, tr := newTestSession(func(n int, cmd []byte) [][]byte {
		switch n {
		case 0: // sensor select: confirmation still shows the old sensor
			return [][]byte{stale}
		case 1: // first status poll still stale
			return [][]byte{stale}
		default: // device switched
			return [][]byte{fresh}
		}
	})

	r, err := s.ReadFreshSensor(context.Background(), protocol.SensorRemote)
	if err != nil {
		t.Fatalf("ReadFreshSensor(remote) error = %v", err)
	}
	if r.Temp != 23 {
		t.Errorf("Temp = %d, want 23 (stale 19 must not leak)", r.Temp)
	}
	if !r.HumidityOK || r.Humidity != 47 {
		t.Errorf("Humidity = %d/%v, want 47/true", r.Humidity, r.HumidityOK)
	}
	if tr.writeCount() != 3 {
		t.Errorf("writes = %d, want 3 (select + 2 polls)", tr.writeCount())
	}
}

func TestReadFreshSensorRemoteStale(t *testing.T) {
	stale := statePacket(func(raw []byte) {
		raw[34] = byte(protocol.SensorProbe1)
	})
	s, tr := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{stale}
	})

	_, err := s.ReadFreshSensor(context.Background(), protocol.SensorRemote)
	if !errors.Is(err, ErrStaleSensorData) {
		t.Fatalf("ReadFreshSensor(remote) error = %v, want ErrStaleSensorData", err)
	}
	if tr.writeCount() != 3 {
		t.Errorf("writes = %d, want 3 (select + 2 polls)", tr.writeCount())
	}
}

func TestSetMode(t *testing.T) {
	s, _ := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{statePacket(func(raw []byte) {
			raw[47] = protocol.IndicatorMedium
		})}
	})

	if err := s.SetMode(context.Background(), protocol.ModeMedium); err != nil {
		t.Fatalf("SetMode(medium) error = %v", err)
	}

	// Same confirmation packet does not confirm a different mode.
	if err := s.SetMode(context.Background(), protocol.ModeHigh); !errors.Is(err, ErrCommandUnconfirmed) {
		t.Fatalf("SetMode(high) error = %v, want ErrCommandUnconfirmed", err)
	}

	if err := s.SetMode(context.Background(), protocol.Mode(9)); err == nil {
		t.Fatal("SetMode(9) expected validation error")
	}
}

func TestSetHolidayDays(t *testing.T) {
	s, _ := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{statePacket(func(raw []byte) {
			raw[43] = 7
		})}
	})

	if err := s.SetHolidayDays(context.Background(), 7); err != nil {
		t.Fatalf("SetHolidayDays(7) error = %v", err)
	}
	if err := s.SetHolidayDays(context.Background(), 14); !errors.Is(err, ErrCommandUnconfirmed) {
		t.Fatalf("SetHolidayDays(14) error = %v, want ErrCommandUnconfirmed", err)
	}
}

func TestAckConfirmedCommands(t *testing.T) {
	s, tr := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{ackPacket()}
	})
	ctx := context.Background()

	if err := s.SetBoost(ctx, true); err != nil {
		t.Fatalf("SetBoost() error = %v", err)
	}
	if err := s.SetPreheat(ctx, false); err != nil {
		t.Fatalf("SetPreheat() error = %v", err)
	}
	if err := s.SetPreheatTemp(ctx, 16); err != nil {
		t.Fatalf("SetPreheatTemp() error = %v", err)
	}
	if err := s.SetPreheatTemp(ctx, 30); err == nil {
		t.Fatal("SetPreheatTemp(30) expected validation error")
	}

	slots := make([]protocol.ScheduleSlot, protocol.ScheduleSlots)
	for i := range slots {
		slots[i] = protocol.ScheduleSlot{PreheatTemp: 14, ModeByte: protocol.ScheduleModeLow}
	}
	if err := s.WriteSchedule(ctx, slots); err != nil {
		t.Fatalf("WriteSchedule() error = %v", err)
	}
	// Validation failures never touch the wire.
	before := tr.writeCount()
	if err := s.WriteSchedule(ctx, slots[:5]); err == nil {
		t.Fatal("WriteSchedule(5 slots) expected error")
	}
	if tr.writeCount() != before {
		t.Error("invalid schedule write reached the transport")
	}
}

func TestCommandTimeoutUnconfirmed(t *testing.T) {
	s, _ := newTestSession(nil) // device never answers
	ctx := context.Background()

	// Timed-out commands are unconfirmed, not retryable: their effect is
	// unknown until the caller re-polls.
	err := s.SetBoost(ctx, true)
	if !errors.Is(err, ErrCommandUnconfirmed) {
		t.Fatalf("SetBoost() error = %v, want ErrCommandUnconfirmed", err)
	}
	if !errors.Is(err, ErrResponseTimeout) {
		t.Errorf("SetBoost() error = %v, want wrapped ErrResponseTimeout", err)
	}
	if err := s.SetHolidayDays(ctx, 7); !errors.Is(err, ErrCommandUnconfirmed) {
		t.Fatalf("SetHolidayDays() error = %v, want ErrCommandUnconfirmed", err)
	}

	// Queries stay plain timeouts; retrying them is safe.
	if _, err := s.PollStatus(ctx); errors.Is(err, ErrCommandUnconfirmed) {
		t.Fatalf("PollStatus() error = %v, want plain ErrResponseTimeout", err)
	}
}

func TestSetSummerLimit(t *testing.T) {
	s, tr := newTestSession(func(n int, cmd []byte) [][]byte {
		if n == 0 {
			return [][]byte{statePacket(func(raw []byte) {
				raw[47] = protocol.IndicatorHigh
				raw[56] = 14 // preheat target
			})}
		}
		return [][]byte{ackPacket()}
	})
	ctx := context.Background()

	if err := s.SetSummerLimit(ctx, true); err != nil {
		t.Fatalf("SetSummerLimit(true) error = %v", err)
	}
	if tr.writeCount() != 2 {
		t.Fatalf("writes = %d, want 2 (status poll + settings)", tr.writeCount())
	}
	// Preheat temp and airflow pair come from the polled state.
	if got, want := hex.EncodeToString(tr.writes[1]), "a5b61a06061a02020e073039"; got != want {
		t.Errorf("settings packet = %s, want %s", got, want)
	}

	// The cached state is reused; only the settings write goes out.
	if err := s.SetSummerLimit(ctx, false); err != nil {
		t.Fatalf("SetSummerLimit(false) error = %v", err)
	}
	if tr.writeCount() != 3 {
		t.Fatalf("writes = %d, want 3", tr.writeCount())
	}
	if got, want := hex.EncodeToString(tr.writes[2]), "a5b61a06061a02000e07303b"; got != want {
		t.Errorf("settings packet = %s, want %s", got, want)
	}
}

func TestScheduleEnabledTracking(t *testing.T) {
	s, _ := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{ackPacket()}
	})

	if _, known := s.ScheduleEnabled(); known {
		t.Fatal("schedule state known before any command")
	}

	if err := s.SetScheduleEnabled(context.Background(), true); err != nil {
		t.Fatalf("SetScheduleEnabled() error = %v", err)
	}
	enabled, known := s.ScheduleEnabled()
	if !known || !enabled {
		t.Errorf("ScheduleEnabled() = %v/%v, want true/true", enabled, known)
	}

	// Reset forgets: the device may be operated out of band.
	s.Reset()
	if _, known := s.ScheduleEnabled(); known {
		t.Error("schedule state still known after Reset")
	}
	if _, ok := s.Status(); ok {
		t.Error("Status() still ok after Reset")
	}
}

func TestReadSchedule(t *testing.T) {
	s, _ := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{typedPacket(protocol.TypeScheduleConfig, func(raw []byte) {
			raw[3], raw[4], raw[5] = 0x06, 0x31, 0x00
			for i := 0; i < protocol.ScheduleSlots; i++ {
				raw[6+i*2] = 14
				raw[6+i*2+1] = protocol.ScheduleModeLow
			}
			raw[6+6*2+1] = protocol.ScheduleModeMedium
		})}
	})

	cfg, err := s.ReadSchedule(context.Background())
	if err != nil {
		t.Fatalf("ReadSchedule() error = %v", err)
	}
	if m, ok := cfg.Slots[6].Mode(); !ok || m != protocol.ModeMedium {
		t.Errorf("slot 6 mode = %v/%v, want medium/true", m, ok)
	}
	if cfg.Slots[0].PreheatTemp != 14 {
		t.Errorf("slot 0 temp = %d, want 14", cfg.Slots[0].PreheatTemp)
	}
}

func TestSyncClock(t *testing.T) {
	s, tr := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{ackPacket()}
	})
	s.now = func() time.Time {
		return time.Date(2024, 3, 9, 16, 25, 10, 0, time.Local)
	}

	if err := s.SyncClock(context.Background()); err != nil {
		t.Fatalf("SyncClock() error = %v", err)
	}
	if got, want := hex.EncodeToString(tr.writes[0]), "a5b61a06061a020910190a08"; got != want {
		t.Errorf("clock packet = %s, want %s", got, want)
	}
}

func TestQueryDiagnostics(t *testing.T) {
	resp := typedPacket(protocol.TypeUnknown50, nil)
	s, _ := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{resp}
	})

	raw, err := s.QueryDiagnostics(context.Background())
	if err != nil {
		t.Fatalf("QueryDiagnostics() error = %v", err)
	}
	if raw[2] != protocol.TypeUnknown50 {
		t.Errorf("response type = 0x%02x, want 0x50", raw[2])
	}
}

func TestQuerySchedule(t *testing.T) {
	resp := typedPacket(protocol.TypeScheduleQuery, nil)
	s, _ := newTestSession(func(n int, cmd []byte) [][]byte {
		return [][]byte{resp}
	})

	raw, err := s.QuerySchedule(context.Background())
	if err != nil {
		t.Fatalf("QuerySchedule() error = %v", err)
	}
	if raw[2] != protocol.TypeScheduleQuery {
		t.Errorf("response type = 0x%02x, want 0x47", raw[2])
	}
}

func TestSingleFlight(t *testing.T) {
	s, _ := newTestSession(nil) // never answers

	started := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		close(started)
		_, err := s.PollStatus(context.Background())
		result <- err
	}()
	<-started
	// Let the first exchange register before contending.
	for i := 0; i < 100; i++ {
		if _, err := s.PollFullStatus(context.Background()); errors.Is(err, ErrAlreadyAwaiting) {
			break
		} else if err == nil {
			t.Fatal("PollFullStatus() succeeded without responses")
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case err := <-result:
		if !errors.Is(err, ErrResponseTimeout) {
			t.Fatalf("PollStatus() error = %v, want ErrResponseTimeout", err)
		}
	case <-time.After(time.Second):
		t.Fatal("PollStatus() never returned")
	}
}

func TestStatusPassiveMerge(t *testing.T) {
	s, _ := newTestSession(nil)

	if _, ok := s.Status(); ok {
		t.Fatal("Status() ok before any packet")
	}

	// Unsolicited chatter populates the cache without any poll.
	s.HandleNotify(statePacket(func(raw []byte) {
		raw[22], raw[23] = 0x90, 0x01 // 400 m³
	}))

	st, ok := s.Status()
	if !ok {
		t.Fatal("Status() not ok after unsolicited state")
	}
	if st.State.ConfiguredVolume != 400 {
		t.Errorf("ConfiguredVolume = %d, want 400", st.State.ConfiguredVolume)
	}
	if st.Airflow.Medium != 180 {
		t.Errorf("Airflow.Medium = %d, want 180", st.Airflow.Medium)
	}
}

func TestReplaceTransport(t *testing.T) {
	s, old := newTestSession(nil)
	s.Reset()

	replacement := &fakeTransport{respond: func(n int, cmd []byte) [][]byte {
		return [][]byte{statePacket(nil)}
	}}
	replacement.notify = s.HandleNotify
	s.Replace(replacement)

	if _, err := s.PollStatus(context.Background()); err != nil {
		t.Fatalf("PollStatus() after Replace error = %v", err)
	}
	if old.writeCount() != 0 {
		t.Error("old transport still receiving writes")
	}
	if replacement.writeCount() != 1 {
		t.Errorf("replacement writes = %d, want 1", replacement.writeCount())
	}
}

func TestLateTransportAttach(t *testing.T) {
	// The daemon builds the session first so the transport's read pump
	// can deliver into it from its very first notification.
	s := New(nil, Config{Timeout: 50 * time.Millisecond})
	tr := &fakeTransport{respond: func(n int, cmd []byte) [][]byte {
		return [][]byte{statePacket(nil)}
	}}
	tr.notify = s.HandleNotify
	s.Replace(tr)

	if _, err := s.PollStatus(context.Background()); err != nil {
		t.Fatalf("PollStatus() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Closing before any transport is attached is a no-op.
	if err := New(nil, Config{}).Close(); err != nil {
		t.Fatalf("Close() without transport error = %v", err)
	}
}

func TestCloseClosesTransport(t *testing.T) {
	s, tr := newTestSession(nil)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !tr.closed {
		t.Error("transport not closed")
	}
}
