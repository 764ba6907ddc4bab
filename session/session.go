package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/visionair/internal/logging"
	"github.com/muurk/visionair/protocol"
)

// Exchange deadlines. A direct BLE link answers well under a second;
// the proxy deadline absorbs relay hops and the device's occasional
// slow burst.
const (
	DefaultTimeout = 5 * time.Second
	ProxyTimeout   = 15 * time.Second
)

// DefaultFreshReadAttempts is how many status polls a fresh remote read
// makes while waiting for the device to switch its selector.
const DefaultFreshReadAttempts = 3

// Config tunes a session.
type Config struct {
	// Timeout is the per-exchange response deadline. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// FreshReadAttempts caps the selector-switch polls of a fresh remote
	// read. Zero means DefaultFreshReadAttempts.
	FreshReadAttempts int
}

// Session is a stateful driver for one VisionAir device. All commands
// are serialized through the correlator; concurrent callers get
// ErrAlreadyAwaiting instead of interleaved wire traffic.
type Session struct {
	tr   Transport
	corr *Correlator
	cfg  Config

	mu           sync.Mutex
	lastState    *protocol.DeviceState
	lastSchedule *protocol.ScheduleData
	lastProbes   *protocol.ProbeSensors
	schedEnabled bool
	schedKnown   bool

	now func() time.Time
}

// New creates a session over tr. The transport must feed notification
// bytes to HandleNotify. tr may be nil when the transport is dialed
// with the session's own HandleNotify as its callback; attach it with
// Replace before the first command.
func New(tr Transport, cfg Config) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FreshReadAttempts <= 0 {
		cfg.FreshReadAttempts = DefaultFreshReadAttempts
	}
	s := &Session{tr: tr, cfg: cfg, now: time.Now}
	s.corr = NewCorrelator(s.merge)
	return s
}

// HandleNotify ingests one raw notification from the transport.
func (s *Session) HandleNotify(data []byte) {
	s.corr.HandleNotify(data)
}

// Reset drops all cached device state and cancels any in-flight
// exchange. Call after a transport reconnect: the device may have been
// operated from the wall panel or phone app in the meantime.
func (s *Session) Reset() {
	s.corr.Cancel()
	s.mu.Lock()
	s.lastState = nil
	s.lastSchedule = nil
	s.lastProbes = nil
	s.schedKnown = false
	s.mu.Unlock()
}

// Replace swaps in a new transport after a reconnect. The old one is
// assumed dead; call Reset first so no exchange is left waiting on it.
func (s *Session) Replace(tr Transport) {
	s.mu.Lock()
	s.tr = tr
	s.mu.Unlock()
}

// Close closes the underlying transport.
func (s *Session) Close() error {
	s.corr.Cancel()
	if tr := s.transport(); tr != nil {
		return tr.Close()
	}
	return nil
}

func (s *Session) transport() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr
}

// exchange sends cmd and waits for one packet of each expected type.
func (s *Session) exchange(ctx context.Context, cmd *protocol.Frame, expect ...byte) (map[byte]*protocol.Frame, error) {
	ex, err := s.corr.Expect(expect...)
	if err != nil {
		return nil, err
	}

	logging.LogPacket("tx", protocol.PacketTypeName(cmd.Type), cmd.Raw)
	if err := s.transport().Write(ctx, cmd.Raw); err != nil {
		ex.Abort()
		return nil, fmt.Errorf("write %s: %w", protocol.PacketTypeName(cmd.Type), err)
	}
	return ex.Wait(ctx, s.cfg.Timeout)
}

// merge folds a response or unsolicited frame into the cached state.
// The device streams periodic state packets on its own; passive
// consumers read them through Status without polling.
func (s *Session) merge(f *protocol.Frame) {
	switch f.Type {
	case protocol.TypeDeviceState:
		if st, err := protocol.DecodeDeviceState(f); err == nil {
			s.mu.Lock()
			s.lastState = st
			s.mu.Unlock()
		}
	case protocol.TypeSchedule:
		if sc, err := protocol.DecodeScheduleData(f); err == nil {
			s.mu.Lock()
			s.lastSchedule = sc
			s.mu.Unlock()
		}
	case protocol.TypeProbeSensors:
		if pr, err := protocol.DecodeProbeSensors(f); err == nil {
			s.mu.Lock()
			s.lastProbes = pr
			s.mu.Unlock()
		}
	default:
		logging.Debug("Ignoring unsolicited packet",
			zap.String("type", protocol.PacketTypeName(f.Type)),
		)
	}
}

// CompositeStatus is the merged view of one full data burst plus the
// airflow rates derived from the configured volume.
type CompositeStatus struct {
	State    *protocol.DeviceState
	Schedule *protocol.ScheduleData
	Probes   *protocol.ProbeSensors
	Airflow  AirflowRates
}

// PollFullStatus requests the full data burst and returns the merged
// result. All four burst packets must arrive within the deadline;
// partial bursts fail with ErrResponseTimeout.
func (s *Session) PollFullStatus(ctx context.Context) (*CompositeStatus, error) {
	got, err := s.exchange(ctx, protocol.NewFullDataRequest(), protocol.FullDataBurst...)
	if err != nil {
		return nil, err
	}

	st, err := protocol.DecodeDeviceState(got[protocol.TypeDeviceState])
	if err != nil {
		return nil, err
	}
	sc, err := protocol.DecodeScheduleData(got[protocol.TypeSchedule])
	if err != nil {
		return nil, err
	}
	pr, err := protocol.DecodeProbeSensors(got[protocol.TypeProbeSensors])
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastState, s.lastSchedule, s.lastProbes = st, sc, pr
	s.mu.Unlock()

	return &CompositeStatus{
		State:    st,
		Schedule: sc,
		Probes:   pr,
		Airflow:  RatesFor(st.ConfiguredVolume),
	}, nil
}

// PollStatus requests a single device state packet.
func (s *Session) PollStatus(ctx context.Context) (*protocol.DeviceState, error) {
	got, err := s.exchange(ctx, protocol.NewStatusRequest(), protocol.TypeDeviceState)
	if err != nil {
		return nil, err
	}
	st, err := protocol.DecodeDeviceState(got[protocol.TypeDeviceState])
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastState = st
	s.mu.Unlock()
	return st, nil
}

// PollSensors requests live wired probe readings.
func (s *Session) PollSensors(ctx context.Context) (*protocol.ProbeSensors, error) {
	got, err := s.exchange(ctx, protocol.NewSensorRequest(), protocol.TypeProbeSensors)
	if err != nil {
		return nil, err
	}
	pr, err := protocol.DecodeProbeSensors(got[protocol.TypeProbeSensors])
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastProbes = pr
	s.mu.Unlock()
	return pr, nil
}

// Status returns the most recent composite view assembled from polls
// and unsolicited device chatter. ok is false until a device state has
// been seen at least once.
func (s *Session) Status() (CompositeStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastState == nil {
		return CompositeStatus{}, false
	}
	return CompositeStatus{
		State:    s.lastState,
		Schedule: s.lastSchedule,
		Probes:   s.lastProbes,
		Airflow:  RatesFor(s.lastState.ConfiguredVolume),
	}, true
}

// Reading is one fresh sensor measurement.
type Reading struct {
	Sensor protocol.Sensor
	Temp   int

	// Humidity is meaningful only when HumidityOK is set; the inlet
	// probe measures temperature only.
	Humidity   int
	HumidityOK bool
}

// ReadFreshSensor returns a current reading from the given sensor.
//
// Wired probes report live values in every PROBE_SENSORS packet, so a
// single poll suffices. The remote unit only reports through the shared
// selector: the session selects it, then polls the device state until
// the selector confirms the switch, up to the configured attempt
// budget. A device that keeps answering with the previous sensor fails
// with ErrStaleSensorData rather than returning the stale value.
func (s *Session) ReadFreshSensor(ctx context.Context, sensor protocol.Sensor) (Reading, error) {
	switch sensor {
	case protocol.SensorProbe1:
		pr, err := s.PollSensors(ctx)
		if err != nil {
			return Reading{}, err
		}
		return Reading{
			Sensor:     sensor,
			Temp:       pr.Probe1Temp,
			Humidity:   pr.Probe1Humidity,
			HumidityOK: true,
		}, nil

	case protocol.SensorProbe2:
		pr, err := s.PollSensors(ctx)
		if err != nil {
			return Reading{}, err
		}
		return Reading{Sensor: sensor, Temp: pr.Probe2Temp}, nil

	case protocol.SensorRemote:
		return s.readRemote(ctx)

	default:
		return Reading{}, &protocol.InvalidArgumentError{Field: "sensor", Reason: sensor.String()}
	}
}

func (s *Session) readRemote(ctx context.Context) (Reading, error) {
	cmd, err := protocol.NewSensorSelect(protocol.SensorRemote)
	if err != nil {
		return Reading{}, err
	}
	got, err := s.exchange(ctx, cmd, protocol.TypeDeviceState)
	if err != nil {
		return Reading{}, err
	}
	st, err := protocol.DecodeDeviceState(got[protocol.TypeDeviceState])
	if err != nil {
		return Reading{}, err
	}

	// The select confirmation often still reports the old sensor; the
	// device switches a beat later.
	for attempt := 0; ; attempt++ {
		if st.Selector == protocol.SensorRemote {
			s.mu.Lock()
			s.lastState = st
			s.mu.Unlock()
			return Reading{
				Sensor:     protocol.SensorRemote,
				Temp:       st.ActiveTemp,
				Humidity:   st.RemoteHumidity,
				HumidityOK: true,
			}, nil
		}
		if attempt == s.cfg.FreshReadAttempts-1 {
			logging.Warn("Remote sensor read stayed stale",
				zap.Int("attempts", s.cfg.FreshReadAttempts),
				zap.String("selector", st.Selector.String()),
			)
			return Reading{}, ErrStaleSensorData
		}
		if st, err = s.PollStatus(ctx); err != nil {
			return Reading{}, err
		}
	}
}

// SetMode switches the airflow mode. The device answers with an updated
// state packet; ErrCommandUnconfirmed means it acknowledged but the
// airflow indicator does not show the requested mode.
func (s *Session) SetMode(ctx context.Context, m protocol.Mode) error {
	cmd, err := protocol.NewModeSelect(m)
	if err != nil {
		return err
	}
	st, err := s.confirmByState(ctx, cmd)
	if err != nil {
		return err
	}
	if got, ok := st.Mode(); !ok || got != m {
		return fmt.Errorf("mode %s: %w", m, ErrCommandUnconfirmed)
	}
	return nil
}

// SetHolidayDays puts the device in holiday ventilation for days days;
// 0 cancels holiday mode.
func (s *Session) SetHolidayDays(ctx context.Context, days int) error {
	cmd, err := protocol.NewHolidayCommand(days)
	if err != nil {
		return err
	}
	st, err := s.confirmByState(ctx, cmd)
	if err != nil {
		return err
	}
	if st.HolidayDays != days {
		return fmt.Errorf("holiday %d days: %w", days, ErrCommandUnconfirmed)
	}
	return nil
}

// confirmByState runs a command whose confirmation is an updated device
// state packet. A missing confirmation is ErrCommandUnconfirmed, not a
// plain timeout: the command may have taken effect anyway, and none of
// the state-confirmed commands are known to be safely repeatable, so
// the caller has to re-poll rather than retry.
func (s *Session) confirmByState(ctx context.Context, cmd *protocol.Frame) (*protocol.DeviceState, error) {
	got, err := s.exchange(ctx, cmd, protocol.TypeDeviceState)
	if err != nil {
		if errors.Is(err, ErrResponseTimeout) {
			return nil, fmt.Errorf("%w: %w", ErrCommandUnconfirmed, err)
		}
		return nil, err
	}
	st, err := protocol.DecodeDeviceState(got[protocol.TypeDeviceState])
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastState = st
	s.mu.Unlock()
	return st, nil
}

// confirmByAck runs a command whose confirmation is a settings ack. The
// same timeout mapping as confirmByState applies.
func (s *Session) confirmByAck(ctx context.Context, cmd *protocol.Frame) error {
	_, err := s.exchange(ctx, cmd, protocol.TypeSettingsAck)
	if errors.Is(err, ErrResponseTimeout) {
		return fmt.Errorf("%w: %w", ErrCommandUnconfirmed, err)
	}
	return err
}

// SetBoost switches boost ventilation on or off.
func (s *Session) SetBoost(ctx context.Context, on bool) error {
	return s.confirmByAck(ctx, protocol.NewBoostCommand(on))
}

// SetPreheat switches the preheater on or off.
func (s *Session) SetPreheat(ctx context.Context, on bool) error {
	return s.confirmByAck(ctx, protocol.NewPreheatCommand(on))
}

// SetSummerLimit switches the summer limit on or off. The settings
// packet carries the preheat temperature and airflow byte pair next to
// the flag, so the session fills them in from the latest device state,
// polling once when it has none; an uncaptured airflow indicator falls
// back to medium, as the phone app does.
func (s *Session) SetSummerLimit(ctx context.Context, on bool) error {
	s.mu.Lock()
	st := s.lastState
	s.mu.Unlock()
	if st == nil {
		var err error
		if st, err = s.PollStatus(ctx); err != nil {
			return err
		}
	}

	mode := protocol.ModeMedium
	if m, ok := st.Mode(); ok {
		mode = m
	}
	cmd, err := protocol.NewSettingsWrite(on, st.PreheatTemp, mode)
	if err != nil {
		return err
	}
	return s.confirmByAck(ctx, cmd)
}

// SetPreheatTemp sets the preheat target temperature (12-18 °C).
func (s *Session) SetPreheatTemp(ctx context.Context, temp int) error {
	cmd, err := protocol.NewPreheatTempCommand(temp)
	if err != nil {
		return err
	}
	return s.confirmByAck(ctx, cmd)
}

// SetScheduleEnabled switches the time slot schedule on or off without
// touching its contents. The device offers no way to read this flag
// back, so the session remembers the last value it commanded; see
// ScheduleEnabled.
func (s *Session) SetScheduleEnabled(ctx context.Context, on bool) error {
	if err := s.confirmByAck(ctx, protocol.NewScheduleToggle(on)); err != nil {
		return err
	}
	s.mu.Lock()
	s.schedEnabled, s.schedKnown = on, true
	s.mu.Unlock()
	return nil
}

// ScheduleEnabled reports the last commanded schedule toggle. known is
// false before the first successful SetScheduleEnabled of this session,
// and again after Reset; the value is then unknowable until commanded.
func (s *Session) ScheduleEnabled() (enabled, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedEnabled, s.schedKnown
}

// ReadSchedule fetches the 24-slot schedule configuration.
func (s *Session) ReadSchedule(ctx context.Context) (*protocol.ScheduleConfig, error) {
	got, err := s.exchange(ctx, protocol.NewScheduleConfigRequest(), protocol.TypeScheduleConfig)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeScheduleConfig(got[protocol.TypeScheduleConfig])
}

// WriteSchedule programs all 24 hourly slots at once.
func (s *Session) WriteSchedule(ctx context.Context, slots []protocol.ScheduleSlot) error {
	cmd, err := protocol.NewScheduleWrite(slots)
	if err != nil {
		return err
	}
	return s.confirmByAck(ctx, cmd)
}

// SyncClock sets the device clock to the current local time.
func (s *Session) SyncClock(ctx context.Context) error {
	return s.confirmByAck(ctx, protocol.NewClockSync(s.now()))
}

// QueryDiagnostics sends the undocumented 0x2c query and returns the
// raw response packet. Its payload has been constant in every capture;
// exposed for protocol exploration only.
func (s *Session) QueryDiagnostics(ctx context.Context) ([]byte, error) {
	got, err := s.exchange(ctx, protocol.NewDiagnosticQuery(), protocol.TypeUnknown50)
	if err != nil {
		return nil, err
	}
	return got[protocol.TypeUnknown50].Raw, nil
}

// QuerySchedule sends the experimental 0x26 schedule query and returns
// the raw 0x47 response packet, which has no confirmed field layout.
// ReadSchedule is the supported path to the slot data.
func (s *Session) QuerySchedule(ctx context.Context) ([]byte, error) {
	got, err := s.exchange(ctx, protocol.NewScheduleQuery(), protocol.TypeScheduleQuery)
	if err != nil {
		return nil, err
	}
	return got[protocol.TypeScheduleQuery].Raw, nil
}
