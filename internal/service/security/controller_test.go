package security

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	repo "github.com/oshokin/catpoint/internal/repository/security"
)

var (
	errTestAnalyzer   = errors.New("test analyzer error")
	errTestRepository = errors.New("test repository error")
	errTestListener   = errors.New("test listener error")
)

// countingRepository wraps MemoryRepository and records alarm status writes.
type countingRepository struct {
	*repo.MemoryRepository

	// writes lists every alarm status passed to SetAlarmStatus, in order.
	writes []domain.AlarmStatus
	// sensorsErr is returned from Sensors when set.
	sensorsErr error
	// updateErr is returned from UpdateSensor when set.
	updateErr error
}

func newCountingRepository() *countingRepository {
	return &countingRepository{
		MemoryRepository: repo.NewMemoryRepository(),
	}
}

// SetAlarmStatus records the write and stores the status.
func (r *countingRepository) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	r.writes = append(r.writes, status)

	return r.MemoryRepository.SetAlarmStatus(ctx, status)
}

// Sensors returns sensorsErr if set, otherwise the stored sensors.
func (r *countingRepository) Sensors(ctx context.Context) ([]domain.Sensor, error) {
	if r.sensorsErr != nil {
		return nil, r.sensorsErr
	}

	return r.MemoryRepository.Sensors(ctx)
}

// UpdateSensor returns updateErr if set, otherwise stores the sensor.
func (r *countingRepository) UpdateSensor(ctx context.Context, sensor domain.Sensor) error {
	if r.updateErr != nil {
		return r.updateErr
	}

	return r.MemoryRepository.UpdateSensor(ctx, sensor)
}

// count returns how many times status was written.
func (r *countingRepository) count(status domain.AlarmStatus) int {
	n := 0

	for _, w := range r.writes {
		if w == status {
			n++
		}
	}

	return n
}

// seed sets the repository state without recording writes.
func (r *countingRepository) seed(t *testing.T, arming domain.ArmingStatus, alarm domain.AlarmStatus, sensors ...domain.Sensor) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, r.MemoryRepository.SetArmingStatus(ctx, arming))
	require.NoError(t, r.MemoryRepository.SetAlarmStatus(ctx, alarm))

	for _, s := range sensors {
		require.NoError(t, r.AddSensor(ctx, s))
	}
}

// fakeAnalyzer returns a fixed verdict and records the threshold it was called with.
type fakeAnalyzer struct {
	verdict   bool
	err       error
	threshold float32
	calls     int
}

func (a *fakeAnalyzer) ImageContainsCat(_ context.Context, _ []byte, threshold float32) (bool, error) {
	a.calls++
	a.threshold = threshold

	return a.verdict, a.err
}

// recordingListener records every notification.
type recordingListener struct {
	alarms        []domain.AlarmStatus
	cats          []bool
	sensorChanges int
	alarmErr      error
	panicOnCat    bool
}

func (l *recordingListener) AlarmStatusChanged(_ context.Context, status domain.AlarmStatus) error {
	l.alarms = append(l.alarms, status)

	return l.alarmErr
}

func (l *recordingListener) CatDetected(_ context.Context, detected bool) error {
	if l.panicOnCat {
		panic("boom")
	}

	l.cats = append(l.cats, detected)

	return nil
}

func (l *recordingListener) SensorStatusChanged(context.Context) error {
	l.sensorChanges++

	return nil
}

func testSensors() (door, window, motion domain.Sensor) {
	return domain.NewSensor("Sample door sensor", domain.Door),
		domain.NewSensor("Sample window sensor", domain.Window),
		domain.NewSensor("Sample motion sensor", domain.Motion)
}

func armedStatuses() []domain.ArmingStatus {
	return []domain.ArmingStatus{domain.ArmedHome, domain.ArmedAway}
}

// TestArmedAndSensorActivated_PendingAlarm: armed, no alarm, activation -> pending.
func TestArmedAndSensorActivated_PendingAlarm(t *testing.T) {
	t.Parallel()

	for _, arming := range armedStatuses() {
		t.Run(arming.String(), func(t *testing.T) {
			t.Parallel()

			door, _, _ := testSensors()
			r := newCountingRepository()
			r.seed(t, arming, domain.NoAlarm, door)

			c := NewController(r, new(fakeAnalyzer))
			require.NoError(t, c.ChangeSensorActivationStatus(context.Background(), door, true))

			require.Equal(t, []domain.AlarmStatus{domain.PendingAlarm}, r.writes)

			stored, err := repo.FindSensor(context.Background(), r, door.Key())
			require.NoError(t, err)
			require.True(t, stored.Active)
		})
	}
}

// TestArmedAndSensorActivatedWhilePending_Alarm: armed, pending, activation -> alarm.
func TestArmedAndSensorActivatedWhilePending_Alarm(t *testing.T) {
	t.Parallel()

	for _, arming := range armedStatuses() {
		t.Run(arming.String(), func(t *testing.T) {
			t.Parallel()

			_, window, _ := testSensors()
			r := newCountingRepository()
			r.seed(t, arming, domain.PendingAlarm, window)

			c := NewController(r, new(fakeAnalyzer))
			require.NoError(t, c.ChangeSensorActivationStatus(context.Background(), window, true))

			require.Equal(t, []domain.AlarmStatus{domain.Alarm}, r.writes)
		})
	}
}

// TestSensorActivatedWhileActiveAndPending_Alarm: an already active sensor activated again while pending -> alarm.
func TestSensorActivatedWhileActiveAndPending_Alarm(t *testing.T) {
	t.Parallel()

	door, _, _ := testSensors()
	door.Active = true

	r := newCountingRepository()
	r.seed(t, domain.ArmedAway, domain.PendingAlarm, door)

	c := NewController(r, new(fakeAnalyzer))
	require.NoError(t, c.ChangeSensorActivationStatus(context.Background(), door, true))

	require.Equal(t, 1, r.count(domain.Alarm))
}

// TestPendingAndSensorsDeactivated_NoAlarmPerSensor: each deactivation while pending writes NO_ALARM.
func TestPendingAndSensorsDeactivated_NoAlarmPerSensor(t *testing.T) {
	t.Parallel()

	door, window, motion := testSensors()
	sensors := []domain.Sensor{door, window, motion}

	for i := range sensors {
		sensors[i].Active = true
	}

	r := newCountingRepository()
	r.seed(t, domain.ArmedAway, domain.PendingAlarm, sensors...)

	c := NewController(r, new(fakeAnalyzer))

	for _, s := range sensors {
		// Keep the repository pending so every deactivation sees the same state.
		require.NoError(t, r.MemoryRepository.SetAlarmStatus(context.Background(), domain.PendingAlarm))
		require.NoError(t, c.ChangeSensorActivationStatus(context.Background(), s, false))
	}

	require.Equal(t, 3, r.count(domain.NoAlarm))

	got, err := c.Sensors(context.Background())
	require.NoError(t, err)

	for _, s := range got {
		require.False(t, s.Active)
	}
}

// TestAlarmActive_SensorChangesDoNotAffectAlarm: while ALARM, no alarm status write occurs.
func TestAlarmActive_SensorChangesDoNotAffectAlarm(t *testing.T) {
	t.Parallel()

	for _, active := range []bool{true, false} {
		for _, arming := range domain.ArmingStatuses() {
			door, window, _ := testSensors()
			door.Active = !active

			r := newCountingRepository()
			r.seed(t, arming, domain.Alarm, door, window)

			c := NewController(r, new(fakeAnalyzer))
			require.NoError(t, c.ChangeSensorActivationStatus(context.Background(), door, active))

			require.Empty(t, r.writes)

			stored, err := repo.FindSensor(context.Background(), r, door.Key())
			require.NoError(t, err)
			require.Equal(t, active, stored.Active)
		}
	}
}

// TestDisarmedAndSensorActivated_NoChange: activation while disarmed leaves the alarm alone.
func TestDisarmedAndSensorActivated_NoChange(t *testing.T) {
	t.Parallel()

	for _, alarm := range []domain.AlarmStatus{domain.NoAlarm, domain.PendingAlarm} {
		_, _, motion := testSensors()
		r := newCountingRepository()
		r.seed(t, domain.Disarmed, alarm, motion)

		c := NewController(r, new(fakeAnalyzer))
		require.NoError(t, c.ChangeSensorActivationStatus(context.Background(), motion, true))

		require.Empty(t, r.writes)
	}
}

// TestSensorDeactivatedWhileInactive_NoChange: deactivating an inactive sensor writes nothing.
func TestSensorDeactivatedWhileInactive_NoChange(t *testing.T) {
	t.Parallel()

	for _, alarm := range domain.AlarmStatuses() {
		door, _, _ := testSensors()
		r := newCountingRepository()
		r.seed(t, domain.ArmedHome, alarm, door)

		c := NewController(r, new(fakeAnalyzer))
		require.NoError(t, c.ChangeSensorActivationStatus(context.Background(), door, false))

		require.Empty(t, r.writes)
	}
}

// TestChangeSensor_UnknownSensor verifies that sensors must be registered first.
func TestChangeSensor_UnknownSensor(t *testing.T) {
	t.Parallel()

	door, _, _ := testSensors()
	r := newCountingRepository()
	c := NewController(r, new(fakeAnalyzer))

	err := c.ChangeSensorActivationStatus(context.Background(), door, true)
	require.ErrorIs(t, err, repo.ErrSensorNotFound)
	require.Empty(t, r.writes)
}

// TestChangeSensor_UpdateFailureKeepsAlarm verifies that a failed flag write
// neither moves nor announces the alarm status.
func TestChangeSensor_UpdateFailureKeepsAlarm(t *testing.T) {
	t.Parallel()

	door, _, _ := testSensors()
	r := newCountingRepository()
	r.seed(t, domain.ArmedAway, domain.NoAlarm, door)
	r.updateErr = errTestRepository

	listener := new(recordingListener)
	c := NewController(r, new(fakeAnalyzer))
	c.AddStatusListener(listener)

	err := c.ChangeSensorActivationStatus(context.Background(), door, true)
	require.ErrorIs(t, err, errTestRepository)
	require.Empty(t, r.writes)
	require.Empty(t, listener.alarms)
	require.Zero(t, listener.sensorChanges)

	alarm, err := r.AlarmStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.NoAlarm, alarm)
}

// TestCatDetectedWhileArmedHome_Alarm: a cat while armed at home triggers the alarm.
func TestCatDetectedWhileArmedHome_Alarm(t *testing.T) {
	t.Parallel()

	r := newCountingRepository()
	r.seed(t, domain.ArmedHome, domain.NoAlarm)

	analyzer := &fakeAnalyzer{verdict: true}
	c := NewController(r, analyzer, WithConfidenceThreshold(75))

	detected, err := c.ProcessImage(context.Background(), []byte("image"))
	require.NoError(t, err)
	require.True(t, detected)
	require.True(t, c.CatDetected())

	require.Equal(t, []domain.AlarmStatus{domain.Alarm}, r.writes)
	require.InDelta(t, 75, analyzer.threshold, 0.001)
}

// TestCatDetectedWhileNotArmedHome_NoChange: a cat while away or disarmed changes nothing.
func TestCatDetectedWhileNotArmedHome_NoChange(t *testing.T) {
	t.Parallel()

	for _, arming := range []domain.ArmingStatus{domain.Disarmed, domain.ArmedAway} {
		r := newCountingRepository()
		r.seed(t, arming, domain.NoAlarm)

		c := NewController(r, &fakeAnalyzer{verdict: true})

		_, err := c.ProcessImage(context.Background(), []byte("image"))
		require.NoError(t, err)
		require.Empty(t, r.writes)
	}
}

// TestNoCatAndSensorsInactive_NoAlarm: no cat with every sensor inactive clears the alarm.
func TestNoCatAndSensorsInactive_NoAlarm(t *testing.T) {
	t.Parallel()

	door, window, motion := testSensors()
	r := newCountingRepository()
	r.seed(t, domain.ArmedHome, domain.Alarm, door, window, motion)

	analyzer := &fakeAnalyzer{verdict: false}
	c := NewController(r, analyzer)

	detected, err := c.ProcessImage(context.Background(), []byte("image"))
	require.NoError(t, err)
	require.False(t, detected)

	require.Equal(t, []domain.AlarmStatus{domain.NoAlarm}, r.writes)
	require.InDelta(t, 50, analyzer.threshold, 0.001)
}

// TestNoCatButSensorActive_NoChange: no cat while a sensor is still active keeps the status.
func TestNoCatButSensorActive_NoChange(t *testing.T) {
	t.Parallel()

	door, window, _ := testSensors()
	window.Active = true

	r := newCountingRepository()
	r.seed(t, domain.ArmedAway, domain.PendingAlarm, door, window)

	c := NewController(r, &fakeAnalyzer{verdict: false})

	_, err := c.ProcessImage(context.Background(), []byte("image"))
	require.NoError(t, err)
	require.Empty(t, r.writes)
}

// TestProcessImage_AnalyzerFailure: analyzer errors never count as "no cat".
func TestProcessImage_AnalyzerFailure(t *testing.T) {
	t.Parallel()

	r := newCountingRepository()
	r.seed(t, domain.ArmedHome, domain.Alarm)

	listener := new(recordingListener)
	analyzer := &fakeAnalyzer{verdict: true}
	c := NewController(r, analyzer)
	c.AddStatusListener(listener)

	_, err := c.ProcessImage(context.Background(), []byte("cat"))
	require.NoError(t, err)

	analyzer.err = errTestAnalyzer

	_, err = c.ProcessImage(context.Background(), []byte("broken"))
	require.ErrorIs(t, err, ErrAnalysisFailure)
	require.ErrorIs(t, err, errTestAnalyzer)

	// The previous verdict is kept and only the successful call was announced.
	require.True(t, c.CatDetected())
	require.Equal(t, []bool{true}, listener.cats)
	require.Equal(t, []domain.AlarmStatus{domain.Alarm}, r.writes)
}

// TestProcessImage_RepositoryFailure: repository errors propagate to the caller.
func TestProcessImage_RepositoryFailure(t *testing.T) {
	t.Parallel()

	r := newCountingRepository()
	r.sensorsErr = errTestRepository

	c := NewController(r, &fakeAnalyzer{verdict: false})

	_, err := c.ProcessImage(context.Background(), []byte("image"))
	require.ErrorIs(t, err, errTestRepository)
	require.Empty(t, r.writes)
}

// TestSetArmingStatus_Disarmed_NoAlarm: disarming always clears the alarm.
func TestSetArmingStatus_Disarmed_NoAlarm(t *testing.T) {
	t.Parallel()

	for _, alarm := range domain.AlarmStatuses() {
		r := newCountingRepository()
		r.seed(t, domain.ArmedAway, alarm)

		c := NewController(r, new(fakeAnalyzer))
		require.NoError(t, c.SetArmingStatus(context.Background(), domain.Disarmed))

		require.Equal(t, []domain.AlarmStatus{domain.NoAlarm}, r.writes)

		arming, err := r.ArmingStatus(context.Background())
		require.NoError(t, err)
		require.Equal(t, domain.Disarmed, arming)
	}
}

// TestSetArmingStatus_Armed_ResetsSensors: arming resets every sensor regardless of the alarm status.
func TestSetArmingStatus_Armed_ResetsSensors(t *testing.T) {
	t.Parallel()

	for _, arming := range armedStatuses() {
		for _, alarm := range domain.AlarmStatuses() {
			door, window, motion := testSensors()
			sensors := []domain.Sensor{door, window, motion}

			for i := range sensors {
				sensors[i].Active = true
			}

			r := newCountingRepository()
			r.seed(t, domain.Disarmed, alarm, sensors...)

			c := NewController(r, new(fakeAnalyzer))
			require.NoError(t, c.SetArmingStatus(context.Background(), arming))

			got, err := r.Sensors(context.Background())
			require.NoError(t, err)
			require.Len(t, got, 3)

			for _, s := range got {
				require.False(t, s.Active, s.Key().String())
			}

			require.Empty(t, r.writes)

			stored, err := r.ArmingStatus(context.Background())
			require.NoError(t, err)
			require.Equal(t, arming, stored)
		}
	}
}

// TestSetArmingStatus_Unknown rejects values outside the enumeration.
func TestSetArmingStatus_Unknown(t *testing.T) {
	t.Parallel()

	r := newCountingRepository()
	c := NewController(r, new(fakeAnalyzer))

	require.ErrorIs(t, c.SetArmingStatus(context.Background(), domain.ArmingStatus(9)), domain.ErrUnknownArmingStatus)
	require.Empty(t, r.writes)
}

// TestArmHomeWhileCatVisible_Alarm: disarm, see a cat, arm at home -> alarm.
func TestArmHomeWhileCatVisible_Alarm(t *testing.T) {
	t.Parallel()

	r := newCountingRepository()
	c := NewController(r, &fakeAnalyzer{verdict: true})
	ctx := context.Background()

	require.NoError(t, c.SetArmingStatus(ctx, domain.Disarmed))

	_, err := c.ProcessImage(ctx, []byte("cat"))
	require.NoError(t, err)
	require.Zero(t, r.count(domain.Alarm))

	require.NoError(t, c.SetArmingStatus(ctx, domain.ArmedHome))
	require.Equal(t, 1, r.count(domain.Alarm))

	alarm, err := c.AlarmStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Alarm, alarm)
}

// TestArmAwayWhileCatVisible_NoAlarm: the cat rule only applies at home.
func TestArmAwayWhileCatVisible_NoAlarm(t *testing.T) {
	t.Parallel()

	r := newCountingRepository()
	c := NewController(r, &fakeAnalyzer{verdict: true})
	ctx := context.Background()

	_, err := c.ProcessImage(ctx, []byte("cat"))
	require.NoError(t, err)

	require.NoError(t, c.SetArmingStatus(ctx, domain.ArmedAway))
	require.Zero(t, r.count(domain.Alarm))
}

// TestListeners_ReceiveNotifications covers fan-out, isolation and removal.
func TestListeners_ReceiveNotifications(t *testing.T) {
	t.Parallel()

	door, _, _ := testSensors()
	r := newCountingRepository()
	r.seed(t, domain.ArmedHome, domain.NoAlarm)

	c := NewController(r, &fakeAnalyzer{verdict: true})
	ctx := context.Background()

	failing := &recordingListener{alarmErr: errTestListener, panicOnCat: true}
	healthy := new(recordingListener)

	c.AddStatusListener(failing)
	c.AddStatusListener(healthy)
	c.AddStatusListener(healthy)
	require.Equal(t, 2, c.ListenerCount())

	require.NoError(t, c.AddSensor(ctx, door))
	require.NoError(t, c.ChangeSensorActivationStatus(ctx, door, true))

	_, err := c.ProcessImage(ctx, []byte("cat"))
	require.NoError(t, err)

	require.Equal(t, []domain.AlarmStatus{domain.PendingAlarm, domain.Alarm}, healthy.alarms)
	require.Equal(t, []domain.AlarmStatus{domain.PendingAlarm, domain.Alarm}, failing.alarms)
	require.Equal(t, []bool{true}, healthy.cats)
	require.Empty(t, failing.cats)
	require.Equal(t, 2, healthy.sensorChanges)

	c.RemoveStatusListener(healthy)
	c.RemoveStatusListener(healthy)
	c.RemoveStatusListener(new(recordingListener))
	require.Equal(t, 1, c.ListenerCount())

	require.NoError(t, c.SetArmingStatus(ctx, domain.Disarmed))
	require.Len(t, healthy.alarms, 2)
	require.Len(t, failing.alarms, 3)
}

// TestListenerFuncs verifies the function adapter skips nil callbacks.
func TestListenerFuncs(t *testing.T) {
	t.Parallel()

	var got []domain.AlarmStatus

	l := &ListenerFuncs{
		OnAlarmStatusChanged: func(_ context.Context, status domain.AlarmStatus) error {
			got = append(got, status)

			return nil
		},
	}

	r := newCountingRepository()
	c := NewController(r, new(fakeAnalyzer))
	c.AddStatusListener(l)

	require.NoError(t, c.SetArmingStatus(context.Background(), domain.Disarmed))
	require.NoError(t, l.CatDetected(context.Background(), true))
	require.NoError(t, l.SensorStatusChanged(context.Background()))
	require.Equal(t, []domain.AlarmStatus{domain.NoAlarm}, got)
}

// TestPassThroughs covers sensor management and the snapshot.
func TestPassThroughs(t *testing.T) {
	t.Parallel()

	door, window, motion := testSensors()
	r := newCountingRepository()
	c := NewController(r, new(fakeAnalyzer))
	ctx := context.Background()

	for _, s := range []domain.Sensor{door, window, motion} {
		require.NoError(t, c.AddSensor(ctx, s))
	}

	require.NoError(t, c.RemoveSensor(ctx, window))
	require.ErrorIs(t, c.AddSensor(ctx, domain.NewSensor("", domain.Door)), domain.ErrEmptySensorName)

	sensors, err := c.Sensors(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.Sensor{door, motion}, sensors)

	for _, status := range domain.AlarmStatuses() {
		require.NoError(t, r.MemoryRepository.SetAlarmStatus(ctx, status))

		got, err := c.AlarmStatus(ctx)
		require.NoError(t, err)
		require.Equal(t, status, got)
	}

	require.NoError(t, c.SetArmingStatus(ctx, domain.ArmedAway))

	snapshot, err := c.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ArmedAway, snapshot.ArmingStatus)
	require.Equal(t, domain.Alarm, snapshot.AlarmStatus)
	require.Len(t, snapshot.Sensors, 2)
	require.False(t, snapshot.CatDetected)

	arming, err := c.ArmingStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ArmedAway, arming)
}
