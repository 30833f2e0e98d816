package session

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrisapx/fif-client-sub000/internal/activity"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogouter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeLogouter) Logout() error {
	f.calls.Add(1)
	return f.err
}

type recorder struct {
	expired atomic.Int32
	renewed atomic.Int32
}

func (r *recorder) onExpired() { r.expired.Add(1) }
func (r *recorder) onRenewed() { r.renewed.Add(1) }

func newFakeManager(t *testing.T, cfg Config) (*Manager, *activity.Bus, *fakeLogouter, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	bus := activity.NewBus()
	store := &fakeLogouter{}
	return NewManager(cfg, bus, store, WithClock(clock)), bus, store, clock
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{}, nil, nil)

	assert.Equal(t, 5*time.Minute, m.Config().SessionDuration)
	assert.Equal(t, 30*time.Second, m.Config().InactivityTimeout)
	assert.False(t, m.Config().ExtendOnActivity)
	assert.Equal(t, StateInactive, m.State())
	assert.Equal(t, "inactive", m.State().String())
}

func TestManager_InitIsIdempotent(t *testing.T) {
	m, bus, _, _ := newFakeManager(t, Config{SessionDuration: time.Minute, InactivityTimeout: 10 * time.Second})

	first := &recorder{}
	second := &recorder{}

	m.Init(first.onExpired, first.onRenewed)
	m.Init(second.onExpired, second.onRenewed)
	m.Init(second.onExpired, second.onRenewed)

	assert.True(t, m.IsSessionActive())
	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, 1, bus.Listeners())

	bus.Emit(activity.Click, "test")

	assert.Equal(t, int32(1), first.renewed.Load())
	assert.Equal(t, int32(0), second.renewed.Load())
}

func TestManager_OnRenewedFiresOncePerEvent(t *testing.T) {
	m, bus, _, clock := newFakeManager(t, Config{SessionDuration: time.Minute, InactivityTimeout: 10 * time.Second})

	rec := &recorder{}
	m.Init(rec.onExpired, rec.onRenewed)

	for _, kind := range activity.DefaultKinds {
		clock.Advance(time.Second)
		consumed := bus.Emit(kind, "test")
		assert.False(t, consumed)
	}

	assert.True(t, m.IsSessionActive())
	assert.Equal(t, int32(len(activity.DefaultKinds)), rec.renewed.Load())
	assert.Equal(t, int32(0), rec.expired.Load())
}

func TestManager_ActivityRestartsInactivityTimer(t *testing.T) {
	m, bus, _, clock := newFakeManager(t, Config{SessionDuration: time.Minute, InactivityTimeout: 10 * time.Second})

	rec := &recorder{}
	m.Init(rec.onExpired, rec.onRenewed)

	clock.Advance(8 * time.Second)
	bus.Emit(activity.KeyPress, "test")

	snapshot := m.Snapshot()
	assert.Equal(t, clock.Now(), snapshot.LastActivity)
	assert.Equal(t, clock.Now().Add(10*time.Second), snapshot.InactivityDeadline)
	assert.Equal(t, snapshot.InactivityDeadline, snapshot.ExpiresAt())

	clock.Advance(8 * time.Second)
	assert.True(t, m.IsSessionActive())
	assert.Equal(t, int32(0), rec.expired.Load())
}

func TestManager_InactivityExpiry(t *testing.T) {
	m, bus, store, clock := newFakeManager(t, Config{SessionDuration: time.Minute, InactivityTimeout: 10 * time.Second})

	rec := &recorder{}
	m.Init(rec.onExpired, rec.onRenewed)

	clock.Advance(10 * time.Second)

	assert.Eventually(t, func() bool {
		return rec.expired.Load() == 1
	}, time.Second, 5*time.Millisecond)

	assert.False(t, m.IsSessionActive())
	assert.Equal(t, int32(1), store.calls.Load())
	assert.Equal(t, 0, bus.Listeners())
	assert.Equal(t, time.Duration(0), m.GetRemainingTime())

	// Nothing is left armed.
	clock.Advance(time.Hour)
	bus.Emit(activity.Click, "test")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), rec.expired.Load())
	assert.Equal(t, int32(0), rec.renewed.Load())
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestManager_SessionDurationIsAbsoluteCeiling(t *testing.T) {
	m, bus, store, clock := newFakeManager(t, Config{
		SessionDuration:   5000 * time.Millisecond,
		InactivityTimeout: 2000 * time.Millisecond,
	})

	rec := &recorder{}
	m.Init(rec.onExpired, rec.onRenewed)

	for i := 0; i < 4; i++ {
		clock.Advance(1000 * time.Millisecond)
		bus.Emit(activity.PointerMove, "test")
	}

	assert.True(t, m.IsSessionActive())
	assert.Equal(t, int32(4), rec.renewed.Load())

	clock.Advance(1000 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return rec.expired.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, m.IsSessionActive())
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestManager_ExtendOnActivity(t *testing.T) {
	m, bus, _, clock := newFakeManager(t, Config{
		SessionDuration:   5000 * time.Millisecond,
		InactivityTimeout: 2000 * time.Millisecond,
		ExtendOnActivity:  true,
	})

	rec := &recorder{}
	m.Init(rec.onExpired, rec.onRenewed)

	for i := 0; i < 10; i++ {
		clock.Advance(1000 * time.Millisecond)
		bus.Emit(activity.Scroll, "test")
	}

	time.Sleep(20 * time.Millisecond)
	assert.True(t, m.IsSessionActive())
	assert.Equal(t, int32(0), rec.expired.Load())
	assert.Equal(t, int32(10), rec.renewed.Load())
}

func TestManager_RenewSession(t *testing.T) {
	m, _, _, clock := newFakeManager(t, Config{
		SessionDuration:   5000 * time.Millisecond,
		InactivityTimeout: 2000 * time.Millisecond,
	})

	// Inactive renew is a no-op.
	m.RenewSession()
	assert.False(t, m.IsSessionActive())

	rec := &recorder{}
	m.Init(rec.onExpired, rec.onRenewed)

	for i := 0; i < 6; i++ {
		clock.Advance(1500 * time.Millisecond)
		m.RenewSession()
	}

	time.Sleep(20 * time.Millisecond)
	assert.True(t, m.IsSessionActive())
	assert.Equal(t, int32(0), rec.renewed.Load())
	assert.Equal(t, int32(0), rec.expired.Load())

	snapshot := m.Snapshot()
	assert.Equal(t, clock.Now().Add(5000*time.Millisecond), snapshot.SessionDeadline)
	assert.Equal(t, clock.Now().Add(2000*time.Millisecond), snapshot.InactivityDeadline)
}

func TestManager_DestroyWhileInactiveIsNoop(t *testing.T) {
	m, _, store, _ := newFakeManager(t, Config{})

	rec := &recorder{}
	m.Destroy()
	m.Destroy()

	assert.False(t, m.IsSessionActive())
	assert.Equal(t, int32(0), rec.expired.Load())
	assert.Equal(t, int32(0), store.calls.Load())
}

func TestManager_Destroy(t *testing.T) {
	m, bus, store, clock := newFakeManager(t, Config{SessionDuration: time.Minute, InactivityTimeout: 10 * time.Second})

	rec := &recorder{}
	m.Init(rec.onExpired, rec.onRenewed)
	assert.Equal(t, time.Minute, m.GetRemainingTime())

	m.Destroy()
	m.Destroy()

	assert.False(t, m.IsSessionActive())
	assert.Equal(t, int32(1), rec.expired.Load())
	assert.Equal(t, int32(1), store.calls.Load())
	assert.Equal(t, 0, bus.Listeners())
	assert.True(t, m.Snapshot().ExpiresAt().IsZero())

	// The cancelled timers never fire.
	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), rec.expired.Load())
}

func TestManager_ReinitAfterDestroy(t *testing.T) {
	m, bus, _, clock := newFakeManager(t, Config{SessionDuration: time.Minute, InactivityTimeout: 10 * time.Second})

	first := &recorder{}
	m.Init(first.onExpired, first.onRenewed)
	m.Destroy()

	second := &recorder{}
	m.Init(second.onExpired, second.onRenewed)
	require.True(t, m.IsSessionActive())
	assert.Equal(t, 1, bus.Listeners())

	bus.Emit(activity.TouchStart, "test")
	assert.Equal(t, int32(0), first.renewed.Load())
	assert.Equal(t, int32(1), second.renewed.Load())

	clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool {
		return second.expired.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), first.expired.Load())
}

func TestManager_LogoutFailureStillExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &fakeLogouter{err: errors.New("disk full")}
	m := NewManager(Config{}, activity.NewBus(), store, WithClock(clock))

	rec := &recorder{}
	m.Init(rec.onExpired, nil)
	m.Destroy()

	assert.False(t, m.IsSessionActive())
	assert.Equal(t, int32(1), rec.expired.Load())
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestManager_NilCallbacksAndSource(t *testing.T) {
	m := NewManager(Config{}, nil, nil, WithClock(clockwork.NewFakeClock()))

	assert.NotPanics(t, func() {
		m.Init(nil, nil)
		m.RenewSession()
		m.Destroy()
	})
	assert.False(t, m.IsSessionActive())
}

func TestManager_ExpiresWithRealClock(t *testing.T) {
	store := &fakeLogouter{}
	m := NewManager(Config{
		SessionDuration:   200 * time.Millisecond,
		InactivityTimeout: 100 * time.Millisecond,
	}, activity.NewBus(), store)

	rec := &recorder{}
	m.Init(rec.onExpired, rec.onRenewed)
	assert.True(t, m.IsSessionActive())

	time.Sleep(150 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return rec.expired.Load() == 1
	}, 100*time.Millisecond, 5*time.Millisecond)
	assert.False(t, m.IsSessionActive())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), rec.expired.Load())
	assert.Equal(t, int32(1), store.calls.Load())
}
