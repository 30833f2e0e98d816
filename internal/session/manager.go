// Package session tracks the lifetime of an authenticated session on the
// client. A session ends when either of two independent timers fires: the
// absolute session duration or the inactivity window. Activity events from an
// activity.Source restart the inactivity window.
package session

import (
	"sync"
	"time"

	"github.com/chrisapx/fif-client-sub000/internal/activity"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSessionDuration   = 5 * time.Minute
	DefaultInactivityTimeout = 30 * time.Second
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateInactive State = iota
	StateActive
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	default:
		return "inactive"
	}
}

// Config holds the timer thresholds. Non-positive values fall back to the
// defaults.
type Config struct {
	SessionDuration   time.Duration `mapstructure:"duration"`
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`

	// ExtendOnActivity restarts the session duration timer on every activity
	// event as well. By default the session duration is an absolute ceiling
	// that only RenewSession restarts.
	ExtendOnActivity bool `mapstructure:"extend_on_activity"`
}

func (c Config) withDefaults() Config {
	if c.SessionDuration <= 0 {
		c.SessionDuration = DefaultSessionDuration
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
	return c
}

// Logouter clears the stored credential token and user profile. It must
// leave biometric enrollment data in place.
type Logouter interface {
	Logout() error
}

type timerKind int

const (
	sessionTimer timerKind = iota
	inactivityTimer
)

func (k timerKind) String() string {
	if k == sessionTimer {
		return "session"
	}
	return "inactivity"
}

// countdown is one of the two expiry timers. gen increases every time the
// timer is stopped or re-armed so a callback from a superseded timer can tell
// it is stale.
type countdown struct {
	timer    clockwork.Timer
	gen      uint64
	deadline time.Time
}

// Snapshot is a point in time view of a Manager.
type Snapshot struct {
	State              State
	StartedAt          time.Time
	LastActivity       time.Time
	SessionDeadline    time.Time
	InactivityDeadline time.Time
}

// ExpiresAt returns the earlier of the two deadlines, or the zero time when
// the session is inactive.
func (s Snapshot) ExpiresAt() time.Time {
	if s.State != StateActive {
		return time.Time{}
	}
	if s.InactivityDeadline.Before(s.SessionDeadline) {
		return s.InactivityDeadline
	}
	return s.SessionDeadline
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// Manager owns the session timers and the activity subscription. Construct
// one per process at the composition root.
//
// Misuse is never an error: Init while active, and Destroy or RenewSession
// while inactive, are logged no-ops.
type Manager struct {
	mu sync.Mutex

	config Config
	clock  clockwork.Clock
	source activity.Source
	store  Logouter

	state State
	cycle uint64

	timers      [2]countdown
	unsubscribe func()

	onExpired func()
	onRenewed func()

	startedAt    time.Time
	lastActivity time.Time
}

func NewManager(cfg Config, source activity.Source, store Logouter, opts ...Option) *Manager {
	m := &Manager{
		config: cfg.withDefaults(),
		clock:  clockwork.NewRealClock(),
		source: source,
		store:  store,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init starts a session: both timers are armed and the manager subscribes to
// activity events. Either callback may be nil.
func (m *Manager) Init(onExpired func(), onRenewed func()) {

	m.mu.Lock()

	if m.state == StateActive {
		m.mu.Unlock()
		logrus.Warnln("Session manager already initialized, call Destroy before initializing again")
		return
	}

	m.cycle++
	m.state = StateActive
	m.onExpired = onExpired
	m.onRenewed = onRenewed
	m.startedAt = m.clock.Now()
	m.lastActivity = m.startedAt

	m.armLocked(sessionTimer)
	m.armLocked(inactivityTimer)

	cycle := m.cycle
	m.mu.Unlock()

	// Subscribing happens outside the lock; a source is free to deliver an
	// event synchronously from Subscribe.
	var unsubscribe func()
	if m.source != nil {
		unsubscribe = m.source.Subscribe(
			m.activityHandler(cycle),
			activity.Passive(),
			activity.Kinds(activity.DefaultKinds...),
		)
	}

	m.mu.Lock()
	if m.state == StateActive && m.cycle == cycle {
		m.unsubscribe = unsubscribe
		unsubscribe = nil
	}
	m.mu.Unlock()

	// Torn down while subscribing.
	if unsubscribe != nil {
		unsubscribe()
	}

	logrus.WithFields(logrus.Fields{
		"duration":   m.config.SessionDuration,
		"inactivity": m.config.InactivityTimeout,
		"extend":     m.config.ExtendOnActivity,
	}).Debugln("Session started")
}

// Destroy ends an active session through the same teardown as a timeout,
// so onExpired fires here too.
func (m *Manager) Destroy() {

	m.mu.Lock()

	if m.state != StateActive {
		m.mu.Unlock()
		logrus.Debugln("Session manager not active, nothing to destroy")
		return
	}

	t := m.teardownLocked()
	m.mu.Unlock()

	logrus.Infoln("Session destroyed")

	t.run(m.store)
}

// IsSessionActive reports whether Init has run and no teardown followed.
func (m *Manager) IsSessionActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateActive
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RenewSession restarts both timers. It does not call onRenewed.
func (m *Manager) RenewSession() {

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		logrus.Debugln("Session manager not active, nothing to renew")
		return
	}

	m.armLocked(sessionTimer)
	m.armLocked(inactivityTimer)

	logrus.Debugln("Session renewed")
}

// GetRemainingTime returns the configured session duration while active and
// zero otherwise. It is not a countdown; see Snapshot for deadlines.
func (m *Manager) GetRemainingTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return 0
	}
	return m.config.SessionDuration
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := Snapshot{State: m.state}
	if m.state == StateActive {
		snapshot.StartedAt = m.startedAt
		snapshot.LastActivity = m.lastActivity
		snapshot.SessionDeadline = m.timers[sessionTimer].deadline
		snapshot.InactivityDeadline = m.timers[inactivityTimer].deadline
	}
	return snapshot
}

func (m *Manager) activityHandler(cycle uint64) activity.Handler {
	return func(ev *activity.Event) {

		m.mu.Lock()

		if m.state != StateActive || m.cycle != cycle {
			m.mu.Unlock()
			return
		}

		m.armLocked(inactivityTimer)
		if m.config.ExtendOnActivity {
			m.armLocked(sessionTimer)
		}
		m.lastActivity = m.clock.Now()

		onRenewed := m.onRenewed
		m.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"kind":   ev.Kind.String(),
			"origin": ev.Origin,
		}).Traceln("Session activity")

		if onRenewed != nil {
			onRenewed()
		}
	}
}

// armLocked replaces the timer of the given kind. Callers hold m.mu.
func (m *Manager) armLocked(kind timerKind) {

	c := &m.timers[kind]
	if c.timer != nil {
		c.timer.Stop()
	}

	timeout := m.config.SessionDuration
	if kind == inactivityTimer {
		timeout = m.config.InactivityTimeout
	}

	c.gen++
	gen := c.gen
	c.deadline = m.clock.Now().Add(timeout)
	c.timer = m.clock.AfterFunc(timeout, func() {
		m.expire(kind, gen)
	})
}

func (m *Manager) stopLocked(kind timerKind) {
	c := &m.timers[kind]
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.deadline = time.Time{}
}

func (m *Manager) expire(kind timerKind, gen uint64) {

	m.mu.Lock()

	if m.state != StateActive || m.timers[kind].gen != gen {
		m.mu.Unlock()
		return
	}

	t := m.teardownLocked()
	m.mu.Unlock()

	logrus.WithField("timer", kind.String()).Infoln("Session expired")

	t.run(m.store)
}

type teardown struct {
	unsubscribe func()
	onExpired   func()
}

// teardownLocked cancels both timers and flips the state. Detaching the
// listener, clearing storage and notifying happen in run, without m.mu held.
func (m *Manager) teardownLocked() teardown {

	m.stopLocked(sessionTimer)
	m.stopLocked(inactivityTimer)

	t := teardown{
		unsubscribe: m.unsubscribe,
		onExpired:   m.onExpired,
	}

	m.unsubscribe = nil
	m.onExpired = nil
	m.onRenewed = nil
	m.state = StateInactive

	return t
}

func (t teardown) run(store Logouter) {

	if t.unsubscribe != nil {
		t.unsubscribe()
	}

	if store != nil {
		if err := store.Logout(); err != nil {
			logrus.WithError(err).Errorln("Failed to clear session data")
		}
	}

	if t.onExpired != nil {
		t.onExpired()
	}
}
