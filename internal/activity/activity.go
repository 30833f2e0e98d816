package activity

import (
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind is a user input signal type that counts as a liveness heartbeat.
type Kind int

const (
	PointerDown Kind = iota
	PointerMove
	KeyPress
	Scroll
	TouchStart
	Click
)

// DefaultKinds is the set of signals a session listens to.
var DefaultKinds = []Kind{PointerDown, PointerMove, KeyPress, Scroll, TouchStart, Click}

func (k Kind) String() string {
	switch k {
	case PointerDown:
		return "pointerdown"
	case PointerMove:
		return "pointermove"
	case KeyPress:
		return "keypress"
	case Scroll:
		return "scroll"
	case TouchStart:
		return "touchstart"
	case Click:
		return "click"
	default:
		return "unknown"
	}
}

// Event is a single user interaction.
type Event struct {
	Kind   Kind
	At     time.Time
	Origin string

	passive  bool
	consumed bool
}

// Consume marks the event as handled so the emitter does not act on it.
// Passive listeners cannot consume events.
func (e *Event) Consume() {
	if e.passive {
		logrus.WithField("kind", e.Kind.String()).Warnln("Passive listener attempted to consume activity event")
		return
	}
	e.consumed = true
}

// Handler receives activity events.
type Handler func(*Event)

// Source is anything that can deliver activity events to subscribers.
type Source interface {
	Subscribe(handler Handler, opts ...Option) (unsubscribe func())
}

type listener struct {
	id      uint64
	handler Handler
	kinds   []Kind
	passive bool
}

func (l *listener) accepts(kind Kind) bool {
	return len(l.kinds) == 0 || slices.Contains(l.kinds, kind)
}

// Option configures a subscription.
type Option func(*listener)

// Passive marks the listener as passive; it can observe but never consume events.
func Passive() Option {
	return func(l *listener) {
		l.passive = true
	}
}

// Kinds restricts the listener to the given kinds. No kinds means all.
func Kinds(kinds ...Kind) Option {
	return func(l *listener) {
		l.kinds = append([]Kind(nil), kinds...)
	}
}

// Bus is an in-process activity source. The interactive shell feeds it with
// terminal input; tests feed it directly.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []*listener
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(handler Handler, opts ...Option) func() {
	l := &listener{handler: handler}
	for _, opt := range opts {
		opt(l)
	}

	b.mu.Lock()
	b.nextID++
	l.id = b.nextID
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"listener": l.id,
		"passive":  l.passive,
		"kinds":    len(l.kinds),
	}).Debugln("Activity listener attached")

	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(l.id)
		})
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners = slices.DeleteFunc(b.listeners, func(l *listener) bool {
		return l.id == id
	})

	logrus.WithField("listener", id).Debugln("Activity listener detached")
}

// Emit delivers the event to every matching listener in subscription order
// and reports whether a non-passive listener consumed it. Handlers run
// without the bus lock held so they may subscribe or unsubscribe.
func (b *Bus) Emit(kind Kind, origin string) bool {
	b.mu.RLock()
	snapshot := slices.Clone(b.listeners)
	b.mu.RUnlock()

	at := time.Now()
	consumed := false

	for _, l := range snapshot {
		if !l.accepts(kind) {
			continue
		}
		ev := &Event{
			Kind:    kind,
			At:      at,
			Origin:  origin,
			passive: l.passive,
		}
		l.handler(ev)
		if ev.consumed {
			consumed = true
		}
	}

	return consumed
}

// Listeners returns the number of attached listeners.
func (b *Bus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
