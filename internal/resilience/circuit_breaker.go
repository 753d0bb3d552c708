package resilience

import (
	"sync"
	"time"
)

// State is one of Closed, Open, HalfOpen.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// CircuitOpenError is returned by Allow when the breaker is fail-fasting;
// callers must not touch the transport in this state.
type CircuitOpenError struct {
	Name string
	OpenSince time.Time
}

func (e *CircuitOpenError) Error() string {
	return "circuit open for " + e.Name
}

// BreakerConfig parameterizes one dependency's breaker.
type BreakerConfig struct {
	Name string
	WindowSize int // sliding window size, in calls
	MinimumCalls int // calls required in window before failure_rate is evaluated
	FailureRateThreshold float64 // fraction in [0,1]; window failure rate >= this trips the breaker
	WaitDurationInOpen time.Duration
	PermittedCallsInHalfOpen int
}

// Breaker is a per-dependency circuit breaker implementing the
// Closed/Open/HalfOpen state machine, evaluated inline on every call
// against a sliding window of recent outcomes.
type Breaker struct {
	cfg BreakerConfig

	mu sync.Mutex
	state State
	openedAt time.Time
	window []bool // true = failure, ring buffer
	windowPos int
	windowFilled int
	halfOpenInFlight int
	halfOpenSeen int
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.PermittedCallsInHalfOpen <= 0 {
		cfg.PermittedCallsInHalfOpen = 1
	}
	return &Breaker{
		cfg: cfg,
		state: Closed,
		window: make([]bool, cfg.WindowSize),
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed, transitioning Open -> HalfOpen
// once wait_duration_in_open has elapsed and admitting at most
// permitted_calls_in_half_open concurrent probes while HalfOpen. Counters
// are updated only after a response or terminal timeout is observed
// — Allow itself never records an outcome.
func (b *Breaker) Allow(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if now.Sub(b.openedAt) >= b.cfg.WaitDurationInOpen {
			b.state = HalfOpen
			b.halfOpenInFlight = 0
			b.halfOpenSeen = 0
			return b.admitHalfOpenLocked()
		}
		return &CircuitOpenError{Name: b.cfg.Name, OpenSince: b.openedAt}
	case HalfOpen:
		return b.admitHalfOpenLocked()
	default:
		return nil
	}
}

func (b *Breaker) admitHalfOpenLocked() error {
	if b.halfOpenInFlight >= b.cfg.PermittedCallsInHalfOpen {
		return &CircuitOpenError{Name: b.cfg.Name, OpenSince: b.openedAt}
	}
	b.halfOpenInFlight++
	return nil
}

// Record reports the outcome of a call previously admitted by Allow.
func (b *Breaker) Record(now time.Time, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.halfOpenInFlight--
		b.halfOpenSeen++
		if failed {
			b.trip(now)
			return
		}
		if b.halfOpenSeen >= b.cfg.PermittedCallsInHalfOpen {
			b.resetToClosedLocked()
		}
		return
	case Open:
		return
	}

	b.window[b.windowPos] = failed
	b.windowPos = (b.windowPos + 1) % len(b.window)
	if b.windowFilled < len(b.window) {
		b.windowFilled++
	}

	if b.windowFilled < b.cfg.MinimumCalls {
		return
	}

	failures := 0
	for i := 0; i < b.windowFilled; i++ {
		if b.window[i] {
			failures++
		}
	}
	rate := float64(failures) / float64(b.windowFilled)
	if rate >= b.cfg.FailureRateThreshold {
		b.trip(now)
	}
}

func (b *Breaker) trip(now time.Time) {
	b.state = Open
	b.openedAt = now
	b.halfOpenInFlight = 0
	b.halfOpenSeen = 0
}

func (b *Breaker) resetToClosedLocked() {
	b.state = Closed
	b.windowPos = 0
	b.windowFilled = 0
	for i := range b.window {
		b.window[i] = false
	}
}

// Manager keeps one Breaker per upstream dependency name, grounded on the
// teacher's CircuitBreakerManager map-of-breakers-by-ID pattern.
type Manager struct {
	mu sync.RWMutex
	breakers map[string]*Breaker
	factory func(name string) BreakerConfig
}

func NewManager(factory func(name string) BreakerConfig) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		factory: factory,
	}
}

func (m *Manager) Get(name string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[name]; ok {
		return b
	}
	b = NewBreaker(m.factory(name))
	m.breakers[name] = b
	return b
}
