// Package resilience provides the typed error model, retry, and circuit
// breaker used for calls to the fixture feed and other upstreams.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is the position of a breaker: closed (calls flow), open (calls are
// rejected), or half-open (a single probe is let through to test recovery).
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned by Allow while the breaker is rejecting calls.
var ErrBreakerOpen = eris.New("breaker open: upstream unavailable")

// BreakerConfig tunes when the breaker trips and how it recovers.
type BreakerConfig struct {
	// FailureThreshold is how many consecutive tripping failures open the
	// breaker. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the breaker rejects calls before letting a
	// probe through. Default: 30s.
	ResetTimeout time.Duration

	// RecoveryProbes is how many probes must succeed before the breaker
	// closes again. Default: 1.
	RecoveryProbes int

	// ShouldTrip decides which errors count toward FailureThreshold. When
	// nil, every error except a FatalError counts: a rejected credential
	// says nothing about feed availability.
	ShouldTrip func(err error) bool

	// OnStateChange observes transitions. It runs under the breaker lock,
	// so it must not call back into the breaker.
	OnStateChange func(from, to State)
}

// DefaultBreakerConfig returns the tuning used for the fixture feed.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		RecoveryProbes:   1,
	}
}

func (c BreakerConfig) normalized() BreakerConfig {
	def := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = def.ResetTimeout
	}
	if c.RecoveryProbes <= 0 {
		c.RecoveryProbes = def.RecoveryProbes
	}
	return c
}

// Breaker guards one upstream. Callers either wrap calls with ExecuteVal or
// drive the Allow/Record pair themselves when a closure does not fit.
type Breaker struct {
	cfg   BreakerConfig
	clock func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probing   bool
	probeWins int
}

// NewBreaker creates a closed breaker. Zero config fields take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg.normalized(), clock: time.Now}
}

// Allow reports whether a call may proceed. While open it returns
// ErrBreakerOpen until ResetTimeout has elapsed, then admits exactly one
// probe at a time; concurrent calls during a probe are rejected. Every
// admitted call must be followed by Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.clock().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrBreakerOpen
		}
		b.shift(StateHalfOpen)
		b.probeWins = 0
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrBreakerOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Record feeds the outcome of an admitted call back into the breaker. A nil
// error, or an error ShouldTrip rejects, counts as success.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tripped := err != nil
	if tripped {
		if b.cfg.ShouldTrip != nil {
			tripped = b.cfg.ShouldTrip(err)
		} else {
			tripped = !IsFatal(err)
		}
	}

	switch b.state {
	case StateHalfOpen:
		b.probing = false
		if tripped {
			b.failures++
			b.open()
			return
		}
		b.probeWins++
		if b.probeWins >= b.cfg.RecoveryProbes {
			b.failures = 0
			b.shift(StateClosed)
		}
	default:
		if !tripped {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	}
}

// State returns the breaker position an arriving call would see, so an open
// breaker whose reset timeout has elapsed reads as half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.clock().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probeWins = 0
	b.probing = false
	b.shift(StateClosed)
}

func (b *Breaker) open() {
	b.openedAt = b.clock()
	b.shift(StateOpen)
}

func (b *Breaker) shift(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// ExecuteVal runs fn through the breaker and preserves its value. Calls
// rejected while the breaker is open fail with ErrBreakerOpen without
// invoking fn.
func ExecuteVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.Record(err)
	if err != nil {
		return zero, err
	}
	return val, nil
}
