// Package circuitbreaker stops calling a failing dependency for a while so
// a broken external tool does not get invoked once per item.
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the position of a breaker.
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

// ErrOpen matches every rejection via errors.Is.
var ErrOpen = stderrors.New("circuit breaker is open")

// Settings configures a Breaker. Zero values fall back to the defaults below.
type Settings struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
	// Probes is how many calls are let through while half-open, and how
	// many of them must succeed to close again.
	Probes uint32
}

const (
	DefaultMaxFailures = 3
	DefaultCooldown    = time.Minute
	DefaultProbes      = 1
)

// Stats is a point-in-time copy of a breaker's counters.
type Stats struct {
	Name                string
	State               State
	Requests            uint64
	Failures            uint64
	Rejections          uint64
	ConsecutiveFailures uint32
	LastFailure         time.Time
}

// Breaker guards calls to one dependency. It is safe for concurrent use.
type Breaker struct {
	settings Settings
	logger   *logrus.Logger
	now      func() time.Time

	mu        sync.Mutex
	state     State
	openedAt  time.Time
	probes    uint32
	successes uint32
	stats     Stats
}

// New creates a closed breaker. A nil logger discards transition logs.
func New(settings Settings, logger *logrus.Logger) *Breaker {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = DefaultMaxFailures
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = DefaultCooldown
	}
	if settings.Probes == 0 {
		settings.Probes = DefaultProbes
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Breaker{
		settings: settings,
		logger:   logger,
		now:      time.Now,
		stats:    Stats{Name: settings.Name},
	}
}

// Execute runs fn unless the breaker is open. Cancellation of ctx is not
// counted as a failure of the dependency.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(ctx, err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance()
	switch b.state {
	case StateOpen:
		b.stats.Rejections++
		return &OpenError{
			Name:       b.settings.Name,
			State:      b.state,
			RetryAfter: b.settings.Cooldown - b.now().Sub(b.openedAt),
		}
	case StateHalfOpen:
		if b.probes >= b.settings.Probes {
			b.stats.Rejections++
			return &OpenError{Name: b.settings.Name, State: b.state}
		}
		b.probes++
	}
	b.stats.Requests++
	return nil
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && ctx.Err() != nil && stderrors.Is(err, ctx.Err()) {
		// Neutral outcome, give the probe slot back.
		if b.state == StateHalfOpen && b.probes > 0 {
			b.probes--
		}
		return
	}

	if err == nil {
		b.stats.ConsecutiveFailures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.settings.Probes {
				b.transition(StateClosed)
			}
		}
		return
	}

	b.stats.Failures++
	b.stats.ConsecutiveFailures++
	b.stats.LastFailure = b.now()
	switch b.state {
	case StateClosed:
		if b.stats.ConsecutiveFailures >= b.settings.MaxFailures {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

// advance moves an open breaker to half-open once the cooldown has passed.
// Callers hold mu.
func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.transition(StateHalfOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.probes = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if to == StateClosed {
		b.stats.ConsecutiveFailures = 0
	}

	entry := b.logger.WithFields(logrus.Fields{
		"circuit_breaker": b.settings.Name,
		"from":            from.String(),
		"to":              to.String(),
		"failures":        b.stats.ConsecutiveFailures,
	})
	if to == StateOpen {
		entry.Warn("Circuit breaker opened")
	} else {
		entry.Info("Circuit breaker state changed")
	}
}

// State returns the current state, applying a pending cooldown transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Stats returns a copy of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	s := b.stats
	s.State = b.state
	return s
}

// OpenError is returned instead of calling the dependency.
type OpenError struct {
	Name       string
	State      State
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circuit breaker %q is %s, retry in %s", e.Name, e.State, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("circuit breaker %q is %s", e.Name, e.State)
}

func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}
