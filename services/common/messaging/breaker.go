package messaging

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen indicates the circuit breaker is open and dispatch is
// blocked until the reset timeout elapses.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreakerConfig configures a circuit breaker. The breaker trips when,
// within TrackingWindow, at least MinRequests calls were observed and the
// failure ratio reached FailureRatio.
type CircuitBreakerConfig struct {
	FailureRatio   float64
	MinRequests    int
	TrackingWindow time.Duration
	ResetTimeout   time.Duration
	Now            func() time.Time
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// CircuitBreaker blocks handler dispatch after the failure ratio over the
// tracking window exceeds the configured threshold.
type CircuitBreaker struct {
	mu           sync.Mutex
	failureRatio float64
	minRequests  int
	window       time.Duration
	resetAfter   time.Duration
	now          func() time.Time

	state          circuitState
	windowStart    time.Time
	requests       int
	failures       int
	openedAt       time.Time
	halfOpenFlight bool
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	ratio := cfg.FailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	minReq := cfg.MinRequests
	if minReq < 1 {
		minReq = 5
	}
	window := cfg.TrackingWindow
	if window <= 0 {
		window = 30 * time.Second
	}
	resetAfter := cfg.ResetTimeout
	if resetAfter <= 0 {
		resetAfter = 10 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{
		failureRatio: ratio,
		minRequests:  minReq,
		window:       window,
		resetAfter:   resetAfter,
		now:          now,
		state:        circuitClosed,
	}
}

// Execute runs fn while enforcing breaker state.
func (c *CircuitBreaker) Execute(fn func() error) error {
	if c == nil {
		return fn()
	}

	now := c.now()

	c.mu.Lock()
	switch c.state {
	case circuitOpen:
		if now.Sub(c.openedAt) < c.resetAfter {
			c.mu.Unlock()
			return ErrCircuitOpen
		}
		c.state = circuitHalfOpen
	case circuitHalfOpen:
		if c.halfOpenFlight {
			c.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	if c.state == circuitHalfOpen {
		c.halfOpenFlight = true
	}
	c.mu.Unlock()

	err := fn()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == circuitHalfOpen {
		c.halfOpenFlight = false
		if err == nil {
			c.reset()
			return nil
		}
		c.state = circuitOpen
		c.openedAt = now
		return err
	}

	c.observe(now, err != nil)
	if err == nil {
		return nil
	}
	if c.requests >= c.minRequests &&
		float64(c.failures)/float64(c.requests) >= c.failureRatio {
		c.state = circuitOpen
		c.openedAt = now
		c.resetCounters(now)
	}
	return err
}

// RetryAfter reports how long dispatch stays blocked. Zero means the
// breaker admits a trial call now.
func (c *CircuitBreaker) RetryAfter() time.Duration {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != circuitOpen {
		return 0
	}
	remaining := c.resetAfter - c.now().Sub(c.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *CircuitBreaker) observe(now time.Time, failed bool) {
	if c.windowStart.IsZero() || now.Sub(c.windowStart) > c.window {
		c.resetCounters(now)
	}
	c.requests++
	if failed {
		c.failures++
	}
}

func (c *CircuitBreaker) resetCounters(now time.Time) {
	c.windowStart = now
	c.requests = 0
	c.failures = 0
}

func (c *CircuitBreaker) reset() {
	c.state = circuitClosed
	c.requests = 0
	c.failures = 0
	c.windowStart = time.Time{}
}
