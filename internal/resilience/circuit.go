package resilience

import (
	"sync"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned once the consecutive-failure bound is reached.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreaker counts consecutive failures of one operation and opens once
// a threshold is reached. It never closes on its own; a long-running crawl
// that trips it is meant to stop and be restarted by an operator.
// A zero threshold never opens.
type CircuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	consecutive int
	onOpen      func(failures int)
}

// NewCircuitBreaker creates a breaker that opens after threshold consecutive
// failures. onOpen, if non-nil, is called once when it opens.
func NewCircuitBreaker(threshold int, onOpen func(failures int)) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, onOpen: onOpen}
}

// Record notes the outcome of one attempt. It returns ErrCircuitOpen when
// this failure reaches the threshold.
func (cb *CircuitBreaker) Record(err error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.consecutive = 0
		return nil
	}
	cb.consecutive++
	if cb.threshold <= 0 || cb.consecutive < cb.threshold {
		return nil
	}
	if cb.consecutive == cb.threshold && cb.onOpen != nil {
		cb.onOpen(cb.consecutive)
	}
	return eris.Wrapf(ErrCircuitOpen, "%d consecutive failures: %v", cb.consecutive, err)
}

// Open reports whether the threshold has been reached.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.threshold > 0 && cb.consecutive >= cb.threshold
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutive
}
