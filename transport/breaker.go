package transport

import (
	"context"
	"net"
	"time"

	"github.com/sony/gobreaker"
)

// DialFunc establishes the raw transport connection a Connection Actor
// will drive (TLS negotiation and DNS resolution are the caller's
// concern; DialFunc hands back an already-negotiated net.Conn).
type DialFunc func(ctx context.Context) (net.Conn, error)

// BreakerDialer wraps a DialFunc in a circuit breaker so a caller that
// calls Connect repeatedly (e.g. a supervisor restart loop) stops
// hammering a server that is already refusing connections. It never
// retries or reconnects on its own: it only opens and short-circuits the
// decision the caller itself makes by calling Connect again.
type BreakerDialer struct {
	breaker *gobreaker.CircuitBreaker
	dial    DialFunc
}

// NewBreakerDialer wraps dial with default circuit-breaker settings: trip
// after 5 consecutive failures, half-open after 30s.
func NewBreakerDialer(name string, dial DialFunc) *BreakerDialer {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerDialer{
		breaker: gobreaker.NewCircuitBreaker(settings),
		dial:    dial,
	}
}

func (b *BreakerDialer) Dial(ctx context.Context) (net.Conn, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.dial(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(net.Conn), nil
}
