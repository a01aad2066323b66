package notify

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/runnelhq/runnel/pkg/log"
)

// BreakerSink wraps a Sink with a circuit breaker so a dead downstream
// fails fast instead of tying up dispatch workers in request timeouts.
// ErrInvalidRecipient passes through without tripping the breaker.
type BreakerSink struct {
	inner Sink
	cb    *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerSink wraps inner. The breaker opens after five consecutive
// transient failures and probes again after cooldown.
func NewBreakerSink(inner Sink, cooldown time.Duration, logger log.Logger) *BreakerSink {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	logger = logger.WithComponent("notify.breaker")
	settings := gobreaker.Settings{
		Name:    "notify",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				log.Str("from", from.String()), log.Str("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// recipient problems are the caller's fault, not the sink's
			return err == nil || errors.Is(err, ErrInvalidRecipient)
		},
	}
	return &BreakerSink{inner: inner, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Deliver implements Sink. An open breaker reports a transient error, so
// the dispatcher's backoff naturally paces the probe attempts.
func (b *BreakerSink) Deliver(ctx context.Context, recipient, message string) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Deliver(ctx, recipient, message)
	})
	return err
}
