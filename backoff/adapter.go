package backoff

import (
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// FromRetry adapts backoffs from github.com/sethvargo/go-retry into a
// Calculator. Those backoffs are stateful iterators, so a factory is taken
// instead of an instance: a fresh backoff is built whenever the retry
// counter restarts (a connection succeeded in between).
func FromRetry(factory func() retry.Backoff) Calculator {
	return &retryAdapter{factory: factory}
}

type retryAdapter struct {
	factory func() retry.Backoff

	mu   sync.Mutex
	b    retry.Backoff
	last int
}

func (a *retryAdapter) Next(retryCount int, _ time.Time, _ int) (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.b == nil || retryCount <= a.last {
		a.b = a.factory()
	}
	a.last = retryCount

	delay, stop := a.b.Next()
	return delay, !stop
}

// Fibonacci returns a fibonacci Calculator capped at max.
func Fibonacci(initial, max time.Duration) Calculator {
	return FromRetry(func() retry.Backoff {
		return retry.WithCappedDuration(max, retry.NewFibonacci(initial))
	})
}

// Jittered returns an exponential Calculator with jitter, capped at max.
// Jitter spreads simultaneous reconnects from many controllers.
func Jittered(initial, max time.Duration) Calculator {
	return FromRetry(func() retry.Backoff {
		return retry.WithCappedDuration(max, retry.WithJitter(initial/10, retry.NewExponential(initial)))
	})
}
