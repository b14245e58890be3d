package client

import (
	"github.com/cenkalti/backoff/v4"
	"time"
)

// NewReconnectPolicy returns the interval policy of the reconnect timer.
// Without a max interval the timer fires at the fixed interval. With a max interval
// the delay doubles after every failed attempt up to max. The policy never gives up.
func NewReconnectPolicy(interval, maxInterval time.Duration) backoff.BackOff {
	if interval <= 0 {
		interval = time.Second
	}
	if maxInterval <= interval {
		return backoff.NewConstantBackOff(interval)
	}
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(interval),
		backoff.WithMaxInterval(maxInterval),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
}

// nextDelay returns the next delay of the policy, restarting it if it gave up
func nextDelay(policy backoff.BackOff) time.Duration {
	d := policy.NextBackOff()
	if d == backoff.Stop {
		policy.Reset()
		d = policy.NextBackOff()
	}
	if d < 0 {
		d = 0
	}
	return d
}
