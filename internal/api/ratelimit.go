package api

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// endpointLimiters throttles judge requests per endpoint and model.
// A limiter is retuned in place when the configured rate changes.
type endpointLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rpm      map[string]int
	logger   *slog.Logger
}

func newEndpointLimiters(logger *slog.Logger) *endpointLimiters {
	return &endpointLimiters{
		limiters: make(map[string]*rate.Limiter),
		rpm:      make(map[string]int),
		logger:   logger,
	}
}

// burstFor allows a fifth of a minute's budget at once, never fewer than 5
func burstFor(requestsPerMinute int) int {
	return max(5, requestsPerMinute/5)
}

func (l *endpointLimiters) limiter(key string, requestsPerMinute int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit := rate.Limit(float64(requestsPerMinute) / 60.0)
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(limit, burstFor(requestsPerMinute))
		l.limiters[key] = lim
		l.rpm[key] = requestsPerMinute
		l.logger.Debug("Created judge rate limiter", "endpoint", key, "rpm", requestsPerMinute)
		return lim
	}

	if l.rpm[key] != requestsPerMinute {
		l.logger.Info("Judge rate limit changed", "endpoint", key, "old_rpm", l.rpm[key], "new_rpm", requestsPerMinute)
		lim.SetLimit(limit)
		lim.SetBurst(burstFor(requestsPerMinute))
		l.rpm[key] = requestsPerMinute
	}
	return lim
}

// wait blocks until key may send another request or ctx is done
func (l *endpointLimiters) wait(ctx context.Context, key string, requestsPerMinute int) error {
	return l.limiter(key, requestsPerMinute).Wait(ctx)
}
