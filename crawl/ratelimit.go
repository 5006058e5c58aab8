package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/kura"
	"golang.org/x/time/rate"
)

var _ kura.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter provides per-domain rate limiting using token buckets.
// Each domain gets its own limiter with a burst of 1, so request starts to
// one host are evenly spaced no matter how many workers are waiting.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
}

// NewDomainLimiter creates a new DomainLimiter with the specified requests per second limit.
func NewDomainLimiter(rps float64) *DomainLimiter {
	return newDomainLimiter(rate.Limit(rps))
}

// NewDomainLimiterEvery creates a DomainLimiter that allows one request per
// interval to each domain. A non-positive interval disables limiting.
func NewDomainLimiterEvery(interval time.Duration) *DomainLimiter {
	if interval <= 0 {
		return newDomainLimiter(rate.Inf)
	}
	return newDomainLimiter(rate.Every(interval))
}

func newDomainLimiter(limit rate.Limit) *DomainLimiter {
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

// Wait blocks until the rate limit allows a request to the domain.
// Returns an error if the context is canceled before the wait completes.
func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	d.mu.Lock()
	limiter, ok := d.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(d.limit, 1)
		d.limiters[domain] = limiter
	}
	d.mu.Unlock()

	return limiter.Wait(ctx)
}

// PolitenessInterval spreads delay across the worker pool: with n workers
// each fetch start is delay/n after the previous one, so every worker
// observes roughly delay between its own requests.
func PolitenessInterval(delay time.Duration, concurrency int) time.Duration {
	if concurrency <= 1 {
		return delay
	}
	return delay / time.Duration(concurrency)
}
