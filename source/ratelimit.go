package source

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// DomainLimiter paces outbound requests per network domain. Limiters are
// created lazily on first use of a host. Read and written only by the
// calling flow; the mutex guards the lazy creation, not cross-run sharing.
type DomainLimiter struct {
	mu       sync.Mutex
	perSec   rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewDomainLimiter allows requestsPerSecond sustained requests per host.
func NewDomainLimiter(requestsPerSecond float64) *DomainLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &DomainLimiter{
		perSec:   rate.Limit(requestsPerSecond),
		burst:    1,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the target URL's host is allowed another request or the
// context is cancelled.
func (d *DomainLimiter) Wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("rate limiter: bad url %q", rawURL)
	}
	return d.limiterFor(u.Host).Wait(ctx)
}

func (d *DomainLimiter) limiterFor(host string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	lim, ok := d.limiters[host]
	if !ok {
		lim = rate.NewLimiter(d.perSec, d.burst)
		d.limiters[host] = lim
	}
	return lim
}
