// Package pacing spaces out calls to rate limited collaborators.
package pacing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"DealsScanner/internal/clock"
)

// Pacer lets at most one call through per interval, plus optional jitter.
// Callers that report Finish get the interval measured from the end of the previous
// call rather than its start, so a slow call still leaves a full gap behind it.
// Time comes from the injected clock, so the limiter math runs against fake time in tests.
type Pacer struct {
	mu      sync.Mutex
	clk     clock.Clock
	limiter *rate.Limiter
	jitter  func() time.Duration
}

// New builds a pacer. A non-positive interval disables pacing.
func New(interval time.Duration, jitter func() time.Duration, clk clock.Clock) *Pacer {
	if clk == nil {
		clk = clock.Real{}
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{
		clk:     clk,
		limiter: rate.NewLimiter(limit, 1),
		jitter:  jitter,
	}
}

// Wait blocks until the next call may proceed. The first call never waits.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clk.Now()
	reservation := p.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return fmt.Errorf("pacer cannot reserve a slot")
	}

	delay := reservation.DelayFrom(now)
	if delay > 0 && p.jitter != nil {
		delay += p.jitter()
	}
	return p.clk.Sleep(ctx, delay)
}

// Finish marks the end of the call admitted by the last Wait.
func (p *Pacer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.limiter = rate.NewLimiter(p.limiter.Limit(), 1)
	p.limiter.ReserveN(p.clk.Now(), 1)
}
