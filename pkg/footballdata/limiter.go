package footballdata

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pacing bounds relative to the configured request rate. A healthy feed
// earns back up to twice the configured rate; repeated 429s push the
// pace down to a quarter of it.
const (
	paceRaise   = 1.2
	paceBackoff = 0.5
	paceCeiling = 2.0
	paceFloor   = 0.25
)

// Pacer spaces feed requests and retunes itself from response outcomes:
// clean responses raise the pace, 429s cut it in half.
type Pacer struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	pace    rate.Limit
	ceiling rate.Limit
	floor   rate.Limit
}

// NewPacer creates a Pacer around the configured steady-state rate.
func NewPacer(rps rate.Limit, burst int) *Pacer {
	return &Pacer{
		limiter: rate.NewLimiter(rps, burst),
		pace:    rps,
		ceiling: rps * paceCeiling,
		floor:   rps * paceFloor,
	}
}

// Wait blocks until the next request slot, or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// OnSuccess nudges the pace up after a clean response.
func (p *Pacer) OnSuccess() {
	p.retune(paceRaise)
}

// OnRateLimit halves the pace after a 429.
func (p *Pacer) OnRateLimit() {
	next := p.retune(paceBackoff)
	zap.L().Warn("feed rate limited, slowing request pace",
		zap.Float64("requests_per_sec", float64(next)),
	)
}

// Limit reports the current pace.
func (p *Pacer) Limit() rate.Limit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pace
}

func (p *Pacer) retune(factor rate.Limit) rate.Limit {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pace = min(max(p.pace*factor, p.floor), p.ceiling)
	p.limiter.SetLimit(p.pace)
	return p.pace
}
