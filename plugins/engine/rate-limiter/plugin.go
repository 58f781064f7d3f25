package rate_limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rom8726/resflow"
)

const DefaultIdleTTL = 10 * time.Minute

var _ resflow.Plugin = (*RateLimiterPlugin)(nil)

type actorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterPlugin caps how often one actor may submit steps. Each identity
// gets its own token bucket. A bucket idle for the idle TTL that has refilled
// completely is dropped.
type RateLimiterPlugin struct {
	resflow.BasePlugin

	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	limiters  map[string]*actorLimiter
	lastSweep time.Time
	mu        sync.Mutex
}

type Option func(p *RateLimiterPlugin)

func WithIdleTTL(ttl time.Duration) Option {
	return func(p *RateLimiterPlugin) {
		p.idleTTL = ttl
	}
}

func New(limit rate.Limit, burst int, opts ...Option) *RateLimiterPlugin {
	p := &RateLimiterPlugin{
		BasePlugin: resflow.NewBasePlugin("rate_limiter", resflow.PriorityHigh),
		limit:      limit,
		burst:      burst,
		idleTTL:    DefaultIdleTTL,
		now:        time.Now,
		limiters:   make(map[string]*actorLimiter),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastSweep = p.now()

	return p
}

func (p *RateLimiterPlugin) allow(identity string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.idleTTL > 0 && now.Sub(p.lastSweep) >= p.idleTTL {
		p.sweep(now)
	}

	entry, ok := p.limiters[identity]
	if !ok {
		entry = &actorLimiter{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.limiters[identity] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

func (p *RateLimiterPlugin) sweep(now time.Time) {
	for identity, entry := range p.limiters {
		if now.Sub(entry.lastSeen) < p.idleTTL {
			continue
		}
		if entry.limiter.TokensAt(now) < float64(p.burst) {
			continue
		}
		delete(p.limiters, identity)
	}
	p.lastSweep = now
}

// Tracked returns how many identities currently hold a bucket.
func (p *RateLimiterPlugin) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.limiters)
}

func (p *RateLimiterPlugin) OnStepSubmitted(
	_ context.Context,
	_ *resflow.Workflow,
	step *resflow.WorkflowStep,
	actor resflow.Actor,
) error {
	if !p.allow(actor.Identity) {
		return fmt.Errorf("%w: actor %q on step %q", resflow.ErrRateLimited, actor.Identity, step.Name)
	}

	return nil
}
