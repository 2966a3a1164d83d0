package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/m1amgn/cex-dex-arbitrager/internal/metrics"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

type GuardConfig struct {
	// ConsecutiveFailures opens the breaker. 0 disables breaking.
	ConsecutiveFailures uint32
	// OpenFor is how long an open breaker rejects calls before a probe.
	OpenFor time.Duration
	// RPS and Burst configure the token bucket. RPS <= 0 disables limiting.
	RPS   float64
	Burst int
}

// Guards hands out one breaker + limiter pair per venue, created on first use.
type Guards struct {
	cfg GuardConfig
	log *zap.Logger

	mu sync.Mutex
	m  map[string]*guard
}

type guard struct {
	cb  *gobreaker.CircuitBreaker
	lim *rate.Limiter
}

func NewGuards(cfg GuardConfig, log *zap.Logger) *Guards {
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 60 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Guards{cfg: cfg, log: log, m: make(map[string]*guard)}
}

func (g *Guards) get(venue string) *guard {
	g.mu.Lock()
	defer g.mu.Unlock()
	if x, ok := g.m[venue]; ok {
		return x
	}
	x := &guard{}
	if g.cfg.ConsecutiveFailures > 0 {
		n := g.cfg.ConsecutiveFailures
		x.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    venue,
			Timeout: g.cfg.OpenFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= n
			},
			// пустой стакан или чужая сеть не повод размыкать
			IsSuccessful: func(err error) bool {
				return err == nil || !(errors.Is(err, types.ErrTransport) || errors.Is(err, types.ErrUpstream))
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
				g.log.Warn("venue breaker", zap.String("venue", name),
					zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}
	if g.cfg.RPS > 0 {
		x.lim = rate.NewLimiter(rate.Limit(g.cfg.RPS), g.cfg.Burst)
	}
	g.m[venue] = x
	return x
}

// State reports the breaker state of venue; closed when breaking is off.
func (g *Guards) State(venue string) gobreaker.State {
	if x := g.get(venue); x.cb != nil {
		return x.cb.State()
	}
	return gobreaker.StateClosed
}

// Do waits for a rate token and runs fn through the venue breaker.
// An open breaker or an exhausted wait is reported as types.ErrTransport.
func (g *Guards) Do(ctx context.Context, venue string, fn func(context.Context) error) error {
	x := g.get(venue)
	if x.lim != nil {
		if err := x.lim.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limit wait: %v", types.ErrTransport, err)
		}
	}
	if x.cb == nil {
		return fn(ctx)
	}
	_, err := x.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", types.ErrTransport, venue, err)
	}
	return err
}
