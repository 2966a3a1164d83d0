// Package fanout runs one batch of venue calls concurrently. Each call gets
// its own deadline; a failing call never cancels its siblings.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/m1amgn/cex-dex-arbitrager/internal/metrics"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

const DefaultTimeout = 10 * time.Second

type Task[T any] struct {
	Venue string
	// Market overrides Options.Market for this task.
	Market string
	Run    func(ctx context.Context) (T, error)
}

type Result[T any] struct {
	Venue   string
	Market  string
	Value   T
	Err     error
	Elapsed time.Duration
}

func (r Result[T]) OK() bool { return r.Err == nil }

type Options struct {
	Timeout        time.Duration
	MaxConcurrency int
	// Market labels metrics: "cex" or "dex".
	Market string
	Guards *Guards
	Log    *zap.Logger
}

// Run executes every task and returns once all of them settled.
// Results are in task order.
func Run[T any](ctx context.Context, tasks []Task[T], opts Options) []Result[T] {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	out := make([]Result[T], len(tasks))

	var g errgroup.Group
	if opts.MaxConcurrency > 0 {
		g.SetLimit(opts.MaxConcurrency)
	}
	for i, t := range tasks {
		g.Go(func() error {
			out[i] = one(ctx, t, opts)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func one[T any](ctx context.Context, t Task[T], opts Options) (res Result[T]) {
	res.Venue, res.Market = t.Venue, t.Market
	if res.Market == "" {
		res.Market = opts.Market
	}
	cctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: panic in %s: %v", types.ErrTransport, t.Venue, r)
		}
		res.Elapsed = time.Since(start)
		if errors.Is(res.Err, context.DeadlineExceeded) && !errors.Is(res.Err, types.ErrTransport) {
			res.Err = fmt.Errorf("%w: %v", types.ErrTransport, res.Err)
		}
		observe(opts.Log, res)
	}()

	call := func(c context.Context) error {
		v, err := settle(c, t)
		res.Value = v
		return err
	}
	if opts.Guards != nil {
		res.Err = opts.Guards.Do(cctx, t.Venue, call)
	} else {
		res.Err = call(cctx)
	}
	return res
}

type settled[T any] struct {
	v   T
	err error
}

// settle waits for t.Run or the deadline, whichever comes first. A task that
// ignores ctx keeps running in the background; its late value is dropped.
func settle[T any](ctx context.Context, t Task[T]) (T, error) {
	ch := make(chan settled[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- settled[T]{err: fmt.Errorf("%w: panic in %s: %v", types.ErrTransport, t.Venue, r)}
			}
		}()
		v, err := t.Run(ctx)
		ch <- settled[T]{v: v, err: err}
	}()
	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", types.ErrTransport, t.Venue, ctx.Err())
	}
}

func observe[T any](log *zap.Logger, r Result[T]) {
	outcome := types.ReasonOf(r.Err)
	metrics.VenueCalls.WithLabelValues(r.Market, r.Venue, outcome).Inc()
	metrics.VenueLatency.WithLabelValues(r.Market, r.Venue).Observe(r.Elapsed.Seconds())
	if r.Err == nil {
		return
	}
	f := []zap.Field{zap.String("market", r.Market), zap.String("venue", r.Venue),
		zap.String("reason", outcome), zap.Duration("elapsed", r.Elapsed), zap.Error(r.Err)}
	switch outcome {
	case "unsupported", "absent":
		log.Debug("venue quote absent", f...)
	default:
		log.Warn("venue quote failed", f...)
	}
}
