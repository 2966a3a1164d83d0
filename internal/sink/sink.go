// Package sink delivers signals and branch audit records to their
// destinations: JSONL files, logs, websocket viewers and Redis streams.
package sink

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/metrics"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

type Sink interface {
	Publish(ctx context.Context, s types.ArbitrageSignal) error
	Record(ctx context.Context, r types.BranchResult) error
}

// Named is a sink with a label for metrics and error messages.
type Named struct {
	Name string
	Sink Sink
}

// Multi hands every call to all sinks. A failing sink is counted and
// reported but does not stop the others.
type Multi []Named

func (m Multi) Publish(ctx context.Context, s types.ArbitrageSignal) error {
	var errs []error
	for _, n := range m {
		if err := n.Sink.Publish(ctx, s); err != nil {
			metrics.SinkErrors.WithLabelValues(n.Name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Record(ctx context.Context, r types.BranchResult) error {
	var errs []error
	for _, n := range m {
		if err := n.Sink.Record(ctx, r); err != nil {
			metrics.SinkErrors.WithLabelValues(n.Name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes signals at Info and audit records at Debug.
type LogSink struct{ Log *zap.Logger }

func legFields(legs []types.SignalLeg) []zap.Field {
	f := make([]zap.Field, 0, len(legs))
	for _, l := range legs {
		v := l.Venue
		if l.Network != "" {
			v += "@" + l.Network
		}
		f = append(f, zap.String(string(l.Side), v), zap.Float64(string(l.Side)+"_price", l.Price))
	}
	return f
}

func (l LogSink) Publish(_ context.Context, s types.ArbitrageSignal) error {
	f := append([]zap.Field{
		zap.String("id", s.ID),
		zap.String("kind", string(s.Kind)),
		zap.String("tier", string(s.Tier)),
		zap.String("asset", s.Asset),
		zap.String("quote", s.QuoteCurrency),
		zap.Float64("spread_pct", s.SpreadPercent),
		zap.Float64("notional", s.NotionalAmount),
	}, legFields(s.Legs)...)
	l.Log.Info("SIGNAL", f...)
	return nil
}

func (l LogSink) Record(_ context.Context, r types.BranchResult) error {
	l.Log.Debug("branch",
		zap.String("kind", string(r.Kind)),
		zap.String("asset", r.Asset),
		zap.String("quote", r.QuoteCurrency),
		zap.Bool("fired", r.Fired),
		zap.Float64("spread_pct", r.SpreadPercent),
		zap.String("reason", r.Reason),
	)
	return nil
}
