// Package dash keeps the latest branch result per asset and serves them
// to a small web page.
package dash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/sink"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// DefaultRecent is how many signals /api/signals keeps.
const DefaultRecent = 200

// Row: одна строка = (asset, quote, branch)
type Row struct {
	Asset   string           `json:"asset"`
	Quote   string           `json:"quote"`
	Kind    types.SignalKind `json:"kind"`
	Fired   bool             `json:"fired"`
	Tiers   []types.Tier     `json:"tiers,omitempty"`
	Spread  float64          `json:"spread"`
	Network string           `json:"network,omitempty"`
	Reason  string           `json:"reason,omitempty"`
	Buy     string           `json:"buy"`
	Sell    string           `json:"sell"`
	TS      int64            `json:"ts"`
}

// Store is a sink: Record keeps the latest result per branch, Publish keeps
// a bounded tail of signals.
type Store struct {
	mu      sync.RWMutex
	rows    map[string]Row // key: asset|quote|kind
	signals []types.ArbitrageSignal
	recent  int
}

func NewStore(recent int) *Store {
	if recent <= 0 {
		recent = DefaultRecent
	}
	return &Store{rows: make(map[string]Row, 64), recent: recent}
}

func venueOf(l types.SignalLeg) string {
	if l.Network != "" {
		return l.Venue + "@" + l.Network
	}
	return l.Venue
}

func (s *Store) Record(_ context.Context, r types.BranchResult) error {
	row := Row{
		Asset: r.Asset, Quote: r.QuoteCurrency, Kind: r.Kind, Fired: r.Fired, Tiers: r.Tiers,
		Spread: r.SpreadPercent, Network: r.Network, Reason: r.Reason, TS: r.Timestamp.UnixMilli(),
	}
	for _, l := range r.Legs {
		if l.Side == types.Buy {
			row.Buy = venueOf(l)
		} else {
			row.Sell = venueOf(l)
		}
	}
	s.mu.Lock()
	s.rows[r.Asset+"|"+r.QuoteCurrency+"|"+string(r.Kind)] = row
	s.mu.Unlock()
	return nil
}

func (s *Store) Publish(_ context.Context, sig types.ArbitrageSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	if over := len(s.signals) - s.recent; over > 0 {
		s.signals = append(s.signals[:0:0], s.signals[over:]...)
	}
	return nil
}

func (s *Store) List() []Row {
	s.mu.RLock()
	out := make([]Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Asset != out[j].Asset {
			return out[i].Asset < out[j].Asset
		}
		if out[i].Quote != out[j].Quote {
			return out[i].Quote < out[j].Quote
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Signals returns the kept signals, newest first.
func (s *Store) Signals() []types.ArbitrageSignal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ArbitrageSignal, len(s.signals))
	for i, sig := range s.signals {
		out[len(out)-1-i] = sig
	}
	return out
}

// Handler serves the page, the JSON API and, when hub is set, /ws.
func Handler(s *Store, hub *sink.Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dash", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, s.List())
	})
	mux.HandleFunc("/api/signals", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, s.Signals())
	})
	if hub != nil {
		mux.Handle("/ws", hub)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexHTML)
	})
	return withCORS(mux)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// StartHTTP blocks until ctx is done or the listener fails.
func StartHTTP(ctx context.Context, h http.Handler, addr string, log *zap.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() { <-ctx.Done(); _ = srv.Close() }()

	log.Info("dash listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("dash http server error", zap.Error(err))
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>CEX ↔ DEX Arbitrage</title>
  <style>
    :root { --bg:#f8fafc; --card:#fff; --muted:#6b7280; --chip:#e5e7eb; }
    body{margin:0;background:var(--bg);font:14px/1.4 ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Ubuntu; color:#111827;}
    .wrap{max-width:1180px;margin:24px auto;padding:0 16px;}
    .hdr{display:flex;align-items:flex-end;justify-content:space-between;margin-bottom:12px;}
    .state{font-size:12px;padding:2px 8px;border-radius:999px;background:#d1fae5;color:#065f46;}
    table{width:100%;border-collapse:collapse;background:var(--card);border-radius:16px;overflow:hidden;box-shadow:0 10px 30px rgba(0,0,0,.06);}
    thead{background:#f3f4f6;} th,td{padding:10px 14px;text-align:left;} tbody tr{border-top:1px solid #f3f4f6;}
    .chip{display:inline-block;font-size:12px;padding:2px 8px;background:var(--chip);border-radius:999px;color:#374151;}
    .pct{padding:2px 8px;border-radius:8px;font-size:12px;}
    .pct.ok{background:#dcfce7;color:#166534;} .pct.dim{background:#f3f4f6;color:#6b7280;}
    .sub{color:var(--muted);font-size:12px;margin:0;}
  </style>
</head>
<body>
<div class="wrap">
  <div class="hdr">
    <div>
      <h1 style="margin:0;font-size:22px;font-weight:600">CEX ↔ DEX Arbitrage</h1>
      <p class="sub">Latest result per asset and branch</p>
    </div>
    <div id="state" class="state">live</div>
  </div>
  <table>
    <thead>
      <tr>
        <th>Asset</th><th>Quote</th><th>Branch</th><th>Buy</th><th>Sell</th>
        <th>Spread</th><th>Tiers / reason</th><th style="text-align:right">Updated</th>
      </tr>
    </thead>
    <tbody id="rows"></tbody>
  </table>
</div>
<script>
  function pct(x){ return (x==null||isNaN(x)) ? '—' : (Number(x).toFixed(2)+'%'); }
  function rowHTML(r){
    return '<tr>'
      + '<td><strong>' + (r.asset||'') + '</strong></td>'
      + '<td><span class="chip">' + (r.quote||'') + '</span></td>'
      + '<td><span class="chip">' + (r.kind||'') + '</span></td>'
      + '<td>' + (r.buy||'—') + '</td>'
      + '<td>' + (r.sell||'—') + '</td>'
      + '<td><span class="pct ' + (r.fired?'ok':'dim') + '">' + pct(r.spread) + '</span></td>'
      + '<td>' + (r.fired ? (r.tiers||[]).join(', ') : (r.reason||'')) + '</td>'
      + '<td style="text-align:right;color:#6B7280;font-size:12px">' + new Date(r.ts||Date.now()).toLocaleTimeString() + '</td>'
      + '</tr>';
  }
  async function tick(){
    try{
      var res = await fetch('/api/dash', {cache:'no-store'});
      if(!res.ok) throw new Error('status '+res.status);
      var data = await res.json();
      document.getElementById('state').textContent = 'live';
      document.getElementById('rows').innerHTML = data.map(rowHTML).join('');
    }catch(e){
      document.getElementById('state').textContent = 'offline';
    }
  }
  tick(); setInterval(tick, 2000);
</script>
</body>
</html>`
