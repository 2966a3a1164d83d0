package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

const (
	SignalsFile     = "signals.jsonl"
	HighSignalsFile = "signals_high.jsonl"
	ResultsFile     = "results.jsonl"
)

// FileSink appends one JSON document per line. Files are opened on first write.
type FileSink struct {
	dir string

	mu    sync.Mutex
	files map[string]*os.File
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink dir %s: %w", dir, err)
	}
	return &FileSink{dir: dir, files: make(map[string]*os.File, 3)}, nil
}

func (f *FileSink) Publish(_ context.Context, s types.ArbitrageSignal) error {
	name := SignalsFile
	if s.Tier == types.TierHigh {
		name = HighSignalsFile
	}
	return f.append(name, s)
}

func (f *FileSink) Record(_ context.Context, r types.BranchResult) error {
	return f.append(ResultsFile, r)
}

func (f *FileSink) append(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	fh, ok := f.files[name]
	if !ok {
		fh, err = os.OpenFile(filepath.Join(f.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		f.files[name] = fh
	}
	_, err = fh.Write(b)
	return err
}

func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for name, fh := range f.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
		delete(f.files, name)
	}
	return first
}
