// Package universe supplies the list of assets a scan walks over.
package universe

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

type Source interface {
	Assets(ctx context.Context) ([]types.Asset, error)
}

// FileSource reads a YAML or JSON list of {name, blockchains}. The file is
// read on every call so edits are picked up by the next pass.
type FileSource struct {
	Path string
}

type fileDoc struct {
	Tokens []types.Asset `yaml:"tokens"`
}

func (f FileSource) Assets(context.Context) ([]types.Asset, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	// допускаем и голый список, и {tokens: [...]}
	var list []types.Asset
	if err := yaml.Unmarshal(b, &list); err != nil {
		var doc fileDoc
		if err2 := yaml.Unmarshal(b, &doc); err2 != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Path, err)
		}
		list = doc.Tokens
	}
	return Clean(list), nil
}

// Write stores assets as a {tokens: [...]} document FileSource can read.
// The file is replaced atomically.
func Write(path string, assets []types.Asset) error {
	b, err := yaml.Marshal(fileDoc{Tokens: Clean(assets)})
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// Clean upper-cases tickers, drops nameless entries and merges duplicates.
// Output is sorted by ticker.
func Clean(in []types.Asset) []types.Asset {
	byName := make(map[string]types.Asset, len(in))
	for _, a := range in {
		name := strings.ToUpper(strings.TrimSpace(a.Name))
		if name == "" {
			continue
		}
		cur, ok := byName[name]
		if !ok {
			cur = types.Asset{Name: name, Blockchains: map[string]string{}}
		}
		for n, addr := range a.Blockchains {
			if addr = strings.TrimSpace(addr); addr != "" {
				cur.Blockchains[n] = addr
			}
		}
		byName[name] = cur
	}
	out := make([]types.Asset, 0, len(byName))
	for _, a := range byName {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
