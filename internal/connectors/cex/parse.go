package cex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// Book is the best bid and best ask of one order book.
type Book struct {
	Bid types.Level
	Ask types.Level
}

type QuoteParser interface {
	Parse(body []byte, pair string) (Book, error)
}

// Path addresses a value inside a decoded JSON document. Segments are object
// keys, array indices, "{pair}" for the venue pair name, or "*" for the first
// value of an object in key order.
type Path []string

func decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", types.ErrUpstream, err)
	}
	return v, nil
}

func (p Path) lookup(v any, pair string) (any, error) {
	for _, seg := range p {
		switch node := v.(type) {
		case map[string]any:
			switch seg {
			case "{pair}":
				seg = pair
			case "*":
				if len(node) == 0 {
					return nil, fmt.Errorf("%w: empty object at *", types.ErrDataAbsent)
				}
				keys := make([]string, 0, len(node))
				for k := range node {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				seg = keys[0]
			}
			next, ok := node[seg]
			if !ok || next == nil {
				return nil, fmt.Errorf("%w: no key %q", types.ErrDataAbsent, seg)
			}
			v = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("%w: index %q into array", types.ErrUpstream, seg)
			}
			if i < 0 || i >= len(node) {
				return nil, fmt.Errorf("%w: index %d of %d", types.ErrDataAbsent, i, len(node))
			}
			v = node[i]
		default:
			return nil, fmt.Errorf("%w: cannot descend into %T at %q", types.ErrUpstream, v, seg)
		}
	}
	return v, nil
}

func (p Path) list(v any, pair string) ([]any, error) {
	n, err := p.lookup(v, pair)
	if err != nil {
		return nil, err
	}
	arr, ok := n.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", types.ErrUpstream, n)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("%w: empty book side", types.ErrDataAbsent)
	}
	return arr, nil
}

func num(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(x)
	case float64:
		return decimal.NewFromFloat(x), nil
	}
	return decimal.Zero, fmt.Errorf("%w: not a number: %T", types.ErrUpstream, v)
}

func level(price, volume any, divisor int64) (types.Level, error) {
	p, err := num(price)
	if err != nil {
		return types.Level{}, fmt.Errorf("%w: price: %v", types.ErrUpstream, err)
	}
	q, err := num(volume)
	if err != nil {
		return types.Level{}, fmt.Errorf("%w: volume: %v", types.ErrUpstream, err)
	}
	if divisor > 1 {
		d := decimal.NewFromInt(divisor)
		p, q = p.Div(d), q.Div(d)
	}
	l := types.Level{Price: p.InexactFloat64(), Volume: q.InexactFloat64()}
	if l.Price <= 0 || l.Volume <= 0 {
		return types.Level{}, fmt.Errorf("%w: non-positive level %v/%v", types.ErrDataAbsent, l.Price, l.Volume)
	}
	return l, nil
}

func pick(arr []any, tail bool) any {
	if tail {
		return arr[len(arr)-1]
	}
	return arr[0]
}

// LevelParser reads [price, volume, ...] arrays. BidTail/AskTail take the best
// level from the end of the list for venues that sort that side ascending.
type LevelParser struct {
	Bids, Asks       Path
	BidTail, AskTail bool
	// Divisor scales integer-encoded prices and volumes.
	Divisor int64
}

func (lp LevelParser) Parse(body []byte, pair string) (Book, error) {
	root, err := decode(body)
	if err != nil {
		return Book{}, err
	}
	side := func(p Path, tail bool) (types.Level, error) {
		arr, err := p.list(root, pair)
		if err != nil {
			return types.Level{}, err
		}
		entry, ok := pick(arr, tail).([]any)
		if !ok || len(entry) < 2 {
			return types.Level{}, fmt.Errorf("%w: malformed level", types.ErrUpstream)
		}
		return level(entry[0], entry[1], lp.Divisor)
	}
	var b Book
	if b.Bid, err = side(lp.Bids, lp.BidTail); err != nil {
		return Book{}, err
	}
	if b.Ask, err = side(lp.Asks, lp.AskTail); err != nil {
		return Book{}, err
	}
	return b, nil
}

// ObjectParser reads lists of {price, volume} objects under named keys.
type ObjectParser struct {
	Bids, Asks Path
	PriceKey   string
	VolumeKey  string
}

func (op ObjectParser) Parse(body []byte, pair string) (Book, error) {
	root, err := decode(body)
	if err != nil {
		return Book{}, err
	}
	side := func(p Path) (types.Level, error) {
		arr, err := p.list(root, pair)
		if err != nil {
			return types.Level{}, err
		}
		entry, ok := arr[0].(map[string]any)
		if !ok {
			return types.Level{}, fmt.Errorf("%w: malformed level", types.ErrUpstream)
		}
		return level(entry[op.PriceKey], entry[op.VolumeKey], 0)
	}
	var b Book
	if b.Bid, err = side(op.Bids); err != nil {
		return Book{}, err
	}
	if b.Ask, err = side(op.Asks); err != nil {
		return Book{}, err
	}
	return b, nil
}

// FlatParser reads sides encoded as [price, volume, price, volume, ...].
type FlatParser struct {
	Bids, Asks Path
}

func (fp FlatParser) Parse(body []byte, pair string) (Book, error) {
	root, err := decode(body)
	if err != nil {
		return Book{}, err
	}
	side := func(p Path) (types.Level, error) {
		arr, err := p.list(root, pair)
		if err != nil {
			return types.Level{}, err
		}
		if len(arr) < 2 {
			return types.Level{}, fmt.Errorf("%w: short flat book", types.ErrUpstream)
		}
		return level(arr[0], arr[1], 0)
	}
	var b Book
	if b.Bid, err = side(fp.Bids); err != nil {
		return Book{}, err
	}
	if b.Ask, err = side(fp.Asks); err != nil {
		return Book{}, err
	}
	return b, nil
}

// SideParser reads a single list of entries tagged with their side (BitMEX L2).
// The highest buy and the lowest sell win.
type SideParser struct {
	Root      Path
	SideKey   string
	BuyValue  string
	SellValue string
	PriceKey  string
	VolumeKey string
}

func (sp SideParser) Parse(body []byte, pair string) (Book, error) {
	root, err := decode(body)
	if err != nil {
		return Book{}, err
	}
	arr, err := sp.Root.list(root, pair)
	if err != nil {
		return Book{}, err
	}
	var (
		b            Book
		haveB, haveA bool
	)
	for _, e := range arr {
		entry, ok := e.(map[string]any)
		if !ok {
			return Book{}, fmt.Errorf("%w: malformed entry", types.ErrUpstream)
		}
		l, err := level(entry[sp.PriceKey], entry[sp.VolumeKey], 0)
		if err != nil {
			return Book{}, err
		}
		switch entry[sp.SideKey] {
		case sp.BuyValue:
			if !haveB || l.Price > b.Bid.Price {
				b.Bid, haveB = l, true
			}
		case sp.SellValue:
			if !haveA || l.Price < b.Ask.Price {
				b.Ask, haveA = l, true
			}
		}
	}
	if !haveB || !haveA {
		return Book{}, fmt.Errorf("%w: one side missing", types.ErrDataAbsent)
	}
	return b, nil
}
