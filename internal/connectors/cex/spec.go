// Package cex holds the declarative order-book endpoints of the supported
// centralized exchanges and a single adapter that queries any of them.
package cex

import (
	"net/url"
	"strings"
)

// PairFormatter renders a base/quote pair the way a venue names it.
type PairFormatter interface {
	Format(base, quote string) string
}

// Joiner joins base and quote with Sep after applying Rename to each symbol.
type Joiner struct {
	Sep    string
	Lower  bool
	Rename map[string]string
}

func (j Joiner) Format(base, quote string) string {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	if r, ok := j.Rename[base]; ok {
		base = r
	}
	if r, ok := j.Rename[quote]; ok {
		quote = r
	}
	s := base + j.Sep + quote
	if j.Lower {
		s = strings.ToLower(s)
	}
	return s
}

// Spec describes one venue's top-of-book endpoint. Specs are shared between
// rounds and never modified; Request derives a fresh value per call.
type Spec struct {
	Name string
	// URL may contain {pair}.
	URL string
	// Params values may contain {pair}.
	Params  map[string]string
	Headers map[string]string
	Pair    PairFormatter
	Parser  QuoteParser
}

type Request struct {
	Venue   string
	Pair    string
	URL     string
	Headers map[string]string
}

func (s Spec) Request(base, quote string) Request {
	pair := s.Pair.Format(base, quote)
	u := strings.ReplaceAll(s.URL, "{pair}", url.PathEscape(pair))
	if len(s.Params) > 0 {
		q := url.Values{}
		for k, v := range s.Params {
			q.Set(k, strings.ReplaceAll(v, "{pair}", pair))
		}
		u += "?" + q.Encode()
	}
	var h map[string]string
	if len(s.Headers) > 0 {
		h = make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			h[k] = v
		}
	}
	return Request{Venue: s.Name, Pair: pair, URL: u, Headers: h}
}

// WithBaseURL swaps scheme and host of the endpoint, keeping the path. Used
// to point a venue at a mirror or a test server.
func (s Spec) WithBaseURL(base string) Spec {
	rest := s.URL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	path := ""
	if i := strings.Index(rest, "/"); i >= 0 {
		path = rest[i:]
	}
	s.URL = strings.TrimRight(base, "/") + path
	return s
}
