// Package matcher decides which requests the REST pipeline handles.
package matcher

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/grafana/regexp"

	"github.com/tjfontaine/restkit/internal/core/domain"
	"github.com/tjfontaine/restkit/internal/core/ports"
)

// Func adapts a plain predicate to ports.RequestMatcher.
type Func func(r *http.Request, t domain.RequestType) bool

// Matches implements ports.RequestMatcher.
func (f Func) Matches(r *http.Request, t domain.RequestType) bool {
	return f(r, t)
}

// Config configures a PathMatcher.
type Config struct {
	// Prefixes matches paths starting with any of the given prefixes.
	Prefixes []string
	// Whitelist matches paths against any of the given expressions.
	Whitelist []string
	// Blacklist excludes paths matching any of the given expressions. It
	// wins over Prefixes and Whitelist.
	Blacklist []string
	// Header, when set, must be present on the request.
	Header string
	// SubRequests allows nested dispatch to match.
	SubRequests bool
}

// PathMatcher matches requests by path. It is immutable after New.
type PathMatcher struct {
	prefixes    []string
	whitelist   []*regexp.Regexp
	blacklist   []*regexp.Regexp
	header      string
	subRequests bool
}

// New compiles cfg into a PathMatcher.
func New(cfg Config) (*PathMatcher, error) {
	whitelist, err := compile(cfg.Whitelist)
	if err != nil {
		return nil, fmt.Errorf("whitelist: %w", err)
	}
	blacklist, err := compile(cfg.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("blacklist: %w", err)
	}

	prefixes := make([]string, 0, len(cfg.Prefixes))
	for _, p := range cfg.Prefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}

	return &PathMatcher{
		prefixes:    prefixes,
		whitelist:   whitelist,
		blacklist:   blacklist,
		header:      cfg.Header,
		subRequests: cfg.SubRequests,
	}, nil
}

// MustNew is like New but panics on invalid expressions.
func MustNew(cfg Config) *PathMatcher {
	m, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return m
}

func compile(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Matches implements ports.RequestMatcher.
func (m *PathMatcher) Matches(r *http.Request, t domain.RequestType) bool {
	if t == domain.SubRequest && !m.subRequests {
		return false
	}
	if m.header != "" && r.Header.Get(m.header) == "" {
		return false
	}

	path := r.URL.Path
	for _, re := range m.blacklist {
		if re.MatchString(path) {
			return false
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	for _, re := range m.whitelist {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

var _ ports.RequestMatcher = (*PathMatcher)(nil)
