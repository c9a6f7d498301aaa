package auth

import (
	"context"
	"net/http"
	"strings"
)

// RequestContext carries the request attributes a strategy decides on, plus
// the decision metadata strategies leave behind for the audit entry. One
// instance is built per dispatched request and never shared.
type RequestContext struct {
	// Path is the request URL path.
	Path string

	// Header holds the request headers.
	Header http.Header

	// RemoteAddr is the transport peer address, host:port.
	RemoteAddr string

	// ForwardedIP is the client IP taken from proxy headers, empty when no
	// trusted proxy header was present.
	ForwardedIP string

	// ClientIP is the effective client IP after trusted-proxy resolution.
	ClientIP string

	// ServiceCode is set by strategies that identify a calling service.
	ServiceCode string

	// DeniedAllowList is set by strategies on an IP allow-list rejection.
	DeniedAllowList []string
}

// HeaderValue returns the trimmed value of the named header.
func (rc *RequestContext) HeaderValue(name string) string {
	return strings.TrimSpace(rc.Header.Get(name))
}

// Strategy authenticates a dispatched request. Implementations are pure
// decision functions over injected state and must be safe for concurrent
// use. Authenticate returns nil to allow, an *Error to deny with that
// code, or any other error for an internal failure the dispatcher turns
// into a generic denial.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Authenticate decides whether the request may proceed.
	Authenticate(ctx context.Context, rc *RequestContext) error
}

// Route binds a URL path prefix to a strategy.
type Route struct {
	Prefix   string
	Strategy Strategy
}

// Routes is an ordered routing table.
type Routes []Route

// Match returns the strategy of the longest matching prefix, or nil when no
// prefix matches. Matching is case-sensitive. Ties on length keep the
// earlier route, so the result is deterministic for any table order.
func (r Routes) Match(path string) Strategy {
	var (
		best    Strategy
		bestLen = -1
	)
	for _, route := range r {
		if route.Prefix == "" || route.Strategy == nil {
			continue
		}
		if strings.HasPrefix(path, route.Prefix) && len(route.Prefix) > bestLen {
			best = route.Strategy
			bestLen = len(route.Prefix)
		}
	}
	return best
}

// containsIP reports whether ip is a member of the allow-list. Entries are
// compared as trimmed literal addresses.
func containsIP(allowList []string, ip string) bool {
	if ip == "" {
		return false
	}
	for _, allowed := range allowList {
		if strings.TrimSpace(allowed) == ip {
			return true
		}
	}
	return false
}
