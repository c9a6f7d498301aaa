// Package middleware provides the HTTP middleware shared by the gateway
// server: client IP resolution behind trusted proxies, request IDs, and
// per-client rate limiting.
package middleware

import (
	"net"
	"net/http"
	"strings"
)

// Proxy header names consulted during client IP resolution.
const (
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderXRealIP       = "X-Real-IP"
)

// ClientIPExtractor resolves the effective client IP of a request. Proxy
// headers are honored only when the direct peer falls inside a trusted
// CIDR; with no trusted proxies configured the peer address always wins,
// which keeps header spoofing from widening an IP allow-list.
type ClientIPExtractor struct {
	trustedCIDRs []*net.IPNet
}

// NewClientIPExtractor creates an extractor trusting the given proxy
// CIDRs. Plain IP entries are treated as single-host networks. Entries
// that parse as neither are skipped.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	cidrs := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		if _, cidr, err := net.ParseCIDR(proxy); err == nil {
			cidrs = append(cidrs, cidr)
			continue
		}
		if ip := net.ParseIP(proxy); ip != nil {
			cidrs = append(cidrs, hostCIDR(ip))
		}
	}
	return &ClientIPExtractor{trustedCIDRs: cidrs}
}

// hostCIDR wraps a single address as a /32 or /128 network.
func hostCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}

// Extract returns the effective client IP for the request.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	ip, _ := e.Resolve(r)
	return ip
}

// Resolve returns the effective client IP plus the raw forwarded IP when a
// trusted proxy header supplied it, empty otherwise. The second value lets
// audit entries show both sources on an allow-list rejection.
func (e *ClientIPExtractor) Resolve(r *http.Request) (string, string) {
	remoteIP := stripPort(r.RemoteAddr)

	if len(e.trustedCIDRs) == 0 || !e.isTrusted(remoteIP) {
		return remoteIP, ""
	}

	if forwarded := e.forwardedFor(r); forwarded != "" {
		return forwarded, forwarded
	}
	if realIP := strings.TrimSpace(r.Header.Get(HeaderXRealIP)); realIP != "" {
		return realIP, realIP
	}
	return remoteIP, ""
}

// forwardedFor walks X-Forwarded-For right-to-left and returns the first
// entry outside the trusted networks. An empty result means the header was
// absent or every hop was a trusted proxy.
func (e *ClientIPExtractor) forwardedFor(r *http.Request) string {
	xff := r.Header.Get(HeaderXForwardedFor)
	if xff == "" {
		return ""
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !e.isTrusted(hop) {
			return hop
		}
	}
	return ""
}

// isTrusted reports whether the address falls inside a trusted CIDR.
func (e *ClientIPExtractor) isTrusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, cidr := range e.trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// stripPort removes the port from host:port and [host]:port addresses.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
