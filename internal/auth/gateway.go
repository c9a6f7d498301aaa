package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vyrodovalexey/authgw/internal/audit"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

// ClientIPResolver resolves the effective client IP for a request.
// Resolve returns the effective IP plus the raw proxy-header IP when one
// was trusted, empty otherwise.
type ClientIPResolver interface {
	Resolve(r *http.Request) (clientIP, forwardedIP string)
}

// remoteAddrResolver trusts only the transport peer address.
type remoteAddrResolver struct{}

func (remoteAddrResolver) Resolve(r *http.Request) (string, string) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr), ""
	}
	return host, ""
}

// Gateway is the dispatch filter: it routes each request to the strategy
// matching its path prefix, records the decision, and denies with the
// uniform envelope. Requests matching no prefix pass through untouched.
type Gateway struct {
	routes   Routes
	resolver ClientIPResolver
	audit    audit.Logger
	logger   observability.Logger
	metrics  *Metrics
}

// GatewayOption is a functional option for the gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger sets the logger.
func WithGatewayLogger(logger observability.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithGatewayMetrics sets the metrics.
func WithGatewayMetrics(metrics *Metrics) GatewayOption {
	return func(g *Gateway) {
		g.metrics = metrics
	}
}

// WithGatewayAuditLogger sets the audit logger.
func WithGatewayAuditLogger(l audit.Logger) GatewayOption {
	return func(g *Gateway) {
		g.audit = l
	}
}

// WithGatewayClientIPResolver sets the client IP resolver. The default
// trusts only the transport peer address.
func WithGatewayClientIPResolver(resolver ClientIPResolver) GatewayOption {
	return func(g *Gateway) {
		g.resolver = resolver
	}
}

// NewGateway creates a gateway over the given routing table.
func NewGateway(routes Routes, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		routes:   routes,
		resolver: remoteAddrResolver{},
		audit:    audit.NewNopLogger(),
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.metrics == nil {
		g.metrics = NewMetrics("authgw")
	}
	names := make([]string, 0, len(routes))
	for _, route := range routes {
		if route.Strategy != nil {
			names = append(names, route.Strategy.Name())
		}
	}
	g.metrics.Init(names...)

	return g
}

// HTTPMiddleware returns the gateway as standard HTTP middleware.
func (g *Gateway) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.Dispatch(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// Dispatch routes the request to its strategy and reports whether the
// request may proceed. Requests matching no prefix pass through; denials
// have the envelope already written.
func (g *Gateway) Dispatch(w http.ResponseWriter, r *http.Request) bool {
	strategy := g.routes.Match(r.URL.Path)
	if strategy == nil {
		return true
	}
	return g.Authorize(w, r, strategy)
}

// Authorize runs the strategy for the request and writes the denial
// envelope when it fails. It returns true when the request may proceed.
func (g *Gateway) Authorize(w http.ResponseWriter, r *http.Request, strategy Strategy) bool {
	start := time.Now()
	rc := g.newRequestContext(r)

	err := g.authenticate(r.Context(), strategy, rc)
	duration := time.Since(start)

	if err == nil {
		g.metrics.RecordDecision(strategy.Name(), decisionAllowed, duration)
		g.recordAllow(r, strategy, rc)
		return true
	}

	var authErr *Error
	if errors.As(err, &authErr) {
		g.metrics.RecordDecision(strategy.Name(), decisionDenied, duration)
		g.recordDenial(r, strategy, rc, authErr)
	} else {
		// Internal failure. Fail closed; the cause reaches only the
		// audit log.
		g.metrics.RecordDecision(strategy.Name(), decisionError, duration)
		g.recordInternal(r, strategy, rc, err)
		authErr = ErrCredentialNotFound
	}

	WriteDenial(w, authErr)
	return false
}

// authenticate invokes the strategy with a panic guard. A panicking
// strategy is reported as an internal failure, never to the client.
func (g *Gateway) authenticate(ctx context.Context, strategy Strategy, rc *RequestContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("authentication panic: %v", rec)
		}
	}()
	return strategy.Authenticate(ctx, rc)
}

// newRequestContext builds the per-request decision context.
func (g *Gateway) newRequestContext(r *http.Request) *RequestContext {
	clientIP, forwardedIP := g.resolver.Resolve(r)
	return &RequestContext{
		Path:        r.URL.Path,
		Header:      r.Header,
		RemoteAddr:  r.RemoteAddr,
		ForwardedIP: forwardedIP,
		ClientIP:    clientIP,
	}
}

func (g *Gateway) recordAllow(r *http.Request, strategy Strategy, rc *RequestContext) {
	entry := audit.NewEntry(audit.SeverityInfo, audit.CategoryAuthentication, audit.ModuleSecurity, strategy.Name(), "authenticate").
		WithData(rc.ServiceCode, decisionAllowed).
		WithMessage("request authenticated")
	g.audit.Record(r.Context(), entry, nil, r)
}

func (g *Gateway) recordDenial(r *http.Request, strategy Strategy, rc *RequestContext, authErr *Error) {
	entry := audit.NewEntry(audit.SeverityWarning, audit.CategoryAuthentication, audit.ModuleSecurity, strategy.Name(), "authenticate").
		WithData(rc.ServiceCode, decisionDenied).
		WithMessage(authErr.Message)

	// IP allow-list rejections carry the list and both IP sources so an
	// operator can tell a proxy misconfiguration from a real violation.
	if errors.Is(authErr, ErrIPNotAllowed) {
		entry.WithAdditionalData(fmt.Sprintf(
			"allowedIps=%s forwardedIp=%s remoteAddr=%s",
			strings.Join(rc.DeniedAllowList, ","), rc.ForwardedIP, rc.RemoteAddr,
		))
	}

	g.audit.Record(r.Context(), entry, authErr, r)
}

func (g *Gateway) recordInternal(r *http.Request, strategy Strategy, rc *RequestContext, err error) {
	g.logger.Error("authentication internal failure",
		observability.String("strategy", strategy.Name()),
		observability.String("path", rc.Path),
		observability.Error(err),
	)
	entry := audit.NewEntry(audit.SeverityError, audit.CategoryException, audit.ModuleSecurity, strategy.Name(), "authenticate").
		WithData(rc.ServiceCode, decisionError).
		WithMessage("authentication failed internally")
	g.audit.Record(r.Context(), entry, err, r)
}
