// Package audit provides structured audit logging for authentication
// decisions and exceptions. The logger isolates every internal failure: a
// logging problem degrades to a minimal fallback line and never reaches the
// request path.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// Logger is the audit logger interface. Record never panics and never
// returns an error to the caller.
type Logger interface {
	// Record writes one audit entry. err, when non-nil, is attached as the
	// entry's exception; r, when non-nil, contributes request metadata.
	Record(ctx context.Context, entry *Entry, err error, r *http.Request)

	// Close closes the logger.
	Close() error
}

// logger implements the Logger interface.
type logger struct {
	config   *Config
	minLevel Severity
	hostInfo HostInfo
	writer   io.Writer
	mu       sync.Mutex
	logger   observability.Logger
	metrics  *Metrics
	closer   io.Closer
}

// LoggerOption is a functional option for the logger.
type LoggerOption func(*logger)

// WithLoggerLogger sets the observability logger used for fallback writes.
func WithLoggerLogger(l observability.Logger) LoggerOption {
	return func(lg *logger) {
		lg.logger = l
	}
}

// WithLoggerMetrics sets the metrics.
func WithLoggerMetrics(metrics *Metrics) LoggerOption {
	return func(lg *logger) {
		lg.metrics = metrics
	}
}

// WithLoggerWriter sets the writer.
func WithLoggerWriter(writer io.Writer) LoggerOption {
	return func(lg *logger) {
		lg.writer = writer
	}
}

// WithLoggerHostInfo sets pre-resolved host metadata, mainly for tests.
func WithLoggerHostInfo(info HostInfo) LoggerOption {
	return func(lg *logger) {
		lg.hostInfo = info
	}
}

// NewLogger creates a new audit logger. Host metadata and the minimum
// severity are resolved once here and treated as immutable afterwards.
func NewLogger(config *Config, opts ...LoggerOption) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	l := &logger{
		config:   config,
		minLevel: ParseSeverity(config.MinimumLevel),
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.metrics == nil {
		l.metrics = NewMetrics("authgw")
	}

	if l.hostInfo == (HostInfo{}) {
		l.hostInfo = ResolveHostInfo(config.ServerPort)
	}

	if l.writer == nil {
		writer, closer, err := l.createWriter()
		if err != nil {
			return nil, err
		}
		l.writer = writer
		l.closer = closer
	}

	return l, nil
}

// createWriter creates the output writer based on configuration.
func (l *logger) createWriter() (io.Writer, io.Closer, error) {
	switch output := l.config.GetEffectiveOutput(); output {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	default:
		// Path comes from trusted configuration.
		//nolint:gosec // G304: path from config is trusted
		file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit log file: %w", err)
		}
		return file, file, nil
	}
}

// Record writes one audit entry. All failures, including panics raised
// while reading request metadata, are absorbed and replaced with a fallback
// log line.
func (l *logger) Record(ctx context.Context, entry *Entry, err error, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			l.metrics.RecordFailure()
			l.logger.Error("audit record failed",
				observability.Any("panic", rec),
			)
		}
	}()

	if entry == nil {
		return
	}

	// Validate the entry's own level before filtering.
	if !entry.Level.IsValid() {
		entry.Level = SeverityInfo
	}

	if !l.config.Enabled {
		return
	}
	if !entry.Level.AtLeast(l.minLevel) {
		l.metrics.RecordDropped()
		return
	}

	l.populate(ctx, entry, err, r)
	l.metrics.RecordEntry(entry.Level, entry.Category)
	l.writeEntry(entry)
}

// populate fills in the fields the logger owns: timestamps, host metadata,
// exception, trace context and request metadata.
func (l *logger) populate(ctx context.Context, entry *Entry, err error, r *http.Request) {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	entry.Host = l.hostInfo.Host
	entry.IPAddress = l.hostInfo.IPAddress
	entry.Port = l.hostInfo.Port

	if err != nil {
		entry.Exception = err.Error()
	}

	if entry.TraceID == "" {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			entry.TraceID = sc.TraceID().String()
			entry.SpanID = sc.SpanID().String()
		}
	}

	l.attachRequest(entry, r)
}

// attachRequest adds request metadata to the entry. Absent a request the
// URL stays empty and the parameter map stays an empty map. A panic raised
// by request accessors is absorbed and the defaults are kept.
func (l *logger) attachRequest(entry *Entry, r *http.Request) {
	if entry.RequestParams == nil {
		entry.RequestParams = map[string]string{}
	}
	if r == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			entry.URL = ""
			entry.RequestParams = map[string]string{}
			l.logger.Error("audit request metadata extraction failed",
				observability.Any("panic", rec),
			)
		}
	}()

	entry.URL = r.URL.Path

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			entry.RequestParams[key] = values[0]
		}
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		entry.RequestParams["contentType"] = r.Header.Get("Content-Type")
	}
}

// writeEntry serializes and writes the entry. Failures degrade to a
// fallback log line; the entry is never retried.
func (l *logger) writeEntry(entry *Entry) {
	var output []byte

	switch l.config.GetEffectiveFormat() {
	case formatText:
		output = []byte(l.formatText(entry))
	default:
		data, err := json.Marshal(entry)
		if err != nil {
			l.metrics.RecordFailure()
			l.logger.Error("failed to marshal audit entry",
				observability.String("entryId", entry.ID),
				observability.Error(err),
			)
			return
		}
		output = append(data, '\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(output); err != nil {
		l.metrics.RecordFailure()
		l.logger.Error("failed to write audit entry",
			observability.String("entryId", entry.ID),
			observability.Error(err),
		)
	}
}

// formatText formats an entry as a single text line.
func (l *logger) formatText(entry *Entry) string {
	var sb strings.Builder

	sb.WriteString(entry.Time.Format(time.RFC3339))
	sb.WriteString(" ")
	sb.WriteString(string(entry.Level))
	sb.WriteString(" ")
	sb.WriteString(entry.Category)
	sb.WriteString(" ")
	sb.WriteString(entry.Module)
	sb.WriteString(" ")
	sb.WriteString(entry.Origin)
	sb.WriteString(".")
	sb.WriteString(entry.Operation)

	if entry.Message != "" {
		sb.WriteString(" message=")
		sb.WriteString(entry.Message)
	}
	if entry.Exception != "" {
		sb.WriteString(" exception=")
		sb.WriteString(entry.Exception)
	}
	if entry.URL != "" {
		sb.WriteString(" url=")
		sb.WriteString(entry.URL)
	}

	sb.WriteString("\n")
	return sb.String()
}

// Close closes the logger.
func (l *logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// nopLogger is a no-op audit logger.
type nopLogger struct{}

// NewNopLogger creates a new no-op audit logger.
func NewNopLogger() Logger {
	return &nopLogger{}
}

func (l *nopLogger) Record(_ context.Context, _ *Entry, _ error, _ *http.Request) {}

func (l *nopLogger) Close() error { return nil }

// Ensure implementations satisfy the interface.
var (
	_ Logger = (*logger)(nil)
	_ Logger = (*nopLogger)(nil)
)
