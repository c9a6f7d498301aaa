package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, config *Config) (Logger, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	l, err := NewLogger(config,
		WithLoggerWriter(buf),
		WithLoggerMetrics(NewMetricsWithRegisterer("test", prometheus.NewRegistry())),
		WithLoggerHostInfo(HostInfo{Host: "test-host", IPAddress: "10.0.0.1", Port: "8080"}),
	)
	require.NoError(t, err)

	return l, buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	return decoded
}

func TestLogger_Record(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger(t, DefaultConfig())

	entry := NewEntry(SeverityInfo, CategoryAuthentication, ModuleSecurity, "ServiceAuthFilter", "authenticate").
		WithData("svc1", "allowed").
		WithMessage("service authenticated")
	l.Record(context.Background(), entry, nil, nil)

	decoded := decodeEntry(t, buf)
	assert.Equal(t, "INFO", decoded["level"])
	assert.Equal(t, CategoryAuthentication, decoded["logName"])
	assert.Equal(t, ModuleSecurity, decoded["module"])
	assert.Equal(t, "ServiceAuthFilter", decoded["origin"])
	assert.Equal(t, "authenticate", decoded["operation"])
	assert.Equal(t, "svc1", decoded["data1"])
	assert.Equal(t, "service authenticated", decoded["message"])
	assert.Equal(t, "test-host", decoded["hostName"])
	assert.Equal(t, "10.0.0.1", decoded["ipAddress"])
	assert.Equal(t, "8080", decoded["port"])
	assert.NotEmpty(t, decoded["id"])
	assert.NotEmpty(t, decoded["logTime"])

	// requestParams serializes as an empty object, never null.
	params, ok := decoded["requestParams"].(map[string]any)
	require.True(t, ok)
	assert.Empty(t, params)
}

func TestLogger_RecordWithError(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger(t, DefaultConfig())

	entry := NewEntry(SeverityError, CategoryException, ModuleCommon, "Gateway", "dispatch")
	l.Record(context.Background(), entry, errors.New("store unavailable"), nil)

	decoded := decodeEntry(t, buf)
	assert.Equal(t, "ERROR", decoded["level"])
	assert.Equal(t, "store unavailable", decoded["exception"])
}

func TestLogger_RecordWithRequest(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger(t, DefaultConfig())

	r := httptest.NewRequest(http.MethodGet, "/serviceAuth/ping?verbose=true", nil)
	entry := NewEntry(SeverityInfo, CategoryAuthentication, ModuleSecurity, "ServiceAuthFilter", "authenticate")
	l.Record(context.Background(), entry, nil, r)

	decoded := decodeEntry(t, buf)
	assert.Equal(t, "/serviceAuth/ping", decoded["url"])

	params, ok := decoded["requestParams"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "true", params["verbose"])
}

func TestLogger_RecordPostCapturesContentType(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger(t, DefaultConfig())

	r := httptest.NewRequest(http.MethodPost, "/client/orders", nil)
	r.Header.Set("Content-Type", "application/json")
	entry := NewEntry(SeverityInfo, CategoryAuthentication, ModuleSecurity, "ClientAuthFilter", "authenticate")
	l.Record(context.Background(), entry, nil, r)

	decoded := decodeEntry(t, buf)
	params, ok := decoded["requestParams"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", params["contentType"])
}

func TestLogger_SeverityFiltering(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.MinimumLevel = string(SeverityError)
	l, buf := newTestLogger(t, config)

	l.Record(context.Background(), NewEntry(SeverityInfo, CategoryAuthentication, ModuleSecurity, "f", "op"), nil, nil)
	l.Record(context.Background(), NewEntry(SeverityWarning, CategoryAuthentication, ModuleSecurity, "f", "op"), nil, nil)
	assert.Zero(t, buf.Len())

	l.Record(context.Background(), NewEntry(SeverityError, CategoryException, ModuleSecurity, "f", "op"), nil, nil)
	assert.NotZero(t, buf.Len())
}

func TestLogger_Disabled(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.Enabled = false
	l, buf := newTestLogger(t, config)

	l.Record(context.Background(), NewEntry(SeverityError, CategoryException, ModuleSecurity, "f", "op"), nil, nil)
	assert.Zero(t, buf.Len())
}

func TestLogger_InvalidLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger(t, DefaultConfig())

	entry := NewEntry(SeverityInfo, CategoryAuthentication, ModuleSecurity, "f", "op")
	entry.Level = Severity("TRACE")
	l.Record(context.Background(), entry, nil, nil)

	decoded := decodeEntry(t, buf)
	assert.Equal(t, "INFO", decoded["level"])
}

func TestLogger_NilEntry(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger(t, DefaultConfig())

	assert.NotPanics(t, func() {
		l.Record(context.Background(), nil, nil, nil)
	})
	assert.Zero(t, buf.Len())
}

func TestLogger_MalformedRequestDoesNotPanic(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger(t, DefaultConfig())

	// A request with a nil URL panics inside the metadata accessors; the
	// logger must absorb it and still write the entry.
	r := &http.Request{Method: http.MethodGet}
	entry := NewEntry(SeverityInfo, CategoryAuthentication, ModuleSecurity, "f", "op")

	assert.NotPanics(t, func() {
		l.Record(context.Background(), entry, nil, r)
	})

	decoded := decodeEntry(t, buf)
	assert.Equal(t, "", decoded["url"])
	params, ok := decoded["requestParams"].(map[string]any)
	require.True(t, ok)
	assert.Empty(t, params)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestLogger_WriteFailureAbsorbed(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	metrics := NewMetricsWithRegisterer("test", registry)
	l, err := NewLogger(DefaultConfig(),
		WithLoggerWriter(failingWriter{}),
		WithLoggerMetrics(metrics),
		WithLoggerHostInfo(HostInfo{Host: "h", IPAddress: "i", Port: "p"}),
	)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		l.Record(context.Background(), NewEntry(SeverityError, CategoryException, ModuleSecurity, "f", "op"), nil, nil)
	})
}

func TestLogger_TextFormat(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.Format = formatText
	l, buf := newTestLogger(t, config)

	entry := NewEntry(SeverityWarning, CategoryAuthentication, ModuleSecurity, "ServiceAuthFilter", "authenticate").
		WithMessage("ip rejected")
	l.Record(context.Background(), entry, nil, nil)

	line := buf.String()
	assert.Contains(t, line, "WARNING")
	assert.Contains(t, line, "ServiceAuthFilter.authenticate")
	assert.Contains(t, line, "message=ip rejected")
}

func TestNewLogger_NilConfig(t *testing.T) {
	t.Parallel()

	l, err := NewLogger(nil,
		WithLoggerWriter(&bytes.Buffer{}),
		WithLoggerMetrics(NewMetricsWithRegisterer("test", prometheus.NewRegistry())),
		WithLoggerHostInfo(HostInfo{Host: "h", IPAddress: "i", Port: "p"}),
	)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.NoError(t, l.Close())
}

func TestAtomicLogger_Swap(t *testing.T) {
	t.Parallel()

	first, firstBuf := newTestLogger(t, DefaultConfig())
	second, secondBuf := newTestLogger(t, DefaultConfig())

	a := NewAtomicLogger(first)
	a.Record(context.Background(), NewEntry(SeverityInfo, CategoryAuthentication, ModuleSecurity, "f", "op"), nil, nil)
	assert.NotZero(t, firstBuf.Len())
	assert.Zero(t, secondBuf.Len())

	old := a.Swap(second)
	assert.Equal(t, first, old)

	a.Record(context.Background(), NewEntry(SeverityInfo, CategoryAuthentication, ModuleSecurity, "f", "op"), nil, nil)
	assert.NotZero(t, secondBuf.Len())
}

func TestAtomicLogger_NilFallsBackToNop(t *testing.T) {
	t.Parallel()

	a := NewAtomicLogger(nil)
	assert.NotPanics(t, func() {
		a.Record(context.Background(), NewEntry(SeverityInfo, CategoryAuthentication, ModuleSecurity, "f", "op"), nil, nil)
	})
	assert.NoError(t, a.Close())

	old := a.Swap(nil)
	assert.NotNil(t, old)
}
