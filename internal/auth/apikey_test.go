package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func apiKeyRequestContext(key, clientIP string) *RequestContext {
	h := http.Header{}
	if key != "" {
		h.Set(DefaultAPIKeyHeader, key)
	}
	return &RequestContext{
		Path:     "/client/orders",
		Header:   h,
		ClientIP: clientIP,
	}
}

func TestAPIKeyStrategy_Authenticate(t *testing.T) {
	t.Parallel()

	strategy := NewAPIKeyStrategy(APIKeyConfig{
		Keys:        []string{"key-one", "key-two"},
		AllowedIPs:  []string{"10.0.0.1"},
		ValidateKey: true,
	})

	tests := []struct {
		name     string
		key      string
		clientIP string
		expected error
	}{
		{name: "valid key allowed ip", key: "key-one", clientIP: "10.0.0.1"},
		{name: "second key", key: "key-two", clientIP: "10.0.0.1"},
		{name: "blank key", key: "", expected: ErrClientAuthFailed},
		{name: "whitespace key", key: "   ", expected: ErrClientAuthFailed},
		{name: "unknown key", key: "bogus", clientIP: "10.0.0.1", expected: ErrClientAuthFailed},
		{name: "ip outside allow list", key: "key-one", clientIP: "203.0.113.9", expected: ErrIPNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rc := apiKeyRequestContext(tt.key, tt.clientIP)
			err := strategy.Authenticate(context.Background(), rc)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestAPIKeyStrategy_PresenceOnlyMode(t *testing.T) {
	t.Parallel()

	strategy := NewAPIKeyStrategy(APIKeyConfig{
		Keys:        []string{"key-one"},
		ValidateKey: false,
	})

	// Any non-blank key passes when validation is off.
	rc := apiKeyRequestContext("anything-at-all", "")
	assert.NoError(t, strategy.Authenticate(context.Background(), rc))

	rc = apiKeyRequestContext("", "")
	assert.ErrorIs(t, strategy.Authenticate(context.Background(), rc), ErrClientAuthFailed)
}

func TestAPIKeyStrategy_EmptyAllowListIsUnrestricted(t *testing.T) {
	t.Parallel()

	strategy := NewAPIKeyStrategy(APIKeyConfig{
		Keys:        []string{"key-one"},
		ValidateKey: true,
	})

	rc := apiKeyRequestContext("key-one", "203.0.113.9")
	assert.NoError(t, strategy.Authenticate(context.Background(), rc))
}

func TestAPIKeyStrategy_CustomHeader(t *testing.T) {
	t.Parallel()

	strategy := NewAPIKeyStrategy(APIKeyConfig{Header: "X-Client-Key"})

	h := http.Header{}
	h.Set("X-Client-Key", "whatever")
	rc := &RequestContext{Header: h}

	assert.NoError(t, strategy.Authenticate(context.Background(), rc))
}
