package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "session-signing-secret"

func signHMACToken(t *testing.T, secret string, mutate func(*jwt.Builder)) string {
	t.Helper()

	builder := jwt.NewBuilder().
		Issuer("https://issuer.example.com").
		Audience([]string{"authgw"}).
		Subject("user-42").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	if mutate != nil {
		mutate(builder)
	}

	token, err := builder.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(secret)))
	require.NoError(t, err)
	return string(signed)
}

func TestJWTValidator_HMAC(t *testing.T) {
	t.Parallel()

	v, err := NewJWTValidator(context.Background(), &Config{
		HMACSecret: testSecret,
		Issuer:     "https://issuer.example.com",
		Audience:   "authgw",
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		valid bool
	}{
		{
			name:  "valid token",
			token: signHMACToken(t, testSecret, nil),
			valid: true,
		},
		{
			name:  "wrong secret",
			token: signHMACToken(t, "some-other-secret", nil),
			valid: false,
		},
		{
			name: "expired",
			token: signHMACToken(t, testSecret, func(b *jwt.Builder) {
				b.Expiration(time.Now().Add(-time.Hour))
			}),
			valid: false,
		},
		{
			name: "wrong issuer",
			token: signHMACToken(t, testSecret, func(b *jwt.Builder) {
				b.Issuer("https://rogue.example.com")
			}),
			valid: false,
		},
		{
			name: "wrong audience",
			token: signHMACToken(t, testSecret, func(b *jwt.Builder) {
				b.Audience([]string{"something-else"})
			}),
			valid: false,
		},
		{
			name:  "garbage token",
			token: "not-a-jwt",
			valid: false,
		},
		{
			name:  "empty token",
			token: "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			valid, err := v.Validate(context.Background(), tt.token)
			assert.NoError(t, err)
			assert.Equal(t, tt.valid, valid)
		})
	}
}

func TestJWTValidator_KeySet(t *testing.T) {
	t.Parallel()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signingKey, err := jwk.FromRaw(privateKey)
	require.NoError(t, err)
	require.NoError(t, signingKey.Set(jwk.KeyIDKey, "test-key-id"))

	publicKey, err := jwk.FromRaw(privateKey.Public())
	require.NoError(t, err)
	require.NoError(t, publicKey.Set(jwk.KeyIDKey, "test-key-id"))

	keySet := jwk.NewSet()
	require.NoError(t, keySet.AddKey(publicKey))

	v, err := NewJWTValidator(context.Background(), &Config{
		JWKSURL: "https://issuer.example.com/.well-known/jwks.json",
	}, WithKeySet(keySet))
	require.NoError(t, err)

	token, err := jwt.NewBuilder().
		Subject("user-42").
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, signingKey))
	require.NoError(t, err)

	valid, err := v.Validate(context.Background(), string(signed))
	assert.NoError(t, err)
	assert.True(t, valid)

	valid, err = v.Validate(context.Background(), "bogus")
	assert.NoError(t, err)
	assert.False(t, valid)
}

func TestJWTValidator_ClockSkew(t *testing.T) {
	t.Parallel()

	v, err := NewJWTValidator(context.Background(), &Config{
		HMACSecret: testSecret,
		ClockSkew:  2 * time.Minute,
	})
	require.NoError(t, err)

	barelyExpired := signHMACToken(t, testSecret, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(-30 * time.Second))
	})

	valid, err := v.Validate(context.Background(), barelyExpired)
	assert.NoError(t, err)
	assert.True(t, valid)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "hmac only", config: &Config{HMACSecret: "s"}, wantErr: false},
		{name: "jwks only", config: &Config{JWKSURL: "https://x/jwks.json"}, wantErr: false},
		{name: "neither", config: &Config{}, wantErr: true},
		{name: "both", config: &Config{HMACSecret: "s", JWKSURL: "https://x"}, wantErr: true},
		{name: "nil", config: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
