package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFromSecretData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr bool
		check   func(t *testing.T, record *Record)
	}{
		{
			name: "minimal record defaults to active",
			data: map[string]interface{}{"authKey": "secretA"},
			check: func(t *testing.T, record *Record) {
				assert.Equal(t, StatusActive, record.Status)
				assert.Empty(t, record.AllowedIPs)
			},
		},
		{
			name: "full record",
			data: map[string]interface{}{
				"authKey":    "hash",
				"hashAlg":    HashAlgSHA256,
				"status":     "inactive",
				"allowedIps": "10.0.0.1, 10.0.0.2",
				"expiresAt":  time.Now().Add(time.Hour).Format(time.RFC3339),
			},
			check: func(t *testing.T, record *Record) {
				assert.Equal(t, StatusInactive, record.Status)
				assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, record.AllowedIPs)
				assert.Equal(t, HashAlgSHA256, record.HashAlg)
				require.NotNil(t, record.ExpiresAt)
			},
		},
		{
			name:    "missing auth key",
			data:    map[string]interface{}{"status": "ACTIVE"},
			wantErr: true,
		},
		{
			name: "invalid expiry",
			data: map[string]interface{}{
				"authKey":   "secretA",
				"expiresAt": "tomorrow",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record, err := recordFromSecretData("svc1", tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "svc1", record.ServiceCode)
			tt.check(t, record)
		})
	}
}

func TestVaultStoreSecretPath(t *testing.T) {
	t.Parallel()

	store, err := NewVaultStore(&VaultConfig{
		Address:    "http://127.0.0.1:8200",
		MountPoint: "secret",
		PathPrefix: "/authgw/credentials/",
	})
	require.NoError(t, err)
	assert.Equal(t, "authgw/credentials/svc1", store.secretPath("svc1"))

	store2, err := NewVaultStore(&VaultConfig{
		Address:    "http://127.0.0.1:8200",
		PathPrefix: "",
	})
	require.NoError(t, err)
	assert.Equal(t, "svc1", store2.secretPath("svc1"))
}
