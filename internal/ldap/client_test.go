package ldap

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  *ConnectionConfig
		wantErr bool
	}{
		{
			name: "default config with URLs",
			config: func() *ConnectionConfig {
				cfg := DefaultConfig()
				cfg.LDAPURLs = []string{"ldaps://dc1.example.com:636"}
				return cfg
			}(),
			wantErr: false,
		},
		{
			name: "default config with domain",
			config: func() *ConnectionConfig {
				cfg := DefaultConfig()
				cfg.Domain = "example.com"
				return cfg
			}(),
			wantErr: false,
		},
		{
			name: "invalid config - no domain or URLs",
			config: &ConnectionConfig{
				Timeout:  15 * time.Second,
				PageSize: 500,
			},
			wantErr: true,
		},
		{
			name: "invalid config - zero timeout",
			config: &ConnectionConfig{
				LDAPURLs: []string{"ldaps://dc1.example.com:636"},
				PageSize: 500,
			},
			wantErr: true,
		},
		{
			name: "invalid config - zero page size",
			config: &ConnectionConfig{
				LDAPURLs: []string{"ldaps://dc1.example.com:636"},
				Timeout:  15 * time.Second,
			},
			wantErr: true,
		},
		{
			name:    "nil config uses defaults without a location",
			config:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(t.Context(), tt.config)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, client)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, client)
			assert.NoError(t, client.Close())
		})
	}
}

func TestClient_Close(t *testing.T) {
	config := DefaultConfig()
	config.LDAPURLs = []string{"ldaps://dc1.example.com:636"}

	client, err := NewClient(t.Context(), config)
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	// Double close should not panic or error
	assert.NoError(t, client.Close())
}

func TestClient_SearchBeforeConnect(t *testing.T) {
	config := DefaultConfig()
	config.LDAPURLs = []string{"ldaps://dc1.example.com:636"}

	client, err := NewClient(t.Context(), config)
	require.NoError(t, err)
	defer client.Close()

	req := &SearchRequest{
		BaseDN: "CN=Schema,CN=Configuration,DC=example,DC=com",
		Scope:  ScopeSingleLevel,
		Filter: "(objectClass=classSchema)",
	}

	_, err = client.Search(t.Context(), req)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.SearchWithPaging(t.Context(), req)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.RootDSE(t.Context(), "schemaNamingContext")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_NilSearchRequest(t *testing.T) {
	config := DefaultConfig()
	config.LDAPURLs = []string{"ldaps://dc1.example.com:636"}

	client, err := NewClient(t.Context(), config)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Search(t.Context(), nil)
	assert.Error(t, err)

	_, err = client.SearchWithPaging(t.Context(), nil)
	assert.Error(t, err)
}

func TestClient_ConnectUnreachable(t *testing.T) {
	// Reserve a port, then release it so nothing is listening there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	config := DefaultConfig()
	config.LDAPURLs = []string{"ldap://" + addr}
	config.Timeout = 2 * time.Second
	config.SkipTLS = true

	client, err := NewClient(t.Context(), config)
	require.NoError(t, err)
	defer client.Close()

	err = client.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, IsConnectionError(err), "expected connection category, got %s", GetErrorCategory(err))

	var ldapErr *LDAPError
	require.True(t, errors.As(err, &ldapErr))
	assert.Equal(t, "connect", ldapErr.Operation)
}

func TestDialer_CancelledContext(t *testing.T) {
	config := DefaultConfig()
	config.LDAPURLs = []string{"ldap://dc1.example.com:389", "ldap://dc2.example.com:389"}

	dialer, err := NewDialer(config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, _, err = dialer.Dial(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialer_Servers(t *testing.T) {
	t.Run("configured URLs keep their order", func(t *testing.T) {
		config := DefaultConfig()
		config.LDAPURLs = []string{"ldaps://dc2.example.com", "ldap://dc1.example.com:3268"}

		dialer, err := NewDialer(config)
		require.NoError(t, err)

		servers, err := dialer.servers(t.Context())
		require.NoError(t, err)
		require.Len(t, servers, 2)
		assert.Equal(t, "dc2.example.com", servers[0].Host)
		assert.Equal(t, 636, servers[0].Port)
		assert.Equal(t, 3268, servers[1].Port)
	})

	t.Run("invalid URL", func(t *testing.T) {
		config := DefaultConfig()
		config.LDAPURLs = []string{"https://dc1.example.com"}

		dialer, err := NewDialer(config)
		require.NoError(t, err)

		_, err = dialer.servers(t.Context())
		assert.Error(t, err)
	})

	t.Run("domain uses discovery", func(t *testing.T) {
		config := DefaultConfig()
		config.Domain = "example.com"

		dialer, err := NewDialer(config)
		require.NoError(t, err)
		dialer.discovery = &SRVDiscovery{resolver: &fakeResolver{}}

		servers, err := dialer.servers(t.Context())
		require.NoError(t, err)
		require.Len(t, servers, 2)
		assert.Equal(t, "fallback", servers[0].Source)
	})
}

func TestDialer_TLSConfigFor(t *testing.T) {
	config := DefaultConfig()
	config.LDAPURLs = []string{"ldaps://dc1.example.com"}

	dialer, err := NewDialer(config)
	require.NoError(t, err)

	tlsConfig := dialer.tlsConfigFor(&ServerInfo{Host: "dc1.example.com"})
	assert.Equal(t, "dc1.example.com", tlsConfig.ServerName)
	assert.Empty(t, config.TLSConfig.ServerName, "shared TLS config must not be mutated")
}

func TestToLDAPRequest(t *testing.T) {
	req := &SearchRequest{
		BaseDN:     "CN=Schema,CN=Configuration,DC=example,DC=com",
		Scope:      ScopeSingleLevel,
		Filter:     "(objectClass=attributeSchema)",
		Attributes: []string{"lDAPDisplayName"},
		TimeLimit:  30 * time.Second,
	}

	paging := ldap.NewControlPaging(100)
	got := toLDAPRequest(req, 10, []ldap.Control{paging})

	assert.Equal(t, req.BaseDN, got.BaseDN)
	assert.Equal(t, ldap.ScopeSingleLevel, got.Scope)
	assert.Equal(t, ldap.NeverDerefAliases, got.DerefAliases)
	assert.Equal(t, 10, got.SizeLimit)
	assert.Equal(t, 30, got.TimeLimit)
	assert.Equal(t, req.Filter, got.Filter)
	assert.Equal(t, req.Attributes, got.Attributes)
	assert.Len(t, got.Controls, 1)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.True(t, config.UseTLS)
	assert.False(t, config.SkipTLS)
	assert.Equal(t, uint32(1000), config.PageSize)
	require.NotNil(t, config.TLSConfig)
	assert.False(t, config.TLSConfig.InsecureSkipVerify)
}

func TestConnectionConfig_GetAuthMethod(t *testing.T) {
	tests := []struct {
		name   string
		config *ConnectionConfig
		want   AuthMethod
	}{
		{"anonymous", &ConnectionConfig{}, AuthMethodAnonymous},
		{"username only", &ConnectionConfig{Username: "reader"}, AuthMethodAnonymous},
		{"simple bind", &ConnectionConfig{Username: "reader@example.com", Password: "secret"}, AuthMethodSimpleBind},
		{"kerberos", &ConnectionConfig{KerberosRealm: "EXAMPLE.COM"}, AuthMethodKerberos},
		{"kerberos wins over password", &ConnectionConfig{Username: "reader", Password: "secret", KerberosRealm: "EXAMPLE.COM"}, AuthMethodKerberos},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.GetAuthMethod())
			assert.NotEqual(t, "unknown", tt.config.GetAuthMethod().String())
		})
	}
}
