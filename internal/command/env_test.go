package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/ad-schema-reporter/internal/ldap"
)

var connectionEnvVars = []string{
	EnvDomain, EnvLDAPURL, EnvBaseDN, EnvUsername, EnvPassword,
	EnvKerberosRealm, EnvKerberosKeytab, EnvKerberosConfig, EnvKerberosCCache, EnvKerberosSPN,
	EnvUseTLS, EnvSkipTLSVerify, EnvConnectTimeout, EnvPageSize,
}

// clearConnectionEnv unsets every AD_* variable for the duration of the test.
func clearConnectionEnv(t *testing.T) {
	t.Helper()
	for _, name := range connectionEnvVars {
		t.Setenv(name, "")
	}
}

func TestLoadConnectionConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, config *ldapclient.ConnectionConfig)
		wantErr string
	}{
		{
			name: "domain only binds anonymously",
			env:  map[string]string{EnvDomain: "example.com"},
			check: func(t *testing.T, config *ldapclient.ConnectionConfig) {
				assert.Equal(t, "example.com", config.Domain)
				assert.Empty(t, config.LDAPURLs)
				assert.Equal(t, 30*time.Second, config.Timeout)
				assert.True(t, config.UseTLS)
				assert.False(t, config.TLSConfig.InsecureSkipVerify)
				assert.Equal(t, uint32(1000), config.PageSize)
				assert.Equal(t, ldapclient.AuthMethodAnonymous, config.GetAuthMethod())
			},
		},
		{
			name: "explicit URL and simple bind",
			env: map[string]string{
				EnvLDAPURL:        "ldaps://dc1.example.com:636",
				EnvBaseDN:         "DC=example,DC=com",
				EnvUsername:       "reader@example.com",
				EnvPassword:       "secret",
				EnvConnectTimeout: "10",
				EnvPageSize:       "250",
			},
			check: func(t *testing.T, config *ldapclient.ConnectionConfig) {
				assert.Equal(t, []string{"ldaps://dc1.example.com:636"}, config.LDAPURLs)
				assert.Equal(t, "DC=example,DC=com", config.BaseDN)
				assert.Equal(t, 10*time.Second, config.Timeout)
				assert.Equal(t, uint32(250), config.PageSize)
				assert.Equal(t, ldapclient.AuthMethodSimpleBind, config.GetAuthMethod())
			},
		},
		{
			name: "kerberos with credential cache",
			env: map[string]string{
				EnvDomain:         "example.com",
				EnvKerberosRealm:  "EXAMPLE.COM",
				EnvKerberosCCache: "/tmp/krb5cc_1000",
				EnvKerberosSPN:    "ldap/dc1.example.com",
			},
			check: func(t *testing.T, config *ldapclient.ConnectionConfig) {
				assert.Equal(t, "EXAMPLE.COM", config.KerberosRealm)
				assert.Equal(t, "/tmp/krb5cc_1000", config.KerberosCCache)
				assert.Equal(t, "ldap/dc1.example.com", config.KerberosSPN)
				assert.Equal(t, ldapclient.AuthMethodKerberos, config.GetAuthMethod())
			},
		},
		{
			name: "TLS switches",
			env: map[string]string{
				EnvDomain:        "example.com",
				EnvUseTLS:        "false",
				EnvSkipTLSVerify: "true",
			},
			check: func(t *testing.T, config *ldapclient.ConnectionConfig) {
				assert.False(t, config.UseTLS)
				assert.True(t, config.TLSConfig.InsecureSkipVerify)
			},
		},
		{
			name:    "no directory",
			env:     map[string]string{},
			wantErr: "no directory configured",
		},
		{
			name:    "username without password",
			env:     map[string]string{EnvDomain: "example.com", EnvUsername: "reader"},
			wantErr: "must be set together",
		},
		{
			name:    "invalid boolean",
			env:     map[string]string{EnvDomain: "example.com", EnvUseTLS: "maybe"},
			wantErr: EnvUseTLS,
		},
		{
			name:    "invalid timeout",
			env:     map[string]string{EnvDomain: "example.com", EnvConnectTimeout: "30s"},
			wantErr: EnvConnectTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConnectionEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			config, err := LoadConnectionConfig()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}
