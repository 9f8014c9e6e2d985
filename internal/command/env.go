package command

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"time"

	ldapclient "github.com/isometry/ad-schema-reporter/internal/ldap"
)

// Environment variables describing the directory connection.
const (
	EnvDomain         = "AD_DOMAIN"
	EnvLDAPURL        = "AD_LDAP_URL"
	EnvBaseDN         = "AD_BASE_DN"
	EnvUsername       = "AD_USERNAME"
	EnvPassword       = "AD_PASSWORD"
	EnvKerberosRealm  = "AD_KERBEROS_REALM"
	EnvKerberosKeytab = "AD_KERBEROS_KEYTAB"
	EnvKerberosConfig = "AD_KERBEROS_CONFIG"
	EnvKerberosCCache = "AD_KERBEROS_CCACHE"
	EnvKerberosSPN    = "AD_KERBEROS_SPN"
	EnvUseTLS         = "AD_USE_TLS"
	EnvSkipTLSVerify  = "AD_SKIP_TLS_VERIFY"
	EnvConnectTimeout = "AD_CONNECT_TIMEOUT"
	EnvPageSize       = "AD_PAGE_SIZE"
)

// LoadConnectionConfig builds the directory connection configuration from the
// AD_* environment variables. A Kerberos realm selects GSSAPI with the
// current user's credential cache or keytab; a username and password select a
// simple bind; otherwise the bind is anonymous.
func LoadConnectionConfig() (*ldapclient.ConnectionConfig, error) {
	config := ldapclient.DefaultConfig()

	if domain := getString(EnvDomain); domain != "" {
		config.Domain = domain
	}

	if ldapURL := getString(EnvLDAPURL); ldapURL != "" {
		config.LDAPURLs = []string{ldapURL}
	}

	if baseDN := getString(EnvBaseDN); baseDN != "" {
		config.BaseDN = baseDN
	}

	if config.Domain == "" && len(config.LDAPURLs) == 0 {
		return nil, fmt.Errorf("no directory configured: set %s or %s", EnvDomain, EnvLDAPURL)
	}

	config.Username = getString(EnvUsername)
	config.Password = getString(EnvPassword)
	config.KerberosRealm = getString(EnvKerberosRealm)
	config.KerberosKeytab = getString(EnvKerberosKeytab)
	config.KerberosConfig = getString(EnvKerberosConfig)
	config.KerberosCCache = getString(EnvKerberosCCache)
	config.KerberosSPN = getString(EnvKerberosSPN)

	if (config.Username == "") != (config.Password == "") && config.KerberosRealm == "" {
		return nil, fmt.Errorf("%s and %s must be set together", EnvUsername, EnvPassword)
	}

	useTLS, err := getBool(EnvUseTLS, true)
	if err != nil {
		return nil, err
	}
	config.UseTLS = useTLS

	skipTLSVerify, err := getBool(EnvSkipTLSVerify, false)
	if err != nil {
		return nil, err
	}
	if skipTLSVerify {
		if config.TLSConfig == nil {
			config.TLSConfig = &tls.Config{}
		}
		config.TLSConfig.InsecureSkipVerify = true
	}

	connectTimeout, err := getInt(EnvConnectTimeout, 30)
	if err != nil {
		return nil, err
	}
	if connectTimeout > 0 {
		config.Timeout = time.Duration(connectTimeout) * time.Second
	}

	pageSize, err := getInt(EnvPageSize, int64(config.PageSize))
	if err != nil {
		return nil, err
	}
	if pageSize > 0 {
		config.PageSize = uint32(pageSize)
	}

	return config, nil
}

func getString(envVar string) string {
	return os.Getenv(envVar)
}

func getBool(envVar string, defaultValue bool) (bool, error) {
	envValue := os.Getenv(envVar)
	if envValue == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(envValue)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", envVar, envValue, err)
	}
	return parsed, nil
}

func getInt(envVar string, defaultValue int64) (int64, error) {
	envValue := os.Getenv(envVar)
	if envValue == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(envValue, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envVar, envValue, err)
	}
	return parsed, nil
}
