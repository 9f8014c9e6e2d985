package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/keytab"
)

const defaultKrb5ConfPath = "/etc/krb5.conf"

// performKerberosAuth binds conn with GSSAPI using whatever ambient Kerberos
// credentials are available.
func performKerberosAuth(ctx context.Context, conn *ldap.Conn, cfg *ConnectionConfig, server *ServerInfo) error {
	if err := prepareKerberosConfig(cfg); err != nil {
		LogKerberosEvent(ctx, "credentials_missing", map[string]any{"error": err.Error()})
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	krbConf, err := loadKrb5Config(ctx, cfg)
	if err != nil {
		return err
	}

	krbClient, err := newKerberosClient(ctx, cfg, krbConf)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	gssClient := &gssapi.Client{Client: krbClient}
	defer func() {
		_ = gssClient.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(cfg, server)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	if err := conn.GSSAPIBind(gssClient, spn, ""); err != nil {
		LogKerberosEvent(ctx, "bind_failed", map[string]any{"spn": spn, "error": err.Error()})
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	LogKerberosEvent(ctx, "bind_success", map[string]any{"spn": spn})
	return nil
}

// loadKrb5Config reads krb5.conf, or synthesizes a DNS-discovery configuration
// for the realm when the file does not exist.
func loadKrb5Config(ctx context.Context, cfg *ConnectionConfig) (*krb5config.Config, error) {
	if fileExists(cfg.KerberosConfig) {
		conf, err := krb5config.Load(cfg.KerberosConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load Kerberos configuration %s: %w", cfg.KerberosConfig, err)
		}
		return conf, nil
	}

	LogKerberosEvent(ctx, "runtime_config", map[string]any{
		"missing_path": cfg.KerberosConfig,
		"realm":        cfg.KerberosRealm,
	})

	conf, err := krb5config.NewFromString(generateRuntimeKrb5Conf(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to build runtime Kerberos configuration: %w", err)
	}
	return conf, nil
}

// newKerberosClient builds a Kerberos client.
// Priority order: credential cache → keytab → password.
func newKerberosClient(ctx context.Context, cfg *ConnectionConfig, conf *krb5config.Config) (*krb5client.Client, error) {
	for _, path := range []string{cfg.KerberosCCache, getDefaultCCachePath()} {
		if !fileExists(path) {
			continue
		}
		ccache, err := credentials.LoadCCache(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load credential cache %s: %w", path, err)
		}
		LogKerberosEvent(ctx, "ccache_loaded", map[string]any{"path": path})
		return krb5client.NewFromCCache(ccache, conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.Username != "" {
		for _, path := range []string{cfg.KerberosKeytab, getDefaultKeytabPath()} {
			if !fileExists(path) {
				continue
			}
			kt, err := keytab.Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load keytab %s: %w", path, err)
			}
			LogKerberosEvent(ctx, "keytab_loaded", map[string]any{"path": path, "principal": cfg.Username})
			cl := krb5client.NewWithKeytab(cfg.Username, cfg.KerberosRealm, kt, conf, krb5client.DisablePAFXFAST(true))
			return cl, cl.Login()
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		cl := krb5client.NewWithPassword(cfg.Username, cfg.KerberosRealm, cfg.Password, conf, krb5client.DisablePAFXFAST(true))
		return cl, cl.Login()
	}

	return nil, fmt.Errorf("no suitable credentials found for Kerberos authentication")
}

// buildServicePrincipal constructs the LDAP service principal name from server info.
// If cfg.KerberosSPN is set, it overrides the automatic SPN construction.
func buildServicePrincipal(cfg *ConnectionConfig, server *ServerInfo) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("configuration is required for service principal")
	}
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}
	if server == nil || server.Host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}
	return "ldap/" + server.Host, nil
}

// prepareKerberosConfig validates the Kerberos settings and fills in defaults.
func prepareKerberosConfig(cfg *ConnectionConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if cfg.KerberosConfig == "" {
		cfg.KerberosConfig = defaultKrb5ConfPath
	}

	if user, realm, ok := strings.Cut(cfg.Username, "@"); ok && cfg.KerberosRealm == "" {
		cfg.Username = user
		cfg.KerberosRealm = realm
	}

	if cfg.KerberosRealm == "" && cfg.Domain != "" {
		cfg.KerberosRealm = strings.ToUpper(cfg.Domain)
	}

	if cfg.KerberosRealm == "" {
		return fmt.Errorf("kerberos realm is required (set AD_KERBEROS_REALM or include realm in username)")
	}

	hasCCache := fileExists(cfg.KerberosCCache) || fileExists(getDefaultCCachePath())
	hasKeytab := cfg.Username != "" && (fileExists(cfg.KerberosKeytab) || fileExists(getDefaultKeytabPath()))
	hasPassword := cfg.Username != "" && cfg.Password != ""

	if !hasCCache && !hasKeytab && !hasPassword {
		return fmt.Errorf("no suitable Kerberos credentials found: provide a credential cache, a keytab with username, or username and password")
	}

	return nil
}

// generateRuntimeKrb5Conf renders a krb5.conf that relies on DNS SRV records
// to locate the KDCs of the configured realm.
func generateRuntimeKrb5Conf(cfg *ConnectionConfig) string {
	realm := strings.ToUpper(cfg.KerberosRealm)
	domain := strings.ToLower(cfg.KerberosRealm)
	if cfg.Domain != "" {
		domain = strings.ToLower(cfg.Domain)
	}

	return fmt.Sprintf(`[libdefaults]
    default_realm = %[1]s
    dns_lookup_kdc = true
    dns_lookup_realm = false
    rdns = false

[realms]
    %[1]s = {
    }

[domain_realm]
    .%[2]s = %[1]s
    %[2]s = %[1]s
`, realm, domain)
}

// getDefaultCCachePath returns the default credential cache location.
func getDefaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// getDefaultKeytabPath returns the default keytab location.
func getDefaultKeytabPath() string {
	if kt := os.Getenv("KRB5_KTNAME"); kt != "" {
		return strings.TrimPrefix(kt, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
