package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Dialer opens the single directory connection used for a run.
type Dialer struct {
	config    *ConnectionConfig
	discovery *SRVDiscovery
}

// NewDialer creates a dialer for the given configuration.
func NewDialer(config *ConnectionConfig) (*Dialer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Dialer{config: config, discovery: NewSRVDiscovery()}, nil
}

// servers returns candidate servers in preference order.
func (d *Dialer) servers(ctx context.Context) ([]*ServerInfo, error) {
	if len(d.config.LDAPURLs) > 0 {
		servers := make([]*ServerInfo, 0, len(d.config.LDAPURLs))
		for _, u := range d.config.LDAPURLs {
			server, err := ParseLDAPURL(u)
			if err != nil {
				return nil, fmt.Errorf("invalid LDAP URL %s: %w", u, err)
			}
			servers = append(servers, server)
		}
		return servers, nil
	}

	discoveryCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()
	return d.discovery.DiscoverServers(discoveryCtx, d.config.Domain)
}

// Dial connects and authenticates to the first reachable server. Each
// candidate is tried once; there is no retry loop.
func (d *Dialer) Dial(ctx context.Context) (*ldap.Conn, *ServerInfo, error) {
	servers, err := d.servers(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(servers) == 0 {
		return nil, nil, errors.New("no servers discovered")
	}

	var errs []error
	for _, server := range servers {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		fields := map[string]any{
			"url":    ServerInfoToURL(server),
			"source": server.Source,
		}
		LogConnectionEvent(ctx, "connection_attempt", fields)

		start := time.Now()
		conn, err := d.dialServer(ctx, server)
		fields["duration_ms"] = time.Since(start).Milliseconds()
		if err != nil {
			fields["error"] = err.Error()
			LogConnectionEvent(ctx, "connection_failed", fields)
			errs = append(errs, err)
			continue
		}

		fields["auth_method"] = d.config.GetAuthMethod().String()
		LogConnectionEvent(ctx, "connection_established", fields)
		return conn, server, nil
	}

	return nil, nil, NewLDAPError("connect", errors.Join(errs...))
}

// dialServer opens, secures and binds a connection to one server.
func (d *Dialer) dialServer(ctx context.Context, server *ServerInfo) (*ldap.Conn, error) {
	url := ServerInfoToURL(server)
	tlsConfig := d.tlsConfigFor(server)
	netDialer := &net.Dialer{Timeout: d.config.Timeout}

	var conn *ldap.Conn
	var err error
	if server.UseTLS {
		conn, err = ldap.DialURL(url, ldap.DialWithDialer(netDialer), ldap.DialWithTLSConfig(tlsConfig))
	} else {
		conn, err = ldap.DialURL(url, ldap.DialWithDialer(netDialer))
		if err == nil && d.config.UseTLS && !d.config.SkipTLS {
			if tlsErr := conn.StartTLS(tlsConfig); tlsErr != nil {
				conn.Close()
				err = fmt.Errorf("StartTLS failed: %w", tlsErr)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetTimeout(d.config.Timeout)

	if err := d.authenticate(ctx, conn, server); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to authenticate to %s: %w", url, err)
	}

	return conn, nil
}

// authenticate binds using the ambient credentials the configuration describes.
func (d *Dialer) authenticate(ctx context.Context, conn *ldap.Conn, server *ServerInfo) error {
	switch method := d.config.GetAuthMethod(); method {
	case AuthMethodKerberos:
		return performKerberosAuth(ctx, conn, d.config, server)
	case AuthMethodSimpleBind:
		return conn.Bind(d.config.Username, d.config.Password)
	case AuthMethodAnonymous:
		return nil
	default:
		return fmt.Errorf("unsupported authentication method: %s", method.String())
	}
}

func (d *Dialer) tlsConfigFor(server *ServerInfo) *tls.Config {
	var cfg *tls.Config
	if d.config.TLSConfig != nil {
		cfg = d.config.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = server.Host
	}
	return cfg
}

// validateConfig validates the connection configuration.
func validateConfig(config *ConnectionConfig) error {
	if config.Domain == "" && len(config.LDAPURLs) == 0 {
		return errors.New("either domain or LDAP URLs must be specified")
	}
	if config.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if config.PageSize == 0 {
		return errors.New("page size must be positive")
	}
	return nil
}
