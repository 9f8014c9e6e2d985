package ldap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// ErrNotConnected is returned by searches issued before Connect succeeds.
var ErrNotConnected = errors.New("ldap client is not connected")

// client implements the Client interface over one connection.
type client struct {
	dialer *Dialer
	config *ConnectionConfig

	mu     sync.Mutex
	conn   *ldap.Conn
	server *ServerInfo
}

// NewClient creates a new directory client. The connection is opened by Connect.
func NewClient(ctx context.Context, config *ConnectionConfig) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tflog.SubsystemDebug(ctx, Subsystem, "Creating new LDAP client", map[string]any{
		"domain":          config.Domain,
		"ldap_urls_count": len(config.LDAPURLs),
		"auth_method":     config.GetAuthMethod().String(),
		"use_tls":         config.UseTLS,
	})

	dialer, err := NewDialer(config)
	if err != nil {
		tflog.SubsystemError(ctx, Subsystem, "Failed to create LDAP client", map[string]any{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to create dialer: %w", err)
	}

	return &client{dialer: dialer, config: config}, nil
}

// Connect opens and authenticates the connection, then verifies it with a RootDSE read.
func (c *client) Connect(ctx context.Context) error {
	return LogOperation(ctx, Subsystem, "connect", map[string]any{
		"domain": c.config.Domain,
	}, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.conn != nil {
			return nil
		}

		conn, server, err := c.dialer.Dial(ctx)
		if err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}

		if err := ping(conn); err != nil {
			conn.Close()
			return WrapError("ping", err)
		}

		c.conn = conn
		c.server = server
		return nil
	})
}

// Close closes the connection. Closing twice is harmless.
func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *client) connection() (*ldap.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// Search performs a single LDAP search.
func (c *client) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, fmt.Errorf("search request cannot be nil")
	}

	fields := searchFields(req)
	start := time.Now()
	tflog.SubsystemDebug(ctx, Subsystem, "Starting search operation", fields)

	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := conn.Search(toLDAPRequest(req, req.SizeLimit, nil))
	fields["duration_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		LogLDAPError(ctx, Subsystem, "search", err, fields)
		return nil, WrapError("search", err)
	}

	fields["entries_found"] = len(result.Entries)
	tflog.SubsystemDebug(ctx, Subsystem, "Search operation completed successfully", fields)

	return &SearchResult{
		Entries: result.Entries,
		Total:   len(result.Entries),
		HasMore: req.SizeLimit > 0 && len(result.Entries) >= req.SizeLimit,
	}, nil
}

// SearchWithPaging performs an LDAP search using the simple paged results control.
func (c *client) SearchWithPaging(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, fmt.Errorf("search request cannot be nil")
	}

	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	fields := searchFields(req)
	start := time.Now()
	tflog.SubsystemDebug(ctx, Subsystem, "Starting paged search", fields)

	var entries []*ldap.Entry
	paging := ldap.NewControlPaging(c.config.PageSize)
	page := 0

	for {
		if err := ctx.Err(); err != nil {
			tflog.SubsystemWarn(ctx, Subsystem, "Paged search cancelled by context", map[string]any{
				"pages_completed": page,
				"entries_found":   len(entries),
			})
			return nil, err
		}

		page++
		result, err := conn.Search(toLDAPRequest(req, 0, []ldap.Control{paging}))
		if err != nil {
			fields["page_number"] = page
			LogLDAPError(ctx, Subsystem, "paged_search", err, fields)
			return nil, WrapError("paged search", err)
		}
		entries = append(entries, result.Entries...)

		tflog.SubsystemTrace(ctx, Subsystem, "Completed search page", map[string]any{
			"page_number":     page,
			"entries_in_page": len(result.Entries),
			"total_entries":   len(entries),
		})

		response, ok := ldap.FindControl(result.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging)
		if !ok || len(response.Cookie) == 0 {
			break
		}
		paging.SetCookie(response.Cookie)
	}

	fields["pages_processed"] = page
	fields["total_entries"] = len(entries)
	fields["duration_ms"] = time.Since(start).Milliseconds()
	tflog.SubsystemDebug(ctx, Subsystem, "Paged search completed", fields)

	return &SearchResult{Entries: entries, Total: len(entries)}, nil
}

// RootDSE reads attributes of the root DSE.
func (c *client) RootDSE(ctx context.Context, attributes ...string) (map[string]string, error) {
	result, err := c.Search(ctx, &SearchRequest{
		BaseDN:     "",
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: attributes,
		SizeLimit:  1,
		TimeLimit:  c.config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read root DSE: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("no root DSE found")
	}

	info := make(map[string]string, len(attributes))
	for _, attr := range attributes {
		if value := result.Entries[0].GetAttributeValue(attr); value != "" {
			info[attr] = value
		}
	}
	return info, nil
}

// ping reads the root DSE to prove the bound connection is usable.
func ping(conn *ldap.Conn) error {
	_, err := conn.Search(ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 5, false,
		"(objectClass=*)",
		[]string{"schemaNamingContext"},
		nil,
	))
	return err
}

func toLDAPRequest(req *SearchRequest, sizeLimit int, controls []ldap.Control) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		int(req.DerefAliases),
		sizeLimit,
		int(req.TimeLimit.Seconds()),
		false,
		req.Filter,
		req.Attributes,
		controls,
	)
}

func searchFields(req *SearchRequest) map[string]any {
	return map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     req.Filter,
		"attributes": req.Attributes,
		"size_limit": req.SizeLimit,
	}
}
