package command

import (
	"context"
	"fmt"

	ldapclient "github.com/isometry/ad-schema-reporter/internal/ldap"
	"github.com/isometry/ad-schema-reporter/internal/schema"
)

// SchemaSource is the read-only schema access the reports are built from.
// *schema.Schema implements it.
type SchemaSource interface {
	ListAllClasses(ctx context.Context) ([]*schema.Class, error)
	FindClass(ctx context.Context, name string) (*schema.Class, error)
	ClassHierarchy(ctx context.Context, class *schema.Class) (*schema.ResolvedClass, error)
	FindConstructedAttributeNames(ctx context.Context) (schema.NameSet, error)
}

// Connector opens a SchemaSource. The returned close function releases the
// underlying connection.
type Connector func(ctx context.Context, config *ldapclient.ConnectionConfig) (SchemaSource, func() error, error)

// ConnectDirectory connects to the directory and opens its schema.
func ConnectDirectory(ctx context.Context, config *ldapclient.ConnectionConfig) (SchemaSource, func() error, error) {
	client, err := ldapclient.NewClient(ctx, config)
	if err != nil {
		return nil, nil, err
	}

	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to directory: %w", err)
	}

	s, err := schema.Open(ctx, client, config.BaseDN)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	s.SetTimeout(config.Timeout)

	return s, client.Close, nil
}
