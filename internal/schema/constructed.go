package schema

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/ad-schema-reporter/internal/ldap"
)

// ConstructedFilter matches attributes whose systemFlags carry the
// FLAG_ATTR_IS_CONSTRUCTED bit (0x4).
const ConstructedFilter = "(&(objectClass=attributeSchema)(systemFlags:1.2.840.113556.1.4.803:=4))"

// NameSet is a set of attribute names with case-insensitive membership.
type NameSet map[string]struct{}

// NewNameSet builds a set from names.
func NewNameSet(names ...string) NameSet {
	set := make(NameSet, len(names))
	for _, name := range names {
		set[strings.ToLower(name)] = struct{}{}
	}
	return set
}

// Contains reports whether name is in the set.
func (s NameSet) Contains(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// Len returns the number of names in the set.
func (s NameSet) Len() int {
	return len(s)
}

// FindConstructedAttributeNames returns the names of all constructed attributes.
func (s *Schema) FindConstructedAttributeNames(ctx context.Context) (NameSet, error) {
	start := time.Now()

	result, err := s.client.SearchWithPaging(ctx, &ldapclient.SearchRequest{
		BaseDN:     s.dn,
		Scope:      ldapclient.ScopeSingleLevel,
		Filter:     ConstructedFilter,
		Attributes: []string{"lDAPDisplayName"},
		TimeLimit:  s.timeout,
	})
	if err != nil {
		return nil, ldapclient.WrapError("find_constructed_attributes", err)
	}

	names := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		if name := entry.GetAttributeValue("lDAPDisplayName"); name != "" {
			names = append(names, name)
		}
	}
	set := NewNameSet(names...)

	tflog.SubsystemDebug(ctx, Subsystem, "Found constructed attributes", map[string]any{
		"count":       set.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return set, nil
}
