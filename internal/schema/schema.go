package schema

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/ad-schema-reporter/internal/ldap"
)

// Subsystem is the tflog subsystem used by this package.
const Subsystem = "schema"

// MaxFilterBatch is the largest number of names combined into one OR filter.
const MaxFilterBatch = 100

// searchFlagANR marks an attribute as part of ambiguous name resolution.
const searchFlagANR = 0x4

// ErrClassNotFound is returned when a class name does not resolve in the schema.
var ErrClassNotFound = errors.New("class not found in schema")

// Class is a read-only snapshot of a classSchema object.
type Class struct {
	Name             string    // lDAPDisplayName
	CommonName       string    // cn
	SubClassOf       string    // lDAPDisplayName of the parent class
	DN               string    // distinguished name of the classSchema object
	SchemaIDGUID     uuid.UUID // schemaIDGUID; uuid.Nil when absent or malformed
	AuxiliaryClasses []string  // auxiliaryClass + systemAuxiliaryClass
	MustContain      []string  // mustContain + systemMustContain
	MayContain       []string  // mayContain + systemMayContain
}

// Attribute is a read-only snapshot of an attributeSchema object.
type Attribute struct {
	Name           string
	CommonName     string
	OID            string
	Syntax         string
	IsSingleValued bool
	IsInAnr        bool
	RangeLower     *int
	RangeUpper     *int
	Link           string // lDAPDisplayName of the linked partner attribute
	LinkID         *int
}

// Schema is a handle on the schema naming context of the current forest.
type Schema struct {
	client  ldapclient.Client
	dn      string
	timeout time.Duration
}

var classAttributes = []string{
	"lDAPDisplayName",
	"cn",
	"subClassOf",
	"schemaIDGUID",
	"auxiliaryClass",
	"systemAuxiliaryClass",
	"mustContain",
	"systemMustContain",
	"mayContain",
	"systemMayContain",
}

var attributeAttributes = []string{
	"lDAPDisplayName",
	"cn",
	"attributeID",
	"attributeSyntax",
	"oMSyntax",
	"oMObjectClass",
	"isSingleValued",
	"searchFlags",
	"rangeLower",
	"rangeUpper",
	"linkID",
}

// SchemaDN returns the schema naming context of the forest rooted at forestDN.
func SchemaDN(forestDN string) string {
	return "CN=Schema,CN=Configuration," + forestDN
}

// Open locates the schema naming context. A non-empty forestDN names the
// forest root explicitly; otherwise the context is read from the RootDSE.
func Open(ctx context.Context, client ldapclient.Client, forestDN string) (*Schema, error) {
	if client == nil {
		return nil, fmt.Errorf("directory client cannot be nil")
	}

	dn, source := "", "root_dse"
	if forestDN = strings.TrimSpace(forestDN); forestDN != "" {
		if _, err := ldap.ParseDN(forestDN); err != nil {
			return nil, fmt.Errorf("invalid base DN %q: %w", forestDN, err)
		}
		dn, source = SchemaDN(forestDN), "base_dn"
	} else {
		info, err := client.RootDSE(ctx, "schemaNamingContext")
		if err != nil {
			return nil, fmt.Errorf("failed to read schema naming context: %w", err)
		}

		dn = info["schemaNamingContext"]
		if dn == "" {
			return nil, fmt.Errorf("directory did not publish a schemaNamingContext; set a base DN")
		}
	}

	tflog.SubsystemDebug(ctx, Subsystem, "Opened schema", map[string]any{
		"schema_dn": dn,
		"source":    source,
	})

	return &Schema{client: client, dn: dn, timeout: 30 * time.Second}, nil
}

// DN returns the distinguished name of the schema naming context.
func (s *Schema) DN() string {
	return s.dn
}

// SetTimeout sets the server-side time limit applied to schema searches.
func (s *Schema) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// FindClass looks up a class by lDAPDisplayName. The directory matches the
// name case-insensitively.
func (s *Schema) FindClass(ctx context.Context, name string) (*Class, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("class name cannot be empty")
	}

	result, err := s.client.Search(ctx, &ldapclient.SearchRequest{
		BaseDN:     s.dn,
		Scope:      ldapclient.ScopeSingleLevel,
		Filter:     fmt.Sprintf("(&(objectClass=classSchema)(lDAPDisplayName=%s))", ldap.EscapeFilter(name)),
		Attributes: classAttributes,
		SizeLimit:  1,
		TimeLimit:  s.timeout,
	})
	if err != nil {
		return nil, ldapclient.WrapError("find_class", err)
	}

	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}

	return entryToClass(ctx, result.Entries[0])
}

// ListAllClasses returns every classSchema object in the schema.
func (s *Schema) ListAllClasses(ctx context.Context) ([]*Class, error) {
	start := time.Now()

	result, err := s.client.SearchWithPaging(ctx, &ldapclient.SearchRequest{
		BaseDN:     s.dn,
		Scope:      ldapclient.ScopeSingleLevel,
		Filter:     "(objectClass=classSchema)",
		Attributes: classAttributes,
		TimeLimit:  s.timeout,
	})
	if err != nil {
		return nil, ldapclient.WrapError("list_classes", err)
	}

	classes := make([]*Class, 0, len(result.Entries))
	for _, entry := range result.Entries {
		class, err := entryToClass(ctx, entry)
		if err != nil {
			tflog.SubsystemWarn(ctx, Subsystem, "Skipping unreadable class definition", map[string]any{
				"dn":    entry.DN,
				"error": err.Error(),
			})
			continue
		}
		classes = append(classes, class)
	}

	tflog.SubsystemDebug(ctx, Subsystem, "Listed schema classes", map[string]any{
		"class_count": len(classes),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return classes, nil
}

// Attributes returns the definitions of the named attributes keyed by
// lower-cased lDAPDisplayName. Names are queried in OR filters of at most
// MaxFilterBatch terms, and link partners are resolved afterwards.
func (s *Schema) Attributes(ctx context.Context, names []string) (map[string]*Attribute, error) {
	unique := dedupeFold(names)
	attributes := make(map[string]*Attribute, len(unique))

	for batch := range slices.Chunk(unique, MaxFilterBatch) {
		terms := make([]string, len(batch))
		for i, name := range batch {
			terms[i] = fmt.Sprintf("(lDAPDisplayName=%s)", ldap.EscapeFilter(name))
		}

		entries, err := s.searchAttributes(ctx, terms, attributeAttributes)
		if err != nil {
			return nil, ldapclient.WrapError("get_attributes", err)
		}

		for _, entry := range entries {
			attr, err := entryToAttribute(entry)
			if err != nil {
				return nil, err
			}
			attributes[strings.ToLower(attr.Name)] = attr
		}
	}

	if missing := len(unique) - len(attributes); missing > 0 {
		tflog.SubsystemWarn(ctx, Subsystem, "Some attribute definitions were not returned", map[string]any{
			"requested": len(unique),
			"missing":   missing,
		})
	}

	if err := s.resolveLinks(ctx, attributes); err != nil {
		return nil, err
	}

	return attributes, nil
}

// resolveLinks fills in Link for every attribute that has a link ID.
func (s *Schema) resolveLinks(ctx context.Context, attributes map[string]*Attribute) error {
	var partnerIDs []string
	for _, attr := range attributes {
		if id, ok := partnerLinkID(attr); ok {
			partnerIDs = append(partnerIDs, strconv.Itoa(id))
		}
	}
	if len(partnerIDs) == 0 {
		return nil
	}
	slices.Sort(partnerIDs)

	names := make(map[int]string, len(partnerIDs))
	for batch := range slices.Chunk(dedupeFold(partnerIDs), MaxFilterBatch) {
		terms := make([]string, len(batch))
		for i, id := range batch {
			terms[i] = fmt.Sprintf("(linkID=%s)", id)
		}

		entries, err := s.searchAttributes(ctx, terms, []string{"lDAPDisplayName", "linkID"})
		if err != nil {
			return ldapclient.WrapError("resolve_links", err)
		}

		for _, entry := range entries {
			id, err := strconv.Atoi(entry.GetAttributeValue("linkID"))
			if err != nil {
				continue
			}
			names[id] = entry.GetAttributeValue("lDAPDisplayName")
		}
	}

	for _, attr := range attributes {
		if id, ok := partnerLinkID(attr); ok {
			attr.Link = names[id]
		}
	}

	return nil
}

func (s *Schema) searchAttributes(ctx context.Context, terms []string, attributes []string) ([]*ldap.Entry, error) {
	filter := "(&(objectClass=attributeSchema)(|" + strings.Join(terms, "") + "))"

	result, err := s.client.SearchWithPaging(ctx, &ldapclient.SearchRequest{
		BaseDN:     s.dn,
		Scope:      ldapclient.ScopeSingleLevel,
		Filter:     filter,
		Attributes: attributes,
		TimeLimit:  s.timeout,
	})
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// partnerLinkID returns the link ID of the partner attribute: a forward link
// (even) pairs with ID+1, a back link (odd) with ID-1.
func partnerLinkID(attr *Attribute) (int, bool) {
	if attr.LinkID == nil {
		return 0, false
	}
	id := *attr.LinkID
	if id%2 == 0 {
		return id + 1, true
	}
	return id - 1, true
}

func entryToClass(ctx context.Context, entry *ldap.Entry) (*Class, error) {
	if entry == nil {
		return nil, fmt.Errorf("LDAP entry cannot be nil")
	}

	guid, err := ldapclient.ExtractGUID(entry, "schemaIDGUID")
	if err != nil {
		tflog.SubsystemWarn(ctx, Subsystem, "Ignoring malformed schemaIDGUID", map[string]any{
			"dn":    entry.DN,
			"error": err.Error(),
		})
	}

	return &Class{
		Name:             entry.GetAttributeValue("lDAPDisplayName"),
		CommonName:       entry.GetAttributeValue("cn"),
		SubClassOf:       entry.GetAttributeValue("subClassOf"),
		DN:               entry.DN,
		SchemaIDGUID:     guid,
		AuxiliaryClasses: concatValues(entry, "auxiliaryClass", "systemAuxiliaryClass"),
		MustContain:      concatValues(entry, "mustContain", "systemMustContain"),
		MayContain:       concatValues(entry, "mayContain", "systemMayContain"),
	}, nil
}

func entryToAttribute(entry *ldap.Entry) (*Attribute, error) {
	if entry == nil {
		return nil, fmt.Errorf("LDAP entry cannot be nil")
	}

	omSyntax, _ := strconv.Atoi(entry.GetAttributeValue("oMSyntax"))
	searchFlags, _ := strconv.Atoi(entry.GetAttributeValue("searchFlags"))

	return &Attribute{
		Name:           entry.GetAttributeValue("lDAPDisplayName"),
		CommonName:     entry.GetAttributeValue("cn"),
		OID:            entry.GetAttributeValue("attributeID"),
		Syntax:         SyntaxName(entry.GetAttributeValue("attributeSyntax"), omSyntax, entry.GetRawAttributeValue("oMObjectClass")),
		IsSingleValued: strings.EqualFold(entry.GetAttributeValue("isSingleValued"), "TRUE"),
		IsInAnr:        searchFlags&searchFlagANR != 0,
		RangeLower:     optionalInt(entry, "rangeLower"),
		RangeUpper:     optionalInt(entry, "rangeUpper"),
		LinkID:         optionalInt(entry, "linkID"),
	}, nil
}

// optionalInt parses an integer attribute, returning nil when it is absent
// or malformed.
func optionalInt(entry *ldap.Entry, attribute string) *int {
	raw := entry.GetAttributeValue(attribute)
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &value
}

func concatValues(entry *ldap.Entry, attributes ...string) []string {
	var values []string
	for _, attr := range attributes {
		values = append(values, entry.GetAttributeValues(attr)...)
	}
	return values
}
