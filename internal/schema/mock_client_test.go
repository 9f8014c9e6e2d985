package schema

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	ldapclient "github.com/isometry/ad-schema-reporter/internal/ldap"
)

const testSchemaDN = "CN=Schema,CN=Configuration,DC=example,DC=com"

// MockClient implements the ldap Client interface for testing schema reads.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockClient) Search(ctx context.Context, req *ldapclient.SearchRequest) (*ldapclient.SearchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	result, ok := args.Get(0).(*ldapclient.SearchResult)
	if !ok {
		return nil, args.Error(1)
	}
	return result, args.Error(1)
}

func (m *MockClient) SearchWithPaging(ctx context.Context, req *ldapclient.SearchRequest) (*ldapclient.SearchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	result, ok := args.Get(0).(*ldapclient.SearchResult)
	if !ok {
		return nil, args.Error(1)
	}
	return result, args.Error(1)
}

func (m *MockClient) RootDSE(ctx context.Context, attributes ...string) (map[string]string, error) {
	args := m.Called(ctx, attributes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	info, ok := args.Get(0).(map[string]string)
	if !ok {
		return nil, args.Error(1)
	}
	return info, args.Error(1)
}

// testClass describes a classSchema entry for tests.
type testClass struct {
	name       string
	subClassOf string
	aux        []string
	must       []string
	systemMust []string
	may        []string
	systemMay  []string
}

func classEntry(c testClass) *ldap.Entry {
	attrs := map[string][]string{
		"lDAPDisplayName":      {c.name},
		"cn":                   {strings.ToUpper(c.name[:1]) + c.name[1:]},
		"subClassOf":           {c.subClassOf},
		"systemAuxiliaryClass": c.aux,
		"mustContain":          c.must,
		"systemMustContain":    c.systemMust,
		"mayContain":           c.may,
		"systemMayContain":     c.systemMay,
	}
	for k, v := range attrs {
		if len(v) == 0 {
			delete(attrs, k)
		}
	}
	return ldap.NewEntry("CN="+c.name+","+testSchemaDN, attrs)
}

// testAttribute describes an attributeSchema entry for tests.
type testAttribute struct {
	name        string
	syntax      string
	omSyntax    int
	single      bool
	searchFlags int
	linkID      *int
	rangeLower  *int
	rangeUpper  *int
}

func attributeEntry(a testAttribute) *ldap.Entry {
	single := "FALSE"
	if a.single {
		single = "TRUE"
	}
	attrs := map[string][]string{
		"lDAPDisplayName": {a.name},
		"cn":              {"CN-" + a.name},
		"attributeID":     {"1.2.840.113556.1.4." + strconv.Itoa(len(a.name))},
		"attributeSyntax": {a.syntax},
		"oMSyntax":        {strconv.Itoa(a.omSyntax)},
		"isSingleValued":  {single},
		"searchFlags":     {strconv.Itoa(a.searchFlags)},
	}
	if a.linkID != nil {
		attrs["linkID"] = []string{strconv.Itoa(*a.linkID)}
	}
	if a.rangeLower != nil {
		attrs["rangeLower"] = []string{strconv.Itoa(*a.rangeLower)}
	}
	if a.rangeUpper != nil {
		attrs["rangeUpper"] = []string{strconv.Itoa(*a.rangeUpper)}
	}
	return ldap.NewEntry("CN=CN-"+a.name+","+testSchemaDN, attrs)
}

// encodeGUID lays out id the way Active Directory stores a binary GUID.
func encodeGUID(id uuid.UUID) []byte {
	raw := make([]byte, ldapclient.GUIDBytesLength)
	raw[0], raw[1], raw[2], raw[3] = id[3], id[2], id[1], id[0]
	raw[4], raw[5] = id[5], id[4]
	raw[6], raw[7] = id[7], id[6]
	copy(raw[8:], id[8:])
	return raw
}

func intPtr(v int) *int {
	return &v
}

// filterHas matches search requests whose filter contains every fragment.
func filterHas(fragments ...string) any {
	return mock.MatchedBy(func(req *ldapclient.SearchRequest) bool {
		for _, f := range fragments {
			if !strings.Contains(req.Filter, f) {
				return false
			}
		}
		return true
	})
}

func newTestSchema(client ldapclient.Client) *Schema {
	return &Schema{client: client, dn: testSchemaDN}
}
