package command

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflogtest"
	"github.com/stretchr/testify/require"

	"github.com/isometry/ad-schema-reporter/internal/schema"
)

// fakeSource serves a fixed schema from memory.
type fakeSource struct {
	classes        map[string]*schema.ResolvedClass
	constructed    schema.NameSet
	listErr        error
	constructedErr error
	findErrs       map[string]error

	listCalls int
	lookups   []string
}

func (f *fakeSource) ListAllClasses(ctx context.Context) ([]*schema.Class, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	classes := make([]*schema.Class, 0, len(f.classes))
	for _, resolved := range f.classes {
		classes = append(classes, resolved.Class)
	}
	slices.SortFunc(classes, func(a, b *schema.Class) int {
		return strings.Compare(a.Name, b.Name)
	})
	return classes, nil
}

func (f *fakeSource) FindClass(ctx context.Context, name string) (*schema.Class, error) {
	f.lookups = append(f.lookups, name)
	if err := f.findErrs[strings.ToLower(name)]; err != nil {
		return nil, err
	}
	resolved, ok := f.classes[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrClassNotFound, name)
	}
	return resolved.Class, nil
}

func (f *fakeSource) ClassHierarchy(ctx context.Context, class *schema.Class) (*schema.ResolvedClass, error) {
	resolved, ok := f.classes[strings.ToLower(class.Name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrClassNotFound, class.Name)
	}
	return resolved, nil
}

func (f *fakeSource) FindConstructedAttributeNames(ctx context.Context) (schema.NameSet, error) {
	if f.constructedErr != nil {
		return nil, f.constructedErr
	}
	return f.constructed, nil
}

func attribute(name string) *schema.Attribute {
	return &schema.Attribute{
		Name:       name,
		CommonName: strings.ToUpper(name[:1]) + name[1:],
		OID:        "1.2.840.113556.1.4." + fmt.Sprint(len(name)),
		Syntax:     schema.SyntaxDirectoryString,
	}
}

func resolvedClass(name, superior string, mandatory, optional []string) *schema.ResolvedClass {
	rc := &schema.ResolvedClass{
		Class:     &schema.Class{Name: name, CommonName: strings.ToUpper(name[:1]) + name[1:], SubClassOf: superior},
		Ancestors: []string{name, superior},
	}
	for _, n := range mandatory {
		rc.Mandatory = append(rc.Mandatory, attribute(n))
	}
	for _, n := range optional {
		rc.Optional = append(rc.Optional, attribute(n))
	}
	return rc
}

// newFakeSource returns a schema with user, computer, person and organizationalPerson.
func newFakeSource() *fakeSource {
	return &fakeSource{
		classes: map[string]*schema.ResolvedClass{
			"user":                 resolvedClass("user", "organizationalPerson", []string{"objectClass", "cn"}, []string{"sAMAccountName", "tokenGroups", "userPrincipalName"}),
			"computer":             resolvedClass("computer", "user", []string{"objectClass", "cn"}, []string{"dNSHostName", "sAMAccountName"}),
			"person":               resolvedClass("person", "top", []string{"objectClass", "cn"}, []string{"sn", "telephoneNumber"}),
			"organizationalperson": resolvedClass("organizationalPerson", "person", []string{"objectClass", "cn"}, []string{"sn", "title"}),
		},
		constructed: schema.NewNameSet("tokenGroups"),
	}
}

// captureLogs returns a context logging JSON lines into the returned buffer.
func captureLogs(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	var output bytes.Buffer
	ctx := tflogtest.RootLogger(t.Context(), &output)
	return initializeSubsystems(ctx, hclog.Debug), &output
}

func decodeLogs(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()
	entries, err := tflogtest.MultilineJSONDecode(output)
	require.NoError(t, err)
	return entries
}

// findLog returns the first entry with the given level and message.
func findLog(entries []map[string]any, level, message string) map[string]any {
	for _, entry := range entries {
		if entry["@level"] == level && entry["@message"] == message {
			return entry
		}
	}
	return nil
}
