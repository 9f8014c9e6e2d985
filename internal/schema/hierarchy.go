package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// ErrAttributeNotFound is returned when a class names an attribute that has
// no definition in the schema.
var ErrAttributeNotFound = errors.New("attribute not found in schema")

// topClass is the root of every superclass chain; it is its own parent.
const topClass = "top"

// ResolvedClass is a class together with everything it inherits from its
// superclass chain and its auxiliary classes.
type ResolvedClass struct {
	*Class

	// Ancestors lists the classes visited while resolving, starting with
	// the class itself.
	Ancestors []string

	// Mandatory and Optional are disjoint and sorted by name. An attribute
	// that is both mandatory and optional is reported as mandatory.
	Mandatory []*Attribute
	Optional  []*Attribute
}

// ClassHierarchy walks the subClassOf chain up to top and every auxiliary
// class reachable from it, collecting inherited mandatory and optional
// attributes.
func (s *Schema) ClassHierarchy(ctx context.Context, class *Class) (*ResolvedClass, error) {
	if class == nil {
		return nil, fmt.Errorf("class cannot be nil")
	}

	start := time.Now()
	visited := map[string]bool{strings.ToLower(class.Name): true}
	ancestors := []string{class.Name}
	queue := []*Class{class}

	var must, may []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		must = append(must, current.MustContain...)
		may = append(may, current.MayContain...)

		related := append([]string{current.SubClassOf}, current.AuxiliaryClasses...)
		for _, name := range related {
			key := strings.ToLower(name)
			if name == "" || visited[key] {
				continue
			}
			visited[key] = true

			next, err := s.FindClass(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s inherited by %s: %w", name, class.Name, err)
			}
			ancestors = append(ancestors, next.Name)
			queue = append(queue, next)
		}
	}

	mandatoryNames := dedupeFold(must)
	mandatorySet := make(map[string]bool, len(mandatoryNames))
	for _, name := range mandatoryNames {
		mandatorySet[strings.ToLower(name)] = true
	}

	var optionalNames []string
	for _, name := range dedupeFold(may) {
		if !mandatorySet[strings.ToLower(name)] {
			optionalNames = append(optionalNames, name)
		}
	}

	definitions, err := s.Attributes(ctx, append(append([]string{}, mandatoryNames...), optionalNames...))
	if err != nil {
		return nil, fmt.Errorf("failed to read attributes of %s: %w", class.Name, err)
	}

	mandatory, missingMandatory := pick(definitions, mandatoryNames)
	optional, missingOptional := pick(definitions, optionalNames)
	if missing := append(missingMandatory, missingOptional...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s references %s", ErrAttributeNotFound, class.Name, strings.Join(missing, ", "))
	}

	resolved := &ResolvedClass{
		Class:     class,
		Ancestors: ancestors,
		Mandatory: mandatory,
		Optional:  optional,
	}

	tflog.SubsystemDebug(ctx, Subsystem, "Resolved class hierarchy", map[string]any{
		"class":          class.Name,
		"schema_id_guid": class.SchemaIDGUID.String(),
		"ancestors":   ancestors,
		"mandatory":   len(resolved.Mandatory),
		"optional":    len(resolved.Optional),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return resolved, nil
}

// pick returns the definitions for names sorted by name, along with the names
// that have no definition.
func pick(definitions map[string]*Attribute, names []string) ([]*Attribute, []string) {
	attrs := make([]*Attribute, 0, len(names))
	var missing []string
	for _, name := range names {
		attr, ok := definitions[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		attrs = append(attrs, attr)
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Name < attrs[j].Name
	})
	return attrs, missing
}

// dedupeFold removes case-insensitive duplicates, keeping first occurrences
// in order.
func dedupeFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	unique := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, v)
	}
	return unique
}
