package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/creasty/defaults"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/ad-schema-reporter/internal/ldap"
	"github.com/isometry/ad-schema-reporter/internal/report"
	"github.com/isometry/ad-schema-reporter/internal/schema"
)

// Options selects what a run reports on and how.
type Options struct {
	ListClasses bool
	ClassNames  []string        `default:"[\"User\"]"`
	Formats     []report.Format `default:"[0]"`
	ReportName  string
}

// Summary counts the (subject, format) pairs of a run.
type Summary struct {
	Succeeded int
	Failed    int
}

// Runner produces the reports of one invocation.
type Runner struct {
	source   SchemaSource
	renderer *report.Renderer
	now      time.Time
}

// NewRunner creates a runner. now stamps autogenerated report names.
func NewRunner(source SchemaSource, renderer *report.Renderer, now time.Time) *Runner {
	return &Runner{source: source, renderer: renderer, now: now}
}

// Run produces every requested report. Failures affecting a single class or
// format are logged and counted; the returned error is reserved for failures
// that prevent the run as a whole.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	if err := defaults.Set(&opts); err != nil {
		return Summary{}, fmt.Errorf("failed to apply run defaults: %w", err)
	}

	var (
		summary Summary
		err     error
	)

	if opts.ListClasses {
		summary, err = r.listClasses(ctx, opts)
	} else {
		summary, err = r.reportClasses(ctx, opts)
	}
	if err != nil {
		return summary, err
	}

	tflog.SubsystemInfo(ctx, Subsystem, "Run complete", map[string]any{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	})

	return summary, nil
}

func (r *Runner) listClasses(ctx context.Context, opts Options) (Summary, error) {
	classes, err := r.source.ListAllClasses(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list schema classes: %w", err)
	}

	records := make([]report.Record, 0, len(classes))
	for _, class := range classes {
		records = append(records, report.ProjectClass(class))
	}
	report.SortRecords(records)

	var summary Summary
	name := report.BaseName(opts.ReportName, report.ClassListSubject, r.now)
	r.renderAll(ctx, &summary, records, report.ClassColumns, name, opts.Formats, map[string]any{"class": report.ClassListSubject})
	return summary, nil
}

func (r *Runner) reportClasses(ctx context.Context, opts Options) (Summary, error) {
	constructed, err := r.source.FindConstructedAttributeNames(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to find constructed attributes: %w", err)
	}
	tflog.SubsystemTrace(ctx, Subsystem, "Loaded constructed attribute names", map[string]any{
		"count": constructed.Len(),
	})

	var summary Summary
	for _, name := range r.expandClassNames(ctx, &summary, opts) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		fields := map[string]any{"class": name}

		records, err := r.classRecords(ctx, name, constructed)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			if isDirectoryFailure(err) {
				return summary, fmt.Errorf("directory unavailable while reading class %s: %w", name, err)
			}
			message := "Failed to resolve class"
			switch {
			case errors.Is(err, schema.ErrClassNotFound):
				message = "Class not found in schema"
			case errors.Is(err, schema.ErrAttributeNotFound):
				message = "Class references undefined attributes"
			}
			fields["error"] = err.Error()
			tflog.SubsystemWarn(ctx, Subsystem, message, fields)
			summary.Failed += len(opts.Formats)
			continue
		}

		display := report.BaseName(opts.ReportName, name, r.now)
		r.renderAll(ctx, &summary, records, report.AttributeColumns, display, opts.Formats, fields)
	}

	return summary, nil
}

// classRecords resolves a class and returns its sorted attribute records.
func (r *Runner) classRecords(ctx context.Context, name string, constructed schema.NameSet) ([]report.Record, error) {
	class, err := r.source.FindClass(ctx, name)
	if err != nil {
		return nil, err
	}

	resolved, err := r.source.ClassHierarchy(ctx, class)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve class %s: %w", name, err)
	}

	properties := schema.ExtractProperties(resolved, constructed)
	records := make([]report.Record, 0, len(properties))
	for _, property := range properties {
		records = append(records, report.ProjectAttribute(property))
	}
	report.SortRecords(records)

	tflog.SubsystemDebug(ctx, Subsystem, "Extracted class properties", map[string]any{
		"class":          name,
		"schema_id_guid": resolved.SchemaIDGUID.String(),
		"ancestors":      resolved.Ancestors,
		"mandatory":      len(resolved.Mandatory),
		"optional":       len(resolved.Optional),
		"properties":     len(records),
	})

	return records, nil
}

// isDirectoryFailure reports whether err came from the directory rather than
// from one class definition. Such a failure affects every remaining class:
// the server is unreachable, the bind was rejected, or the schema container
// does not exist.
func isDirectoryFailure(err error) bool {
	var ldapErr *ldapclient.LDAPError
	if !errors.As(err, &ldapErr) {
		return false
	}
	return ldapclient.IsConnectionError(err) ||
		ldapclient.IsAuthenticationError(err) ||
		ldapclient.IsNotFoundError(err)
}

func (r *Runner) renderAll(ctx context.Context, summary *Summary, records []report.Record, columns []string, name string, formats []report.Format, fields map[string]any) {
	for _, format := range formats {
		rep := report.Report{
			Records:  records,
			Columns:  columns,
			Format:   format,
			BaseName: name,
			Title:    name,
		}

		result, err := r.renderer.Render(ctx, rep)
		if err != nil {
			warnFields := make(map[string]any, len(fields)+2)
			for k, v := range fields {
				warnFields[k] = v
			}
			warnFields["format"] = format.String()
			warnFields["error"] = err.Error()
			tflog.SubsystemWarn(ctx, Subsystem, "Failed to produce report", warnFields)
			summary.Failed++
			continue
		}

		if result.Path != "" {
			tflog.SubsystemDebug(ctx, Subsystem, "Produced report", map[string]any{
				"format": format.String(),
				"path":   result.Path,
				"viewed": result.Viewed,
			})
		}
		summary.Succeeded++
	}
}

// expandClassNames returns the classes to report on. Names containing glob
// metacharacters are matched case-insensitively against every class in the
// schema; a pattern that matches nothing is counted as a failure.
func (r *Runner) expandClassNames(ctx context.Context, summary *Summary, opts Options) []string {
	var (
		names   []string
		seen    = map[string]struct{}{}
		classes []*schema.Class
		listed  bool
	)

	add := func(name string) {
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}

	for _, requested := range opts.ClassNames {
		if !isPattern(requested) {
			add(requested)
			continue
		}

		if !listed {
			var err error
			classes, err = r.source.ListAllClasses(ctx)
			if err != nil {
				tflog.SubsystemWarn(ctx, Subsystem, "Failed to list classes for pattern expansion", map[string]any{
					"error": err.Error(),
				})
			}
			listed = true
		}

		matches, err := matchClasses(requested, classes)
		if err != nil || len(matches) == 0 {
			fields := map[string]any{"class": requested}
			if err != nil {
				fields["error"] = err.Error()
			}
			tflog.SubsystemWarn(ctx, Subsystem, "Class pattern matched no classes", fields)
			summary.Failed += len(opts.Formats)
			continue
		}

		for _, match := range matches {
			add(match)
		}
	}

	return names
}

func isPattern(name string) bool {
	return strings.ContainsAny(name, "*?[{")
}

func matchClasses(pattern string, classes []*schema.Class) ([]string, error) {
	pattern = strings.ToLower(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid class pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	var matches []string
	for _, class := range classes {
		ok, err := doublestar.Match(pattern, strings.ToLower(class.Name))
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, class.Name)
		}
	}
	slices.Sort(matches)
	return matches, nil
}
