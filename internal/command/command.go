// Package command implements the adschema command line.
package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/urfave/cli/v3"

	ldapclient "github.com/isometry/ad-schema-reporter/internal/ldap"
	"github.com/isometry/ad-schema-reporter/internal/report"
)

// Flag names. Each also accepts the PowerShell-style spelling as an alias.
const (
	flagListClasses = "list-classes"
	flagClassName   = "class-name"
	flagReportType  = "report-type"
	flagReportName  = "report-name"
	flagViewOutput  = "view-output"
	flagOutputDir   = "output-dir"
	flagEncoding    = "encoding"
	flagVerbose     = "verbose"
)

// App wires the command line to its collaborators. The zero value is not
// usable; create one with New.
type App struct {
	Version string

	Connect   Connector
	LoadEnv   func() (*ldapclient.ConnectionConfig, error)
	Logging   func(ctx context.Context, level hclog.Level) context.Context
	Clipboard report.Clipboard
	Viewer    report.Viewer
	Now       func() time.Time

	Writer    io.Writer
	ErrWriter io.Writer
}

// New returns an App talking to the real directory, clipboard and viewer.
func New(version string) *App {
	return &App{
		Version:   version,
		Connect:   ConnectDirectory,
		LoadEnv:   LoadConnectionConfig,
		Logging:   configureLogging,
		Clipboard: report.SystemClipboard{},
		Viewer:    report.SystemViewer{},
		Now:       time.Now,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
	}
}

// Run parses args and executes the command.
func (a *App) Run(ctx context.Context, args []string) error {
	return a.Command().Run(ctx, args)
}

// Command builds the root command.
func (a *App) Command() *cli.Command {
	return &cli.Command{
		Name:    "adschema",
		Usage:   "Report the Active Directory schema as HTML, XML or CSV",
		Version: a.Version,
		Description: "Connects to the directory named by the AD_* environment variables and writes\n" +
			"one report per class and report type, or a single list of every class.",
		Writer:          a.Writer,
		ErrWriter:       a.ErrWriter,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagListClasses,
				Aliases: []string{"ListClasses"},
				Usage:   "report the list of all schema classes instead of class attributes",
			},
			&cli.StringSliceFlag{
				Name:    flagClassName,
				Aliases: []string{"ClassName"},
				Usage:   "classes to report on; wildcards (*, ?, [..], {..}) match case-insensitively",
				Value:   []string{"User"},
			},
			&cli.StringSliceFlag{
				Name:    flagReportType,
				Aliases: []string{"ReportType"},
				Usage:   "report types: " + strings.Join(report.FormatNames(), ", "),
				Value:   []string{report.FormatHTMLFile.String()},
			},
			&cli.StringFlag{
				Name:    flagReportName,
				Aliases: []string{"ReportName"},
				Usage:   "base name of the reports (default: SchemaReport-<class>-<timestamp>)",
			},
			&cli.BoolFlag{
				Name:    flagViewOutput,
				Aliases: []string{"ViewOutput"},
				Usage:   "open written reports with the default application",
			},
			&cli.StringFlag{
				Name:  flagOutputDir,
				Usage: "directory reports are written to",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  flagEncoding,
				Usage: "encoding of written reports: utf8, utf8bom or unicode",
				Value: string(report.EncodingUTF8),
			},
			&cli.BoolFlag{
				Name:  flagVerbose,
				Usage: "log at debug level",
			},
		},
		Action: a.action,
	}
}

func (a *App) action(ctx context.Context, cmd *cli.Command) error {
	opts, err := parseOptions(cmd)
	if err != nil {
		return err
	}

	level, err := LogLevel(cmd.Bool(flagVerbose))
	if err != nil {
		return err
	}
	ctx = a.Logging(ctx, level)

	renderer, err := report.NewRenderer(report.Options{
		OutputDir:  cmd.String(flagOutputDir),
		Encoding:   report.Encoding(cmd.String(flagEncoding)),
		ViewOutput: cmd.Bool(flagViewOutput),
		Clipboard:  a.Clipboard,
		Viewer:     a.Viewer,
	})
	if err != nil {
		return err
	}

	config, err := a.LoadEnv()
	if err != nil {
		return err
	}

	start := a.Now()
	tflog.SubsystemDebug(ctx, Subsystem, "Starting schema report", ldapclient.SanitizeFields(map[string]any{
		"list_classes": opts.ListClasses,
		"class_names":  opts.ClassNames,
		"report_types": formatNames(opts.Formats),
		"auth_method":  config.GetAuthMethod().String(),
		"domain":       config.Domain,
		"ldap_urls":    config.LDAPURLs,
		"base_dn":      config.BaseDN,
		"username":     config.Username,
		"password":     config.Password,
	}))

	source, closeSource, err := a.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSource(); err != nil {
			tflog.SubsystemWarn(ctx, Subsystem, "Failed to close directory connection", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	_, err = NewRunner(source, renderer, start).Run(ctx, opts)
	return err
}

// parseOptions validates the report selection flags.
func parseOptions(cmd *cli.Command) (Options, error) {
	opts := Options{
		ListClasses: cmd.Bool(flagListClasses),
		ReportName:  strings.TrimSpace(cmd.String(flagReportName)),
	}

	if opts.ListClasses && cmd.IsSet(flagClassName) {
		return Options{}, fmt.Errorf("--%s and --%s cannot be used together", flagListClasses, flagClassName)
	}

	opts.ClassNames = splitList(cmd.StringSlice(flagClassName))
	if !opts.ListClasses && len(opts.ClassNames) == 0 {
		return Options{}, fmt.Errorf("--%s requires at least one class name", flagClassName)
	}

	for _, name := range splitList(cmd.StringSlice(flagReportType)) {
		format, err := report.ParseFormat(name)
		if err != nil {
			return Options{}, err
		}
		if !slices.Contains(opts.Formats, format) {
			opts.Formats = append(opts.Formats, format)
		}
	}
	if len(opts.Formats) == 0 {
		return Options{}, fmt.Errorf("--%s requires at least one report type", flagReportType)
	}

	return opts, nil
}

// splitList flattens comma-separated values and drops empty entries.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func formatNames(formats []report.Format) []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.String()
	}
	return names
}
