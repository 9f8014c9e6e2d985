package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/hashicorp/terraform-plugin-log/tfsdklog"

	ldapclient "github.com/isometry/ad-schema-reporter/internal/ldap"
	"github.com/isometry/ad-schema-reporter/internal/report"
	"github.com/isometry/ad-schema-reporter/internal/schema"
)

const (
	// LogName is the root logger name.
	LogName = "adschema"

	// EnvLogLevel overrides the log level; subsystems can be tuned individually
	// with EnvLogLevel + "_" + the upper-cased subsystem name.
	EnvLogLevel = "ADSCHEMA_LOG"

	// Subsystem is the tflog subsystem of the command itself.
	Subsystem = "command"
)

var subsystems = []string{Subsystem, ldapclient.Subsystem, schema.Subsystem, report.Subsystem}

// LogLevel resolves the root log level. verbose selects debug; otherwise
// EnvLogLevel is consulted and info is the default.
func LogLevel(verbose bool) (hclog.Level, error) {
	if verbose {
		return hclog.Debug, nil
	}

	value := strings.TrimSpace(os.Getenv(EnvLogLevel))
	if value == "" {
		return hclog.Info, nil
	}

	level := hclog.LevelFromString(value)
	if level == hclog.NoLevel {
		return hclog.NoLevel, fmt.Errorf("invalid %s %q", EnvLogLevel, value)
	}
	return level, nil
}

// configureLogging installs the root logger writing JSON lines to stderr.
func configureLogging(ctx context.Context, level hclog.Level) context.Context {
	ctx = tfsdklog.NewRootProviderLogger(ctx,
		tfsdklog.WithLogName(LogName),
		tfsdklog.WithLevel(level),
		tfsdklog.WithoutLocation(),
		tfsdklog.WithStderrFromInit(),
	)
	return initializeSubsystems(ctx, level)
}

// initializeSubsystems registers every package subsystem on the root logger in ctx.
func initializeSubsystems(ctx context.Context, level hclog.Level) context.Context {
	for _, name := range subsystems {
		subsystemLevel := level
		if override := hclog.LevelFromString(os.Getenv(EnvLogLevel + "_" + strings.ToUpper(name))); override != hclog.NoLevel {
			subsystemLevel = override
		}
		ctx = tflog.NewSubsystem(ctx, name, tflog.WithLevel(subsystemLevel))
	}
	return ctx
}
