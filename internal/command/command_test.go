package command

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/ad-schema-reporter/internal/ldap"
)

type testApp struct {
	*App
	env       *testEnv
	source    *fakeSource
	stdout    bytes.Buffer
	connected int
	closed    int
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ta := &testApp{env: newTestEnv(t, false), source: newFakeSource()}
	ta.App = &App{
		Version: "1.2.3",
		Connect: func(ctx context.Context, config *ldapclient.ConnectionConfig) (SchemaSource, func() error, error) {
			ta.connected++
			return ta.source, func() error { ta.closed++; return nil }, nil
		},
		LoadEnv: func() (*ldapclient.ConnectionConfig, error) {
			config := ldapclient.DefaultConfig()
			config.Domain = "example.com"
			return config, nil
		},
		Logging: func(ctx context.Context, level hclog.Level) context.Context {
			return initializeSubsystems(ctx, level)
		},
		Clipboard: ta.env.clipboard,
		Viewer:    ta.env.viewer,
		Now:       func() time.Time { return runTime },
		Writer:    &ta.stdout,
		ErrWriter: &ta.stdout,
	}
	return ta
}

func (ta *testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	return ta.Run(t.Context(), append([]string{"adschema", "--output-dir", ta.env.dir}, args...))
}

func TestApp_DefaultRun(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run(t))
	assert.Equal(t, []string{"SchemaReport-User-20261019-120000.html"}, ta.env.files(t))
	assert.Equal(t, 1, ta.connected)
	assert.Equal(t, 1, ta.closed)
}

func TestApp_PowerShellAliases(t *testing.T) {
	ta := newTestApp(t)

	err := ta.run(t, "--ClassName", "User,Computer", "--ReportType", "csvfile", "--ReportType", "XMLFile", "--ReportName", "Audit")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"Audit-User.csv", "Audit-User.xml",
		"Audit-Computer.csv", "Audit-Computer.xml",
	}, ta.env.files(t))
}

func TestApp_ListClasses(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run(t, "--list-classes", "--report-type", "HTMLClipboard", "--view-output"))
	assert.Len(t, ta.env.clipboard.contents, 1)
	assert.Empty(t, ta.env.viewer.opened)
	assert.Empty(t, ta.env.files(t))
}

func TestApp_ViewOutput(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run(t, "--ViewOutput", "--report-type", "CSVFile"))
	assert.Len(t, ta.env.viewer.opened, 1)
}

func TestApp_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "list and class name conflict",
			args: []string{"--list-classes", "--class-name", "User"},
			want: "cannot be used together",
		},
		{
			name: "unknown report type",
			args: []string{"--report-type", "PDFFile"},
			want: "unknown report type",
		},
		{
			name: "empty class name",
			args: []string{"--class-name", " , "},
			want: "at least one class name",
		},
		{
			name: "unknown encoding",
			args: []string{"--encoding", "latin1"},
			want: "unknown encoding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)

			err := ta.run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Zero(t, ta.connected, "the directory must not be contacted")
		})
	}
}

func TestApp_StartupFailures(t *testing.T) {
	t.Run("configuration", func(t *testing.T) {
		ta := newTestApp(t)
		ta.LoadEnv = func() (*ldapclient.ConnectionConfig, error) {
			return nil, errors.New("no directory configured")
		}

		require.EqualError(t, ta.run(t), "no directory configured")
		assert.Zero(t, ta.connected)
	})

	t.Run("connection", func(t *testing.T) {
		ta := newTestApp(t)
		ta.Connect = func(ctx context.Context, config *ldapclient.ConnectionConfig) (SchemaSource, func() error, error) {
			return nil, nil, ldapclient.NewLDAPError("connect", errors.New("connection refused"))
		}

		err := ta.run(t)
		require.Error(t, err)
		assert.True(t, ldapclient.IsConnectionError(err))
		assert.Empty(t, ta.env.files(t))
	})

	t.Run("constructed attributes", func(t *testing.T) {
		ta := newTestApp(t)
		ta.source.constructedErr = errors.New("timeout")

		require.Error(t, ta.run(t))
		assert.Equal(t, 1, ta.closed, "the connection is closed on failure")
	})
}

func TestApp_Version(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.Run(t.Context(), []string{"adschema", "--version"}))
	assert.Contains(t, ta.stdout.String(), "1.2.3")
	assert.Zero(t, ta.connected)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"User", "Computer", "group"}, splitList([]string{"User, Computer", "", " group "}))
	assert.Nil(t, splitList([]string{" , "}))
}

func TestApp_StartupLogRedactsPassword(t *testing.T) {
	ta := newTestApp(t)
	var logs bytes.Buffer
	ta.Logging = func(ctx context.Context, level hclog.Level) context.Context {
		return initializeSubsystems(tflogtest.RootLogger(ctx, &logs), hclog.Debug)
	}
	ta.LoadEnv = func() (*ldapclient.ConnectionConfig, error) {
		config := ldapclient.DefaultConfig()
		config.Domain = "example.com"
		config.BaseDN = "DC=example,DC=com"
		config.Username = "reader@example.com"
		config.Password = "hunter2"
		return config, nil
	}

	require.NoError(t, ta.run(t, "--report-type", "CSVFile"))

	assert.NotContains(t, logs.String(), "hunter2")
	start := findLog(decodeLogs(t, &logs), "debug", "Starting schema report")
	require.NotNil(t, start)
	assert.Equal(t, "[REDACTED]", start["password"])
	assert.Equal(t, "reader@example.com", start["username"])
	assert.Equal(t, "DC=example,DC=com", start["base_dn"])
	assert.Equal(t, "simple", start["auth_method"])
}
