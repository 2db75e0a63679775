package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/tablemeta/internal/cli/config"
	"github.com/conduit-lang/tablemeta/internal/invalidate"
)

type cli struct {
	t          *testing.T
	configPath string
	answer     bool
	asked      []string
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	old := color.NoColor
	t.Cleanup(func() { color.NoColor = old })

	dir := t.TempDir()
	configPath := filepath.Join(dir, "tablemeta.yml")
	content := "data_dir: " + filepath.Join(dir, "odk") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	return &cli{t: t, configPath: configPath}
}

func (c *cli) run(args ...string) (string, string, error) {
	c.t.Helper()

	opts := &globalOptions{confirm: func(message string) (bool, error) {
		c.asked = append(c.asked, message)
		return c.answer, nil
	}}
	root := newRootCommand(opts)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", c.configPath, "--no-color"}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, stderr, err := c.run(args...)
	require.NoError(c.t, err, "stderr: %s", stderr)
	return out
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "tablemeta", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"version", "tables", "sync"})

	for _, flag := range []string{"config", "namespace", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.Equal(t, "n", cmd.PersistentFlags().Lookup("namespace").Shorthand)
}

func TestVersionCommand(t *testing.T) {
	Version, GitCommit = "1.0.0-test", "abc123"
	t.Cleanup(func() { Version, GitCommit = "dev", "unknown" })

	out := newCLI(t).mustRun("version")
	assert.Contains(t, out, "tablemeta version: 1.0.0-test")
	assert.Contains(t, out, "Git commit: abc123")
	assert.Contains(t, out, "Go version: go")
}

func TestTablesAddListShow(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("tables", "list")
	assert.Contains(t, out, "No tables in namespace 'default'")

	out = c.mustRun("tables", "add", "households", "--display-name", "Households",
		"--column", "name:string", "--column", "home:geopoint")
	assert.Contains(t, out, "✓ Created table households in namespace default")

	out = c.mustRun("tables", "list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"households", "Households", "SPREADSHEET", "6", "-1"}, strings.Fields(lines[2]))

	out = c.mustRun("tables", "show", "households")
	assert.Contains(t, out, "Households\n──────────")
	assert.Contains(t, out, `"Households"`)
	assert.Contains(t, out, "name, home_latitude, home_longitude, home_altitude, home_accuracy")
	assert.Contains(t, out, "home_latitude")
	assert.Contains(t, out, "= in_conflict")
	assert.Contains(t, out, "#ef9a9a")
}

func TestTablesAddInvalidColumn(t *testing.T) {
	c := newCLI(t)

	_, _, err := c.run("tables", "add", "households", "--column", "name:blob")
	assert.ErrorContains(t, err, `invalid column "name:blob"`)

	out := c.mustRun("tables", "list")
	assert.Contains(t, out, "No tables")
}

func TestTablesAddDuplicate(t *testing.T) {
	c := newCLI(t)
	c.mustRun("tables", "add", "households")

	_, _, err := c.run("tables", "add", "households")
	assert.Error(t, err)
}

func TestTablesNamespaces(t *testing.T) {
	c := newCLI(t)
	c.mustRun("tables", "add", "households", "-n", "survey")

	out := c.mustRun("tables", "list")
	assert.Contains(t, out, "No tables in namespace 'default'")

	out = c.mustRun("tables", "list", "--namespace", "survey")
	assert.Contains(t, out, "households")
}

func TestTablesUnknownTableSuggests(t *testing.T) {
	c := newCLI(t)
	c.mustRun("tables", "add", "households")
	c.mustRun("tables", "add", "people")

	_, stderr, err := c.run("tables", "show", "houshold")
	require.Error(t, err)
	assert.Contains(t, stderr, "TABLE NOT FOUND: houshold")
	assert.Contains(t, stderr, "Did you mean: households?")
}

func TestTablesSet(t *testing.T) {
	c := newCLI(t)
	c.mustRun("tables", "add", "visits", "--column", "when:dateTime", "--column", "count:integer")

	out := c.mustRun("tables", "set", "visits",
		"--default-view", "LIST", "--list-view", "list.html",
		"--sort-column", "when", "--sort-order", "DESC",
		"--group-by", "count", "--column-order", "count,when")
	assert.Contains(t, out, "Updated 6 setting(s) of visits")

	out = c.mustRun("tables", "show", "visits")
	for _, want := range []string{"LIST", "list.html", "DESC", "count, when"} {
		assert.Contains(t, out, want)
	}

	out = c.mustRun("tables", "set", "visits")
	assert.Contains(t, out, "nothing to change")

	_, _, err := c.run("tables", "set", "visits", "--default-view", "list")
	assert.ErrorContains(t, err, "unknown view type")
}

func TestTablesViews(t *testing.T) {
	c := newCLI(t)
	c.mustRun("tables", "add", "trips", "--column", "home:geopoint")

	out := c.mustRun("tables", "views", "trips")
	assert.Regexp(t, `MAP\s+yes`, out)
	assert.Regexp(t, `GRAPH\s+yes`, out)
	assert.Regexp(t, `LIST\s+no`, out)
	assert.Contains(t, out, "Map columns: latitude=home_latitude longitude=home_longitude")
}

func TestTablesViewsFixesDefault(t *testing.T) {
	c := newCLI(t)
	c.mustRun("tables", "add", "notes", "--column", "body:string")
	c.mustRun("tables", "set", "notes", "--default-view", "MAP")

	out := c.mustRun("tables", "views", "notes")
	assert.Contains(t, out, "default view MAP is not available")

	out = c.mustRun("tables", "views", "notes", "--fix")
	assert.Contains(t, out, "Default view set to SPREADSHEET")

	out = c.mustRun("tables", "list")
	assert.Contains(t, out, "SPREADSHEET")
}

func TestTablesDelete(t *testing.T) {
	c := newCLI(t)
	c.mustRun("tables", "add", "households")

	out := c.mustRun("tables", "delete", "households")
	assert.Contains(t, out, "Aborted")
	require.Len(t, c.asked, 1)
	assert.Contains(t, c.asked[0], "households")

	c.answer = true
	out = c.mustRun("tables", "delete", "households")
	assert.Contains(t, out, "Deleted table households")

	c.mustRun("tables", "add", "people")
	c.answer = false
	out = c.mustRun("tables", "delete", "people", "--yes")
	assert.Contains(t, out, "Deleted table people")
	assert.Len(t, c.asked, 2)

	out = c.mustRun("tables", "list")
	assert.Contains(t, out, "No tables")
}

func TestTablesRefresh(t *testing.T) {
	c := newCLI(t)
	c.mustRun("tables", "add", "households")
	c.mustRun("tables", "add", "people")

	out := c.mustRun("tables", "refresh", "people")
	assert.Contains(t, out, "Refreshed people")

	out = c.mustRun("tables", "refresh", "--all")
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "Refreshed 2 table(s)")

	_, _, err := c.run("tables", "refresh")
	assert.Error(t, err)
}

func TestSyncCommands(t *testing.T) {
	c := newCLI(t)
	c.mustRun("tables", "add", "visits")

	out := c.mustRun("sync", "data-etag", "visits", "d1")
	assert.Contains(t, out, "Data etag:   d1")

	out = c.mustRun("sync", "schema-etag", "visits", "s1")
	assert.Contains(t, out, "Schema etag: s1")
	assert.Contains(t, out, "Data etag:   -")

	out = c.mustRun("sync", "sync-time", "visits", "2024-03-01T10:00:00Z")
	assert.Contains(t, out, "Last sync:   2024-03-01T10:00:00Z")

	out = c.mustRun("sync", "schema-etag", "visits", "--clear")
	assert.Contains(t, out, "Schema etag: -")

	_, _, err := c.run("sync", "data-etag", "visits")
	assert.Error(t, err, "an etag or --clear is required")
}

func TestConfigErrors(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(c.configPath, []byte("database:\n  driver: mysql\n"), 0o644))

	_, stderr, err := c.run("tables", "list")
	require.Error(t, err)
	assert.Contains(t, stderr, "CONFIGURATION ERROR")
}

func TestNewAppUsesMemoryTrackerWithoutRedis(t *testing.T) {
	c := newCLI(t)
	cfg, err := config.Load(c.configPath)
	require.NoError(t, err)

	app, err := NewApp(cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &invalidate.MemoryTracker{}, app.tracker)
}
