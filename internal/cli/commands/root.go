package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/tablemeta/internal/cli/config"
	"github.com/conduit-lang/tablemeta/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalOptions carries the persistent flags and the hooks commands use to
// reach their services.
type globalOptions struct {
	configPath string
	namespace  string
	noColor    bool

	// confirm asks a yes/no question; replaced in tests
	confirm func(message string) (bool, error)
}

func surveyConfirm(message string) (bool, error) {
	ok := false
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// loadConfig reads the --config file, or the nearest tablemeta.yml.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		found, err := config.FindConfigFile()
		if err != nil {
			return nil, err
		}
		path = found
	}
	return config.Load(path)
}

// withApp runs fn against a freshly wired App and closes it afterwards.
func (o *globalOptions) withApp(cmd *cobra.Command, fn func(app *App) error) (err error) {
	cfg, err := o.loadConfig()
	if err != nil {
		ui.ConfigProblem(err, o.noColor).Write(cmd.ErrOrStderr())
		return err
	}
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, app.Close())
	}()
	return fn(app)
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&globalOptions{confirm: surveyConfirm})
}

func newRootCommand(opts *globalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tablemeta",
		Short: "Table metadata store for ODK-style data tables",
		Long: color.CyanString(`tablemeta - table metadata store

Manages the structural records, metadata overlay and column catalogs of
data tables, one database per namespace.

Features:
  • Cached table properties with cross-process invalidation
  • Atomic table creation and sync token updates
  • View capability resolution (spreadsheet, list, map, graph)
  • SQLite files or PostgreSQL schemas per namespace`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: nearest tablemeta.yml)")
	flags.StringVarP(&opts.namespace, "namespace", "n", "default", "Namespace (application) to operate on")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newTablesCommand(opts))
	rootCmd.AddCommand(newSyncCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the tablemeta version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			title := color.New(color.FgCyan, color.Bold)
			for _, line := range [][2]string{
				{"tablemeta version: ", Version},
				{"Git commit: ", GitCommit},
				{"Build date: ", BuildDate},
				{"Go version: ", goVer},
			} {
				title.Fprint(out, line[0])
				fmt.Fprintln(out, line[1])
			}
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
