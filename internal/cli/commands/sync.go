package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/tablemeta/internal/cli/ui"
	"github.com/conduit-lang/tablemeta/internal/props"
)

func newSyncCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Record synchronization state",
		Long: `Record the synchronization state of a table: its schema etag, data etag
and last sync time.

Changing the schema etag clears the data etag in the same transaction.`,
		Example: `  tablemeta sync schema-etag visits 7f3a
  tablemeta sync data-etag visits --clear
  tablemeta sync sync-time visits 2024-03-01T10:00:00Z`,
	}

	cmd.AddCommand(newETagCommand(opts, "schema-etag", "Set the schema etag", (*props.TableProperties).SetSchemaETag))
	cmd.AddCommand(newETagCommand(opts, "data-etag", "Set the data etag", (*props.TableProperties).SetDataETag))
	cmd.AddCommand(newSyncTimeCommand(opts))

	return cmd
}

type etagSetter func(tp *props.TableProperties, ctx context.Context, etag *string) error

func newETagCommand(opts *globalOptions, use, short string, set etagSetter) *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   use + " <table-id> [etag]",
		Short: short,
		Args: func(cmd *cobra.Command, args []string) error {
			if clear {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var etag *string
			if !clear {
				etag = &args[1]
			}

			return opts.withApp(cmd, func(app *App) error {
				tp, err := opts.lookup(ctx, cmd, app, args[0])
				if err != nil {
					return err
				}
				if err := set(tp, ctx, etag); err != nil {
					return err
				}
				printSyncState(cmd, opts, tp)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the etag instead of setting it")

	return cmd
}

func newSyncTimeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-time <table-id> <time>",
		Short: "Set the last sync time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withApp(cmd, func(app *App) error {
				tp, err := opts.lookup(ctx, cmd, app, args[0])
				if err != nil {
					return err
				}
				if err := tp.SetLastSyncTime(ctx, args[1]); err != nil {
					return err
				}
				printSyncState(cmd, opts, tp)
				return nil
			})
		},
	}
}

func printSyncState(cmd *cobra.Command, opts *globalOptions, tp *props.TableProperties) {
	out := cmd.OutOrStdout()
	state := tp.SyncState()

	fmt.Fprintln(out, ui.Success("Updated sync state of "+tp.TableID(), opts.noColor))
	details := ui.NewProperties(out, opts.noColor)
	details.AddOptional("Schema etag", deref(state.SchemaETag), state.SchemaETag != nil)
	details.AddOptional("Data etag", deref(state.DataETag), state.DataETag != nil)
	details.Add("Last sync", state.LastSyncTime)
	details.Render()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
