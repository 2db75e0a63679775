package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/tablemeta/internal/cli/ui"
	"github.com/conduit-lang/tablemeta/internal/colorrule"
	"github.com/conduit-lang/tablemeta/internal/column"
	"github.com/conduit-lang/tablemeta/internal/props"
	"github.com/conduit-lang/tablemeta/internal/viewcap"
)

func newTablesCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Inspect and manage tables",
		Long: `Inspect and manage the tables of a namespace.

Each table has a structural record (sync tokens), a metadata overlay
(display name, ordering, views) and a column catalog.`,
		Example: `  # List the tables of the default namespace
  tablemeta tables list

  # Create a table with two columns
  tablemeta tables add households --display-name Households --column name:string --column home:geopoint

  # Show the views a table supports
  tablemeta tables views households -n survey`,
	}

	cmd.AddCommand(newTablesListCommand(opts))
	cmd.AddCommand(newTablesShowCommand(opts))
	cmd.AddCommand(newTablesAddCommand(opts))
	cmd.AddCommand(newTablesSetCommand(opts))
	cmd.AddCommand(newTablesDeleteCommand(opts))
	cmd.AddCommand(newTablesRefreshCommand(opts))
	cmd.AddCommand(newTablesViewsCommand(opts))

	return cmd
}

// lookup returns the properties of tableID, printing similar table ids
// when it does not exist.
func (o *globalOptions) lookup(ctx context.Context, cmd *cobra.Command, app *App, tableID string) (*props.TableProperties, error) {
	tp, err := app.Store.Get(ctx, o.namespace, tableID)
	if err != nil && props.IsNotFound(err) {
		if ids, listErr := app.Store.TableIDs(ctx, o.namespace); listErr == nil {
			ui.TableNotFound(o.namespace, tableID, ui.FindSimilar(tableID, ids, nil), o.noColor).Write(cmd.ErrOrStderr())
		}
	}
	return tp, err
}

func newTablesListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withApp(cmd, func(app *App) error {
				tables, err := app.Store.All(ctx, opts.namespace)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(tables) == 0 {
					fmt.Fprintf(out, "No tables in namespace '%s'\n", opts.namespace)
					return nil
				}

				table := ui.NewTable(out, opts.noColor, "Table ID", "Display Name", "Default View", "Columns", "Last Sync")
				for _, tp := range tables {
					n, err := tp.Catalog().Len(ctx)
					if err != nil {
						return err
					}
					table.AddRow(tp.TableID(), tp.LocalizedDisplayName(), tp.DefaultViewType().String(), strconv.Itoa(n), tp.LastSyncTime())
				}
				table.Render()
				return nil
			})
		},
	}
}

func newTablesShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <table-id>",
		Short: "Show a table's properties, columns and status color rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withApp(cmd, func(app *App) error {
				tp, err := opts.lookup(ctx, cmd, app, args[0])
				if err != nil {
					return err
				}
				return showTable(ctx, cmd, opts, tp)
			})
		},
	}
}

func showTable(ctx context.Context, cmd *cobra.Command, opts *globalOptions, tp *props.TableProperties) error {
	out := cmd.OutOrStdout()

	ui.Header(out, tp.LocalizedDisplayName(), opts.noColor)
	details := ui.NewProperties(out, opts.noColor)
	details.Add("Table ID", tp.TableID())
	details.Add("Namespace", tp.Namespace())
	details.Add("Display name", tp.DisplayName())
	etag, ok := tp.SchemaETag()
	details.AddOptional("Schema etag", etag, ok)
	etag, ok = tp.DataETag()
	details.AddOptional("Data etag", etag, ok)
	details.Add("Last sync", tp.LastSyncTime())
	details.Add("Default view", tp.DefaultViewType().String())
	sortCol, ok := tp.SortColumn()
	details.AddOptional("Sort column", sortCol, ok)
	details.Add("Sort order", tp.SortOrder())
	details.AddOptional("Index column", tp.IndexColumn(), tp.IndexColumn() != "")
	details.AddOptional("Group by", strings.Join(tp.GroupByColumns(), ", "), tp.HasGroupByColumns())
	details.Add("Column order", strings.Join(tp.ColumnOrder(), ", "))
	name, ok := tp.ListViewFileName()
	details.AddOptional("List view", name, ok)
	name, ok = tp.DetailViewFileName()
	details.AddOptional("Detail view", name, ok)
	name, ok = tp.MapListViewFileName()
	details.AddOptional("Map list view", name, ok)
	details.Render()
	fmt.Fprintln(out)

	cols, err := tp.Columns(ctx)
	if err != nil {
		return err
	}
	ui.Header(out, "Columns", opts.noColor)
	columns := ui.NewTable(out, opts.noColor, "Element Key", "Display Name", "Type", "Parent", "Persisted", "Visible")
	for _, c := range cols {
		columns.AddRow(c.ElementKey, c.DisplayName, c.Type.String(), c.ParentKey, yesNo(c.UnitOfRetention), yesNo(c.Visible))
	}
	columns.Render()
	fmt.Fprintln(out)

	rules, err := tp.ColorRuleGroup(colorrule.KindStatusColumn, "").Load(ctx)
	if err != nil {
		return err
	}
	ui.Header(out, "Status color rules", opts.noColor)
	table := ui.NewTable(out, opts.noColor, "Column", "Rule", "Foreground", "Background")
	for _, r := range rules {
		table.AddRow(r.ElementKey, r.Operator.Symbol()+" "+r.Value, fmt.Sprintf("#%06x", r.Foreground&0xffffff), fmt.Sprintf("#%06x", r.Background&0xffffff))
	}
	table.Render()
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// parseColumns turns key:type flags into column definitions. Geopoints
// expand into their sub-elements.
func parseColumns(specs []string) ([]column.Definition, error) {
	var defs []column.Definition
	for _, spec := range specs {
		key, typeName, ok := strings.Cut(spec, ":")
		if !ok {
			typeName = "string"
		}
		if key == "" {
			return nil, fmt.Errorf("invalid column %q: missing element key", spec)
		}
		typ, err := column.ParseType(typeName)
		if err != nil {
			return nil, fmt.Errorf("invalid column %q: %w", spec, err)
		}
		if typ == column.TypeGeopoint {
			defs = append(defs, column.Geopoint(key, key)...)
			continue
		}
		defs = append(defs, column.Definition{
			ElementKey:      key,
			ElementName:     key,
			Type:            typ,
			UnitOfRetention: true,
			Visible:         true,
		})
	}
	return defs, nil
}

func newTablesAddCommand(opts *globalOptions) *cobra.Command {
	var (
		displayName string
		columns     []string
	)

	cmd := &cobra.Command{
		Use:   "add <table-id>",
		Short: "Create a table",
		Long: `Create a table with its structural record, default metadata, data table
and default status column color rules.

Columns are given as element-key:type. Geopoint columns expand into
latitude, longitude, altitude and accuracy sub-elements.`,
		Example: `  tablemeta tables add visits --display-name '{"default":"Visits","fr":"Visites"}' --column when:dateTime --column where:geopoint`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			defs, err := parseColumns(columns)
			if err != nil {
				return err
			}

			return opts.withApp(cmd, func(app *App) error {
				tp, err := app.Store.AddTable(ctx, opts.namespace, args[0], displayName)
				if err != nil {
					return err
				}
				if len(defs) > 0 {
					if err := tp.AddColumns(ctx, defs); err != nil {
						return err
					}
				}

				fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Created table %s in namespace %s", tp.TableID(), opts.namespace), opts.noColor))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "Display name, plain text or a JSON locale map (default: the table id)")
	cmd.Flags().StringArrayVar(&columns, "column", nil, "Column as element-key:type (repeatable)")

	return cmd
}

func newTablesSetCommand(opts *globalOptions) *cobra.Command {
	var (
		displayName, defaultView, sortColumn, sortOrder, indexColumn string
		listView, detailView, mapListView                            string
		groupBy, columnOrder                                         []string
	)

	cmd := &cobra.Command{
		Use:   "set <table-id>",
		Short: "Change a table's display metadata",
		Long: `Change a table's display metadata. Only the given flags are applied;
an empty value clears sort column, sort order and view file names.`,
		Example: `  tablemeta tables set visits --default-view LIST --list-view list.html
  tablemeta tables set visits --sort-column when --sort-order DESC`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			changed := cmd.Flags().Changed

			var viewType props.ViewType
			if changed("default-view") {
				vt, err := props.ParseViewType(defaultView)
				if err != nil {
					return err
				}
				viewType = vt
			}

			return opts.withApp(cmd, func(app *App) error {
				tp, err := opts.lookup(ctx, cmd, app, args[0])
				if err != nil {
					return err
				}

				updates := []struct {
					flag  string
					apply func() error
				}{
					{"display-name", func() error { return tp.SetDisplayName(ctx, displayName) }},
					{"default-view", func() error { return tp.SetDefaultViewType(ctx, viewType) }},
					{"sort-column", func() error { return tp.SetSortColumn(ctx, sortColumn) }},
					{"sort-order", func() error { return tp.SetSortOrder(ctx, sortOrder) }},
					{"index-column", func() error { return tp.SetIndexColumn(ctx, indexColumn) }},
					{"group-by", func() error { return tp.SetGroupByColumns(ctx, groupBy) }},
					{"column-order", func() error { return tp.SetColumnOrder(ctx, columnOrder) }},
					{"list-view", func() error { return tp.SetListViewFileName(ctx, listView) }},
					{"detail-view", func() error { return tp.SetDetailViewFileName(ctx, detailView) }},
					{"map-list-view", func() error { return tp.SetMapListViewFileName(ctx, mapListView) }},
				}

				applied := 0
				for _, u := range updates {
					if !changed(u.flag) {
						continue
					}
					if err := u.apply(); err != nil {
						return err
					}
					applied++
				}

				out := cmd.OutOrStdout()
				if applied == 0 {
					ui.Warning("nothing to change; see tablemeta tables set --help", opts.noColor).Write(out)
					return nil
				}
				fmt.Fprintln(out, ui.Success(fmt.Sprintf("Updated %d setting(s) of %s", applied, tp.TableID()), opts.noColor))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&displayName, "display-name", "", "Display name, plain text or a JSON locale map")
	f.StringVar(&defaultView, "default-view", "", "Default view: SPREADSHEET, LIST, MAP or GRAPH")
	f.StringVar(&sortColumn, "sort-column", "", "Sort column element key")
	f.StringVar(&sortOrder, "sort-order", "", "Sort order (ASC or DESC)")
	f.StringVar(&indexColumn, "index-column", "", "Index (frozen) column element key")
	f.StringSliceVar(&groupBy, "group-by", nil, "Group-by column element keys")
	f.StringSliceVar(&columnOrder, "column-order", nil, "Display order of column element keys")
	f.StringVar(&listView, "list-view", "", "List view file name")
	f.StringVar(&detailView, "detail-view", "", "Detail view file name")
	f.StringVar(&mapListView, "map-list-view", "", "Map list view file name")

	return cmd
}

func newTablesDeleteCommand(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <table-id>",
		Short: "Delete a table, its data and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withApp(cmd, func(app *App) error {
				tp, err := opts.lookup(ctx, cmd, app, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if !yes {
					ok, err := opts.confirm(fmt.Sprintf("Delete table %s and all of its rows?", tp.TableID()))
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(out, "Aborted")
						return nil
					}
				}

				if err := app.Store.DeleteTable(ctx, opts.namespace, tp.TableID()); err != nil {
					return err
				}
				fmt.Fprintln(out, ui.Success("Deleted table "+tp.TableID(), opts.noColor))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newTablesRefreshCommand(opts *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "refresh [table-id]",
		Short: "Reload table properties, repairing malformed metadata",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withApp(cmd, func(app *App) error {
				out := cmd.OutOrStdout()
				if !all {
					if _, err := opts.lookup(ctx, cmd, app, args[0]); err != nil {
						return err
					}
					tp, err := app.Store.Refresh(ctx, opts.namespace, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(out, ui.Success("Refreshed "+tp.TableID(), opts.noColor))
					return nil
				}

				ids, err := app.Store.TableIDs(ctx, opts.namespace)
				if err != nil {
					return err
				}
				bar := ui.NewProgressBar(out, "Refreshing", len(ids), opts.noColor)
				for _, id := range ids {
					if _, err := app.Store.Refresh(ctx, opts.namespace, id); err != nil {
						bar.Finish()
						return err
					}
					bar.Step(id)
				}
				bar.Finish()
				fmt.Fprintln(out, ui.Success(fmt.Sprintf("Refreshed %d table(s)", len(ids)), opts.noColor))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Refresh every table of the namespace")

	return cmd
}

func newTablesViewsCommand(opts *globalOptions) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "views <table-id>",
		Short: "Show which views a table supports",
		Long: `Show which views a table supports. The spreadsheet view is always
available; the list view needs a list view file, the graph view a numeric
column and the map view a geopoint or latitude/longitude column.

With --fix, a default view the table cannot show is reset to SPREADSHEET.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withApp(cmd, func(app *App) error {
				tp, err := opts.lookup(ctx, cmd, app, args[0])
				if err != nil {
					return err
				}
				types, err := viewcap.ForTable(ctx, tp)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				table := ui.NewTable(out, opts.noColor, "View", "Available")
				for _, vt := range props.AllViewTypes {
					table.AddRow(vt.String(), yesNo(types.Allows(vt)))
				}
				table.Render()

				if types.Map {
					lat, long, err := viewcap.ResolveMapColumns(ctx, tp)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "\nMap columns: latitude=%s longitude=%s\n", lat, long)
				}

				current := tp.DefaultViewType()
				legal := viewcap.EnsureLegal(current, types)
				if legal == current {
					return nil
				}
				if !fix {
					ui.Warning(fmt.Sprintf("default view %s is not available; rerun with --fix to use %s", current, legal), opts.noColor).Write(out)
					return nil
				}
				if err := tp.SetDefaultViewType(ctx, legal); err != nil {
					return err
				}
				fmt.Fprintln(out, ui.Success("Default view set to "+legal.String(), opts.noColor))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Reset an unavailable default view")

	return cmd
}
