// ABOUTME: Subcommands of pbi-report, one per Power BI client operation.
// ABOUTME: Results are printed as tables or JSON, or written to a file with --file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcresswell/pbi-report/export"
	"github.com/rcresswell/pbi-report/powerbi"
)

type fileFlags struct {
	path string
	mode string
}

// register adds --file and --mode. A bare --file writes to defaultPath; any
// other path must be given as --file=<path>.
func (f *fileFlags) register(cmd *cobra.Command, defaultPath string) {
	cmd.Flags().StringVar(&f.path, "file", "", fmt.Sprintf("write results to a file (bare --file writes %s; --file=<path>.xlsx writes a workbook)", defaultPath))
	cmd.Flags().Lookup("file").NoOptDefVal = defaultPath
	cmd.Flags().StringVar(&f.mode, "mode", string(export.Overwrite), "file write mode: overwrite|append")
}

func (f *fileFlags) destination() (export.Destination, error) {
	mode, err := export.ParseMode(f.mode)
	if err != nil {
		return export.Destination{}, err
	}
	return export.Destination{Path: f.path, Mode: mode}, nil
}

func (a *app) written(path string) {
	a.log.Info("results written", zap.String("file", path))
	color.New(color.FgGreen).Fprintf(a.out.w, "Results written to %s\n", path)
}

func (a *app) setupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Enter credentials and save them to the config file",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger("dev", a.logLevel)
			_, err := runSetup(cmd.Context(), log)
			return err
		},
	}
}

func (a *app) reportsCommand() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List reports in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if raw {
				reports, err := a.client.Reports(cmd.Context())
				if err != nil {
					return err
				}
				return a.out.reports(reports)
			}
			ids, err := a.client.ReportIDs(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.nameIDs("Report", ids)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "show every report, including usage metrics, with all fields")
	return cmd
}

func (a *app) datasetsCommand() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List datasets in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if raw {
				datasets, err := a.client.Datasets(cmd.Context())
				if err != nil {
					return err
				}
				return a.out.datasets(datasets)
			}
			ids, err := a.client.DatasetIDs(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.nameIDs("Dataset", ids)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "show every dataset, including usage metrics models, with all fields")
	return cmd
}

func (a *app) reportUsersCommand() *cobra.Command {
	return a.usersCommand("report-users <report-id>", "List users with access to a report",
		(*powerbi.Client).ReportUsers, (*powerbi.Client).ReportUsersRaw)
}

func (a *app) appUsersCommand() *cobra.Command {
	return a.usersCommand("app-users <app-id>", "List users with access to an app",
		(*powerbi.Client).AppUsers, (*powerbi.Client).AppUsersRaw)
}

func (a *app) usersCommand(
	use, short string,
	list func(*powerbi.Client, context.Context, string) ([]powerbi.User, error),
	listRaw func(*powerbi.Client, context.Context, string) ([]byte, error),
) *cobra.Command {
	var (
		raw   bool
		files fileFlags
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			if files.path != "" {
				dest, err := files.destination()
				if err != nil {
					return err
				}
				if raw {
					body, err := listRaw(a.client, cmd.Context(), id)
					if err != nil {
						return err
					}
					if err := export.WriteRaw(dest, body); err != nil {
						return err
					}
				} else {
					users, err := list(a.client, cmd.Context(), id)
					if err != nil {
						return err
					}
					if err := export.WriteUsers(dest, powerbi.ShortUsers(users)); err != nil {
						return err
					}
				}
				a.written(dest.Path)
				return nil
			}

			users, err := list(a.client, cmd.Context(), id)
			if err != nil {
				return err
			}
			if raw {
				return a.out.userDetails(users)
			}
			return a.out.users(powerbi.ShortUsers(users))
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "keep every field (with --file, the response body is written verbatim)")
	files.register(cmd, export.DefaultUsersFile)
	return cmd
}

func (a *app) scheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <dataset-id>",
		Short: "Show the refresh schedule of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.RefreshSchedule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.out.schedule(s)
		},
	}
}

func (a *app) refreshInfoCommand() *cobra.Command {
	var (
		raw bool
		top int
	)
	cmd := &cobra.Command{
		Use:   "refresh-info <dataset-id>",
		Short: "Show the most recent refresh of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if raw {
				history, err := a.client.RefreshHistory(cmd.Context(), args[0], top)
				if err != nil {
					return err
				}
				return a.out.refreshHistory(history)
			}
			info, err := a.client.LastRefresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.out.refreshInfo(info)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "show history entries as returned by the API")
	cmd.Flags().IntVar(&top, "top", 1, "number of history entries to show with --raw")
	return cmd
}

func (a *app) refreshInfoAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-info-all",
		Short: "Show the most recent refresh of every dataset in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []powerbi.RefreshResult
			err := withSpinner("fetching datasets...", func(update func(string)) error {
				var err error
				results, err = a.client.LastRefreshAll(cmd.Context(), func(done, total int) {
					update(fmt.Sprintf("%d/%d datasets...", done, total))
				})
				return err
			})
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			fmt.Fprintf(os.Stderr, "[✔] %d datasets, %d failed\n", len(results), failed)

			return a.out.refreshResults(results)
		},
	}
}

func (a *app) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <dataset-id>",
		Short: "Start a refresh of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := a.client.TriggerRefresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.log.Info("refresh started",
				zap.String("dataset", req.DatasetID),
				zap.String("request", req.RequestID))

			if a.out.json {
				return a.out.printJSON(req)
			}
			color.New(color.FgGreen).Fprintln(a.out.w, req.String())
			return nil
		},
	}
}

func (a *app) queryCommand() *cobra.Command {
	var (
		queryFile string
		delimited bool
		files     fileFlags
	)
	cmd := &cobra.Command{
		Use:   "query <dataset-id> [dax]",
		Short: "Run a DAX query against a dataset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := queryText(args, queryFile)
			if err != nil {
				return err
			}

			table, err := a.client.ExecuteQuery(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}
			a.log.Debug("query returned", zap.Int("columns", len(table.Columns)), zap.Int("rows", len(table.Rows)))

			if files.path != "" {
				dest, err := files.destination()
				if err != nil {
					return err
				}
				if err := export.WriteTable(dest, table); err != nil {
					return err
				}
				a.written(dest.Path)
				return nil
			}

			return a.out.queryTable(table, delimited)
		},
	}
	cmd.Flags().StringVar(&queryFile, "query-file", "", "read the DAX query from a file ('-' for stdin)")
	cmd.Flags().BoolVar(&delimited, "delimited", false, "print pipe-delimited lines instead of a table")
	files.register(cmd, export.DefaultQueryFile)
	return cmd
}

func queryText(args []string, queryFile string) (string, error) {
	switch {
	case len(args) == 2 && queryFile != "":
		return "", fmt.Errorf("give the query either as an argument or with --query-file, not both")
	case len(args) == 2:
		return args[1], nil
	case queryFile == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	case queryFile != "":
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", fmt.Errorf("missing DAX query")
}
