// ABOUTME: CLI entry point for pbi-report.
// ABOUTME: Loads config (running setup on first use), builds the logger and client, and dispatches commands.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcresswell/pbi-report/powerbi"
)

type app struct {
	cfg    *Config
	log    *zap.Logger
	client *powerbi.Client
	out    *printer

	workspace string
	outFormat string
	logLevel  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{}
	root := a.rootCommand()

	err := root.ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pbi-report",
		Short:         "Inspect and refresh datasets in a Power BI workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if offline(cmd) {
				return nil
			}
			return a.connect(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.workspace, "workspace", "", "workspace id (overrides config and PBI_WORKSPACE_ID)")
	root.PersistentFlags().StringVar(&a.outFormat, "out", "text", "output format: text|json")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(
		a.setupCommand(),
		a.reportsCommand(),
		a.datasetsCommand(),
		a.reportUsersCommand(),
		a.appUsersCommand(),
		a.scheduleCommand(),
		a.refreshInfoCommand(),
		a.refreshInfoAllCommand(),
		a.refreshCommand(),
		a.queryCommand(),
	)

	return root
}

// offline reports whether cmd is one of cobra's own commands (help, shell
// completion), which never talk to the API.
func offline(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

// connect loads configuration, running the interactive setup if there is
// none, and authenticates.
func (a *app) connect(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if a.outFormat != "text" && a.outFormat != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", a.outFormat)
	}
	a.out = newPrinter(cmd.OutOrStdout(), a.outFormat)

	cfg, err := loadConfig()
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("loading config: %w", err)
		}
		a.log = newLogger("dev", a.logLevel)
		cfg, err = runSetup(ctx, a.log)
		if err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
	}

	if a.workspace != "" {
		cfg.WorkspaceID = a.workspace
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.log = newLogger(cfg.LogEnv, cfg.LogLevel)

	client, err := powerbi.New(ctx, cfg.credentials(), cfg.WorkspaceID, cfg.clientOptions(a.log)...)
	if err != nil {
		return err
	}
	a.client = client

	return nil
}
