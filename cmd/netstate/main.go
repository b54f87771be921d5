// Command netstate runs the governance API and its maintenance tasks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/api"
	"github.com/stake-plus/netstate-gov/src/config"
	"github.com/stake-plus/netstate-gov/src/data"
	"github.com/stake-plus/netstate-gov/src/logging"
)

// Set with -ldflags at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "netstate",
		Short:         "Network state governance backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	outboxCmd := &cobra.Command{Use: "outbox", Short: "Inspect and drive the mirror outbox"}
	outboxCmd.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Run one pass over pending on-chain attempts",
		RunE:  withApp(drain),
	})

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, jobs and notifications",
			RunE:  withApp(func(ctx context.Context, a *api.App) error { return a.Serve(ctx) }),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE:  migrate,
		},
		&cobra.Command{
			Use:   "reconcile",
			Short: "Recompute every proposal tally from its votes",
			RunE:  withApp(reconcile),
		},
		outboxCmd,
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "netstate %s (build: %s)\n", Version, BuildTime)
			},
		},
	)
	return cmd
}

func setup() (config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(cfg.App), nil
}

// withApp opens the application for the duration of fn and cancels on SIGINT
// or SIGTERM.
func withApp(fn func(ctx context.Context, a *api.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := api.Open(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a)
	}
}

func migrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := data.ConnectMySQL(cfg.DB.MySQLDSN, log)
	if err != nil {
		return err
	}
	if err := data.Migrate(db); err != nil {
		return err
	}
	log.Infow("schema migrated")
	return nil
}

func reconcile(ctx context.Context, a *api.App) error {
	failed, err := a.Tally.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	a.Log.Infow("tallies reconciled", "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d proposals could not be reconciled", failed)
	}
	return nil
}

func drain(ctx context.Context, a *api.App) error {
	if a.Chain == nil {
		return fmt.Errorf("no ledger configured (set RPC_URL and GOVERNANCE_ADDRESS)")
	}
	res, err := a.Outbox.Drain(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(res)
}
