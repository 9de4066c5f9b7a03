package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending ledger schema migrations and show their status",
	Long: `Connect to the configured ledger backend, apply any pending schema
migrations and list them. Every other command migrates on startup as well;
this one is meant for deploy scripts.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	backend, err := openLedgerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	if backend.pg == nil {
		fmt.Printf("%s attendance schema is up to date\n", cfg.Database.Backend)
		return nil
	}

	states, err := backend.pg.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	printMigrationStatus(os.Stdout, states)
	return nil
}

func printMigrationStatus(out io.Writer, states []postgres.MigrationState) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATUS\tAPPLIED AT")
	for _, s := range states {
		if !s.Applied {
			fmt.Fprintf(w, "%s\tpending\t-\n", s.Version)
			continue
		}
		fmt.Fprintf(w, "%s\tapplied\t%s\n", s.Version, s.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}
