package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show attendance of the last week or month",
	Long: `Show the attendance records of the last 7 days (week) or 30 days (month),
oldest first.

Examples:
  # Everyone present this week
  face-attendance report --period week

  # Alice's marks in the last 30 days, as JSON
  face-attendance report --period month --name alice --json`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("period", "week", "Reporting period: week or month")
	reportCmd.Flags().String("name", "", "Only show people whose name contains this text (case and accent insensitive)")
	reportCmd.Flags().Bool("json", false, "Output as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	period, err := attendance.ParsePeriod(mustGetString(cmd, "period"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := setupApp(ctx, config.Load(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.ledger.Query(ctx, period, time.Now())
	if err != nil {
		return fmt.Errorf("querying attendance: %w", err)
	}

	if name := mustGetString(cmd, "name"); name != "" {
		filtered := records[:0]
		for _, r := range records {
			if facematch.NameContains(r.DisplayName, name) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if mustGetBool(cmd, "json") {
		if records == nil {
			records = []attendance.Record{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Printf("No attendance in the last %d days\n", period.Days())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tID\tNAME")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Date, r.Time, r.IdentityID, r.DisplayName)
	}
	w.Flush()
	fmt.Printf("\n%d records in the last %d days\n", len(records), period.Days())
	return nil
}
