package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/events"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the attendance HTTP API.

The API reports attendance, accepts detections or frames from external
cameras and streams new marks as server-sent events. With --camera the
recognition loop also runs in-process against CAMERA_SNAPSHOT_URL. With
SUMMARY_AT (or --summary-at) a summary of the day's marks is printed daily.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("camera", false, "Also run the recognition loop against CAMERA_SNAPSHOT_URL")
	serveCmd.Flags().Bool("greet", false, "Print a greeting for every new mark")
	serveCmd.Flags().String("summary-at", "", "Daily summary time HH:MM (overrides SUMMARY_AT)")
}

// resolveServeHostPort applies the flag overrides to the web configuration.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if at := mustGetString(cmd, "summary-at"); at != "" {
		cfg.SummaryAt = at
	}
}

// scheduleSummary prints the day's attendance at cfg.SummaryAt.
func scheduleSummary(cfg *config.Config, ledger *attendance.Ledger) (*gocron.Scheduler, error) {
	if cfg.SummaryAt == "" {
		return nil, nil
	}
	s, err := attendance.ScheduleDailySummary(ledger, cfg.SummaryAt, func(summary attendance.DailySummary) {
		fmt.Print(attendance.FormatSummary(summary))
	})
	if err != nil {
		return nil, err
	}
	fmt.Printf("Daily attendance summary scheduled at %s\n", cfg.SummaryAt)
	return s, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)

	camera := mustGetBool(cmd, "camera")
	if camera && cfg.Recognition.SnapshotURL == "" {
		return errors.New("--camera requires CAMERA_SNAPSHOT_URL")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := setupApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	broadcaster := events.NewBroadcaster()
	notifier, closeNotifier, err := a.notifier(mustGetBool(cmd, "greet"), broadcaster)
	if err != nil {
		return err
	}
	defer closeNotifier()

	rec := recognition.New(a.gallery, a.matcher, a.ledger, recognition.Options{
		Detector:   a.client,
		Notifier:   notifier,
		FrameScale: cfg.Recognition.FrameScale,
	})

	scheduler, err := scheduleSummary(cfg, a.ledger)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	server := web.NewServer(cfg.Web, web.Services{
		Gallery:     a.gallery,
		Matcher:     a.matcher,
		Ledger:      a.ledger,
		Recognizer:  rec,
		Broadcaster: broadcaster,
	})

	var wg sync.WaitGroup
	if camera {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Camera loop reading %s every %s\n", cfg.Recognition.SnapshotURL, cfg.Recognition.FrameInterval)
			src := recognition.NewSnapshotSource(cfg.Recognition.SnapshotURL)
			stats, err := rec.Run(ctx, src, cfg.Recognition.FrameInterval)
			if err != nil {
				fmt.Printf("Camera loop stopped: %v\n", err)
			}
			fmt.Printf("Camera loop: %d frames, %d newly marked\n", stats.Frames, stats.Marked)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	err = server.Start()
	cancel()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
