package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the recognition loop against a camera or a directory of frames",
	Long: `Load the gallery, then repeatedly take a frame, detect faces, match them
against the gallery and mark recognised people. Each person is marked at most
once per day and greeted when the mark is new.

Frames come from a camera snapshot URL (--snapshot-url or CAMERA_SNAPSHOT_URL)
or are replayed from a directory (--frames-dir). The loop stops on Ctrl+C or
when the directory is exhausted.

Examples:
  # Poll an IP camera twice a second
  face-attendance watch --snapshot-url http://camera.local/snapshot.jpg

  # Replay recorded frames as fast as possible
  face-attendance watch --frames-dir ./recordings/monday --interval 0`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("snapshot-url", "", "Camera JPEG snapshot URL (overrides CAMERA_SNAPSHOT_URL)")
	watchCmd.Flags().String("frames-dir", "", "Replay image frames from this directory instead of a camera")
	watchCmd.Flags().Duration("interval", 0, "Delay between frames (0 = FRAME_INTERVAL for cameras, none for directories)")
	watchCmd.Flags().Float64("threshold", 0, "Maximum distance for a match (0 = DISTANCE_THRESHOLD)")
	watchCmd.Flags().Bool("quiet", false, "Do not print a greeting for new marks")
}

// frameSource picks the frame source from flags and configuration.
func frameSource(cmd *cobra.Command, cfg *config.Config) (recognition.FrameSource, error) {
	if dir := mustGetString(cmd, "frames-dir"); dir != "" {
		src, err := recognition.NewDirectorySource(dir)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Replaying %d frames from %s\n", src.Len(), dir)
		return src, nil
	}

	url := mustGetString(cmd, "snapshot-url")
	if url == "" {
		url = cfg.Recognition.SnapshotURL
	}
	if url == "" {
		return nil, errors.New("no frame source: use --snapshot-url, --frames-dir or CAMERA_SNAPSHOT_URL")
	}
	fmt.Printf("Reading frames from %s every %s\n", url, cfg.Recognition.FrameInterval)
	return recognition.NewSnapshotSource(url), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if threshold := mustGetFloat64(cmd, "threshold"); threshold > 0 {
		cfg.Matching.DistanceThreshold = threshold
	}

	interval := cfg.Recognition.FrameInterval
	if mustGetString(cmd, "frames-dir") != "" {
		interval = 0
	}
	if cmd.Flags().Changed("interval") {
		interval = mustGetDuration(cmd, "interval")
	}

	src, err := frameSource(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setupApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	notifier, closeNotifier, err := a.notifier(!mustGetBool(cmd, "quiet"))
	if err != nil {
		return err
	}
	defer closeNotifier()

	rec := recognition.New(a.gallery, a.matcher, a.ledger, recognition.Options{
		Detector:   a.client,
		Notifier:   notifier,
		FrameScale: cfg.Recognition.FrameScale,
	})

	fmt.Println("Watching for faces, press Ctrl+C to stop")
	stats, err := rec.Run(ctx, src, interval)
	fmt.Printf("\nFrames: %d (%d failed), faces: %d, recognised: %d, newly marked: %d\n",
		stats.Frames, stats.FrameErrors, stats.Faces, stats.Recognized, stats.Marked)
	return err
}
