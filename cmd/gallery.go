package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect the reference gallery",
	Long: `Inspect the reference gallery.

Gallery images are named <id>_<name>.<ext>, for example 001_Alice.jpg.
Each image must contain exactly one face.`,
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the identities in the gallery directory",
	Long: `List the identities parsed from the gallery file names, in load order.
No embeddings are computed, so the embedding service is not needed.`,
	Args: cobra.NoArgs,
	RunE: runGalleryList,
}

var galleryCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the gallery and report identities that are hard to tell apart",
	Long: `Load the full gallery through the embedding service, exactly as watch and
serve do at startup, and report pairs of identities whose reference embeddings
are closer than the match threshold. A face near such a pair may be attributed
to either person.

Examples:
  # Check with the configured threshold
  face-attendance gallery check

  # Use a stricter threshold and drop cached embeddings of removed images
  face-attendance gallery check --threshold 0.5 --prune-cache`,
	Args: cobra.NoArgs,
	RunE: runGalleryCheck,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryCheckCmd)

	galleryCmd.PersistentFlags().String("dir", "", "Gallery directory (overrides GALLERY_DIR)")
	galleryListCmd.Flags().Bool("json", false, "Output as JSON")
	galleryCheckCmd.Flags().Float64("threshold", 0, "Distance below which two identities are reported (0 = DISTANCE_THRESHOLD)")
	galleryCheckCmd.Flags().Bool("prune-cache", false, "Delete cached embeddings of images no longer in the gallery")
}

// galleryConfig loads the configuration and applies the --dir override.
func galleryConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if dir := mustGetString(cmd, "dir"); dir != "" {
		cfg.Gallery.Dir = dir
	}
	return cfg
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	cfg := galleryConfig(cmd)

	files, err := gallery.Scan(cfg.Gallery.Dir)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		identities := make([]gallery.Identity, len(files))
		for i, f := range files {
			identities[i] = f.Identity
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(identities)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFILE")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Identity.ID, f.Identity.DisplayName, filepath.Base(f.Path))
	}
	w.Flush()
	fmt.Printf("\n%d identities\n", len(files))
	return nil
}

func runGalleryCheck(cmd *cobra.Command, args []string) error {
	cfg := galleryConfig(cmd)
	ctx := context.Background()

	a, err := setupApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	threshold := mustGetFloat64(cmd, "threshold")
	if threshold <= 0 {
		threshold = a.matcher.Threshold()
	}

	pairs := gallery.Audit(a.gallery, threshold)
	if len(pairs) == 0 {
		fmt.Printf("No identities closer than %.3f\n", threshold)
	} else {
		fmt.Printf("\n%d identity pairs closer than %.3f:\n", len(pairs), threshold)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DISTANCE\tFIRST\tSECOND")
		for _, p := range pairs {
			fmt.Fprintf(w, "%.4f\t%s (%s)\t%s (%s)\n", p.Distance, p.A.DisplayName, p.A.ID, p.B.DisplayName, p.B.ID)
		}
		w.Flush()
	}

	if mustGetBool(cmd, "prune-cache") {
		return pruneGalleryCache(ctx, a)
	}
	return nil
}

// pruneGalleryCache removes cached embeddings whose image is no longer in the gallery.
func pruneGalleryCache(ctx context.Context, a *app) error {
	if a.backend.cache == nil {
		return errors.New("--prune-cache requires GALLERY_CACHE=true with the postgres backend")
	}

	files, err := gallery.Scan(a.cfg.Gallery.Dir)
	if err != nil {
		return err
	}
	keep := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Path) //nolint:gosec // path comes from the configured gallery directory
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Path, err)
		}
		keep = append(keep, gallery.ContentHash(data))
	}

	cached, err := a.backend.cache.List(ctx)
	if err != nil {
		return err
	}
	pruned, err := a.backend.cache.Prune(ctx, keep)
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d of %d cached embeddings\n", pruned, len(cached))
	return nil
}
