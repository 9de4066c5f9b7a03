package gallery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/schollz/progressbar/v3"
)

// Encoder detects faces in an image and returns one embedding per face.
type Encoder interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]embedding.Face, error)
}

// LoadOptions tunes Load. The zero value loads sequentially without cache or progress output.
type LoadOptions struct {
	Scale       float64 // downsampling before embedding, 0 means 1 (no resize)
	Concurrency int     // parallel encoder calls, 0 means 1
	Cache       database.GalleryCache
	Model       string    // cache key component identifying the encoder model
	Progress    io.Writer // progress bar destination, nil disables it
}

// ImageFile is a gallery image whose name parsed into an identity.
type ImageFile struct {
	Path     string
	Identity Identity
}

// Scan lists the gallery images of dir in name order and parses their names
// without embedding them. Malformed names and duplicate ids fail the scan.
func Scan(dir string) ([]ImageFile, error) {
	paths, err := listImages(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrEmptyGallery, dir)
	}

	files := make([]ImageFile, len(paths))
	seen := make(map[string]string, len(paths))
	for i, path := range paths {
		id, err := ParseFilename(path)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		if other, dup := seen[id.ID]; dup {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %s already used by %s", ErrDuplicateIdentity, id.ID, filepath.Base(other))}
		}
		seen[id.ID] = path
		files[i] = ImageFile{Path: path, Identity: id}
	}
	return files, nil
}

// Load builds a gallery from a directory of <id>_<name>.<ext> images.
//
// Loading is all or nothing: the first failing file (in name order) aborts the
// load with a *LoadError. Embeddings must all share the first file's dimension. A directory without loadable images yields ErrEmptyGallery.
func Load(ctx context.Context, dir string, enc Encoder, opts LoadOptions) (*Gallery, error) {
	// Parse every name before doing any network work.
	files, err := Scan(dir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	embeddings, err := embedAll(ctx, paths, enc, opts)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(files))
	for i, f := range files {
		switch {
		case len(embeddings[i]) == 0:
			return nil, &LoadError{Path: f.Path, Err: ErrMissingEmbedding}
		case len(embeddings[i]) != len(embeddings[0]):
			return nil, &LoadError{Path: f.Path, Err: fmt.Errorf("%w: %d dimensions, expected %d",
				ErrDimensionMismatch, len(embeddings[i]), len(embeddings[0]))}
		}
		entries[i] = Entry{Identity: f.Identity, Embedding: embeddings[i]}
	}

	g, err := New(entries)
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}
	return g, nil
}

// ContentHash returns the cache key of an image: the hex SHA-256 of its bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// listImages returns the supported image files of dir sorted by name.
func listImages(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading gallery directory: %w", err)
	}

	var files []string
	for _, e := range dirEntries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !IsSupportedImage(name) {
			log.Printf("gallery: skipping non-image file %s", name)
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// embedAll embeds files with bounded concurrency. Results keep the order of files.
// After a failure, files later in the order are skipped while earlier ones still
// run, so the reported error is always the first failing file.
func embedAll(ctx context.Context, files []string, enc Encoder, opts LoadOptions) ([][]float64, error) {
	concurrency := max(opts.Concurrency, 1)

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("Embedding gallery"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	embeddings := make([][]float64, len(files))
	errs := make([]error, len(files))

	var firstFailed atomic.Int64
	firstFailed.Store(int64(len(files)))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, path := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			if int64(i) > firstFailed.Load() {
				return
			}

			emb, err := embedFile(ctx, path, enc, opts)
			if err != nil {
				errs[i] = err
				for {
					cur := firstFailed.Load()
					if int64(i) >= cur || firstFailed.CompareAndSwap(cur, int64(i)) {
						break
					}
				}
				return
			}
			embeddings[i] = emb
			if bar != nil {
				bar.Add(1)
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, &LoadError{Path: files[i], Err: err}
		}
	}
	return embeddings, nil
}

func embedFile(ctx context.Context, path string, enc Encoder, opts LoadOptions) ([]float64, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the configured gallery directory
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableImage, err)
	}

	var hash string
	if opts.Cache != nil {
		hash = ContentHash(data)
		emb, ok, err := opts.Cache.Get(ctx, hash, opts.Model)
		if err != nil {
			log.Printf("gallery: cache lookup for %s failed: %v", filepath.Base(path), err)
		} else if ok {
			return emb, nil
		}
	}

	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	scaled, err := imaging.Scale(data, scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableImage, err)
	}

	faces, err := enc.DetectFaces(ctx, scaled)
	if err != nil {
		return nil, fmt.Errorf("computing face embedding: %w", err)
	}
	switch {
	case len(faces) == 0:
		return nil, ErrNoFace
	case len(faces) > 1:
		return nil, fmt.Errorf("%w: found %d", ErrMultipleFaces, len(faces))
	}

	emb := faces[0].Embedding
	if opts.Cache != nil {
		// The cache stores float32, fresh and cached loads must agree.
		emb = toSinglePrecision(emb)
		if err := opts.Cache.Put(ctx, hash, opts.Model, emb); err != nil {
			log.Printf("gallery: caching embedding for %s failed: %v", filepath.Base(path), err)
		}
	}
	return emb, nil
}

func toSinglePrecision(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(float32(x))
	}
	return out
}
