package recognition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// SnapshotSource fetches a still JPEG from a camera's HTTP snapshot endpoint on every Next.
type SnapshotSource struct {
	url    string
	client *http.Client
}

// NewSnapshotSource creates a source polling url.
func NewSnapshotSource(url string) *SnapshotSource {
	return &SnapshotSource{
		url:    url,
		client: &http.Client{Timeout: constants.SnapshotTimeout},
	}
}

// Next downloads one snapshot.
func (s *SnapshotSource) Next(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return data, nil
}

// DirectorySource replays the image files of a directory in name order.
type DirectorySource struct {
	files []string
	next  int
}

// NewDirectorySource lists the supported images in dir.
func NewDirectorySource(dir string) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frames directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !gallery.IsSupportedImage(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return &DirectorySource{files: files}, nil
}

// Len returns the number of frames in the directory.
func (d *DirectorySource) Len() int {
	return len(d.files)
}

// Next returns the next file's contents, or io.EOF after the last one.
func (d *DirectorySource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.next >= len(d.files) {
		return nil, io.EOF
	}
	path := d.files[d.next]
	d.next++

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the configured frames directory
	if err != nil {
		return nil, fmt.Errorf("reading frame %s: %w", filepath.Base(path), err)
	}
	return data, nil
}
