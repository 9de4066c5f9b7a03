package gallery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// fakeEncoder identifies images by their pixel width.
type fakeEncoder struct {
	mu     sync.Mutex
	faces  map[int][]embedding.Face
	widths []int
	err    error
}

func (f *fakeEncoder) DetectFaces(ctx context.Context, data []byte) ([]embedding.Face, error) {
	w, _, err := imaging.Dimensions(data)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.widths = append(f.widths, w)
	if f.err != nil {
		return nil, f.err
	}
	return f.faces[w], nil
}

func (f *fakeEncoder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.widths)
}

func oneFace(emb ...float64) []embedding.Face {
	return []embedding.Face{{Embedding: emb, BBox: []float64{0, 0, 1, 1}}}
}

func writeImage(t *testing.T, dir, name string, width int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 4))
	for x := range width {
		img.Set(x, 0, color.RGBA{R: uint8(x * 10), A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func assertLoadError(t *testing.T, err error, target error, file string) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %T", err)
	}
	if filepath.Base(loadErr.Path) != file {
		t.Errorf("expected error for %s, got %s", file, loadErr.Path)
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		wantID   string
		wantName string
		wantErr  bool
	}{
		{"simple", "001_Alice.jpg", "001", "Alice", false},
		{"underscore in name", "002_Bob_Smith.png", "002", "Bob_Smith", false},
		{"with directory", "/data/gallery/17_Carol.jpeg", "17", "Carol", false},
		{"trimmed name", "3_ Dave .bmp", "3", "Dave", false},
		{"no underscore", "Alice.jpg", "", "", true},
		{"empty id", "_Alice.jpg", "", "", true},
		{"empty name", "001_.jpg", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseFilename(tt.file)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedFilename) {
					t.Errorf("expected ErrMalformedFilename, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.ID != tt.wantID || id.DisplayName != tt.wantName {
				t.Errorf("got %+v, want {%s %s}", id, tt.wantID, tt.wantName)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	alice := Identity{ID: "001", DisplayName: "Alice"}
	bob := Identity{ID: "002", DisplayName: "Bob"}

	tests := []struct {
		name    string
		entries []Entry
		wantErr error
	}{
		{"empty", nil, ErrEmptyGallery},
		{"missing embedding", []Entry{{Identity: alice}}, ErrMissingEmbedding},
		{"dimension mismatch", []Entry{
			{Identity: alice, Embedding: []float64{0, 0}},
			{Identity: bob, Embedding: []float64{0, 0, 0}},
		}, ErrDimensionMismatch},
		{"duplicate id", []Entry{
			{Identity: alice, Embedding: []float64{0, 0}},
			{Identity: alice, Embedding: []float64{1, 1}},
		}, ErrDuplicateIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.entries); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNew_CopiesEmbeddings(t *testing.T) {
	emb := []float64{0.1, 0.2}
	g, err := New([]Entry{{Identity: Identity{ID: "1", DisplayName: "A"}, Embedding: emb}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emb[0] = 99
	if g.At(0).Embedding[0] != 0.1 {
		t.Error("gallery must not share the caller's embedding slice")
	}
	if g.Dim() != 2 {
		t.Errorf("expected dim 2, got %d", g.Dim())
	}
}

func TestGallery_NilIsEmpty(t *testing.T) {
	var g *Gallery
	if g.Len() != 0 || g.Dim() != 0 || g.Entries() != nil || len(g.Identities()) != 0 {
		t.Error("nil gallery should behave as empty")
	}
	if _, ok := g.Lookup("001"); ok {
		t.Error("nil gallery lookup should fail")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "002_Bob_Smith.png", 20)
	writeImage(t, dir, "001_Alice.png", 10)
	writeImage(t, dir, ".hidden_Eve.png", 30)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "003_Subdir.png"), 0o700); err != nil {
		t.Fatal(err)
	}

	enc := &fakeEncoder{faces: map[int][]embedding.Face{
		10: oneFace(0.1, 0.2),
		20: oneFace(0.5, 0.9),
	}}

	g, err := Load(context.Background(), dir, enc, LoadOptions{Concurrency: 4})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if g.Len() != 2 {
		t.Fatalf("expected 2 identities, got %d", g.Len())
	}
	ids := g.Identities()
	if ids[0].ID != "001" || ids[0].DisplayName != "Alice" {
		t.Errorf("expected Alice first, got %+v", ids[0])
	}
	if ids[1].ID != "002" || ids[1].DisplayName != "Bob_Smith" {
		t.Errorf("expected Bob_Smith second, got %+v", ids[1])
	}
	if got := g.At(1).Embedding; got[0] != 0.5 || got[1] != 0.9 {
		t.Errorf("embedding not paired with its identity: %v", got)
	}
	if _, ok := g.Lookup("002"); !ok {
		t.Error("expected lookup of 002 to succeed")
	}
}

func TestLoad_AppliesScale(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "001_Alice.png", 40)

	enc := &fakeEncoder{faces: map[int][]embedding.Face{20: oneFace(1, 2)}}
	if _, err := Load(context.Background(), dir, enc, LoadOptions{Scale: 0.5}); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if enc.widths[0] != 20 {
		t.Errorf("expected encoder to receive a 20px wide image, got %d", enc.widths[0])
	}
}

func TestLoad_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(context.Background(), dir, &fakeEncoder{}, LoadOptions{})
	if !errors.Is(err, ErrEmptyGallery) {
		t.Errorf("expected ErrEmptyGallery, got %v", err)
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"), &fakeEncoder{}, LoadOptions{})
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("expected *LoadError, got %v", err)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "010_Carol.jpg", 4)
	writeImage(t, dir, "002_Bob.png", 4)

	enc := &fakeEncoder{}
	files, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(files) != 2 || files[0].Identity.ID != "002" || files[1].Identity.DisplayName != "Carol" {
		t.Errorf("unexpected scan result %+v", files)
	}
	if len(enc.widths) != 0 {
		t.Error("Scan must not embed")
	}

	writeImage(t, dir, "002_Bobby.png", 4)
	_, err = Scan(dir)
	assertLoadError(t, err, ErrDuplicateIdentity, "002_Bobby.png")
}

func TestContentHash(t *testing.T) {
	const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := ContentHash(nil); got != emptySHA256 {
		t.Errorf("ContentHash(nil) = %s", got)
	}
	if ContentHash([]byte("a")) == ContentHash([]byte("b")) {
		t.Error("expected different hashes for different content")
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]int
		faces   map[int][]embedding.Face
		wantErr error
		file    string
	}{
		{
			name:    "malformed name",
			files:   map[string]int{"001_Alice.png": 10, "Bob.png": 20},
			faces:   map[int][]embedding.Face{10: oneFace(1), 20: oneFace(2)},
			wantErr: ErrMalformedFilename,
			file:    "Bob.png",
		},
		{
			name:    "duplicate id",
			files:   map[string]int{"001_Alice.png": 10, "001_Alicia.png": 20},
			faces:   map[int][]embedding.Face{10: oneFace(1), 20: oneFace(2)},
			wantErr: ErrDuplicateIdentity,
			file:    "001_Alicia.png",
		},
		{
			name:    "no face",
			files:   map[string]int{"001_Alice.png": 10, "002_Bob.png": 20},
			faces:   map[int][]embedding.Face{10: oneFace(1)},
			wantErr: ErrNoFace,
			file:    "002_Bob.png",
		},
		{
			name:  "multiple faces",
			files: map[string]int{"001_Alice.png": 10},
			faces: map[int][]embedding.Face{10: {
				{Embedding: []float64{1}}, {Embedding: []float64{2}},
			}},
			wantErr: ErrMultipleFaces,
			file:    "001_Alice.png",
		},
		{
			name:    "dimension mismatch",
			files:   map[string]int{"001_Alice.png": 10, "002_Bob.png": 20},
			faces:   map[int][]embedding.Face{10: oneFace(1, 2, 3), 20: oneFace(1, 2)},
			wantErr: ErrDimensionMismatch,
			file:    "002_Bob.png",
		},
		{
			name:    "empty embedding",
			files:   map[string]int{"001_Alice.png": 10, "002_Bob.png": 20},
			faces:   map[int][]embedding.Face{10: oneFace(1), 20: oneFace()},
			wantErr: ErrMissingEmbedding,
			file:    "002_Bob.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, width := range tt.files {
				writeImage(t, dir, name, width)
			}
			g, err := Load(context.Background(), dir, &fakeEncoder{faces: tt.faces}, LoadOptions{Concurrency: 2})
			if g != nil {
				t.Error("a failed load must not return a partial gallery")
			}
			assertLoadError(t, err, tt.wantErr, tt.file)
		})
	}
}

func TestLoad_UnreadableImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_Alice.jpg"), []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(context.Background(), dir, &fakeEncoder{}, LoadOptions{})
	assertLoadError(t, err, ErrUnreadableImage, "001_Alice.jpg")
}

func TestLoad_FirstFailureInDirectoryOrder(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"01_A.png", "02_B.png", "03_C.png", "04_D.png", "05_E.png", "06_F.png"} {
		writeImage(t, dir, name, 10+i)
	}
	// 02 and 05 have no face.
	enc := &fakeEncoder{faces: map[int][]embedding.Face{
		10: oneFace(1), 12: oneFace(3), 13: oneFace(4), 15: oneFace(6),
	}}

	_, err := Load(context.Background(), dir, enc, LoadOptions{Concurrency: 6})
	assertLoadError(t, err, ErrNoFace, "02_B.png")
}

func TestLoad_EncoderError(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "001_Alice.png", 10)

	boom := errors.New("service unavailable")
	_, err := Load(context.Background(), dir, &fakeEncoder{err: boom}, LoadOptions{})
	assertLoadError(t, err, boom, "001_Alice.png")
}

func TestLoad_UsesCache(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "001_Alice.png", 10)
	writeImage(t, dir, "002_Bob.png", 20)

	cache := mock.NewMockGalleryCache()
	enc := &fakeEncoder{faces: map[int][]embedding.Face{10: oneFace(1, 0), 20: oneFace(0, 1)}}
	opts := LoadOptions{Cache: cache, Model: "buffalo_l", Concurrency: 2}

	if _, err := Load(context.Background(), dir, enc, opts); err != nil {
		t.Fatalf("first Load() error: %v", err)
	}
	if cache.Puts != 2 {
		t.Fatalf("expected 2 cache writes, got %d", cache.Puts)
	}

	g, err := Load(context.Background(), dir, enc, opts)
	if err != nil {
		t.Fatalf("second Load() error: %v", err)
	}
	if enc.calls() != 2 {
		t.Errorf("expected encoder to be skipped on the second load, got %d calls", enc.calls())
	}
	if cache.Hits != 2 {
		t.Errorf("expected 2 cache hits, got %d", cache.Hits)
	}
	if got := g.At(1).Embedding; got[0] != 0 || got[1] != 1 {
		t.Errorf("unexpected cached embedding %v", got)
	}

	// A different model must not reuse the cached vectors.
	opts.Model = "other"
	if _, err := Load(context.Background(), dir, enc, opts); err != nil {
		t.Fatalf("third Load() error: %v", err)
	}
	if enc.calls() != 4 {
		t.Errorf("expected encoder calls for the new model, got %d", enc.calls())
	}
}

func TestLoad_CachedAndFreshEmbeddingsAgree(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "001_Alice.png", 10)

	// 0.1 is not representable in float32; the cache stores it rounded.
	enc := &fakeEncoder{faces: map[int][]embedding.Face{10: oneFace(0.1, 0.7)}}
	cache := mock.NewMockGalleryCache()
	opts := LoadOptions{Cache: cache, Model: "buffalo_l"}

	fresh, err := Load(context.Background(), dir, enc, opts)
	if err != nil {
		t.Fatalf("first Load() error: %v", err)
	}
	cached, err := Load(context.Background(), dir, enc, opts)
	if err != nil {
		t.Fatalf("second Load() error: %v", err)
	}
	if cache.Hits != 1 {
		t.Fatalf("expected the second load to hit the cache, got %d hits", cache.Hits)
	}

	want := []float64{float64(float32(0.1)), float64(float32(0.7))}
	for i := range want {
		if fresh.At(0).Embedding[i] != want[i] || cached.At(0).Embedding[i] != want[i] {
			t.Errorf("[%d] fresh %v, cached %v, want %v",
				i, fresh.At(0).Embedding[i], cached.At(0).Embedding[i], want[i])
		}
	}
}

func TestLoad_CacheFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "001_Alice.png", 10)

	cache := mock.NewMockGalleryCache()
	cache.GetError = errors.New("db down")
	cache.PutError = errors.New("db down")
	enc := &fakeEncoder{faces: map[int][]embedding.Face{10: oneFace(1)}}

	g, err := Load(context.Background(), dir, enc, LoadOptions{Cache: cache})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if g.Len() != 1 {
		t.Errorf("expected 1 identity, got %d", g.Len())
	}
}

func TestLoad_Progress(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "001_Alice.png", 10)

	var out bytes.Buffer
	enc := &fakeEncoder{faces: map[int][]embedding.Face{10: oneFace(1)}}
	if _, err := Load(context.Background(), dir, enc, LoadOptions{Progress: &out}); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("Embedding gallery")) {
		t.Errorf("expected progress output, got %q", out.String())
	}
}

func TestAudit(t *testing.T) {
	g, err := New([]Entry{
		{Identity: Identity{ID: "1", DisplayName: "Alice"}, Embedding: []float64{0, 0}},
		{Identity: Identity{ID: "2", DisplayName: "Alicia"}, Embedding: []float64{0.3, 0}},
		{Identity: Identity{ID: "3", DisplayName: "Bob"}, Embedding: []float64{5, 5}},
		{Identity: Identity{ID: "4", DisplayName: "Bobby"}, Embedding: []float64{5, 5.1}},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	pairs := Audit(g, 0.6)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 near duplicates, got %d: %+v", len(pairs), pairs)
	}
	if pairs[0].A.ID != "3" || pairs[0].B.ID != "4" {
		t.Errorf("expected closest pair Bob/Bobby first, got %s/%s", pairs[0].A.ID, pairs[0].B.ID)
	}
	if pairs[1].A.ID != "1" || pairs[1].B.ID != "2" {
		t.Errorf("expected Alice/Alicia second, got %s/%s", pairs[1].A.ID, pairs[1].B.ID)
	}

	if got := Audit(g, 0.05); len(got) != 0 {
		t.Errorf("expected no pairs at a strict threshold, got %+v", got)
	}
}

func TestAudit_SingleEntry(t *testing.T) {
	g, err := New([]Entry{{Identity: Identity{ID: "1", DisplayName: "A"}, Embedding: []float64{1}}})
	if err != nil {
		t.Fatal(err)
	}
	if got := Audit(g, 1); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}
