package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/events"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

var (
	aliceEmb = []float64{0, 0, 0}
	bobEmb   = []float64{1, 1, 1}
)

// testEnv wires a two-person gallery (Alice "001", Bob "002") to an in-memory ledger.
type testEnv struct {
	gallery     *gallery.Gallery
	matcher     *facematch.Matcher
	store       *mock.MockAttendanceStore
	ledger      *attendance.Ledger
	broadcaster *events.Broadcaster
	recognizer  *recognition.Recognizer
	now         time.Time
}

func newTestEnv(t *testing.T, det recognition.Detector) *testEnv {
	t.Helper()
	g, err := gallery.New([]gallery.Entry{
		{Identity: gallery.Identity{ID: "001", DisplayName: "Alice"}, Embedding: aliceEmb},
		{Identity: gallery.Identity{ID: "002", DisplayName: "Bob"}, Embedding: bobEmb},
	})
	if err != nil {
		t.Fatalf("failed to build gallery: %v", err)
	}
	m, err := facematch.NewMatcher(facematch.DefaultThreshold)
	if err != nil {
		t.Fatalf("failed to create matcher: %v", err)
	}

	env := &testEnv{
		gallery:     g,
		matcher:     m,
		store:       mock.NewMockAttendanceStore(),
		broadcaster: events.NewBroadcaster(),
		now:         time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	env.ledger = attendance.NewLedger(env.store, attendance.WithLocation(time.UTC))
	env.recognizer = recognition.New(g, m, env.ledger, recognition.Options{
		Detector: det,
		Notifier: env.broadcaster,
		Clock:    env.clock,
	})
	return env
}

func (e *testEnv) clock() time.Time {
	return e.now
}

// staticDetector returns the same faces for every frame.
type staticDetector struct {
	faces []embedding.Face
	err   error
}

func (d staticDetector) DetectFaces(context.Context, []byte) ([]embedding.Face, error) {
	return d.faces, d.err
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
