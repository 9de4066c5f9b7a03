package postgres

import (
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := embeddedMigrations()
	if err != nil {
		t.Fatalf("embeddedMigrations() error: %v", err)
	}
	want := []string{"001_attendance.sql", "002_gallery_embeddings.sql"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("[%d] = %s, want %s", i, names[i], want[i])
		}
	}
	for _, name := range names {
		script, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil || !strings.Contains(string(script), "CREATE TABLE") {
			t.Errorf("%s: expected a CREATE TABLE script (err %v)", name, err)
		}
	}
}
