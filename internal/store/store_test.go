package store

import (
	"context"
	"os"
	"testing"

	"dictationgrader/internal/config"
)

// TestPostgresDelegatePutRoundTrip exercises the live delegate against
// a real database. It is skipped unless DICTATIONGRADER_TEST_DATABASE_URL
// points at one, since Put/PutArtifact have no in-memory pgx substitute.
func TestPostgresDelegatePutRoundTrip(t *testing.T) {
	dsn := os.Getenv("DICTATIONGRADER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DICTATIONGRADER_TEST_DATABASE_URL not set; skipping live Postgres test")
	}

	d, err := Open(&config.Config{DatabaseURL: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })

	url, err := d.Put(context.Background(), "annotated", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url == "" {
		t.Error("Put() returned empty url")
	}

	id, err := d.PutArtifact(context.Background(), "vlm_raw", `{"ok":true}`)
	if err != nil {
		t.Fatalf("PutArtifact() error = %v", err)
	}
	if id == "" {
		t.Error("PutArtifact() returned empty id")
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	if _, err := Open(&config.Config{DatabaseURL: ""}); err == nil {
		t.Error("Open() with empty DatabaseURL should error")
	}
}
