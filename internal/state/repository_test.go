package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cuedeck/cuedeck-agent/internal/db"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

func TestTouchRecentAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.TouchRecent(ctx, "/shows/gala/show.cue", "gala"); err != nil {
		t.Fatalf("TouchRecent() error = %v", err)
	}
	if err := repo.TouchRecent(ctx, "/shows/rehearsal/show.cue", "rehearsal"); err != nil {
		t.Fatalf("TouchRecent() error = %v", err)
	}

	projects, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("ListRecent() returned %d projects, want 2", len(projects))
	}
}

func TestTouchRecentKeepsPosition(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.TouchRecent(ctx, "/shows/gala/show.cue", "gala"); err != nil {
		t.Fatalf("TouchRecent() error = %v", err)
	}
	if err := repo.SetLastPosition(ctx, "/shows/gala/show.cue", 42500, 180000); err != nil {
		t.Fatalf("SetLastPosition() error = %v", err)
	}

	// A second open must not reset the resume position.
	if err := repo.TouchRecent(ctx, "/shows/gala/show.cue", "gala"); err != nil {
		t.Fatalf("second TouchRecent() error = %v", err)
	}

	position, err := repo.LastPosition(ctx, "/shows/gala/show.cue")
	if err != nil {
		t.Fatalf("LastPosition() error = %v", err)
	}
	if position != 42500 {
		t.Errorf("LastPosition() = %d, want 42500", position)
	}
}

func TestLastPositionUnknownProject(t *testing.T) {
	repo := setupTestRepo(t)

	position, err := repo.LastPosition(context.Background(), "/nowhere/show.cue")
	if err != nil {
		t.Fatalf("LastPosition() error = %v", err)
	}
	if position != 0 {
		t.Errorf("LastPosition() = %d, want 0", position)
	}
}

func TestRemoveRecent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.TouchRecent(ctx, "/shows/gala/show.cue", "gala"); err != nil {
		t.Fatalf("TouchRecent() error = %v", err)
	}
	if err := repo.RemoveRecent(ctx, "/shows/gala/show.cue"); err != nil {
		t.Fatalf("RemoveRecent() error = %v", err)
	}

	projects, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("ListRecent() returned %d projects, want 0", len(projects))
	}
}

func TestConfigRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	value, err := repo.GetConfig(ctx, "api_token")
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}
	if value != "" {
		t.Errorf("GetConfig() on empty table = %q, want empty", value)
	}

	if err := repo.SetConfig(ctx, "api_token", "tok-1"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	if err := repo.SetConfig(ctx, "api_token", "tok-2"); err != nil {
		t.Fatalf("SetConfig() overwrite error = %v", err)
	}

	value, err = repo.GetConfig(ctx, "api_token")
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}
	if value != "tok-2" {
		t.Errorf("GetConfig() = %q, want tok-2", value)
	}
}
