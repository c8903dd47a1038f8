package store

import (
	"path/filepath"
	"testing"

	"chatkit/pkg/models"
)

func TestCacheSnapshotRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer c.Close()

	msgs := []models.Message{
		textMsg("m1", "u1", "first"),
		textMsg("m2", "u2", "second"),
	}
	if err := c.SaveSnapshot("act-1", msgs); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := c.LoadSnapshot("act-1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("unexpected snapshot order: %+v", got)
	}
}

func TestCacheSnapshotReplaces(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer c.Close()

	if err := c.SaveSnapshot("act-1", []models.Message{textMsg("m1", "u1", "old")}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := c.SaveSnapshot("act-1", []models.Message{textMsg("m9", "u1", "new")}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := c.LoadSnapshot("act-1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m9" {
		t.Fatalf("second snapshot should replace the first: %+v", got)
	}
}

func TestCacheActivitiesAreIsolated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer c.Close()

	_ = c.SaveSnapshot("act-1", []models.Message{textMsg("m1", "u1", "a")})
	_ = c.SaveSnapshot("act-2", []models.Message{textMsg("m2", "u1", "b")})

	got, err := c.LoadSnapshot("act-1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("activity snapshots leaked across ids: %+v", got)
	}

	missing, err := c.LoadSnapshot("act-3")
	if err != nil {
		t.Fatalf("LoadSnapshot missing: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("missing snapshot should be empty, got %+v", missing)
	}
}
