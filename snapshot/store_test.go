package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore()
	ctx := context.Background()

	items := []byte(`[{"src":"a"}]`)
	project := []byte(`{"status":0}`)

	if err := store.Write(ctx, dir, items, project); err != nil {
		t.Fatalf("write: %v", err)
	}

	gotItems, err := store.ReadItems(ctx, dir)
	if err != nil {
		t.Fatalf("read items: %v", err)
	}
	if string(gotItems) != string(items) {
		t.Errorf("items mismatch: got %s want %s", gotItems, items)
	}

	gotProject, err := store.ReadProject(ctx, dir)
	if err != nil {
		t.Fatalf("read project: %v", err)
	}
	if string(gotProject) != string(project) {
		t.Errorf("project mismatch: got %s want %s", gotProject, project)
	}
}

func TestLocalStoreMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore()
	ctx := context.Background()

	data, err := store.ReadItems(ctx, dir)
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil data for missing file, got: %v", data)
	}
}

func TestLocalStoreStripsBOM(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore()
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Join(dir, "cache"), 0o755); err != nil {
		t.Fatal(err)
	}
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"status":1}`)...)
	if err := os.WriteFile(filepath.Join(dir, "cache", "project.json"), withBOM, 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := store.ReadProject(ctx, dir)
	if err != nil {
		t.Fatalf("read project: %v", err)
	}
	if string(data) != `{"status":1}` {
		t.Errorf("expected BOM stripped, got: %s", data)
	}
}

func TestParseS3URI(t *testing.T) {
	bucket, prefix, err := parseS3URI("s3://my-bucket/snap/shots")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != "my-bucket" || prefix != "snap/shots" {
		t.Errorf("got bucket=%s prefix=%s", bucket, prefix)
	}

	if _, _, err := parseS3URI("not-a-uri"); err == nil {
		t.Error("expected error for invalid scheme")
	}

	if _, _, err := parseS3URI("s3://"); err == nil {
		t.Error("expected error for missing bucket")
	}
}
