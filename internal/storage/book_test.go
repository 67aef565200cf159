package storage

import (
	"context"
	"os"
	"testing"
)

func TestSaveBookAndLoadBookRoundTrip(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "bookforge-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	fs := NewFileSystem(tempDir)
	ctx := context.Background()

	record := BookRecord{
		RunID:   "run-1",
		Title:   "The Quiet Harbor",
		Subject: "rival dockworkers who become allies",
		Genre:   "literary fiction",
		Book:    map[string][]string{"Chapter 1": {"first section", "second section"}},
	}

	path := "sessions/run-1/book.json"
	if err := SaveBook(ctx, fs, path, record); err != nil {
		t.Fatalf("SaveBook: %v", err)
	}

	got, err := LoadBook(ctx, fs, path)
	if err != nil {
		t.Fatalf("LoadBook: %v", err)
	}
	if got.Title != record.Title || got.RunID != record.RunID {
		t.Errorf("LoadBook returned %+v, want %+v", got, record)
	}
	if len(got.Book["Chapter 1"]) != 2 {
		t.Errorf("Book[\"Chapter 1\"] = %v, want 2 sections", got.Book["Chapter 1"])
	}
}

func TestLoadBookPropagatesMissingFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "bookforge-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	fs := NewFileSystem(tempDir)
	if _, err := LoadBook(context.Background(), fs, "missing.json"); err == nil {
		t.Error("expected an error loading a book that was never saved")
	}
}
