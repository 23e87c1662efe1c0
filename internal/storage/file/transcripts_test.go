package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parleylabs/parley/internal/storage"
)

func sampleTranscript(sessionID string, start time.Time) *storage.Transcript {
	return &storage.Transcript{
		SessionID:      sessionID,
		StartTime:      start,
		EndTime:        start.Add(5 * time.Minute),
		Exchanges:      1,
		TotalExchanges: 12,
		Messages: []storage.LoggedMessage{
			{Timestamp: start, Platform: "claude", Content: "Hey Claude, hi", Exchange: 0},
		},
	}
}

func TestNewTranscriptStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	if _, err := NewTranscriptStore(dir); err != nil {
		t.Fatalf("NewTranscriptStore failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("expected directory to be created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}

	if _, err := NewTranscriptStore(""); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestSaveAndGetTranscript(t *testing.T) {
	store, err := NewTranscriptStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTranscriptStore failed: %v", err)
	}
	ctx := context.Background()

	original := sampleTranscript("session-1", time.Now())
	if err := store.SaveTranscript(ctx, original); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	retrieved, err := store.GetTranscript(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("expected transcript, got nil")
	}
	if retrieved.SessionID != "session-1" {
		t.Errorf("expected session-1, got %s", retrieved.SessionID)
	}
	if len(retrieved.Messages) != 1 || retrieved.Messages[0].Content != "Hey Claude, hi" {
		t.Errorf("unexpected messages: %+v", retrieved.Messages)
	}
}

func TestSaveTranscript_Invalid(t *testing.T) {
	store, err := NewTranscriptStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTranscriptStore failed: %v", err)
	}
	ctx := context.Background()

	if err := store.SaveTranscript(ctx, nil); err == nil {
		t.Error("expected error for nil transcript")
	}
	if err := store.SaveTranscript(ctx, &storage.Transcript{}); err == nil {
		t.Error("expected error for empty session ID")
	}
}

func TestGetTranscript_Missing(t *testing.T) {
	store, err := NewTranscriptStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTranscriptStore failed: %v", err)
	}

	transcript, err := store.GetTranscript(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if transcript != nil {
		t.Error("expected nil for missing transcript")
	}
}

func TestPathFor_SanitizesSessionID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewTranscriptStore(dir)
	if err != nil {
		t.Fatalf("NewTranscriptStore failed: %v", err)
	}

	path := store.pathFor("../../etc/passwd")
	if filepath.Dir(path) != dir {
		t.Errorf("sanitized path escapes transcript directory: %s", path)
	}
}

func TestListTranscripts_SkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewTranscriptStore(dir)
	if err != nil {
		t.Fatalf("NewTranscriptStore failed: %v", err)
	}
	ctx := context.Background()
	now := time.Now()

	if err := store.SaveTranscript(ctx, sampleTranscript("session-a", now.Add(-time.Hour))); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}
	if err := store.SaveTranscript(ctx, sampleTranscript("session-b", now)); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	all, err := store.ListTranscripts(ctx)
	if err != nil {
		t.Fatalf("ListTranscripts failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 transcripts, got %d", len(all))
	}
	if all[0].SessionID != "session-a" || all[1].SessionID != "session-b" {
		t.Errorf("expected oldest first, got %s then %s", all[0].SessionID, all[1].SessionID)
	}
}

func TestTranscripts_SurviveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewTranscriptStore(dir)
	if err != nil {
		t.Fatalf("NewTranscriptStore failed: %v", err)
	}
	if err := store.SaveTranscript(ctx, sampleTranscript("session-1", time.Now())); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	reopened, err := NewTranscriptStore(dir)
	if err != nil {
		t.Fatalf("NewTranscriptStore failed: %v", err)
	}
	transcript, err := reopened.GetTranscript(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if transcript == nil {
		t.Fatal("expected transcript to survive reopen")
	}
}

func TestPruneTranscripts(t *testing.T) {
	store, err := NewTranscriptStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTranscriptStore failed: %v", err)
	}
	ctx := context.Background()
	now := time.Now()

	if err := store.SaveTranscript(ctx, sampleTranscript("old", now.Add(-10*24*time.Hour))); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}
	if err := store.SaveTranscript(ctx, sampleTranscript("recent", now)); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	removed, err := store.PruneTranscripts(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("PruneTranscripts failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	if transcript, _ := store.GetTranscript(ctx, "old"); transcript != nil {
		t.Error("expected old transcript to be pruned")
	}
	if transcript, _ := store.GetTranscript(ctx, "recent"); transcript == nil {
		t.Error("expected recent transcript to survive")
	}
}
