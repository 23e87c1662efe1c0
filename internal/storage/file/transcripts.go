package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parleylabs/parley/internal/storage"
)

var (
	errTranscriptNil  = errors.New("transcript cannot be nil")
	errSessionIDEmpty = errors.New("session ID cannot be empty")
)

const transcriptExt = ".json"

// TranscriptStore implements TranscriptStore backed by one JSON file per
// session in a directory. Transcripts survive coordinator restarts; session
// state does not.
type TranscriptStore struct {
	mu  sync.Mutex
	dir string
}

// NewTranscriptStore creates a file-backed transcript store rooted at dir,
// creating the directory if needed.
func NewTranscriptStore(dir string) (*TranscriptStore, error) {
	if dir == "" {
		return nil, errors.New("transcript directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	return &TranscriptStore{dir: dir}, nil
}

// SaveTranscript creates or replaces the transcript file for a session
func (s *TranscriptStore) SaveTranscript(ctx context.Context, transcript *storage.Transcript) error {
	if transcript == nil {
		return errTranscriptNil
	}
	if transcript.SessionID == "" {
		return errSessionIDEmpty
	}

	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathFor(transcript.SessionID)
	// Write-then-rename so a crash mid-write never leaves a truncated
	// transcript behind.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize transcript: %w", err)
	}
	return nil
}

// GetTranscript retrieves a transcript by session ID
// Returns nil, nil if no transcript exists for the session
func (s *TranscriptStore) GetTranscript(ctx context.Context, sessionID string) (*storage.Transcript, error) {
	if sessionID == "" {
		return nil, errSessionIDEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.pathFor(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var transcript storage.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return &transcript, nil
}

// ListTranscripts retrieves all stored transcripts, oldest first.
// Unreadable or corrupt files are skipped rather than failing the listing.
func (s *TranscriptStore) ListTranscripts(ctx context.Context) ([]*storage.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	result := make([]*storage.Transcript, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), transcriptExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var transcript storage.Transcript
		if err := json.Unmarshal(data, &transcript); err != nil {
			continue
		}
		result = append(result, &transcript)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

// PruneTranscripts removes transcripts whose session started before the cutoff
func (s *TranscriptStore) PruneTranscripts(ctx context.Context, cutoff time.Time) (int, error) {
	transcripts, err := s.ListTranscripts(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, transcript := range transcripts {
		if !transcript.StartTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(s.pathFor(transcript.SessionID)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("failed to remove transcript %s: %w", transcript.SessionID, err)
		}
		removed++
	}
	return removed, nil
}

// pathFor maps a session ID to its transcript file.
// Session IDs are generated UUIDs but sanitize anyway so a hostile ID can
// never escape the transcript directory.
func (s *TranscriptStore) pathFor(sessionID string) string {
	name := filepath.Base(filepath.Clean(sessionID))
	return filepath.Join(s.dir, name+transcriptExt)
}
