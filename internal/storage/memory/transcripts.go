package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/parleylabs/parley/internal/storage"
)

var (
	errTranscriptNil  = errors.New("transcript cannot be nil")
	errSessionIDEmpty = errors.New("session ID cannot be empty")
)

// InMemoryTranscriptStore implements TranscriptStore using an in-memory map.
// Used in tests and as the default backend when no transcript directory is
// configured.
type InMemoryTranscriptStore struct {
	mu          sync.RWMutex
	transcripts map[string]*storage.Transcript
}

// NewInMemoryTranscriptStore creates a new in-memory transcript store
func NewInMemoryTranscriptStore() *InMemoryTranscriptStore {
	return &InMemoryTranscriptStore{
		transcripts: make(map[string]*storage.Transcript),
	}
}

// SaveTranscript creates or replaces the transcript for a session
func (s *InMemoryTranscriptStore) SaveTranscript(ctx context.Context, transcript *storage.Transcript) error {
	if transcript == nil {
		return errTranscriptNil
	}
	if transcript.SessionID == "" {
		return errSessionIDEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcripts[transcript.SessionID] = copyTranscript(transcript)
	return nil
}

// GetTranscript retrieves a transcript by session ID
func (s *InMemoryTranscriptStore) GetTranscript(ctx context.Context, sessionID string) (*storage.Transcript, error) {
	if sessionID == "" {
		return nil, errSessionIDEmpty
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript, exists := s.transcripts[sessionID]
	if !exists {
		return nil, nil
	}
	return copyTranscript(transcript), nil
}

// ListTranscripts retrieves all stored transcripts, oldest first
func (s *InMemoryTranscriptStore) ListTranscripts(ctx context.Context) ([]*storage.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Transcript, 0, len(s.transcripts))
	for _, transcript := range s.transcripts {
		result = append(result, copyTranscript(transcript))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

// PruneTranscripts removes transcripts whose session started before the cutoff
func (s *InMemoryTranscriptStore) PruneTranscripts(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for sessionID, transcript := range s.transcripts {
		if transcript.StartTime.Before(cutoff) {
			delete(s.transcripts, sessionID)
			removed++
		}
	}
	return removed, nil
}

// copyTranscript returns a deep copy to prevent external modifications
func copyTranscript(t *storage.Transcript) *storage.Transcript {
	transcriptCopy := *t
	if t.Messages != nil {
		transcriptCopy.Messages = make([]storage.LoggedMessage, len(t.Messages))
		copy(transcriptCopy.Messages, t.Messages)
	}
	return &transcriptCopy
}
