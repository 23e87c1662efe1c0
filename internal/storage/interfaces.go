package storage

import (
	"context"
	"time"
)

// LoggedMessage is an immutable record of one extracted message.
// Entries are appended to a transcript in capture order and never
// reordered or mutated afterwards.
type LoggedMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Platform  string    `json:"platform"`
	Content   string    `json:"content"`
	// Exchange is the session's exchange counter at capture time,
	// not the turn number the message was later delivered under.
	Exchange int `json:"exchange"`
}

// Transcript is the persisted record of a relay session's conversation
type Transcript struct {
	SessionID      string          `json:"session_id"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	Exchanges      int             `json:"exchanges"`
	TotalExchanges int             `json:"total_exchanges"`
	Messages       []LoggedMessage `json:"messages"`
}

// TranscriptStore defines the interface for pluggable transcript backends
type TranscriptStore interface {
	// SaveTranscript creates or replaces the transcript for a session.
	// Called on every log append and at session end, so implementations
	// must treat it as an upsert.
	SaveTranscript(ctx context.Context, transcript *Transcript) error

	// GetTranscript retrieves a transcript by session ID
	// Returns nil, nil if no transcript exists for the session
	GetTranscript(ctx context.Context, sessionID string) (*Transcript, error)

	// ListTranscripts retrieves all stored transcripts, oldest first
	// Returns empty slice if no transcripts are stored
	ListTranscripts(ctx context.Context) ([]*Transcript, error)

	// PruneTranscripts removes transcripts whose session started before
	// the cutoff. Returns the number of transcripts removed.
	PruneTranscripts(ctx context.Context, cutoff time.Time) (int, error)
}
