package relay

import (
	"context"
	"time"

	"github.com/parleylabs/parley/internal/storage"
)

// Platform identifies one of the two chat endpoints a session relays between
type Platform string

const (
	// PlatformClaude is the Claude chat endpoint
	PlatformClaude Platform = "claude"
	// PlatformChatGPT is the ChatGPT chat endpoint
	PlatformChatGPT Platform = "chatgpt"
)

// PlatformPair is the fixed two-member platform set a coordinator relays
// between. The relay target of a message is always the complement of its
// source under this pair.
type PlatformPair [2]Platform

// DefaultPlatformPair returns the claude/chatgpt pair
func DefaultPlatformPair() PlatformPair {
	return PlatformPair{PlatformClaude, PlatformChatGPT}
}

// Complement returns the other member of the pair.
// ok is false when the platform is not a member.
func (p PlatformPair) Complement(of Platform) (Platform, bool) {
	switch of {
	case p[0]:
		return p[1], true
	case p[1]:
		return p[0], true
	default:
		return "", false
	}
}

// SessionStatus represents the lifecycle state of a relay session
type SessionStatus string

const (
	// StatusInactive indicates no session is running
	StatusInactive SessionStatus = "inactive"
	// StatusActive indicates the session is relaying
	StatusActive SessionStatus = "active"
	// StatusPaused indicates the session is paused for the operator;
	// ingestion and already-scheduled relays continue
	StatusPaused SessionStatus = "paused"
	// StatusComplete indicates the session reached its exchange target
	StatusComplete SessionStatus = "complete"
)

// Running reports whether the session is live (active or paused).
// Pause is observational only: it never stops ingestion or scheduled
// deliveries, so most guards care about Running, not StatusActive.
func (s SessionStatus) Running() bool {
	return s == StatusActive || s == StatusPaused
}

// RelayMessage is a message in flight between source and target platform
type RelayMessage struct {
	// Content is the raw extracted text, unmodified until the turn-counter
	// header is prepended at delivery time
	Content        string   `json:"content"`
	SourcePlatform Platform `json:"source_platform"`
	TargetPlatform Platform `json:"target_platform"`
	// CreatedAt is diagnostic only
	CreatedAt time.Time `json:"created_at"`
}

// Session is the unit of a relay run. All fields are guarded by the
// coordinator's mutex; external callers only ever see a Snapshot.
type Session struct {
	ID                     string
	Status                 SessionStatus
	CurrentExchange        int
	TotalExchanges         int
	ManualApprovalRequired bool
	Pending                *RelayMessage
	Log                    []storage.LoggedMessage
	StartedAt              time.Time
	LastMessageTime        time.Time
}

// Snapshot is a point-in-time copy of session state for status reporting
type Snapshot struct {
	SessionID              string        `json:"session_id"`
	Status                 SessionStatus `json:"status"`
	CurrentExchange        int           `json:"current_exchange"`
	TotalExchanges         int           `json:"total_exchanges"`
	ManualApprovalRequired bool          `json:"manual_approval_required"`
	HasPendingMessage      bool          `json:"has_pending_message"`
	LoggedMessages         int           `json:"logged_messages"`
	StartedAt              time.Time     `json:"started_at,omitzero"`
	LastMessageTime        time.Time     `json:"last_message_time,omitzero"`
}

// Extraction is a completed AI response captured by a platform scraper
type Extraction struct {
	Platform  Platform
	Content   string
	Timestamp time.Time
}

// HealthReport carries a platform scraper's selector diagnostics.
// Pass-through: stored for status reporting, never part of session state.
type HealthReport struct {
	Platform   Platform        `json:"platform"`
	Checks     map[string]bool `json:"checks"`
	ReportedAt time.Time       `json:"reported_at"`
}

// Failing reports whether any check failed
func (r HealthReport) Failing() bool {
	for _, ok := range r.Checks {
		if !ok {
			return true
		}
	}
	return false
}

// DeliveryTarget is the capability to deliver message text to a platform's
// input. Implementations are externally supplied (a connected browser tab);
// Deliver must honor ctx so a slow platform cannot wedge the scheduler.
type DeliveryTarget interface {
	// ID returns a diagnostic handle name
	ID() string
	// Deliver sends formatted content to the platform's input
	Deliver(ctx context.Context, content string) error
}
