package relay

import "context"

// Notification is the closed set of events the coordinator emits toward
// collaborators (hub broadcast, operator surface). Delivery is best-effort:
// a missing or slow subscriber is never an error.
type Notification interface {
	// Type returns the wire name of the notification
	Type() string
}

// Notifier receives coordinator notifications.
// Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// SessionStarted is emitted when a new session becomes active
type SessionStarted struct {
	Snapshot Snapshot `json:"snapshot"`
}

// Type returns the wire name of the notification
func (SessionStarted) Type() string { return "SESSION_STARTED" }

// SessionStopped is emitted when a session is explicitly stopped
type SessionStopped struct {
	Snapshot Snapshot `json:"snapshot"`
}

// Type returns the wire name of the notification
func (SessionStopped) Type() string { return "SESSION_STOPPED" }

// SessionPaused is emitted when a session is paused
type SessionPaused struct {
	Snapshot Snapshot `json:"snapshot"`
}

// Type returns the wire name of the notification
func (SessionPaused) Type() string { return "SESSION_PAUSED" }

// SessionResumed is emitted when a paused session resumes
type SessionResumed struct {
	Snapshot Snapshot `json:"snapshot"`
}

// Type returns the wire name of the notification
func (SessionResumed) Type() string { return "SESSION_RESUMED" }

// SessionComplete is emitted when a session reaches its exchange target
type SessionComplete struct {
	Snapshot Snapshot `json:"snapshot"`
}

// Type returns the wire name of the notification
func (SessionComplete) Type() string { return "SESSION_COMPLETE" }

// ApprovalRequested is emitted when a pending message awaits manual approval
type ApprovalRequested struct {
	SessionID string       `json:"session_id"`
	Message   RelayMessage `json:"message"`
}

// Type returns the wire name of the notification
func (ApprovalRequested) Type() string { return "APPROVAL_REQUESTED" }

// RelayFailed is emitted when a scheduled relay could not be delivered.
// The session stays live; the message is dropped, not requeued.
type RelayFailed struct {
	SessionID      string   `json:"session_id"`
	TargetPlatform Platform `json:"target_platform"`
	Reason         string   `json:"reason"`
}

// Type returns the wire name of the notification
func (RelayFailed) Type() string { return "RELAY_FAILED" }

// MessageRelayed is emitted after a relay is delivered to its target
type MessageRelayed struct {
	SessionID      string   `json:"session_id"`
	TargetPlatform Platform `json:"target_platform"`
	Exchange       int      `json:"exchange"`
	TotalExchanges int      `json:"total_exchanges"`
}

// Type returns the wire name of the notification
func (MessageRelayed) Type() string { return "MESSAGE_RELAYED" }

// HealthWarning is emitted when a platform reports a failing selector check
type HealthWarning struct {
	Platform Platform        `json:"platform"`
	Checks   map[string]bool `json:"checks"`
}

// Type returns the wire name of the notification
func (HealthWarning) Type() string { return "HEALTH_CHECK_WARNING" }
