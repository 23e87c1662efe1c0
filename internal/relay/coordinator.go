package relay

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleylabs/parley/internal/relay/config"
	"github.com/parleylabs/parley/internal/storage"
)

var (
	// ErrSessionNotActive is returned when an operation needs a live session
	ErrSessionNotActive = errors.New("no active session")
	// ErrNoPendingMessage is returned when approval is requested with
	// nothing pending
	ErrNoPendingMessage = errors.New("no pending message")
)

// Coordinator owns all relay session state. Every mutation (extraction,
// approval, relay completion, control operations) is serialized through its
// mutex, so the session never sees concurrent writers. One coordinator
// instance drives one session at a time; the platform registry it resolves
// against is shared process-wide state.
type Coordinator struct {
	mu       sync.Mutex
	cfg      *config.Config
	registry *PlatformRegistry
	store    storage.TranscriptStore
	notifier Notifier
	logger   *slog.Logger
	rng      *rand.Rand
	pair     PlatformPair

	session Session
	health  map[Platform]HealthReport
	// relayCancel cancels the currently scheduled relay timer, if any.
	// Stop, Start and a pending-message overwrite all go through it so a
	// stale timer can never deliver into a dead or different session.
	relayCancel context.CancelFunc
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithRand overrides the random source used for delay and exchange draws
func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) { c.rng = rng }
}

// WithPlatformPair overrides the two-platform set the coordinator relays
// between
func WithPlatformPair(pair PlatformPair) Option {
	return func(c *Coordinator) { c.pair = pair }
}

// NewCoordinator creates a coordinator. notifier may be nil when no
// subscriber exists; persistence and scheduling behave the same either way.
func NewCoordinator(
	cfg *config.Config,
	registry *PlatformRegistry,
	store storage.TranscriptStore,
	notifier Notifier,
	logger *slog.Logger,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		registry: registry,
		store:    store,
		notifier: notifier,
		logger:   logger,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		pair:     DefaultPlatformPair(),
		health:   make(map[Platform]HealthReport),
		session:  Session{Status: StatusInactive},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a new relay session. Valid from Inactive or Complete; when a
// session is already running it performs an implicit stop-then-start: the
// old transcript is persisted, any scheduled relay is cancelled, and a
// fresh session begins.
func (c *Coordinator) Start(ctx context.Context) Snapshot {
	c.mu.Lock()

	var previous *storage.Transcript
	if c.session.Status.Running() {
		previous = c.stopLocked()
	}

	c.session = Session{
		ID:                     uuid.NewString(),
		Status:                 StatusActive,
		TotalExchanges:         c.drawBetween(c.cfg.Session.MinExchanges, c.cfg.Session.MaxExchanges),
		ManualApprovalRequired: c.cfg.Safety.RequireManualApproval,
		StartedAt:              time.Now(),
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(ctx, previous)

	c.logger.InfoContext(ctx, "session started",
		"session_id", snapshot.SessionID,
		"total_exchanges", snapshot.TotalExchanges,
		"manual_approval", snapshot.ManualApprovalRequired,
	)
	c.notify(ctx, SessionStarted{Snapshot: snapshot})
	return snapshot
}

// Stop terminates the current session from any state: the scheduled relay
// (if any) is cancelled, the transcript is persisted, and the session
// returns to Inactive. Idempotent when nothing is running.
func (c *Coordinator) Stop(ctx context.Context) Snapshot {
	c.mu.Lock()
	transcript := c.stopLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(ctx, transcript)

	c.logger.InfoContext(ctx, "session stopped", "session_id", snapshot.SessionID)
	c.notify(ctx, SessionStopped{Snapshot: snapshot})
	return snapshot
}

// stopLocked cancels any scheduled relay, clears the pending message and
// moves the session to Inactive. Returns the final transcript to persist,
// or nil when there was no session.
func (c *Coordinator) stopLocked() *storage.Transcript {
	c.cancelScheduledLocked()

	var transcript *storage.Transcript
	if c.session.ID != "" && c.session.Status != StatusInactive {
		transcript = c.transcriptLocked()
	}
	c.session.Status = StatusInactive
	c.session.Pending = nil
	return transcript
}

// Pause toggles between Active and Paused. Pause is observational: it does
// not stop ingestion and does not interrupt an already-scheduled relay.
func (c *Coordinator) Pause(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if !c.session.Status.Running() {
		c.mu.Unlock()
		return Snapshot{}, ErrSessionNotActive
	}

	paused := c.session.Status == StatusActive
	if paused {
		c.session.Status = StatusPaused
	} else {
		c.session.Status = StatusActive
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if paused {
		c.logger.InfoContext(ctx, "session paused", "session_id", snapshot.SessionID)
		c.notify(ctx, SessionPaused{Snapshot: snapshot})
	} else {
		c.logger.InfoContext(ctx, "session resumed", "session_id", snapshot.SessionID)
		c.notify(ctx, SessionResumed{Snapshot: snapshot})
	}
	return snapshot, nil
}

// HandleAnnounce records a platform's delivery target in the shared registry
func (c *Coordinator) HandleAnnounce(platform Platform, target DeliveryTarget) {
	c.registry.Announce(platform, target)
	c.logger.Info("platform announced",
		"platform", platform,
		"target", target.ID(),
	)
}

// HandleExtraction ingests a completed AI response captured from a
// platform. Extraction is accepted while the session is Active or Paused;
// text without a trigger phrase is discarded silently. A triggered message
// is logged, persisted, and becomes the pending relay message. A newer
// extraction overwrites an older pending one and cancels its scheduled
// relay (last extraction wins).
func (c *Coordinator) HandleExtraction(ctx context.Context, ext Extraction) {
	c.mu.Lock()

	if !c.session.Status.Running() {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "extraction ignored, session not running",
			"platform", ext.Platform,
		)
		return
	}

	if !ShouldRelay(ext.Content, c.cfg.TriggerPhrases) {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "extraction without trigger phrase discarded",
			"platform", ext.Platform,
			"content_length", len(ext.Content),
		)
		return
	}

	target, ok := c.pair.Complement(ext.Platform)
	if !ok {
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "extraction from unknown platform discarded",
			"platform", ext.Platform,
		)
		return
	}

	// Repeated identical extraction is an expected no-op: scrapers re-emit
	// the latest response on DOM churn.
	if p := c.session.Pending; p != nil && p.SourcePlatform == ext.Platform && p.Content == ext.Content {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "duplicate extraction ignored", "platform", ext.Platform)
		return
	}

	timestamp := ext.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	c.session.Log = append(c.session.Log, storage.LoggedMessage{
		Timestamp: timestamp,
		Platform:  string(ext.Platform),
		Content:   ext.Content,
		Exchange:  c.session.CurrentExchange,
	})
	transcript := c.transcriptLocked()

	c.cancelScheduledLocked()
	message := RelayMessage{
		Content:        ext.Content,
		SourcePlatform: ext.Platform,
		TargetPlatform: target,
		CreatedAt:      time.Now(),
	}
	c.session.Pending = &message
	sessionID := c.session.ID
	needsApproval := c.session.ManualApprovalRequired
	if !needsApproval {
		c.scheduleRelayLocked(message)
	}
	c.mu.Unlock()

	c.persist(ctx, transcript)

	c.logger.InfoContext(ctx, "message queued for relay",
		"session_id", sessionID,
		"source", message.SourcePlatform,
		"target", message.TargetPlatform,
		"manual_approval", needsApproval,
	)
	if needsApproval {
		c.notify(ctx, ApprovalRequested{SessionID: sessionID, Message: message})
	}
}

// HandleHealthReport stores the latest selector diagnostics for a platform
// and raises a warning notification when any check failed.
func (c *Coordinator) HandleHealthReport(ctx context.Context, report HealthReport) {
	if report.ReportedAt.IsZero() {
		report.ReportedAt = time.Now()
	}

	c.mu.Lock()
	c.health[report.Platform] = report
	c.mu.Unlock()

	if report.Failing() {
		c.logger.WarnContext(ctx, "platform health check failing",
			"platform", report.Platform,
			"checks", report.Checks,
		)
		c.notify(ctx, HealthWarning{Platform: report.Platform, Checks: report.Checks})
		return
	}
	c.logger.DebugContext(ctx, "platform health check passed", "platform", report.Platform)
}

// Snapshot returns a point-in-time copy of the session state
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Health returns the latest health report per platform
func (c *Coordinator) Health() map[Platform]HealthReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[Platform]HealthReport, len(c.health))
	for platform, report := range c.health {
		result[platform] = report
	}
	return result
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:              c.session.ID,
		Status:                 c.session.Status,
		CurrentExchange:        c.session.CurrentExchange,
		TotalExchanges:         c.session.TotalExchanges,
		ManualApprovalRequired: c.session.ManualApprovalRequired,
		HasPendingMessage:      c.session.Pending != nil,
		LoggedMessages:         len(c.session.Log),
		StartedAt:              c.session.StartedAt,
		LastMessageTime:        c.session.LastMessageTime,
	}
}

// transcriptLocked builds the persistable transcript for the current session
func (c *Coordinator) transcriptLocked() *storage.Transcript {
	messages := make([]storage.LoggedMessage, len(c.session.Log))
	copy(messages, c.session.Log)
	return &storage.Transcript{
		SessionID:      c.session.ID,
		StartTime:      c.session.StartedAt,
		EndTime:        time.Now(),
		Exchanges:      c.session.CurrentExchange,
		TotalExchanges: c.session.TotalExchanges,
		Messages:       messages,
	}
}

// persist saves a transcript. Persistence failure is non-fatal to the
// session: it is logged and the relay loop continues.
func (c *Coordinator) persist(ctx context.Context, transcript *storage.Transcript) {
	if transcript == nil || c.store == nil {
		return
	}
	if err := c.store.SaveTranscript(ctx, transcript); err != nil {
		c.logger.ErrorContext(ctx, "failed to persist transcript",
			"session_id", transcript.SessionID,
			"error", err,
		)
	}
}

// notify emits a best-effort notification; a nil notifier is not an error
func (c *Coordinator) notify(ctx context.Context, n Notification) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, n)
}

// drawBetween draws uniformly from the inclusive range [low, high].
// The range is trusted as-is: safety clamping happened at config load.
func (c *Coordinator) drawBetween(low, high int) int {
	if high <= low {
		return low
	}
	return low + c.rng.IntN(high-low+1)
}
