package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/parleylabs/parley/internal/storage"
)

// scheduleRelayLocked arms a cancellable timer that will relay the pending
// message after a uniformly random delay. Any previously scheduled relay is
// cancelled first, so at most one timer is outstanding per coordinator.
// Caller must hold c.mu.
func (c *Coordinator) scheduleRelayLocked(message RelayMessage) {
	c.cancelScheduledLocked()

	delay := time.Duration(c.drawBetween(c.cfg.Timing.MinDelayMS, c.cfg.Timing.MaxDelayMS)) * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	c.relayCancel = cancel
	sessionID := c.session.ID

	c.logger.Info("relay scheduled",
		"session_id", sessionID,
		"target", message.TargetPlatform,
		"delay_ms", delay.Milliseconds(),
	)

	timer := time.NewTimer(delay)
	go func() {
		defer cancel()
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
		c.fireRelay(ctx, sessionID)
	}()
}

// cancelScheduledLocked cancels the outstanding relay timer, if any.
// Caller must hold c.mu.
func (c *Coordinator) cancelScheduledLocked() {
	if c.relayCancel != nil {
		c.relayCancel()
		c.relayCancel = nil
	}
}

// fireRelay runs when the relay timer elapses. It re-checks its own
// cancellation and the session under the lock (either may have changed
// between the timer firing and the lock being acquired), resolves the
// target, advances the exchange counter and performs the delivery. The
// counter counts the attempt: a failing delivery is reported but still
// consumes the exchange.
func (c *Coordinator) fireRelay(ctx context.Context, sessionID string) {
	c.mu.Lock()

	// The timer can fire while another goroutine holds the lock and
	// supersedes this relay (new extraction, approval gate, stop). That
	// cancellation lands on ctx, not on the select that already returned,
	// so it must be re-checked here: the current pending message may not
	// be the one this timer was armed for.
	if ctx.Err() != nil {
		c.mu.Unlock()
		c.logger.Debug("scheduled relay aborted, superseded before firing", "session_id", sessionID)
		return
	}

	if c.session.ID != sessionID || !c.session.Status.Running() {
		c.mu.Unlock()
		c.logger.Debug("scheduled relay aborted, session no longer live", "session_id", sessionID)
		return
	}
	message := c.session.Pending
	if message == nil {
		c.mu.Unlock()
		c.logger.Debug("scheduled relay aborted, no pending message", "session_id", sessionID)
		return
	}

	target, err := c.registry.Resolve(message.TargetPlatform)
	if err != nil {
		// Recoverable: drop this relay, keep the session live.
		c.session.Pending = nil
		c.relayCancel = nil
		c.mu.Unlock()

		c.logger.ErrorContext(ctx, "relay aborted, target platform not registered",
			"session_id", sessionID,
			"target", message.TargetPlatform,
		)
		c.notify(ctx, RelayFailed{
			SessionID:      sessionID,
			TargetPlatform: message.TargetPlatform,
			Reason:         err.Error(),
		})
		return
	}

	c.session.CurrentExchange++
	c.session.Pending = nil
	c.session.LastMessageTime = time.Now()
	c.relayCancel = nil

	exchange := c.session.CurrentExchange
	total := c.session.TotalExchanges
	content := fmt.Sprintf("[Turn %d/%d]\n\n%s", exchange, total, message.Content)

	complete := exchange >= total
	var final *storage.Transcript
	var snapshot Snapshot
	if complete {
		c.session.Status = StatusComplete
		final = c.transcriptLocked()
		snapshot = c.snapshotLocked()
	}
	c.mu.Unlock()

	// The relay is committed at this point: a Stop arriving now no longer
	// cancels the delivery, matching the mid-flight semantics of the timer.
	deliveryCtx, cancel := context.WithTimeout(context.Background(), c.cfg.DeliveryTimeout())
	deliverErr := target.Deliver(deliveryCtx, content)
	cancel()

	if deliverErr != nil {
		c.logger.ErrorContext(ctx, "delivery to platform failed",
			"session_id", sessionID,
			"target", message.TargetPlatform,
			"exchange", exchange,
			"error", deliverErr,
		)
		c.notify(ctx, RelayFailed{
			SessionID:      sessionID,
			TargetPlatform: message.TargetPlatform,
			Reason:         deliverErr.Error(),
		})
	} else {
		c.logger.InfoContext(ctx, "message relayed",
			"session_id", sessionID,
			"target", message.TargetPlatform,
			"exchange", exchange,
			"total_exchanges", total,
		)
		c.notify(ctx, MessageRelayed{
			SessionID:      sessionID,
			TargetPlatform: message.TargetPlatform,
			Exchange:       exchange,
			TotalExchanges: total,
		})
	}

	if complete {
		c.persist(ctx, final)
		c.logger.InfoContext(ctx, "session complete",
			"session_id", sessionID,
			"exchanges", exchange,
		)
		c.notify(ctx, SessionComplete{Snapshot: snapshot})
	}
}
