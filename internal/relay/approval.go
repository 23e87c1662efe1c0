package relay

import "context"

// Approve releases the pending message to the scheduler. The approval gate
// only exists between "message ready" and "message scheduled": once the
// timer is armed, approval plays no further part.
func (c *Coordinator) Approve(ctx context.Context) error {
	c.mu.Lock()
	if !c.session.Status.Running() {
		c.mu.Unlock()
		return ErrSessionNotActive
	}
	message := c.session.Pending
	if message == nil {
		c.mu.Unlock()
		return ErrNoPendingMessage
	}
	c.scheduleRelayLocked(*message)
	sessionID := c.session.ID
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "pending message approved",
		"session_id", sessionID,
		"target", message.TargetPlatform,
	)
	return nil
}

// Reject discards the pending message. Clearing it (rather than merely
// hiding it from the operator) prevents a stale message from being
// resubmitted by a later Approve.
func (c *Coordinator) Reject(ctx context.Context) error {
	c.mu.Lock()
	if !c.session.Status.Running() {
		c.mu.Unlock()
		return ErrSessionNotActive
	}
	message := c.session.Pending
	if message == nil {
		c.mu.Unlock()
		return ErrNoPendingMessage
	}
	c.cancelScheduledLocked()
	c.session.Pending = nil
	sessionID := c.session.ID
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "pending message rejected",
		"session_id", sessionID,
		"target", message.TargetPlatform,
	)
	return nil
}
