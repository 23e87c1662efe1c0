package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStop_CancelsScheduledRelay(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Timing.MinDelayMS = 300
	cfg.Timing.MaxDelayMS = 300
	coordinator, registry, _, _ := newTestCoordinator(cfg)

	targetB := newFakeTarget("tab-b")
	registry.Announce(PlatformChatGPT, targetB)

	coordinator.Start(ctx)
	coordinator.HandleExtraction(ctx, Extraction{
		Platform: PlatformClaude,
		Content:  "Hey Claude, never sent",
	})
	coordinator.Stop(ctx)

	// Well past the 300ms delay: the cancelled timer must stay silent
	expectNoDelivery(t, targetB, 600*time.Millisecond)
	require.Equal(t, StatusInactive, coordinator.Snapshot().Status)
}

func TestStart_SupersedesScheduledRelay(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Timing.MinDelayMS = 300
	cfg.Timing.MaxDelayMS = 300
	coordinator, registry, _, _ := newTestCoordinator(cfg)

	targetB := newFakeTarget("tab-b")
	registry.Announce(PlatformChatGPT, targetB)

	coordinator.Start(ctx)
	coordinator.HandleExtraction(ctx, Extraction{
		Platform: PlatformClaude,
		Content:  "Hey Claude, stale",
	})
	restarted := coordinator.Start(ctx)

	// The old session's relay may not fire into the new one
	expectNoDelivery(t, targetB, 600*time.Millisecond)
	snapshot := coordinator.Snapshot()
	require.Equal(t, restarted.SessionID, snapshot.SessionID)
	require.Zero(t, snapshot.CurrentExchange)
	require.Zero(t, snapshot.LoggedMessages)
}

func TestNewExtraction_SupersedesScheduledRelay(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Timing.MinDelayMS = 250
	cfg.Timing.MaxDelayMS = 250
	coordinator, registry, _, _ := newTestCoordinator(cfg)

	targetA := newFakeTarget("tab-a")
	targetB := newFakeTarget("tab-b")
	registry.Announce(PlatformClaude, targetA)
	registry.Announce(PlatformChatGPT, targetB)

	coordinator.Start(ctx)
	coordinator.HandleExtraction(ctx, Extraction{Platform: PlatformClaude, Content: "Hey Claude, old"})
	coordinator.HandleExtraction(ctx, Extraction{Platform: PlatformClaude, Content: "Hey Claude, new"})

	require.Equal(t, "[Turn 1/2]\n\nHey Claude, new", waitDelivery(t, targetB))
	expectNoDelivery(t, targetB, 400*time.Millisecond)
	require.Equal(t, 1, coordinator.Snapshot().CurrentExchange)
}

func TestFireRelay_SupersededWhileBlockedOnLock(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Timing.MinDelayMS = 100
	cfg.Timing.MaxDelayMS = 100
	coordinator, registry, _, _ := newTestCoordinator(cfg)

	targetB := newFakeTarget("tab-b")
	registry.Announce(PlatformChatGPT, targetB)

	coordinator.Start(ctx)
	coordinator.HandleExtraction(ctx, Extraction{
		Platform: PlatformClaude,
		Content:  "Hey Claude, armed",
	})

	// Hold the lock across the timer's fire time, then supersede the
	// scheduled relay the way a newer extraction does: the timer goroutine
	// is already past its select and blocked on this mutex, so only the
	// context re-check inside the fire can stop it.
	coordinator.mu.Lock()
	time.Sleep(300 * time.Millisecond)
	coordinator.cancelScheduledLocked()
	coordinator.session.Pending = &RelayMessage{
		Content:        "Hey Claude, replacement",
		SourcePlatform: PlatformClaude,
		TargetPlatform: PlatformChatGPT,
		CreatedAt:      time.Now(),
	}
	coordinator.mu.Unlock()

	// The cancelled fire must not deliver the replacement message
	expectNoDelivery(t, targetB, 300*time.Millisecond)
	snapshot := coordinator.Snapshot()
	require.Zero(t, snapshot.CurrentExchange)
	require.True(t, snapshot.HasPendingMessage)
}

func TestFireRelay_TargetNotRegistered(t *testing.T) {
	ctx := context.Background()
	coordinator, _, _, notifier := newTestCoordinator(testConfig())

	coordinator.Start(ctx)
	coordinator.HandleExtraction(ctx, Extraction{
		Platform: PlatformClaude,
		Content:  "Hey Claude, nowhere to go",
	})

	event := notifier.waitFor(t, RelayFailed{}.Type())
	failed, ok := event.(RelayFailed)
	require.True(t, ok)
	require.Equal(t, PlatformChatGPT, failed.TargetPlatform)

	// A failed resolution drops the message without consuming an exchange;
	// the session stays live.
	snapshot := coordinator.Snapshot()
	require.Equal(t, StatusActive, snapshot.Status)
	require.Zero(t, snapshot.CurrentExchange)
	require.False(t, snapshot.HasPendingMessage)
}

func TestFireRelay_DeliveryFailureConsumesExchange(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Session.MinExchanges = 1
	cfg.Session.MaxExchanges = 1
	coordinator, registry, _, notifier := newTestCoordinator(cfg)

	targetB := newFakeTarget("tab-b")
	targetB.err = errors.New("tab closed")
	registry.Announce(PlatformChatGPT, targetB)

	coordinator.Start(ctx)
	coordinator.HandleExtraction(ctx, Extraction{
		Platform: PlatformClaude,
		Content:  "Hey Claude, doomed",
	})

	waitDelivery(t, targetB)
	notifier.waitFor(t, RelayFailed{}.Type())

	// The attempt counts: a one-exchange session completes even though the
	// delivery itself failed.
	notifier.waitFor(t, SessionComplete{}.Type())
	snapshot := coordinator.Snapshot()
	require.Equal(t, StatusComplete, snapshot.Status)
	require.Equal(t, 1, snapshot.CurrentExchange)
	require.False(t, notifier.has(MessageRelayed{}.Type()))
}

func TestScheduledRelay_FiresWhilePaused(t *testing.T) {
	ctx := context.Background()
	coordinator, registry, _, _ := newTestCoordinator(testConfig())

	targetB := newFakeTarget("tab-b")
	registry.Announce(PlatformChatGPT, targetB)

	coordinator.Start(ctx)
	_, err := coordinator.Pause(ctx)
	require.NoError(t, err)

	coordinator.HandleExtraction(ctx, Extraction{
		Platform: PlatformClaude,
		Content:  "Hey Claude, paused but scheduled",
	})

	require.Equal(t, "[Turn 1/2]\n\nHey Claude, paused but scheduled", waitDelivery(t, targetB))
	require.Equal(t, StatusPaused, coordinator.Snapshot().Status)
}

func TestDrawBetween_InclusiveBounds(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator(testConfig())

	require.Equal(t, 5, coordinator.drawBetween(5, 5))
	require.Equal(t, 5, coordinator.drawBetween(5, 3))

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		v := coordinator.drawBetween(1, 3)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 3)
		seen[v] = true
	}
	require.Len(t, seen, 3)
}
