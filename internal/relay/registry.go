package relay

import (
	"errors"
	"sort"
	"sync"
)

// ErrPlatformNotFound is returned by Resolve when a platform has never
// announced itself. Recoverable: the scheduler drops the in-flight relay
// and reports, the session stays live.
var ErrPlatformNotFound = errors.New("platform not registered")

// PlatformRegistry maps platform identifiers to their delivery targets.
// Process-wide state shared across sessions: entries are overwritten on
// every announcement (last writer wins) and never explicitly torn down.
type PlatformRegistry struct {
	mu      sync.RWMutex
	targets map[Platform]DeliveryTarget
}

// NewPlatformRegistry creates an empty platform registry
func NewPlatformRegistry() *PlatformRegistry {
	return &PlatformRegistry{
		targets: make(map[Platform]DeliveryTarget),
	}
}

// Announce records the delivery target for a platform, unconditionally
// overwriting any existing mapping.
func (r *PlatformRegistry) Announce(platform Platform, target DeliveryTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.targets[platform] = target
}

// Resolve looks up the delivery target for a platform
func (r *PlatformRegistry) Resolve(platform Platform) (DeliveryTarget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target, exists := r.targets[platform]
	if !exists {
		return nil, ErrPlatformNotFound
	}
	return target, nil
}

// Platforms returns the identifiers that have announced themselves, sorted
func (r *PlatformRegistry) Platforms() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]Platform, 0, len(r.targets))
	for platform := range r.targets {
		platforms = append(platforms, platform)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
