package config

import "time"

// Default configuration values used throughout the coordinator
const (
	// DefaultMinDelayMS is the default minimum relay delay in milliseconds
	DefaultMinDelayMS = 15000

	// DefaultMaxDelayMS is the default maximum relay delay in milliseconds
	DefaultMaxDelayMS = 30000

	// DefaultMinExchanges is the default lower bound for the exchange draw
	DefaultMinExchanges = 10

	// DefaultMaxExchanges is the default upper bound for the exchange draw
	DefaultMaxExchanges = 20

	// DefaultMinDelayLimitMS is the absolute delay floor enforced at load time
	DefaultMinDelayLimitMS = 10000

	// DefaultMaxExchangesPerSession is the hard exchange ceiling per session
	DefaultMaxExchangesPerSession = 50

	// DefaultRetentionDays is how long completed transcripts are kept
	DefaultRetentionDays = 7

	// DefaultDeliveryTimeout bounds a single delivery call to a platform
	DefaultDeliveryTimeout = 30 * time.Second

	// DefaultPruneInterval is how often transcript retention is enforced
	DefaultPruneInterval = 1 * time.Hour

	// DefaultListenAddr is the default WebSocket hub listen address
	DefaultListenAddr = "localhost:8080"
)

// DefaultTriggerPhrases gates which extracted messages enter the relay
// pipeline when the config file does not specify its own set.
func DefaultTriggerPhrases() []string {
	return []string{"Hey Claude", "Hey Nyx", "Hey Assistant"}
}
