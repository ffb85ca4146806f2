package node

import (
	"testing"
	"time"

	"github.com/meshworks/manifold/src/common"
	"github.com/sirupsen/logrus"
)

// Config holds the tunables of a running node.
type Config struct {
	// HeartbeatTimeout is the interval between locally generated artifacts
	// when generation is enabled.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// HealInterval is the interval between anti-entropy rounds, where the
	// node re-broadcasts every stored artifact to every peer.
	HealInterval time.Duration `mapstructure:"heal"`

	// SynthesisInterval is the interval between symposium rounds over the
	// accumulated knowledge artifacts.
	SynthesisInterval time.Duration `mapstructure:"synthesis"`

	// MaxRetries is the number of consecutive failed sends after which a
	// peer is removed from the active set.
	MaxRetries int `mapstructure:"max-retries"`

	// RetryBackoffBase is the delay applied after a peer's first failed
	// send. It doubles with every further failure.
	RetryBackoffBase time.Duration `mapstructure:"backoff-base"`

	// RetryBackoffMax caps the exponential backoff delay.
	RetryBackoffMax time.Duration `mapstructure:"backoff-max"`

	Logger *logrus.Logger
}

// NewConfig ...
func NewConfig(heartbeat, heal, synthesis time.Duration,
	maxRetries int,
	backoffBase, backoffMax time.Duration,
	logger *logrus.Logger) *Config {

	return &Config{
		HeartbeatTimeout:  heartbeat,
		HealInterval:      heal,
		SynthesisInterval: synthesis,
		MaxRetries:        maxRetries,
		RetryBackoffBase:  backoffBase,
		RetryBackoffMax:   backoffMax,
		Logger:            logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		HeartbeatTimeout:  1000 * time.Millisecond,
		HealInterval:      5000 * time.Millisecond,
		SynthesisInterval: 3000 * time.Millisecond,
		MaxRetries:        10,
		RetryBackoffBase:  50 * time.Millisecond,
		RetryBackoffMax:   5 * time.Second,
		Logger:            logger,
	}
}

// TestConfig ...
func TestConfig(t *testing.T) *Config {
	config := DefaultConfig()

	config.HeartbeatTimeout = 50 * time.Millisecond
	config.HealInterval = 100 * time.Millisecond
	config.SynthesisInterval = 100 * time.Millisecond
	config.RetryBackoffBase = 5 * time.Millisecond
	config.RetryBackoffMax = 50 * time.Millisecond
	config.Logger = common.NewTestLogger(t)

	return config
}
