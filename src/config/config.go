package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/meshworks/manifold/src/common"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the
	// Badger database
	DefaultBadgerFile = "badger_db"

	// DefaultSnapshotFile is the default name of the JSON snapshot file
	DefaultSnapshotFile = "snapshot.json"

	// DefaultPeersFile is the default name of the peers file
	DefaultPeersFile = "peers.json"
)

// Default configuration values.
const (
	DefaultLogLevel          = "debug"
	DefaultBindAddr          = "127.0.0.1:1337"
	DefaultServiceAddr       = "127.0.0.1:8000"
	DefaultHeartbeatTimeout  = 1000 * time.Millisecond
	DefaultHealInterval      = 5000 * time.Millisecond
	DefaultSynthesisInterval = 3000 * time.Millisecond
	DefaultTCPTimeout        = 1000 * time.Millisecond
	DefaultMaxPool           = 2
	DefaultMaxRetries        = 10
	DefaultBackoffBase       = 50 * time.Millisecond
	DefaultBackoffMax        = 5000 * time.Millisecond
	DefaultThreshold         = 0.3
	DefaultDiscoveryPort     = 0
	DefaultDiscoveryInterval = 2000 * time.Millisecond
	DefaultStore             = false
)

// Config contains all the configuration properties of a Manifold node.
type Config struct {
	// DataDir is the top-level directory containing Manifold configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// Moniker defines the friendly name of this node. It is stamped into
	// the provenance trail of every artifact the node processes.
	Moniker string `mapstructure:"moniker"`

	// BindAddr is the local address:port where this node exchanges
	// artifacts with other nodes. In some cases, there may be a routable
	// address that cannot be bound. Use AdvertiseAddr to advertise a
	// different address to support this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to
	// other nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// HeartbeatTimeout is the interval between locally generated artifacts
	// when the node runs with generation enabled.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// HealInterval is the interval between anti-entropy rounds.
	HealInterval time.Duration `mapstructure:"heal"`

	// SynthesisInterval is the interval between symposium rounds.
	SynthesisInterval time.Duration `mapstructure:"synthesis"`

	// MaxPool controls how many connections are pooled per target in the
	// propagation routines.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of artifact send connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// MaxRetries is the number of consecutive failed sends after which a
	// peer is dropped from the active set.
	MaxRetries int `mapstructure:"max-retries"`

	// BackoffBase is the delay applied after a peer's first failed send;
	// it doubles with every further failure.
	BackoffBase time.Duration `mapstructure:"backoff-base"`

	// BackoffMax caps the per-peer backoff delay.
	BackoffMax time.Duration `mapstructure:"backoff-max"`

	// Threshold is the acceptance gate threshold. An artifact is accepted
	// when its mean advisor score strictly exceeds it.
	Threshold float64 `mapstructure:"threshold"`

	// DiscoveryPort is the UDP port used for peer discovery broadcasts.
	// Discovery is disabled when 0.
	DiscoveryPort int `mapstructure:"discovery-port"`

	// DiscoveryInterval is the interval between discovery announcements.
	DiscoveryInterval time.Duration `mapstructure:"discovery-interval"`

	// NoGenerate disables local artifact generation; the node only relays
	// and synthesizes.
	NoGenerate bool `mapstructure:"no-generate"`

	// Store activates persistent storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// NoSnapshot disables the JSON snapshot file.
	NoSnapshot bool `mapstructure:"no-snapshot"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		BindAddr:          DefaultBindAddr,
		ServiceAddr:       DefaultServiceAddr,
		HeartbeatTimeout:  DefaultHeartbeatTimeout,
		HealInterval:      DefaultHealInterval,
		SynthesisInterval: DefaultSynthesisInterval,
		TCPTimeout:        DefaultTCPTimeout,
		MaxPool:           DefaultMaxPool,
		MaxRetries:        DefaultMaxRetries,
		BackoffBase:       DefaultBackoffBase,
		BackoffMax:        DefaultBackoffMax,
		Threshold:         DefaultThreshold,
		DiscoveryPort:     DefaultDiscoveryPort,
		DiscoveryInterval: DefaultDiscoveryInterval,
		Store:             DefaultStore,
		DatabaseDir:       DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level Manifold directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely
// set it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// SnapshotFile returns the full path of the JSON snapshot file.
func (c *Config) SnapshotFile() string {
	return filepath.Join(c.DataDir, DefaultSnapshotFile)
}

// PeersFile returns the full path of the peers file.
func (c *Config) PeersFile() string {
	return filepath.Join(c.DataDir, DefaultPeersFile)
}

// SetLogger replaces the logger built lazily by Logger. It is used by the
// CLI to install a logger with file hooks before any component starts.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// Logger returns a formatted logrus Entry, with prefix set to "manifold".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "manifold")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level Manifold
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Manifold")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Manifold")
		} else {
			return filepath.Join(home, ".manifold")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
