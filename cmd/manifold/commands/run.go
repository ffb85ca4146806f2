package commands

import (
	"os"

	"github.com/meshworks/manifold/src/config"
	"github.com/meshworks/manifold/src/manifold"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

//NewRunCmd returns the command that starts a Manifold node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runManifold,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runManifold(cmd *cobra.Command, args []string) error {
	engine := manifold.NewManifold(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name stamped into artifact provenance")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for artifact exchange")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for artifact exchange")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")
	cmd.Flags().Int("max-retries", _config.MaxRetries, "Failed sends before a peer is dropped")
	cmd.Flags().Duration("backoff-base", _config.BackoffBase, "Initial per-peer retry backoff")
	cmd.Flags().Duration("backoff-max", _config.BackoffMax, "Per-peer retry backoff ceiling")

	// Discovery
	cmd.Flags().Int("discovery-port", _config.DiscoveryPort, "UDP port for peer discovery, 0 to disable")
	cmd.Flags().Duration("discovery-interval", _config.DiscoveryInterval, "Time between discovery announcements")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().Bool("no-snapshot", _config.NoSnapshot, "Disable the JSON snapshot file")

	// Node configuration
	cmd.Flags().Duration("heartbeat", _config.HeartbeatTimeout, "Time between generated artifacts")
	cmd.Flags().Duration("heal", _config.HealInterval, "Time between anti-entropy rounds")
	cmd.Flags().Duration("synthesis", _config.SynthesisInterval, "Time between symposium rounds")
	cmd.Flags().Float64("threshold", _config.Threshold, "Acceptance gate threshold")
	cmd.Flags().Bool("no-generate", _config.NoGenerate, "Relay and synthesize only, do not generate")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	_config.SetLogger(newLogger())

	logFields := logrus.Fields{
		"DataDir":           _config.DataDir,
		"BindAddr":          _config.BindAddr,
		"AdvertiseAddr":     _config.AdvertiseAddr,
		"ServiceAddr":       _config.ServiceAddr,
		"MaxPool":           _config.MaxPool,
		"Store":             _config.Store,
		"LogLevel":          _config.LogLevel,
		"Moniker":           _config.Moniker,
		"HeartbeatTimeout":  _config.HeartbeatTimeout,
		"HealInterval":      _config.HealInterval,
		"SynthesisInterval": _config.SynthesisInterval,
		"TCPTimeout":        _config.TCPTimeout,
		"Threshold":         _config.Threshold,
		"DiscoveryPort":     _config.DiscoveryPort,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all
	// other persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/manifold.toml (.json, .yaml also work)
	viper.SetConfigName("manifold")      // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

func newLogger() *logrus.Logger {
	logger := logrus.New()

	logger.Level = config.LogLevel(_config.LogLevel)
	logger.Formatter = new(prefixed.TextFormatter)

	pathMap := lfshook.PathMap{}

	_, err := os.OpenFile("manifold_info.log", os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Info("Failed to open manifold_info.log file, using default stderr")
	} else {
		pathMap[logrus.InfoLevel] = "manifold_info.log"
	}

	_, err = os.OpenFile("manifold_debug.log", os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Info("Failed to open manifold_debug.log file, using default stderr")
	} else {
		pathMap[logrus.DebugLevel] = "manifold_debug.log"
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))

	return logger
}
