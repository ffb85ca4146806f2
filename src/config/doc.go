// Package config defines the configuration for a Manifold node.
//
// Regardless of how Manifold is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object
// defined in this package to store and forward configuration options. On top
// of these configuration options, Manifold relies on a data directory,
// defined by Config.DataDir, where it expects to find a few additional
// files:
//
//	peers.json // a JSON file containing the current list of peers.
//	snapshot.json // the JSON snapshot written after every state change.
//	badger_db // (optional) the Badger database when persistent storage is on.
package config
