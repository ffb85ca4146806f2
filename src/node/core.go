package node

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meshworks/manifold/src/artifact"
	"github.com/meshworks/manifold/src/common"
	"github.com/meshworks/manifold/src/gate"
	"github.com/meshworks/manifold/src/store"
	"github.com/meshworks/manifold/src/synthesis"
	"github.com/sirupsen/logrus"
)

// Core implements the artifact pipeline of a node: integrity checking,
// deduplication, gating, evolution, synthesis, and local generation. It does
// no locking of its own; the Node serializes access with its coreLock.
type Core struct {
	moniker    string
	store      store.Store
	gate       *gate.Gate
	symposium  *synthesis.Symposium
	forecaster *synthesis.Forecaster

	// counter numbers locally generated artifacts. It survives restarts
	// through the snapshot and the badger store.
	counter int

	logger *logrus.Entry
}

// NewCore ...
func NewCore(
	moniker string,
	st store.Store,
	acceptance *gate.Gate,
	logger *logrus.Entry) *Core {

	return &Core{
		moniker:    moniker,
		store:      st,
		gate:       acceptance,
		symposium:  synthesis.NewSymposium(moniker),
		forecaster: synthesis.NewForecaster(moniker, synthesis.DefaultForecastTop),
		logger:     logger.WithField("moniker", moniker),
	}
}

// Moniker ...
func (c *Core) Moniker() string {
	return c.moniker
}

// Counter returns the next local generation sequence number.
func (c *Core) Counter() int {
	return c.counter
}

// Ingest runs an artifact through the pipeline: verify its content hash,
// deduplicate against the seen-set, gate knowledge artifacts, then store an
// evolved copy carrying this node's moniker in the provenance trail. It
// returns the evolved artifact when it should be propagated to peers, or nil
// when the artifact was dropped (duplicate or rejected).
//
// The seen-set is marked before gating, so a rejected artifact is never
// reconsidered when it arrives again through another peer.
func (c *Core) Ingest(a *artifact.Artifact) (*artifact.Artifact, error) {
	if err := a.Verify(); err != nil {
		return nil, err
	}

	if !c.store.MarkSeen(a.Hash) {
		return nil, nil
	}

	if a.Kind == artifact.Knowledge && !c.gate.Evaluate(a) {
		c.logger.WithFields(logrus.Fields{
			"hash":  a.Hash,
			"score": c.gate.Score(a),
		}).Debug("Gate rejected artifact")
		return nil, nil
	}

	evolved := a.Evolve(c.moniker)

	if err := c.store.SetArtifact(evolved); err != nil {
		if common.IsStore(err, common.KeyAlreadyExists) ||
			common.IsStore(err, common.TooLate) {
			return nil, nil
		}
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"hash":         evolved.Hash,
		"type":         evolved.Kind,
		"processed_by": len(evolved.ProcessedBy),
	}).Debug("Ingested artifact")

	return evolved, nil
}

// Synthesize runs a symposium over the accumulated knowledge artifacts and
// stores the resulting meta artifact. Because the meta artifact's hash is
// derived from the joined input data, re-running over an unchanged store
// reproduces a hash already in the seen-set; in that case Synthesize returns
// nil and stores nothing.
func (c *Core) Synthesize() (*artifact.Artifact, error) {
	inputs := c.store.Artifacts(artifact.Knowledge)

	meta, err := c.symposium.Reduce(inputs)
	if err != nil {
		return nil, err
	}

	return c.insertMeta(meta)
}

// Forecast builds a predictive meta artifact from the highest-impact
// knowledge artifacts and stores it. Like Synthesize, it returns nil when
// the forecast was already produced.
func (c *Core) Forecast() (*artifact.Artifact, error) {
	inputs := c.store.Artifacts(artifact.Knowledge)

	meta, err := c.forecaster.Forecast(inputs)
	if err != nil {
		return nil, err
	}

	return c.insertMeta(meta)
}

func (c *Core) insertMeta(meta *artifact.Artifact) (*artifact.Artifact, error) {
	meta.ProcessedBy = []string{c.moniker}

	if !c.store.MarkSeen(meta.Hash) {
		return nil, nil
	}

	if err := c.store.SetArtifact(meta); err != nil {
		if common.IsStore(err, common.TooLate) {
			return nil, nil
		}
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"hash":  meta.Hash,
		"value": meta.Value,
	}).Debug("Synthesized meta artifact")

	return meta, nil
}

// Generate creates a new knowledge artifact from the local sequence counter
// and ingests it. The generated artifact goes through the same gate as
// anything received from the network.
func (c *Core) Generate() (*artifact.Artifact, error) {
	data := fmt.Sprintf("%s insight #%d", c.moniker, c.counter)
	c.counter++

	return c.Ingest(artifact.New(data, artifact.Knowledge))
}

// Snapshot captures the store's current contents.
func (c *Core) Snapshot() *store.Snapshot {
	return store.NewSnapshot(c.store)
}

// Restore loads a snapshot into the store, marks every restored hash seen,
// and re-derives the generation counter from the restored artifacts.
func (c *Core) Restore(snap *store.Snapshot) error {
	restored := snap.Artifacts()

	for _, a := range restored {
		if err := c.store.SetArtifact(a); err != nil {
			if common.IsStore(err, common.KeyAlreadyExists) ||
				common.IsStore(err, common.TooLate) {
				continue
			}
			return err
		}
		c.store.MarkSeen(a.Hash)
	}

	c.restoreCounter(restored)

	c.logger.WithFields(logrus.Fields{
		"artifacts": len(restored),
		"counter":   c.counter,
	}).Debug("Restored snapshot")

	return nil
}

// Bootstrap re-derives the generation counter after the store was loaded
// from an existing database.
func (c *Core) Bootstrap() error {
	if !c.store.NeedBootstrap() {
		return nil
	}

	c.restoreCounter(c.store.AllArtifacts())

	c.logger.WithField("counter", c.counter).Debug("Bootstrapped from store")

	return nil
}

// restoreCounter sets the generation counter to one past the highest
// sequence number this node has generated before, so restored nodes never
// reissue a previous artifact.
func (c *Core) restoreCounter(artifacts []*artifact.Artifact) {
	prefix := fmt.Sprintf("%s insight #", c.moniker)

	max := -1
	for _, a := range artifacts {
		if a.Kind != artifact.Knowledge || !strings.HasPrefix(a.Data, prefix) {
			continue
		}
		n, err := strconv.Atoi(a.Data[len(prefix):])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}

	if max >= 0 {
		c.counter = max + 1
	}
}
