/*
Package node implements the mesh node engine.

A Node owns the local artifact stores, the seen-set, the acceptance gate,
the synthesis units, and the peer list. It consumes artifacts from a
transport, runs them through the ingest pipeline (dedup, integrity check,
gate, evolve, store), and propagates accepted artifacts to its peers.

Background routines keep the mesh converging without acknowledgements:

  - self-heal periodically re-broadcasts every known artifact, so peers
    that missed a delivery or restarted catch up eventually;
  - synthesis periodically reduces the accepted artifacts into derived
    meta artifacts;
  - generation periodically creates synthetic local artifacts and feeds
    them through the same ingest path as remote ones.

All mutations of node state go through a single coarse lock; network I/O
happens outside it. The dedup check-and-insert on the seen-set is atomic,
so the same hash can never be accepted twice concurrently.
*/
package node
