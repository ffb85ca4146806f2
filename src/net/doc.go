/*
Package net implements the transport layer of the artifact mesh.

Artifacts travel between nodes as length-prefixed frames over persistent
connections:

	[4-byte big-endian length N][N bytes of canonical JSON artifact]

A NetworkTransport listens on a StreamLayer (plain TCP by default), runs one
goroutine per inbound connection decoding frames into a consume channel, and
maintains a small pool of outbound connections per target for sends. Frames
whose payload fails to decode, or whose declared hash does not match the
recomputed content hash, are dropped and logged; they are never fatal and
never propagated.

An InmemTransport provides the same interface without sockets for tests.
*/
package net
