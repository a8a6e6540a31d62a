// Package xfer implements the per-rank buffer pool and the narrow
// point-to-point transport the ghost-cell engine drives. The actual
// message-passing binding (the network layer itself) is an external
// collaborator: Transport below is the seam it plugs into.
package xfer

import "context"

// Transport is the point-to-point messaging interface the core
// consumes: Send/Recv to/from a specific peer rank, plus a collective
// Barrier. It is deliberately narrow -- no broadcast, no reduce, no
// handshake -- because the buffer pool precomputes exact message sizes
// on both ends before any real exchange runs.
type Transport interface {
	Rank() int
	Size() int
	Send(ctx context.Context, peer, tag int, data []float64) error
	Recv(ctx context.Context, peer, tag int, data []float64) error
	Barrier(ctx context.Context) error
}
