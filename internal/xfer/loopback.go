package xfer

import (
	"context"
	"fmt"
	"sync"
)

type msgKey struct {
	from, to, tag int
}

// LoopbackNetwork simulates an in-process multi-rank message fabric: N
// Transport endpoints that exchange data purely over Go channels. Used
// by tests to run several simulated ranks inside a single process, and
// with a single endpoint by the solve command and the scheduler's run
// processor.
type LoopbackNetwork struct {
	size int
	mu   sync.Mutex
	box  map[msgKey]chan []float64
}

// NewLoopbackNetwork returns a fabric for `size` simulated ranks.
func NewLoopbackNetwork(size int) *LoopbackNetwork {
	return &LoopbackNetwork{size: size, box: make(map[msgKey]chan []float64)}
}

func (n *LoopbackNetwork) channel(key msgKey) chan []float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, ok := n.box[key]
	if !ok {
		ch = make(chan []float64, 1)
		n.box[key] = ch
	}
	return ch
}

// Endpoint returns the Transport view of the fabric for rank r.
func (n *LoopbackNetwork) Endpoint(r int) Transport {
	return &loopbackEndpoint{net: n, rank: r}
}

type loopbackEndpoint struct {
	net  *LoopbackNetwork
	rank int
}

func (e *loopbackEndpoint) Rank() int { return e.rank }
func (e *loopbackEndpoint) Size() int { return e.net.size }

func (e *loopbackEndpoint) Send(ctx context.Context, peer, tag int, data []float64) error {
	cp := make([]float64, len(data))
	copy(cp, data)
	ch := e.net.channel(msgKey{e.rank, peer, tag})
	select {
	case ch <- cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *loopbackEndpoint) Recv(ctx context.Context, peer, tag int, data []float64) error {
	ch := e.net.channel(msgKey{peer, e.rank, tag})
	select {
	case got := <-ch:
		if len(got) != len(data) {
			return fmt.Errorf("loopback: size mismatch rank %d -> %d: got %d floats, want %d", peer, e.rank, len(got), len(data))
		}
		copy(data, got)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Barrier is a no-op: the core never depends on Barrier to complete a
// ghost exchange, only on the Send/Recv pairs SortAndTransfer awaits.
func (e *loopbackEndpoint) Barrier(ctx context.Context) error {
	return nil
}
