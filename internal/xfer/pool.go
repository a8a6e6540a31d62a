package xfer

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	apperr "github.com/octmg/octmg/pkg/errors"
)

// peerBuf holds one remote peer's packing/unpacking state: flat send
// and receive payload arrays, a parallel sort-key array for the records
// currently staged in Send, and write/read cursors into all three.
type peerBuf struct {
	Send []float64
	Recv []float64
	Ix   []int

	iSend int
	iRecv int
	iIx   int

	sendCap int
	recvCap int
}

// Pool is the rank buffer pool described in spec.md §4.1: per-peer send
// and receive buffers sized by a two-pass dry run, then reused across
// every ghost-cell exchange without reallocating.
type Pool struct {
	transport Transport
	peers     map[int]*peerBuf

	// sizing accumulates per-level record counts (in records, not
	// floats) during SizeBuffers; Finalize reduces them to per-peer
	// capacities and allocates the real buffers.
	sizing   bool
	nSend    map[int]map[int]int // peer -> level -> record count
	nRecv    map[int]map[int]int
	curLevel int
	dsize    int
}

// NewPool returns a pool bound to the given transport, with no buffers
// allocated yet; call SizeBuffers then Finalize before the first real
// exchange.
func NewPool(t Transport) *Pool {
	return &Pool{
		transport: t,
		peers:     make(map[int]*peerBuf),
		nSend:     make(map[int]map[int]int),
		nRecv:     make(map[int]map[int]int),
	}
}

func (p *Pool) peer(r int) *peerBuf {
	pb, ok := p.peers[r]
	if !ok {
		pb = &peerBuf{}
		p.peers[r] = pb
	}
	return pb
}

// ReserveSend advances peer r's send cursor by n floats (one record's
// worth of payload) and returns the offset the caller should write to.
func (p *Pool) ReserveSend(r, n int) int {
	pb := p.peer(r)
	off := pb.iSend
	pb.iSend += n
	return off
}

// ReserveRecv advances peer r's receive cursor by n floats and returns
// the offset the caller should expect data to land at.
func (p *Pool) ReserveRecv(r, n int) int {
	pb := p.peer(r)
	off := pb.iRecv
	pb.iRecv += n
	return off
}

// PushKey records the canonical sort key for the record just reserved
// via ReserveSend on peer r.
func (p *Pool) PushKey(r, key int) {
	pb := p.peer(r)
	pb.Ix[pb.iIx] = key
	pb.iIx++
}

// SendSlice returns the writable window for the record most recently
// reserved via ReserveSend at offset off of length n.
func (p *Pool) SendSlice(r, off, n int) []float64 {
	return p.peer(r).Send[off : off+n]
}

// RecvSlice returns the readable window for the record most recently
// reserved via ReserveRecv at offset off of length n.
func (p *Pool) RecvSlice(r, off, n int) []float64 {
	return p.peer(r).Recv[off : off+n]
}

// ResetCursors zeroes every peer's send/recv/key write cursors, without
// discarding allocated capacity. Called once per level before packing.
func (p *Pool) ResetCursors() {
	for _, pb := range p.peers {
		pb.iSend, pb.iRecv, pb.iIx = 0, 0, 0
	}
}

// ResetRecvCursor zeroes only the receive-side read cursors, leaving
// send state untouched. Used between the packing pass and the dispatch
// pass of a single exchange, where recv data must be consumed from the
// start.
func (p *Pool) ResetRecvCursor() {
	for _, pb := range p.peers {
		pb.iRecv = 0
	}
}

// BeginSizing starts a two-pass dry-run sizing sweep for the given
// record payload size (dsize floats per record, e.g. a face slab).
func (p *Pool) BeginSizing(dsize int) {
	p.sizing = true
	p.dsize = dsize
}

// RecordLevel snapshots the current send/recv cursors (in records, i.e.
// divided by dsize) as this level's contribution to each touched peer's
// capacity, then resets cursors for the next level.
func (p *Pool) RecordLevel(lvl int) {
	for r, pb := range p.peers {
		if pb.iSend > 0 {
			if p.nSend[r] == nil {
				p.nSend[r] = map[int]int{}
			}
			p.nSend[r][lvl] = pb.iSend / p.dsize
		}
		if pb.iRecv > 0 {
			if p.nRecv[r] == nil {
				p.nRecv[r] = map[int]int{}
			}
			p.nRecv[r][lvl] = pb.iRecv / p.dsize
		}
	}
	p.ResetCursors()
}

// Finalize reduces the recorded per-level counts to a single per-peer
// capacity (the max across levels), allocates Send/Recv/Ix to that
// capacity, and ends the sizing sweep.
func (p *Pool) Finalize() {
	cap := map[int]struct{ send, recv int }{}
	for r, byLvl := range p.nSend {
		c := cap[r]
		for _, n := range byLvl {
			if n > c.send {
				c.send = n
			}
		}
		cap[r] = c
	}
	for r, byLvl := range p.nRecv {
		c := cap[r]
		for _, n := range byLvl {
			if n > c.recv {
				c.recv = n
			}
		}
		cap[r] = c
	}
	for r, c := range cap {
		pb := p.peer(r)
		pb.sendCap, pb.recvCap = c.send, c.recv
		pb.Send = make([]float64, c.send*p.dsize)
		pb.Recv = make([]float64, c.recv*p.dsize)
		pb.Ix = make([]int, c.send)
	}
	p.sizing = false
	p.ResetCursors()
}

// NSend returns the record count recorded for peer r at level lvl
// during sizing (0 if none).
func (p *Pool) NSend(r, lvl int) int { return p.nSend[r][lvl] }

// NRecv returns the record count recorded for peer r at level lvl
// during sizing (0 if none).
func (p *Pool) NRecv(r, lvl int) int { return p.nRecv[r][lvl] }

// ExpectRecv sets peer r's receive cursor ceiling to n records (called
// before SortAndTransfer using the level's recorded NRecv).
func (p *Pool) ExpectRecv(r, n int) {
	p.peer(r).iRecv = n * p.dsize
}

// SortAndTransfer stable-sorts every peer's staged send records by key,
// then posts sends/recvs to all touched peers concurrently and awaits
// every completion. This is the one true concurrency point and
// suspension boundary in the core: within it, and nowhere else, work
// for distinct peers genuinely overlaps.
func (p *Pool) SortAndTransfer(ctx context.Context, dsize int) error {
	for _, pb := range p.peers {
		sortPeerRecords(pb, dsize)
	}

	g, gctx := errgroup.WithContext(ctx)
	for r, pb := range p.peers {
		r, pb := r, pb
		if pb.iSend > 0 {
			g.Go(func() error {
				if err := p.transport.Send(gctx, r, ghostTag, pb.Send[:pb.iSend]); err != nil {
					return apperr.Wrap(apperr.CodeTransportError, fmt.Sprintf("send to peer %d", r), err)
				}
				return nil
			})
		}
		if pb.iRecv > 0 {
			g.Go(func() error {
				if err := p.transport.Recv(gctx, r, ghostTag, pb.Recv[:pb.iRecv]); err != nil {
					return apperr.Wrap(apperr.CodeTransportError, fmt.Sprintf("recv from peer %d", r), err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.ResetRecvCursor()
	return nil
}

const ghostTag = 1

// sortPeerRecords stably sorts pb.Send in place, dsize floats at a time,
// by ascending pb.Ix key, using an index-permutation gather so the sort
// itself only ever compares and swaps integers.
func sortPeerRecords(pb *peerBuf, dsize int) {
	n := pb.iIx
	if n <= 1 {
		return
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return pb.Ix[perm[a]] < pb.Ix[perm[b]]
	})
	sorted := make([]float64, n*dsize)
	for newPos, oldPos := range perm {
		copy(sorted[newPos*dsize:(newPos+1)*dsize], pb.Send[oldPos*dsize:(oldPos+1)*dsize])
	}
	copy(pb.Send, sorted)
}
