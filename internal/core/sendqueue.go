package core

import (
	"sync"
	"time"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

// queuedSend pairs an outbound packet with the wall-clock instant at
// which it becomes eligible for transmission (spec.md §9 REDESIGN FLAG:
// "Delays are modeled as explicit release-at timestamps on queued
// sends; the scheduler is a loop, not a coroutine").
type queuedSend struct {
	releaseAt time.Time
	pkt       *meshcore.Packet
}

// SendQueue is the CoreLoop's single-producer, single-consumer outbound
// queue (spec.md §5: "The send queue is single-producer, single-consumer
// from the core's perspective").
type SendQueue struct {
	mu    sync.Mutex
	items []queuedSend
}

// NewSendQueue returns an empty SendQueue.
func NewSendQueue() *SendQueue {
	return &SendQueue{}
}

// Enqueue schedules pkt for release at releaseAt. The queue does not
// dedupe or cancel obsolete entries (spec.md §5: "Queued sends that
// become obsolete... are not cancelled").
func (q *SendQueue) Enqueue(pkt *meshcore.Packet, releaseAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, queuedSend{releaseAt: releaseAt, pkt: pkt})
}

// PopReady removes and returns, among packets whose release-at has
// elapsed, the one with the earliest release-at (ties go to the one
// queued first), if any (spec.md §4.12: "drain one pending
// send" per iteration).
func (q *SendQueue) PopReady(now time.Time) (*meshcore.Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	bestIdx := -1
	for i, it := range q.items {
		if now.Before(it.releaseAt) {
			continue
		}
		if bestIdx == -1 || it.releaseAt.Before(q.items[bestIdx].releaseAt) {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return nil, false
	}
	pkt := q.items[bestIdx].pkt
	q.items = append(q.items[:bestIdx], q.items[bestIdx+1:]...)
	return pkt, true
}

// Len returns the number of packets currently queued, ready or not
// (spec.md §4.12: "Sleep decisions: the loop may put the platform into
// low power when there is no pending send").
func (q *SendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
