package events

import (
	"context"
	"sync"
	"time"
)

// Hub buffers recent messages and wakes waiting consumers. Each consumer
// keeps its own cursor, so a slow websocket never holds up the controller.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Message
	nextSeq  uint64
	now      func() time.Time
}

// NewHub returns a hub retaining up to capacity messages.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 1024
	}
	h := &Hub{capacity: capacity, now: time.Now}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish assigns the next sequence number to msg and buffers it.
func (h *Hub) Publish(msg Message) Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	msg.Seq = h.nextSeq
	if msg.Time.IsZero() {
		msg.Time = h.now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, msg)
	h.cond.Broadcast()
	return msg
}

// Fetch returns up to limit messages with sequence greater than since and
// the sequence to pass next time. When wait is true it blocks until a
// message arrives or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Message, uint64, error) {
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	stop := make(chan struct{})
	defer close(stop)
	if wait && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-stop:
			}
		}()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		msgs, next := h.snapshotLocked(since, limit)
		if len(msgs) > 0 || !wait {
			return msgs, next, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, since, err
		}
		h.cond.Wait()
	}
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Message, uint64) {
	for i, msg := range h.buffer {
		if msg.Seq > since {
			end := min(i+limit, len(h.buffer))
			out := append([]Message(nil), h.buffer[i:end]...)
			return out, out[len(out)-1].Seq
		}
	}
	return nil, max(since, h.nextSeq)
}

// Last returns the sequence of the newest message.
func (h *Hub) Last() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

// FirstSequence reports the oldest sequence still buffered.
func (h *Hub) FirstSequence() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq + 1
	}
	return h.buffer[0].Seq
}

// Behind reports whether messages after since were already evicted. Such a
// consumer should resynchronise from a state snapshot.
func (h *Hub) Behind(since uint64) bool {
	return since+1 < h.FirstSequence()
}
