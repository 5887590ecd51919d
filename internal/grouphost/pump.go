// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package grouphost

// MessagePump drains the shared windowing message queue owned by the group
// process's main thread. Implementations are only ever called from the
// host's main loop, so they need no internal locking for the drain itself.
type MessagePump interface {
	// Pump dispatches up to max queued messages and returns how many it
	// handled. The cap keeps one plugin's message storm from blocking the
	// event loop indefinitely.
	Pump(max int) int
}

// NopPump is a MessagePump for platforms or embeddings without a shared
// message queue.
type NopPump struct{}

func (NopPump) Pump(int) int { return 0 }

// QueuePump is a channel-backed MessagePump. The embedding that owns the
// real platform queue posts closures from any thread; the host's event loop
// runs them on the main thread, up to the per-tick budget.
type QueuePump struct {
	messages chan func()
}

// NewQueuePump creates a QueuePump with the given queue depth.
func NewQueuePump(depth int) *QueuePump {
	return &QueuePump{messages: make(chan func(), depth)}
}

// Post enqueues a message. Returns false when the queue is full.
func (p *QueuePump) Post(msg func()) bool {
	select {
	case p.messages <- msg:
		return true
	default:
		return false
	}
}

// Pump runs queued messages on the calling goroutine.
func (p *QueuePump) Pump(max int) int {
	for n := 0; n < max; n++ {
		select {
		case msg := <-p.messages:
			msg()
		default:
			return n
		}
	}
	return max
}
