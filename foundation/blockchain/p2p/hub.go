// Package p2p provides the transports used by the consensus protocol to
// exchange messages between nodes.
package p2p

import (
	"encoding/json"
	"sync"

	"github.com/ardanlabs/peerledger/foundation/blockchain/consensus"
)

// inboxSize is the number of messages a hub member can have queued.
const inboxSize = 256

// Hub connects in-process nodes. Every broadcast is delivered to every other
// member of the hub.
type Hub struct {
	mu      sync.RWMutex
	members map[string]*HubTransport
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{
		members: make(map[string]*HubTransport),
	}
}

// Join adds a node to the hub and returns its transport.
func (h *Hub) Join(nodeID string) *HubTransport {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t, exists := h.members[nodeID]; exists {
		return t
	}

	t := HubTransport{
		hub:      h,
		nodeID:   nodeID,
		handlers: make(map[consensus.MessageKind]consensus.HandlerFunc),
		inbox:    make(chan consensus.Message, inboxSize),
		done:     make(chan struct{}),
	}
	h.members[nodeID] = &t

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.dispatch()
	}()

	return &t
}

// Leave removes the node from the hub and stops its delivery.
func (h *Hub) Leave(nodeID string) {
	h.mu.Lock()
	t, exists := h.members[nodeID]
	delete(h.members, nodeID)
	h.mu.Unlock()

	if exists {
		close(t.done)
		t.wg.Wait()
	}
}

// deliver queues the message for every member except the sender.
func (h *Hub) deliver(from string, msg consensus.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, t := range h.members {
		if id == from {
			continue
		}

		select {
		case t.inbox <- msg:
		case <-t.done:
		}
	}
}

// =============================================================================

// HubTransport is the view of the hub for one node. It implements the
// consensus.Transport interface.
type HubTransport struct {
	hub    *Hub
	nodeID string

	mu       sync.RWMutex
	handlers map[consensus.MessageKind]consensus.HandlerFunc

	inbox chan consensus.Message
	done  chan struct{}
	wg    sync.WaitGroup
}

// Broadcast sends the message to every other member of the hub.
func (t *HubTransport) Broadcast(kind consensus.MessageKind, data json.RawMessage) error {
	msg := consensus.Message{
		Kind: kind,
		Data: append(json.RawMessage(nil), data...),
	}

	go t.hub.deliver(t.nodeID, msg)

	return nil
}

// Handle registers the handler for the message kind.
func (t *HubTransport) Handle(kind consensus.MessageKind, fn consensus.HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handlers[kind] = fn
}

// dispatch calls the handlers for the queued messages one at a time.
func (t *HubTransport) dispatch() {
	for {
		select {
		case msg := <-t.inbox:
			t.mu.RLock()
			fn, exists := t.handlers[msg.Kind]
			t.mu.RUnlock()

			if exists {
				fn(msg.Data)
			}

		case <-t.done:
			return
		}
	}
}
