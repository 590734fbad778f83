package server

import (
	"sync"
	"sync/atomic"
)

const clientBuffer = 64

type client struct {
	send chan []byte
}

// hub fans encoded messages out to websocket clients. A client that falls
// behind loses messages instead of stalling the control loop.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	dropped atomic.Uint64
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add() *client {
	c := &client{send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.offer(c, msg)
	}
}

// sendTo queues msg for one client if it is still registered.
func (h *hub) sendTo(c *client, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.offer(c, msg)
	}
}

func (h *hub) offer(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.dropped.Add(1)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
