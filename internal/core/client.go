package core

import "sync/atomic"

const minClientBuffer = 8

// Client is a connected participant as seen by the core layer.
// The transport writes to Commands and drains Events; the hub closes
// Events when the client is detached.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	gone    chan struct{}
	evicted atomic.Bool
}

// NewClient constructs a client whose outbound queue holds buffer events.
func NewClient(id string, buffer int) *Client {
	if buffer < minClientBuffer {
		buffer = minClientBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, minClientBuffer),
		Events:   make(chan *Event, buffer),
		gone:     make(chan struct{}),
	}
}

// Done is closed once the hub has detached the client.
func (c *Client) Done() <-chan struct{} {
	return c.gone
}

// Evicted reports whether the hub dropped the client for not keeping up.
func (c *Client) Evicted() bool {
	return c.evicted.Load()
}

// offer enqueues ev without blocking and reports whether it fit.
func (c *Client) offer(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
