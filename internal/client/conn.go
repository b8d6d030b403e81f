package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/board"
	"github.com/vovakirdan/wireboard-server/internal/proto"
)

// State is the connection phase of a Conn.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	// StateSynced means the catch-up snapshot has been applied.
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by edits made on a closed Conn.
var ErrNotConnected = errors.New("not connected")

// Conn is a WebSocket session with a board server. Run must be called to
// receive frames. A Conn is not reusable: reconnecting means dialing a new
// one, which gets a new identity and a fresh snapshot.
type Conn struct {
	ws  *websocket.Conn
	log *zerolog.Logger

	// mu guards replica; sendMu keeps local apply order equal to send order.
	mu      sync.Mutex
	sendMu  sync.Mutex
	replica *Replica

	state    atomic.Int32
	closing  atomic.Bool
	synced   chan struct{}
	syncOnce sync.Once
	onFrame  func(proto.Envelope)
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithFrameHandler registers fn to run after each frame is applied.
// fn runs on the Run goroutine.
func WithFrameHandler(fn func(proto.Envelope)) Option {
	return func(c *Conn) {
		c.onFrame = fn
	}
}

// Dial connects to a board server WebSocket endpoint such as ws://host:3001/ws.
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	nop := zerolog.Nop()
	c := &Conn{
		log:     &nop,
		replica: NewReplica(),
		synced:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.setState(StateConnecting)

	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.ws = ws
	return c, nil
}

// State returns the current connection phase.
func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// Run reads and applies server frames until the connection ends. A normal
// close or ctx cancellation returns nil.
func (c *Conn) Run(ctx context.Context) error {
	defer c.setState(StateDisconnected)

	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, c.ws, &env); err != nil {
			if ctx.Err() != nil || c.closing.Load() {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure:
				return nil
			case -1:
				return fmt.Errorf("read frame: %w", err)
			default:
				return fmt.Errorf("server closed connection: %w", err)
			}
		}

		c.mu.Lock()
		err := c.replica.Apply(env)
		synced := c.replica.Synced()
		c.mu.Unlock()

		if err != nil {
			c.log.Warn().Err(err).Str("event", env.Event).Msg("frame not applied")
			continue
		}
		if synced {
			c.syncOnce.Do(func() {
				c.setState(StateSynced)
				close(c.synced)
			})
		}
		if c.onFrame != nil {
			c.onFrame(env)
		}
	}
}

// WaitSynced blocks until the catch-up snapshot has been applied.
func (c *Conn) WaitSynced(ctx context.Context) error {
	select {
	case <-c.synced:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View runs fn with exclusive access to the replica.
func (c *Conn) View(fn func(r *Replica)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.replica)
}

// Close ends the session with a normal closure.
func (c *Conn) Close() error {
	c.closing.Store(true)
	c.setState(StateDisconnected)
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}

// edit applies a local change and sends the resulting frame. ok=false
// skips the send.
func (c *Conn) edit(ctx context.Context, fn func(r *Replica) (proto.Outbound, bool, error)) error {
	if c.State() == StateDisconnected {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	frame, ok, err := fn(c.replica)
	c.mu.Unlock()
	if err != nil || !ok {
		return err
	}
	if err := wsjson.Write(ctx, c.ws, frame); err != nil {
		return fmt.Errorf("send %s: %w", frame.Event, err)
	}
	return nil
}

// DrawStroke draws s locally and sends it.
func (c *Conn) DrawStroke(ctx context.Context, s board.Stroke) error {
	return c.edit(ctx, func(r *Replica) (proto.Outbound, bool, error) {
		return r.DrawStroke(s), true, nil
	})
}

// ClearStrokes clears the stroke log everywhere.
func (c *Conn) ClearStrokes(ctx context.Context) error {
	return c.edit(ctx, func(r *Replica) (proto.Outbound, bool, error) {
		return r.ClearStrokes(), true, nil
	})
}

// AddText creates an annotation and returns it with its assigned id.
func (c *Conn) AddText(ctx context.Context, t board.TextAnnotation) (board.TextAnnotation, error) {
	var added board.TextAnnotation
	err := c.edit(ctx, func(r *Replica) (proto.Outbound, bool, error) {
		var frame proto.Outbound
		var err error
		added, frame, err = r.AddText(t)
		return frame, err == nil, err
	})
	return added, err
}

// UpdateText overwrites an existing annotation.
func (c *Conn) UpdateText(ctx context.Context, t board.TextAnnotation) error {
	return c.edit(ctx, func(r *Replica) (proto.Outbound, bool, error) {
		frame, err := r.UpdateText(t)
		return frame, err == nil, err
	})
}

// DeleteText removes an annotation. Deleting an unknown id is a no-op.
func (c *Conn) DeleteText(ctx context.Context, id string) error {
	return c.edit(ctx, func(r *Replica) (proto.Outbound, bool, error) {
		frame, ok := r.DeleteText(id)
		return frame, ok, nil
	})
}

// Chat sends a chat message.
func (c *Conn) Chat(ctx context.Context, text string) error {
	return c.edit(ctx, func(r *Replica) (proto.Outbound, bool, error) {
		return r.Chat(text), true, nil
	})
}

// SetUsername asks the server to rename this participant.
func (c *Conn) SetUsername(ctx context.Context, name string) error {
	return c.edit(ctx, func(r *Replica) (proto.Outbound, bool, error) {
		return r.SetUsername(name), true, nil
	})
}
