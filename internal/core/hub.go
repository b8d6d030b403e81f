package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vovakirdan/wireboard-server/internal/board"
)

const (
	tracerName           = "github.com/vovakirdan/wireboard-server/internal/core"
	defaultCommandBuffer = 256
	chatTimeLayout       = "15:04"
)

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub sequences every session mutation. Run processes one command at a
// time, applies it to the session and fans the result out before taking
// the next one, so the order Run finishes commands is the session order.
type Hub struct {
	session  *Session
	audience *audience

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	queries    chan func(*Session)
	done       chan struct{}

	log      *zerolog.Logger
	observer Observer
	tap      Tap
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithObserver sets the hub observer.
func WithObserver(o Observer) Option {
	return func(h *Hub) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithTap mirrors broadcast events to t.
func WithTap(t Tap) Option {
	return func(h *Hub) {
		if t != nil {
			h.tap = t
		}
	}
}

// WithCommandBuffer sets the capacity of the shared inbound queue.
func WithCommandBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.commands = make(chan clientCommand, n)
		}
	}
}

// WithClock overrides the time source used for chat timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub creates a hub around a fresh session.
func NewHub(opts ...Option) *Hub {
	nop := zerolog.Nop()
	h := &Hub{
		session:    NewSession(),
		audience:   newAudience(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand, defaultCommandBuffer),
		queries:    make(chan func(*Session)),
		done:       make(chan struct{}),
		log:        &nop,
		observer:   NopObserver{},
		tap:        nopTap{},
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes registrations, commands and queries until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.audience.members() {
				h.detach(c)
			}
			return
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case cc := <-h.commands:
			h.handleCommand(ctx, cc.client, cc.cmd)
		case q := <-h.queries:
			q(h.session)
		}
	}
}

// RegisterClient attaches c to the session. The hub replies with the
// catch-up snapshot on c.Events.
func (h *Hub) RegisterClient(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// UnregisterClient detaches c. Safe to call for an already detached client.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Stats reads session counters through the sequencing loop.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	return query(ctx, h, (*Session).Stats)
}

// Overview reads the board and roster in one step of the sequencing loop,
// so both reflect the same seq.
func (h *Hub) Overview(ctx context.Context) (Overview, error) {
	return query(ctx, h, (*Session).Overview)
}

// query runs read on the hub goroutine between two commands.
func query[T any](ctx context.Context, h *Hub, read func(*Session) T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	q := func(s *Session) { reply <- read(s) }

	select {
	case h.queries <- q:
	case <-h.done:
		return zero, ErrHubStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	if !h.audience.add(c) {
		return
	}
	user := h.session.Join(c.ID)
	h.observer.ClientConnected()
	h.log.Info().Str("client_id", c.ID).Str("username", user.Username).Int("online", h.audience.len()).Msg("user connected")

	snap := h.session.Snapshot()
	for _, ev := range []*Event{
		{Kind: EventLoadDrawing, Seq: snap.Seq, Strokes: snap.Strokes},
		{Kind: EventLoadTexts, Seq: snap.Seq, Texts: snap.Texts},
		{Kind: EventAssignUsername, Username: user.Username},
	} {
		if !h.unicast(c, ev) {
			return
		}
	}
	h.fanout(h.userListEvent(), nil)

	go h.pump(ctx, c)
}

func (h *Hub) handleUnregister(c *Client) {
	if !h.detach(c) {
		return
	}
	h.fanout(h.userListEvent(), nil)
}

// pump forwards c's commands into the shared queue until c is detached.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-c.gone:
				return
			case <-ctx.Done():
				return
			}
		case <-c.gone:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	start := h.now()
	kind := cmd.Kind.String()
	_, span := h.tracer.Start(ctx, "wireboard."+kind,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("wireboard.client_id", c.ID)),
	)
	defer span.End()

	ev, reason := h.apply(c, cmd)
	if reason != "" {
		span.AddEvent("dropped", trace.WithAttributes(attribute.String("wireboard.reason", reason)))
		h.Drop(c.ID, kind, reason)
		return
	}
	if ev == nil {
		h.observer.EventApplied(kind, h.now().Sub(start))
		return
	}
	if ev.Mutation() {
		span.SetAttributes(attribute.Int64("wireboard.seq", int64(ev.Seq)))
	}
	h.observer.EventApplied(kind, h.now().Sub(start))
	h.tap.Offer(ev)

	skip := c
	if ev.Kind == EventChat {
		skip = nil
	}
	h.fanout(ev, skip)
}

// Drop records an event that was neither applied nor relayed.
func (h *Hub) Drop(clientID, kind, reason string) {
	h.observer.EventDropped(kind, reason)
	h.log.Debug().Str("client_id", clientID).Str("event", kind).Str("reason", reason).Msg("event dropped")
}

// apply mutates the session for cmd and returns the event to broadcast.
// A non-empty reason means the command was dropped. Renames are handled
// in place and return neither.
func (h *Hub) apply(c *Client, cmd *Command) (*Event, string) {
	switch cmd.Kind {
	case CommandDrawStroke:
		seq := h.session.AppendStroke(cmd.Stroke)
		return &Event{Kind: EventStroke, Seq: seq, Stroke: cmd.Stroke}, ""
	case CommandClearStrokes:
		seq := h.session.ResetStrokes()
		return &Event{Kind: EventClear, Seq: seq}, ""
	case CommandAddText:
		seq, err := h.session.AddText(cmd.Text)
		if err != nil {
			return nil, textReason(err)
		}
		return &Event{Kind: EventTextAdded, Seq: seq, Text: cmd.Text}, ""
	case CommandUpdateText:
		seq, err := h.session.UpdateText(cmd.Text)
		if err != nil {
			return nil, textReason(err)
		}
		return &Event{Kind: EventTextUpdated, Seq: seq, Text: cmd.Text}, ""
	case CommandDeleteText:
		seq, removed := h.session.DeleteText(cmd.TextID)
		if !removed {
			return nil, ReasonNotFound
		}
		return &Event{Kind: EventTextDeleted, Seq: seq, TextID: cmd.TextID}, ""
	case CommandChat:
		return &Event{Kind: EventChat, Chat: h.fillChat(c, cmd.Chat)}, ""
	case CommandSetUsername:
		return nil, h.rename(c, cmd.Username)
	default:
		return nil, ReasonUnknownEvent
	}
}

func (h *Hub) rename(c *Client, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ReasonEmptyUsername
	}
	user, ok := h.session.Rename(c.ID, name)
	if !ok {
		return ReasonNotFound
	}
	h.log.Info().Str("client_id", c.ID).Str("username", user.Username).Msg("user renamed")
	h.fanout(h.userListEvent(), nil)
	if h.audience.has(c) {
		h.unicast(c, &Event{Kind: EventAssignUsername, Username: user.Username})
	}
	return ""
}

func (h *Hub) fillChat(c *Client, msg ChatMessage) ChatMessage {
	if strings.TrimSpace(msg.User) == "" {
		if u, ok := h.session.User(c.ID); ok {
			msg.User = u.Username
		}
	}
	if msg.Time == "" {
		msg.Time = h.now().Format(chatTimeLayout)
	}
	return msg
}

func (h *Hub) userListEvent() *Event {
	return &Event{Kind: EventUserList, Users: h.session.Roster()}
}

// unicast offers ev to c, evicting c if its queue is full.
func (h *Hub) unicast(c *Client, ev *Event) bool {
	if c.offer(ev) {
		return true
	}
	h.evict(c)
	return false
}

// fanout offers ev to everyone but skip and evicts whoever cannot keep up.
func (h *Hub) fanout(ev *Event, skip *Client) {
	for _, slow := range h.audience.broadcast(ev, skip) {
		h.evict(slow)
	}
}

// evict detaches a client that fell behind. Dropping events instead would
// leave its replica permanently diverged; an evicted client reconnects and
// receives a fresh snapshot.
func (h *Hub) evict(c *Client) {
	c.evicted.Store(true)
	if !h.detach(c) {
		return
	}
	h.observer.ClientEvicted()
	h.log.Warn().Str("client_id", c.ID).Msg("slow client evicted")
	h.fanout(h.userListEvent(), nil)
}

// detach removes c from the audience and roster and closes its channels.
func (h *Hub) detach(c *Client) bool {
	if !h.audience.remove(c) {
		return false
	}
	user, _ := h.session.User(c.ID)
	h.session.Leave(c.ID)
	close(c.gone)
	close(c.Events)
	h.observer.ClientDisconnected()
	h.log.Info().Str("client_id", c.ID).Str("username", user.Username).Int("online", h.audience.len()).Msg("user disconnected")
	return true
}

func textReason(err error) string {
	switch {
	case errors.Is(err, board.ErrDuplicateID):
		return ReasonDuplicateID
	case errors.Is(err, board.ErrNotFound):
		return ReasonNotFound
	default:
		return ReasonMalformed
	}
}
