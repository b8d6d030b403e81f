package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wireboard-server/internal/board"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent fails if an event of kind shows up within a short window.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func startHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(opts...)
	go hub.Run(ctx)
	return hub
}

// join registers a client and consumes its catch-up burst.
func join(t *testing.T, hub *Hub, id string) (*Client, *Event, *Event, string) {
	t.Helper()

	c := NewClient(id, 64)
	if err := hub.RegisterClient(c); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	drawing := mustEvent(t, c.Events, EventLoadDrawing)
	texts := mustEvent(t, c.Events, EventLoadTexts)
	name := mustEvent(t, c.Events, EventAssignUsername).Username
	mustEvent(t, c.Events, EventUserList)
	return c, drawing, texts, name
}

// barrier returns once every command c sent before it has been applied,
// along with the events c received meanwhile. Commands from one client are
// applied in order and chat echoes to the sender, so the echo marks the point.
func barrier(t *testing.T, c *Client) []*Event {
	t.Helper()

	c.Commands <- &Command{Kind: CommandChat, Chat: ChatMessage{User: "sync", Text: "barrier:" + c.ID}}
	var seen []*Event
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-c.Events:
			if ev == nil {
				continue
			}
			if ev.Kind == EventChat && ev.Chat.Text == "barrier:"+c.ID {
				return seen
			}
			seen = append(seen, ev)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("barrier for %s not reached", c.ID)
	return nil
}

// collect reads n events of kind from ch, skipping other kinds.
func collect(t *testing.T, ch <-chan *Event, kind EventKind, n int) []*Event {
	t.Helper()

	out := make([]*Event, 0, n)
	deadline := time.Now().Add(5 * time.Second)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				out = append(out, ev)
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	if len(out) < n {
		t.Fatalf("collected %d of %d events of kind %v", len(out), n, kind)
	}
	return out
}

func kinds(events []*Event) map[EventKind]int {
	out := make(map[EventKind]int)
	for _, ev := range events {
		out[ev.Kind]++
	}
	return out
}

func stats(t *testing.T, hub *Hub) Stats {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := hub.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	return st
}

func stroke(i int) board.Stroke {
	f := float64(i)
	return board.Stroke{X0: f, Y0: f, X1: f + 1, Y1: f + 1, Color: "#000000", BrushSize: 5}
}

func note(id, body string) board.TextAnnotation {
	return board.TextAnnotation{ID: id, X: 1, Y: 2, Text: body, Color: "#FF0000", FontSize: 14}
}
