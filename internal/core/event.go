package core

import "github.com/vovakirdan/wireboard-server/internal/board"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventLoadDrawing delivers the stroke log to a joining client.
	EventLoadDrawing EventKind = iota
	// EventLoadTexts delivers the current text table to a joining client.
	EventLoadTexts
	// EventAssignUsername tells a client its current name.
	EventAssignUsername
	// EventUserList carries the roster after any change.
	EventUserList
	// EventStroke relays an appended stroke.
	EventStroke
	// EventClear relays a stroke log reset.
	EventClear
	// EventTextAdded relays a created annotation.
	EventTextAdded
	// EventTextUpdated relays an overwritten annotation.
	EventTextUpdated
	// EventTextDeleted relays a removed annotation id.
	EventTextDeleted
	// EventChat relays a chat message.
	EventChat
)

// Event is sent to clients to describe what happened in the session.
// Events are shared between recipients and must not be modified.
type Event struct {
	Kind EventKind
	// Seq is the session sequence number for board mutations and snapshots.
	Seq      uint64
	Strokes  []board.Stroke
	Texts    []board.TextAnnotation
	Stroke   board.Stroke
	Text     board.TextAnnotation
	TextID   string
	Username string
	Users    []User
	Chat     ChatMessage
}

// Mutation reports whether the event changes board state.
func (e *Event) Mutation() bool {
	switch e.Kind {
	case EventStroke, EventClear, EventTextAdded, EventTextUpdated, EventTextDeleted:
		return true
	default:
		return false
	}
}
