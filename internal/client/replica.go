// Package client keeps a local replica of the shared board in step with
// the server and talks to it over WebSocket.
package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/wireboard-server/internal/board"
	"github.com/vovakirdan/wireboard-server/internal/proto"
)

var (
	// ErrBadFrame marks a server frame whose payload could not be decoded.
	ErrBadFrame = errors.New("bad frame")
	// ErrUnexpectedEvent marks a frame name the replica does not handle.
	ErrUnexpectedEvent = errors.New("unexpected event")
)

// NewTextID returns a fresh annotation id.
func NewTextID() string {
	return uuid.NewString()
}

// Replica is one participant's view of the session. Remote frames and
// local edits both go through it. It is not safe for concurrent use.
type Replica struct {
	board    *board.Board
	username string
	users    []string
	chat     []proto.Chat

	drawingLoaded bool
	textsLoaded   bool

	lastSeq uint64
	// pending counts local mutations whose broadcasts skip this replica.
	pending uint64
	gaps    int
}

// NewReplica returns an empty, unsynced replica.
func NewReplica() *Replica {
	return &Replica{board: board.New()}
}

// Apply folds one server frame into the replica.
func (r *Replica) Apply(env proto.Envelope) error {
	switch env.Event {
	case proto.EventLoadDrawing:
		var strokes []proto.Stroke
		if err := decode(env, &strokes); err != nil {
			return err
		}
		loaded := make([]board.Stroke, 0, len(strokes))
		for _, s := range strokes {
			loaded = append(loaded, s.Board())
		}
		r.board.LoadStrokes(loaded)
		r.drawingLoaded = true
		r.resetSeq(env.Seq)
	case proto.EventLoadTexts:
		var texts []proto.Text
		if err := decode(env, &texts); err != nil {
			return err
		}
		loaded := make([]board.TextAnnotation, 0, len(texts))
		for _, t := range texts {
			loaded = append(loaded, t.Board())
		}
		r.board.LoadTexts(loaded)
		r.textsLoaded = true
		r.resetSeq(env.Seq)
	case proto.EventAssignUsername:
		return decode(env, &r.username)
	case proto.EventUserList:
		var users []proto.User
		if err := decode(env, &users); err != nil {
			return err
		}
		r.users = r.users[:0]
		for _, u := range users {
			r.users = append(r.users, u.Username)
		}
	case proto.EventDrawingData:
		var s proto.Stroke
		if err := decode(env, &s); err != nil {
			return err
		}
		r.board.AppendStroke(s.Board())
		r.track(env.Seq)
	case proto.EventClearCanvas:
		r.board.ResetStrokes()
		r.track(env.Seq)
	case proto.EventAddText:
		var t proto.Text
		if err := decode(env, &t); err != nil {
			return err
		}
		_ = r.board.AddText(t.Board())
		r.track(env.Seq)
	case proto.EventUpdateText:
		var t proto.Text
		if err := decode(env, &t); err != nil {
			return err
		}
		_ = r.board.UpdateText(t.Board())
		r.track(env.Seq)
	case proto.EventDeleteText:
		var id string
		if err := decode(env, &id); err != nil {
			return err
		}
		r.board.DeleteText(id)
		r.track(env.Seq)
	case proto.EventChatMessage:
		var msg proto.Chat
		if err := decode(env, &msg); err != nil {
			return err
		}
		r.chat = append(r.chat, msg)
	default:
		return fmt.Errorf("%w: %q", ErrUnexpectedEvent, env.Event)
	}
	return nil
}

func decode(env proto.Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrBadFrame, env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadFrame, env.Event, err)
	}
	return nil
}

func (r *Replica) resetSeq(seq uint64) {
	r.lastSeq = seq
	r.pending = 0
}

// track advances the sequence cursor. Numbers skipped by this replica's
// own edits are expected; any other hole is counted as a gap.
func (r *Replica) track(seq uint64) {
	if seq == 0 {
		return
	}
	if seq > r.lastSeq+1 {
		missing := seq - r.lastSeq - 1
		if missing <= r.pending {
			r.pending -= missing
		} else {
			r.gaps++
			r.pending = 0
		}
	}
	if seq > r.lastSeq {
		r.lastSeq = seq
	}
}

// DrawStroke appends s locally and returns the frame announcing it.
func (r *Replica) DrawStroke(s board.Stroke) proto.Outbound {
	r.board.AppendStroke(s)
	r.pending++
	return proto.Outbound{Event: proto.EventDrawingData, Data: proto.FromBoardStroke(s)}
}

// ClearStrokes empties the local stroke log. Texts are kept.
func (r *Replica) ClearStrokes() proto.Outbound {
	r.board.ResetStrokes()
	r.pending++
	return proto.Outbound{Event: proto.EventClearCanvas}
}

// AddText creates an annotation, assigning an id when t has none.
func (r *Replica) AddText(t board.TextAnnotation) (board.TextAnnotation, proto.Outbound, error) {
	if t.ID == "" {
		t.ID = NewTextID()
	}
	if err := r.board.AddText(t); err != nil {
		return t, proto.Outbound{}, err
	}
	r.pending++
	return t, proto.Outbound{Event: proto.EventAddText, Data: proto.FromBoardText(t)}, nil
}

// UpdateText overwrites an existing annotation.
func (r *Replica) UpdateText(t board.TextAnnotation) (proto.Outbound, error) {
	if err := r.board.UpdateText(t); err != nil {
		return proto.Outbound{}, err
	}
	r.pending++
	return proto.Outbound{Event: proto.EventUpdateText, Data: proto.FromBoardText(t)}, nil
}

// DeleteText removes an annotation. The second result is false when the
// id is not on the local board and nothing needs to be sent.
func (r *Replica) DeleteText(id string) (proto.Outbound, bool) {
	if !r.board.DeleteText(id) {
		return proto.Outbound{}, false
	}
	r.pending++
	return proto.Outbound{Event: proto.EventDeleteText, Data: id}, true
}

// Chat builds a chat frame. The server echoes chat to the sender, so the
// transcript grows when that echo is applied.
func (r *Replica) Chat(text string) proto.Outbound {
	return proto.Outbound{Event: proto.EventChatMessage, Data: proto.Chat{User: r.username, Text: text}}
}

// SetUsername builds a rename request.
func (r *Replica) SetUsername(name string) proto.Outbound {
	return proto.Outbound{Event: proto.EventSetUsername, Data: name}
}

// Synced reports whether both halves of the catch-up snapshot arrived.
func (r *Replica) Synced() bool {
	return r.drawingLoaded && r.textsLoaded
}

// Board returns a copy of the local strokes and texts.
func (r *Replica) Board() board.Snapshot {
	return r.board.Snapshot()
}

// Text looks up one annotation.
func (r *Replica) Text(id string) (board.TextAnnotation, bool) {
	return r.board.Text(id)
}

func (r *Replica) Username() string { return r.username }

// Users returns the roster names in join order.
func (r *Replica) Users() []string {
	return append([]string(nil), r.users...)
}

// Transcript returns the chat messages seen since joining.
func (r *Replica) Transcript() []proto.Chat {
	return append([]proto.Chat(nil), r.chat...)
}

// Seq is the last session sequence number applied.
func (r *Replica) Seq() uint64 { return r.lastSeq }

// Gaps counts broadcasts that arrived after a hole in the sequence.
func (r *Replica) Gaps() int { return r.gaps }
