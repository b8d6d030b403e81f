package http

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vovakirdan/wireboard-server/internal/board"
	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/proto"
)

// Pointer fields let the decoder tell a missing field from a zero value.
type strokeFields struct {
	X0        *float64 `json:"x0"`
	Y0        *float64 `json:"y0"`
	X1        *float64 `json:"x1"`
	Y1        *float64 `json:"y1"`
	Color     *string  `json:"color"`
	BrushSize *float64 `json:"brushSize"`
}

type textFields struct {
	ID       *string  `json:"id"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Text     *string  `json:"text"`
	Color    *string  `json:"color"`
	FontSize *float64 `json:"fontSize"`
}

type chatFields struct {
	User *string `json:"user"`
	Text *string `json:"text"`
	Time *string `json:"time"`
}

// commandKindOf maps a wire event name to the command it requests.
// The second result is false for names clients may not send.
func commandKindOf(event string) (core.CommandKind, bool) {
	switch event {
	case proto.EventDrawingData:
		return core.CommandDrawStroke, true
	case proto.EventClearCanvas:
		return core.CommandClearStrokes, true
	case proto.EventAddText:
		return core.CommandAddText, true
	case proto.EventUpdateText:
		return core.CommandUpdateText, true
	case proto.EventDeleteText:
		return core.CommandDeleteText, true
	case proto.EventChatMessage:
		return core.CommandChat, true
	case proto.EventSetUsername:
		return core.CommandSetUsername, true
	default:
		return 0, false
	}
}

// inboundToCommand validates a client frame. Errors wrap
// core.ErrMalformedEvent or core.ErrUnknownEvent.
func inboundToCommand(env proto.Envelope) (*core.Command, error) {
	kind, ok := commandKindOf(env.Event)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownEvent, env.Event)
	}

	switch kind {
	case core.CommandDrawStroke:
		s, err := decodeStroke(env.Data)
		if err != nil {
			return nil, err
		}
		return &core.Command{Kind: kind, Stroke: s}, nil
	case core.CommandClearStrokes:
		return &core.Command{Kind: kind}, nil
	case core.CommandAddText, core.CommandUpdateText:
		t, err := decodeText(env.Data)
		if err != nil {
			return nil, err
		}
		return &core.Command{Kind: kind, Text: t}, nil
	case core.CommandDeleteText:
		var id string
		if err := json.Unmarshal(env.Data, &id); err != nil {
			return nil, malformed("text id must be a string: %v", err)
		}
		if id == "" {
			return nil, malformed("text id is required")
		}
		return &core.Command{Kind: kind, TextID: id}, nil
	case core.CommandChat:
		c, err := decodeChat(env.Data)
		if err != nil {
			return nil, err
		}
		return &core.Command{Kind: kind, Chat: c}, nil
	default:
		var name string
		if err := json.Unmarshal(env.Data, &name); err != nil {
			return nil, malformed("username must be a string: %v", err)
		}
		return &core.Command{Kind: kind, Username: name}, nil
	}
}

func decodeStroke(data json.RawMessage) (board.Stroke, error) {
	var f strokeFields
	if err := json.Unmarshal(data, &f); err != nil {
		return board.Stroke{}, malformed("stroke: %v", err)
	}
	if f.X0 == nil || f.Y0 == nil || f.X1 == nil || f.Y1 == nil {
		return board.Stroke{}, malformed("stroke coordinates are required")
	}
	if f.Color == nil || *f.Color == "" {
		return board.Stroke{}, malformed("stroke color is required")
	}
	if f.BrushSize == nil || *f.BrushSize <= 0 {
		return board.Stroke{}, malformed("stroke brushSize must be positive")
	}
	return board.Stroke{
		X0:        *f.X0,
		Y0:        *f.Y0,
		X1:        *f.X1,
		Y1:        *f.Y1,
		Color:     *f.Color,
		BrushSize: *f.BrushSize,
	}, nil
}

func decodeText(data json.RawMessage) (board.TextAnnotation, error) {
	var f textFields
	if err := json.Unmarshal(data, &f); err != nil {
		return board.TextAnnotation{}, malformed("text: %v", err)
	}
	if f.ID == nil || *f.ID == "" {
		return board.TextAnnotation{}, malformed("text id is required")
	}
	if f.X == nil || f.Y == nil {
		return board.TextAnnotation{}, malformed("text position is required")
	}
	if f.Text == nil || f.Color == nil {
		return board.TextAnnotation{}, malformed("text body and color are required")
	}
	if f.FontSize == nil || *f.FontSize <= 0 {
		return board.TextAnnotation{}, malformed("text fontSize must be positive")
	}
	return board.TextAnnotation{
		ID:       *f.ID,
		X:        *f.X,
		Y:        *f.Y,
		Text:     *f.Text,
		Color:    *f.Color,
		FontSize: *f.FontSize,
	}, nil
}

func decodeChat(data json.RawMessage) (core.ChatMessage, error) {
	var f chatFields
	if err := json.Unmarshal(data, &f); err != nil {
		return core.ChatMessage{}, malformed("chat: %v", err)
	}
	if f.Text == nil || strings.TrimSpace(*f.Text) == "" {
		return core.ChatMessage{}, malformed("chat text is required")
	}
	msg := core.ChatMessage{Text: *f.Text}
	if f.User != nil {
		msg.User = *f.User
	}
	if f.Time != nil {
		msg.Time = *f.Time
	}
	return msg, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrMalformedEvent, fmt.Sprintf(format, args...))
}
