package proto

import (
	"github.com/vovakirdan/wireboard-server/internal/board"
	"github.com/vovakirdan/wireboard-server/internal/core"
)

// FromEvent encodes a core event as a wire frame.
func FromEvent(ev *core.Event) Outbound {
	switch ev.Kind {
	case core.EventLoadDrawing:
		strokes := make([]Stroke, 0, len(ev.Strokes))
		for _, s := range ev.Strokes {
			strokes = append(strokes, FromBoardStroke(s))
		}
		return Outbound{Event: EventLoadDrawing, Data: strokes, Seq: ev.Seq}
	case core.EventLoadTexts:
		texts := make([]Text, 0, len(ev.Texts))
		for _, t := range ev.Texts {
			texts = append(texts, FromBoardText(t))
		}
		return Outbound{Event: EventLoadTexts, Data: texts, Seq: ev.Seq}
	case core.EventAssignUsername:
		return Outbound{Event: EventAssignUsername, Data: ev.Username}
	case core.EventUserList:
		users := make([]User, 0, len(ev.Users))
		for _, u := range ev.Users {
			users = append(users, User{Username: u.Username})
		}
		return Outbound{Event: EventUserList, Data: users}
	case core.EventStroke:
		return Outbound{Event: EventDrawingData, Data: FromBoardStroke(ev.Stroke), Seq: ev.Seq}
	case core.EventClear:
		return Outbound{Event: EventClearCanvas, Seq: ev.Seq}
	case core.EventTextAdded:
		return Outbound{Event: EventAddText, Data: FromBoardText(ev.Text), Seq: ev.Seq}
	case core.EventTextUpdated:
		return Outbound{Event: EventUpdateText, Data: FromBoardText(ev.Text), Seq: ev.Seq}
	case core.EventTextDeleted:
		return Outbound{Event: EventDeleteText, Data: ev.TextID, Seq: ev.Seq}
	case core.EventChat:
		return Outbound{Event: EventChatMessage, Data: Chat{User: ev.Chat.User, Text: ev.Chat.Text, Time: ev.Chat.Time}}
	default:
		return Outbound{Event: "unknown"}
	}
}

// FromBoardStroke converts a board stroke to its wire form.
func FromBoardStroke(s board.Stroke) Stroke {
	return Stroke{X0: s.X0, Y0: s.Y0, X1: s.X1, Y1: s.Y1, Color: s.Color, BrushSize: s.BrushSize}
}

// Board converts a wire stroke to a board stroke.
func (s Stroke) Board() board.Stroke {
	return board.Stroke{X0: s.X0, Y0: s.Y0, X1: s.X1, Y1: s.Y1, Color: s.Color, BrushSize: s.BrushSize}
}

// FromBoardText converts a board annotation to its wire form.
func FromBoardText(t board.TextAnnotation) Text {
	return Text{ID: t.ID, X: t.X, Y: t.Y, Text: t.Text, Color: t.Color, FontSize: t.FontSize}
}

// Board converts a wire annotation to a board annotation.
func (t Text) Board() board.TextAnnotation {
	return board.TextAnnotation{ID: t.ID, X: t.X, Y: t.Y, Text: t.Text, Color: t.Color, FontSize: t.FontSize}
}
