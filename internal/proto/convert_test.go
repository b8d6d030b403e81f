package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireboard-server/internal/board"
	"github.com/vovakirdan/wireboard-server/internal/core"
)

func TestFromEventWireShape(t *testing.T) {
	stroke := board.Stroke{X0: 1, Y0: 2, X1: 3, Y1: 4, Color: "#FF0000", BrushSize: 5}
	note := board.TextAnnotation{ID: "n1", X: 5, Y: 6, Text: "hi", Color: "#000000", FontSize: 12}

	tests := []struct {
		name string
		ev   *core.Event
		want string
	}{
		{
			name: "stroke",
			ev:   &core.Event{Kind: core.EventStroke, Seq: 3, Stroke: stroke},
			want: `{"event":"drawing-data","data":{"x0":1,"y0":2,"x1":3,"y1":4,"color":"#FF0000","brushSize":5},"seq":3}`,
		},
		{
			name: "clear has no payload",
			ev:   &core.Event{Kind: core.EventClear, Seq: 4},
			want: `{"event":"clear-canvas","seq":4}`,
		},
		{
			name: "empty drawing is an empty list",
			ev:   &core.Event{Kind: core.EventLoadDrawing},
			want: `{"event":"load-drawing","data":[]}`,
		},
		{
			name: "texts",
			ev:   &core.Event{Kind: core.EventLoadTexts, Seq: 9, Texts: []board.TextAnnotation{note}},
			want: `{"event":"load-texts","data":[{"id":"n1","x":5,"y":6,"text":"hi","color":"#000000","fontSize":12}],"seq":9}`,
		},
		{
			name: "delete carries the bare id",
			ev:   &core.Event{Kind: core.EventTextDeleted, Seq: 2, TextID: "n1"},
			want: `{"event":"delete-text","data":"n1","seq":2}`,
		},
		{
			name: "user list hides connection ids",
			ev:   &core.Event{Kind: core.EventUserList, Users: []core.User{{ConnID: "secret", Username: "Guest 1"}}},
			want: `{"event":"user-list","data":[{"username":"Guest 1"}]}`,
		},
		{
			name: "chat",
			ev:   &core.Event{Kind: core.EventChat, Chat: core.ChatMessage{User: "a", Text: "b", Time: "12:00"}},
			want: `{"event":"chat-message","data":{"user":"a","text":"b","time":"12:00"}}`,
		},
		{
			name: "username",
			ev:   &core.Event{Kind: core.EventAssignUsername, Username: "Guest 7"},
			want: `{"event":"assign-username","data":"Guest 7"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(FromEvent(tt.ev))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestBoardConversionsRoundTrip(t *testing.T) {
	s := board.Stroke{X0: 0.5, Y0: 1.5, X1: 2.5, Y1: 3.5, Color: "#00FFFF", BrushSize: 20}
	assert.Equal(t, s, FromBoardStroke(s).Board())

	n := board.TextAnnotation{ID: "x", X: 1, Y: 1, Text: "t", Color: "#FFA500", FontSize: 18}
	assert.Equal(t, n, FromBoardText(n).Board())
}
