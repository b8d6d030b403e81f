package proto

import "encoding/json"

// Event names on the wire.
const (
	EventLoadDrawing    = "load-drawing"
	EventLoadTexts      = "load-texts"
	EventAssignUsername = "assign-username"
	EventUserList       = "user-list"
	EventDrawingData    = "drawing-data"
	EventClearCanvas    = "clear-canvas"
	EventAddText        = "add-text"
	EventUpdateText     = "update-text"
	EventDeleteText     = "delete-text"
	EventChatMessage    = "chat-message"
	EventSetUsername    = "set-username"
)

// Envelope is a frame as read off the wire, payload still encoded.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Seq   uint64          `json:"seq,omitempty"`
}

// Outbound is a frame ready to be encoded.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Seq   uint64 `json:"seq,omitempty"`
}

// Stroke is a line segment.
type Stroke struct {
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	Color     string  `json:"color"`
	BrushSize float64 `json:"brushSize"`
}

// Text is a text annotation.
type Text struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Text     string  `json:"text"`
	Color    string  `json:"color"`
	FontSize float64 `json:"fontSize"`
}

// Chat is a chat message.
type Chat struct {
	User string `json:"user"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// User is a roster entry. Connection ids stay server-side.
type User struct {
	Username string `json:"username"`
}
