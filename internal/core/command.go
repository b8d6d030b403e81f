package core

import "github.com/vovakirdan/wireboard-server/internal/board"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandDrawStroke appends a stroke to the log.
	CommandDrawStroke CommandKind = iota
	// CommandClearStrokes empties the stroke log.
	CommandClearStrokes
	// CommandAddText creates a text annotation.
	CommandAddText
	// CommandUpdateText overwrites a text annotation.
	CommandUpdateText
	// CommandDeleteText removes a text annotation.
	CommandDeleteText
	// CommandChat relays a chat message to everyone.
	CommandChat
	// CommandSetUsername renames the sender.
	CommandSetUsername
)

var commandNames = [...]string{
	CommandDrawStroke:   "stroke-append",
	CommandClearStrokes: "clear-strokes",
	CommandAddText:      "text-add",
	CommandUpdateText:   "text-update",
	CommandDeleteText:   "text-delete",
	CommandChat:         "chat-send",
	CommandSetUsername:  "set-username",
}

func (k CommandKind) String() string {
	if k < 0 || int(k) >= len(commandNames) {
		return "unknown"
	}
	return commandNames[k]
}

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Stroke   board.Stroke
	Text     board.TextAnnotation
	TextID   string
	Chat     ChatMessage
	Username string
}
