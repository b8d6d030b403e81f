package core

// ChatMessage is relayed to every participant and never stored.
type ChatMessage struct {
	User string
	Text string
	Time string
}
