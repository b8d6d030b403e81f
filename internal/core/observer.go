package core

import "time"

// Observer receives hub lifecycle notifications. Implementations must be
// safe for concurrent use because the transport reports drops too.
type Observer interface {
	EventApplied(kind string, took time.Duration)
	EventDropped(kind, reason string)
	ClientConnected()
	ClientDisconnected()
	ClientEvicted()
}

// Tap mirrors broadcast events to an external consumer. Offer must not block.
type Tap interface {
	Offer(ev *Event)
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) EventApplied(string, time.Duration) {}
func (NopObserver) EventDropped(string, string)        {}
func (NopObserver) ClientConnected()                   {}
func (NopObserver) ClientDisconnected()                {}
func (NopObserver) ClientEvicted()                     {}

type nopTap struct{}

func (nopTap) Offer(*Event) {}
