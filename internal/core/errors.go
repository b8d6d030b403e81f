package core

import "errors"

// Reasons attached to dropped events in logs and metrics.
const (
	ReasonMalformed     = "malformed"
	ReasonUnknownEvent  = "unknown_event"
	ReasonDuplicateID   = "duplicate_id"
	ReasonNotFound      = "not_found"
	ReasonEmptyUsername = "empty_username"
	ReasonRateLimited   = "rate_limited"
	ReasonTapOverflow   = "tap_overflow"
)

var (
	// ErrMalformedEvent marks an inbound event with missing or invalid fields.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent marks an inbound event name outside the catalogue.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrHubStopped is returned by hub calls made after Run has returned.
	ErrHubStopped = errors.New("hub stopped")
)

// DropReason maps an inbound decoding error to its drop reason.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownEvent):
		return ReasonUnknownEvent
	default:
		return ReasonMalformed
	}
}
