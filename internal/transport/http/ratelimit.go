package http

import "time"

// frameBudget admits at most limit inbound frames per window. The window
// rolls forward lazily on the first frame after it expires. It is owned by
// a single read loop and is not safe for concurrent use.
type frameBudget struct {
	limit  int
	window time.Duration
	now    func() time.Time

	start time.Time
	used  int
}

// newFrameBudget returns nil when limit is not positive; a nil budget
// admits everything.
func newFrameBudget(limit int, window time.Duration, now func() time.Time) *frameBudget {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &frameBudget{limit: limit, window: window, now: now}
}

func (b *frameBudget) allow() bool {
	if b == nil {
		return true
	}
	t := b.now()
	if b.start.IsZero() || t.Sub(b.start) >= b.window {
		b.start = t
		b.used = 0
	}
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}
