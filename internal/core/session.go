package core

import (
	"strconv"

	"github.com/vovakirdan/wireboard-server/internal/board"
)

const guestPrefix = "Guest "

// User is a connected participant.
type User struct {
	ConnID   string
	Username string
}

// Snapshot is the catch-up state sent to a joining client.
type Snapshot struct {
	Seq     uint64
	Strokes []board.Stroke
	Texts   []board.TextAnnotation
}

// Stats summarizes the session for diagnostics.
type Stats struct {
	Seq     uint64
	Strokes int
	Texts   int
	Users   []User
}

// Overview is the board and roster as of one seq.
type Overview struct {
	Snapshot
	Users []User
}

// Session is the authoritative state of one shared canvas.
// It is owned by the hub goroutine and must not be shared.
type Session struct {
	board        *board.Board
	users        map[string]*User
	order        []string
	guestCounter int
	seq          uint64
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{
		board: board.New(),
		users: make(map[string]*User),
	}
}

// AppendStroke appends s and returns its sequence number.
func (s *Session) AppendStroke(st board.Stroke) uint64 {
	s.board.AppendStroke(st)
	return s.next()
}

// ResetStrokes clears the stroke log and returns the sequence number.
func (s *Session) ResetStrokes() uint64 {
	s.board.ResetStrokes()
	return s.next()
}

// AddText inserts t. A duplicate id consumes no sequence number.
func (s *Session) AddText(t board.TextAnnotation) (uint64, error) {
	if err := s.board.AddText(t); err != nil {
		return 0, err
	}
	return s.next(), nil
}

// UpdateText overwrites t.ID. An unknown id consumes no sequence number.
func (s *Session) UpdateText(t board.TextAnnotation) (uint64, error) {
	if err := s.board.UpdateText(t); err != nil {
		return 0, err
	}
	return s.next(), nil
}

// DeleteText removes id. Deleting an absent id is a no-op reported as false.
func (s *Session) DeleteText(id string) (uint64, bool) {
	if !s.board.DeleteText(id) {
		return 0, false
	}
	return s.next(), true
}

// Snapshot copies the board together with the sequence it reflects.
func (s *Session) Snapshot() Snapshot {
	snap := s.board.Snapshot()
	return Snapshot{Seq: s.seq, Strokes: snap.Strokes, Texts: snap.Texts}
}

// Join adds a user for connID with the next guest name.
func (s *Session) Join(connID string) User {
	s.guestCounter++
	u := &User{ConnID: connID, Username: guestPrefix + strconv.Itoa(s.guestCounter)}
	s.users[connID] = u
	s.order = append(s.order, connID)
	return *u
}

// Rename replaces the username of connID. It reports false for unknown connections.
func (s *Session) Rename(connID, name string) (User, bool) {
	u, ok := s.users[connID]
	if !ok {
		return User{}, false
	}
	u.Username = name
	return *u, true
}

// Leave removes connID from the roster.
func (s *Session) Leave(connID string) bool {
	if _, ok := s.users[connID]; !ok {
		return false
	}
	delete(s.users, connID)
	for i, id := range s.order {
		if id == connID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// User returns the roster entry for connID.
func (s *Session) User(connID string) (User, bool) {
	u, ok := s.users[connID]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Roster lists users in join order.
func (s *Session) Roster() []User {
	out := make([]User, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.users[id])
	}
	return out
}

// Stats returns counters and the roster.
func (s *Session) Stats() Stats {
	return Stats{
		Seq:     s.seq,
		Strokes: s.board.StrokeCount(),
		Texts:   s.board.TextCount(),
		Users:   s.Roster(),
	}
}

// Overview returns the snapshot together with the roster.
func (s *Session) Overview() Overview {
	return Overview{Snapshot: s.Snapshot(), Users: s.Roster()}
}

func (s *Session) next() uint64 {
	s.seq++
	return s.seq
}
