// Package board holds the canvas state shared by the server session and
// every client replica: an ordered stroke log and a text table keyed by id.
package board

import (
	"errors"
	"sort"
)

var (
	// ErrDuplicateID is returned when a text annotation id is already taken.
	ErrDuplicateID = errors.New("duplicate text id")
	// ErrNotFound is returned when a text annotation id is unknown.
	ErrNotFound = errors.New("text not found")
)

// Stroke is a single line segment. Its identity is its position in the log.
type Stroke struct {
	X0        float64
	Y0        float64
	X1        float64
	Y1        float64
	Color     string
	BrushSize float64
}

// TextAnnotation is a repositionable text label on the canvas.
type TextAnnotation struct {
	ID       string
	X        float64
	Y        float64
	Text     string
	Color    string
	FontSize float64
}

// Snapshot is a point-in-time copy of the board used for catch-up.
type Snapshot struct {
	Strokes []Stroke
	Texts   []TextAnnotation
}

// Board is not safe for concurrent use; callers serialize access.
type Board struct {
	strokes []Stroke
	texts   map[string]TextAnnotation
}

// New returns an empty board.
func New() *Board {
	return &Board{texts: make(map[string]TextAnnotation)}
}

// AppendStroke adds s to the end of the log.
func (b *Board) AppendStroke(s Stroke) {
	b.strokes = append(b.strokes, s)
}

// ResetStrokes empties the stroke log. Text annotations are kept.
func (b *Board) ResetStrokes() {
	b.strokes = nil
}

// AddText inserts t unless its id is already present.
func (b *Board) AddText(t TextAnnotation) error {
	if _, exists := b.texts[t.ID]; exists {
		return ErrDuplicateID
	}
	b.texts[t.ID] = t
	return nil
}

// UpdateText overwrites the annotation stored under t.ID.
func (b *Board) UpdateText(t TextAnnotation) error {
	if _, exists := b.texts[t.ID]; !exists {
		return ErrNotFound
	}
	b.texts[t.ID] = t
	return nil
}

// DeleteText removes id and reports whether it was present.
func (b *Board) DeleteText(id string) bool {
	if _, exists := b.texts[id]; !exists {
		return false
	}
	delete(b.texts, id)
	return true
}

// Text returns the annotation stored under id.
func (b *Board) Text(id string) (TextAnnotation, bool) {
	t, ok := b.texts[id]
	return t, ok
}

// StrokeCount returns the length of the stroke log.
func (b *Board) StrokeCount() int {
	return len(b.strokes)
}

// TextCount returns the number of live annotations.
func (b *Board) TextCount() int {
	return len(b.texts)
}

// Snapshot copies the current state. Texts are ordered by id.
func (b *Board) Snapshot() Snapshot {
	strokes := make([]Stroke, len(b.strokes))
	copy(strokes, b.strokes)

	texts := make([]TextAnnotation, 0, len(b.texts))
	for _, t := range b.texts {
		texts = append(texts, t)
	}
	sort.Slice(texts, func(i, j int) bool { return texts[i].ID < texts[j].ID })

	return Snapshot{Strokes: strokes, Texts: texts}
}

// LoadStrokes replaces the stroke log with a copy of strokes.
func (b *Board) LoadStrokes(strokes []Stroke) {
	b.strokes = append([]Stroke(nil), strokes...)
}

// LoadTexts replaces the text table with texts. Later duplicates win.
func (b *Board) LoadTexts(texts []TextAnnotation) {
	b.texts = make(map[string]TextAnnotation, len(texts))
	for _, t := range texts {
		b.texts[t.ID] = t
	}
}
