package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/proto"
)

const sessionQueryTimeout = 2 * time.Second

// SessionHandlers serves read-only views of the live session.
type SessionHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewSessionHandlers creates session handlers backed by hub.
func NewSessionHandlers(hub *core.Hub, logger *zerolog.Logger) *SessionHandlers {
	return &SessionHandlers{hub: hub, log: logger}
}

// SessionResponse is the body of GET /api/session.
type SessionResponse struct {
	Seq     uint64         `json:"seq"`
	Strokes []proto.Stroke `json:"strokes"`
	Texts   []proto.Text   `json:"texts"`
	Users   []proto.User   `json:"users"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetSession returns the board snapshot and roster.
// GET /api/session
func (h *SessionHandlers) GetSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sessionQueryTimeout)
	defer cancel()

	ov, err := h.hub.Overview(ctx)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	resp := SessionResponse{
		Seq:     ov.Seq,
		Strokes: make([]proto.Stroke, 0, len(ov.Strokes)),
		Texts:   make([]proto.Text, 0, len(ov.Texts)),
		Users:   make([]proto.User, 0, len(ov.Users)),
	}
	for _, s := range ov.Strokes {
		resp.Strokes = append(resp.Strokes, proto.FromBoardStroke(s))
	}
	for _, t := range ov.Texts {
		resp.Texts = append(resp.Texts, proto.FromBoardText(t))
	}
	for _, u := range ov.Users {
		resp.Users = append(resp.Users, proto.User{Username: u.Username})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandlers) respondErr(c *gin.Context, err error) {
	if errors.Is(err, core.ErrHubStopped) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "session stopped"})
		return
	}
	h.log.Warn().Err(err).Msg("session query failed")
	c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "session busy"})
}
