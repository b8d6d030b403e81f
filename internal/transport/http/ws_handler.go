package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/config"
	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/proto"
)

const (
	writeTimeout    = 10 * time.Second
	rateLimitWindow = time.Minute
	// unparsedEvent labels frames whose event name could not be read.
	unparsedEvent = "unparsed"
)

var (
	errEvicted  = errors.New("client evicted")
	errDetached = errors.New("client detached by hub")
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub *core.Hub
	cfg *config.Config
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(uuid.NewString(), h.cfg.ClientBuffer)
	if err := h.hub.RegisterClient(client); err != nil {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.hub.UnregisterClient(client)

	budget := newFrameBudget(h.cfg.RateLimitPerMinute, rateLimitWindow, time.Now)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, budget)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	status, reason := h.closeStatus(client, err)
	conn.Close(status, reason)
	cancel() // stop the other goroutine
	<-errCh
}

func (h *WSHandler) closeStatus(client *core.Client, err error) (websocket.StatusCode, string) {
	switch {
	case errors.Is(err, errEvicted):
		return websocket.StatusPolicyViolation, "slow consumer"
	case errors.Is(err, errDetached):
		return websocket.StatusGoingAway, "server shutting down"
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		return websocket.StatusNormalClosure, "closing"
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing"
	}
	h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
	return websocket.StatusInternalError, "internal error"
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, budget *frameBudget) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if !budget.allow() {
			h.hub.Drop(client.ID, unparsedEvent, core.ReasonRateLimited)
			continue
		}
		if typ != websocket.MessageText {
			h.hub.Drop(client.ID, unparsedEvent, core.ReasonMalformed)
			continue
		}

		var env proto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.hub.Drop(client.ID, unparsedEvent, core.ReasonMalformed)
			continue
		}
		cmd, err := inboundToCommand(env)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("inbound rejected")
			h.hub.Drop(client.ID, dropKind(env.Event), core.DropReason(err))
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return h.detachedErr(client)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return h.detachedErr(client)
			}
			if err := h.write(ctx, conn, proto.FromEvent(event)); err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, frame proto.Outbound) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, frame)
}

// dropKind labels a rejected frame the way the hub labels its commands.
func dropKind(event string) string {
	if kind, ok := commandKindOf(event); ok {
		return kind.String()
	}
	return "unknown"
}

func (h *WSHandler) detachedErr(client *core.Client) error {
	if client.Evicted() {
		return errEvicted
	}
	return errDetached
}
