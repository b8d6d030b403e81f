package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/config"
	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/metrics"
	"github.com/vovakirdan/wireboard-server/internal/proto"
)

const testStroke = `{"event":"drawing-data","data":{"x0":1,"y0":2,"x1":3,"y1":4,"color":"#FF0000","brushSize":5}}`

func startTestServer(t *testing.T, mutate func(*config.Config)) (*httptest.Server, context.CancelFunc) {
	t.Helper()

	m := metrics.New(false)
	hub := core.NewHub(core.WithObserver(m))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	cfg := config.Default()
	cfg.Addr = ":0"
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.Nop()
	server := NewServer(hub, &cfg, &disabledLogger, m)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, cancel
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) proto.Envelope {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var env proto.Envelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return env
}

func expectFrame(t *testing.T, conn *websocket.Conn, event string) proto.Envelope {
	t.Helper()

	env := readFrame(t, conn)
	if env.Event != event {
		t.Fatalf("expected %s, got %s (%s)", event, env.Event, env.Data)
	}
	return env
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// barrier sends a chat and waits for its echo. Earlier frames from the
// same connection have been applied once it returns.
func barrier(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	send(t, conn, `{"event":"chat-message","data":{"text":"barrier"}}`)
	for {
		env := readFrame(t, conn)
		if env.Event != proto.EventChatMessage {
			continue
		}
		var msg proto.Chat
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatalf("decode chat: %v", err)
		}
		if msg.Text == "barrier" {
			return
		}
	}
}

// joinBoard dials and consumes the catch-up burst.
func joinBoard(t *testing.T, ts *httptest.Server) (*websocket.Conn, []proto.Stroke, string) {
	t.Helper()

	conn := dial(t, ts)

	var strokes []proto.Stroke
	if err := json.Unmarshal(expectFrame(t, conn, proto.EventLoadDrawing).Data, &strokes); err != nil {
		t.Fatalf("decode drawing: %v", err)
	}
	expectFrame(t, conn, proto.EventLoadTexts)

	var name string
	if err := json.Unmarshal(expectFrame(t, conn, proto.EventAssignUsername).Data, &name); err != nil {
		t.Fatalf("decode username: %v", err)
	}
	expectFrame(t, conn, proto.EventUserList)
	return conn, strokes, name
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	status, body := getBody(t, ts.URL+"/health")
	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	if body != "ok" {
		t.Fatalf("unexpected body: %q", body)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWebSocketUpgradeThroughServer(t *testing.T) {
	hub := core.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	var logs lockedBuffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	cfg := config.Default()
	server := NewServer(hub, &cfg, &logger, nil)
	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	conn := dial(t, ts)
	env := expectFrame(t, conn, proto.EventLoadDrawing)
	if string(env.Data) != "[]" {
		t.Fatalf("unexpected drawing payload %s", env.Data)
	}
	expectFrame(t, conn, proto.EventLoadTexts)
	expectFrame(t, conn, proto.EventAssignUsername)
	expectFrame(t, conn, proto.EventUserList)

	if strings.Contains(logs.String(), "ws accept error") {
		t.Fatalf("upgrade failed: %s", logs.String())
	}

	// gin routes still answer next to the WebSocket endpoint.
	status, body := getBody(t, ts.URL+"/health")
	if status != http.StatusOK || body != "ok" {
		t.Fatalf("health after upgrade: %d %q", status, body)
	}
}

func TestWebSocketCatchUpAndRelay(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	connA, strokes, nameA := joinBoard(t, ts)
	if len(strokes) != 0 {
		t.Fatalf("fresh board has %d strokes", len(strokes))
	}
	if nameA != "Guest 1" {
		t.Fatalf("unexpected first name %q", nameA)
	}

	send(t, connA, testStroke)
	barrier(t, connA)

	connB, strokes, nameB := joinBoard(t, ts)
	if len(strokes) != 1 || strokes[0].Color != "#FF0000" || strokes[0].BrushSize != 5 {
		t.Fatalf("late joiner got %+v", strokes)
	}
	if nameB != "Guest 2" {
		t.Fatalf("unexpected second name %q", nameB)
	}

	var users []proto.User
	if err := json.Unmarshal(expectFrame(t, connA, proto.EventUserList).Data, &users); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(users) != 2 || users[0].Username != "Guest 1" || users[1].Username != "Guest 2" {
		t.Fatalf("unexpected roster %+v", users)
	}

	send(t, connB, testStroke)
	env := expectFrame(t, connA, proto.EventDrawingData)
	if env.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", env.Seq)
	}

	// The sender's own stroke is not echoed.
	send(t, connB, `{"event":"chat-message","data":{"text":"after"}}`)
	expectFrame(t, connB, proto.EventChatMessage)
}

func TestMalformedFramesDropped(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	conn, _, _ := joinBoard(t, ts)

	send(t, conn, `not json`)
	send(t, conn, `{"event":"drawing-data","data":{"x0":1}}`)
	send(t, conn, `{"event":"add-text","data":{"id":"","x":1,"y":1,"text":"a","color":"#000000","fontSize":12}}`)
	send(t, conn, `{"event":"delete-text","data":{"id":"n1"}}`)
	send(t, conn, `{"event":"erase-everything"}`)
	barrier(t, conn)

	status, body := getBody(t, ts.URL+"/api/session")
	if status != http.StatusOK {
		t.Fatalf("session status %d", status)
	}
	var session SessionResponse
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Seq != 0 || len(session.Strokes) != 0 || len(session.Texts) != 0 {
		t.Fatalf("rejected frames mutated the board: %+v", session)
	}

	_, text := getBody(t, ts.URL+"/metrics")
	for _, want := range []string{
		`wireboard_events_dropped_total{kind="unparsed",reason="malformed"} 1`,
		`wireboard_events_dropped_total{kind="stroke-append",reason="malformed"} 1`,
		`wireboard_events_dropped_total{kind="text-add",reason="malformed"} 1`,
		`wireboard_events_dropped_total{kind="text-delete",reason="malformed"} 1`,
		`wireboard_events_dropped_total{kind="unknown",reason="unknown_event"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestRateLimitDropsExcess(t *testing.T) {
	ts, _ := startTestServer(t, func(cfg *config.Config) {
		cfg.RateLimitPerMinute = 3
	})

	conn, _, _ := joinBoard(t, ts)
	send(t, conn, testStroke)
	send(t, conn, testStroke)
	barrier(t, conn)
	send(t, conn, testStroke)

	_, body := getBody(t, ts.URL+"/metrics")
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(body, `reason="rate_limited"} 1`) {
		if time.Now().After(deadline) {
			t.Fatalf("rate limited drop not recorded:\n%s", body)
		}
		time.Sleep(10 * time.Millisecond)
		_, body = getBody(t, ts.URL+"/metrics")
	}

	_, body = getBody(t, ts.URL+"/api/session")
	var session SessionResponse
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(session.Strokes) != 2 {
		t.Fatalf("expected 2 strokes, got %d", len(session.Strokes))
	}
}

func TestSessionEndpoint(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	conn, _, name := joinBoard(t, ts)
	send(t, conn, testStroke)
	send(t, conn, `{"event":"add-text","data":{"id":"n1","x":10,"y":20,"text":"hello","color":"#0000FF","fontSize":16}}`)
	barrier(t, conn)

	status, body := getBody(t, ts.URL+"/api/session")
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	var session SessionResponse
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", session.Seq)
	}
	if len(session.Strokes) != 1 || len(session.Texts) != 1 || session.Texts[0].ID != "n1" {
		t.Fatalf("unexpected board %+v", session)
	}
	if len(session.Users) != 1 || session.Users[0].Username != name {
		t.Fatalf("unexpected users %+v", session.Users)
	}
}

func TestSessionEndpointAfterShutdown(t *testing.T) {
	ts, cancel := startTestServer(t, nil)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, _ := getBody(t, ts.URL+"/api/session")
		if status == http.StatusServiceUnavailable {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 503 after shutdown, got %d", status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketClosedOnShutdown(t *testing.T) {
	ts, cancel := startTestServer(t, nil)

	conn, _, _ := joinBoard(t, ts)
	cancel()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusGoingAway {
		t.Fatalf("expected going away close, got %v (%v)", got, err)
	}
}
