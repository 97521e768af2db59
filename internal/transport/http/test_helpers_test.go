package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/gymstack/checkin-server/internal/auth"
	"github.com/gymstack/checkin-server/internal/config"
	"github.com/gymstack/checkin-server/internal/core"
	"github.com/gymstack/checkin-server/internal/store"
	"github.com/gymstack/checkin-server/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	store store.Store
	auth  *auth.Service
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Addr = ":0"

	server := NewServer(core.NewRegistry(), authService, st, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService}
}

// staffToken registers a staff user and returns a valid bearer token.
func (e *testEnv) staffToken(t *testing.T, username string) string {
	t.Helper()

	token, err := e.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("register staff user: %v", err)
	}
	return token
}

func (e *testEnv) createMember(t *testing.T, name, number string) *store.Member {
	t.Helper()

	m, err := e.store.CreateMember(context.Background(), &store.Member{
		MembershipNumber: number,
		FullName:         name,
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return m
}

func (e *testEnv) wsURL(token string) string {
	url := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws/checkins"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

// dialWS connects and consumes the initial_stats message.
func (e *testEnv) dialWS(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	initial := readOutbound(t, ctx, conn)
	if initial.Type != "initial_stats" {
		t.Fatalf("expected initial_stats, got %+v", initial)
	}
	return conn
}

type outboundMsg struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) outboundMsg {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read outbound: %v", err)
	}

	var msg outboundMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal outbound %q: %v", data, err)
	}
	return msg
}

// expectSilence asserts that no message arrives within the grace period.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if _, data, err := conn.Read(ctx); err == nil {
		t.Fatalf("expected no message, got %s", data)
	}
}

func writeJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}
