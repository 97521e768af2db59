package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gymstack/checkin-server/internal/auth"
	"github.com/gymstack/checkin-server/internal/core"
	"github.com/gymstack/checkin-server/internal/proto"
	"github.com/gymstack/checkin-server/internal/store"
)

// StatusUnauthorized is the close code for rejected handshakes. Application
// close codes live in the 4000-4999 range; 4401 mirrors HTTP 401.
const StatusUnauthorized = websocket.StatusCode(4401)

// WSHandler upgrades HTTP connections into check-in channel sessions.
// Authentication happens once, at the handshake, from the token query
// parameter; there is no in-band authentication path.
type WSHandler struct {
	registry    *core.Registry
	authService *auth.Service
	store       store.Store
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(registry *core.Registry, authService *auth.Service, st store.Store, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		registry:    registry,
		authService: authService,
		store:       st,
		log:         logger,
	}
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
	defer conn.Close(websocket.StatusInternalError, "internal error")

	token := r.URL.Query().Get("token")
	if token == "" {
		h.log.Debug().Msg("ws handshake without token")
		conn.Close(StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.authService.Authenticate(ctx, token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws handshake with invalid token")
		conn.Close(StatusUnauthorized, "unauthorized")
		return
	}

	client := core.NewClient(uuid.NewString(), user.ID, user.Username)
	session := core.NewSession(client, h.registry.Get(core.GroupCheckIns), h.store, core.NewAggregator(h.store), h.log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Leaving the group is unconditional cleanup, even mid-handler.
	session.Start(ctx)
	defer session.Close()

	h.log.Info().Str("client_id", client.ID).Str("username", user.Username).Msg("checkin channel connected")

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s > 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop processes inbound messages strictly in arrival order. Parse
// failures and business errors never close the connection; only transport
// errors end the loop.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			session.ProtocolError("Invalid JSON format")
			continue
		}

		cmds, protoErrs, known := inboundToCommands(inbound)
		if !known {
			h.log.Debug().Str("type", inbound.Type).Str("client_id", session.Client().ID).Msg("ignoring unknown message type")
			continue
		}
		for _, msg := range protoErrs {
			session.ProtocolError(msg)
		}
		for _, cmd := range cmds {
			session.Handle(ctx, cmd)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
