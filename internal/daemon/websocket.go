package daemon

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"padsynth/internal/events"
	"padsynth/internal/logging"
)

const (
	wsWriteWait       = 5 * time.Second
	wsBatch           = 64
	wsReadLimit       = 4096
	wsDefaultPingTime = 30 * time.Second
)

// The default origin check is kept: the console is served from this host
// and non-browser clients send no Origin header.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleWebsocket sends a state snapshot, then every hub message after it.
// A client that falls behind the hub buffer gets a fresh snapshot instead of
// the messages it missed.
func (s *apiServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.requestLog(r).Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	logger := s.log().With(logging.String(logging.FieldClientID, clientID))
	s.clients.Add(1)
	defer s.clients.Add(-1)
	logger.Info("console client connected",
		logging.String(logging.FieldEventType, "ws_client_connected"),
		logging.String("remote", r.RemoteAddr),
	)

	ctx, cancel := context.WithCancel(s.context())
	defer cancel()

	ping := s.cfg.PingInterval()
	if ping <= 0 {
		ping = wsDefaultPingTime
	}
	pongWait := 2 * ping

	go s.readPump(conn, pongWait, cancel)
	go pingLoop(ctx, conn, ping, cancel)

	err = s.writePump(ctx, conn)
	if err != nil && ctx.Err() == nil {
		logger.Debug("dropping console client", logging.Error(err))
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
	logger.Info("console client disconnected",
		logging.String(logging.FieldEventType, "ws_client_disconnected"),
	)
}

func (s *apiServer) writePump(ctx context.Context, conn *websocket.Conn) error {
	hub := s.ctrl.Hub()
	cursor, err := s.sendSnapshot(conn)
	if err != nil {
		return err
	}
	for {
		if hub.Behind(cursor) {
			if cursor, err = s.sendSnapshot(conn); err != nil {
				return err
			}
		}
		msgs, next, err := hub.Fetch(ctx, cursor, wsBatch, true)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			if err := writeMessage(conn, msg); err != nil {
				return err
			}
		}
		cursor = next
	}
}

func (s *apiServer) sendSnapshot(conn *websocket.Conn) (uint64, error) {
	snap := s.ctrl.Snapshot()
	if err := writeMessage(conn, snap); err != nil {
		return 0, err
	}
	return snap.Seq, nil
}

func writeMessage(conn *websocket.Conn, msg events.Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// readPump discards client frames; its only job is noticing a closed
// connection and answering pongs.
func (s *apiServer) readPump(conn *websocket.Conn, pongWait time.Duration, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pingLoop uses WriteControl, which gorilla allows concurrently with the
// writer goroutine.
func pingLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration, cancel context.CancelFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				cancel()
				return
			}
		}
	}
}
