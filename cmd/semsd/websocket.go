// WebSocket status stream for the UI shell. Each connection gets the
// current status on connect, then a fresh snapshot whenever sync state
// changes (pass start/stop, connectivity, new records).
package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/semsproject/sems-client/internal/logging"
	"github.com/semsproject/sems-client/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The daemon serves the local UI shell only.
		host := r.Host
		return strings.HasPrefix(host, "localhost") || strings.HasPrefix(host, "127.0.0.1")
	},
}

// wsEnvelope wraps every message on the status stream.
type wsEnvelope struct {
	Type      string            `json:"type"`
	Status    models.SyncStatus `json:"status"`
	Timestamp int64             `json:"timestamp"`
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", err)
		return
	}

	updates, cancel := s.status.Subscribe()
	logging.Debug("status stream connected", map[string]interface{}{"remote": r.RemoteAddr})

	go s.readPump(conn, cancel)
	go s.writePump(conn, updates)
}

// readPump drains the connection for pong/close handling. The UI never
// sends application messages; a read error means the client is gone.
func (s *server) readPump(conn *websocket.Conn, cancel func()) {
	defer func() {
		cancel()
		conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("status stream read error", map[string]interface{}{"error": err.Error()})
			}
			return
		}
	}
}

func (s *server) writePump(conn *websocket.Conn, updates <-chan models.SyncStatus) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	// Initial snapshot so the UI renders without waiting for a change.
	if status, err := s.status.Snapshot(); err == nil {
		if !writeStatus(conn, status) {
			return
		}
	}

	for {
		select {
		case status, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !writeStatus(conn, status) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeStatus(conn *websocket.Conn, status models.SyncStatus) bool {
	raw, err := json.Marshal(wsEnvelope{
		Type:      "sync.status",
		Status:    status,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, raw) == nil
}
