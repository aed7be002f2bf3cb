package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vitos/crypto_trade_level/internal/usecase"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // handleWS checks the Origin against allowedOrigins before upgrading
}

// handleWS upgrades to a duplex text channel and streams metric envelopes
// for the requested symbols, per spec.md §6 ("Subscribe URL: /ws?symbols=
// SYM1,SYM2,..."). The connection is push-only from the server's side;
// the read pump exists solely to detect client-initiated close per the
// gorilla/websocket idiom.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeError(w, s.logger, http.StatusBadRequest, "symbols query parameter is required")
		return
	}
	symbols := strings.Split(raw, ",")

	if origin := r.Header.Get("Origin"); origin != "" && !s.originAllowed(origin) {
		writeError(w, s.logger, http.StatusForbidden, "origin not allowed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := s.hub.Subscribe(symbols)
	go s.readPump(conn, sub.ID)
	s.writePump(conn, sub)
}

// readPump drains (and discards) client frames until the connection
// closes, which is how gorilla/websocket surfaces a client-initiated
// disconnect to the write side.
func (s *Server) readPump(conn *websocket.Conn, subscriptionID string) {
	defer conn.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.Unsubscribe(subscriptionID)
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, sub *usecase.Subscription) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		s.hub.Unsubscribe(sub.ID)
	}()

	for {
		select {
		case env, ok := <-sub.Envelopes():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-sub.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
