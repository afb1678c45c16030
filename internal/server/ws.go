package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/observability"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second // must be shorter than wsPongWait
	wsReadLimit  = 512              // clients only send control frames
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleProgressWS streams progress updates to one websocket client.
// Each client gets its own broker subscription; a slow client sheds its
// oldest updates instead of stalling the training loop.
func (s *Server) handleProgressWS(c echo.Context) error {
	if s.deps.Broker == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "progress stream not configured"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		return nil
	}
	defer conn.Close()

	updates, cancel := s.deps.Broker.Subscribe()
	defer cancel()

	observability.DefaultMetrics.WSClients.Inc()
	defer observability.DefaultMetrics.WSClients.Dec()

	remote := conn.RemoteAddr().String()
	s.log.Debug("progress subscriber connected", logger.String("remote", remote))
	defer s.log.Debug("progress subscriber disconnected", logger.String("remote", remote))

	// Reader: consumes control frames and signals when the peer goes
	// away, which unblocks the write loop below.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsReadLimit)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				// Broker shut down; tell the client this is final.
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "progress stream closed"))
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(u); err != nil {
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}
