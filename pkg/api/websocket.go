package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 20 * time.Second
)

// handleWebSocket pushes the dashboard on connect and again on every refresh
// tick when it changed. Rolling windows are re-resolved on each tick.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]
	logger := log.WithFields(log.Fields{"tenant": tenant, "request_id": RequestID(r.Context())})

	filter, err := parseFilter(r)
	if err == nil {
		_, err = s.dashboards.ResolveWindow(r.Context(), tenant, filter)
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Printf("WebSocket upgrade error: %v", err)
		return
	}
	s.addClient(conn)
	defer s.removeClient(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Keep reading so close frames and pings are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastTag string
	push := func() error {
		window, err := s.dashboards.ResolveWindow(ctx, tenant, filter)
		if err != nil {
			return err
		}
		body, err := json.Marshal(s.dashboards.Compute(ctx, tenant, window))
		if err != nil {
			return err
		}
		if tag := etag(body); tag != lastTag {
			lastTag = tag
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteMessage(websocket.TextMessage, body)
		}
		return nil
	}

	if err := push(); err != nil {
		logger.Printf("Initial dashboard push failed: %v", err)
		return
	}

	refresh := time.NewTicker(s.refresh)
	defer refresh.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-refresh.C:
			if err := push(); err != nil {
				logger.Printf("Dashboard push failed, dropping client: %v", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) addClient(conn *websocket.Conn) {
	s.clientsMutex.Lock()
	s.clients[conn] = true
	s.clientsMutex.Unlock()
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMutex.Lock()
	delete(s.clients, conn)
	s.clientsMutex.Unlock()
	conn.Close()
}

func (s *Server) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

// CloseClients drops every websocket subscriber, used on shutdown.
func (s *Server) CloseClients() {
	s.clientsMutex.RLock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.clientsMutex.RUnlock()

	for _, client := range clients {
		client.Close()
	}
}
