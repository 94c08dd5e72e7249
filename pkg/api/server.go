// Package api serves tenant dashboards over HTTP and pushes them to
// websocket subscribers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sigurn/crc16"
	log "github.com/sirupsen/logrus"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/dashboard"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/period"
)

var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

type Server struct {
	dashboards *dashboard.Service
	refresh    time.Duration
	upgrader   websocket.Upgrader

	// ws clients receiving dashboard pushes
	clients      map[*websocket.Conn]bool
	clientsMutex sync.RWMutex
}

func NewServer(dashboards *dashboard.Service, refresh time.Duration) *Server {
	if refresh <= 0 {
		refresh = time.Minute
	}
	return &Server{
		dashboards: dashboards,
		refresh:    refresh,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboards are read-only
			},
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/tenants/{tenant}/dashboard", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/tenants/{tenant}/ws", s.handleWebSocket).Methods(http.MethodGet)
	return r
}

// Handler is the router with request ids, CORS, access logging to accessLog
// and panic recovery.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet}),
		handlers.ExposedHeaders([]string{"ETag", RequestIDHeader}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(log.StandardLogger()),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(withRequestID(cors(handlers.CombinedLoggingHandler(accessLog, s.Router()))))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Pump Flow Monitor API",
		"status":     "running",
		"ws_clients": s.ClientCount(),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]

	d, err := s.resolveAndCompute(r.Context(), tenant, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	body, err := json.Marshal(d)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	tag := etag(body)

	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) resolveAndCompute(ctx context.Context, tenant string, r *http.Request) (dashboard.Dashboard, error) {
	filter, err := parseFilter(r)
	if err != nil {
		return dashboard.Dashboard{}, err
	}
	window, err := s.dashboards.ResolveWindow(ctx, tenant, filter)
	if err != nil {
		return dashboard.Dashboard{}, err
	}
	return s.dashboards.Compute(ctx, tenant, window), nil
}

// parseFilter reads preset, from and to. Explicit bounds without a preset
// select a custom window.
func parseFilter(r *http.Request) (period.Filter, error) {
	q := r.URL.Query()
	f := period.Filter{Preset: period.Preset(q.Get("preset"))}

	var err error
	if v := q.Get("from"); v != "" {
		if f.From, err = time.Parse(time.RFC3339, v); err != nil {
			return period.Filter{}, fmt.Errorf("%w: from: %v", period.ErrInvalidWindow, err)
		}
	}
	if v := q.Get("to"); v != "" {
		if f.To, err = time.Parse(time.RFC3339, v); err != nil {
			return period.Filter{}, fmt.Errorf("%w: to: %v", period.ErrInvalidWindow, err)
		}
	}
	if f.Preset == "" && (!f.From.IsZero() || !f.To.IsZero()) {
		f.Preset = period.PresetCustom
	}
	return f, nil
}

func etag(body []byte) string {
	return fmt.Sprintf(`"%04x-%x"`, crc16.Checksum(body, crcTable), len(body))
}

// etagMatches applies the weak comparison of If-None-Match: header is "*" or a
// comma separated list of tags, each possibly prefixed with W/.
func etagMatches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	entry := log.WithField("request_id", RequestID(r.Context()))
	if status >= http.StatusInternalServerError {
		entry.Errorf("Request failed: %v", err)
	} else if !errors.Is(err, period.ErrInvalidWindow) {
		entry.Warnf("Bad request: %v", err)
	}
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": RequestID(r.Context()),
	})
}
