// Package dashclient subscribes to the dashboard websocket of the dashboard
// API and reconnects with exponential backoff when the connection drops.
package dashclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/dashboard"
)

var ErrGaveUp = errors.New("dashboard listener gave up reconnecting")

type Listener struct {
	URL         url.URL
	OnDashboard func(dashboard.Dashboard)

	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	// No message or ping within ReadTimeout counts as a dead connection.
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// DashboardURL builds the websocket URL for tenant. query carries the
// preset or from/to bounds.
func DashboardURL(host string, tlsEnabled bool, tenant string, query url.Values) url.URL {
	scheme := "ws"
	if tlsEnabled {
		scheme = "wss"
	}
	return url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     "/tenants/" + tenant + "/ws",
		RawQuery: query.Encode(),
	}
}

func NewListener(u url.URL, onDashboard func(dashboard.Dashboard)) *Listener {
	return &Listener{
		URL:            u,
		OnDashboard:    onDashboard,
		MaxRetries:     10,
		BaseRetryDelay: 2 * time.Second,
		MaxRetryDelay:  60 * time.Second,
		ReadTimeout:    90 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

// Run manages the websocket connection until ctx is done (returns nil) or
// MaxRetries consecutive connection attempts failed (returns ErrGaveUp).
func (l *Listener) Run(ctx context.Context) error {
	l.applyDefaults()
	retryCount := 0

	for {
		if ctx.Err() != nil {
			log.Println("Shutting down dashboard listener...")
			return nil
		}

		// Calculate retry delay with exponential backoff
		retryDelay := time.Duration(1<<retryCount) * l.BaseRetryDelay
		if retryDelay > l.MaxRetryDelay || retryDelay <= 0 {
			retryDelay = l.MaxRetryDelay
		}

		if retryCount > 0 {
			log.Printf("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, l.MaxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				log.Println("Shutdown requested during retry wait")
				return nil
			}
		}

		log.Printf("Connecting to %s", l.URL.String())

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, l.URL.String(), nil)
		if err != nil {
			log.Printf("Connection failed: %v", err)
			retryCount++
			if retryCount >= l.MaxRetries {
				log.Printf("Max retries (%d) reached. Giving up.", l.MaxRetries)
				return ErrGaveUp
			}
			continue
		}

		log.Println("Connected! Receiving dashboards.")

		// Reset retry count on successful connection
		retryCount = 0

		connectionBroken := l.handleConnection(ctx, c)
		c.Close()

		if !connectionBroken {
			return nil
		}
		log.Println("Connection lost, will retry...")
	}
}

func (l *Listener) applyDefaults() {
	if l.MaxRetries <= 0 {
		l.MaxRetries = 10
	}
	if l.BaseRetryDelay <= 0 {
		l.BaseRetryDelay = 2 * time.Second
	}
	if l.MaxRetryDelay <= 0 {
		l.MaxRetryDelay = 60 * time.Second
	}
	if l.ReadTimeout <= 0 {
		l.ReadTimeout = 90 * time.Second
	}
	if l.PingInterval <= 0 {
		l.PingInterval = 30 * time.Second
	}
}

// handleConnection returns true when the connection broke and false on a
// requested shutdown.
func (l *Listener) handleConnection(ctx context.Context, c *websocket.Conn) bool {
	done := make(chan struct{})

	// Detect dead connections; server pings and pushes both extend the deadline
	c.SetReadDeadline(time.Now().Add(l.ReadTimeout))
	c.SetPingHandler(func(appData string) error {
		c.SetReadDeadline(time.Now().Add(l.ReadTimeout))
		return c.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error: %v", err)
				} else {
					log.Printf("Connection closed: %v", err)
				}
				return
			}

			c.SetReadDeadline(time.Now().Add(l.ReadTimeout))

			if messageType != websocket.TextMessage {
				log.Printf("Received unexpected message type: %d", messageType)
				continue
			}
			var d dashboard.Dashboard
			if err := json.Unmarshal(message, &d); err != nil {
				log.Printf("Failed to parse dashboard: %v", err)
				continue
			}
			if l.OnDashboard != nil {
				l.OnDashboard(d)
			}
		}
	}()

	// Periodic pings
	ticker := time.NewTicker(l.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				log.Printf("Failed to send ping: %v", err)
			}
		case <-ctx.Done():
			log.Println("Closing dashboard connection...")

			err := c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			if err != nil {
				log.Println("Error sending close message:", err)
			}

			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
