// Package websocket implements the live reload channel between the dev
// server and open browser tabs.
//
// Every completed build is broadcast to all connected clients. Broadcasting
// never blocks the build: a client whose send buffer is full is dropped.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/cwrap/internal/build"
	"github.com/conneroisu/cwrap/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 16
)

// WebSocketManager tracks live reload clients and broadcasts build events
//
// Invariants:
// - clients map access always protected by clientsMutex
// - a client's send channel is closed exactly once, by removeClient
type WebSocketManager struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	originValidator OriginValidator
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   bool
}

// NewWebSocketManager creates a manager. A nil originValidator accepts only
// same-origin connections.
func NewWebSocketManager(originValidator OriginValidator, logger logging.Logger) *WebSocketManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketManager{
		clients:         make(map[*websocket.Conn]*Client),
		originValidator: originValidator,
		logger:          logger.WithComponent("livereload"),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// HandleWebSocket upgrades the request and registers the client
func (wm *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if wm.IsShutdown() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if origin != "" && wm.originValidator != nil && !wm.originValidator.IsAllowedOrigin(origin) {
		wm.logger.Warn(r.Context(), nil, "WebSocket connection rejected", "origin", origin)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	opts := &websocket.AcceptOptions{CompressionMode: websocket.CompressionDisabled}
	if wm.originValidator != nil {
		// Origin was validated above.
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		wm.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		lastActivity: time.Now(),
	}

	wm.clientsMutex.Lock()
	if wm.isShutdown {
		wm.clientsMutex.Unlock()
		_ = conn.Close(websocket.StatusServiceRestart, "Server shutting down")
		return
	}
	wm.clients[conn] = client
	count := len(wm.clients)
	wm.clientsMutex.Unlock()

	wm.logger.Debug(r.Context(), "Live reload client connected", "clients", count)

	go wm.writeToClient(client)
	wm.readFromClient(client)
}

// readFromClient drains incoming frames until the connection closes
func (wm *WebSocketManager) readFromClient(client *Client) {
	defer wm.removeClient(client.conn, websocket.StatusNormalClosure, "")

	for {
		_, _, err := client.conn.Read(wm.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && wm.ctx.Err() == nil {
				wm.logger.Debug(wm.ctx, "WebSocket read ended", "error", err.Error())
			}
			return
		}
		client.lastActivity = time.Now()
	}
}

// writeToClient handles writing messages to a client
func (wm *WebSocketManager) writeToClient(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(wm.ctx, writeWait)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()

			if err != nil {
				wm.removeClient(client.conn, websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(wm.ctx, writeWait)
			err := client.conn.Ping(ctx)
			cancel()

			if err != nil {
				wm.removeClient(client.conn, websocket.StatusGoingAway, "ping failed")
				return
			}

		case <-wm.ctx.Done():
			return
		}
	}
}

// removeClient unregisters a client and closes its connection
func (wm *WebSocketManager) removeClient(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	wm.clientsMutex.Lock()
	client, exists := wm.clients[conn]
	if exists {
		delete(wm.clients, conn)
		close(client.send)
	}
	count := len(wm.clients)
	wm.clientsMutex.Unlock()

	if exists {
		_ = conn.Close(code, reason)
		wm.logger.Debug(wm.ctx, "Live reload client disconnected", "clients", count)
	}
}

// BroadcastMessage sends a message to all connected clients without
// blocking.
func (wm *WebSocketManager) BroadcastMessage(message UpdateMessage) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	data, err := json.Marshal(message)
	if err != nil {
		wm.logger.Error(wm.ctx, err, "Failed to marshal broadcast message")
		return
	}

	var slow []*websocket.Conn

	wm.clientsMutex.RLock()
	for conn, client := range wm.clients {
		select {
		case client.send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	wm.clientsMutex.RUnlock()

	for _, conn := range slow {
		wm.removeClient(conn, websocket.StatusPolicyViolation, "client too slow")
	}
}

// OnBuild is a build listener that tells browsers to reload.
func (wm *WebSocketManager) OnBuild(result build.Result) {
	if result.Skipped {
		return
	}
	if result.Snapshot.Failed() {
		wm.BroadcastMessage(UpdateMessage{Type: MessageBuildError, Content: result.Snapshot.Diagnostic})
		return
	}
	wm.BroadcastMessage(UpdateMessage{Type: MessageReload})
}

// GetConnectedClients returns the number of connected clients
func (wm *WebSocketManager) GetConnectedClients() int {
	wm.clientsMutex.RLock()
	defer wm.clientsMutex.RUnlock()
	return len(wm.clients)
}

// Shutdown closes every client connection and rejects new ones
func (wm *WebSocketManager) Shutdown(ctx context.Context) error {
	wm.shutdownOnce.Do(func() {
		wm.clientsMutex.Lock()
		wm.isShutdown = true
		conns := make([]*websocket.Conn, 0, len(wm.clients))
		for conn := range wm.clients {
			conns = append(conns, conn)
		}
		wm.clientsMutex.Unlock()

		for _, conn := range conns {
			wm.removeClient(conn, websocket.StatusGoingAway, "Server shutdown")
		}
		wm.cancel()

		wm.logger.Info(ctx, "Live reload shut down")
	})
	return nil
}

// IsShutdown returns whether the manager has been shut down
func (wm *WebSocketManager) IsShutdown() bool {
	wm.clientsMutex.RLock()
	defer wm.clientsMutex.RUnlock()
	return wm.isShutdown
}

// LocalOrigins accepts http(s) origins on the loopback interface or the
// configured host, on the server port.
type LocalOrigins struct {
	Host string
	Port int
}

// IsAllowedOrigin implements OriginValidator
func (o LocalOrigins) IsAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil || port != strconv.Itoa(o.Port) {
		return false
	}

	switch host {
	case "localhost", "127.0.0.1", "::1", o.Host:
		return true
	}
	return false
}

// String describes the accepted origins for logging
func (o LocalOrigins) String() string {
	return fmt.Sprintf("localhost:%d, 127.0.0.1:%d, %s:%d", o.Port, o.Port, o.Host, o.Port)
}
