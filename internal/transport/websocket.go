// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	broadcastQueue = 256
	writeWait      = 2 * time.Second
)

// WebSocketTransport implements the Transport interface by broadcasting each
// result as JSON to every connected client. Slow clients lose results rather
// than stall the session.
type WebSocketTransport struct {
	path      string
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan Result
	done      chan struct{}
	closeOnce sync.Once
	server    *http.Server
}

// NewWebSocketTransport serves results on ws://addr/path.
func NewWebSocketTransport(addr, path string, logger *zap.Logger) *WebSocketTransport {
	wst := newWebSocketTransport(path, logger)

	mux := http.NewServeMux()
	mux.Handle(path, wst)
	wst.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		wst.logger.Info("starting websocket server", zap.String("addr", addr), zap.String("path", path))
		if err := wst.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.logger.Error("websocket server stopped", zap.Error(err))
		}
	}()
	return wst
}

// newWebSocketTransport builds the broadcaster without a listener.
func newWebSocketTransport(path string, logger *zap.Logger) *WebSocketTransport {
	wst := &WebSocketTransport{
		path:   path,
		logger: logger.Named("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Results are read-only; any dashboard may connect.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Result, broadcastQueue),
		done:      make(chan struct{}),
	}
	go wst.handleBroadcasts()
	return wst
}

// ServeHTTP upgrades HTTP connections to WebSocket.
func (wst *WebSocketTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	wst.clientsMu.Lock()
	select {
	case <-wst.done:
		wst.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.logger.Debug("client connected", zap.String("remote", r.RemoteAddr), zap.Int("total", total))

	// Clients never send; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	conn.Close()
	if ok {
		wst.logger.Debug("client disconnected", zap.Int("total", total))
	}
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleBroadcasts sends queued results to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case r := <-wst.broadcast:
			// An unencodable result is skipped; the clients stay.
			data, err := json.Marshal(r)
			if err != nil {
				wst.logger.Warn("dropping unencodable result", zap.Int("samples", r.Samples), zap.Error(err))
				continue
			}
			wst.clientsMu.Lock()
			for client := range wst.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
					wst.logger.Debug("send failed", zap.Error(err))
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues r for broadcast. A full queue drops r.
func (wst *WebSocketTransport) Send(r Result) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	select {
	case wst.broadcast <- r:
	default:
		wst.logger.Debug("queue full, result dropped")
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.clientsMu.Lock()
		close(wst.done)
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
		wst.logger.Debug("closed")
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
