// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"spexia/internal/dsp"
	applog "spexia/internal/log"
)

// FramesPath is the WebSocket endpoint clients connect to.
const FramesPath = "/frames"

const writeTimeout = time.Second

// WebSocketTransport implements Publisher by broadcasting frame summaries to
// every connected WebSocket client.
type WebSocketTransport struct {
	addr     string
	bins     int
	codec    Codec
	upgrader websocket.Upgrader

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex

	broadcast chan []byte
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	server    *http.Server
	dropped   atomic.Uint64
}

// NewWebSocketTransport creates a transport and starts its broadcast loop.
// Call ListenAndServe to accept connections on addr, or mount Handler
// elsewhere.
func NewWebSocketTransport(addr string, codec Codec, bins int) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr:  addr,
		bins:  bins,
		codec: codec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Visualizers are served from anywhere.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler serving FramesPath.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(FramesPath, wst.handleWebSocket)
	return mux
}

// ListenAndServe serves Handler on the configured address until Close.
func (wst *WebSocketTransport) ListenAndServe() error {
	wst.clientsMu.Lock()
	select {
	case <-wst.done:
		wst.clientsMu.Unlock()
		return nil
	default:
	}
	wst.server = &http.Server{
		Addr:              wst.addr,
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	server := wst.server
	wst.clientsMu.Unlock()

	applog.Infof("WebSocketTransport: Starting server on %s%s (codec %s)", wst.addr, FramesPath, wst.codec.Name())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server: %w", err)
	}
	return nil
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients only listen; the first read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.removeClient(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case <-wst.done:
			return
		case msg := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteMessage(wst.codec.MessageType(), msg); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Publish encodes a summary of frame and queues it for broadcast. When the
// broadcast queue is full the message is dropped.
func (wst *WebSocketTransport) Publish(frame dsp.Frame) error {
	if wst.ClientCount() == 0 {
		return nil
	}

	msg, err := wst.codec.Marshal(Summarize(frame, wst.bins, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", frame.Seq, err)
	}

	select {
	case wst.broadcast <- msg:
	default:
		wst.dropped.Add(1)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Dropped returns the number of messages discarded because the broadcast
// queue was full.
func (wst *WebSocketTransport) Dropped() uint64 { return wst.dropped.Load() }

// Close shuts down the WebSocket server
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)
		wst.wg.Wait()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		server := wst.server
		wst.clientsMu.Unlock()

		if server != nil {
			err = server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Publisher = (*WebSocketTransport)(nil)
