package moderation

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/httpx"
)

const (
	// keepAliveInterval keeps idle SSE connections and proxies from timing out.
	keepAliveInterval = 25 * time.Second
	wsWriteTimeout    = 10 * time.Second
	wsPongWait        = 60 * time.Second
	wsPingInterval    = (wsPongWait * 9) / 10
)

// Handlers exposes the broadcaster over HTTP.
type Handlers struct {
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
}

// NewHandlers builds the moderation handlers. checkOrigin decides which browser origins may
// open a WebSocket; nil accepts only same-origin requests (gorilla's default).
func NewHandlers(b *Broadcaster, checkOrigin func(r *http.Request) bool) *Handlers {
	return &Handlers{
		broadcaster: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleEvents godoc
// @Summary Moderation event stream (SSE)
// @Description Streams post workflow events (created, updated, approved, rejected, deleted) as Server-Sent Events.
// @Tags Moderation
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {object} moderation.Event
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized"
// @Failure 403 {object} apperror.ErrorResponse "Admin only"
// @Router /moderation/events [get]
func (h *Handlers) HandleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpx.WriteError(w, r, apperror.NewInternalError("streaming unsupported", nil))
			return
		}

		id, events := h.broadcaster.Subscribe()
		defer h.broadcaster.Unsubscribe(id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, ": connected %s\n\n", id)
		flusher.Flush()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case event, ok := <-events:
				if !ok {
					return
				}
				frame, err := event.SSE()
				if err != nil {
					log.Printf("Error encoding moderation event: %v", err)
					continue
				}
				if _, err := fmt.Fprint(w, frame); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// HandleWebSocket godoc
// @Summary Moderation event stream (WebSocket)
// @Description Upgrades to a WebSocket and sends each post workflow event as a JSON text message.
// @Tags Moderation
// @Security BearerAuth
// @Success 101 {object} moderation.Event
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized"
// @Failure 403 {object} apperror.ErrorResponse "Admin only"
// @Router /moderation/ws [get]
func (h *Handlers) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written an HTTP error response.
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		id, events := h.broadcaster.Subscribe()
		defer h.broadcaster.Unsubscribe(id)

		// The reader goroutine only services control frames and notices when the client goes away.
		closed := make(chan struct{})
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case event, ok := <-events:
				if !ok {
					return
				}
				msg, err := json.Marshal(event)
				if err != nil {
					log.Printf("Error encoding moderation event: %v", err)
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	}
}
