// If you are AI: This file implements the WebSocket handler that attaches
// a subscriber (C4) to a named channel and streams its frames as binary
// WebSocket messages, grounded on the teacher's
// internal/svc/wsflv/handler.go upgrade-then-stream-until-disconnect shape.

package wspreview

import (
	"encoding/binary"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"videopipe/internal/channel"
)

// Handler handles WebSocket preview requests.
type Handler struct {
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket preview handler.
func NewHandler() *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles WebSocket upgrade and frame streaming.
// Endpoint: GET /ws/preview/{channel}
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/ws/preview/")
	if name == "" || name == r.URL.Path {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sub, err := channel.NewSubscriber(name)
	if err != nil {
		log.Printf("wspreview[%s]: attach: %v", name, err)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // upgrade failed, response already sent
	}
	defer conn.Close()

	for {
		msg, ok, err := sub.Receive(false)
		if err != nil {
			log.Printf("wspreview[%s]: receive: %v", name, err)
			return
		}
		if !ok {
			return // peer gone
		}
		if msg.Payload == nil {
			continue // nothing new
		}

		frame := frameMessage(msg.Type, msg.Payload)
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
}

// frameMessage packs a type string and payload into one binary WebSocket
// message: a 2-byte big-endian type-string length, the type string, then
// the payload — mirroring the teacher's single-frame-per-tag convention in
// internal/svc/wsflv.
func frameMessage(typeStr string, payload []byte) []byte {
	buf := make([]byte, 2+len(typeStr)+len(payload))
	binary.BigEndian.PutUint16(buf[:2], uint16(len(typeStr)))
	copy(buf[2:], typeStr)
	copy(buf[2+len(typeStr):], payload)
	return buf
}

// RegisterRoutes registers WebSocket preview routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/preview/", h.ServeHTTP)
}
