// If you are AI: This file implements the HTTP handler that attaches a
// subscriber (C4) to a named channel and streams its frames as
// multipart/x-mixed-replace, grounded on the teacher's
// internal/svc/httpflv/handler.go request-lifecycle shape (path parse,
// attach-on-request, write-until-disconnect, detach on return).

package preview

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"videopipe/internal/channel"
	"videopipe/internal/codec/imagetype"
	"videopipe/internal/imageconvert"
)

const boundary = "videopipeframe"

// Handler serves GET /preview/{channel}: attach a subscriber to {channel}
// and push each published frame as one multipart part until the client
// disconnects. An optional ?scale=N&mono=1 query runs each jpeg or raw
// frame through the image converter (A6) before it is written, per
// spec.md §6's "Image converter (consumed)" contract.
type Handler struct {
	converter *imageconvert.Converter
}

// NewHandler creates a new preview handler.
func NewHandler() *Handler { return &Handler{converter: imageconvert.New()} }

// ServeHTTP implements the preview endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/preview/")
	if name == "" || name == r.URL.Path {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sub, err := channel.NewSubscriber(name)
	if err != nil {
		log.Printf("preview[%s]: attach: %v", name, err)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	defer sub.Close()

	scale, monochrome := parseConvertParams(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", boundary))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// NOTE: Receive blocks on the subscriber socket; a context
		// cancellation during that blocking recv is only observed on the
		// next loop iteration, not pre-empted.
		msg, ok, err := sub.Receive(false)
		if err != nil {
			log.Printf("preview[%s]: receive: %v", name, err)
			return
		}
		if !ok {
			return // peer gone
		}
		if msg.Payload == nil {
			continue // nothing new
		}

		typ, _ := imagetype.Parse(msg.Type)
		payload := msg.Payload

		if (scale > 1 || monochrome) && imageconvert.Convertible(typ) {
			out, err := h.converter.ToJpeg(imageconvert.Image{Type: typ, Data: payload}, scale, monochrome)
			if err != nil {
				log.Printf("preview[%s]: convert: %v", name, err)
			} else {
				typ, payload = out.Type, out.Data
			}
		}

		contentType := "application/octet-stream"
		if typ.Format == imagetype.JPEG {
			contentType = "image/jpeg"
		}

		part := fmt.Sprintf("\r\n--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
			boundary, contentType, len(payload))
		if _, err := w.Write([]byte(part)); err != nil {
			return
		}
		if _, err := w.Write(payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

// parseConvertParams reads the optional scale/mono query parameters,
// defaulting to scale=1 (no-op) and mono=false.
func parseConvertParams(r *http.Request) (scale int, monochrome bool) {
	scale = 1
	if s := r.URL.Query().Get("scale"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			scale = n
		}
	}
	monochrome = r.URL.Query().Get("mono") == "1"
	return scale, monochrome
}

// RegisterRoutes registers preview routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/preview/", h.ServeHTTP)
}
