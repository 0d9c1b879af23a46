package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"videopipe/internal/channel"
)

func solidJPEG(t *testing.T, dx, dy int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, dx, dy))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg fixture: %v", err)
	}
	return buf.Bytes()
}

func TestServeHTTPStreamsOneFrame(t *testing.T) {
	name := fmt.Sprintf("streamed%d_%d", os.Getpid(), time.Now().UnixNano())
	pub, err := channel.NewPublisher(name, "preview test")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	req := httptest.NewRequest("GET", "/preview/"+name, nil)
	w := httptest.NewRecorder()

	h := NewHandler()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	frame := solidJPEG(t, 32, 24)
	if err := pub.Publish(frame, "image/jpeg;xsize=32x24x3"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Body.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	pub.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after publisher close")
	}

	body := w.Body.String()
	if !strings.Contains(body, "Content-Type: image/jpeg") {
		t.Errorf("expected a jpeg part in the response, got %q", body)
	}
	if !strings.Contains(body, boundary) {
		t.Errorf("expected the multipart boundary in the response, got %q", body)
	}
}

func TestServeHTTPRejectsEmptyChannelName(t *testing.T) {
	req := httptest.NewRequest("GET", "/preview/", nil)
	w := httptest.NewRecorder()

	NewHandler().ServeHTTP(w, req)

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestServeHTTPAppliesScaleConversion(t *testing.T) {
	name := fmt.Sprintf("scaled%d_%d", os.Getpid(), time.Now().UnixNano())
	pub, err := channel.NewPublisher(name, "preview scale test")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	req := httptest.NewRequest("GET", "/preview/"+name+"?scale=2", nil)
	w := httptest.NewRecorder()

	h := NewHandler()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	frame := solidJPEG(t, 32, 24)
	if err := pub.Publish(frame, "image/jpeg;xsize=32x24x3"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Body.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	pub.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after publisher close")
	}

	if !strings.Contains(w.Body.String(), "Content-Type: image/jpeg") {
		t.Errorf("expected a converted jpeg part, got %q", w.Body.String())
	}
}
