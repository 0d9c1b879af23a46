package fatpipe

import (
	"errors"
	"testing"
)

// newLoopbackPair builds a FatPipe and a same-process Receiver wired to its
// child-side descriptors directly, skipping the fork/exec step so the
// send/receive wire protocol can be exercised without spawning a subprocess.
func newLoopbackPair(t *testing.T) (*FatPipe, *Receiver) {
	t.Helper()
	fp, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rcv, err := NewReceiver(fp.control.FD(), fp.childFD)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}
	return fp, rcv
}

func TestSendReceiveRoundTrip(t *testing.T) {
	fp, rcv := newLoopbackPair(t)
	defer rcv.Close()

	if err := fp.Send([]byte("framedata"), "image/jpeg"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, err := rcv.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(msg.Payload) != "framedata" {
		t.Errorf("Payload = %q, want %q", msg.Payload, "framedata")
	}
	if msg.Type != "image/jpeg" {
		t.Errorf("Type = %q, want image/jpeg", msg.Type)
	}
}

func TestSendGrowsDataSegment(t *testing.T) {
	fp, rcv := newLoopbackPair(t)
	defer rcv.Close()

	small := []byte("x")
	if err := fp.Send(small, "text/plain"); err != nil {
		t.Fatalf("Send small: %v", err)
	}
	if _, err := rcv.Receive(); err != nil {
		t.Fatalf("Receive small: %v", err)
	}

	big := make([]byte, 4096)
	for i := range big {
		big[i] = byte(i)
	}
	if err := fp.Send(big, "application/octet-stream"); err != nil {
		t.Fatalf("Send big: %v", err)
	}
	msg, err := rcv.Receive()
	if err != nil {
		t.Fatalf("Receive big: %v", err)
	}
	if len(msg.Payload) != len(big) {
		t.Fatalf("len(Payload) = %d, want %d", len(msg.Payload), len(big))
	}
	for i := range big {
		if msg.Payload[i] != big[i] {
			t.Fatalf("Payload[%d] = %d, want %d", i, msg.Payload[i], big[i])
		}
	}
}

func TestPing(t *testing.T) {
	fp, rcv := newLoopbackPair(t)
	defer rcv.Close()

	if !fp.Ping() {
		t.Fatal("Ping returned false on a live pipe")
	}
	msg, err := rcv.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg.Payload != nil {
		t.Errorf("ping message carried a payload: %+v", msg)
	}
}

func TestCloseSignalsPeerGone(t *testing.T) {
	fp, rcv := newLoopbackPair(t)
	defer rcv.Close()

	if err := fp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err := rcv.Receive()
	if !errors.Is(err, ErrPeerGone) {
		t.Errorf("Receive error = %v, want ErrPeerGone", err)
	}
}
