package channel

import (
	"fmt"
	"os"
	"testing"
	"time"
)

// testChannelName derives a unique channel name per test run so parallel
// test binaries on the same host never collide on /dev/shm.
func testChannelName(t *testing.T) string {
	return fmt.Sprintf("test%d_%d", os.Getpid(), time.Now().UnixNano())
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	name := testChannelName(t)
	pub, err := NewPublisher(name, "unit test publisher")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewSubscriber(name)
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	defer sub.Close()

	payload := []byte("hello, subscriber")
	if err := pub.Publish(payload, "application/octet-stream"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg, ok, err := sub.Receive(false)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !ok {
		t.Fatal("Receive reported peer-gone on a live channel")
	}
	if string(msg.Payload) != string(payload) {
		t.Errorf("Payload = %q, want %q", msg.Payload, payload)
	}
	if msg.Type != "application/octet-stream" {
		t.Errorf("Type = %q, want application/octet-stream", msg.Type)
	}
}

func TestSubscribePeekDoesNotConsume(t *testing.T) {
	name := testChannelName(t)
	pub, err := NewPublisher(name, "")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewSubscriber(name)
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	defer sub.Close()

	if err := pub.Publish([]byte("a"), "text/plain"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if _, _, err := sub.Receive(true); err != nil {
		t.Fatalf("peek Receive: %v", err)
	}
	msg, ok, err := sub.Receive(false)
	if err != nil || !ok {
		t.Fatalf("non-peek Receive: ok=%v err=%v", ok, err)
	}
	if string(msg.Payload) != "a" {
		t.Errorf("Payload = %q, want %q", msg.Payload, "a")
	}
}

func TestPublisherCloseSignalsEndOfStream(t *testing.T) {
	name := testChannelName(t)
	pub, err := NewPublisher(name, "")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	sub, err := NewSubscriber(name)
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	defer sub.Close()

	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, ok, err := sub.Receive(false)
	if err != nil {
		t.Fatalf("Receive after publisher close: %v", err)
	}
	if ok {
		t.Error("expected peer-gone (ok=false) after publisher Close")
	}
}

func TestNewSubscriberRejectsUnknownChannel(t *testing.T) {
	_, err := NewSubscriber(testChannelName(t))
	if err == nil {
		t.Fatal("expected an error subscribing to a nonexistent channel")
	}
}

func TestNewPublisherRejectsInvalidName(t *testing.T) {
	_, err := NewPublisher("_leadingunderscore", "")
	if err == nil {
		t.Fatal("expected an error for a name starting with '_'")
	}
}
