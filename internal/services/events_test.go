package services

import (
	"fmt"
	"strings"
	"testing"
)

func TestFormatSSEFrame(t *testing.T) {
	frame := FormatSSE("detection_update", map[string]interface{}{"total": 3})
	if frame != "event: detection_update\ndata: {\"total\":3}\n\n" {
		t.Fatalf("unexpected frame: %q", frame)
	}
}

func TestPublishFanOutFIFO(t *testing.T) {
	svc := NewPhishingEventService(10)
	sub := svc.Register("user-1")
	other := svc.Register("user-2")

	svc.PublishDetectionUpdate("user-1", map[string]interface{}{"email_id": "a"})
	svc.PublishBatchCompleted("user-1", 1)

	first := <-sub.C
	second := <-sub.C
	if !strings.Contains(first, "detection_update") {
		t.Fatalf("first frame = %q", first)
	}
	if !strings.Contains(second, "batch_completed") {
		t.Fatalf("second frame = %q", second)
	}

	select {
	case frame := <-other.C:
		t.Fatalf("cross-user leak: %q", frame)
	default:
	}
}

func TestPublishDropOldestOnOverflow(t *testing.T) {
	svc := NewPhishingEventService(100)
	sub := svc.Register("user-1")

	for i := 0; i < 101; i++ {
		svc.PublishDetectionUpdate("user-1", map[string]interface{}{"seq": i})
	}

	if got := len(sub.C); got != 100 {
		t.Fatalf("queue length = %d, expected 100", got)
	}

	// Oldest (seq 0) was dropped; the head is seq 1 and the newest survived.
	head := <-sub.C
	if !strings.Contains(head, `"seq":1`) {
		t.Fatalf("head frame = %q, expected seq 1", head)
	}
	var last string
	for len(sub.C) > 0 {
		last = <-sub.C
	}
	if !strings.Contains(last, fmt.Sprintf(`"seq":%d`, 100)) {
		t.Fatalf("last frame = %q, expected seq 100", last)
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	svc := NewPhishingEventService(10)
	sub := svc.Register("user-1")
	svc.Unregister("user-1", sub)

	svc.PublishDetectionUpdate("user-1", map[string]interface{}{"email_id": "x"})
	select {
	case frame := <-sub.C:
		t.Fatalf("unexpected frame after unregister: %q", frame)
	default:
	}
}

func TestConnectedFrame(t *testing.T) {
	svc := NewPhishingEventService(10)
	frame := svc.ConnectedFrame()
	if frame != "event: connected\ndata: {\"status\":\"ok\"}\n\n" {
		t.Fatalf("connected frame = %q", frame)
	}
}
