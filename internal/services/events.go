package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Subscriber is one SSE connection's bounded queue. The channel carries
// fully-formatted SSE frames.
type Subscriber struct {
	C chan string
}

// PhishingEventService fans classification updates out to the owning user's
// SSE connections. Queues are bounded; a full queue drops its oldest frame so
// publishing never blocks.
type PhishingEventService struct {
	queueCapacity int

	mu          sync.Mutex
	subscribers map[string][]*Subscriber
}

func NewPhishingEventService(queueCapacity int) *PhishingEventService {
	if queueCapacity <= 0 {
		queueCapacity = 100
	}
	return &PhishingEventService{
		queueCapacity: queueCapacity,
		subscribers:   make(map[string][]*Subscriber),
	}
}

// Register adds a subscriber queue for the user.
func (s *PhishingEventService) Register(userID string) *Subscriber {
	sub := &Subscriber{C: make(chan string, s.queueCapacity)}
	s.mu.Lock()
	s.subscribers[userID] = append(s.subscribers[userID], sub)
	total := len(s.subscribers[userID])
	s.mu.Unlock()
	log.Printf("[SSE] subscriber registered: user=%s total=%d", userID, total)
	return sub
}

// Unregister removes a subscriber queue; empty user entries are dropped.
func (s *PhishingEventService) Unregister(userID string, sub *Subscriber) {
	s.mu.Lock()
	queues := s.subscribers[userID]
	for i, q := range queues {
		if q == sub {
			queues = append(queues[:i], queues[i+1:]...)
			break
		}
	}
	if len(queues) == 0 {
		delete(s.subscribers, userID)
	} else {
		s.subscribers[userID] = queues
	}
	s.mu.Unlock()
	log.Printf("[SSE] subscriber unregistered: user=%s", userID)
}

// PublishDetectionUpdate pushes one message's classification result.
func (s *PhishingEventService) PublishDetectionUpdate(userID string, payload map[string]interface{}) {
	s.broadcast(userID, FormatSSE("detection_update", payload))
}

// PublishBatchCompleted signals that a detection batch finished.
func (s *PhishingEventService) PublishBatchCompleted(userID string, total int) {
	s.broadcast(userID, FormatSSE("batch_completed", map[string]interface{}{"total": total}))
}

// ConnectedFrame is the synthetic event emitted right after registration.
func (s *PhishingEventService) ConnectedFrame() string {
	return FormatSSE("connected", map[string]interface{}{"status": "ok"})
}

// broadcast enqueues a frame to every subscriber of the user. The queue list
// is snapshotted under the lock; the sends happen without it. On a full
// queue the oldest frame is dropped first.
func (s *PhishingEventService) broadcast(userID string, frame string) {
	s.mu.Lock()
	queues := make([]*Subscriber, len(s.subscribers[userID]))
	copy(queues, s.subscribers[userID])
	s.mu.Unlock()

	for _, sub := range queues {
		enqueueDropOldest(sub.C, frame)
	}
}

func enqueueDropOldest(ch chan string, frame string) {
	for {
		select {
		case ch <- frame:
			return
		default:
		}
		// Queue full: drop the oldest frame, then retry the send.
		select {
		case <-ch:
		default:
		}
	}
}

// FormatSSE renders one SSE frame: "event: X\ndata: J\n\n".
func FormatSSE(event string, payload map[string]interface{}) string {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[SSE] marshal failed for %s: %v", event, err)
		data = []byte("{}")
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}
