package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transport writes one serialized event to the queue broker.
type Transport interface {
	WriteEvent(ctx context.Context, key string, value []byte) error
}

type queued struct {
	kind    Kind
	roomID  string
	payload any
}

// Publisher queues reference events and delivers them on a worker goroutine
// with fixed-delay, bounded retries. Publish never blocks the mutation path
// beyond the enqueue; terminal failures go to a dead-letter log and are
// never surfaced to the original caller.
type Publisher struct {
	transport Transport
	queue     chan queued
	delay     time.Duration
	attempts  int
	log       *zap.SugaredLogger

	closeOnce sync.Once
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(t Transport, queueSize int, delay time.Duration, attempts int, log *zap.SugaredLogger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if attempts <= 0 {
		attempts = 10
	}
	p := &Publisher{
		transport: t,
		queue:     make(chan queued, queueSize),
		delay:     delay,
		attempts:  attempts,
		log:       log,
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues an event. A full queue drops the event with a log line:
// reference publication is best-effort and must not stall mutations.
func (p *Publisher) Publish(kind Kind, roomID string, payload any) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warnw("publisher closed, dropping event", "cmd", kind, "roomId", roomID)
		return
	}
	select {
	case p.queue <- queued{kind: kind, roomID: roomID, payload: payload}:
	default:
		p.log.Errorw("reference queue full, dropping event", "cmd", kind, "roomId", roomID)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		p.deliver(ev)
	}
}

func (p *Publisher) deliver(ev queued) {
	b, err := json.Marshal(envelope{Cmd: ev.kind, Payload: ev.payload})
	if err != nil {
		p.log.Errorw("marshal reference event", "cmd", ev.kind, "error", err)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		lastErr = p.transport.WriteEvent(ctx, ev.roomID, b)
		cancel()
		if lastErr == nil {
			return
		}
		p.log.Warnw("reference publish failed",
			"cmd", ev.kind, "roomId", ev.roomID, "attempt", attempt, "error", lastErr)
		if attempt < p.attempts {
			time.Sleep(p.delay)
		}
	}
	// dead letter: keep the full payload so the event can be replayed by hand
	p.log.Errorw("reference event dead-lettered",
		"cmd", ev.kind, "roomId", ev.roomID, "payload", string(b), "error", lastErr)
}

// Close stops intake and drains the queue.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.queue)
		<-p.done
	})
}
