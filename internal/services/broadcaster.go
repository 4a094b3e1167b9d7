package services

import (
	"sync"
	"sync/atomic"
	"time"

	"bridge/agent/internal/models"
)

// defaultTrackedTransfers bounds the per-transaction index behind Last.
const defaultTrackedTransfers = 1024

type queuedEvent struct {
	seq uint64
	ev  models.BridgeStatusEvent
}

type subscriber struct {
	handle    func(models.BridgeStatusEvent)
	delivered atomic.Uint64

	mu        sync.Mutex
	replaying bool
	queue     []queuedEvent
}

// deliver hands ev to the subscriber unless a newer event already reached it.
// While the replay runs, events are queued behind it.
func (s *subscriber) deliver(seq uint64, ev models.BridgeStatusEvent) {
	s.mu.Lock()
	if s.replaying {
		s.queue = append(s.queue, queuedEvent{seq, ev})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.handleIfNewer(seq, ev)
}

func (s *subscriber) handleIfNewer(seq uint64, ev models.BridgeStatusEvent) {
	for {
		cur := s.delivered.Load()
		if seq <= cur {
			return
		}
		if s.delivered.CompareAndSwap(cur, seq) {
			break
		}
	}
	s.handle(ev)
}

// replay delivers the latest event, then whatever was published meanwhile.
func (s *subscriber) replay(seq uint64, ev *models.BridgeStatusEvent) {
	if ev != nil {
		s.handleIfNewer(seq, *ev)
	}
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.replaying = false
			s.mu.Unlock()
			return
		}
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()
		for _, q := range pending {
			s.handleIfNewer(q.seq, q.ev)
		}
	}
}

// EventBroadcaster fans transfer outcomes out to any number of subscribers.
// The latest event is kept and replayed to late subscribers.
type EventBroadcaster struct {
	mu      sync.Mutex
	subs    map[int]*subscriber
	nextID  int
	seq     uint64
	last    *models.BridgeStatusEvent
	byHash  map[string]models.BridgeStatusEvent
	order   []string
	tracked int
}

func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		subs:    make(map[int]*subscriber),
		byHash:  make(map[string]models.BridgeStatusEvent),
		tracked: defaultTrackedTransfers,
	}
}

func (b *EventBroadcaster) Publish(ev models.BridgeStatusEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.last = &ev
	if ev.TransactionHash != "" {
		b.remember(ev)
	}
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.deliver(seq, ev)
	}
}

// remember indexes ev by hash, forgetting the oldest transaction past the bound.
func (b *EventBroadcaster) remember(ev models.BridgeStatusEvent) {
	if _, ok := b.byHash[ev.TransactionHash]; !ok {
		b.order = append(b.order, ev.TransactionHash)
		for len(b.order) > b.tracked {
			delete(b.byHash, b.order[0])
			b.order = b.order[1:]
		}
	}
	b.byHash[ev.TransactionHash] = ev
}

// Subscribe registers handler and immediately replays the latest event, if any.
// Events published while the replay runs are delivered after it, in order.
func (b *EventBroadcaster) Subscribe(handler func(models.BridgeStatusEvent)) (unsubscribe func()) {
	s := &subscriber{handle: handler, replaying: true}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	var replay *models.BridgeStatusEvent
	if b.last != nil {
		cp := *b.last
		replay = &cp
	}
	seq := b.seq
	b.mu.Unlock()

	s.replay(seq, replay)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

// Last returns the latest event seen for txHash.
func (b *EventBroadcaster) Last(txHash string) (models.BridgeStatusEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev, ok := b.byHash[txHash]
	return ev, ok
}
