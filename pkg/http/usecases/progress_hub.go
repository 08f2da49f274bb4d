package usecases

import (
	"sync"
)

const subscriberBuffer = 64

type subscriber struct {
	id     uint
	events chan ProgressEvent
}

// progressHub fans iteration events out to the progress subscribers of each run.
type progressHub struct {
	mu   sync.Mutex
	seq  uint
	subs map[string]map[uint]*subscriber
}

func newProgressHub() *progressHub {
	return &progressHub{subs: make(map[string]map[uint]*subscriber)}
}

func (h *progressHub) Register(runId string) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{id: h.seq, events: make(chan ProgressEvent, subscriberBuffer)}
	h.seq++
	if h.subs[runId] == nil {
		h.subs[runId] = make(map[uint]*subscriber)
	}
	h.subs[runId][sub.id] = sub
	return sub
}

func (h *progressHub) Remove(runId string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subs[runId]
	if !ok {
		return
	}
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	close(sub.events)
	if len(subs) == 0 {
		delete(h.subs, runId)
	}
}

// Broadcast never blocks: a subscriber whose buffer is full misses the event.
func (h *progressHub) Broadcast(ev ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[ev.RunId] {
		select {
		case sub.events <- ev:
		default:
		}
	}
}

// Close sends the final event of a run and closes every subscriber channel of it.
func (h *progressHub) Close(final ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[final.RunId] {
		select {
		case sub.events <- final:
		default:
		}
		close(sub.events)
	}
	delete(h.subs, final.RunId)
}
