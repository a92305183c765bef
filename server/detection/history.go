package detection

import (
	"time"

	"github.com/calder-vision/framewatch/server/models"
)

// eventRing is a fixed-capacity FIFO of motion events with O(1) eviction.
// When full, pushing overwrites the oldest entry.
type eventRing struct {
	events []models.MotionEvent
	head   int // index of the oldest entry
	size   int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{events: make([]models.MotionEvent, capacity)}
}

func (r *eventRing) push(ev models.MotionEvent) {
	if r.size < len(r.events) {
		r.events[(r.head+r.size)%len(r.events)] = ev
		r.size++
		return
	}
	// Full: overwrite the oldest slot and advance the head.
	r.events[r.head] = ev
	r.head = (r.head + 1) % len(r.events)
}

func (r *eventRing) len() int {
	return r.size
}

// snapshot returns the retained events oldest-first as an independent slice.
func (r *eventRing) snapshot() []models.MotionEvent {
	out := make([]models.MotionEvent, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.events[(r.head+i)%len(r.events)])
	}
	return out
}

// countSince counts retained events with a timestamp at or after cutoff.
func (r *eventRing) countSince(cutoff time.Time) int {
	count := 0
	for i := 0; i < r.size; i++ {
		if !r.events[(r.head+i)%len(r.events)].Timestamp.Before(cutoff) {
			count++
		}
	}
	return count
}

func (r *eventRing) clear() {
	r.head = 0
	r.size = 0
}
