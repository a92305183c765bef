package detection

import (
	"testing"
	"time"

	"github.com/calder-vision/framewatch/server/models"
)

func TestEventRingPushAndSnapshot(t *testing.T) {
	r := newEventRing(3)
	base := time.Unix(1700000000, 0)

	for i := uint64(1); i <= 2; i++ {
		r.push(models.MotionEvent{Timestamp: base, FrameNumber: i})
	}
	if r.len() != 2 {
		t.Fatalf("len = %d, want 2", r.len())
	}

	snap := r.snapshot()
	if len(snap) != 2 || snap[0].FrameNumber != 1 || snap[1].FrameNumber != 2 {
		t.Errorf("snapshot = %+v, want frames 1,2", snap)
	}
}

func TestEventRingEvictsOldest(t *testing.T) {
	r := newEventRing(3)
	base := time.Unix(1700000000, 0)

	for i := uint64(1); i <= 5; i++ {
		r.push(models.MotionEvent{Timestamp: base, FrameNumber: i})
	}

	if r.len() != 3 {
		t.Fatalf("len = %d, want 3", r.len())
	}
	snap := r.snapshot()
	want := []uint64{3, 4, 5}
	for i, w := range want {
		if snap[i].FrameNumber != w {
			t.Errorf("snapshot[%d] = frame %d, want %d", i, snap[i].FrameNumber, w)
		}
	}
}

func TestEventRingSnapshotIsIndependent(t *testing.T) {
	r := newEventRing(3)
	base := time.Unix(1700000000, 0)
	r.push(models.MotionEvent{Timestamp: base, FrameNumber: 1})

	snap := r.snapshot()
	snap[0].FrameNumber = 99

	if r.snapshot()[0].FrameNumber != 1 {
		t.Error("mutating a snapshot must not affect the ring")
	}
}

func TestEventRingCountSince(t *testing.T) {
	r := newEventRing(10)
	base := time.Unix(1700000000, 0)

	r.push(models.MotionEvent{Timestamp: base, FrameNumber: 1})
	r.push(models.MotionEvent{Timestamp: base.Add(30 * time.Second), FrameNumber: 2})
	r.push(models.MotionEvent{Timestamp: base.Add(90 * time.Second), FrameNumber: 3})

	// Cutoff boundary is inclusive.
	if got := r.countSince(base.Add(30 * time.Second)); got != 2 {
		t.Errorf("countSince(+30s) = %d, want 2", got)
	}
	if got := r.countSince(base.Add(31 * time.Second)); got != 1 {
		t.Errorf("countSince(+31s) = %d, want 1", got)
	}
	if got := r.countSince(base); got != 3 {
		t.Errorf("countSince(base) = %d, want 3", got)
	}
}

func TestEventRingClear(t *testing.T) {
	r := newEventRing(3)
	base := time.Unix(1700000000, 0)
	for i := uint64(1); i <= 5; i++ {
		r.push(models.MotionEvent{Timestamp: base, FrameNumber: i})
	}

	r.clear()
	if r.len() != 0 {
		t.Fatalf("len after clear = %d, want 0", r.len())
	}

	r.push(models.MotionEvent{Timestamp: base, FrameNumber: 7})
	snap := r.snapshot()
	if len(snap) != 1 || snap[0].FrameNumber != 7 {
		t.Errorf("snapshot after clear = %+v, want single frame 7", snap)
	}
}
