package processor

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueProcessesItems(t *testing.T) {
	processed := make(chan *QueueItem, 4)
	q := NewProcessingQueue(4, 2, func(item *QueueItem) {
		processed <- item
	})
	defer q.Shutdown(time.Second)

	for i := 0; i < 4; i++ {
		if !q.Enqueue(&QueueItem{StartTime: time.Now()}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	for i := 0; i < 4; i++ {
		select {
		case <-processed:
		case <-time.After(time.Second):
			t.Fatalf("item %d never processed", i)
		}
	}
}

func TestQueueFullRejectsWithoutBlocking(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewProcessingQueue(1, 1, func(*QueueItem) {
		started <- struct{}{}
		<-release
	})

	// First item occupies the single worker.
	if !q.Enqueue(&QueueItem{}) {
		t.Fatal("first enqueue rejected")
	}
	<-started

	// Second fills the buffer, third must be refused immediately.
	if !q.Enqueue(&QueueItem{}) {
		t.Fatal("second enqueue rejected")
	}
	if q.Enqueue(&QueueItem{}) {
		t.Fatal("third enqueue accepted on a full queue")
	}
	if q.Size() != 1 {
		t.Errorf("size = %d, want 1", q.Size())
	}

	close(release)
	<-started // buffered item runs too
	if err := q.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	q := NewProcessingQueue(4, 1, func(*QueueItem) {})
	if err := q.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if q.Enqueue(&QueueItem{}) {
		t.Error("enqueue accepted after shutdown")
	}
	// A second shutdown is a no-op.
	if err := q.Shutdown(time.Second); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestQueueWorkerPanicIsContained(t *testing.T) {
	resultChan := make(chan *ProcessingResult, 1)
	done := make(chan struct{})
	var calls int32
	q := NewProcessingQueue(2, 1, func(*QueueItem) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("worker exploded")
		}
		close(done)
	})
	defer q.Shutdown(time.Second)

	if !q.Enqueue(&QueueItem{ResultChan: resultChan}) {
		t.Fatal("enqueue rejected")
	}

	select {
	case result := <-resultChan:
		if result.Error == nil {
			t.Error("expected the panic surfaced as an error")
		}
	case <-time.After(time.Second):
		t.Fatal("no result after worker panic")
	}

	// The same worker keeps serving after the panic.
	if !q.Enqueue(&QueueItem{}) {
		t.Fatal("enqueue rejected after panic")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stopped serving after a panic")
	}
}
