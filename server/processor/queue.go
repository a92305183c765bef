package processor

import (
	"fmt"
	"sync"
	"time"

	"github.com/calder-vision/framewatch/server/models"
)

// ProcessingQueue fans frame work out to a fixed pool of workers over a
// bounded channel. Enqueue never blocks: a full queue is reported to the
// caller instead of applying backpressure inside the request path.
type ProcessingQueue struct {
	items      chan *QueueItem
	workers    int
	workerFunc func(*QueueItem)
	wg         sync.WaitGroup
	shutdown   chan struct{}
	running    bool
	mu         sync.RWMutex
}

// QueueItem is one frame awaiting analysis.
type QueueItem struct {
	Request    *models.FrameRequest
	ResultChan chan *ProcessingResult
	StartTime  time.Time
}

// ProcessingResult carries either the analysis or a processing error.
type ProcessingResult struct {
	Analysis *models.AnalysisResult
	Error    error
}

// NewProcessingQueue starts the worker pool immediately.
func NewProcessingQueue(queueSize, workers int, workerFunc func(*QueueItem)) *ProcessingQueue {
	q := &ProcessingQueue{
		items:      make(chan *QueueItem, queueSize),
		workers:    workers,
		workerFunc: workerFunc,
		shutdown:   make(chan struct{}),
		running:    true,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *ProcessingQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case item := <-q.items:
			if item == nil {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						select {
						case item.ResultChan <- &ProcessingResult{
							Error: fmt.Errorf("worker panic: %v", r),
						}:
						default:
						}
					}
				}()
				q.workerFunc(item)
			}()
		case <-q.shutdown:
			return
		}
	}
}

// Enqueue adds an item if the queue is running and has capacity.
func (q *ProcessingQueue) Enqueue(item *QueueItem) bool {
	q.mu.RLock()
	running := q.running
	q.mu.RUnlock()
	if !running {
		return false
	}

	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

// Size returns the number of items waiting.
func (q *ProcessingQueue) Size() int {
	return len(q.items)
}

// Capacity returns the queue's bound.
func (q *ProcessingQueue) Capacity() int {
	return cap(q.items)
}

// Workers returns the pool size.
func (q *ProcessingQueue) Workers() int {
	return q.workers
}

// Shutdown stops accepting work and waits up to timeout for the workers
// to drain.
func (q *ProcessingQueue) Shutdown(timeout time.Duration) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.mu.Unlock()

	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("queue shutdown timeout exceeded")
	}
}
