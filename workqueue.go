package aio

import (
	"context"
	"sync"
)

// workQueue runs one function on a dedicated goroutine whenever it is kicked.
// Kicks coalesce while the function is pending, the way queue_work does for a work item
// that is already queued, so the function must drain all outstanding work per run.
type workQueue struct {
	fn     func()
	kick   chan struct{}
	flush  chan chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newWorkQueue(fn func()) *workQueue {
	ctx, cancel := context.WithCancel(context.Background())

	wq := &workQueue{
		fn:     fn,
		kick:   make(chan struct{}, 1),
		flush:  make(chan chan struct{}),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go wq.run(ctx)

	return wq
}

func (wq *workQueue) run(ctx context.Context) {
	defer close(wq.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-wq.kick:
			wq.fn()
		case ack := <-wq.flush:
			// Kicks that arrived before the flush request are served first.
			select {
			case <-wq.kick:
				wq.fn()
			default:
			}
			close(ack)
		}
	}
}

// Queue schedules a run. It never blocks.
func (wq *workQueue) Queue() {
	select {
	case wq.kick <- struct{}{}:
	default:
	}
}

// Flush waits until every run queued before the call has finished.
func (wq *workQueue) Flush() {
	ack := make(chan struct{})

	select {
	case wq.flush <- ack:
		<-ack
	case <-wq.done:
	}
}

// Close stops the worker after the current run and waits for it to exit.
func (wq *workQueue) Close() {
	wq.once.Do(func() {
		wq.cancel()
		<-wq.done
	})
}
