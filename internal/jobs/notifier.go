package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enroll/queue-server-go/internal/metrics"
)

type task struct {
	name string
	fn   func(context.Context) error
}

// Notifier runs fire-and-forget tasks on a fixed pool of workers. Tasks are
// never retried. Each task runs under its own timeout, detached from the
// request that submitted it.
type Notifier struct {
	workers int
	timeout time.Duration
	tasks   chan task

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewNotifier(workers, queueSize int, timeout time.Duration) *Notifier {
	return &Notifier{
		workers: workers,
		timeout: timeout,
		tasks:   make(chan task, queueSize),
	}
}

func (n *Notifier) Start() {
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go n.run(i)
	}
	log.Info().
		Int("workers", n.workers).
		Int("queueSize", cap(n.tasks)).
		Msg("notifier started")
}

// Submit enqueues fn without blocking. It returns false when the queue is
// full or the notifier has been stopped; the task is then dropped.
func (n *Notifier) Submit(name string, fn func(context.Context) error) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		log.Warn().Str("task", name).Msg("notifier stopped, task dropped")
		metrics.RecordNotification(metrics.NotificationDropped)
		return false
	}

	select {
	case n.tasks <- task{name: name, fn: fn}:
		return true
	default:
		log.Warn().Str("task", name).Msg("notifier queue full, task dropped")
		metrics.RecordNotification(metrics.NotificationDropped)
		return false
	}
}

// Stop refuses new tasks and waits for queued ones to finish.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.tasks)
	n.mu.Unlock()

	n.wg.Wait()
	log.Info().Msg("notifier stopped")
}

func (n *Notifier) run(workerID int) {
	defer n.wg.Done()

	for t := range n.tasks {
		n.execute(workerID, t)
	}
}

func (n *Notifier) execute(workerID int, t task) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("task", t.name).
				Int("worker", workerID).
				Msg("notifier task panicked")
		}
	}()

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		log.Error().
			Err(err).
			Str("task", t.name).
			Int("worker", workerID).
			Dur("elapsed", time.Since(start)).
			Msg("notifier task failed")
		return
	}

	log.Debug().
		Str("task", t.name).
		Int("worker", workerID).
		Dur("elapsed", time.Since(start)).
		Msg("notifier task done")
}
