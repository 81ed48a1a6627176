package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enroll/queue-server-go/internal/metrics"
	"github.com/enroll/queue-server-go/internal/model"
)

type QueueCounter interface {
	CountByType(ctx context.Context) (map[model.QueueType]int, error)
}

// QueueStatsJob keeps the queue length gauge in line with the store.
type QueueStatsJob struct {
	counter  QueueCounter
	interval time.Duration
	done     chan struct{}
}

func NewQueueStatsJob(counter QueueCounter, interval time.Duration) *QueueStatsJob {
	return &QueueStatsJob{
		counter:  counter,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *QueueStatsJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("queue stats job started")
}

func (j *QueueStatsJob) Stop() {
	close(j.done)
	log.Info().Msg("queue stats job stopped")
}

func (j *QueueStatsJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.refresh()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.refresh()
		}
	}
}

func (j *QueueStatsJob) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counts, err := j.counter.CountByType(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to count queue entries")
		return
	}

	for _, qt := range model.QueueTypes() {
		metrics.QueueLength.WithLabelValues(string(qt.ID)).Set(float64(counts[qt.ID]))
	}
}
