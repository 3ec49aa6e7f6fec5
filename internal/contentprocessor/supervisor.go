package contentprocessor

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/metrics"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/worker"
)

type partitionWorker interface {
	Run(ctx context.Context)
	Done() <-chan struct{}
	Counters() worker.Counters
}

// supervisor owns the partition-to-worker table. Every live partition has
// exactly one worker in the table; a worker that dies is replaced on the same
// partition during the next supervision pass.
type supervisor struct {
	spawn   func(partition int) partitionWorker
	workers map[int]partitionWorker
	metrics *metrics.Metrics
}

func newSupervisor(partitions int, spawn func(partition int) partitionWorker, m *metrics.Metrics) *supervisor {
	s := &supervisor{
		spawn:   spawn,
		workers: make(map[int]partitionWorker, partitions),
		metrics: m,
	}
	for partition := 0; partition < partitions; partition++ {
		s.workers[partition] = spawn(partition)
	}
	return s
}

func (s *supervisor) start(ctx context.Context) {
	for _, w := range s.workers {
		go w.Run(ctx)
	}
}

// restartDead replaces and restarts every worker whose Run loop has exited.
// Replacement is skipped during shutdown.
func (s *supervisor) restartDead(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	for partition, w := range s.workers {
		select {
		case <-w.Done():
			log.Warnf("Worker for partition %d died, restarting it", partition)
			s.metrics.RecordWorkerRestart()
			replacement := s.spawn(partition)
			s.workers[partition] = replacement
			go replacement.Run(ctx)
		default:
		}
	}
}

// totals sums progress counters across all live workers. Counters of dead
// workers are lost on restart, so totals can regress slightly.
func (s *supervisor) totals() worker.Counters {
	var totals worker.Counters
	for _, w := range s.workers {
		counters := w.Counters()
		totals.Processed += counters.Processed
		totals.Relevant += counters.Relevant
		totals.Exceptions += counters.Exceptions
	}
	return totals
}
