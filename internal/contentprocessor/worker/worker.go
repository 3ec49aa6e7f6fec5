// Package worker consumes one upstream queue partition. Each partition has
// exactly one worker, which is what makes the peek-then-delete dequeue
// protocol safe: nothing else removes items from the partition.
package worker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/configuration"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/extract"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/filters"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/metrics"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/resultqueue"
)

const progressLogInterval = 100

// Transport is the slice of the queue client a worker needs.
type Transport interface {
	Connect(name string) error
	Dequeue(name string) (string, bool, error)
	DeleteLast(name string) error
	Length(name string) (int64, error)
}

// Counters is a point-in-time view of one worker's progress. Counts are read
// by the status report without synchronization; slightly stale values are
// acceptable there.
type Counters struct {
	Processed  int64
	Relevant   int64
	Exceptions int64
}

type PartitionWorker struct {
	queueName string
	cfg       configuration.QueueConfig
	transport Transport
	chain     *filters.FilterChain
	results   *resultqueue.Queue
	metrics   *metrics.Metrics

	processed  int64
	relevant   int64
	exceptions int64

	done chan struct{}
}

func NewPartitionWorker(
	partition int,
	cfg configuration.QueueConfig,
	transport Transport,
	chain *filters.FilterChain,
	results *resultqueue.Queue,
	m *metrics.Metrics,
) *PartitionWorker {
	return &PartitionWorker{
		queueName: fmt.Sprintf("%s%d", cfg.QueuePrefix, partition),
		cfg:       cfg,
		transport: transport,
		chain:     chain,
		results:   results,
		metrics:   m,
		done:      make(chan struct{}),
	}
}

// Done is closed when the worker's Run loop exits for any reason. The
// orchestrator probes it to detect dead workers.
func (w *PartitionWorker) Done() <-chan struct{} {
	return w.done
}

// Counters reports progress totals. Approximate while the worker is running.
func (w *PartitionWorker) Counters() Counters {
	return Counters{
		Processed:  w.processed,
		Relevant:   w.relevant,
		Exceptions: w.exceptions,
	}
}

// Run consumes the partition until ctx is cancelled. Item-level failures are
// logged and counted but never stop the loop; only a failed initial connect
// ends the worker early.
func (w *PartitionWorker) Run(ctx context.Context) {
	defer close(w.done)

	if err := w.transport.Connect(w.queueName); err != nil {
		log.WithError(err).Errorf("Could not connect to queue %s", w.queueName)
		return
	}
	log.Infof("Worker started on queue %s", w.queueName)

	for ctx.Err() == nil {
		depth, err := w.transport.Length(w.queueName)
		if err != nil {
			log.WithError(err).Warnf("Could not read depth of queue %s", w.queueName)
			w.sleep(ctx, w.cfg.EmptyPollInterval)
			continue
		}
		if depth < w.cfg.LowWaterMark {
			w.sleep(ctx, w.cfg.EmptyPollInterval)
			continue
		}

		payload, ok, err := w.transport.Dequeue(w.queueName)
		if err != nil {
			log.WithError(err).Warnf("Dequeue failed on queue %s", w.queueName)
			w.sleep(ctx, w.cfg.EmptyPollInterval)
			continue
		}
		if !ok {
			w.sleep(ctx, w.cfg.EmptyPollInterval)
			continue
		}

		w.processed++
		w.metrics.RecordArticleProcessed()
		w.process(payload)

		// Every accepted dequeue is deleted exactly once, whether or not
		// processing succeeded. A poison item must not wedge the partition.
		if err := w.transport.DeleteLast(w.queueName); err != nil {
			log.WithError(err).Errorf("Could not delete processed item from queue %s", w.queueName)
		}

		if w.processed%progressLogInterval == 0 {
			log.Infof("Queue %s: %d processed, %d relevant, %d exceptions",
				w.queueName, w.processed, w.relevant, w.exceptions)
		}
	}
	log.Infof("Worker on queue %s stopping", w.queueName)
}

func (w *PartitionWorker) process(payload string) {
	article, err := extract.Article(payload)
	if err != nil {
		w.exceptions++
		w.metrics.RecordItemException()
		log.WithError(err).Warnf("Discarding unparseable item from queue %s", w.queueName)
		return
	}

	if !w.chain.CheckRelevance(article) {
		return
	}
	w.chain.Populate(article)
	w.results.Enqueue(article)
	w.relevant++
	w.metrics.RecordArticleRelevant()
	log.Infof("Relevant article %d found on %s (%s)", article.SequenceId, w.queueName, article.FirstMatchedTerm)
}

func (w *PartitionWorker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
