package contentprocessor

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/configuration"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/worker"
)

// statusReporter logs one status line per orchestration pass: totals, deltas
// since the previous pass, upstream queue depth and process runtime.
type statusReporter struct {
	cfg       configuration.QueueConfig
	transport worker.Transport
	started   time.Time
	previous  worker.Counters
}

func newStatusReporter(cfg configuration.QueueConfig, transport worker.Transport) *statusReporter {
	return &statusReporter{cfg: cfg, transport: transport, started: time.Now()}
}

func (r *statusReporter) report(totals worker.Counters, lastWritten int, resultQueueDepth int) {
	depth := r.queueDepth()
	log.WithFields(log.Fields{
		"processed":        totals.Processed,
		"processedDelta":   totals.Processed - r.previous.Processed,
		"relevant":         totals.Relevant,
		"relevantDelta":    totals.Relevant - r.previous.Relevant,
		"exceptions":       totals.Exceptions,
		"written":          lastWritten,
		"resultQueueDepth": resultQueueDepth,
		"queueDepth":       depth,
		"runtime":          time.Since(r.started).Round(time.Second).String(),
	}).Info("Status")
	r.previous = totals
}

// queueDepth sums the depth of every upstream partition. Partitions that
// cannot be read count as zero; the report is informational.
func (r *statusReporter) queueDepth() int64 {
	var depth int64
	for partition := 0; partition < r.cfg.PartitionCount; partition++ {
		name := fmt.Sprintf("%s%d", r.cfg.QueuePrefix, partition)
		length, err := r.transport.Length(name)
		if err != nil {
			continue
		}
		depth += length
	}
	return depth
}
