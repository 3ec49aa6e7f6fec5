package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBOperation string

const (
	DBOperationRead   DBOperation = "read"
	DBOperationBegin  DBOperation = "begin"
	DBOperationInsert DBOperation = "insert"
	DBOperationCommit DBOperation = "commit"
)

const MetricsPrefix = "medwatch_content_processor_"

type Metrics struct {
	articlesProcessed    prometheus.Counter
	articlesRelevant     prometheus.Counter
	itemExceptions       prometheus.Counter
	workerRestarts       prometheus.Counter
	dbErrors             *prometheus.CounterVec
	blobErrors           prometheus.Counter
	resultQueueDepth     prometheus.Gauge
	articlesWritten      prometheus.Counter
	writeCycleDuration   prometheus.Histogram
	writeCycleExceptions prometheus.Counter
}

var (
	m    *Metrics
	once sync.Once
)

// Get returns the process-wide metrics, registering them on first use.
func Get() *Metrics {
	once.Do(func() {
		m = newMetrics(MetricsPrefix)
	})
	return m
}

func newMetrics(prefix string) *Metrics {
	return &Metrics{
		articlesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "articles_processed",
			Help: "Number of articles dequeued and examined",
		}),
		articlesRelevant: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "articles_relevant",
			Help: "Number of articles accepted as relevant",
		}),
		itemExceptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "item_exceptions",
			Help: "Number of per-item processing failures",
		}),
		workerRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "worker_restarts",
			Help: "Number of partition workers restarted after dying",
		}),
		dbErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "db_errors",
			Help: "Number of database errors grouped by operation",
		}, []string{"operation"}),
		blobErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "blob_errors",
			Help: "Number of blob storage errors, optional image fetches included",
		}),
		resultQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "result_queue_depth",
			Help: "Current number of relevant articles awaiting a write cycle",
		}),
		articlesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "articles_written",
			Help: "Number of articles persisted by write cycles",
		}),
		writeCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "write_cycle_duration_seconds",
			Help:    "Write cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		writeCycleExceptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "write_cycle_exceptions",
			Help: "Number of write cycles that aborted with an error",
		}),
	}
}

func (m *Metrics) RecordArticleProcessed() {
	m.articlesProcessed.Inc()
}

func (m *Metrics) RecordArticleRelevant() {
	m.articlesRelevant.Inc()
}

func (m *Metrics) RecordItemException() {
	m.itemExceptions.Inc()
}

func (m *Metrics) RecordWorkerRestart() {
	m.workerRestarts.Inc()
}

func (m *Metrics) RecordDBError(operation DBOperation) {
	m.dbErrors.With(map[string]string{"operation": string(operation)}).Inc()
}

func (m *Metrics) RecordBlobError() {
	m.blobErrors.Inc()
}

func (m *Metrics) RecordResultQueueDepth(depth int) {
	m.resultQueueDepth.Set(float64(depth))
}

func (m *Metrics) RecordArticlesWritten(count int) {
	m.articlesWritten.Add(float64(count))
}

func (m *Metrics) RecordWriteCycleDuration(seconds float64) {
	m.writeCycleDuration.Observe(seconds)
}

func (m *Metrics) RecordWriteCycleException() {
	m.writeCycleExceptions.Inc()
}
