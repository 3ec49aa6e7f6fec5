package configuration

import (
	"time"

	"github.com/go-redis/redis"
)

type ContentProcessorConfiguration struct {
	// Port on which prometheus metrics and health checks are exposed
	MetricsPort uint16
	// Redis instance holding the per-partition article queues
	Redis redis.UniversalOptions
	// Connection details for the document database
	Postgres PostgresConfig
	// Object storage for article payloads, snippets and images
	Blob BlobConfig
	// Partitioned queue consumption
	Queue QueueConfig
	// Batch writer cadence and limits
	Writer WriterConfig
	// Filter chain stages and reference dictionaries
	Filters FiltersConfig
}

type PostgresConfig struct {
	// Keys are libpq parameter names, e.g. host, port, dbname
	Connection map[string]string
}

type BlobConfig struct {
	Endpoint        string
	AccessKeyId     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

type QueueConfig struct {
	// Number of upstream partitions; one worker is bound to each
	PartitionCount int
	// Queue names are QueuePrefix + partition number
	QueuePrefix string
	// Workers wait until at least this many items are queued before dequeuing
	LowWaterMark int64
	// Sleep between polls when a partition is empty or below the low-water mark
	EmptyPollInterval time.Duration
}

type WriterConfig struct {
	// Maximum articles drained from the result queue per write cycle
	WriteLimit int
	// Target interval between write cycles. Skipped when the result queue
	// backlog already exceeds WriteLimit.
	Interval time.Duration
	// Maximum rows per bulk insert statement
	MaxRowsPerInsert int
	// Length in characters of the snippet blob written per document
	SnippetLength int
}

type FiltersConfig struct {
	// Source categories accepted by the category gate
	Categories []string
	// Editorial ranks accepted by the rank gate
	EditorialRanks []string
	// Newline-delimited keyword list; an empty or missing list disables the
	// keyword gate
	KeywordFilePath string
	// Distinct keyword matches required for an article to pass the keyword gate
	KeywordMatchThreshold int
	// Per-stage activation. An inactive stage is a no-op pass-through.
	Stages StagesConfig
}

type StagesConfig struct {
	Category     bool
	Rank         bool
	Keyword      bool
	Queries      bool
	GenericNames bool
	Products     bool
	Combinations bool
	Conditions   bool
}
