// Package contentprocessor wires the pipeline together: partition workers
// feeding the shared result queue, the batch writer draining it and one
// orchestration loop supervising both.
package contentprocessor

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/clock"

	"github.com/medwatch/contentprocessor/internal/common"
	"github.com/medwatch/contentprocessor/internal/common/database"
	"github.com/medwatch/contentprocessor/internal/common/health"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/blob"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/configuration"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/filters"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/metrics"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/queue"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/refdata"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/resultqueue"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/worker"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/writer"
)

const imageFetchTimeout = 30 * time.Second

// Run starts the processor and blocks until SIGINT or SIGTERM.
func Run(config configuration.ContentProcessorConfiguration) error {
	ctx := createContextWithShutdown()

	m := metrics.Get()
	startupChecker := health.NewStartupCompleteChecker()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.SetupHttpMux(mux, startupChecker)
	shutdownHttp := common.ServeHttp(config.MetricsPort, mux)
	defer shutdownHttp()

	db := redis.NewUniversalClient(&config.Redis)
	defer db.Close()
	transport := queue.NewRedisTransport(db)

	pool, err := database.OpenPgxPool(ctx, config.Postgres)
	if err != nil {
		return errors.WithMessage(err, "connecting to document database")
	}
	defer pool.Close()

	blobs, err := blob.NewMinioStore(config.Blob)
	if err != nil {
		return err
	}
	var connectErrors *multierror.Error
	for _, container := range []string{
		writer.ContainerContent,
		writer.ContainerSummary,
		writer.ContainerImage,
		writer.ContainerSourceLogo,
	} {
		connectErrors = multierror.Append(connectErrors, blobs.Connect(ctx, container))
	}
	if err := connectErrors.ErrorOrNil(); err != nil {
		return err
	}

	chain := filters.NewFilterChain(config.Filters, refdata.NewStore(pool, config.Filters))
	if err := chain.Initialize(ctx); err != nil {
		return errors.WithMessage(err, "initializing filter chain")
	}

	results := resultqueue.New()
	batchWriter := writer.NewBatchWriter(
		config.Writer,
		results,
		writer.NewPostgresDocumentStore(pool, config.Writer.MaxRowsPerInsert),
		blobs,
		blob.NewHttpImageFetcher(imageFetchTimeout),
		chain,
		m,
	)

	workers := newSupervisor(config.Queue.PartitionCount, func(partition int) partitionWorker {
		return worker.NewPartitionWorker(partition, config.Queue, transport, chain, results, m)
	}, m)
	workers.start(ctx)
	log.Infof("Started %d partition workers", config.Queue.PartitionCount)

	startupChecker.MarkComplete()

	orchestrate(ctx, config.Writer, batchWriter, workers, newStatusReporter(config.Queue, transport), results, clock.RealClock{})

	log.Info("Content processor stopped")
	return nil
}

// cycleRunner is the slice of the batch writer the orchestration loop needs.
type cycleRunner interface {
	RunCycle(ctx context.Context) writer.Result
}

// orchestrate runs the steady-state loop. Exactly one write cycle is in
// flight at a time; between cycles the loop reports status and replaces dead
// workers. The inter-cycle wait is skipped while the result queue backlog
// exceeds one cycle's write limit.
func orchestrate(
	ctx context.Context,
	cfg configuration.WriterConfig,
	batchWriter cycleRunner,
	workers *supervisor,
	reporter *statusReporter,
	results *resultqueue.Queue,
	clk clock.Clock,
) {
	writerDone := make(chan writer.Result, 1)
	writerDone <- writer.Result{}
	var cycleStarted time.Time

	for ctx.Err() == nil {
		var last writer.Result
		select {
		case <-ctx.Done():
			return
		case last = <-writerDone:
		}
		if last.Err != nil {
			log.WithError(last.Err).Error("Write cycle failed")
		}

		if results.Len() <= cfg.WriteLimit {
			remaining := cfg.Interval - clk.Since(cycleStarted)
			if remaining > 0 {
				select {
				case <-ctx.Done():
					return
				case <-clk.After(remaining):
				}
			}
		}

		reporter.report(workers.totals(), last.Written, results.Len())
		workers.restartDead(ctx)

		cycleStarted = clk.Now()
		go func() {
			writerDone <- batchWriter.RunCycle(ctx)
		}()
	}
}

func createContextWithShutdown() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info("Shutdown signal received")
		cancel()
	}()
	return ctx
}
