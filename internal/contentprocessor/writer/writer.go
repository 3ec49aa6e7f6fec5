// Package writer drains accepted articles from the result queue and persists
// them in batches: blobs to object storage, rows to Postgres.
package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/blob"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/configuration"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/filters"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/metrics"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/model"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/resultqueue"
)

// Blob containers, one per payload kind.
const (
	ContainerContent    = "content"
	ContainerSummary    = "summary"
	ContainerImage      = "image"
	ContainerSourceLogo = "sourcelogo"
)

// Document attribute keys.
const (
	attributeContent        = "content"
	attributeSummary        = "summary"
	attributeRelevancyScope = "relevancy_scope"
	attributeImage          = "image"
	attributeSourceLogo     = "source_logo"
)

const documentType = "news"

// Result is the outcome of one write cycle. A cycle that found nothing to
// drain completes successfully with Written == 0.
type Result struct {
	Written int
	Err     error
}

type BatchWriter struct {
	cfg     configuration.WriterConfig
	results *resultqueue.Queue
	store   DocumentStore
	blobs   blob.Store
	images  blob.ImageFetcher
	chain   *filters.FilterChain
	metrics *metrics.Metrics
}

func NewBatchWriter(
	cfg configuration.WriterConfig,
	results *resultqueue.Queue,
	store DocumentStore,
	blobs blob.Store,
	images blob.ImageFetcher,
	chain *filters.FilterChain,
	m *metrics.Metrics,
) *BatchWriter {
	return &BatchWriter{
		cfg:     cfg,
		results: results,
		store:   store,
		blobs:   blobs,
		images:  images,
		chain:   chain,
		metrics: m,
	}
}

// RunCycle drains up to the configured limit from the result queue and
// persists everything drained in one transaction. Articles whose mandatory
// blobs cannot be written are dropped from the cycle with a logged exception;
// a database failure aborts the whole cycle.
func (w *BatchWriter) RunCycle(ctx context.Context) Result {
	articles := w.results.Drain(w.cfg.WriteLimit)
	w.metrics.RecordResultQueueDepth(w.results.Len())
	if len(articles) == 0 {
		return Result{}
	}

	cycleId := uuid.New().String()
	cycleLog := log.WithField("cycle", cycleId)
	cycleLog.Infof("Write cycle starting with %d articles", len(articles))
	start := time.Now()

	tx, err := w.store.BeginCycle(ctx)
	if err != nil {
		w.metrics.RecordDBError(metrics.DBOperationBegin)
		w.metrics.RecordWriteCycleException()
		return Result{Err: err}
	}

	written := 0
	var attributes []*model.AttributeRow
	var relations []*model.RelationRow
	for _, article := range articles {
		articleAttributes, err := w.writeBlobs(ctx, article)
		if err != nil {
			// the document is worthless without its content blob
			w.metrics.RecordBlobError()
			w.metrics.RecordItemException()
			cycleLog.WithError(err).Warnf("Dropping article %d", article.SequenceId)
			continue
		}

		id, err := tx.InsertDocument(ctx, documentRow(article))
		if err != nil {
			w.metrics.RecordDBError(metrics.DBOperationInsert)
			w.metrics.RecordWriteCycleException()
			_ = tx.Rollback(ctx)
			return Result{Err: err}
		}

		for _, row := range articleAttributes {
			row.DocumentId = id
		}
		attributes = append(attributes, articleAttributes...)
		for _, row := range w.chain.BuildRelations(article) {
			row.DocumentId = id
			relations = append(relations, row)
		}
		written++
	}

	if err := tx.InsertAttributes(ctx, attributes); err != nil {
		w.metrics.RecordDBError(metrics.DBOperationInsert)
		w.metrics.RecordWriteCycleException()
		_ = tx.Rollback(ctx)
		return Result{Err: err}
	}
	if err := tx.InsertRelations(ctx, relations); err != nil {
		w.metrics.RecordDBError(metrics.DBOperationInsert)
		w.metrics.RecordWriteCycleException()
		_ = tx.Rollback(ctx)
		return Result{Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		w.metrics.RecordDBError(metrics.DBOperationCommit)
		w.metrics.RecordWriteCycleException()
		return Result{Err: err}
	}

	w.metrics.RecordArticlesWritten(written)
	w.metrics.RecordWriteCycleDuration(time.Since(start).Seconds())
	cycleLog.Infof("Write cycle finished: %d written in %s", written, time.Since(start).Round(time.Millisecond))
	return Result{Written: written}
}

// writeBlobs stores the article's blobs and returns the attribute rows they
// back, with document ids still unset. Content and summary blobs are
// mandatory; image and source logo are best-effort and their failure only
// suppresses the corresponding attribute.
func (w *BatchWriter) writeBlobs(ctx context.Context, a *model.Article) ([]*model.AttributeRow, error) {
	textKey := fmt.Sprintf("article-%d.xml", a.SequenceId)

	contentUrl, err := w.blobs.WriteText(ctx, ContainerContent, textKey, a.RawXml)
	if err != nil {
		return nil, err
	}
	summaryUrl, err := w.blobs.WriteText(ctx, ContainerSummary, textKey, snippet(a.RawXml, w.cfg.SnippetLength))
	if err != nil {
		return nil, err
	}

	scope := string(a.Scope)
	rows := []*model.AttributeRow{
		{Key: attributeContent, BlobUrl: &contentUrl},
		{Key: attributeSummary, BlobUrl: &summaryUrl},
		{Key: attributeRelevancyScope, Value: &scope},
	}

	if a.ImageUrl != "" {
		key := fmt.Sprintf("image-%d.jpg", a.SequenceId)
		if url, ok := w.writeOptionalImage(ctx, a.ImageUrl, ContainerImage, key); ok {
			rows = append(rows, &model.AttributeRow{Key: attributeImage, BlobUrl: &url, Value: &a.ImageUrl})
		}
	}
	if a.SourceLogoUrl != "" {
		key := fmt.Sprintf("source-%d.jpg", a.SourceId)
		if url, ok := w.writeOptionalImage(ctx, a.SourceLogoUrl, ContainerSourceLogo, key); ok {
			rows = append(rows, &model.AttributeRow{Key: attributeSourceLogo, BlobUrl: &url, Value: &a.SourceLogoUrl})
		}
	}
	return rows, nil
}

func (w *BatchWriter) writeOptionalImage(ctx context.Context, sourceUrl string, container string, key string) (string, bool) {
	img, err := w.images.Fetch(ctx, sourceUrl)
	if err != nil {
		w.metrics.RecordBlobError()
		log.WithError(err).Debugf("Skipping optional image %s", sourceUrl)
		return "", false
	}
	url, err := w.blobs.WriteImage(ctx, container, key, img)
	if err != nil {
		w.metrics.RecordBlobError()
		log.WithError(err).Warnf("Could not store optional image %s", sourceUrl)
		return "", false
	}
	return url, true
}

func documentRow(a *model.Article) *model.DocumentRow {
	date := a.PublishDate
	if date == nil {
		date = &a.RecordDate
	}
	return &model.DocumentRow{
		Type:  documentType,
		Url:   a.Url,
		Title: a.Title,
		Date:  date,
	}
}

// snippet truncates to at most max runes without splitting a character.
func snippet(content string, max int) string {
	if max <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}
