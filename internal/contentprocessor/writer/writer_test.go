package writer

import (
	"context"
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/configuration"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/filters"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/metrics"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/model"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/resultqueue"
)

type fakeTx struct {
	nextId     int64
	documents  []*model.DocumentRow
	attributes []*model.AttributeRow
	relations  []*model.RelationRow
	committed  bool
	rolledBack bool
	insertErr  error
}

func (t *fakeTx) InsertDocument(ctx context.Context, doc *model.DocumentRow) (int64, error) {
	if t.insertErr != nil {
		return 0, t.insertErr
	}
	t.nextId++
	doc.Id = t.nextId
	t.documents = append(t.documents, doc)
	return t.nextId, nil
}

func (t *fakeTx) InsertAttributes(ctx context.Context, rows []*model.AttributeRow) error {
	t.attributes = append(t.attributes, rows...)
	return nil
}

func (t *fakeTx) InsertRelations(ctx context.Context, rows []*model.RelationRow) error {
	t.relations = append(t.relations, rows...)
	return nil
}

func (t *fakeTx) Commit(ctx context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { t.rolledBack = true; return nil }

type fakeDocumentStore struct {
	tx       *fakeTx
	beginErr error
	begun    int
}

func (s *fakeDocumentStore) BeginCycle(ctx context.Context) (CycleTx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.begun++
	return s.tx, nil
}

type fakeBlobStore struct {
	texts    map[string]string
	images   map[string]bool
	textErr  error
	imageErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{texts: map[string]string{}, images: map[string]bool{}}
}

func (s *fakeBlobStore) Connect(ctx context.Context, container string) error { return nil }

func (s *fakeBlobStore) WriteText(ctx context.Context, container string, key string, text string) (string, error) {
	if s.textErr != nil {
		return "", s.textErr
	}
	s.texts[container+"/"+key] = text
	return "blob://" + container + "/" + key, nil
}

func (s *fakeBlobStore) WriteImage(ctx context.Context, container string, key string, img image.Image) (string, error) {
	if s.imageErr != nil {
		return "", s.imageErr
	}
	s.images[container+"/"+key] = true
	return "blob://" + container + "/" + key, nil
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

type snapshotLoader struct {
	snapshot *filters.Snapshot
}

func (l *snapshotLoader) Load(ctx context.Context) (*filters.Snapshot, error) {
	return l.snapshot, nil
}

func testChain(t *testing.T) *filters.FilterChain {
	cfg := configuration.FiltersConfig{
		Stages: configuration.StagesConfig{
			Products:     true,
			Combinations: true,
			Conditions:   true,
		},
	}
	chain := filters.NewFilterChain(cfg, &snapshotLoader{snapshot: &filters.Snapshot{
		Products:     filters.Dictionary{"tylenol": 42},
		Combinations: filters.Dictionary{"tylenol": 7},
		Conditions:   filters.Dictionary{"headache": 31},
	}})
	require.NoError(t, chain.Initialize(context.Background()))
	return chain
}

func acceptedArticle(sequenceId int64) *model.Article {
	a := &model.Article{
		SequenceId: sequenceId,
		Title:      "Tylenol recall widens",
		Content:    "Patients reported headache symptoms.",
		Url:        fmt.Sprintf("https://news.example.com/a/%d", sequenceId),
		SourceId:   77,
		RawXml:     fmt.Sprintf("<article><sequenceId>%d</sequenceId></article>", sequenceId),
	}
	a.DeclareRelevant("tylenol")
	a.AddDrug("tylenol", model.ScopeTitle)
	a.AddCondition("headache", model.ScopeContent)
	return a
}

type harness struct {
	writer  *BatchWriter
	results *resultqueue.Queue
	store   *fakeDocumentStore
	blobs   *fakeBlobStore
	fetcher *fakeFetcher
}

func withWriter(t *testing.T, action func(h *harness)) {
	h := &harness{
		results: resultqueue.New(),
		store:   &fakeDocumentStore{tx: &fakeTx{}},
		blobs:   newFakeBlobStore(),
		fetcher: &fakeFetcher{},
	}
	cfg := configuration.WriterConfig{
		WriteLimit:       10,
		MaxRowsPerInsert: 1000,
		SnippetLength:    1000,
	}
	h.writer = NewBatchWriter(cfg, h.results, h.store, h.blobs, h.fetcher, testChain(t), metrics.Get())
	action(h)
}

func attributesByKey(rows []*model.AttributeRow) map[string]*model.AttributeRow {
	byKey := map[string]*model.AttributeRow{}
	for _, row := range rows {
		byKey[row.Key] = row
	}
	return byKey
}

func TestRunCycleEmptyQueueIsNoOp(t *testing.T) {
	withWriter(t, func(h *harness) {
		result := h.writer.RunCycle(context.Background())
		assert.NoError(t, result.Err)
		assert.Equal(t, 0, result.Written)
		assert.Equal(t, 0, h.store.begun)
	})
}

func TestRunCyclePersistsArticle(t *testing.T) {
	withWriter(t, func(h *harness) {
		article := acceptedArticle(100)
		article.ImageUrl = "https://img.example.com/100.jpg"
		article.SourceLogoUrl = "https://news.example.com/logo.png"
		h.results.Enqueue(article)

		result := h.writer.RunCycle(context.Background())
		require.NoError(t, result.Err)
		assert.Equal(t, 1, result.Written)

		tx := h.store.tx
		assert.True(t, tx.committed)
		require.Len(t, tx.documents, 1)
		doc := tx.documents[0]
		assert.Equal(t, "news", doc.Type)
		assert.Equal(t, article.Url, doc.Url)
		assert.Equal(t, article.Title, doc.Title)
		require.NotNil(t, doc.Date)

		byKey := attributesByKey(tx.attributes)
		require.Len(t, byKey, 5)
		for _, row := range tx.attributes {
			assert.Equal(t, doc.Id, row.DocumentId)
		}
		assert.Equal(t, "blob://content/article-100.xml", *byKey["content"].BlobUrl)
		assert.Equal(t, "blob://summary/article-100.xml", *byKey["summary"].BlobUrl)
		assert.Equal(t, "title", *byKey["relevancy_scope"].Value)
		assert.Equal(t, "blob://image/image-100.jpg", *byKey["image"].BlobUrl)
		assert.Equal(t, article.ImageUrl, *byKey["image"].Value)
		assert.Equal(t, "blob://sourcelogo/source-77.jpg", *byKey["source_logo"].BlobUrl)

		assert.Equal(t, article.RawXml, h.blobs.texts["content/article-100.xml"])
		assert.Equal(t, article.RawXml, h.blobs.texts["summary/article-100.xml"])

		require.Len(t, tx.relations, 2)
		tylenol := tx.relations[0]
		assert.Equal(t, doc.Id, tylenol.DocumentId)
		require.NotNil(t, tylenol.ProductId)
		assert.Equal(t, int64(42), *tylenol.ProductId)
		require.NotNil(t, tylenol.CombinationId)
		assert.Nil(t, tylenol.QueryId)
		headache := tx.relations[1]
		require.NotNil(t, headache.ConditionId)
		assert.Equal(t, int64(31), *headache.ConditionId)
	})
}

func TestRunCycleOptionalImageFailureOnlySuppressesAttribute(t *testing.T) {
	withWriter(t, func(h *harness) {
		h.fetcher.err = errors.New("image host down")
		article := acceptedArticle(100)
		article.ImageUrl = "https://img.example.com/100.jpg"
		h.results.Enqueue(article)

		result := h.writer.RunCycle(context.Background())
		require.NoError(t, result.Err)
		assert.Equal(t, 1, result.Written)

		byKey := attributesByKey(h.store.tx.attributes)
		assert.NotContains(t, byKey, "image")
		assert.Contains(t, byKey, "content")
		assert.Contains(t, byKey, "summary")
		assert.True(t, h.store.tx.committed)
	})
}

func TestRunCycleDropsArticleOnMandatoryBlobFailure(t *testing.T) {
	withWriter(t, func(h *harness) {
		h.blobs.textErr = errors.New("blob store down")
		h.results.Enqueue(acceptedArticle(100))

		result := h.writer.RunCycle(context.Background())
		require.NoError(t, result.Err)
		assert.Equal(t, 0, result.Written)
		assert.Empty(t, h.store.tx.documents)
		assert.True(t, h.store.tx.committed)
	})
}

func TestRunCycleAbortsOnInsertFailure(t *testing.T) {
	withWriter(t, func(h *harness) {
		h.store.tx.insertErr = errors.New("database down")
		h.results.Enqueue(acceptedArticle(100))

		result := h.writer.RunCycle(context.Background())
		require.Error(t, result.Err)
		assert.True(t, h.store.tx.rolledBack)
		assert.False(t, h.store.tx.committed)
	})
}

func TestRunCycleDrainsAtMostWriteLimit(t *testing.T) {
	withWriter(t, func(h *harness) {
		for i := int64(1); i <= 15; i++ {
			h.results.Enqueue(acceptedArticle(i))
		}

		result := h.writer.RunCycle(context.Background())
		require.NoError(t, result.Err)
		assert.Equal(t, 10, result.Written)
		assert.Equal(t, 5, h.results.Len())

		// the remainder drains on the next cycle, oldest first
		second := h.writer.RunCycle(context.Background())
		require.NoError(t, second.Err)
		assert.Equal(t, 5, second.Written)
	})
}

func TestRunCycleSummaryBlobIsLeadingWindowOfRawPayload(t *testing.T) {
	withWriter(t, func(h *harness) {
		article := acceptedArticle(100)
		article.RawXml = "<article>" + strings.Repeat("x", 2000) + "</article>"
		h.results.Enqueue(article)

		result := h.writer.RunCycle(context.Background())
		require.NoError(t, result.Err)

		summary := h.blobs.texts["summary/article-100.xml"]
		assert.Equal(t, []rune(article.RawXml)[:1000], []rune(summary))
		// the content blob keeps the full payload
		assert.Equal(t, article.RawXml, h.blobs.texts["content/article-100.xml"])
	})
}

func TestSnippetTruncatesRuneSafe(t *testing.T) {
	assert.Equal(t, "abc", snippet("abc", 10))
	assert.Equal(t, strings.Repeat("ä", 5), snippet(strings.Repeat("ä", 9), 5))
	assert.Equal(t, "full", snippet("full", 0))
}
