package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportrag/internal/chunker"
	"supportrag/internal/domain"
	"supportrag/internal/embedding"
	"supportrag/internal/ratelimit"
)

func newTestIndexer(emb domain.Embedder, idx domain.Index, lim domain.Limiter) *Indexer {
	ix := NewIndexer(emb, idx, lim, IndexerConfig{IDPrefix: "aven-support"}, quiet())
	ix.now = func() time.Time { return time.UnixMilli(1700000000000) }
	ix.newID = func() string { return "batch-1" }
	return ix
}

func TestIndex_WritesOneRecordPerChunkInOrder(t *testing.T) {
	ch := chunker.NewFixedChunker(4)
	text := "abcdefghij"
	emb := embedding.Fit(&fakeEmbedder{vec: []float32{1, 2}}, 5)
	idx := &fakeIndex{}
	lim := &fakeLimiter{}
	ix := newTestIndexer(emb, idx, lim)

	report, err := ix.Index(context.Background(), ch.Chunks(text), ch.Count(text), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, &IndexReport{BatchID: "batch-1", Records: 3}, report)

	require.Len(t, idx.upserts, 3)
	records := idx.records()
	for i, r := range records {
		assert.Len(t, idx.upserts[i], 1)
		assert.Equal(t, ix.RecordID(i, ix.now()), r.ID)
		assert.Equal(t, []float32{1, 2, 0, 0, 0}, r.Values)
		assert.Equal(t, i, r.Metadata[domain.MetaChunkIndex])
		assert.Equal(t, 3, r.Metadata[domain.MetaTotalChunks])
		assert.Equal(t, "website", r.Metadata[domain.MetaCategory])
		assert.Equal(t, "u1, u2", r.Metadata[domain.MetaSourceURLs])
		assert.Equal(t, "batch-1", r.Metadata[domain.MetaBatchID])
	}
	assert.Equal(t, "aven-support-chunk-0-1700000000000", records[0].ID)
	assert.Equal(t, "abcd", records[0].Metadata[domain.MetaText])
	assert.Equal(t, "ij", records[2].Metadata[domain.MetaText])
	assert.Equal(t, 2, records[2].Metadata[domain.MetaChunkSize])

	assert.Equal(t, 3, lim.waits)
}

func TestIndex_SpacesEmbedCallsWithRealLimiter(t *testing.T) {
	ch := chunker.NewFixedChunker(1)
	emb := &fakeEmbedder{vec: []float32{1}}
	ix := newTestIndexer(emb, &fakeIndex{}, ratelimit.New(120))

	_, err := ix.Index(context.Background(), ch.Chunks("abc"), 3, nil)
	require.NoError(t, err)

	require.Len(t, emb.at, 3)
	for i := 1; i < len(emb.at); i++ {
		gap := emb.at[i].Sub(emb.at[i-1])
		assert.GreaterOrEqual(t, gap, 450*time.Millisecond, "gap between embed %d and %d", i-1, i)
	}
}

func TestIndex_EmbedFailureAborts(t *testing.T) {
	ch := chunker.NewFixedChunker(2)
	emb := &fakeEmbedder{err: domain.StatusError("embed", 429, "quota")}
	idx := &fakeIndex{}
	lim := &fakeLimiter{}
	ix := newTestIndexer(emb, idx, lim)

	report, err := ix.Index(context.Background(), ch.Chunks("abcdef"), 3, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindRateLimited, domain.KindOf(err))
	assert.Zero(t, report.Records)
	assert.Empty(t, idx.upserts)
	assert.Equal(t, 1, lim.throttled)
	assert.Len(t, emb.texts, 1)
}

func TestIndex_UpsertFailureAborts(t *testing.T) {
	ch := chunker.NewFixedChunker(2)
	upsertErr := errors.New("index down")
	ix := newTestIndexer(&fakeEmbedder{vec: []float32{1}}, &fakeIndex{upsertErr: upsertErr}, &fakeLimiter{})

	_, err := ix.Index(context.Background(), ch.Chunks("abcdef"), 3, nil)
	require.ErrorIs(t, err, upsertErr)
}

func TestIndex_OversizedEmbeddingRejected(t *testing.T) {
	ch := chunker.NewFixedChunker(10)
	emb := embedding.Fit(&fakeEmbedder{vec: []float32{1, 2, 3, 4}}, 3)
	idx := &fakeIndex{}
	ix := newTestIndexer(emb, idx, &fakeLimiter{})

	_, err := ix.Index(context.Background(), ch.Chunks("abc"), 1, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	assert.Empty(t, idx.upserts)
}
