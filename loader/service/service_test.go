package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livestock/loader/internal"
	"livestock/store"
	"livestock/types"
)

type fakeExtractor struct {
	text  string
	calls int
}

func (f *fakeExtractor) Extract(path string) (*internal.Extracted, error) {
	f.calls++
	return &internal.Extracted{Text: f.text, Size: int64(len(f.text)), Pages: 1}, nil
}

// fakeBatch fails every position listed in fail.
// With cancel set it cancels the context after the first chunk and stops, like a shutdown mid-batch.
type fakeBatch struct {
	fail   map[int]bool
	delays []time.Duration
	cancel context.CancelFunc
}

func (f *fakeBatch) EmbedBatch(_ context.Context, texts []string, delay time.Duration) [][]float32 {
	f.delays = append(f.delays, delay)
	out := make([][]float32, len(texts))
	for i := range texts {
		if !f.fail[i] {
			out[i] = []float32{float32(i + 1), 1}
		}
		if f.cancel != nil {
			f.cancel()
			break
		}
	}
	return out
}

func longText() string {
	return strings.Repeat("Cattle with fever should be isolated from the herd. ", 20)
}

func newTestService(t *testing.T, text string, emb *fakeBatch) (*Service, *store.MemoryStore, *fakeExtractor) {
	t.Helper()
	st := store.NewMemoryStore()
	svc, err := New(st, emb, 300, 50, time.Second)
	require.NoError(t, err)
	ext := &fakeExtractor{text: text}
	svc.extractor = ext
	return svc, st, ext
}

func TestIngestText_DropsFailedChunks(t *testing.T) {
	emb := &fakeBatch{fail: map[int]bool{1: true}}
	svc, st, _ := newTestService(t, longText(), emb)
	owner := types.UserOwner(uuid.New())

	res, err := svc.IngestText(context.Background(), IngestRequest{
		Filename: "f.pdf", OriginalName: "guide.pdf", Owner: owner,
	}, longText(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunksFailed)
	assert.Equal(t, []time.Duration{time.Second}, emb.delays)

	chunks, err := st.GetChunksByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, chunks, res.Document.TotalChunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.True(t, c.HasEmbedding())
		assert.Equal(t, internal.EstimateTokens(c.Content), c.TokenCount)
	}
}

func TestIngestText_AllEmbeddingsFail(t *testing.T) {
	fail := map[int]bool{}
	for i := 0; i < 100; i++ {
		fail[i] = true
	}
	svc, st, _ := newTestService(t, "", &fakeBatch{fail: fail})
	owner := types.UserOwner(uuid.New())

	_, err := svc.IngestText(context.Background(), IngestRequest{Owner: owner}, longText(), 1)
	assert.ErrorIs(t, err, types.ErrEmbeddingFailed)

	docs, err := st.GetDocumentsByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestText_EmptyText(t *testing.T) {
	svc, _, _ := newTestService(t, "", &fakeBatch{})
	_, err := svc.IngestText(context.Background(), IngestRequest{Owner: types.SystemOwner()}, "  \n ", 0)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestDeleteDocument(t *testing.T) {
	svc, st, _ := newTestService(t, longText(), &fakeBatch{})
	ctx := context.Background()
	userID := uuid.New()
	owner := types.UserOwner(userID)

	res, err := svc.IngestFile(ctx, IngestRequest{Path: "x.pdf", Filename: "x.pdf", Owner: owner})
	require.NoError(t, err)

	_, _, err = svc.DeleteDocument(ctx, res.Document.ID, types.UserOwner(uuid.New()))
	assert.ErrorIs(t, err, types.ErrForbidden)

	doc, removed, err := svc.DeleteDocument(ctx, res.Document.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "x.pdf", doc.Filename)
	assert.EqualValues(t, res.Document.TotalChunks, removed)

	chunks, err := st.GetChunksByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	_, _, err = svc.DeleteDocument(ctx, res.Document.ID, owner)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBootstrapper_Idempotent(t *testing.T) {
	emb := &fakeBatch{}
	svc, st, ext := newTestService(t, longText(), emb)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), KnowledgeBaseFilename)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	b := NewBootstrapper(svc, path, 0)

	loaded, err := b.IsLoaded(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)

	for i := 0; i < 2; i++ {
		ok, err := b.Initialize(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	assert.Equal(t, 1, ext.calls)
	assert.Equal(t, []time.Duration{DefaultKBEmbedDelay}, emb.delays)

	docs, err := st.GetDocumentsByOwner(ctx, types.SystemOwner())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].IsSystemDocument)
	assert.Equal(t, KnowledgeBaseFilename, docs[0].Filename)

	chunks, err := st.GetAllChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, chunks, docs[0].TotalChunks)
}

func TestBootstrapper_MissingFile(t *testing.T) {
	svc, _, ext := newTestService(t, longText(), &fakeBatch{})
	b := NewBootstrapper(svc, filepath.Join(t.TempDir(), "nope.pdf"), time.Millisecond)

	ok, err := b.Initialize(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrKnowledgeBaseMissing)
	assert.Zero(t, ext.calls)
}

func TestBootstrapper_IgnoresUserDocumentWithSameName(t *testing.T) {
	svc, _, _ := newTestService(t, longText(), &fakeBatch{})
	ctx := context.Background()
	_, err := svc.IngestText(ctx, IngestRequest{
		Filename: KnowledgeBaseFilename,
		Owner:    types.UserOwner(uuid.New()),
	}, longText(), 1)
	require.NoError(t, err)

	loaded, err := NewBootstrapper(svc, "unused", 0).IsLoaded(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestIngestText_CancelledMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, st, _ := newTestService(t, "", &fakeBatch{cancel: cancel})
	owner := types.UserOwner(uuid.New())

	_, err := svc.IngestText(ctx, IngestRequest{Owner: owner}, longText(), 1)
	assert.ErrorIs(t, err, context.Canceled)

	docs, err := st.GetDocumentsByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestBootstrapper_CancelledSeedIsRetried(t *testing.T) {
	emb := &fakeBatch{}
	svc, st, ext := newTestService(t, longText(), emb)

	path := filepath.Join(t.TempDir(), KnowledgeBaseFilename)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	b := NewBootstrapper(svc, path, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	emb.cancel = cancel
	ok, err := b.Initialize(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)

	loaded, err := b.IsLoaded(context.Background())
	require.NoError(t, err)
	assert.False(t, loaded)

	emb.cancel = nil
	ok, err = b.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, ext.calls)

	docs, err := st.GetDocumentsByOwner(context.Background(), types.SystemOwner())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Greater(t, docs[0].TotalChunks, 1)
}

// contendedStore lets another loader insert the system document right before ours.
type contendedStore struct {
	*store.MemoryStore
	raced bool
}

func (c *contendedStore) CreateDocument(ctx context.Context, doc *types.Document) (uuid.UUID, error) {
	if doc.IsSystemDocument && !c.raced {
		c.raced = true
		other := *doc
		other.ID = uuid.Nil
		if _, err := c.MemoryStore.CreateDocument(ctx, &other); err != nil {
			return uuid.Nil, err
		}
	}
	return c.MemoryStore.CreateDocument(ctx, doc)
}

func TestBootstrapper_LosesSeedRaceToAnotherProcess(t *testing.T) {
	st := &contendedStore{MemoryStore: store.NewMemoryStore()}
	svc, err := New(st, &fakeBatch{}, 300, 50, time.Second)
	require.NoError(t, err)
	svc.extractor = &fakeExtractor{text: longText()}

	path := filepath.Join(t.TempDir(), KnowledgeBaseFilename)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	ok, err := NewBootstrapper(svc, path, time.Millisecond).Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	docs, err := st.GetDocumentsByOwner(context.Background(), types.SystemOwner())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
