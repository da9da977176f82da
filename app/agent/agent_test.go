package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livestock/model"
	"livestock/types"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

type call struct {
	model  string
	prompt string
	opts   model.GenerateOptions
}

type fakeGenerator struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []call
}

func (f *fakeGenerator) Generate(_ context.Context, modelID, prompt string, opts model.GenerateOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{modelID, prompt, opts})
	if err := f.errs[modelID]; err != nil {
		return "", err
	}
	return f.replies[modelID], nil
}

var testModels = Models{
	QA:                "qa-primary",
	QAFallback:        "qa-fallback",
	Diagnosis:         "dx-primary",
	DiagnosisFallback: "dx-fallback",
}

func newTestEngine(emb *fakeEmbedder, gen *fakeGenerator) *Engine {
	e := New(emb, gen, testModels)
	e.countTokens = nil
	e.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return e
}

func chunk(content string, emb ...float32) types.Chunk {
	return types.Chunk{ID: uuid.New(), DocID: uuid.New(), Content: content, Embedding: emb}
}

func corpus() []types.Chunk {
	return []types.Chunk{
		chunk("Mastitis causes swollen udders.", 1, 0),
		chunk("Foot rot makes animals lame.", 0, 1),
		chunk("Bloat follows rich clover grazing.", 0.7, 0.7),
		chunk("no embedding here"),
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity(nil, []float32{1}))
	assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestFindSimilar(t *testing.T) {
	chunks := corpus()

	got := FindSimilar([]float32{1, 0}, chunks, 10)
	require.Len(t, got, 3, "chunks without embedding are skipped")
	assert.Equal(t, chunks[0].ID, got[0].Chunk.ID)
	assert.Equal(t, chunks[2].ID, got[1].Chunk.ID)
	assert.Equal(t, chunks[1].ID, got[2].Chunk.ID)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity)
	}

	assert.Len(t, FindSimilar([]float32{1, 0}, chunks, 1), 1)
	assert.Empty(t, FindSimilar([]float32{1, 0}, chunks, 0))
	assert.Empty(t, FindSimilar([]float32{1, 0}, nil, 3))
}

func TestFindSimilar_TiesKeepInputOrder(t *testing.T) {
	a, b := chunk("a", 1, 1), chunk("b", 2, 2)
	got := FindSimilar([]float32{1, 1}, []types.Chunk{a, b}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].Chunk.ID)
	assert.Equal(t, b.ID, got[1].Chunk.ID)
}

func TestAnswer_NoDocuments(t *testing.T) {
	emb, gen := &fakeEmbedder{}, &fakeGenerator{}
	res, err := newTestEngine(emb, gen).Answer(context.Background(), "what is bloat?", nil, 3)
	require.NoError(t, err)
	assert.Equal(t, NoDocumentsAnswer, res.Answer)
	assert.Empty(t, res.Sources)
	assert.Zero(t, emb.calls)
	assert.Empty(t, gen.calls)
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	_, err := newTestEngine(&fakeEmbedder{}, &fakeGenerator{}).Answer(context.Background(), "  ", corpus(), 3)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestAnswer_NoEmbeddedChunks(t *testing.T) {
	emb, gen := &fakeEmbedder{vec: []float32{1, 0}}, &fakeGenerator{}
	res, err := newTestEngine(emb, gen).Answer(context.Background(), "q", []types.Chunk{chunk("plain")}, 3)
	require.NoError(t, err)
	assert.Equal(t, InsufficientInfoAnswer, res.Answer)
	assert.Empty(t, gen.calls)
}

func TestAnswer_PrimaryModel(t *testing.T) {
	long := strings.Repeat("x", 250)
	chunks := append(corpus(), chunk(long, 1, 0.01))
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{replies: map[string]string{"qa-primary": "  Call the vet.  "}}

	res, err := newTestEngine(emb, gen).Answer(context.Background(), "How to treat mastitis?", chunks, 3)
	require.NoError(t, err)
	assert.Equal(t, "Call the vet.", res.Answer)
	require.Len(t, res.Sources, 3)
	assert.Equal(t, chunks[0].ID.String(), res.Sources[0].ChunkID)
	assert.Equal(t, "Mastitis causes swollen udders....", res.Sources[0].Text)
	assert.Equal(t, strings.Repeat("x", 200)+"...", res.Sources[1].Text)
	assert.Equal(t, 2026, res.Timestamp.Year())

	require.Len(t, gen.calls, 1)
	c := gen.calls[0]
	assert.Equal(t, "qa-primary", c.model)
	assert.Equal(t, model.GenerateOptions{MaxTokens: 500, Temperature: 0.7, TopP: 0.95}, c.opts)
	assert.Contains(t, c.prompt, "[Context 1]\nMastitis causes swollen udders.")
	assert.Contains(t, c.prompt, "User Question: How to treat mastitis?")
	assert.True(t, strings.HasSuffix(c.prompt, "Answer:"))
}

func TestAnswer_FallbackModel(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{
		replies: map[string]string{"qa-fallback": "Isolate the cow."},
		errs:    map[string]error{"qa-primary": types.ErrGenerationFailed},
	}

	res, err := newTestEngine(emb, gen).Answer(context.Background(), "q", corpus(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Isolate the cow.", res.Answer)
	require.Len(t, gen.calls, 2)
	assert.Equal(t, "qa-fallback", gen.calls[1].model)
	assert.True(t, strings.HasPrefix(gen.calls[1].prompt, "Answer this question based on the context."))
}

func TestAnswer_AllModelsFail(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{errs: map[string]error{
		"qa-primary":  errors.New("boom"),
		"qa-fallback": errors.New("boom"),
	}}

	_, err := newTestEngine(emb, gen).Answer(context.Background(), "q", corpus(), 3)
	assert.ErrorIs(t, err, types.ErrGenerationFailed)
}

func TestAnswer_MissingCredentialStopsChain(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{errs: map[string]error{"qa-primary": types.ErrServiceUnavailable}}

	_, err := newTestEngine(emb, gen).Answer(context.Background(), "q", corpus(), 3)
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
	assert.Len(t, gen.calls, 1)
}

func TestAnswer_EmbeddingFailure(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("quota")}
	_, err := newTestEngine(emb, &fakeGenerator{}).Answer(context.Background(), "q", corpus(), 3)
	assert.ErrorIs(t, err, types.ErrEmbeddingFailed)
}

func TestDiagnose_NothingToWorkWith(t *testing.T) {
	emb, gen := &fakeEmbedder{vec: []float32{1, 0}}, &fakeGenerator{}
	e := newTestEngine(emb, gen)

	for _, tc := range []struct {
		name     string
		symptoms []string
		chunks   []types.Chunk
	}{
		{"no symptoms", nil, corpus()},
		{"blank symptoms", []string{" ", ""}, corpus()},
		{"empty corpus", []string{"fever"}, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, err := e.Diagnose(context.Background(), tc.symptoms, tc.chunks)
			require.NoError(t, err)
			assert.Equal(t, UnknownDiagnosis(), d)
		})
	}
	assert.Zero(t, emb.calls)
	assert.Empty(t, gen.calls)
}

func TestDiagnose_Primary(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{replies: map[string]string{"dx-primary": "DISEASE: Mastitis\nCONFIDENCE: high\nEXPLANATION: Swollen udder\nand clots.\nTREATMENT: Antibiotics under vet care"}}

	d, err := newTestEngine(emb, gen).Diagnose(context.Background(), []string{"swollen udder", " clots in milk "}, corpus())
	require.NoError(t, err)
	assert.Equal(t, "Mastitis", d.Disease)
	assert.Equal(t, types.ConfidenceHigh, d.Confidence)
	assert.Equal(t, "Swollen udder\nand clots.", d.Explanation)
	assert.Equal(t, "Antibiotics under vet care", d.Treatment)

	require.Len(t, gen.calls, 1)
	c := gen.calls[0]
	assert.Equal(t, model.GenerateOptions{MaxTokens: 300, Temperature: 0.3, TopP: 0.9}, c.opts)
	assert.Contains(t, c.prompt, "[Medical Reference 1]")
	assert.Contains(t, c.prompt, "- swollen udder\n- clots in milk")
}

func TestDiagnose_FallbackWrapped(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{
		replies: map[string]string{"dx-fallback": " Foot rot "},
		errs:    map[string]error{"dx-primary": errors.New("overloaded")},
	}

	d, err := newTestEngine(emb, gen).Diagnose(context.Background(), []string{"lameness"}, corpus())
	require.NoError(t, err)
	assert.Equal(t, "Foot rot", d.Disease)
	assert.Equal(t, types.ConfidenceLow, d.Confidence)
	assert.Equal(t, "Consult veterinarian", d.Treatment)
	require.Len(t, gen.calls, 2)
	assert.True(t, strings.HasSuffix(gen.calls[1].prompt, "DISEASE:"))
}

func TestDiagnose_SynthesizedWhenAllFail(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{errs: map[string]error{
		"dx-primary":  errors.New("down"),
		"dx-fallback": errors.New("down"),
	}}

	d, err := newTestEngine(emb, gen).Diagnose(context.Background(), []string{"fever", "cough"}, corpus())
	require.NoError(t, err)
	assert.Equal(t, "Possible infection or parasitic condition", d.Disease)
	assert.Equal(t, types.ConfidenceLow, d.Confidence)
	assert.Contains(t, d.Explanation, "fever, cough")
	assert.Equal(t, "Veterinary consultation required", d.Treatment)
}

func TestParseDiagnosis(t *testing.T) {
	t.Run("free text gets defaults", func(t *testing.T) {
		d := ParseDiagnosis("I am not sure what this is.")
		assert.Equal(t, "Unable to diagnose", d.Disease)
		assert.Equal(t, types.ConfidenceLow, d.Confidence)
		assert.Equal(t, "I am not sure what this is.", d.Explanation)
		assert.Equal(t, "Consult veterinarian", d.Treatment)
		assert.Equal(t, "I am not sure what this is.", d.RawResponse)
	})

	t.Run("upper case labels on one line", func(t *testing.T) {
		d := ParseDiagnosis("DISEASE: Bloat CONFIDENCE: Medium EXPLANATION: clover TREATMENT: stomach tube")
		assert.Equal(t, "Bloat", d.Disease)
		assert.Equal(t, types.ConfidenceMedium, d.Confidence)
		assert.Equal(t, "clover", d.Explanation)
		assert.Equal(t, "stomach tube", d.Treatment)
	})

	t.Run("mixed case labels at line start", func(t *testing.T) {
		d := ParseDiagnosis("Disease: Bloat\n**confidence**: high\n- Explanation: clover\ntreatment : stomach tube")
		assert.Equal(t, "Bloat", d.Disease)
		assert.Equal(t, types.ConfidenceHigh, d.Confidence)
		assert.Equal(t, "clover", d.Explanation)
		assert.Equal(t, "stomach tube", d.Treatment)
	})

	t.Run("label word inside prose", func(t *testing.T) {
		d := ParseDiagnosis("DISEASE: Mastitis\nEXPLANATION: Udder swelling; the disease: mastitis, is common.\nTREATMENT: Antibiotics")
		assert.Equal(t, "Mastitis", d.Disease)
		assert.Equal(t, "Udder swelling; the disease: mastitis, is common.", d.Explanation)
		assert.Equal(t, "Antibiotics", d.Treatment)
	})

	t.Run("unexpected confidence", func(t *testing.T) {
		d := ParseDiagnosis("DISEASE: X\nCONFIDENCE: certain")
		assert.Equal(t, types.ConfidenceUnknown, d.Confidence)
	})
}
