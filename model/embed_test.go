package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.fail[text] {
		return nil, errors.New("boom")
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestEmbedBatch_KeepsPositionsOnFailure(t *testing.T) {
	client := &fakeEmbedder{fail: map[string]bool{"bb": true, "dddd": true}}
	e := NewEmbedder(client)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff"}
	out := e.EmbedBatch(context.Background(), texts, 0)

	require.Len(t, out, len(texts))
	assert.Equal(t, []float32{1, 1}, out[0])
	assert.Nil(t, out[1])
	assert.Equal(t, []float32{3, 1}, out[2])
	assert.Nil(t, out[3])
	assert.Equal(t, []float32{5, 1}, out[4])
	assert.Equal(t, []float32{6, 1}, out[5])
	assert.Equal(t, texts, client.calls, "items must be embedded sequentially in input order")
}

func TestEmbedBatch_DelayBetweenCallsOnly(t *testing.T) {
	e := NewEmbedder(&fakeEmbedder{})
	var waits []time.Duration
	e.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	e.EmbedBatch(context.Background(), []string{"a", "b", "c"}, 1200*time.Millisecond)

	assert.Equal(t, []time.Duration{1200 * time.Millisecond, 1200 * time.Millisecond}, waits)
}

func TestEmbedBatch_CancelledLeavesRemainderNil(t *testing.T) {
	client := &fakeEmbedder{}
	e := NewEmbedder(client)
	e.wait = func(context.Context, time.Duration) error { return context.Canceled }

	out := e.EmbedBatch(context.Background(), []string{"a", "b", "c"}, time.Second)

	require.Len(t, out, 3)
	assert.NotNil(t, out[0])
	assert.Nil(t, out[1])
	assert.Nil(t, out[2])
	assert.Len(t, client.calls, 1)
}

func TestEmbedBatch_Empty(t *testing.T) {
	out := NewEmbedder(&fakeEmbedder{}).EmbedBatch(context.Background(), nil, time.Second)
	assert.Empty(t, out)
}
