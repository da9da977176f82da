package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleText() string {
	var b strings.Builder
	sentences := []string{
		"Foot and mouth disease spreads quickly between cloven-hoofed animals.",
		"Isolate affected cattle   and call a veterinarian.\n\n\n\nDo not move stock.",
		"Mastitis shows as swelling, heat and clots in milk.",
		"Withdrawal periods apply to milk and meat after antibiotics.",
	}
	for i := 0; i < 40; i++ {
		b.WriteString(sentences[i%len(sentences)])
		b.WriteString("\t ")
	}
	return b.String()
}

func reconstruct(normalized string, segs []Segment) string {
	runes := []rune(normalized)
	var b strings.Builder
	covered := 0
	for _, s := range segs {
		if s.End <= covered {
			continue
		}
		from := max(covered, s.Start)
		b.WriteString(string(runes[from:s.End]))
		covered = s.End
	}
	return b.String()
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  a \n\n\n\n b\t\tc  "))
	assert.Equal(t, "", Normalize(" \n\t "))
}

func TestSplit_ReconstructsNormalizedSource(t *testing.T) {
	for _, tc := range []struct {
		size, overlap int
	}{
		{1500, 200},
		{300, 50},
		{120, 0},
		{64, 63},
	} {
		s, err := NewSegmenter(tc.size, tc.overlap)
		require.NoError(t, err)

		text := sampleText()
		segs := s.Split(text)
		require.NotEmpty(t, segs)

		norm := Normalize(text)
		assert.Equal(t, norm, reconstruct(norm, segs), "size=%d overlap=%d", tc.size, tc.overlap)
		assert.Equal(t, len([]rune(norm)), segs[len(segs)-1].End)

		for i, seg := range segs {
			assert.Equal(t, i, seg.Index)
			assert.LessOrEqual(t, len([]rune(seg.Text)), tc.size)
			assert.Equal(t, strings.TrimSpace(string([]rune(norm)[seg.Start:seg.End])), seg.Text)
			if i > 0 {
				assert.Greater(t, seg.Start, segs[i-1].Start, "cursor must advance")
				assert.LessOrEqual(t, seg.Start, segs[i-1].End, "no gaps between segments")
			}
		}
	}
}

func TestSplit_BreaksAtSentenceAfterSeventyPercent(t *testing.T) {
	// ". " sits at rune 80 of a 100 rune window
	text := strings.Repeat("a", 80) + ". " + strings.Repeat("b", 60)
	s, err := NewSegmenter(100, 10)
	require.NoError(t, err)

	segs := s.Split(text)
	require.Len(t, segs, 2)
	assert.Equal(t, strings.Repeat("a", 80)+".", segs[0].Text)
	assert.Equal(t, 81, segs[0].End)
	assert.Equal(t, 71, segs[1].Start)
}

func TestSplit_HardCutWhenBreakTooEarly(t *testing.T) {
	text := strings.Repeat("a", 20) + ". " + strings.Repeat("b", 200)
	s, err := NewSegmenter(100, 0)
	require.NoError(t, err)

	segs := s.Split(text)
	require.Len(t, segs, 3)
	assert.Equal(t, 100, segs[0].End)
	assert.Len(t, []rune(segs[0].Text), 100)
}

func TestSplit_Empty(t *testing.T) {
	s, err := NewSegmenter(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	assert.Empty(t, s.Split("   \n "))
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s, err := NewSegmenter(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	segs := s.Split("Cattle need clean water.")
	require.Len(t, segs, 1)
	assert.Equal(t, "Cattle need clean water.", segs[0].Text)
}

func TestNewSegmenter_RejectsBadConfig(t *testing.T) {
	_, err := NewSegmenter(0, 0)
	assert.Error(t, err)
	_, err = NewSegmenter(100, 100)
	assert.Error(t, err)
	_, err = NewSegmenter(100, -1)
	assert.Error(t, err)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 2, EstimateTokens("привет"))
}

func TestGenerateTitle(t *testing.T) {
	assert.Equal(t, "livestock health guide", GenerateTitle("/tmp/livestock_health-guide.PDF"))
}
