package internal

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200

	// a sentence break is honoured only past this share of the window
	minBreakRatio = 0.7
)

var (
	whitespaceRe = regexp.MustCompile(`[\s\p{Z}]+`)
	newlinesRe   = regexp.MustCompile(`\n{3,}`)
)

// Segment is one chunk of normalized text. Start and End are rune offsets
// of the untrimmed window inside the normalized text.
type Segment struct {
	Text  string
	Index int
	Start int
	End   int
}

type Segmenter struct {
	chunkSize int
	overlap   int
}

func NewSegmenter(chunkSize, overlap int) (*Segmenter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	return &Segmenter{chunkSize: chunkSize, overlap: overlap}, nil
}

// Normalize collapses whitespace runs to one space and 3+ newlines to two.
func Normalize(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = newlinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Split normalizes text and cuts it into overlapping, sentence-aware segments.
func (s *Segmenter) Split(text string) []Segment {
	runes := []rune(Normalize(text))
	n := len(runes)

	var segments []Segment
	start := 0
	for start < n {
		end := min(start+s.chunkSize, n)
		window := runes[start:end]
		next := end

		if end < n {
			breakPoint := max(lastIndex(window, ". "), lastIndex(window, "\n"))
			if float64(breakPoint) > float64(s.chunkSize)*minBreakRatio {
				window = window[:breakPoint+1]
				next = start + breakPoint + 1
			}
		}

		segments = append(segments, Segment{
			Text:  strings.TrimSpace(string(window)),
			Index: len(segments),
			Start: start,
			End:   next,
		})

		if next < n {
			// step back for context continuity but always move forward
			next = max(next-s.overlap, start+1, 0)
		}
		start = next
	}
	return segments
}

// EstimateTokens approximates a token count as ceil(chars/4).
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// lastIndex returns the rune index of the last sep in window, or -1.
func lastIndex(window []rune, sep string) int {
	s := string(window)
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}
