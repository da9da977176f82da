package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"livestock/loader/internal"
	"livestock/store"
	"livestock/types"

	"github.com/google/uuid"
)

// Extractor turns a stored upload into plain text.
type Extractor interface {
	Extract(path string) (*internal.Extracted, error)
}

// BatchEmbedder embeds texts sequentially; a failed position is nil.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, delay time.Duration) [][]float32
}

type Storer interface {
	store.DocumentStorer
	store.ChunkStorer
}

type Service struct {
	logger     *slog.Logger
	store      Storer
	extractor  Extractor
	segmenter  *internal.Segmenter
	embedder   BatchEmbedder
	embedDelay time.Duration
}

func New(storer Storer, embedder BatchEmbedder, chunkSize, chunkOverlap int, embedDelay time.Duration) (*Service, error) {
	segmenter, err := internal.NewSegmenter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Service{
		logger:     slog.Default(),
		store:      storer,
		extractor:  internal.NewPDFExtractor(),
		segmenter:  segmenter,
		embedder:   embedder,
		embedDelay: embedDelay,
	}, nil
}

// IngestRequest describes one file to put through the pipeline.
type IngestRequest struct {
	Path         string
	Filename     string
	OriginalName string
	Description  string
	Owner        types.Owner
	System       bool
	// Delay overrides the default pause between embedding calls
	Delay time.Duration
}

type IngestResult struct {
	Document     types.Document
	ChunksFailed int
}

// IngestFile extracts text from req.Path and runs it through IngestText.
func (s *Service) IngestFile(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	ext, err := s.extractor.Extract(req.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	s.logger.Info("extracted document text", "file", req.OriginalName, "pages", ext.Pages, "size", ext.Size)
	return s.IngestText(ctx, req, ext.Text, ext.Size)
}

// IngestText segments, embeds and persists text as one Document with its chunks.
// Chunks whose embedding failed are dropped; zero surviving chunks is an error.
func (s *Service) IngestText(ctx context.Context, req IngestRequest, text string, size int64) (*IngestResult, error) {
	if !req.Owner.IsValid() {
		return nil, fmt.Errorf("%w: document owner is not set", types.ErrValidation)
	}

	segments := s.segmenter.Split(text)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no text could be extracted from %s", types.ErrValidation, req.OriginalName)
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	delay := req.Delay
	if delay == 0 {
		delay = s.embedDelay
	}
	s.logger.Info("embedding document", "file", req.OriginalName, "chunks", len(segments), "delay", delay)
	embeddings := s.embedder.EmbedBatch(ctx, texts, delay)
	if err := ctx.Err(); err != nil {
		// прерванный батч не сохраняем, иначе база знаний останется обрезанной
		return nil, fmt.Errorf("embedding of %s interrupted: %w", req.OriginalName, err)
	}

	type kept struct {
		seg internal.Segment
		vec []float32
	}
	valid := make([]kept, 0, len(segments))
	for i, seg := range segments {
		if embeddings[i] != nil {
			valid = append(valid, kept{seg, embeddings[i]})
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no chunk of %s could be embedded", types.ErrEmbeddingFailed, req.OriginalName)
	}

	doc := types.Document{
		Owner:            req.Owner,
		Filename:         req.Filename,
		OriginalName:     req.OriginalName,
		FileSize:         size,
		TotalChunks:      len(valid),
		Description:      req.Description,
		IsSystemDocument: req.System,
	}
	docID, err := s.store.CreateDocument(ctx, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	chunks := make([]types.Chunk, len(valid))
	for i, k := range valid {
		chunks[i] = types.Chunk{
			DocID:      docID,
			Index:      i,
			Content:    k.seg.Text,
			Embedding:  k.vec,
			TokenCount: internal.EstimateTokens(k.seg.Text),
		}
	}
	if _, err := s.store.CreateChunksBatch(ctx, chunks); err != nil {
		if derr := s.store.DeleteDocument(ctx, docID); derr != nil {
			s.logger.Error("failed to roll back document", "doc_id", docID, "err", derr)
		}
		return nil, fmt.Errorf("failed to save chunks: %w", err)
	}

	s.logger.Info("document ingested",
		"doc_id", docID,
		"file", req.OriginalName,
		"chunks", len(valid),
		"failed", len(segments)-len(valid))

	return &IngestResult{Document: doc, ChunksFailed: len(segments) - len(valid)}, nil
}

func (s *Service) ListDocuments(ctx context.Context, owner types.Owner) ([]types.Document, error) {
	docs, err := s.store.GetDocumentsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []types.Document{}
	}
	return docs, nil
}

// DeleteDocument removes an owned document and its chunks.
// It returns the removed document so the caller can drop the stored file.
func (s *Service) DeleteDocument(ctx context.Context, docID uuid.UUID, actor types.Owner) (*types.Document, int64, error) {
	doc, err := s.store.GetDocumentByID(ctx, docID)
	if err != nil {
		return nil, 0, err
	}
	if doc.Owner != actor {
		return nil, 0, fmt.Errorf("%w: document %s belongs to another user", types.ErrForbidden, docID)
	}

	removed, err := s.store.DeleteChunksByDocument(ctx, docID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := s.store.DeleteDocument(ctx, docID); err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, removed, fmt.Errorf("failed to delete document: %w", err)
	}

	s.logger.Info("document deleted", "doc_id", docID, "chunks", removed)
	return doc, removed, nil
}

// CandidateChunks returns the chunks a question from owner may be answered from.
func (s *Service) CandidateChunks(ctx context.Context, owner types.Owner) ([]types.Chunk, error) {
	return s.store.GetChunksByOwner(ctx, owner)
}

// AllChunks returns every stored chunk, system knowledge base included.
func (s *Service) AllChunks(ctx context.Context) ([]types.Chunk, error) {
	return s.store.GetAllChunks(ctx)
}
