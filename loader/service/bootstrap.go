package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"livestock/types"
)

const (
	KnowledgeBaseFilename    = "livestock.pdf"
	knowledgeBaseTitle       = "Livestock Health Knowledge Base"
	knowledgeBaseDescription = "System knowledge base for livestock disease diagnosis"
	DefaultKBEmbedDelay      = 1200 * time.Millisecond
)

var ErrKnowledgeBaseMissing = errors.New("knowledge base file not found")

// Bootstrapper seeds the system-owned reference document once.
type Bootstrapper struct {
	logger *slog.Logger
	ingest *Service
	path   string
	delay  time.Duration
	mu     sync.Mutex
}

func NewBootstrapper(ingest *Service, path string, delay time.Duration) *Bootstrapper {
	if delay <= 0 {
		delay = DefaultKBEmbedDelay
	}
	return &Bootstrapper{
		logger: slog.Default(),
		ingest: ingest,
		path:   path,
		delay:  delay,
	}
}

// IsLoaded reports whether the system reference document is already stored.
func (b *Bootstrapper) IsLoaded(ctx context.Context) (bool, error) {
	docs, err := b.ingest.store.GetDocumentsByOwner(ctx, types.SystemOwner())
	if err != nil {
		return false, err
	}
	for _, d := range docs {
		if d.IsSystemDocument && d.Filename == KnowledgeBaseFilename {
			return true, nil
		}
	}
	return false, nil
}

// Initialize ingests the reference file unless it is already present.
// It returns false with ErrKnowledgeBaseMissing when the file is absent.
func (b *Bootstrapper) Initialize(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	loaded, err := b.IsLoaded(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check knowledge base: %w", err)
	}
	if loaded {
		b.logger.Info("knowledge base already loaded")
		return true, nil
	}

	if _, err := os.Stat(b.path); err != nil {
		b.logger.Warn("knowledge base file missing", "path", b.path, "err", err)
		return false, fmt.Errorf("%w: %s", ErrKnowledgeBaseMissing, filepath.Base(b.path))
	}

	start := time.Now()
	res, err := b.ingest.IngestFile(ctx, IngestRequest{
		Path:         b.path,
		Filename:     KnowledgeBaseFilename,
		OriginalName: knowledgeBaseTitle,
		Description:  knowledgeBaseDescription,
		Owner:        types.SystemOwner(),
		System:       true,
		Delay:        b.delay,
	})
	if err != nil {
		// другой процесс мог засеять базу, пока мы считали эмбеддинги
		if loaded, lerr := b.IsLoaded(ctx); lerr == nil && loaded {
			b.logger.Info("knowledge base loaded concurrently by another process")
			return true, nil
		}
		return false, fmt.Errorf("failed to load knowledge base: %w", err)
	}

	b.logger.Info("knowledge base loaded",
		"doc_id", res.Document.ID,
		"chunks", res.Document.TotalChunks,
		"failed", res.ChunksFailed,
		"took", time.Since(start))
	return true, nil
}
