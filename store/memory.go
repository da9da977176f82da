package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"livestock/types"

	"github.com/google/uuid"
)

var _ DBStorer = (*MemoryStore)(nil)

// MemoryStore keeps every repository in process maps behind one mutex.
// It backs tests and the server when no database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	documents   map[uuid.UUID]types.Document
	chunks      map[uuid.UUID]types.Chunk
	animals     map[uuid.UUID]types.Animal
	medicalLogs map[uuid.UUID]types.MedicalLog
	products    map[uuid.UUID]types.Product
	seq         int64
	chunkSeq    map[uuid.UUID]int64
	docSeq      map[uuid.UUID]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:   make(map[uuid.UUID]types.Document),
		chunks:      make(map[uuid.UUID]types.Chunk),
		animals:     make(map[uuid.UUID]types.Animal),
		medicalLogs: make(map[uuid.UUID]types.MedicalLog),
		products:    make(map[uuid.UUID]types.Product),
		chunkSeq:    make(map[uuid.UUID]int64),
		docSeq:      make(map[uuid.UUID]int64),
	}
}

func (m *MemoryStore) next() int64 {
	m.seq++
	return m.seq
}

func (m *MemoryStore) CreateDocument(_ context.Context, doc *types.Document) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.IsSystemDocument {
		for _, other := range m.documents {
			if other.IsSystemDocument && other.Owner == doc.Owner && other.Filename == doc.Filename {
				return uuid.Nil, fmt.Errorf("%w: system document %q already exists", types.ErrValidation, doc.Filename)
			}
		}
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	m.documents[doc.ID] = *doc
	m.docSeq[doc.ID] = m.next()
	return doc.ID, nil
}

func (m *MemoryStore) GetDocumentByID(_ context.Context, id uuid.UUID) (*types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	return &doc, nil
}

func (m *MemoryStore) GetDocumentsByOwner(_ context.Context, owner types.Owner) ([]types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []types.Document
	for _, d := range m.documents {
		if d.Owner == owner {
			docs = append(docs, d)
		}
	}
	// newest first
	sort.SliceStable(docs, func(i, j int) bool {
		return m.docSeq[docs[i].ID] > m.docSeq[docs[j].ID]
	})
	return docs, nil
}

func (m *MemoryStore) DeleteDocument(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	delete(m.documents, id)
	delete(m.docSeq, id)
	for cid, c := range m.chunks {
		if c.DocID == id {
			delete(m.chunks, cid)
			delete(m.chunkSeq, cid)
		}
	}
	return nil
}

func (m *MemoryStore) CreateChunksBatch(_ context.Context, chunks []types.Chunk) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range chunks {
		if _, ok := m.documents[c.DocID]; !ok {
			return nil, fmt.Errorf("chunk references document %s: %w", c.DocID, types.ErrNotFound)
		}
	}

	now := time.Now()
	ids := make([]uuid.UUID, len(chunks))
	for i, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.CreatedAt = now
		c.Embedding = append([]float32(nil), c.Embedding...)
		m.chunks[c.ID] = c
		m.chunkSeq[c.ID] = m.next()
		ids[i] = c.ID
	}
	return ids, nil
}

func (m *MemoryStore) selectChunks(keep func(types.Chunk) bool) []types.Chunk {
	var out []types.Chunk
	for _, c := range m.chunks {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return m.chunkSeq[out[i].ID] < m.chunkSeq[out[j].ID]
	})
	return out
}

func (m *MemoryStore) GetChunksByOwner(_ context.Context, owner types.Owner) ([]types.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.selectChunks(func(c types.Chunk) bool {
		d, ok := m.documents[c.DocID]
		return ok && d.Owner == owner
	}), nil
}

func (m *MemoryStore) GetChunksByDocument(_ context.Context, docID uuid.UUID) ([]types.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.selectChunks(func(c types.Chunk) bool { return c.DocID == docID }), nil
}

func (m *MemoryStore) GetAllChunks(_ context.Context) ([]types.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.selectChunks(func(types.Chunk) bool { return true }), nil
}

func (m *MemoryStore) UpdateChunk(_ context.Context, c types.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.chunks[c.ID]
	if !ok {
		return fmt.Errorf("chunk %s: %w", c.ID, types.ErrNotFound)
	}
	old.Content = c.Content
	old.Embedding = append([]float32(nil), c.Embedding...)
	old.TokenCount = c.TokenCount
	m.chunks[c.ID] = old
	return nil
}

func (m *MemoryStore) DeleteChunksByDocument(_ context.Context, docID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, c := range m.chunks {
		if c.DocID == docID {
			delete(m.chunks, id)
			delete(m.chunkSeq, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateAnimal(_ context.Context, a *types.Animal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.animals {
		if other.TagID == a.TagID {
			return fmt.Errorf("%w: animal with tag %q already exists", types.ErrValidation, a.TagID)
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	m.animals[a.ID] = *a
	return nil
}

func (m *MemoryStore) GetAnimal(_ context.Context, id uuid.UUID) (*types.Animal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.animals[id]
	if !ok {
		return nil, fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	return &a, nil
}

func (m *MemoryStore) SetAnimalStatus(_ context.Context, id uuid.UUID, status types.BioSafetyStatus, endsAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.animals[id]
	if !ok {
		return fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	a.Status, a.WithdrawalEndsAt, a.UpdatedAt = status, copyTime(endsAt), time.Now()
	m.animals[id] = a
	return nil
}

func (m *MemoryStore) CompareAndSetStatus(_ context.Context, id uuid.UUID,
	expected types.BioSafetyStatus, expectedEndsAt *time.Time,
	status types.BioSafetyStatus, endsAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.animals[id]
	if !ok {
		return false, fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	if a.Status != expected || !sameTime(a.WithdrawalEndsAt, expectedEndsAt) {
		return false, nil
	}
	a.Status, a.WithdrawalEndsAt, a.UpdatedAt = status, copyTime(endsAt), time.Now()
	m.animals[id] = a
	return true, nil
}

func (m *MemoryStore) AdjustHealthScore(_ context.Context, id uuid.UUID, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.animals[id]
	if !ok {
		return 0, fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	a.HealthScore = max(types.MinHealthScore, min(types.MaxHealthScore, a.HealthScore+delta))
	a.UpdatedAt = time.Now()
	m.animals[id] = a
	return a.HealthScore, nil
}

func (m *MemoryStore) SetQuarantineReason(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.animals[id]
	if !ok {
		return fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	a.QuarantineReason, a.UpdatedAt = reason, time.Now()
	m.animals[id] = a
	return nil
}

func (m *MemoryStore) UnlockExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, a := range m.animals {
		if a.WithdrawalExpired(now) {
			a.Status, a.WithdrawalEndsAt, a.UpdatedAt = types.StatusHealthy, nil, now
			m.animals[id] = a
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteAnimal(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.animals[id]; !ok {
		return fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	for pid, p := range m.products {
		if p.AnimalID == id {
			delete(m.products, pid)
		}
	}
	for lid, l := range m.medicalLogs {
		if l.AnimalID == id {
			delete(m.medicalLogs, lid)
		}
	}
	delete(m.animals, id)
	return nil
}

func (m *MemoryStore) CreateMedicalLog(_ context.Context, l *types.MedicalLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.animals[l.AnimalID]; !ok {
		return fmt.Errorf("animal %s: %w", l.AnimalID, types.ErrNotFound)
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = time.Now()
	m.medicalLogs[l.ID] = *l
	return nil
}

func (m *MemoryStore) GetMedicalLogsByAnimal(_ context.Context, animalID uuid.UUID) ([]types.MedicalLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var logs []types.MedicalLog
	for _, l := range m.medicalLogs {
		if l.AnimalID == animalID {
			logs = append(logs, l)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].AdministeredAt.After(logs[j].AdministeredAt)
	})
	return logs, nil
}

func (m *MemoryStore) CreateProduct(_ context.Context, p *types.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.animals[p.AnimalID]; !ok {
		return fmt.Errorf("animal %s: %w", p.AnimalID, types.ErrNotFound)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetVerifiedProducts(_ context.Context) ([]types.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.Product
	for _, p := range m.products {
		if p.IsVerifiedSafe {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (m *MemoryStore) Init(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
