package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"livestock/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type DocumentStorer interface {
	CreateDocument(context.Context, *types.Document) (uuid.UUID, error)
	GetDocumentByID(context.Context, uuid.UUID) (*types.Document, error)
	GetDocumentsByOwner(context.Context, types.Owner) ([]types.Document, error)
	DeleteDocument(context.Context, uuid.UUID) error
}

type ChunkStorer interface {
	CreateChunksBatch(context.Context, []types.Chunk) ([]uuid.UUID, error)
	GetChunksByOwner(context.Context, types.Owner) ([]types.Chunk, error)
	GetChunksByDocument(context.Context, uuid.UUID) ([]types.Chunk, error)
	GetAllChunks(context.Context) ([]types.Chunk, error)
	UpdateChunk(context.Context, types.Chunk) error
	DeleteChunksByDocument(context.Context, uuid.UUID) (int64, error)
}

type AnimalStorer interface {
	CreateAnimal(context.Context, *types.Animal) error
	GetAnimal(context.Context, uuid.UUID) (*types.Animal, error)
	SetAnimalStatus(ctx context.Context, id uuid.UUID, status types.BioSafetyStatus, endsAt *time.Time) error
	// CompareAndSetStatus applies the new status only if the stored status and
	// withdrawal end still equal the expected ones.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID,
		expected types.BioSafetyStatus, expectedEndsAt *time.Time,
		status types.BioSafetyStatus, endsAt *time.Time) (bool, error)
	// AdjustHealthScore adds delta to the stored score in one write, clamped to
	// [MinHealthScore, MaxHealthScore], and returns the new score.
	AdjustHealthScore(ctx context.Context, id uuid.UUID, delta int) (int, error)
	SetQuarantineReason(ctx context.Context, id uuid.UUID, reason string) error
	UnlockExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteAnimal(context.Context, uuid.UUID) error
}

type MedicalLogStorer interface {
	CreateMedicalLog(context.Context, *types.MedicalLog) error
	GetMedicalLogsByAnimal(context.Context, uuid.UUID) ([]types.MedicalLog, error)
}

type ProductStorer interface {
	CreateProduct(context.Context, *types.Product) error
	GetVerifiedProducts(context.Context) ([]types.Product, error)
}

type DBStorer interface {
	DocumentStorer
	ChunkStorer
	AnimalStorer
	MedicalLogStorer
	ProductStorer
}

var _ DBStorer = (*PostgresStore)(nil)

type PostgresStore struct {
	pool         *pgxpool.Pool
	embeddingDim int
}

func NewPostgresStore(ctx context.Context, connStr string, embeddingDim int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:         pool,
		embeddingDim: embeddingDim,
	}, nil
}

// ---- documents ----

const documentColumns = `id, owner_key, filename, original_name, file_size, total_chunks, description, is_system, uploaded_at`

func (p *PostgresStore) CreateDocument(ctx context.Context, doc *types.Document) (uuid.UUID, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	query := `INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := p.pool.Exec(ctx, query,
		doc.ID,
		doc.Owner.Key(),
		doc.Filename,
		doc.OriginalName,
		doc.FileSize,
		doc.TotalChunks,
		doc.Description,
		doc.IsSystemDocument,
		doc.UploadedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return uuid.Nil, fmt.Errorf("%w: system document %q already exists", types.ErrValidation, doc.Filename)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert document: %w", err)
	}
	return doc.ID, nil
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	rows, err := p.pool.Query(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1", docID)
	if err != nil {
		return nil, err
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document %s: %w", docID, types.ErrNotFound)
	}
	return &docs[0], nil
}

func (p *PostgresStore) GetDocumentsByOwner(ctx context.Context, owner types.Owner) ([]types.Document, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE owner_key = $1 ORDER BY uploaded_at DESC",
		owner.Key())
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (p *PostgresStore) DeleteDocument(ctx context.Context, docID uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", docID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", docID, types.ErrNotFound)
	}
	return nil
}

func scanDocuments(rows pgx.Rows) ([]types.Document, error) {
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var (
			doc      types.Document
			ownerKey string
		)
		if err := rows.Scan(
			&doc.ID,
			&ownerKey,
			&doc.Filename,
			&doc.OriginalName,
			&doc.FileSize,
			&doc.TotalChunks,
			&doc.Description,
			&doc.IsSystemDocument,
			&doc.UploadedAt); err != nil {
			return nil, err
		}
		owner, err := types.ParseOwner(ownerKey)
		if err != nil {
			return nil, err
		}
		doc.Owner = owner
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ---- chunks ----

const chunkColumns = `c.id, c.doc_id, c.position, c.content, c.embedding, c.token_count, c.created_at`

func (p *PostgresStore) CreateChunksBatch(ctx context.Context, chunks []types.Chunk) ([]uuid.UUID, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	query := `
    INSERT INTO chunks (id, doc_id, position, content, embedding, token_count, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	now := time.Now()
	ids := make([]uuid.UUID, len(chunks))
	batch := &pgx.Batch{}
	for i, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		ids[i] = c.ID
		batch.Queue(query, c.ID, c.DocID, c.Index, c.Content, toPgVector(c.Embedding), c.TokenCount, now)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("insert chunks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func (p *PostgresStore) GetChunksByOwner(ctx context.Context, owner types.Owner) ([]types.Chunk, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks c
		JOIN documents d ON c.doc_id = d.id
		WHERE d.owner_key = $1
		ORDER BY d.uploaded_at, c.position`, owner.Key())
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

func (p *PostgresStore) GetChunksByDocument(ctx context.Context, docID uuid.UUID) ([]types.Chunk, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT "+chunkColumns+" FROM chunks c WHERE c.doc_id = $1 ORDER BY c.position", docID)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

func (p *PostgresStore) GetAllChunks(ctx context.Context) ([]types.Chunk, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT "+chunkColumns+" FROM chunks c ORDER BY c.doc_id, c.position")
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

func (p *PostgresStore) UpdateChunk(ctx context.Context, c types.Chunk) error {
	tag, err := p.pool.Exec(ctx,
		"UPDATE chunks SET content = $2, embedding = $3, token_count = $4 WHERE id = $1",
		c.ID, c.Content, toPgVector(c.Embedding), c.TokenCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chunk %s: %w", c.ID, types.ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) DeleteChunksByDocument(ctx context.Context, docID uuid.UUID) (int64, error) {
	tag, err := p.pool.Exec(ctx, "DELETE FROM chunks WHERE doc_id = $1", docID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func toPgVector(v []float32) *pgvector.Vector {
	if len(v) == 0 {
		return nil
	}
	vec := pgvector.NewVector(v)
	return &vec
}

func scanChunks(rows pgx.Rows) ([]types.Chunk, error) {
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var (
			chunk     types.Chunk
			embedding *pgvector.Vector
		)
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocID,
			&chunk.Index,
			&chunk.Content,
			&embedding,
			&chunk.TokenCount,
			&chunk.CreatedAt); err != nil {
			return nil, err
		}
		if embedding != nil {
			chunk.Embedding = embedding.Slice()
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// ---- animals ----

const animalColumns = `id, tag_id, owner_id, species, breed, genetic_lineage, date_of_birth,
	health_score, status, withdrawal_ends_at, quarantine_reason, created_at, updated_at`

func (p *PostgresStore) CreateAnimal(ctx context.Context, a *types.Animal) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := p.pool.Exec(ctx, `INSERT INTO animals (`+animalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.TagID, a.OwnerID, a.Species, a.Breed, a.GeneticLineage, a.DateOfBirth,
		a.HealthScore, string(a.Status), a.WithdrawalEndsAt, a.QuarantineReason, a.CreatedAt, a.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: animal with tag %q already exists", types.ErrValidation, a.TagID)
	}
	if err != nil {
		return fmt.Errorf("insert animal: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetAnimal(ctx context.Context, id uuid.UUID) (*types.Animal, error) {
	var (
		a      types.Animal
		status string
	)
	err := p.pool.QueryRow(ctx, "SELECT "+animalColumns+" FROM animals WHERE id = $1", id).Scan(
		&a.ID, &a.TagID, &a.OwnerID, &a.Species, &a.Breed, &a.GeneticLineage, &a.DateOfBirth,
		&a.HealthScore, &status, &a.WithdrawalEndsAt, &a.QuarantineReason, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	a.Status = types.BioSafetyStatus(status)
	return &a, nil
}

func (p *PostgresStore) SetAnimalStatus(ctx context.Context, id uuid.UUID, status types.BioSafetyStatus, endsAt *time.Time) error {
	tag, err := p.pool.Exec(ctx,
		"UPDATE animals SET status = $2, withdrawal_ends_at = $3, updated_at = now() WHERE id = $1",
		id, string(status), endsAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) CompareAndSetStatus(ctx context.Context, id uuid.UUID,
	expected types.BioSafetyStatus, expectedEndsAt *time.Time,
	status types.BioSafetyStatus, endsAt *time.Time) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE animals SET status = $4, withdrawal_ends_at = $5, updated_at = now()
		WHERE id = $1 AND status = $2 AND withdrawal_ends_at IS NOT DISTINCT FROM $3`,
		id, string(expected), expectedEndsAt, string(status), endsAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresStore) AdjustHealthScore(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	var score int
	err := p.pool.QueryRow(ctx, `
		UPDATE animals
		SET health_score = GREATEST($3, LEAST($4, health_score + $2)), updated_at = now()
		WHERE id = $1
		RETURNING health_score`,
		id, delta, types.MinHealthScore, types.MaxHealthScore).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	return score, err
}

func (p *PostgresStore) SetQuarantineReason(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := p.pool.Exec(ctx,
		"UPDATE animals SET quarantine_reason = $2, updated_at = now() WHERE id = $1", id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) UnlockExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE animals SET status = $1, withdrawal_ends_at = NULL, updated_at = $3
		WHERE status = $2 AND withdrawal_ends_at <= $3`,
		string(types.StatusHealthy), string(types.StatusWithdrawalLock), now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteAnimal removes the animal; products and medical logs go with it.
func (p *PostgresStore) DeleteAnimal(ctx context.Context, id uuid.UUID) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM products WHERE animal_id = $1", id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM medical_logs WHERE animal_id = $1", id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, "DELETE FROM animals WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("animal %s: %w", id, types.ErrNotFound)
	}
	return tx.Commit(ctx)
}

// ---- medical logs ----

func (p *PostgresStore) CreateMedicalLog(ctx context.Context, l *types.MedicalLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = time.Now()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO medical_logs (id, animal_id, medicine_name, dosage, administered_at, withdrawal_days, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.AnimalID, l.MedicineName, l.Dosage, l.AdministeredAt, l.WithdrawalDays, l.Notes, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert medical log: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetMedicalLogsByAnimal(ctx context.Context, animalID uuid.UUID) ([]types.MedicalLog, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, animal_id, medicine_name, dosage, administered_at, withdrawal_days, notes, created_at
		FROM medical_logs WHERE animal_id = $1 ORDER BY administered_at DESC`, animalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []types.MedicalLog
	for rows.Next() {
		var l types.MedicalLog
		if err := rows.Scan(&l.ID, &l.AnimalID, &l.MedicineName, &l.Dosage,
			&l.AdministeredAt, &l.WithdrawalDays, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ---- products ----

const productColumns = `id, product_type, animal_id, seller_id, total_quantity, quantity_sold, unit,
	price_per_unit, min_order_quantity, description, is_verified_safe, created_at, updated_at`

func (p *PostgresStore) CreateProduct(ctx context.Context, pr *types.Product) error {
	if pr.ID == uuid.Nil {
		pr.ID = uuid.New()
	}
	now := time.Now()
	pr.CreatedAt, pr.UpdatedAt = now, now
	_, err := p.pool.Exec(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		pr.ID, pr.ProductType, pr.AnimalID, pr.SellerID, pr.TotalQuantity, pr.QuantitySold, pr.Unit,
		pr.PricePerUnit, pr.MinOrderQuantity, pr.Description, pr.IsVerifiedSafe, pr.CreatedAt, pr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetVerifiedProducts(ctx context.Context) ([]types.Product, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_verified_safe ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []types.Product
	for rows.Next() {
		var pr types.Product
		if err := rows.Scan(&pr.ID, &pr.ProductType, &pr.AnimalID, &pr.SellerID, &pr.TotalQuantity,
			&pr.QuantitySold, &pr.Unit, &pr.PricePerUnit, &pr.MinOrderQuantity, &pr.Description,
			&pr.IsVerifiedSafe, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, pr)
	}
	return products, rows.Err()
}

// ---- schema ----

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		owner_key TEXT NOT NULL,
		filename TEXT NOT NULL,
		original_name TEXT NOT NULL,
		file_size BIGINT NOT NULL DEFAULT 0,
		total_chunks INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		is_system BOOLEAN NOT NULL DEFAULT FALSE,
		uploaded_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_key);
	-- одна системная копия каждого файла, даже если сидят несколько процессов
	CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_system_file ON documents(owner_key, filename) WHERE is_system;

	CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		doc_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		position INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d),
		token_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);

	CREATE TABLE IF NOT EXISTS animals (
		id UUID PRIMARY KEY,
		tag_id TEXT NOT NULL UNIQUE,
		owner_id UUID NOT NULL,
		species TEXT NOT NULL,
		breed TEXT NOT NULL DEFAULT '',
		genetic_lineage TEXT NOT NULL DEFAULT '',
		date_of_birth TIMESTAMP WITH TIME ZONE,
		health_score INT NOT NULL DEFAULT 100 CHECK (health_score BETWEEN 0 AND 100),
		status TEXT NOT NULL CHECK (status IN ('HEALTHY','WITHDRAWAL_LOCK','QUARANTINE')),
		withdrawal_ends_at TIMESTAMP WITH TIME ZONE,
		quarantine_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
		CHECK ((status = 'WITHDRAWAL_LOCK') = (withdrawal_ends_at IS NOT NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_animals_lock ON animals(status, withdrawal_ends_at);
	ALTER TABLE animals ADD COLUMN IF NOT EXISTS quarantine_reason TEXT NOT NULL DEFAULT '';

	CREATE TABLE IF NOT EXISTS medical_logs (
		id UUID PRIMARY KEY,
		animal_id UUID NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
		medicine_name TEXT NOT NULL,
		dosage TEXT NOT NULL DEFAULT '',
		administered_at TIMESTAMP WITH TIME ZONE NOT NULL,
		withdrawal_days INT NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		product_type TEXT NOT NULL,
		animal_id UUID NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
		seller_id UUID NOT NULL,
		total_quantity DOUBLE PRECISION NOT NULL,
		quantity_sold DOUBLE PRECISION NOT NULL DEFAULT 0,
		unit TEXT NOT NULL,
		price_per_unit DOUBLE PRECISION NOT NULL,
		min_order_quantity DOUBLE PRECISION NOT NULL DEFAULT 1,
		description TEXT NOT NULL DEFAULT '',
		is_verified_safe BOOLEAN NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	`, p.embeddingDim)
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

// Close закрывает пул подключений
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
