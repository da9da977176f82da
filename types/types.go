package types

import (
	"time"

	"github.com/google/uuid"
)

// Document описывает загруженный исходный файл базы знаний
type Document struct {
	ID               uuid.UUID
	Owner            Owner
	Filename         string // имя файла в хранилище
	OriginalName     string
	FileSize         int64
	TotalChunks      int
	Description      string
	IsSystemDocument bool
	UploadedAt       time.Time
}

// Chunk: непрерывный очищенный фрагмент текста документа
type Chunk struct {
	ID         uuid.UUID
	DocID      uuid.UUID
	Index      int
	Content    string
	Embedding  []float32 // nil, если эмбеддинг не удалось получить
	TokenCount int
	CreatedAt  time.Time
}

// HasEmbedding сообщает, пригоден ли чанк для векторного поиска
func (c Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

type BioSafetyStatus string

const (
	StatusHealthy        BioSafetyStatus = "HEALTHY"
	StatusWithdrawalLock BioSafetyStatus = "WITHDRAWAL_LOCK"
	StatusQuarantine     BioSafetyStatus = "QUARANTINE"
)

const (
	MinHealthScore = 0
	MaxHealthScore = 100
)

type Animal struct {
	ID               uuid.UUID
	TagID            string
	OwnerID          uuid.UUID
	Species          string
	Breed            string
	GeneticLineage   string
	DateOfBirth      *time.Time
	HealthScore      int
	Status           BioSafetyStatus
	WithdrawalEndsAt *time.Time // задан только при StatusWithdrawalLock
	QuarantineReason string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WithdrawalExpired is the single unlock rule shared by the gate and the sweep.
func (a Animal) WithdrawalExpired(now time.Time) bool {
	return a.Status == StatusWithdrawalLock &&
		a.WithdrawalEndsAt != nil &&
		!now.Before(*a.WithdrawalEndsAt)
}

type MedicalLog struct {
	ID             uuid.UUID
	AnimalID       uuid.UUID
	MedicineName   string
	Dosage         string
	AdministeredAt time.Time
	WithdrawalDays int
	Notes          string
	CreatedAt      time.Time
}

// WithdrawalEndsAt returns the end of the withdrawal period started by this log.
func (l MedicalLog) WithdrawalEndsAt() time.Time {
	return l.AdministeredAt.AddDate(0, 0, l.WithdrawalDays)
}

type Product struct {
	ID               uuid.UUID
	ProductType      string // milk, ghee, cheese...
	AnimalID         uuid.UUID
	SellerID         uuid.UUID
	TotalQuantity    float64
	QuantitySold     float64
	Unit             string
	PricePerUnit     float64
	MinOrderQuantity float64
	Description      string
	IsVerifiedSafe   bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Config struct {
	ServerAddr string

	PGHost   string
	PGPort   int
	PGUser   string
	PGPass   string
	PGDBName string

	Inference InferenceConfig

	ChunkSize       int
	ChunkOverlap    int
	EmbedDelay      time.Duration
	KBEmbedDelay    time.Duration
	UploadDir       string
	UploadMaxBytes  int64
	KnowledgeBase   string
	SweepInterval   time.Duration
	EmbeddingDimLen int
}

type InferenceConfig struct {
	BaseURL                string
	APIKey                 string
	EmbeddingModel         string
	QAModel                string
	QAFallbackModel        string
	DiagnosisModel         string
	DiagnosisFallbackModel string
	Timeout                time.Duration
}
