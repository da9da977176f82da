package types

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadConfig reads the service settings from the environment, filling defaults.
func LoadConfig() (Config, error) {
	var (
		cfg Config
		err error
		get = func(key, def string) string {
			if v := strings.TrimSpace(os.Getenv(key)); v != "" {
				return v
			}
			return def
		}
		atoi = func(key string, def int) int {
			if err != nil {
				return def
			}
			var n int
			n, err = strconv.Atoi(get(key, strconv.Itoa(def)))
			if err != nil {
				err = fmt.Errorf("%s: %w", key, err)
			}
			return n
		}
		dur = func(key string, def time.Duration) time.Duration {
			if err != nil {
				return def
			}
			var d time.Duration
			d, err = time.ParseDuration(get(key, def.String()))
			if err != nil {
				err = fmt.Errorf("%s: %w", key, err)
			}
			return d
		}
		millis = func(key string, def time.Duration) time.Duration {
			return time.Duration(atoi(key, int(def/time.Millisecond))) * time.Millisecond
		}
	)

	cfg.ServerAddr = get("SERVER_ADDR", ":3000")

	cfg.PGHost = get("PG_HOST", "")
	cfg.PGPort = atoi("PG_PORT", 5432)
	cfg.PGUser = get("PG_USER", "postgres")
	cfg.PGPass = os.Getenv("PG_PASS")
	cfg.PGDBName = get("PG_DB_NAME", "livestock")

	cfg.Inference = InferenceConfig{
		BaseURL:                get("HF_BASE_URL", "https://api-inference.huggingface.co"),
		APIKey:                 strings.TrimSpace(os.Getenv("HUGGINGFACE_API_KEY")),
		EmbeddingModel:         get("EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),
		QAModel:                get("QA_MODEL", "mistralai/Mistral-7B-Instruct-v0.2"),
		QAFallbackModel:        get("QA_FALLBACK_MODEL", "google/flan-t5-large"),
		DiagnosisModel:         get("DIAGNOSIS_MODEL", "HuggingFaceH4/zephyr-7b-beta"),
		DiagnosisFallbackModel: get("DIAGNOSIS_FALLBACK_MODEL", "gpt2"),
		Timeout:                dur("INFERENCE_TIMEOUT", 60*time.Second),
	}
	cfg.EmbeddingDimLen = atoi("EMBEDDING_DIM", 384)

	cfg.ChunkSize = atoi("CHUNK_SIZE", 1500)
	cfg.ChunkOverlap = atoi("CHUNK_OVERLAP", 200)
	cfg.EmbedDelay = millis("EMBED_DELAY_MS", time.Second)
	cfg.KBEmbedDelay = millis("KB_EMBED_DELAY_MS", 1200*time.Millisecond)

	cfg.UploadDir = get("UPLOAD_DIR", "uploads")
	cfg.UploadMaxBytes = int64(atoi("UPLOAD_MAX_BYTES", 10<<20))
	cfg.KnowledgeBase = get("KNOWLEDGE_BASE_PATH", "test-documents/livestock.pdf")
	cfg.SweepInterval = dur("BIOSAFETY_SWEEP_INTERVAL", 15*time.Minute)

	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PostgresDSN builds the connection string; empty when no database host is set.
func (c Config) PostgresDSN() string {
	if c.PGHost == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.PGHost, c.PGPort, c.PGUser, c.PGPass, c.PGDBName)
}
