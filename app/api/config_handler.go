package api

import (
	"livestock/types"

	"github.com/gofiber/fiber/v2"
)

type ConfigHandler struct {
	cfg types.Config
}

func NewConfigHandler(cfg types.Config) *ConfigHandler {
	return &ConfigHandler{
		cfg: cfg,
	}
}

// HandleGetConfig shows the effective settings. Credentials are never included.
func (h *ConfigHandler) HandleGetConfig(c *fiber.Ctx) error {
	inf := h.cfg.Inference
	return c.JSON(fiber.Map{
		"inference": fiber.Map{
			"base_url":                 inf.BaseURL,
			"configured":               inf.APIKey != "",
			"embedding_model":          inf.EmbeddingModel,
			"qa_model":                 inf.QAModel,
			"qa_fallback_model":        inf.QAFallbackModel,
			"diagnosis_model":          inf.DiagnosisModel,
			"diagnosis_fallback_model": inf.DiagnosisFallbackModel,
			"timeout":                  inf.Timeout.String(),
		},
		"chunk_size":       h.cfg.ChunkSize,
		"chunk_overlap":    h.cfg.ChunkOverlap,
		"embed_delay":      h.cfg.EmbedDelay.String(),
		"kb_embed_delay":   h.cfg.KBEmbedDelay.String(),
		"upload_max_bytes": h.cfg.UploadMaxBytes,
		"sweep_interval":   h.cfg.SweepInterval.String(),
		"embedding_dim":    h.cfg.EmbeddingDimLen,
	})
}
