package api

import (
	"context"
	"errors"
	"log"
	"time"

	"livestock/app/agent"
	"livestock/app/middleware"
	"livestock/loader/service"
	"livestock/types"

	"github.com/gofiber/fiber/v2"
)

// KnowledgeBase seeds the system reference document on demand.
type KnowledgeBase interface {
	Initialize(ctx context.Context) (bool, error)
	IsLoaded(ctx context.Context) (bool, error)
}

// ChunkSource supplies retrieval candidates.
type ChunkSource interface {
	CandidateChunks(ctx context.Context, owner types.Owner) ([]types.Chunk, error)
	AllChunks(ctx context.Context) ([]types.Chunk, error)
}

type RequestHandler struct {
	engine *agent.Engine
	chunks ChunkSource
	kb     KnowledgeBase
}

func NewRequestHandler(engine *agent.Engine, chunks ChunkSource, kb KnowledgeBase) *RequestHandler {
	return &RequestHandler{
		engine: engine,
		chunks: chunks,
		kb:     kb,
	}
}

type DiagnosisResponse struct {
	types.Diagnosis
	Symptoms  []string  `json:"symptoms"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleAsk answers a question from the farmer's own documents.
func (h *RequestHandler) HandleAsk(c *fiber.Ctx) error {
	var params types.AskParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	ctx := c.UserContext()
	owner := types.UserOwner(middleware.UserID(c))
	chunks, err := h.chunks.CandidateChunks(ctx, owner)
	if err != nil {
		return err
	}
	log.Printf("[SEARCH] %d candidate chunks for %s", len(chunks), owner)

	resp, err := h.engine.Answer(ctx, params.Question, chunks, agent.DefaultAnswerTopK)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// HandleDiagnose matches symptoms against every stored document,
// seeding the knowledge base first if it is not there yet.
func (h *RequestHandler) HandleDiagnose(c *fiber.Ctx) error {
	var params types.DiagnoseParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	ctx := c.UserContext()
	if _, err := h.kb.Initialize(ctx); err != nil {
		log.Printf("[SEARCH] Knowledge base not available: %v", err)
	}

	chunks, err := h.chunks.AllChunks(ctx)
	if err != nil {
		return err
	}

	diagnosis, err := h.engine.Diagnose(ctx, params.Symptoms, chunks)
	if err != nil {
		return err
	}
	return c.JSON(DiagnosisResponse{
		Diagnosis: *diagnosis,
		Symptoms:  params.Symptoms,
		Timestamp: time.Now(),
	})
}

func (h *RequestHandler) HandleInit(c *fiber.Ctx) error {
	ok, err := h.kb.Initialize(c.UserContext())
	if errors.Is(err, service.ErrKnowledgeBaseMissing) {
		return c.JSON(fiber.Map{"success": false, "message": err.Error()})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": ok, "message": "Knowledge base initialized"})
}
