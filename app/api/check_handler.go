package api

import (
	"github.com/gofiber/fiber/v2"
)

type CheckHandler struct {
	kb KnowledgeBase
}

func NewCheckHandler(kb KnowledgeBase) *CheckHandler {
	return &CheckHandler{kb: kb}
}

func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	loaded, err := h.kb.IsLoaded(c.UserContext())
	if err != nil {
		return NewError(fiber.StatusServiceUnavailable, "storage is not reachable")
	}
	return c.JSON(fiber.Map{"result": "ok", "knowledge_base": loaded})
}
