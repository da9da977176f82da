package api

import (
	"context"

	"livestock/app/middleware"
	"livestock/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AnimalService interface {
	RegisterAnimal(ctx context.Context, ownerID uuid.UUID, params types.RegisterAnimalParams) (*types.Animal, error)
	GetAnimal(ctx context.Context, animalID, actorID uuid.UUID) (*types.Animal, error)
	DeleteAnimal(ctx context.Context, animalID, actorID uuid.UUID) error
	RecordMedication(ctx context.Context, animalID, actorID uuid.UUID, params types.MedicalLogParams) (*types.MedicalLog, *types.Animal, error)
	SetQuarantine(ctx context.Context, animalID, actorID uuid.UUID, params types.QuarantineParams) (*types.Animal, error)
	Sweep(ctx context.Context) (int64, error)
}

type AnimalHandler struct {
	animals AnimalService
}

func NewAnimalHandler(animals AnimalService) *AnimalHandler {
	return &AnimalHandler{
		animals: animals,
	}
}

type AnimalView struct {
	ID               uuid.UUID             `json:"id"`
	TagID            string                `json:"tag_id"`
	Species          string                `json:"species"`
	Breed            string                `json:"breed,omitempty"`
	GeneticLineage   string                `json:"genetic_lineage,omitempty"`
	HealthScore      int                   `json:"health_score"`
	Status           types.BioSafetyStatus `json:"status"`
	WithdrawalEndsAt *string               `json:"withdrawal_ends_at"`
	QuarantineReason string                `json:"quarantine_reason,omitempty"`
}

func newAnimalView(a *types.Animal) AnimalView {
	v := AnimalView{
		ID:             a.ID,
		TagID:          a.TagID,
		Species:        a.Species,
		Breed:          a.Breed,
		GeneticLineage: a.GeneticLineage,
		HealthScore:    a.HealthScore,
		Status:         a.Status,
	}
	if a.WithdrawalEndsAt != nil {
		s := a.WithdrawalEndsAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		v.WithdrawalEndsAt = &s
	}
	if a.Status == types.StatusQuarantine {
		v.QuarantineReason = a.QuarantineReason
	}
	return v
}

func (h *AnimalHandler) HandleRegister(c *fiber.Ctx) error {
	var params types.RegisterAnimalParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	a, err := h.animals.RegisterAnimal(c.UserContext(), middleware.UserID(c), params)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newAnimalView(a))
}

func (h *AnimalHandler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	a, err := h.animals.GetAnimal(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(newAnimalView(a))
}

func (h *AnimalHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	if err := h.animals.DeleteAnimal(c.UserContext(), id, middleware.UserID(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": id})
}

func (h *AnimalHandler) HandleMedicalLog(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	var params types.MedicalLogParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	entry, a, err := h.animals.RecordMedication(c.UserContext(), id, middleware.UserID(c), params)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"medical_log": fiber.Map{
			"id":                 entry.ID,
			"medicine_name":      entry.MedicineName,
			"dosage":             entry.Dosage,
			"administered_at":    entry.AdministeredAt,
			"withdrawal_days":    entry.WithdrawalDays,
			"withdrawal_ends_at": entry.WithdrawalEndsAt(),
		},
		"animal": newAnimalView(a),
	})
}

func (h *AnimalHandler) HandleQuarantine(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	var params types.QuarantineParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	a, err := h.animals.SetQuarantine(c.UserContext(), id, middleware.UserID(c), params)
	if err != nil {
		return err
	}
	return c.JSON(newAnimalView(a))
}

func (h *AnimalHandler) HandleSweep(c *fiber.Ctx) error {
	n, err := h.animals.Sweep(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"unlocked": n})
}
