package api

import (
	"errors"
	"log"
	"time"

	"livestock/types"

	"github.com/gofiber/fiber/v2"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		apiErr  Error
		valErr  ValidationError
		blocked *types.BioSafetyBlockedError
		fbErr   *fiber.Error
	)
	switch {
	case errors.As(err, &apiErr):
		return c.Status(apiErr.Code).JSON(apiErr)
	case errors.As(err, &valErr):
		return c.Status(valErr.Status).JSON(valErr)
	case errors.As(err, &blocked):
		return c.Status(fiber.StatusForbidden).JSON(NewBioSafetyError(blocked))
	case errors.As(err, &fbErr):
		return c.Status(fbErr.Code).JSON(NewError(fbErr.Code, fbErr.Message))
	}

	apiErr = NewError(statusOf(err), err.Error())
	if apiErr.Code >= fiber.StatusInternalServerError {
		// подробности (тело ответа модели, SQL) только в лог
		log.Printf("[API] %s %s failed with code %d: %v", c.Method(), c.Path(), apiErr.Code, err)
		apiErr.Message = serverErrorMessages[apiErr.Code]
	}
	return c.Status(apiErr.Code).JSON(apiErr)
}

var serverErrorMessages = map[int]string{
	fiber.StatusInternalServerError: "internal server error",
	fiber.StatusBadGateway:          "AI service request failed, please try again later",
	fiber.StatusServiceUnavailable:  "AI service is not available",
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, types.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, types.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, types.ErrServiceUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, types.ErrEmbeddingFailed), errors.Is(err, types.ErrGenerationFailed):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

// BioSafetyError всегда объясняет, почему животное заблокировано и надолго ли
type BioSafetyError struct {
	Code             int        `json:"code"`
	Message          string     `json:"error"`
	Details          string     `json:"details"`
	Status           string     `json:"status"`
	DaysRemaining    int        `json:"days_remaining,omitempty"`
	WithdrawalEndsAt *time.Time `json:"withdrawal_ends_at,omitempty"`
	Blocked          bool       `json:"blocked"`
}

func NewBioSafetyError(e *types.BioSafetyBlockedError) BioSafetyError {
	return BioSafetyError{
		Code:             fiber.StatusForbidden,
		Message:          e.Error(),
		Details:          e.Details(),
		Status:           string(e.Status),
		DaysRemaining:    e.DaysRemaining,
		WithdrawalEndsAt: e.WithdrawalEndsAt,
		Blocked:          true,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}
