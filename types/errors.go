package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrServiceUnavailable = errors.New("inference service is not configured")
	ErrEmbeddingFailed    = errors.New("embedding failed")
	ErrGenerationFailed   = errors.New("text generation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
)

// BioSafetyBlockedError rejects a production request for a locked or quarantined animal.
type BioSafetyBlockedError struct {
	TagID            string
	Status           BioSafetyStatus
	DaysRemaining    int
	WithdrawalEndsAt *time.Time
	Reason           string
}

func (e *BioSafetyBlockedError) Error() string {
	if e.Status == StatusQuarantine {
		return fmt.Sprintf("Animal %s is currently in QUARANTINE and cannot be used for production.", e.TagID)
	}
	return fmt.Sprintf("CRITICAL: %s is under medical withdrawal period.", e.TagID)
}

// Details is the remediation hint shown next to the error.
func (e *BioSafetyBlockedError) Details() string {
	if e.Status == StatusQuarantine {
		if e.Reason != "" {
			return e.Reason
		}
		return "Quarantine must be lifted before any product can be listed."
	}
	return fmt.Sprintf("This animal cannot be used for production for %d more day(s).", e.DaysRemaining)
}
