package biosafety

import (
	"context"
	"fmt"
	"strings"
	"time"

	"livestock/types"

	"github.com/google/uuid"
)

func (g *Gatekeeper) RegisterAnimal(ctx context.Context, ownerID uuid.UUID, params types.RegisterAnimalParams) (*types.Animal, error) {
	a := &types.Animal{
		TagID:          params.TagID,
		OwnerID:        ownerID,
		Species:        params.Species,
		Breed:          params.Breed,
		GeneticLineage: params.GeneticLineage,
		DateOfBirth:    params.DateOfBirth,
		HealthScore:    types.MaxHealthScore,
		Status:         types.StatusHealthy,
	}
	if err := g.store.CreateAnimal(ctx, a); err != nil {
		return nil, err
	}
	g.logger.Info("animal registered", "animal_id", a.ID, "tag", a.TagID, "owner", ownerID)
	return a, nil
}

func (g *Gatekeeper) GetAnimal(ctx context.Context, animalID, actorID uuid.UUID) (*types.Animal, error) {
	return g.ownedAnimal(ctx, animalID, actorID)
}

// DeleteAnimal removes the animal with its medical logs and product listings.
func (g *Gatekeeper) DeleteAnimal(ctx context.Context, animalID, actorID uuid.UUID) error {
	if _, err := g.ownedAnimal(ctx, animalID, actorID); err != nil {
		return err
	}
	return g.store.DeleteAnimal(ctx, animalID)
}

// HealthImpact is how many health points a course of medication costs.
func HealthImpact(withdrawalDays int) int {
	switch {
	case withdrawalDays <= 0:
		return 2
	case withdrawalDays <= 3:
		return 5
	case withdrawalDays <= 7:
		return 10
	case withdrawalDays <= 14:
		return 15
	}
	return 20
}

// RecordMedication logs a treatment and starts its withdrawal period.
// A quarantined animal stays quarantined; an existing later lock is kept.
func (g *Gatekeeper) RecordMedication(ctx context.Context, animalID, actorID uuid.UUID, params types.MedicalLogParams) (*types.MedicalLog, *types.Animal, error) {
	a, err := g.ownedAnimal(ctx, animalID, actorID)
	if err != nil {
		return nil, nil, err
	}

	now := g.now()
	entry := &types.MedicalLog{
		AnimalID:       animalID,
		MedicineName:   params.MedicineName,
		Dosage:         params.Dosage,
		AdministeredAt: now,
		WithdrawalDays: params.WithdrawalDays,
		Notes:          params.Notes,
	}
	if params.AdministeredAt != nil {
		entry.AdministeredAt = *params.AdministeredAt
	}
	if err := g.store.CreateMedicalLog(ctx, entry); err != nil {
		return nil, nil, err
	}

	if entry.WithdrawalDays > 0 {
		end := entry.WithdrawalEndsAt()
		a, err = g.transition(ctx, animalID, func(cur types.Animal) (types.BioSafetyStatus, *time.Time, bool) {
			switch {
			case !end.After(now):
				return "", nil, false
			case cur.Status == types.StatusQuarantine:
				return "", nil, false
			case cur.Status == types.StatusWithdrawalLock && cur.WithdrawalEndsAt != nil && !end.After(*cur.WithdrawalEndsAt):
				return "", nil, false
			}
			return types.StatusWithdrawalLock, &end, true
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to apply withdrawal lock: %w", err)
		}
		g.logger.Info("medication recorded",
			"animal_id", animalID,
			"medicine", entry.MedicineName,
			"withdrawal_days", entry.WithdrawalDays,
			"status", a.Status)
	}

	score, err := g.store.AdjustHealthScore(ctx, animalID, -HealthImpact(entry.WithdrawalDays))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update health score: %w", err)
	}
	a.HealthScore = score

	return entry, a, nil
}

// SetQuarantine enters or leaves quarantine. Leaving restores any withdrawal
// lock still running from the medical history.
// The reason is written before the status changes.
func (g *Gatekeeper) SetQuarantine(ctx context.Context, animalID, actorID uuid.UUID, params types.QuarantineParams) (*types.Animal, error) {
	if _, err := g.ownedAnimal(ctx, animalID, actorID); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(params.Reason)
	var restore *time.Time
	if params.Quarantine {
		if err := g.store.SetQuarantineReason(ctx, animalID, reason); err != nil {
			return nil, fmt.Errorf("failed to save quarantine reason: %w", err)
		}
	} else {
		logs, err := g.store.GetMedicalLogsByAnimal(ctx, animalID)
		if err != nil {
			return nil, err
		}
		restore = latestWithdrawalEnd(logs, g.now())
	}

	a, err := g.transition(ctx, animalID, func(cur types.Animal) (types.BioSafetyStatus, *time.Time, bool) {
		if params.Quarantine {
			return types.StatusQuarantine, nil, cur.Status != types.StatusQuarantine
		}
		if cur.Status != types.StatusQuarantine {
			return "", nil, false
		}
		if restore != nil {
			return types.StatusWithdrawalLock, restore, true
		}
		return types.StatusHealthy, nil, true
	})
	if err != nil {
		return nil, err
	}

	if params.Quarantine {
		a.QuarantineReason = reason
	} else if a.QuarantineReason != "" {
		if err := g.store.SetQuarantineReason(ctx, animalID, ""); err != nil {
			return nil, fmt.Errorf("failed to clear quarantine reason: %w", err)
		}
		a.QuarantineReason = ""
	}

	g.logger.Info("quarantine updated",
		"animal_id", animalID,
		"quarantine", params.Quarantine,
		"reason", reason,
		"status", a.Status)
	return a, nil
}

func latestWithdrawalEnd(logs []types.MedicalLog, now time.Time) *time.Time {
	var latest *time.Time
	for _, l := range logs {
		if l.WithdrawalDays <= 0 {
			continue
		}
		end := l.WithdrawalEndsAt()
		if end.After(now) && (latest == nil || end.After(*latest)) {
			latest = &end
		}
	}
	return latest
}
