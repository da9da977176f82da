package biosafety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"livestock/store"
	"livestock/types"

	"github.com/google/uuid"
)

const maxTransitionAttempts = 3

var errConcurrentUpdate = errors.New("animal status changed concurrently, try again")

type Storer interface {
	store.AnimalStorer
	store.MedicalLogStorer
	store.ProductStorer
}

// Gatekeeper owns every write to an animal's bio-safety status.
type Gatekeeper struct {
	logger *slog.Logger
	store  Storer
	now    func() time.Time
}

func New(storer Storer) *Gatekeeper {
	return &Gatekeeper{
		logger: slog.Default(),
		store:  storer,
		now:    time.Now,
	}
}

// Clearance is the outcome of a passed gate check.
type Clearance struct {
	Animal       types.Animal
	VerifiedSafe bool
	// Unlocked is set when the check itself lifted an expired withdrawal lock.
	Unlocked bool
}

// Evaluate decides whether actorID may list produce from the animal right now.
// An expired withdrawal lock is lifted as part of the check.
func (g *Gatekeeper) Evaluate(ctx context.Context, animalID, actorID uuid.UUID) (*Clearance, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		a, err := g.ownedAnimal(ctx, animalID, actorID)
		if err != nil {
			return nil, err
		}
		now := g.now()

		switch a.Status {
		case types.StatusQuarantine:
			return nil, &types.BioSafetyBlockedError{TagID: a.TagID, Status: a.Status, Reason: a.QuarantineReason}

		case types.StatusWithdrawalLock:
			if a.WithdrawalEndsAt != nil && now.Before(*a.WithdrawalEndsAt) {
				return nil, &types.BioSafetyBlockedError{
					TagID:            a.TagID,
					Status:           a.Status,
					DaysRemaining:    DaysRemaining(now, *a.WithdrawalEndsAt),
					WithdrawalEndsAt: a.WithdrawalEndsAt,
				}
			}

			ok, err := g.store.CompareAndSetStatus(ctx, a.ID,
				types.StatusWithdrawalLock, a.WithdrawalEndsAt, types.StatusHealthy, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to lift withdrawal lock: %w", err)
			}
			if !ok {
				continue
			}
			g.logger.Info("withdrawal period over, animal unlocked", "animal_id", a.ID, "tag", a.TagID)
			a.Status, a.WithdrawalEndsAt = types.StatusHealthy, nil
			return &Clearance{Animal: *a, VerifiedSafe: true, Unlocked: true}, nil
		}

		return &Clearance{Animal: *a, VerifiedSafe: true}, nil
	}
	return nil, errConcurrentUpdate
}

// DaysRemaining rounds the time left until end up to whole days.
func DaysRemaining(now, end time.Time) int {
	left := end.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(float64(left) / float64(24*time.Hour)))
}

func (g *Gatekeeper) ownedAnimal(ctx context.Context, animalID, actorID uuid.UUID) (*types.Animal, error) {
	a, err := g.store.GetAnimal(ctx, animalID)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != actorID {
		return nil, fmt.Errorf("%w: animal %s belongs to another farmer", types.ErrForbidden, animalID)
	}
	return a, nil
}

// transition applies next to the freshest copy of the animal with a conditional write.
// next returns false when no change is needed.
func (g *Gatekeeper) transition(ctx context.Context, id uuid.UUID,
	next func(a types.Animal) (types.BioSafetyStatus, *time.Time, bool)) (*types.Animal, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		a, err := g.store.GetAnimal(ctx, id)
		if err != nil {
			return nil, err
		}
		status, endsAt, change := next(*a)
		if !change {
			return a, nil
		}
		ok, err := g.store.CompareAndSetStatus(ctx, id, a.Status, a.WithdrawalEndsAt, status, endsAt)
		if err != nil {
			return nil, err
		}
		if ok {
			a.Status, a.WithdrawalEndsAt = status, endsAt
			return a, nil
		}
	}
	return nil, errConcurrentUpdate
}

// Sweep lifts every withdrawal lock whose period is over.
func (g *Gatekeeper) Sweep(ctx context.Context) (int64, error) {
	n, err := g.store.UnlockExpired(ctx, g.now())
	if err != nil {
		return 0, fmt.Errorf("bio-safety sweep: %w", err)
	}
	if n > 0 {
		g.logger.Info("bio-safety sweep unlocked animals", "count", n)
	}
	return n, nil
}

// RunSweeper sweeps once immediately and then every interval until ctx is done.
func (g *Gatekeeper) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		g.logger.Info("bio-safety sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.logger.Info("bio-safety sweeper started", "interval", interval)
	for {
		if _, err := g.Sweep(ctx); err != nil {
			g.logger.Error("sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			g.logger.Info("bio-safety sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}
