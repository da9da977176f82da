package biosafety

import (
	"context"
	"fmt"

	"livestock/types"

	"github.com/google/uuid"
)

// CreateProduct lists produce only after the animal passes the gate.
// The verified-safe flag is never taken from the caller.
func (g *Gatekeeper) CreateProduct(ctx context.Context, sellerID uuid.UUID, params types.ProductParams) (*types.Product, error) {
	animalID, err := uuid.Parse(params.AnimalID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid animal id", types.ErrValidation)
	}

	clearance, err := g.Evaluate(ctx, animalID, sellerID)
	if err != nil {
		g.logger.Warn("product listing rejected", "animal_id", animalID, "seller", sellerID, "err", err)
		return nil, err
	}

	p := &types.Product{
		ProductType:      params.ProductType,
		AnimalID:         animalID,
		SellerID:         sellerID,
		TotalQuantity:    params.TotalQuantity,
		Unit:             params.Unit,
		PricePerUnit:     params.PricePerUnit,
		MinOrderQuantity: params.MinOrderQuantity,
		Description:      params.Description,
		IsVerifiedSafe:   clearance.VerifiedSafe,
	}
	if err := g.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	g.logger.Info("product listed", "product_id", p.ID, "animal_id", animalID, "type", p.ProductType)
	return p, nil
}

func (g *Gatekeeper) ListProducts(ctx context.Context) ([]types.Product, error) {
	products, err := g.store.GetVerifiedProducts(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []types.Product{}
	}
	return products, nil
}
