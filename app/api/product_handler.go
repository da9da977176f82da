package api

import (
	"context"

	"livestock/app/middleware"
	"livestock/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ProductService interface {
	CreateProduct(ctx context.Context, sellerID uuid.UUID, params types.ProductParams) (*types.Product, error)
	ListProducts(ctx context.Context) ([]types.Product, error)
}

type ProductHandler struct {
	products ProductService
}

func NewProductHandler(products ProductService) *ProductHandler {
	return &ProductHandler{
		products: products,
	}
}

type ProductView struct {
	ID               uuid.UUID `json:"id"`
	ProductType      string    `json:"product_type"`
	AnimalID         uuid.UUID `json:"animal_id"`
	SellerID         uuid.UUID `json:"seller_id"`
	TotalQuantity    float64   `json:"total_quantity"`
	QuantitySold     float64   `json:"quantity_sold"`
	Unit             string    `json:"unit"`
	PricePerUnit     float64   `json:"price_per_unit"`
	MinOrderQuantity float64   `json:"min_order_quantity"`
	Description      string    `json:"description,omitempty"`
	IsVerifiedSafe   bool      `json:"is_verified_safe"`
}

func newProductView(p types.Product) ProductView {
	return ProductView{
		ID:               p.ID,
		ProductType:      p.ProductType,
		AnimalID:         p.AnimalID,
		SellerID:         p.SellerID,
		TotalQuantity:    p.TotalQuantity,
		QuantitySold:     p.QuantitySold,
		Unit:             p.Unit,
		PricePerUnit:     p.PricePerUnit,
		MinOrderQuantity: p.MinOrderQuantity,
		Description:      p.Description,
		IsVerifiedSafe:   p.IsVerifiedSafe,
	}
}

// HandleCreate lists produce; the bio-safety gate decides whether it may be sold.
func (h *ProductHandler) HandleCreate(c *fiber.Ctx) error {
	var params types.ProductParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	p, err := h.products.CreateProduct(c.UserContext(), middleware.UserID(c), params)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newProductView(*p))
}

func (h *ProductHandler) HandleList(c *fiber.Ctx) error {
	products, err := h.products.ListProducts(c.UserContext())
	if err != nil {
		return err
	}
	views := make([]ProductView, len(products))
	for i, p := range products {
		views[i] = newProductView(p)
	}
	return c.JSON(fiber.Map{"products": views})
}
