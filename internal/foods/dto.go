package foods

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
)

// FoodDTO is the public shape of a food listing.
type FoodDTO struct {
	ID                 uuid.UUID       `json:"id"`
	SellerEmail        string          `json:"sellerEmail"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price"`
	PictureURL         string          `json:"pictureUrl"`
	Category           string          `json:"category"`
	ExpectedDeliveryAt string          `json:"expectedDeliveryAt"`
	LastOrderAt        string          `json:"lastOrderAt"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// AreaFood is a listing shown in an area view, with the seller's display name.
type AreaFood struct {
	FoodDTO
	SellerName string `json:"sellerName"`
}

// ListResult wraps one page of listings and the cursor for the next page.
type ListResult struct {
	Items  []FoodDTO `json:"items"`
	Cursor string    `json:"cursor"`
}

type CreateFoodInput struct {
	Name               string          `json:"name" validate:"required,max=200"`
	Description        string          `json:"description" validate:"max=2000"`
	Price              decimal.Decimal `json:"price"`
	PictureURL         string          `json:"pictureUrl" validate:"omitempty,url"`
	Category           string          `json:"category" validate:"max=100"`
	ExpectedDeliveryAt string          `json:"expectedDeliveryAt"`
	LastOrderAt        string          `json:"lastOrderAt"`
}

// UpdateFoodInput carries the editable fields. Nil fields are left untouched.
type UpdateFoodInput struct {
	Name        *string          `json:"name" validate:"omitempty,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category" validate:"omitempty,max=100"`
	PictureURL  *string          `json:"pictureUrl" validate:"omitempty,url"`
}

func (in CreateFoodInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	return validatePrice(in.Price)
}

func (in UpdateFoodInput) columns() (map[string]any, error) {
	cols := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		cols["name"] = name
	}
	if in.Description != nil {
		cols["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if err := validatePrice(*in.Price); err != nil {
			return nil, err
		}
		cols["price"] = in.Price.Round(2)
	}
	if in.Category != nil {
		cols["category"] = strings.TrimSpace(*in.Category)
	}
	if in.PictureURL != nil {
		cols["picture_url"] = strings.TrimSpace(*in.PictureURL)
	}
	return cols, nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	return nil
}

func (in CreateFoodInput) toModel(sellerEmail string) *models.FoodListing {
	return &models.FoodListing{
		SellerEmail:        sellerEmail,
		Name:               strings.TrimSpace(in.Name),
		Description:        strings.TrimSpace(in.Description),
		Price:              in.Price.Round(2),
		PictureURL:         strings.TrimSpace(in.PictureURL),
		Category:           strings.TrimSpace(in.Category),
		ExpectedDeliveryAt: in.ExpectedDeliveryAt,
		LastOrderAt:        in.LastOrderAt,
	}
}

func FromModel(f *models.FoodListing) FoodDTO {
	return FoodDTO{
		ID:                 f.ID,
		SellerEmail:        f.SellerEmail,
		Name:               f.Name,
		Description:        f.Description,
		Price:              f.Price,
		PictureURL:         f.PictureURL,
		Category:           f.Category,
		ExpectedDeliveryAt: f.ExpectedDeliveryAt,
		LastOrderAt:        f.LastOrderAt,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}

func fromModels(rows []models.FoodListing) []FoodDTO {
	out := make([]FoodDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}
