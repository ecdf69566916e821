package products

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

const listedDateLayout = "2006-01-02"

// ProductForm is the JSON body for creating or updating a product.
type ProductForm struct {
	Name       string `json:"product_name" validate:"required,max=255"`
	ListedDate string `json:"listed_date" validate:"omitempty,datetime=2006-01-02"`
	Status     string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// ToProduct converts the form into a Product.
func (f ProductForm) ToProduct() (Product, error) {
	p := Product{Name: f.Name, Status: f.Status}
	if f.ListedDate != "" {
		d, err := time.Parse(listedDateLayout, f.ListedDate)
		if err != nil {
			return Product{}, fmt.Errorf("%w: invalid listed_date", httpx.ErrValidation)
		}
		p.ListedDate = &d
	}
	return p, nil
}

// ModelForm is the JSON body for creating or updating a model.
type ModelForm struct {
	Name          string  `json:"model_name" validate:"required,max=255"`
	OriginalPrice float64 `json:"original_price" validate:"gte=0"`
	PromoPrice    float64 `json:"promo_price" validate:"gte=0"`
}

// ResolveForm names a product/model pair to look up or create.
type ResolveForm struct {
	ProductName string `json:"product_name" validate:"required"`
	ModelName   string `json:"model_name" validate:"required"`
}

// DeleteModelsForm lists model ids to remove.
type DeleteModelsForm struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}
