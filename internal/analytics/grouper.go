package analytics

import (
	"sort"
	"time"
)

// Product is a catalog row as seen by the grouper.
type Product struct {
	ID         int64      `json:"product_id"`
	Name       string     `json:"product_name"`
	Status     string     `json:"status"`
	ListedDate *time.Time `json:"listed_date,omitempty"`
}

// Model is a product variant as seen by the grouper.
type Model struct {
	ID            int64   `json:"model_id"`
	ProductID     int64   `json:"product_id"`
	Name          string  `json:"model_name"`
	OriginalPrice float64 `json:"original_price"`
	PromoPrice    float64 `json:"promo_price"`
}

// ModelSales is a model with its dense daily series.
type ModelSales struct {
	Model
	TotalQuantity int64        `json:"total_quantity"`
	TotalAmount   float64      `json:"total_amount"`
	Series        []DailySales `json:"series"`
}

// ProductSales nests a product's models and their series.
type ProductSales struct {
	Product
	Models []ModelSales `json:"models"`
}

// ProductSeries is the aggregated series of one product.
type ProductSeries struct {
	ProductID int64        `json:"product_id"`
	Series    []DailySales `json:"series"`
}

// RankedModel is one row of the model ranking.
type RankedModel struct {
	Rank          int     `json:"rank"`
	ProductID     int64   `json:"product_id"`
	ProductName   string  `json:"product_name"`
	ModelID       int64   `json:"model_id"`
	ModelName     string  `json:"model_name"`
	TotalQuantity int64   `json:"total_quantity"`
	TotalAmount   float64 `json:"total_amount"`
}

// GroupProductSales nests models under their parent product and gives every
// model a dense series over [start, end], including models without sales.
// Models whose product is not in products are dropped. Output order follows
// the input order of products and models.
func GroupProductSales(products []Product, models []Model, items []OrderItem, start, end time.Time) []ProductSales {
	itemsByModel := make(map[int64][]OrderItem)
	for _, item := range items {
		itemsByModel[item.ModelID] = append(itemsByModel[item.ModelID], item)
	}

	index := make(map[int64]int, len(products))
	out := make([]ProductSales, 0, len(products))
	for _, p := range products {
		if _, seen := index[p.ID]; seen {
			continue
		}
		index[p.ID] = len(out)
		out = append(out, ProductSales{Product: p, Models: []ModelSales{}})
	}

	for _, m := range models {
		pos, ok := index[m.ProductID]
		if !ok {
			continue
		}
		series := ItemSeries(itemsByModel[m.ID], start, end)
		amount, qty := SumSeries(series)
		out[pos].Models = append(out[pos].Models, ModelSales{
			Model:         m,
			TotalQuantity: qty,
			TotalAmount:   amount,
			Series:        series,
		})
	}
	return out
}

// ProductStats builds one dense series per requested product id from order
// lines. An empty id list is rejected.
func ProductStats(productIDs []int64, items []OrderItem, start, end time.Time) ([]ProductSeries, error) {
	if len(productIDs) == 0 {
		return nil, ErrProductIDsRequired
	}
	byProduct := make(map[int64][]OrderItem, len(productIDs))
	for _, item := range items {
		byProduct[item.ProductID] = append(byProduct[item.ProductID], item)
	}
	out := make([]ProductSeries, 0, len(productIDs))
	for _, id := range productIDs {
		out = append(out, ProductSeries{ProductID: id, Series: ItemSeries(byProduct[id], start, end)})
	}
	return out, nil
}

// RankModels flattens grouped sales and orders models by quantity sold, then
// amount, then model id. A positive limit truncates the result.
func RankModels(groups []ProductSales, limit int) []RankedModel {
	ranked := make([]RankedModel, 0)
	for _, group := range groups {
		for _, m := range group.Models {
			ranked = append(ranked, RankedModel{
				ProductID:     group.ID,
				ProductName:   group.Name,
				ModelID:       m.ID,
				ModelName:     m.Name,
				TotalQuantity: m.TotalQuantity,
				TotalAmount:   m.TotalAmount,
			})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalQuantity != ranked[j].TotalQuantity {
			return ranked[i].TotalQuantity > ranked[j].TotalQuantity
		}
		if ranked[i].TotalAmount != ranked[j].TotalAmount {
			return ranked[i].TotalAmount > ranked[j].TotalAmount
		}
		return ranked[i].ModelID < ranked[j].ModelID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
