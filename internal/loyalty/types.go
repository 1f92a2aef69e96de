package loyalty

import (
	"encoding/json"

	"github.com/noah-isme/loyalty-shop/internal/cart"
)

// Endpoint paths of the loyalty backend.
const (
	PathLogin    = "/login"
	PathLogout   = "/logout"
	PathProducts = "/products"
	PathCheckout = "/checkout"
)

// Product is a catalog entry as listed by the backend.
type Product struct {
	ID       cart.ProductID `json:"id"`
	Name     string         `json:"name"`
	Price    json.Number    `json:"price"`
	ImageURL string         `json:"image_url"`
}

// CheckoutResult is the backend's answer to a successful checkout. The
// warning lists are advisory and may be absent.
type CheckoutResult struct {
	TotalPointsEarned       json.Number      `json:"total_points_earned"`
	InvalidProducts         []cart.ProductID `json:"invalid_products,omitempty"`
	ProductsMissingCategory []cart.ProductID `json:"products_missing_category,omitempty"`
}

// HasWarnings reports whether the backend flagged any product.
func (r CheckoutResult) HasWarnings() bool {
	return len(r.InvalidProducts) > 0 || len(r.ProductsMissingCategory) > 0
}

type loginRequest struct {
	CustomerID string `json:"customer_id"`
}

type checkoutRequest struct {
	ProductIDs []cart.ProductID `json:"product_ids"`
}

type productsResponse struct {
	Products []Product `json:"products"`
}

// envelope captures the fields every response may carry.
type envelope struct {
	Success *bool           `json:"success"`
	Error   json.RawMessage `json:"error"`
}
