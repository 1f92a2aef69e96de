package checkout

import (
	"fmt"

	"github.com/noah-isme/loyalty-shop/internal/cart"
)

// Warning headings shown above each block of advisory lines.
const (
	InvalidProductsHeading = "Warning: Some products could not be processed"
	MissingCategoryHeading = "Warning: Some products are missing categories"
)

// Outcome is a successful checkout as presented to the customer. Points is
// the backend value verbatim.
type Outcome struct {
	Points          string
	InvalidProducts []cart.ProductID
	MissingCategory []cart.ProductID
}

// Message is the confirmation line.
func (o Outcome) Message() string {
	return fmt.Sprintf("Checkout successful! You earned %s points.", o.Points)
}

// Warnings returns the advisory lines: the invalid-products block followed by
// the missing-category block. Empty when the backend flagged nothing.
func (o Outcome) Warnings() []string {
	var lines []string
	if len(o.InvalidProducts) > 0 {
		lines = append(lines, InvalidProductsHeading)
		for _, id := range o.InvalidProducts {
			lines = append(lines, fmt.Sprintf("Product ID %s is invalid or not available.", id))
		}
	}
	if len(o.MissingCategory) > 0 {
		lines = append(lines, MissingCategoryHeading)
		for _, id := range o.MissingCategory {
			lines = append(lines, fmt.Sprintf("Product ID %s has no category defined.", id))
		}
	}
	return lines
}
