package events

// CartItemAdded is the payload of TopicCartItemAdded.
type CartItemAdded struct {
	ProductID int64 `json:"product_id"`
	CartSize  int   `json:"cart_size"`
}

// CheckoutSucceeded is the payload of TopicCheckoutSucceeded.
type CheckoutSucceeded struct {
	Points          string  `json:"points"`
	ProductIDs      []int64 `json:"product_ids"`
	InvalidProducts []int64 `json:"invalid_products,omitempty"`
	MissingCategory []int64 `json:"products_missing_category,omitempty"`
}

// CheckoutFailed is the payload of TopicCheckoutFailed.
type CheckoutFailed struct {
	ProductIDs []int64 `json:"product_ids"`
	Kind       string  `json:"kind"`
	Reason     string  `json:"reason"`
}

// SessionChanged is the payload of the session topics.
type SessionChanged struct {
	CustomerID string `json:"customer_id"`
}
