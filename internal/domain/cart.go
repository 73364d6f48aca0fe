package domain

import "strings"

// CartEntry is one line of a cart. Entries are keyed by CartKey so that the
// same product in the same size accumulates quantity.
type CartEntry struct {
	ProductID string `json:"product_id" dynamodbav:"product_id"`
	Size      string `json:"size" dynamodbav:"size"`
	Quantity  int    `json:"quantity" dynamodbav:"quantity"`
}

// Cart is stored as a map attribute on the user document.
type Cart map[string]CartEntry

// NormalizeSize upper-cases a size label so "m" and "M" land on the same entry.
func NormalizeSize(size string) string {
	return strings.ToUpper(strings.TrimSpace(size))
}

// CartKey returns the entry key "{productID}-{SIZE}".
func CartKey(productID, size string) string {
	return strings.TrimSpace(productID) + "-" + NormalizeSize(size)
}

// TotalQuantity sums quantities across all entries.
func (c Cart) TotalQuantity() int {
	n := 0
	for _, e := range c {
		n += e.Quantity
	}
	return n
}

type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,max=128"`
	Size      string `json:"size" validate:"required,max=16"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100"`
}
