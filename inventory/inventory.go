// Package inventory talks to the remote stock and product APIs the cart
// depends on, and ships a fixture implementation of those APIs for local runs.
package inventory

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/norun9/rocketshoes-cart/cart"
)

// ErrProductNotFound is returned when the catalog has no product for an id.
var ErrProductNotFound = errors.New("product not found")

// StockOracle reports the live available quantity of a product.
type StockOracle interface {
	GetStock(ctx context.Context, productID int) (cart.Stock, error)
}

// ProductCatalog returns product metadata.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int) (cart.Product, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}
