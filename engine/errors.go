package engine

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by an Engine operation matches exactly
// one of these through errors.Is.
var (
	// ErrStockQueryFailed means the stock API was unreachable or errored.
	ErrStockQueryFailed = errors.New("stock query failed")
	// ErrCatalogLookupFailed means the catalog had no product for a new add.
	ErrCatalogLookupFailed = errors.New("catalog lookup failed")
	// ErrOutOfStock means the resulting amount would exceed available stock.
	ErrOutOfStock = errors.New("out of stock")
	// ErrProductNotInCart means a remove targeted an id absent from the cart.
	ErrProductNotInCart = errors.New("product not in cart")
	// ErrInvalidAmount marks an update with amount <= 0. Such updates are
	// ignored silently, so this error is only used for metrics and logs.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrPersistFailed means the new cart could not be written to the store.
	ErrPersistFailed = errors.New("persist failed")
)

// Op names an engine operation.
type Op string

const (
	OpAdd    Op = "addProduct"
	OpRemove Op = "removeProduct"
	OpUpdate Op = "updateProductAmount"
)

// User-facing notification texts.
const (
	MsgAddFailed    = "Erro na adição do produto"
	MsgRemoveFailed = "Erro na remoção do produto"
	MsgUpdateFailed = "Erro na alteração de quantidade do produto"
	MsgOutOfStock   = "Quantidade solicitada fora de estoque"
)

// OpError describes a rejected operation. The user has already been notified
// with Message by the time an OpError is returned.
type OpError struct {
	Op        Op
	ProductID int
	Kind      error
	Message   string
	Err       error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cart: %s %d: %v", e.Op, e.ProductID, e.Kind)
	}
	return fmt.Sprintf("cart: %s %d: %v: %v", e.Op, e.ProductID, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// message picks the notification for a failure: out-of-stock has its own
// text, every other failure uses the generic text of the operation.
func message(op Op, kind error) string {
	if kind == ErrOutOfStock {
		return MsgOutOfStock
	}
	switch op {
	case OpAdd:
		return MsgAddFailed
	case OpRemove:
		return MsgRemoveFailed
	default:
		return MsgUpdateFailed
	}
}

// resultLabel is the metric/span label for an outcome.
func resultLabel(kind error) string {
	switch kind {
	case nil:
		return "ok"
	case ErrStockQueryFailed:
		return "stock_query_failed"
	case ErrCatalogLookupFailed:
		return "catalog_lookup_failed"
	case ErrOutOfStock:
		return "out_of_stock"
	case ErrProductNotInCart:
		return "not_in_cart"
	case ErrInvalidAmount:
		return "invalid_amount"
	case ErrPersistFailed:
		return "persist_failed"
	default:
		return "error"
	}
}
