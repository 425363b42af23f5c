// Package engine owns the cart. It is the only writer of cart state: every
// change goes through AddProduct, RemoveProduct or UpdateProductAmount, each of
// which validates against live stock, persists the new cart and then publishes
// it to subscribers. A failed operation leaves the cart untouched and sends one
// notification.
package engine

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/rocketshoes-cart/cart"
	"github.com/norun9/rocketshoes-cart/cartstore"
	"github.com/norun9/rocketshoes-cart/inventory"
	"github.com/norun9/rocketshoes-cart/notify"
)

const instrumentationName = "cartengine"

// Options are the collaborators of an Engine. Store, Stock and Catalog are
// required.
type Options struct {
	Store   cartstore.ICartStore
	Stock   inventory.StockOracle
	Catalog inventory.ProductCatalog
	// Sink receives user-facing error messages. Defaults to a LogSink.
	Sink   notify.Sink
	Logger logrus.FieldLogger
	// Key overrides cart.StorageKey.
	Key string

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// AmountUpdate is the argument of UpdateProductAmount.
type AmountUpdate struct {
	ProductID int `json:"productId"`
	Amount    int `json:"amount"`
}

// Engine is the cart state machine.
type Engine struct {
	store   cartstore.ICartStore
	stock   inventory.StockOracle
	catalog inventory.ProductCatalog
	sink    notify.Sink
	log     logrus.FieldLogger
	key     string

	tracer trace.Tracer
	ops    metric.Int64Counter

	// opMu serializes operations end to end, remote reads included.
	opMu sync.Mutex

	mu   sync.RWMutex
	cart cart.Cart
	subs map[*Subscription]struct{}
}

// New builds an Engine and seeds its cart from the store. A missing or
// unreadable record yields an empty cart.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Stock == nil || opts.Catalog == nil {
		return nil, errors.New("engine: store, stock and catalog are required")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "engine")
	sink := opts.Sink
	if sink == nil {
		sink = notify.NewLogSink(log)
	}
	key := opts.Key
	if key == "" {
		key = cart.StorageKey
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	ops, err := mp.Meter(instrumentationName).Int64Counter("cart.operations",
		metric.WithDescription("Cart operations by outcome"))
	if err != nil {
		return nil, errors.Wrap(err, "engine: create counter")
	}

	e := &Engine{
		store:   opts.Store,
		stock:   opts.Stock,
		catalog: opts.Catalog,
		sink:    sink,
		log:     log,
		key:     key,
		tracer:  tp.Tracer(instrumentationName),
		ops:     ops,
		subs:    make(map[*Subscription]struct{}),
	}
	e.cart = e.load(ctx)
	return e, nil
}

func (e *Engine) load(ctx context.Context) cart.Cart {
	data, found, err := e.store.Get(ctx, e.key)
	if err != nil {
		e.log.WithError(err).Warn("could not read stored cart, starting empty")
		return cart.Cart{}
	}
	if !found {
		return cart.Cart{}
	}
	c, err := cart.Unmarshal(data)
	if err != nil {
		e.log.WithError(err).Warn("stored cart is unreadable, starting empty")
		return cart.Cart{}
	}
	e.log.WithField("products", c.Len()).Info("restored cart")
	return c
}

// Cart returns the current cart.
func (e *Engine) Cart() cart.Cart {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cart
}

// AddProduct adds one unit of a product. A product not yet in the cart is
// fetched from the catalog and inserted with amount 1; a product already in
// the cart is incremented by one, which must not exceed the live stock.
// The returned cart is the one in effect when the operation finished.
func (e *Engine) AddProduct(ctx context.Context, productID int) (cart.Cart, error) {
	ctx, span := e.tracer.Start(ctx, "AddProduct", trace.WithAttributes(
		attribute.Int("app.product_id", productID),
	))
	defer span.End()

	e.opMu.Lock()
	defer e.opMu.Unlock()

	current := e.Cart()
	existing, inCart := current.Find(productID)

	stock, err := e.stock.GetStock(ctx, productID)
	if err != nil {
		return current, e.fail(ctx, OpAdd, productID, ErrStockQueryFailed, err)
	}

	amount := 1
	var next cart.Cart
	if inCart {
		amount = existing.Amount + 1
		if amount > stock.Amount {
			return current, e.fail(ctx, OpAdd, productID, ErrOutOfStock, nil)
		}
		next = current.WithAmount(productID, amount)
	} else {
		product, err := e.catalog.GetProduct(ctx, productID)
		if err == nil && product.ID != productID {
			err = errors.Errorf("catalog returned product %d", product.ID)
		}
		if err != nil {
			return current, e.fail(ctx, OpAdd, productID, ErrCatalogLookupFailed, err)
		}
		product.Amount = amount
		next = current.Append(product)
	}
	span.SetAttributes(attribute.Int("app.amount", amount))

	return e.commit(ctx, OpAdd, productID, current, next)
}

// RemoveProduct drops a product from the cart. No stock check is made.
func (e *Engine) RemoveProduct(ctx context.Context, productID int) (cart.Cart, error) {
	ctx, span := e.tracer.Start(ctx, "RemoveProduct", trace.WithAttributes(
		attribute.Int("app.product_id", productID),
	))
	defer span.End()

	e.opMu.Lock()
	defer e.opMu.Unlock()

	current := e.Cart()
	if _, ok := current.Find(productID); !ok {
		return current, e.fail(ctx, OpRemove, productID, ErrProductNotInCart, nil)
	}
	return e.commit(ctx, OpRemove, productID, current, current.Without(productID))
}

// UpdateProductAmount sets a product's amount to an absolute value.
//
// Amounts <= 0 are ignored without notification. An id that is not in the
// cart matches nothing and is likewise a silent no-op, but only after the
// stock check has passed.
func (e *Engine) UpdateProductAmount(ctx context.Context, u AmountUpdate) (cart.Cart, error) {
	ctx, span := e.tracer.Start(ctx, "UpdateProductAmount", trace.WithAttributes(
		attribute.Int("app.product_id", u.ProductID),
		attribute.Int("app.amount", u.Amount),
	))
	defer span.End()

	e.opMu.Lock()
	defer e.opMu.Unlock()

	current := e.Cart()
	if u.Amount <= 0 {
		e.skip(ctx, OpUpdate, u.ProductID, ErrInvalidAmount)
		return current, nil
	}

	stock, err := e.stock.GetStock(ctx, u.ProductID)
	if err != nil {
		return current, e.fail(ctx, OpUpdate, u.ProductID, ErrStockQueryFailed, err)
	}
	if u.Amount > stock.Amount {
		return current, e.fail(ctx, OpUpdate, u.ProductID, ErrOutOfStock, nil)
	}

	if _, ok := current.Find(u.ProductID); !ok {
		e.skip(ctx, OpUpdate, u.ProductID, ErrProductNotInCart)
		return current, nil
	}
	return e.commit(ctx, OpUpdate, u.ProductID, current, current.WithAmount(u.ProductID, u.Amount))
}

// commit persists next and, only once the write succeeded, makes it the
// current cart and publishes it. On failure current is returned unchanged.
func (e *Engine) commit(ctx context.Context, op Op, productID int, current, next cart.Cart) (cart.Cart, error) {
	data, err := cart.Marshal(next)
	if err == nil {
		err = e.store.Set(ctx, e.key, data)
	}
	if err != nil {
		return current, e.fail(ctx, op, productID, ErrPersistFailed, err)
	}

	e.mu.Lock()
	e.cart = next
	e.publishLocked(next)
	e.mu.Unlock()

	e.record(ctx, op, nil)
	e.log.WithFields(logrus.Fields{
		"op":         op,
		"product_id": productID,
		"products":   next.Len(),
		"quantity":   next.Quantity(),
	}).Debug("cart updated")
	return next, nil
}

// fail notifies the user and returns the operation error.
func (e *Engine) fail(ctx context.Context, op Op, productID int, kind, cause error) error {
	opErr := &OpError{
		Op:        op,
		ProductID: productID,
		Kind:      kind,
		Message:   message(op, kind),
		Err:       cause,
	}

	entry := e.log.WithFields(logrus.Fields{"op": op, "product_id": productID})
	switch kind {
	case ErrOutOfStock, ErrProductNotInCart:
		entry.Info(opErr.Error())
	default:
		entry.WithError(cause).Warn(opErr.Error())
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(opErr)
	span.SetStatus(codes.Error, kind.Error())
	e.record(ctx, op, kind)

	e.sink.Error(opErr.Message)
	return opErr
}

// skip records a silent no-op.
func (e *Engine) skip(ctx context.Context, op Op, productID int, reason error) {
	e.log.WithFields(logrus.Fields{"op": op, "product_id": productID}).Debugf("ignored: %v", reason)
	e.record(ctx, op, reason)
}

func (e *Engine) record(ctx context.Context, op Op, kind error) {
	result := resultLabel(kind)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.result", result))
	e.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", string(op)),
		attribute.String("result", result),
	))
}
