package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/norun9/rocketshoes-cart/cart"
	"github.com/norun9/rocketshoes-cart/cartstore"
	"github.com/norun9/rocketshoes-cart/inventory"
)

type fakeStock struct {
	mu     sync.Mutex
	amount map[int]int
	err    error
	calls  int
}

func (f *fakeStock) GetStock(ctx context.Context, productID int) (cart.Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return cart.Stock{}, f.err
	}
	return cart.Stock{ProductID: productID, Amount: f.amount[productID]}, nil
}

type fakeCatalog struct {
	products map[int]cart.Product
	err      error
	calls    int
}

func (f *fakeCatalog) GetProduct(ctx context.Context, productID int) (cart.Product, error) {
	f.calls++
	if f.err != nil {
		return cart.Product{}, f.err
	}
	p, ok := f.products[productID]
	if !ok {
		return cart.Product{}, inventory.ErrProductNotFound
	}
	return p, nil
}

type recordingSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSink) Error(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// failingStore fails every Set while failSet is true.
type failingStore struct {
	cartstore.ICartStore
	failSet bool
	failGet bool
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGet {
		return nil, false, errors.New("disk unavailable")
	}
	return f.ICartStore.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errors.New("quota exceeded")
	}
	return f.ICartStore.Set(ctx, key, value)
}

type harness struct {
	engine  *Engine
	store   *cartstore.LocalCartStore
	stock   *fakeStock
	catalog *fakeCatalog
	sink    *recordingSink
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

var catalogProducts = map[int]cart.Product{
	1: {ID: 1, Title: "Tênis de Caminhada Leve Confortável", Price: 179.9, Image: "tenis1.jpg"},
	2: {ID: 2, Title: "Tênis VR Caminhada Confortável Detalhes Couro Masculino", Price: 139.9, Image: "tenis2.jpg"},
	3: {ID: 3, Title: "Tênis Adidas Duramo Lite 2.0", Price: 219.9, Image: "tenis3.jpg"},
}

// newHarness builds an engine whose store already holds initial.
func newHarness(t *testing.T, stock map[int]int, initial ...cart.Product) *harness {
	t.Helper()
	ctx := context.Background()
	store := cartstore.NewLocalCartStore(quietLogger())
	if len(initial) > 0 {
		data, err := cart.Marshal(cart.New(initial...))
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Set(ctx, cart.StorageKey, data); err != nil {
			t.Fatal(err)
		}
	}
	h := &harness{
		store:   store,
		stock:   &fakeStock{amount: stock},
		catalog: &fakeCatalog{products: catalogProducts},
		sink:    &recordingSink{},
	}
	e, err := New(ctx, Options{
		Store:   store,
		Stock:   h.stock,
		Catalog: h.catalog,
		Sink:    h.sink,
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.engine = e
	return h
}

// stored decodes what is currently persisted.
func (h *harness) stored(t *testing.T) []cart.Product {
	t.Helper()
	data, found, err := h.store.Get(context.Background(), cart.StorageKey)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if !found {
		return []cart.Product{}
	}
	c, err := cart.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return c.Products()
}

// assertConsistent checks that memory matches the store.
func (h *harness) assertConsistent(t *testing.T) {
	t.Helper()
	if diff := cmp.Diff(h.engine.Cart().Products(), h.stored(t)); diff != "" {
		t.Errorf("memory and store disagree (-memory +store):\n%s", diff)
	}
}

func with(id, amount int) cart.Product {
	p := catalogProducts[id]
	p.Amount = amount
	return p
}

func TestAddNewProduct(t *testing.T) {
	h := newHarness(t, map[int]int{1: 3})

	if _, err := h.engine.AddProduct(context.Background(), 1); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	want := []cart.Product{with(1, 1)}
	if diff := cmp.Diff(want, h.engine.Cart().Products()); diff != "" {
		t.Errorf("cart mismatch (-want +got):\n%s", diff)
	}
	h.assertConsistent(t)
	if msgs := h.sink.all(); len(msgs) != 0 {
		t.Errorf("unexpected notifications %v", msgs)
	}
}

func TestAddExistingIncrementsByOne(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5}, with(1, 2))

	if _, err := h.engine.AddProduct(context.Background(), 1); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	want := []cart.Product{with(1, 3)}
	if diff := cmp.Diff(want, h.engine.Cart().Products()); diff != "" {
		t.Errorf("cart mismatch (-want +got):\n%s", diff)
	}
	h.assertConsistent(t)
	if h.catalog.calls != 0 {
		t.Errorf("catalog called %d times for a product already in the cart", h.catalog.calls)
	}
}

func TestAddExistingOutOfStock(t *testing.T) {
	h := newHarness(t, map[int]int{1: 2}, with(1, 2))
	before := h.engine.Cart().Products()

	_, err := h.engine.AddProduct(context.Background(), 1)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("AddProduct error = %v, want ErrOutOfStock", err)
	}

	if diff := cmp.Diff(before, h.engine.Cart().Products()); diff != "" {
		t.Errorf("cart changed (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff([]string{MsgOutOfStock}, h.sink.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	h.assertConsistent(t)
}

func TestAddNewProductIgnoresStockLevel(t *testing.T) {
	h := newHarness(t, map[int]int{3: 0})

	got, err := h.engine.AddProduct(context.Background(), 3)
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	want := []cart.Product{with(3, 1)}
	if diff := cmp.Diff(want, got.Products()); diff != "" {
		t.Errorf("returned cart mismatch (-want +got):\n%s", diff)
	}
	h.assertConsistent(t)
	if h.catalog.calls != 1 {
		t.Errorf("catalog called %d times, want 1", h.catalog.calls)
	}
	if msgs := h.sink.all(); len(msgs) != 0 {
		t.Errorf("unexpected notifications %v", msgs)
	}

	// The second unit is checked against stock.
	if _, err := h.engine.AddProduct(context.Background(), 3); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("second AddProduct error = %v, want ErrOutOfStock", err)
	}
}

func TestAddStockQueryFails(t *testing.T) {
	h := newHarness(t, nil, with(1, 1))
	h.stock.err = errors.New("connection refused")

	_, err := h.engine.AddProduct(context.Background(), 1)
	if !errors.Is(err, ErrStockQueryFailed) {
		t.Fatalf("AddProduct error = %v, want ErrStockQueryFailed", err)
	}
	if !errors.Is(err, h.stock.err) {
		t.Errorf("cause not preserved: %v", err)
	}
	if diff := cmp.Diff([]string{MsgAddFailed}, h.sink.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]cart.Product{with(1, 1)}, h.engine.Cart().Products()); diff != "" {
		t.Errorf("cart changed:\n%s", diff)
	}
}

func TestAddCatalogMiss(t *testing.T) {
	h := newHarness(t, map[int]int{42: 10})

	_, err := h.engine.AddProduct(context.Background(), 42)
	if !errors.Is(err, ErrCatalogLookupFailed) {
		t.Fatalf("AddProduct error = %v, want ErrCatalogLookupFailed", err)
	}
	if !errors.Is(err, inventory.ErrProductNotFound) {
		t.Errorf("cause not preserved: %v", err)
	}
	if diff := cmp.Diff([]string{MsgAddFailed}, h.sink.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	if _, found, _ := h.store.Get(context.Background(), cart.StorageKey); found {
		t.Error("store written on failed add")
	}
}

func TestAddCatalogReturnsWrongProduct(t *testing.T) {
	h := newHarness(t, map[int]int{7: 10})
	h.catalog.products = map[int]cart.Product{7: {ID: 8, Title: "other"}}

	if _, err := h.engine.AddProduct(context.Background(), 7); !errors.Is(err, ErrCatalogLookupFailed) {
		t.Fatalf("AddProduct error = %v, want ErrCatalogLookupFailed", err)
	}
}

func TestAddKeepsInsertionOrder(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5, 2: 5, 3: 5})
	ctx := context.Background()

	for _, id := range []int{2, 1, 2, 3} {
		if _, err := h.engine.AddProduct(ctx, id); err != nil {
			t.Fatalf("AddProduct(%d): %v", id, err)
		}
	}

	want := []cart.Product{with(2, 2), with(1, 1), with(3, 1)}
	if diff := cmp.Diff(want, h.engine.Cart().Products()); diff != "" {
		t.Errorf("cart mismatch (-want +got):\n%s", diff)
	}
	h.assertConsistent(t)
}

func TestAddNeverExceedsStock(t *testing.T) {
	h := newHarness(t, map[int]int{1: 3})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, _ = h.engine.AddProduct(ctx, 1)
	}

	if p, _ := h.engine.Cart().Find(1); p.Amount != 3 {
		t.Errorf("amount = %d, want 3", p.Amount)
	}
	if got := len(h.sink.all()); got != 3 {
		t.Errorf("got %d notifications, want 3", got)
	}
	h.assertConsistent(t)
}

func TestRemoveProduct(t *testing.T) {
	h := newHarness(t, nil, with(1, 1))

	if _, err := h.engine.RemoveProduct(context.Background(), 1); err != nil {
		t.Fatalf("RemoveProduct: %v", err)
	}
	if h.engine.Cart().Len() != 0 {
		t.Errorf("cart = %v, want empty", h.engine.Cart().Products())
	}
	h.assertConsistent(t)
	if h.stock.calls != 0 {
		t.Error("stock consulted on removal")
	}
}

func TestRemoveKeepsOthers(t *testing.T) {
	h := newHarness(t, nil, with(1, 1), with(2, 4), with(3, 2))

	if _, err := h.engine.RemoveProduct(context.Background(), 2); err != nil {
		t.Fatalf("RemoveProduct: %v", err)
	}
	want := []cart.Product{with(1, 1), with(3, 2)}
	if diff := cmp.Diff(want, h.engine.Cart().Products()); diff != "" {
		t.Errorf("cart mismatch (-want +got):\n%s", diff)
	}
	h.assertConsistent(t)
}

func TestRemoveMissingProduct(t *testing.T) {
	h := newHarness(t, nil, with(1, 1))

	_, err := h.engine.RemoveProduct(context.Background(), 2)
	if !errors.Is(err, ErrProductNotInCart) {
		t.Fatalf("RemoveProduct error = %v, want ErrProductNotInCart", err)
	}
	if diff := cmp.Diff([]string{MsgRemoveFailed}, h.sink.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]cart.Product{with(1, 1)}, h.engine.Cart().Products()); diff != "" {
		t.Errorf("cart changed:\n%s", diff)
	}
}

func TestRemoveTwice(t *testing.T) {
	h := newHarness(t, nil, with(1, 1), with(2, 1))
	ctx := context.Background()

	if _, err := h.engine.RemoveProduct(ctx, 1); err != nil {
		t.Fatalf("first RemoveProduct: %v", err)
	}
	afterFirst := h.stored(t)

	if _, err := h.engine.RemoveProduct(ctx, 1); !errors.Is(err, ErrProductNotInCart) {
		t.Fatalf("second RemoveProduct error = %v, want ErrProductNotInCart", err)
	}
	if diff := cmp.Diff(afterFirst, h.stored(t)); diff != "" {
		t.Errorf("second remove touched the store:\n%s", diff)
	}
	if got := len(h.sink.all()); got != 1 {
		t.Errorf("got %d notifications, want 1", got)
	}
	h.assertConsistent(t)
}

func TestUpdateSetsAbsoluteAmount(t *testing.T) {
	h := newHarness(t, map[int]int{1: 10}, with(1, 3))

	if _, err := h.engine.UpdateProductAmount(context.Background(), AmountUpdate{ProductID: 1, Amount: 10}); err != nil {
		t.Fatalf("UpdateProductAmount: %v", err)
	}
	if diff := cmp.Diff([]cart.Product{with(1, 10)}, h.engine.Cart().Products()); diff != "" {
		t.Errorf("cart mismatch (-want +got):\n%s", diff)
	}
	h.assertConsistent(t)
}

func TestUpdateNonPositiveIsSilentNoop(t *testing.T) {
	for _, amount := range []int{0, -1, -100} {
		h := newHarness(t, map[int]int{2: 10}, with(2, 3))

		if _, err := h.engine.UpdateProductAmount(context.Background(), AmountUpdate{ProductID: 2, Amount: amount}); err != nil {
			t.Errorf("amount %d: error = %v, want nil", amount, err)
		}
		if diff := cmp.Diff([]cart.Product{with(2, 3)}, h.engine.Cart().Products()); diff != "" {
			t.Errorf("amount %d: cart changed:\n%s", amount, diff)
		}
		if msgs := h.sink.all(); len(msgs) != 0 {
			t.Errorf("amount %d: notifications %v", amount, msgs)
		}
		if h.stock.calls != 0 {
			t.Errorf("amount %d: stock consulted", amount)
		}
	}
}

func TestUpdateOutOfStock(t *testing.T) {
	h := newHarness(t, map[int]int{1: 4}, with(1, 2))

	_, err := h.engine.UpdateProductAmount(context.Background(), AmountUpdate{ProductID: 1, Amount: 5})
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("error = %v, want ErrOutOfStock", err)
	}
	if diff := cmp.Diff([]string{MsgOutOfStock}, h.sink.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	if p, _ := h.engine.Cart().Find(1); p.Amount != 2 {
		t.Errorf("amount = %d, want 2", p.Amount)
	}
}

func TestUpdateStockQueryFails(t *testing.T) {
	h := newHarness(t, nil, with(1, 2))
	h.stock.err = errors.New("timeout")

	_, err := h.engine.UpdateProductAmount(context.Background(), AmountUpdate{ProductID: 1, Amount: 1})
	if !errors.Is(err, ErrStockQueryFailed) {
		t.Fatalf("error = %v, want ErrStockQueryFailed", err)
	}
	if diff := cmp.Diff([]string{MsgUpdateFailed}, h.sink.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateMissingProductIsNoop(t *testing.T) {
	h := newHarness(t, map[int]int{1: 10, 9: 10}, with(1, 2))

	if _, err := h.engine.UpdateProductAmount(context.Background(), AmountUpdate{ProductID: 9, Amount: 3}); err != nil {
		t.Fatalf("error = %v, want nil", err)
	}
	if diff := cmp.Diff([]cart.Product{with(1, 2)}, h.engine.Cart().Products()); diff != "" {
		t.Errorf("cart changed:\n%s", diff)
	}
	if msgs := h.sink.all(); len(msgs) != 0 {
		t.Errorf("notifications %v", msgs)
	}
}

func TestPersistFailureLeavesCartUnchanged(t *testing.T) {
	ctx := context.Background()
	local := cartstore.NewLocalCartStore(quietLogger())
	store := &failingStore{ICartStore: local, failSet: true}
	sink := &recordingSink{}
	e, err := New(ctx, Options{
		Store:   store,
		Stock:   &fakeStock{amount: map[int]int{1: 5}},
		Catalog: &fakeCatalog{products: catalogProducts},
		Sink:    sink,
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	sub := e.Subscribe()
	defer sub.Close()
	<-sub.C()

	_, err = e.AddProduct(ctx, 1)
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("AddProduct error = %v, want ErrPersistFailed", err)
	}
	if e.Cart().Len() != 0 {
		t.Error("cart changed although the write failed")
	}
	if diff := cmp.Diff([]string{MsgAddFailed}, sink.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	select {
	case c := <-sub.C():
		t.Errorf("published %v after failed write", c.Products())
	default:
	}
}

func TestNewRestoresFromStore(t *testing.T) {
	h := newHarness(t, nil, with(3, 2), with(1, 1))

	want := []cart.Product{with(3, 2), with(1, 1)}
	if diff := cmp.Diff(want, h.engine.Cart().Products()); diff != "" {
		t.Errorf("restored cart mismatch (-want +got):\n%s", diff)
	}
}

func TestNewWithUnreadableRecord(t *testing.T) {
	ctx := context.Background()
	store := cartstore.NewLocalCartStore(quietLogger())
	_ = store.Set(ctx, cart.StorageKey, []byte("{broken"))

	e, err := New(ctx, Options{Store: store, Stock: &fakeStock{}, Catalog: &fakeCatalog{}, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Cart().Len() != 0 {
		t.Errorf("cart = %v, want empty", e.Cart().Products())
	}
}

func TestNewWithFailingStoreRead(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{ICartStore: cartstore.NewLocalCartStore(quietLogger()), failGet: true}

	e, err := New(ctx, Options{Store: store, Stock: &fakeStock{}, Catalog: &fakeCatalog{}, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Cart().Len() != 0 {
		t.Error("expected empty cart")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Error("expected error without collaborators")
	}
}

func TestRestartSeesPersistedCart(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5, 2: 5})
	ctx := context.Background()
	_, _ = h.engine.AddProduct(ctx, 1)
	_, _ = h.engine.AddProduct(ctx, 2)
	_, _ = h.engine.AddProduct(ctx, 1)

	restarted, err := New(ctx, Options{Store: h.store, Stock: h.stock, Catalog: h.catalog, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(h.engine.Cart().Products(), restarted.Cart().Products()); diff != "" {
		t.Errorf("restarted cart mismatch (-before +after):\n%s", diff)
	}
}

func TestSnapshotsAreImmutable(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5}, with(1, 1))
	snapshot := h.engine.Cart()

	if _, err := h.engine.AddProduct(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if p, _ := snapshot.Find(1); p.Amount != 1 {
		t.Errorf("earlier snapshot changed to amount %d", p.Amount)
	}
}

func TestSubscribersSeeCommittedCarts(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5})
	ctx := context.Background()

	sub := h.engine.Subscribe()
	if got := <-sub.C(); got.Len() != 0 {
		t.Fatalf("initial delivery = %v, want empty", got.Products())
	}

	if _, err := h.engine.AddProduct(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if got := <-sub.C(); got.Len() != 1 {
		t.Fatalf("after add = %v", got.Products())
	}

	// A rejected operation publishes nothing.
	_, _ = h.engine.RemoveProduct(ctx, 99)
	select {
	case c := <-sub.C():
		t.Fatalf("unexpected publish %v", c.Products())
	default:
	}

	sub.Close()
	sub.Close()
	if _, ok := <-sub.C(); ok {
		t.Error("channel not closed")
	}
	if n := h.engine.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d after Close", n)
	}
}

func TestSlowSubscriberGetsLatest(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5})
	ctx := context.Background()
	sub := h.engine.Subscribe()
	defer sub.Close()

	for i := 0; i < 3; i++ {
		if _, err := h.engine.AddProduct(ctx, 1); err != nil {
			t.Fatal(err)
		}
	}

	got := <-sub.C()
	if p, _ := got.Find(1); p.Amount != 3 {
		t.Errorf("pending cart amount = %d, want 3", p.Amount)
	}
}

func TestOperationsAreSerialized(t *testing.T) {
	h := newHarness(t, map[int]int{1: 50})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.engine.AddProduct(ctx, 1)
		}()
	}
	wg.Wait()

	if p, _ := h.engine.Cart().Find(1); p.Amount != 20 {
		t.Errorf("amount = %d, want 20", p.Amount)
	}
	h.assertConsistent(t)
}

func TestSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx := context.Background()
	store := cartstore.NewLocalCartStore(quietLogger())

	e, err := New(ctx, Options{
		Store:          store,
		Stock:          &fakeStock{amount: map[int]int{1: 1}},
		Catalog:        &fakeCatalog{products: catalogProducts},
		Sink:           &recordingSink{},
		Logger:         quietLogger(),
		TracerProvider: tp,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = e.AddProduct(ctx, 1)
	_, _ = e.AddProduct(ctx, 1)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	results := []string{}
	for _, s := range spans {
		if s.Name() != "AddProduct" {
			t.Errorf("span name = %q", s.Name())
		}
		for _, kv := range s.Attributes() {
			if kv.Key == "app.result" {
				results = append(results, kv.Value.AsString())
			}
		}
	}
	if diff := cmp.Diff([]string{"ok", "out_of_stock"}, results); diff != "" {
		t.Errorf("span results mismatch (-want +got):\n%s", diff)
	}
}

func TestOpErrorMessage(t *testing.T) {
	err := &OpError{Op: OpAdd, ProductID: 4, Kind: ErrOutOfStock, Message: MsgOutOfStock}
	if got := err.Error(); got != "cart: addProduct 4: out of stock" {
		t.Errorf("Error() = %q", got)
	}
	var opErr *OpError
	if !errors.As(error(err), &opErr) || opErr.Message != MsgOutOfStock {
		t.Error("errors.As failed")
	}
}

func TestOperationsReturnCommittedCart(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5, 2: 5}, with(1, 1))
	ctx := context.Background()

	got, err := h.engine.AddProduct(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]cart.Product{with(1, 1), with(2, 1)}, got.Products()); diff != "" {
		t.Errorf("AddProduct cart mismatch (-want +got):\n%s", diff)
	}

	// Later operations do not change a cart already handed out.
	if _, err := h.engine.RemoveProduct(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 {
		t.Errorf("returned cart changed to %v", got.Products())
	}

	got, err = h.engine.UpdateProductAmount(ctx, AmountUpdate{ProductID: 2, Amount: 4})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]cart.Product{with(2, 4)}, got.Products()); diff != "" {
		t.Errorf("UpdateProductAmount cart mismatch (-want +got):\n%s", diff)
	}

	got, err = h.engine.RemoveProduct(ctx, 99)
	if !errors.Is(err, ErrProductNotInCart) {
		t.Fatalf("RemoveProduct error = %v", err)
	}
	if diff := cmp.Diff([]cart.Product{with(2, 4)}, got.Products()); diff != "" {
		t.Errorf("failed op should return the unchanged cart (-want +got):\n%s", diff)
	}
}
