package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/norun9/rocketshoes-cart/cart"
	"github.com/norun9/rocketshoes-cart/engine"
	"github.com/norun9/rocketshoes-cart/notify"
)

// CartEngine is the part of *engine.Engine the HTTP API uses.
type CartEngine interface {
	Cart() cart.Cart
	Subscribe() *engine.Subscription
	AddProduct(ctx context.Context, productID int) (cart.Cart, error)
	RemoveProduct(ctx context.Context, productID int) (cart.Cart, error)
	UpdateProductAmount(ctx context.Context, u engine.AmountUpdate) (cart.Cart, error)
}

// CartService exposes the cart engine over HTTP.
type CartService struct {
	engine CartEngine
	feed   *notify.Feed
	log    logrus.FieldLogger

	// keepAlive is the interval of comment frames on the event stream.
	keepAlive time.Duration
}

// NewCartService constructor. feed may be nil, in which case the
// notifications route is not registered.
func NewCartService(e CartEngine, feed *notify.Feed, log logrus.FieldLogger) *CartService {
	return &CartService{
		engine:    e,
		feed:      feed,
		log:       log.WithField("component", "services.http"),
		keepAlive: 15 * time.Second,
	}
}

// Handler builds the router.
func (s *CartService) Handler(serviceName string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/_healthz", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "ok") })

	api := r.NewRoute().Subrouter()
	api.Use(otelmux.Middleware(serviceName))
	api.Use(requestLogger(s.log))
	api.HandleFunc("/cart", s.getCart).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/cart/events", s.streamCart).Methods(http.MethodGet)
	api.HandleFunc("/cart/products/{id}", s.addProduct).Methods(http.MethodPost)
	api.HandleFunc("/cart/products/{id}", s.removeProduct).Methods(http.MethodDelete)
	api.HandleFunc("/cart/products/{id}", s.updateProductAmount).Methods(http.MethodPut)
	if s.feed != nil {
		api.HandleFunc("/notifications", s.listNotifications).Methods(http.MethodGet)
	}
	return r
}

func (s *CartService) getCart(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.engine.Cart())
}

func (s *CartService) addProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	c, err := s.engine.AddProduct(r.Context(), id)
	s.respond(w, r, c, err)
}

func (s *CartService) removeProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	c, err := s.engine.RemoveProduct(r.Context(), id)
	s.respond(w, r, c, err)
}

func (s *CartService) updateProductAmount(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	var body struct {
		Amount *int `json:"amount"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil || body.Amount == nil {
		s.writeError(w, r, http.StatusBadRequest, "body must be {\"amount\": <integer>}")
		return
	}
	c, err := s.engine.UpdateProductAmount(r.Context(), engine.AmountUpdate{ProductID: id, Amount: *body.Amount})
	s.respond(w, r, c, err)
}

func (s *CartService) listNotifications(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	s.writeJSON(w, r, http.StatusOK, s.feed.Since(since))
}

// streamCart sends the current cart, then every published cart, as
// server-sent events until the client goes away.
func (s *CartService) streamCart(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sub := s.engine.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case c, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := cart.Marshal(c)
			if err != nil {
				logFor(r, s.log).WithError(err).Error("encode cart event")
				return
			}
			if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// respond writes the cart an operation left behind, or maps the engine
// error to a status code with the notification text as message.
func (s *CartService) respond(w http.ResponseWriter, r *http.Request, c cart.Cart, err error) {
	if err == nil {
		s.writeJSON(w, r, http.StatusOK, c)
		return
	}
	var opErr *engine.OpError
	if !errors.As(err, &opErr) {
		logFor(r, s.log).WithError(err).Error("unexpected engine error")
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeError(w, r, statusFor(opErr.Kind), opErr.Message)
}

func statusFor(kind error) int {
	switch kind {
	case engine.ErrOutOfStock:
		return http.StatusConflict
	case engine.ErrProductNotInCart:
		return http.StatusNotFound
	case engine.ErrStockQueryFailed, engine.ErrCatalogLookupFailed:
		return http.StatusBadGateway
	case engine.ErrPersistFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *CartService) productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "product id must be an integer")
		return 0, false
	}
	return id, true
}

type errorBody struct {
	Message string `json:"message"`
}

func (s *CartService) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	s.writeJSON(w, r, code, errorBody{Message: msg})
}

func (s *CartService) writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logFor(r, s.log).WithError(err).Warn("failed to write response")
	}
}
