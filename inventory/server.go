package inventory

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/norun9/rocketshoes-cart/cart"
)

// Server serves a Fixture over the same routes Client calls.
type Server struct {
	fixture *Fixture
	log     logrus.FieldLogger
}

// NewServer constructor
func NewServer(f *Fixture, log logrus.FieldLogger) *Server {
	return &Server{fixture: f, log: log.WithField("component", "inventory.server")}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("inventoryapi"))
	r.HandleFunc("/products", s.listProducts).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/products/{id:[0-9]+}", s.getProduct).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/stock/{id:[0-9]+}", s.getStock).Methods(http.MethodGet, http.MethodHead)
	return r
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products := s.fixture.Products
	if products == nil {
		products = []cart.Product{}
	}
	s.writeJSON(w, http.StatusOK, products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	p, ok := s.fixture.product(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) getStock(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	st, ok := s.fixture.stock(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}
