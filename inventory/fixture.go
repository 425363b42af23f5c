package inventory

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/norun9/rocketshoes-cart/cart"
)

// Fixture is the data served by Server, in the db.json layout:
//
//	{"products": [{"id": 1, "title": "...", ...}], "stock": [{"id": 1, "amount": 3}]}
type Fixture struct {
	Products []cart.Product `json:"products"`
	Stock    []cart.Stock   `json:"stock"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fixture")
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parse fixture %s", path)
	}
	return &f, nil
}

func (f *Fixture) product(id int) (cart.Product, bool) {
	for _, p := range f.Products {
		if p.ID == id {
			return p, true
		}
	}
	return cart.Product{}, false
}

func (f *Fixture) stock(id int) (cart.Stock, bool) {
	for _, s := range f.Stock {
		if s.ProductID == id {
			return s, true
		}
	}
	return cart.Stock{}, false
}

func itoa(id int) string { return strconv.Itoa(id) }
