package cart

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Marshal encodes the cart as the persisted record: a JSON array of products.
// An empty cart encodes as [] rather than null.
func Marshal(c Cart) ([]byte, error) {
	items := c.items
	if items == nil {
		items = []Product{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, errors.Wrap(err, "encode cart record")
	}
	return data, nil
}

// Unmarshal decodes a persisted record. An empty or null record is an empty
// cart. The decoded list goes through New, so a hand-edited record cannot
// smuggle duplicate ids or zero amounts into the engine.
func Unmarshal(data []byte) (Cart, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Cart{}, nil
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return Cart{}, errors.Wrap(err, "decode cart record")
	}
	return New(products...), nil
}

// MarshalJSON lets a Cart be written directly in API responses.
func (c Cart) MarshalJSON() ([]byte, error) {
	return Marshal(c)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Cart) UnmarshalJSON(data []byte) error {
	decoded, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}
