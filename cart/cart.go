// Package cart holds the cart data model shared by the engine, the stores and
// the HTTP surfaces.
package cart

// StorageKey is the fixed key the whole cart is persisted under.
const StorageKey = "@RocketShoes:cart"

// Product is a purchasable item. Amount is the quantity held in the cart and is
// the only field the engine changes; the rest is display metadata.
type Product struct {
	ID     int     `json:"id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
	Amount int     `json:"amount"`
}

// Stock is the available inventory for one product as reported by the stock API.
type Stock struct {
	ProductID int `json:"id"`
	Amount    int `json:"amount"`
}

// Cart is an ordered list of products, unique by id, in first-add order.
//
// A Cart is a value: every method that changes contents returns a new Cart and
// leaves the receiver untouched, so snapshots handed to subscribers never
// alias the engine's state.
type Cart struct {
	items []Product
}

// New builds a cart from products, keeping the first occurrence of each id and
// dropping entries whose amount is below one.
func New(products ...Product) Cart {
	items := make([]Product, 0, len(products))
	seen := make(map[int]struct{}, len(products))
	for _, p := range products {
		if p.Amount < 1 {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		items = append(items, p)
	}
	return Cart{items: items}
}

// Len returns the number of distinct products.
func (c Cart) Len() int { return len(c.items) }

// Products returns a copy of the cart contents.
func (c Cart) Products() []Product {
	out := make([]Product, len(c.items))
	copy(out, c.items)
	return out
}

// Find returns the product with the given id.
func (c Cart) Find(productID int) (Product, bool) {
	if i := c.index(productID); i >= 0 {
		return c.items[i], true
	}
	return Product{}, false
}

// Append returns a cart with p added at the end. If p.ID is already present the
// cart is returned unchanged.
func (c Cart) Append(p Product) Cart {
	if c.index(p.ID) >= 0 {
		return c
	}
	items := make([]Product, len(c.items), len(c.items)+1)
	copy(items, c.items)
	return Cart{items: append(items, p)}
}

// WithAmount returns a cart where the product with the given id has its amount
// set to amount. Ids not present leave the cart unchanged.
func (c Cart) WithAmount(productID, amount int) Cart {
	i := c.index(productID)
	if i < 0 {
		return c
	}
	items := c.Products()
	items[i].Amount = amount
	return Cart{items: items}
}

// Without returns a cart with the product removed.
func (c Cart) Without(productID int) Cart {
	i := c.index(productID)
	if i < 0 {
		return c
	}
	items := make([]Product, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)
	return Cart{items: items}
}

// Quantity is the total number of units across all products.
func (c Cart) Quantity() int {
	n := 0
	for _, p := range c.items {
		n += p.Amount
	}
	return n
}

func (c Cart) index(productID int) int {
	for i, p := range c.items {
		if p.ID == productID {
			return i
		}
	}
	return -1
}
