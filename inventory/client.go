package inventory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/norun9/rocketshoes-cart/cart"
)

// maxBodyBytes caps how much of a response body is decoded.
const maxBodyBytes = 1 << 20

// Client is an HTTP client for the stock and product endpoints:
//
//	GET {base}/stock/{id}    -> {"id": 1, "amount": 3}
//	GET {base}/products/{id} -> {"id": 1, "title": "...", "price": 179.9, "image": "..."}
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client rooted at baseURL. Requests are traced through
// otelhttp and bounded by timeout when it is positive.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// NewClientWithHTTP uses hc as is.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

// GetStock implements StockOracle.
func (c *Client) GetStock(ctx context.Context, productID int) (cart.Stock, error) {
	var stock cart.Stock
	if err := c.getJSON(ctx, "/stock/"+itoa(productID), &stock); err != nil {
		return cart.Stock{}, errors.Wrapf(err, "get stock %d", productID)
	}
	if stock.ProductID == 0 {
		stock.ProductID = productID
	}
	if stock.Amount < 0 {
		stock.Amount = 0
	}
	return stock, nil
}

// GetProduct implements ProductCatalog. A 404 or an empty body maps to
// ErrProductNotFound.
func (c *Client) GetProduct(ctx context.Context, productID int) (cart.Product, error) {
	var product *cart.Product
	err := c.getJSON(ctx, "/products/"+itoa(productID), &product)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return cart.Product{}, errors.Wrapf(ErrProductNotFound, "get product %d", productID)
	}
	if err != nil {
		return cart.Product{}, errors.Wrapf(err, "get product %d", productID)
	}
	if product == nil || product.ID == 0 {
		return cart.Product{}, errors.Wrapf(ErrProductNotFound, "get product %d", productID)
	}
	return *product, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{Method: req.Method, URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}
