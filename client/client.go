// Package client talks to the storefront API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/83west/storefront/core/cart"
	"github.com/83west/storefront/core/checkout"
	"github.com/83west/storefront/core/product"
)

// Error is a failure answered by the storefront. Message is the server's
// error text and may be empty.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storefront: status %d", e.Status)
	}
	return fmt.Sprintf("storefront: status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewWithHTTP uses hc for every request, for instance an httptest client.
func NewWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var eb struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&eb)
		return &Error{Status: resp.StatusCode, Message: eb.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) Products(ctx context.Context, availableOnly bool) ([]product.Product, error) {
	var q url.Values
	if availableOnly {
		q = url.Values{"available": {"true"}}
	}

	var ps []product.Product
	if err := c.do(ctx, http.MethodGet, "/products", q, nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *Client) Product(ctx context.Context, id int) (product.Product, error) {
	var p product.Product
	err := c.do(ctx, http.MethodGet, "/products/"+strconv.Itoa(id), nil, nil, &p)
	return p, err
}

func (c *Client) CreateCart(ctx context.Context) (cart.Cart, error) {
	var ct cart.Cart
	err := c.do(ctx, http.MethodPost, "/carts", nil, nil, &ct)
	return ct, err
}

func (c *Client) Cart(ctx context.Context, cartID string) (cart.Cart, error) {
	var ct cart.Cart
	err := c.do(ctx, http.MethodGet, cartPath(cartID), nil, nil, &ct)
	return ct, err
}

func (c *Client) AddItem(ctx context.Context, cartID string, productID int, quantity int) (cart.Cart, error) {
	in := cart.ItemNew{ProductID: productID, Quantity: &quantity}

	var ct cart.Cart
	err := c.do(ctx, http.MethodPut, cartPath(cartID)+"/items", nil, in, &ct)
	return ct, err
}

func (c *Client) SetQuantity(ctx context.Context, cartID string, productID int, quantity int) (cart.Cart, error) {
	in := cart.QuantityUp{Quantity: &quantity}

	var ct cart.Cart
	err := c.do(ctx, http.MethodPut, itemPath(cartID, productID), nil, in, &ct)
	return ct, err
}

func (c *Client) RemoveItem(ctx context.Context, cartID string, productID int) (cart.Cart, error) {
	var ct cart.Cart
	err := c.do(ctx, http.MethodDelete, itemPath(cartID, productID), nil, nil, &ct)
	return ct, err
}

func (c *Client) ClearCart(ctx context.Context, cartID string) (cart.Cart, error) {
	var ct cart.Cart
	err := c.do(ctx, http.MethodDelete, cartPath(cartID), nil, nil, &ct)
	return ct, err
}

func (c *Client) ToggleCart(ctx context.Context, cartID string) (cart.Cart, error) {
	var ct cart.Cart
	err := c.do(ctx, http.MethodPost, cartPath(cartID)+"/toggle", nil, nil, &ct)
	return ct, err
}

// CreateSession checks out lines the caller holds itself.
func (c *Client) CreateSession(ctx context.Context, lines []cart.Line) (checkout.Session, error) {
	items := make([]checkout.Item, len(lines))
	for i, l := range lines {
		items[i] = checkout.Item{Line: l}
	}

	var s checkout.Session
	err := c.do(ctx, http.MethodPost, "/checkout/sessions", nil, checkout.Request{CartItems: items}, &s)
	return s, err
}

// CheckoutCart checks out the cart stored on the server.
func (c *Client) CheckoutCart(ctx context.Context, cartID string) (checkout.Session, error) {
	var s checkout.Session
	err := c.do(ctx, http.MethodPost, cartPath(cartID)+"/checkout", nil, nil, &s)
	return s, err
}

func (c *Client) CheckoutConfig(ctx context.Context) (checkout.PublicConfig, error) {
	var pub checkout.PublicConfig
	err := c.do(ctx, http.MethodGet, "/checkout/config", nil, nil, &pub)
	return pub, err
}

func cartPath(cartID string) string {
	return "/carts/" + url.PathEscape(cartID)
}

func itemPath(cartID string, productID int) string {
	return cartPath(cartID) + "/items/" + strconv.Itoa(productID)
}
