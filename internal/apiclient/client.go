// Package apiclient talks to the order service REST API on behalf of the
// terminal views.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"restaurant-system/internal/models"
)

// RemoteError is a non-2xx answer from the order service
type RemoteError struct {
	StatusCode int
	Detail     string
	Field      string
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("order service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("order service returned %d: %s", e.StatusCode, e.Detail)
}

// IsStatus reports whether err is a RemoteError with the given status code
func IsStatus(err error, code int) bool {
	var rerr *RemoteError
	return errors.As(err, &rerr) && rerr.StatusCode == code
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy of the client that sends token as a bearer credential
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) Token() string {
	return c.token
}

func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Menu(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := c.do(ctx, http.MethodGet, "/menu", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) Tables(ctx context.Context) ([]int, error) {
	var resp models.TablesResponse
	if err := c.do(ctx, http.MethodGet, "/tables", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tables, nil
}

func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	var order models.Order
	path := "/orders/" + url.PathEscape(orderID)
	if err := c.do(ctx, http.MethodPut, path, models.UpdateStatusRequest{Status: status}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) Order(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Orders lists all orders, newest first
func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	return c.orders(ctx, "/orders")
}

// DepartmentOrders lists the active orders of dept with items filtered to it
func (c *Client) DepartmentOrders(ctx context.Context, dept models.Department) ([]models.Order, error) {
	return c.orders(ctx, "/orders/"+url.PathEscape(string(dept)))
}

func (c *Client) TableOrders(ctx context.Context, table int) ([]models.Order, error) {
	return c.orders(ctx, fmt.Sprintf("/orders/table/%d", table))
}

func (c *Client) History(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	var history []models.OrderStatusHistory
	path := "/orders/" + url.PathEscape(orderID) + "/history"
	if err := c.do(ctx, http.MethodGet, path, nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (c *Client) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := c.do(ctx, http.MethodGet, "/dashboard/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) orders(ctx context.Context, path string) ([]models.Order, error) {
	var orders []models.Order
	if err := c.do(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeRemoteError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeRemoteError(resp *http.Response) error {
	rerr := &RemoteError{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
		Field  string `json:"field"`
	}
	if json.Unmarshal(data, &body) == nil {
		rerr.Detail = body.Error
		if rerr.Detail == "" {
			rerr.Detail = body.Detail
		}
		rerr.Field = body.Field
	}
	if rerr.Detail == "" {
		rerr.Detail = strings.TrimSpace(string(data))
	}
	return rerr
}
