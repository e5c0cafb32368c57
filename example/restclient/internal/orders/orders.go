package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/kroma-labs/sentinel-rest/httpclient"
)

// Order is the resource served by the orders backend.
type Order struct {
	ID        int64     `json:"id"`
	Customer  string    `json:"customer"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is a typed wrapper over the REST client. Calls are retried on the
// caller side for transient failures only.
type Service struct {
	client *httpclient.Client
	retry  httpclient.RetryConfig
}

// NewService wraps client.
func NewService(client *httpclient.Client) *Service {
	return &Service{
		client: client,
		retry:  httpclient.ConservativeRetryConfig(),
	}
}

// List returns up to limit orders with the given status.
func (s *Service) List(ctx context.Context, status string, limit int) ([]Order, error) {
	resp, err := httpclient.Retry(ctx, s.retry, func(ctx context.Context) (*httpclient.ParsedResponse, error) {
		return s.client.Get(ctx, "/orders", map[string]any{
			"status": status,
			"limit":  limit,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	var out []Order
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return out, nil
}

// Create posts a new order. It is not retried: the backend offers no
// idempotency key.
func (s *Service) Create(ctx context.Context, customer string, amount float64) (*Order, error) {
	resp, err := s.client.Post(ctx, "/orders", map[string]any{
		"customer": customer,
		"amount":   amount,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var out Order
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &out, nil
}

// Cancel marks an order as cancelled. A missing order is not an error.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	_, err := httpclient.Retry(ctx, s.retry, func(ctx context.Context) (*httpclient.ParsedResponse, error) {
		return s.client.Patch(ctx, fmt.Sprintf("/orders/%d", id), map[string]any{"status": "cancelled"}, nil)
	})
	if err != nil && !errors.Is(err, httpclient.ErrNotFound) {
		return fmt.Errorf("cancel order %d: %w", id, err)
	}
	return nil
}
