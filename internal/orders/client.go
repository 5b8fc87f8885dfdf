// Package orders looks up order details in the external order system. The
// data only enriches notification texts; every caller must tolerate a miss.
package orders

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
)

// Order is the subset of order fields the notification templates use.
type Order struct {
	Number          string  `json:"order_number"`
	TotalPrice      float64 `json:"total_price"`
	ProductCount    int     `json:"product_count"`
	ProductArea     float64 `json:"product_area"`
	Zone            string  `json:"zone"`
	Measurer        string  `json:"measurer"`
	Address         string  `json:"address"`
	AgreementNumber string  `json:"agreement_number"`
	AgreementDate   string  `json:"agreement_date"`
	Phone           string  `json:"phone"`
}

// Client fetches orders over REST. A nil *Client reports every order as
// unknown, so an unconfigured deployment degrades to bare notifications.
type Client struct {
	http *resty.Client
	log  *logger.Logger
}

// NewClient creates an order-lookup client, or nil when the API is not
// configured.
func NewClient(cfg config.OrdersConfig, log *logger.Logger) *Client {
	if !cfg.IsOrdersEnabled() {
		return nil
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.GetOrdersAPIURL(), "/")).
		SetTimeout(5 * time.Second).
		SetHeader("Accept", "application/json")
	if key := cfg.GetOrdersAPIKey(); key != "" {
		httpClient.SetHeader("X-API-Key", key)
	}

	return &Client{http: httpClient, log: log}
}

// GetOrder fetches one order by its code. An unknown code is (nil, nil).
func (c *Client) GetOrder(ctx context.Context, code string) (*Order, error) {
	if c == nil {
		return nil, nil
	}

	var order Order
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&order).
		SetPathParam("code", code).
		Get("/api/orders/{code}")
	if err != nil {
		return nil, fmt.Errorf("order lookup failed: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("order service returned %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}

	return &order, nil
}
