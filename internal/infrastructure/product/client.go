// Package product reads listings from the product service.
package product

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/internal/infrastructure/payment"
)

const (
	productPath    = "/product/"
	maxErrorBody   = 512
	defaultTimeout = 5 * time.Second
)

type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(baseURL, secret string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProduct fetches {baseURL}/product/{id}. A 404 maps to domain.ErrNotFound.
func (c *Client) GetProduct(ctx context.Context, productID int64, identity *domain.Identity) (*domain.Product, error) {
	url := fmt.Sprintf("%s%s%d", c.baseURL, productPath, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build product request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(payment.HeaderServiceSecret, c.secret)
	if identity != nil {
		if identity.UserID != "" {
			req.Header.Set(payment.HeaderUserID, identity.UserID)
		}
		if identity.UserName != "" {
			req.Header.Set(payment.HeaderUserName, identity.UserName)
		}
		if len(identity.Roles) > 0 {
			req.Header.Set(payment.HeaderUserRoles, strings.Join(identity.Roles, ","))
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call product service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("product service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var product domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("decode product %d: %w", productID, err)
	}
	if product.ID == 0 {
		product.ID = productID
	}
	return &product, nil
}
