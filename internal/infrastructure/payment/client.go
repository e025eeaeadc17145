// Package payment calls the payment service that charges auction winners.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"auction-bidding/internal/domain"
)

const (
	HeaderServiceSecret = "X-Service-Secret"
	HeaderUserID        = "X-Auth-User-Id"
	HeaderUserName      = "X-Auth-User-Name"
	HeaderUserRoles     = "X-Auth-User-Roles"

	paymentsPath   = "/payments"
	maxErrorBody   = 512
	defaultTimeout = 5 * time.Second
)

type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client, e.g. to install a stub transport.
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

// CreatePayment posts req to {baseURL}/payments. Any non-2xx answer is an error.
func (c *Client) CreatePayment(ctx context.Context, req *domain.PaymentRequest, identity *domain.Identity) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+paymentsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderServiceSecret, c.secret)
	if identity != nil {
		if identity.UserID != "" {
			httpReq.Header.Set(HeaderUserID, identity.UserID)
		}
		if identity.UserName != "" {
			httpReq.Header.Set(HeaderUserName, identity.UserName)
		}
		if len(identity.Roles) > 0 {
			httpReq.Header.Set(HeaderUserRoles, strings.Join(identity.Roles, ","))
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call payment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("payment service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
