// Package ssoclient is the client half of the SSO handoff, intended for the
// cPanel backend-for-frontend. It redeems a ticket against the auth service
// and forwards the Set-Cookie response.
package ssoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/authwave/authwave/internal/retry"
)

var (
	// ErrTicketGone indicates the ticket was already redeemed, expired, or
	// never existed. Not retryable: a second attempt can only ever fail too.
	ErrTicketGone = errors.New("ssoclient: ticket gone")

	// ErrRedeemFailed covers every other non-2xx response
	ErrRedeemFailed = errors.New("ssoclient: redeem failed")
)

// Developer is the public profile returned on successful redemption
type Developer struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}

// Client redeems SSO tickets against an auth service instance
type Client struct {
	baseURL string
	http    *retry.Client
}

// New builds a client for the auth service at baseURL. Network failures and
// 5xx responses are retried; 410 is final because redemption burns the
// ticket server-side whether or not the response arrived.
func New(baseURL string, opts ...retry.Option) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    retry.NewClient(opts...),
	}
}

// Result carries the redeemed developer and the cookies the auth service set,
// for the caller to forward to the browser.
type Result struct {
	Developer *Developer
	Cookies   []*http.Cookie
}

// Redeem exchanges a ticket for the developer it was issued to
func (c *Client) Redeem(ctx context.Context, ticket string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"ticket": ticket})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/cpanel/redeem-ticket",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusGone:
		return nil, ErrTicketGone
	default:
		return nil, fmt.Errorf("%w: status %d", ErrRedeemFailed, resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Developer *Developer `json:"developer"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Data.Developer == nil {
		return nil, ErrRedeemFailed
	}

	return &Result{Developer: payload.Data.Developer, Cookies: resp.Cookies()}, nil
}

// WithTimeout is a convenience retry option bundle for interactive redemption:
// the browser is waiting, so total time stays well under the ticket TTL.
func WithTimeout(perRequest time.Duration) []retry.Option {
	return []retry.Option{
		retry.WithHTTPClient(&http.Client{Timeout: perRequest}),
		retry.WithMaxRetries(2),
	}
}
