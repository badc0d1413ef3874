// Package api is the rate-limited client for the remote subscription API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/ratelimit"
)

const (
	// DefaultBaseURL is the production API host.
	DefaultBaseURL = "https://www.88code.org"
	// DefaultTimeout bounds each remote call.
	DefaultTimeout = 30 * time.Second

	subscriptionPath = "/api/subscription"
	usagePath        = "/api/usage"
	resetPath        = "/api/reset-credits/"

	maxBodySize = 4 << 20
	userAgent   = "credit-reset-dashboard"
)

// Observer is notified of client-side admission decisions.
type Observer interface {
	RateLimited()
}

// ResetResult is the server's report of a credit reset.
type ResetResult struct {
	NewCredits     *float64   `json:"newCredits,omitempty"`
	ResetAt        *time.Time `json:"resetAt,omitempty"`
	SubscriptionID int64      `json:"subscriptionId"`
}

type resetData struct {
	NewCredits     *float64 `json:"newCredits"`
	ResetAt        *string  `json:"resetAt"`
	SubscriptionID int64    `json:"subscriptionId"`
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithObserver registers an admission observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLocation sets the zone used for zone-less timestamps in responses.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc.Store(loc)
		}
	}
}

// Client calls the remote API through a shared token bucket.
type Client struct {
	httpClient *http.Client
	bucket     *ratelimit.Bucket
	observer   Observer
	log        *slog.Logger
	loc        atomic.Pointer[time.Location]
	baseURL    string
	timeout    time.Duration
}

// New creates a client. A nil bucket gets the default budget.
func New(cfg Config, bucket *ratelimit.Bucket, log *slog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if bucket == nil {
		bucket = ratelimit.New(ratelimit.DefaultCapacity, ratelimit.DefaultRefill, ratelimit.DefaultInterval)
	}

	c := &Client{
		httpClient: &http.Client{},
		bucket:     bucket,
		log:        logger.Or(log).With(slog.String("component", "api")),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
	}
	c.loc.Store(time.UTC)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLocation changes the zone used for zone-less timestamps.
func (c *Client) SetLocation(loc *time.Location) {
	if loc != nil {
		c.loc.Store(loc)
	}
}

// Bucket exposes the shared token bucket.
func (c *Client) Bucket() *ratelimit.Bucket {
	return c.bucket
}

// ListSubscriptions returns all subscriptions of the account behind apiKey.
func (c *Client) ListSubscriptions(ctx context.Context, apiKey string) ([]models.Subscription, error) {
	resp, err := c.do(ctx, subscriptionPath, apiKey)
	if err != nil {
		return nil, err
	}

	var subs []models.Subscription
	if err := decodePayload(resp, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// GetUsage returns the usage snapshot of the account behind apiKey.
func (c *Client) GetUsage(ctx context.Context, apiKey string) (*models.Usage, error) {
	resp, err := c.do(ctx, usagePath, apiKey)
	if err != nil {
		return nil, err
	}

	var usage models.Usage
	if err := decodePayload(resp, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

// ResetCredits resets one subscription. Success is decided from the
// envelope; the payload only supplies detail.
func (c *Client) ResetCredits(ctx context.Context, apiKey string, subscriptionID int64) (*ResetResult, error) {
	resp, err := c.do(ctx, resetPath+strconv.FormatInt(subscriptionID, 10), apiKey)
	if err != nil {
		return nil, err
	}

	result := &ResetResult{SubscriptionID: subscriptionID}
	if resp.Kind != KindEnvelope || len(resp.Envelope.Data) == 0 {
		return result, nil
	}

	var data resetData
	if err := json.Unmarshal(resp.Envelope.Data, &data); err != nil {
		c.log.Debug("reset payload ignored", slog.Int64("subscription_id", subscriptionID), logger.Err(err))
		return result, nil
	}
	result.NewCredits = data.NewCredits
	if data.ResetAt != nil {
		if t, err := models.ParseTimestamp(*data.ResetAt, c.loc.Load()); err == nil {
			result.ResetAt = &t
		}
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, path, apiKey string) (Response, error) {
	if !c.bucket.TryConsume() {
		if c.observer != nil {
			c.observer.RateLimited()
		}
		c.log.Warn("request rejected by rate limiter", slog.String("path", path))
		return Response{}, apperr.New(apperr.CodeRateLimited,
			"rate limit exceeded (%d requests per window), try again shortly", c.bucket.Capacity())
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, http.NoBody)
	if err != nil {
		return Response{}, apperr.Wrap(apperr.CodeInternal, err, "failed to create request")
	}
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, c.transportError(ctx, callCtx, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Error("failed to close response body", logger.Err(err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{}, c.transportError(ctx, callCtx, path, err)
	}

	normalized := Normalize(resp.StatusCode, body)
	c.log.Debug("request completed",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("kind", normalized.Kind.String()),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if normalized.Kind == KindEnvelope && normalized.Envelope.Message != "" {
			msg = normalized.Envelope.Message
		}
		return normalized, apiError(normalized, resp.StatusCode, msg)
	}

	if normalized.Kind == KindEnvelope && !normalized.Envelope.Succeeded() {
		msg := normalized.Envelope.Message
		if msg == "" {
			msg = "request rejected with code " + normalized.Envelope.CodeString()
		}
		return normalized, apiError(normalized, resp.StatusCode, msg)
	}

	return normalized, nil
}

func apiError(resp Response, status int, msg string) *apperr.Error {
	e := &apperr.Error{Code: apperr.CodeAPI, Message: msg, Status: status}
	if resp.Kind == KindEnvelope {
		e.RemoteCode = resp.Envelope.CodeString()
	}
	return e
}

// transportError classifies a failed exchange. Only the per-call deadline
// is a TIMEOUT; a done parent context means the caller gave up.
func (c *Client) transportError(parent, callCtx context.Context, path string, err error) error {
	if cause := parent.Err(); cause != nil {
		c.log.Warn("request abandoned by caller", slog.String("path", path), logger.Err(cause))
		return apperr.Wrap(apperr.CodeCanceled, err, "request canceled by caller: %v", cause)
	}
	var netErr net.Error
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.log.Warn("request timed out", slog.String("path", path), slog.Duration("timeout", c.timeout))
		return apperr.Wrap(apperr.CodeTimeout, err, "request timed out after %s", c.timeout)
	}
	c.log.Warn("request failed", slog.String("path", path), logger.Err(err))
	return apperr.Wrap(apperr.CodeNetwork, err, "network error")
}

func decodePayload(resp Response, v any) error {
	if resp.Sentinel() {
		return apperr.New(apperr.CodeParse, "response carried no payload (%s body)", resp.Kind)
	}
	if len(resp.Envelope.Data) == 0 {
		return apperr.New(apperr.CodeParse, "response envelope has no data")
	}
	if err := json.Unmarshal(resp.Envelope.Data, v); err != nil {
		return apperr.Wrap(apperr.CodeParse, err, "failed to decode response payload")
	}
	return nil
}
