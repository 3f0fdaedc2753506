// Package provider is the HTTP client for a Cognito-compatible identity
// provider speaking the JSON 1.1 protocol, plus the bootstrap resolver that
// finds the pool metadata.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fzdarsky/hiveauth/internal/auth"
	"github.com/fzdarsky/hiveauth/internal/logging"
	"github.com/fzdarsky/hiveauth/pkg/cognito"
)

const (
	// DefaultTimeout bounds every provider call.
	DefaultTimeout = 10 * time.Second

	defaultMaxRetries     = 3
	defaultInitialBackoff = 250 * time.Millisecond
	maxBackoff            = 2 * time.Second
	maxResponseBytes      = 1 << 20
)

var _ auth.IdentityProvider = (*Client)(nil)

// Client is an HTTP client for the identity provider API.
type Client struct {
	endpoint       string
	httpClient     *http.Client
	logger         *logging.Logger
	maxRetries     int
	initialBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the regional endpoint, for example to target a fake provider.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetry sets how many times a call whose connection could not be
// established is retried, and the first backoff delay.
func WithRetry(maxRetries int, initialBackoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.initialBackoff = initialBackoff
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Endpoint returns the regional API endpoint.
func Endpoint(region string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", region)
}

// New creates a client for the given region.
func New(region string, opts ...Option) (*Client, error) {
	c := &Client{
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
	}
	if region != "" {
		c.endpoint = Endpoint(region)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" {
		return nil, fmt.Errorf("region or endpoint is required")
	}
	return c, nil
}

// InitiateAuth starts an authentication flow.
func (c *Client) InitiateAuth(ctx context.Context, in *cognito.InitiateAuthInput) (*cognito.AuthOutput, error) {
	var out cognito.AuthOutput
	if err := c.call(ctx, cognito.OpInitiateAuth, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RespondToAuthChallenge answers a challenge.
func (c *Client) RespondToAuthChallenge(ctx context.Context, in *cognito.RespondToAuthChallengeInput) (*cognito.AuthOutput, error) {
	var out cognito.AuthOutput
	if err := c.call(ctx, cognito.OpRespondToAuthChallenge, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmDevice stores a device verifier.
func (c *Client) ConfirmDevice(ctx context.Context, in *cognito.ConfirmDeviceInput) (*cognito.ConfirmDeviceOutput, error) {
	var out cognito.ConfirmDeviceOutput
	if err := c.call(ctx, cognito.OpConfirmDevice, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDeviceStatus sets the remembered status of a device.
func (c *Client) UpdateDeviceStatus(ctx context.Context, in *cognito.UpdateDeviceStatusInput) error {
	return c.call(ctx, cognito.OpUpdateDeviceStatus, in, nil)
}

// ForgetDevice removes a device.
func (c *Client) ForgetDevice(ctx context.Context, in *cognito.ForgetDeviceInput) error {
	return c.call(ctx, cognito.OpForgetDevice, in, nil)
}

// call posts one operation. Provider rejections come back as *cognito.ProviderError.
// Only failures to establish the connection are retried: the request was
// never sent, so the SRP values it carries were never seen by the provider.
func (c *Client) call(ctx context.Context, op string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	backoff := c.initialBackoff
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", cognito.ContentType)
		req.Header.Set(cognito.HeaderTarget, cognito.TargetPrefix+op)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isDialError(err) && attempt < c.maxRetries {
				c.logger.Warn("connection failed, retrying", map[string]any{
					"operation": op,
					"attempt":   attempt + 1,
					"backoff":   backoff.String(),
					"error":     err.Error(),
				})
				if werr := sleep(ctx, backoff); werr != nil {
					return fmt.Errorf("%s request failed: %w", op, werr)
				}
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			return fmt.Errorf("%s request failed: %w", op, err)
		}

		return c.handleResponse(op, resp, out)
	}
}

func (c *Client) handleResponse(op string, resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode >= 400 {
		perr := cognito.DecodeError(resp.StatusCode, resp.Header.Get(cognito.HeaderErrorType), respBytes)
		c.logger.Debug("provider rejected request", map[string]any{
			"operation": op,
			"type":      perr.Code(),
			"status":    perr.StatusCode,
		})
		return perr
	}

	if out == nil || len(bytes.TrimSpace(respBytes)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("failed to parse %s response (invalid JSON): %w", op, err)
	}
	return nil
}

// isDialError reports whether err happened while establishing the connection.
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
