package loyalty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/loyalty-shop/internal/cart"
	"github.com/noah-isme/loyalty-shop/internal/obs"
	"github.com/noah-isme/loyalty-shop/internal/resilience"
)

const maxResponseBytes = 1 << 20

// Options configures a Client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Timeout        time.Duration
	GetMaxAttempts int
	RetryBackoff   time.Duration
	Breaker        *resilience.Breaker
	Logger         zerolog.Logger
	Metrics        *obs.ClientMetrics
}

// Client talks to the loyalty backend over its JSON HTTP contract. The
// backend session lives in the client's cookie jar.
type Client struct {
	baseURL string
	http    resilience.HTTPClient
	logger  zerolog.Logger
	metrics *obs.ClientMetrics
}

// New constructs a Client. When no http.Client is supplied one is built with
// an OpenTelemetry transport; a cookie jar is always attached.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("loyalty: base url is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	} else {
		copied := *hc
		hc = &copied
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("loyalty: cookie jar: %w", err)
		}
		hc.Jar = jar
	}
	return &Client{
		baseURL: base,
		http: resilience.HTTPClient{
			Client:      hc,
			Breaker:     opts.Breaker,
			Timeout:     opts.Timeout,
			MaxAttempts: opts.GetMaxAttempts,
			BaseBackoff: opts.RetryBackoff,
			Jitter:      0.2,
		},
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// Login opens a backend session for the customer.
func (c *Client) Login(ctx context.Context, customerID string) error {
	var env envelope
	if err := c.do(ctx, "login", http.MethodPost, PathLogin, loginRequest{CustomerID: customerID}, nil, &env); err != nil {
		return err
	}
	if env.Success == nil || !*env.Success {
		msg := errorMessage(env.Error)
		if msg == "" {
			msg = "login failed"
		}
		return &Error{Kind: KindValidation, Op: "login", Status: http.StatusOK, Message: msg}
	}
	return nil
}

// Logout closes the backend session.
func (c *Client) Logout(ctx context.Context) error {
	var env envelope
	if err := c.do(ctx, "logout", http.MethodGet, PathLogout, nil, nil, &env); err != nil {
		return err
	}
	if env.Success == nil || !*env.Success {
		return &Error{Kind: KindValidation, Op: "logout", Status: http.StatusOK, Message: "logout failed"}
	}
	return nil
}

// Products lists the catalog.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out productsResponse
	if err := c.do(ctx, "products", http.MethodGet, PathProducts, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Products == nil {
		return []Product{}, nil
	}
	return out.Products, nil
}

// Checkout submits the selected product ids. idempotencyKey is sent as the
// Idempotency-Key header when non-empty.
func (c *Client) Checkout(ctx context.Context, ids []cart.ProductID, idempotencyKey string) (CheckoutResult, error) {
	if ids == nil {
		ids = []cart.ProductID{}
	}
	headers := map[string]string{}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		headers["Idempotency-Key"] = key
	}
	var out CheckoutResult
	if err := c.do(ctx, "checkout", http.MethodPost, PathCheckout, checkoutRequest{ProductIDs: ids}, headers, &out); err != nil {
		return CheckoutResult{}, err
	}
	if out.TotalPointsEarned == "" {
		return CheckoutResult{}, &Error{Kind: KindTransport, Op: "checkout", Status: http.StatusOK, Message: "malformed checkout response"}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any, headers map[string]string, out any) error {
	start := time.Now()
	status, err := c.roundTrip(ctx, op, method, path, payload, headers, out)
	outcome := "ok"
	evt := c.logger.Debug()
	if err != nil {
		outcome = "rejected"
		if IsTransport(err) {
			outcome = "transport"
		}
		evt = c.logger.Warn().Err(err)
		var lerr *Error
		if errors.As(err, &lerr) && lerr.Err != nil {
			evt = evt.AnErr("cause", lerr.Err)
		}
	}
	c.metrics.Observe(op, outcome, time.Since(start))
	evt.Str("endpoint", op).
		Str("method", method).
		Int("status", status).
		Str("outcome", outcome).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("loyalty_request")
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload any, headers map[string]string, out any) (int, error) {
	ctx = resilience.WithEndpoint(ctx, op)
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, &Error{Kind: KindTransport, Op: op, Message: "encode request", Err: err}
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, &Error{Kind: KindTransport, Op: op, Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, transportError(op, err)
	}

	var env envelope
	envErr := json.Unmarshal(raw, &env)
	if msg := errorMessage(env.Error); envErr == nil && msg != "" {
		return resp.StatusCode, &Error{Kind: KindValidation, Op: op, Status: resp.StatusCode, Message: msg}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &Error{
			Kind:    KindTransport,
			Op:      op,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("unexpected status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}
	if envErr != nil {
		return resp.StatusCode, &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Message: "malformed " + op + " response", Err: envErr}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Message: "malformed " + op + " response", Err: err}
		}
	}
	return resp.StatusCode, nil
}

func transportError(op string, err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, resilience.ErrOpenCircuit):
		msg = "loyalty service temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		msg = "loyalty service did not respond in time"
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	case isUnreachable(err):
		msg = "loyalty service unreachable"
	}
	return &Error{Kind: KindTransport, Op: op, Message: msg, Err: err}
}

func isUnreachable(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
