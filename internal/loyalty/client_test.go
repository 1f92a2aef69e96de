package loyalty_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loyalty-shop/internal/cart"
	"github.com/noah-isme/loyalty-shop/internal/loyalty"
	"github.com/noah-isme/loyalty-shop/internal/obs"
	"github.com/noah-isme/loyalty-shop/internal/resilience"
	"github.com/noah-isme/loyalty-shop/internal/stubserver"
)

func newStub(t *testing.T) (*stubserver.Server, string) {
	t.Helper()
	srv, err := stubserver.New(stubserver.Config{})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

func newClient(t *testing.T, baseURL string, opts ...func(*loyalty.Options)) *loyalty.Client {
	t.Helper()
	o := loyalty.Options{BaseURL: baseURL, HTTPClient: &http.Client{}, Timeout: 2 * time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	c, err := loyalty.New(o)
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := loyalty.New(loyalty.Options{})
	require.Error(t, err)
}

func TestLoginProductsCheckout(t *testing.T) {
	_, url := newStub(t)
	c := newClient(t, url)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "1"))

	products, err := c.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, cart.ProductID(1), products[0].ID)
	require.Equal(t, json.Number("1200"), products[0].Price)

	res, err := c.Checkout(ctx, []cart.ProductID{2, 77}, "k-1")
	require.NoError(t, err)
	require.Equal(t, json.Number("15.99"), res.TotalPointsEarned)
	require.Equal(t, []cart.ProductID{77}, res.InvalidProducts)
	require.Empty(t, res.ProductsMissingCategory)
	require.True(t, res.HasWarnings())

	require.NoError(t, c.Logout(ctx))
	_, err = c.Checkout(ctx, []cart.ProductID{2}, "k-2")
	require.Error(t, err)
	require.True(t, loyalty.IsValidation(err))
	require.Equal(t, "Not logged in", err.Error())
}

func TestLoginFailureSurfacesBackendMessage(t *testing.T) {
	_, url := newStub(t)
	c := newClient(t, url)

	err := c.Login(context.Background(), "999")
	require.Error(t, err)
	require.True(t, loyalty.IsValidation(err))
	require.Equal(t, "Customer not found", err.Error())

	var lerr *loyalty.Error
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, "login", lerr.Op)
	require.Equal(t, http.StatusNotFound, lerr.Status)
}

func TestLoginSuccessFalseOnOK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	t.Cleanup(ts.Close)

	err := newClient(t, ts.URL).Login(context.Background(), "1")
	require.Error(t, err)
	require.True(t, loyalty.IsValidation(err))
	require.Equal(t, "login failed", err.Error())
}

func TestCheckoutServiceErrorKeepsMessage(t *testing.T) {
	srv, url := newStub(t)
	c := newClient(t, url)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, "1"))

	srv.FailNext(loyalty.PathCheckout, http.StatusServiceUnavailable, "service unavailable")
	_, err := c.Checkout(ctx, []cart.ProductID{5, 9}, "k")
	require.Error(t, err)
	require.Equal(t, "service unavailable", err.Error())
}

func TestErrorObjectDecodesMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"bad_ids","message":"product ids required"}}`))
	}))
	t.Cleanup(ts.Close)

	_, err := newClient(t, ts.URL).Checkout(context.Background(), nil, "")
	require.Error(t, err)
	require.True(t, loyalty.IsValidation(err))
	require.Equal(t, "product ids required", err.Error())
}

func TestMalformedCheckoutResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"invalid_products":[1]}`))
	}))
	t.Cleanup(ts.Close)

	_, err := newClient(t, ts.URL).Checkout(context.Background(), []cart.ProductID{1}, "")
	require.Error(t, err)
	require.True(t, loyalty.IsTransport(err))
	require.Equal(t, "malformed checkout response", err.Error())
}

func TestNonJSONErrorStatusIsTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(ts.Close)

	_, err := newClient(t, ts.URL).Products(context.Background())
	require.Error(t, err)
	require.True(t, loyalty.IsTransport(err))
	require.Contains(t, err.Error(), "unexpected status 502")
}

func TestCheckoutSendsIdempotencyKey(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Idempotency-Key")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		require.Equal(t, []any{}, body["product_ids"])
		_, _ = w.Write([]byte(`{"total_points_earned":0}`))
	}))
	t.Cleanup(ts.Close)

	res, err := newClient(t, ts.URL).Checkout(context.Background(), nil, "abc-123")
	require.NoError(t, err)
	require.Equal(t, "abc-123", got)
	require.Equal(t, json.Number("0"), res.TotalPointsEarned)
}

func TestTimeoutIsTransport(t *testing.T) {
	srv, url := newStub(t)
	srv.SetDelay(300 * time.Millisecond)
	c := newClient(t, url, func(o *loyalty.Options) { o.Timeout = 50 * time.Millisecond })

	_, err := c.Products(context.Background())
	require.Error(t, err)
	require.True(t, loyalty.IsTransport(err))
	require.Equal(t, "loyalty service did not respond in time", err.Error())
}

func TestUnreachableBackendIsTransport(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newClient(t, url).Checkout(context.Background(), []cart.ProductID{5, 9}, "k")
	require.Error(t, err)
	require.True(t, loyalty.IsTransport(err))
	require.Equal(t, "loyalty service unreachable", err.Error())

	var lerr *loyalty.Error
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, "checkout", lerr.Op)
	require.Error(t, lerr.Err)
}

func TestOpenBreakerIsTransport(t *testing.T) {
	br := resilience.NewBreaker(1, 0.5, time.Minute)
	br.Report(context.Background(), false)
	_, url := newStub(t)
	c := newClient(t, url, func(o *loyalty.Options) { o.Breaker = br })

	_, err := c.Products(context.Background())
	require.Error(t, err)
	require.True(t, loyalty.IsTransport(err))
	require.Equal(t, "loyalty service temporarily unavailable", err.Error())
}

func TestBreakerRecordsTrippingEndpoint(t *testing.T) {
	br := resilience.NewBreaker(1, 0.5, time.Minute)
	srv, url := newStub(t)
	c := newClient(t, url, func(o *loyalty.Options) { o.Breaker = br })
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, "1"))

	srv.FailNext(loyalty.PathCheckout, http.StatusServiceUnavailable, "service unavailable")
	_, err := c.Checkout(ctx, []cart.ProductID{1}, "k")
	require.Error(t, err)
	require.Equal(t, resilience.Open, br.State())
	require.Equal(t, "checkout", br.TrippedBy())
}

func TestRequestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := obs.NewClientMetrics("test", reg)
	srv, url := newStub(t)
	c := newClient(t, url, func(o *loyalty.Options) { o.Metrics = m })
	ctx := context.Background()

	_, err := c.Products(ctx)
	require.NoError(t, err)
	srv.FailNext(loyalty.PathProducts, http.StatusServiceUnavailable, "down")
	_, err = c.Products(ctx)
	require.Error(t, err)

	require.Equal(t, float64(1), testutil.ToFloat64(m.ReqTotal.WithLabelValues("products", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.ReqTotal.WithLabelValues("products", "rejected")))
}
