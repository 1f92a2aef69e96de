package shop_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/noah-isme/loyalty-shop/internal/cart"
	"github.com/noah-isme/loyalty-shop/internal/catalog"
	"github.com/noah-isme/loyalty-shop/internal/checkout"
	"github.com/noah-isme/loyalty-shop/internal/events"
	"github.com/noah-isme/loyalty-shop/internal/loyalty"
	"github.com/noah-isme/loyalty-shop/internal/session"
	"github.com/noah-isme/loyalty-shop/internal/shop"
	"github.com/noah-isme/loyalty-shop/internal/stubserver"
	"github.com/noah-isme/loyalty-shop/internal/view"
)

// harness wires a controller to a stub backend served over HTTP.
type harness struct {
	backend *stubserver.Server
	server  *httptest.Server
	cart    *cart.Cart
	screen  *view.Screen
	manager *checkout.Manager
	ctrl    *shop.Controller
}

func newHarness(store *stubserver.Store) (*harness, error) {
	backend, err := stubserver.New(stubserver.Config{Store: store})
	if err != nil {
		return nil, err
	}
	ts := httptest.NewServer(backend)
	client, err := loyalty.New(loyalty.Options{
		BaseURL:    ts.URL,
		HTTPClient: &http.Client{},
		Timeout:    2 * time.Second,
	})
	if err != nil {
		ts.Close()
		return nil, err
	}
	bus := &events.Bus{Notifiers: []events.Notifier{events.MetricsNotifier{}}}
	c := cart.New()
	screen := view.NewScreen()
	manager := checkout.NewManager(checkout.Config{Cart: c, Submitter: client, Bus: bus})
	ctrl := shop.New(shop.Config{
		Session:  session.New(session.Config{Backend: client, Cart: c, Bus: bus}),
		Catalog:  catalog.NewService(catalog.ServiceConfig{Source: client}),
		Cart:     c,
		Checkout: manager,
		Screen:   screen,
		Bus:      bus,
	})
	return &harness{backend: backend, server: ts, cart: c, screen: screen, manager: manager, ctrl: ctrl}, nil
}

func newTestHarness(t *testing.T, store *stubserver.Store) *harness {
	t.Helper()
	h, err := newHarness(store)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.close)
	return h
}

func (h *harness) close() {
	h.server.Close()
}

// pointsStore seeds a store whose products 5 and 9 earn 20 and 10 points.
func pointsStore() *stubserver.Store {
	s := stubserver.NewStore()
	s.AddAccount(stubserver.Account{CustomerID: 1, Name: "John Doe"})
	s.AddCategory(1, "Electronics")
	s.AddCategory(2, "Books")
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	s.AddRule(stubserver.Rule{CategoryID: 1, PointsPerDollar: 2, StartDate: start})
	s.AddRule(stubserver.Rule{CategoryID: 2, PointsPerDollar: 1, StartDate: start})
	s.AddProduct(stubserver.ProductSeed{ID: 5, Name: "Headphones", PriceCents: 10_00, CategoryID: 1})
	s.AddProduct(stubserver.ProductSeed{ID: 9, Name: "Paperback", PriceCents: 10_00, CategoryID: 2})
	return s
}
