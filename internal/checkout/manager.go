// Package checkout submits the cart to the loyalty backend and applies the
// reset-on-success policy.
package checkout

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/loyalty-shop/internal/cart"
	"github.com/noah-isme/loyalty-shop/internal/events"
	"github.com/noah-isme/loyalty-shop/internal/loyalty"
	"github.com/noah-isme/loyalty-shop/internal/obs"
)

// ErrInFlight is returned when a checkout is requested while another one is
// still awaiting the backend.
var ErrInFlight = errors.New("checkout already in progress")

// State is the externally visible checkout state.
type State int32

const (
	Idle State = iota
	AwaitingCheckout
)

func (s State) String() string {
	if s == AwaitingCheckout {
		return "awaiting_checkout"
	}
	return "idle"
}

// Submitter sends the selected ids to the backend.
type Submitter interface {
	Checkout(ctx context.Context, ids []cart.ProductID, idempotencyKey string) (loyalty.CheckoutResult, error)
}

// Config groups Manager dependencies.
type Config struct {
	Cart      *cart.Cart
	Submitter Submitter
	Bus       *events.Bus
	Logger    zerolog.Logger
	NewKey    func() string
}

// Manager runs checkouts for one cart. At most one checkout is in flight.
type Manager struct {
	cart      *cart.Cart
	submitter Submitter
	bus       *events.Bus
	logger    zerolog.Logger
	newKey    func() string
	state     atomic.Int32
}

// NewManager constructs a Manager.
func NewManager(cfg Config) *Manager {
	newKey := cfg.NewKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	return &Manager{
		cart:      cfg.Cart,
		submitter: cfg.Submitter,
		bus:       cfg.Bus,
		logger:    cfg.Logger,
		newKey:    newKey,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Checkout snapshots the cart and submits it. Any successful response resets
// the cart, warnings included. On error the cart is untouched.
func (m *Manager) Checkout(ctx context.Context) (Outcome, error) {
	if !m.state.CompareAndSwap(int32(Idle), int32(AwaitingCheckout)) {
		obs.ObserveCheckout("in_flight")
		return Outcome{}, ErrInFlight
	}
	defer m.state.Store(int32(Idle))

	ctx, span := otel.Tracer("checkout.Manager").Start(ctx, "Manager.Checkout")
	defer span.End()

	items := m.cart.Items()
	key := m.newKey()
	span.SetAttributes(
		attribute.Int("checkout.items", len(items)),
		attribute.String("checkout.idempotency_key", key),
	)

	start := time.Now()
	res, err := m.submitter.Checkout(ctx, items, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.emit(ctx, events.TopicCheckoutFailed, events.CheckoutFailed{
			ProductIDs: toInt64s(items),
			Kind:       errorKind(err),
			Reason:     err.Error(),
		})
		m.logger.Warn().Err(err).
			Int("items", len(items)).
			Dur("elapsed", time.Since(start)).
			Msg("checkout_failed")
		return Outcome{}, err
	}

	m.cart.Reset()
	out := Outcome{
		Points:          res.TotalPointsEarned.String(),
		InvalidProducts: res.InvalidProducts,
		MissingCategory: res.ProductsMissingCategory,
	}
	span.SetAttributes(
		attribute.String("checkout.points", out.Points),
		attribute.Int("checkout.invalid_products", len(out.InvalidProducts)),
		attribute.Int("checkout.missing_category", len(out.MissingCategory)),
	)
	m.emit(ctx, events.TopicCheckoutSucceeded, events.CheckoutSucceeded{
		Points:          out.Points,
		ProductIDs:      toInt64s(items),
		InvalidProducts: toInt64s(out.InvalidProducts),
		MissingCategory: toInt64s(out.MissingCategory),
	})
	m.logger.Info().
		Int("items", len(items)).
		Str("points", out.Points).
		Int("invalid_products", len(out.InvalidProducts)).
		Int("missing_category", len(out.MissingCategory)).
		Dur("elapsed", time.Since(start)).
		Msg("checkout_succeeded")
	return out, nil
}

func (m *Manager) emit(ctx context.Context, topic string, payload any) {
	if _, err := m.bus.Emit(ctx, topic, payload); err != nil {
		m.logger.Warn().Err(err).Str("topic", topic).Msg("event_emit_failed")
	}
}

func errorKind(err error) string {
	var lerr *loyalty.Error
	if errors.As(err, &lerr) {
		return lerr.Kind.String()
	}
	return "unknown"
}

func toInt64s(ids []cart.ProductID) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
