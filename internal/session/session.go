// Package session tracks the logged-in customer and ties the cart lifecycle
// to it.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/loyalty-shop/internal/cart"
	"github.com/noah-isme/loyalty-shop/internal/events"
	"github.com/noah-isme/loyalty-shop/internal/obs"
)

// ErrInvalidCustomerID is returned when the customer id is empty or not a
// positive integer.
var ErrInvalidCustomerID = errors.New("customer id must be a number")

// Backend is the part of the loyalty client the session drives.
type Backend interface {
	Login(ctx context.Context, customerID string) error
	Logout(ctx context.Context) error
}

// Config groups Session dependencies.
type Config struct {
	Backend Backend
	Cart    *cart.Cart
	Bus     *events.Bus
	Logger  zerolog.Logger
}

// Session is the client-side view of the backend session.
type Session struct {
	backend  Backend
	cart     *cart.Cart
	bus      *events.Bus
	logger   zerolog.Logger
	validate *validator.Validate

	mu         sync.RWMutex
	customerID string
}

// New constructs a logged-out session.
func New(cfg Config) *Session {
	return &Session{
		backend:  cfg.Backend,
		cart:     cfg.Cart,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		validate: validator.New(),
	}
}

// Login validates the id and opens a backend session. A successful login
// starts a fresh cart.
func (s *Session) Login(ctx context.Context, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if err := s.validate.Var(customerID, "required,number"); err != nil {
		obs.ObserveSession("login", "invalid")
		return ErrInvalidCustomerID
	}
	if err := s.backend.Login(ctx, customerID); err != nil {
		obs.ObserveSession("login", "failed")
		s.logger.Warn().Err(err).Str("customer_id", customerID).Msg("login_failed")
		return err
	}

	s.mu.Lock()
	s.customerID = customerID
	s.mu.Unlock()
	if s.cart != nil {
		s.cart.Reset()
	}
	s.emit(ctx, events.TopicSessionLoggedIn, customerID)
	s.logger.Info().Str("customer_id", customerID).Msg("logged_in")
	return nil
}

// Logout closes the backend session and clears the cart. On failure the
// session and cart are left as they were.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.backend.Logout(ctx); err != nil {
		obs.ObserveSession("logout", "failed")
		s.logger.Warn().Err(err).Msg("logout_failed")
		return err
	}
	s.mu.Lock()
	customerID := s.customerID
	s.customerID = ""
	s.mu.Unlock()
	if s.cart != nil {
		s.cart.Reset()
	}
	s.emit(ctx, events.TopicSessionLoggedOut, customerID)
	s.logger.Info().Str("customer_id", customerID).Msg("logged_out")
	return nil
}

// CustomerID returns the logged-in customer, or "" when logged out.
func (s *Session) CustomerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customerID
}

// LoggedIn reports whether a customer is logged in.
func (s *Session) LoggedIn() bool {
	return s.CustomerID() != ""
}

// Context tags ctx with the logged-in customer for request logs.
func (s *Session) Context(ctx context.Context) context.Context {
	if id := s.CustomerID(); id != "" {
		return obs.WithCustomerID(ctx, id)
	}
	return ctx
}

func (s *Session) emit(ctx context.Context, topic, customerID string) {
	if _, err := s.bus.Emit(ctx, topic, events.SessionChanged{CustomerID: customerID}); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Msg("event_emit_failed")
	}
}
