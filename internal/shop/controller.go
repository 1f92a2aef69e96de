// Package shop drives the loyalty shop from text commands.
package shop

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/loyalty-shop/internal/cart"
	"github.com/noah-isme/loyalty-shop/internal/catalog"
	"github.com/noah-isme/loyalty-shop/internal/checkout"
	"github.com/noah-isme/loyalty-shop/internal/events"
	"github.com/noah-isme/loyalty-shop/internal/obs"
	"github.com/noah-isme/loyalty-shop/internal/session"
	"github.com/noah-isme/loyalty-shop/internal/view"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

// HelpText lists the available commands.
const HelpText = `Commands:
  login <customer_id>   log in to the loyalty shop
  logout                log out and clear the cart
  products              reload the product list
  add <product_id>      add a product to the cart
  cart                  show the cart
  checkout              submit the cart and earn points
  help                  show this help
  quit                  exit`

// Config groups Controller dependencies.
type Config struct {
	Session  *session.Session
	Catalog  *catalog.Service
	Cart     *cart.Cart
	Checkout *checkout.Manager
	Screen   *view.Screen
	Bus      *events.Bus
	Logger   zerolog.Logger
}

// Controller maps commands onto the shop components and writes their results
// to the screen.
type Controller struct {
	session  *session.Session
	catalog  *catalog.Service
	cart     *cart.Cart
	checkout *checkout.Manager
	screen   *view.Screen
	bus      *events.Bus
	logger   zerolog.Logger
}

// New constructs a Controller and subscribes the screen to cart changes.
func New(cfg Config) *Controller {
	c := &Controller{
		session:  cfg.Session,
		catalog:  cfg.Catalog,
		cart:     cfg.Cart,
		checkout: cfg.Checkout,
		screen:   cfg.Screen,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
	}
	c.cart.Subscribe(c.screen.RenderCart)
	c.screen.RenderCart(c.cart.Items())
	return c
}

// Exec runs one command line. Failures are written to the screen; the only
// error returned is ErrQuit.
func (c *Controller) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	ctx = c.session.Context(ctx)

	switch cmd {
	case "login":
		if len(args) != 1 {
			c.screen.ShowError("usage: login <customer_id>")
			return nil
		}
		c.login(ctx, args[0])
	case "logout":
		c.logout(ctx)
	case "products":
		if c.requireLogin() {
			c.loadProducts(ctx)
		}
	case "add":
		if len(args) != 1 {
			c.screen.ShowError("usage: add <product_id>")
			return nil
		}
		if c.requireLogin() {
			c.add(ctx, args[0])
		}
	case "cart":
		c.screen.RenderCart(c.cart.Items())
	case "checkout":
		if c.requireLogin() {
			c.runCheckout(ctx)
		}
	case "help":
		c.screen.SetResult(HelpText)
	case "quit", "exit":
		return ErrQuit
	default:
		c.screen.ShowError("unknown command " + cmd)
	}
	return nil
}

func (c *Controller) login(ctx context.Context, customerID string) {
	if err := c.session.Login(ctx, customerID); err != nil {
		c.screen.ShowError(err.Error())
		return
	}
	ctx = c.session.Context(ctx)
	c.screen.Show(view.PaneShopping)
	c.screen.ClearWarnings()
	c.screen.SetResult("")
	c.loadProducts(ctx)
}

func (c *Controller) logout(ctx context.Context) {
	if err := c.session.Logout(ctx); err != nil {
		c.screen.ShowError(err.Error())
		return
	}
	c.catalog.Invalidate(ctx)
	c.screen.Show(view.PaneLogin)
	c.screen.ClearProducts()
	c.screen.ClearWarnings()
	c.screen.SetResult("")
}

func (c *Controller) loadProducts(ctx context.Context) {
	products, err := c.catalog.List(ctx)
	if err != nil {
		c.screen.ShowError(err.Error())
		return
	}
	c.screen.SetProducts(products)
}

func (c *Controller) add(ctx context.Context, raw string) {
	id, err := cart.ParseProductID(raw)
	if err != nil {
		c.screen.ShowError("invalid product id " + raw)
		return
	}
	if !c.cart.Add(id) {
		obs.ObserveCartAdd("duplicate")
		return
	}
	if _, err := c.bus.Emit(ctx, events.TopicCartItemAdded, events.CartItemAdded{ProductID: int64(id), CartSize: c.cart.Len()}); err != nil {
		c.logger.Warn().Err(err).Msg("event_emit_failed")
	}
}

func (c *Controller) runCheckout(ctx context.Context) {
	out, err := c.checkout.Checkout(ctx)
	if errors.Is(err, checkout.ErrInFlight) {
		// warnings belong to the running checkout
		c.screen.ShowError(err.Error())
		return
	}
	c.screen.ClearWarnings()
	if err != nil {
		c.screen.ShowError(err.Error())
		return
	}
	c.screen.SetResult(out.Message())
	c.screen.AppendWarnings(out.Warnings()...)
}

func (c *Controller) requireLogin() bool {
	if c.session.LoggedIn() {
		return true
	}
	c.screen.ShowError("not logged in")
	return false
}
