// Package view projects shop state into text regions.
package view

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/noah-isme/loyalty-shop/internal/cart"
	"github.com/noah-isme/loyalty-shop/internal/loyalty"
)

// Pane names the visible section of the screen.
type Pane string

const (
	PaneLogin    Pane = "login"
	PaneShopping Pane = "shopping"
)

// Screen holds the presentation regions. Each setter replaces its region in
// full; nothing is diffed.
type Screen struct {
	mu       sync.Mutex
	visible  Pane
	result   string
	warnings []string
	products []string
	cartList []string
}

// NewScreen returns a screen showing the login pane.
func NewScreen() *Screen {
	return &Screen{visible: PaneLogin}
}

// RenderCart replaces the cart list with one line per id in cart order.
// It matches cart.Observer.
func (s *Screen) RenderCart(items []cart.ProductID) {
	lines := make([]string, len(items))
	for i, id := range items {
		lines[i] = CartLine(id)
	}
	s.mu.Lock()
	s.cartList = lines
	s.mu.Unlock()
}

// CartLine is the display line for one cart entry.
func CartLine(id cart.ProductID) string {
	return "Product ID " + id.String()
}

// SetProducts replaces the product listing.
func (s *Screen) SetProducts(products []loyalty.Product) {
	lines := make([]string, len(products))
	for i, p := range products {
		lines[i] = fmt.Sprintf("[%s] %s - %s", p.ID, p.Name, p.Price)
	}
	s.mu.Lock()
	s.products = lines
	s.mu.Unlock()
}

// ClearProducts empties the product listing.
func (s *Screen) ClearProducts() {
	s.mu.Lock()
	s.products = nil
	s.mu.Unlock()
}

// SetResult overwrites the message region.
func (s *Screen) SetResult(msg string) {
	s.mu.Lock()
	s.result = msg
	s.mu.Unlock()
}

// ShowError overwrites the message region with "Error: <msg>".
func (s *Screen) ShowError(msg string) {
	s.SetResult("Error: " + msg)
}

// ClearWarnings empties the warnings region.
func (s *Screen) ClearWarnings() {
	s.mu.Lock()
	s.warnings = nil
	s.mu.Unlock()
}

// AppendWarnings adds lines to the warnings region.
func (s *Screen) AppendWarnings(lines ...string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, lines...)
	s.mu.Unlock()
}

// Show switches the visible pane.
func (s *Screen) Show(p Pane) {
	s.mu.Lock()
	s.visible = p
	s.mu.Unlock()
}

// Visible returns the visible pane.
func (s *Screen) Visible() Pane {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Result returns the message region.
func (s *Screen) Result() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Warnings returns a copy of the warnings region.
func (s *Screen) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Products returns a copy of the product listing lines.
func (s *Screen) Products() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.products...)
}

// CartList returns a copy of the cart list lines.
func (s *Screen) CartList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cartList...)
}

// Render writes the whole screen.
func (s *Screen) Render(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	if s.visible == PaneLogin {
		b.WriteString("== Login ==\n")
		b.WriteString("login <customer_id>\n")
	} else {
		b.WriteString("== Products ==\n")
		writeLines(&b, s.products, "(no products)")
		b.WriteString("== Cart ==\n")
		writeLines(&b, s.cartList, "(empty)")
	}
	if len(s.warnings) > 0 {
		b.WriteString("== Warnings ==\n")
		writeLines(&b, s.warnings, "")
	}
	if s.result != "" {
		b.WriteString(s.result)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeLines(b *strings.Builder, lines []string, empty string) {
	if len(lines) == 0 {
		if empty != "" {
			b.WriteString(empty)
			b.WriteByte('\n')
		}
		return
	}
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
}
