package stubserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/loyalty-shop/internal/cart"
	"github.com/noah-isme/loyalty-shop/internal/common"
	"github.com/noah-isme/loyalty-shop/internal/obs"
)

// SessionCookie names the cookie carrying the backend session token.
const SessionCookie = "loyalty_session"

type loginRequest struct {
	CustomerID json.RawMessage `json:"customer_id"`
}

type checkoutRequest struct {
	ProductIDs []cart.ProductID `json:"product_ids"`
}

type checkoutResponse struct {
	TotalPointsEarned       json.Number      `json:"total_points_earned"`
	InvalidProducts         []cart.ProductID `json:"invalid_products,omitempty"`
	ProductsMissingCategory []cart.ProductID `json:"products_missing_category,omitempty"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	id, ok := parseCustomerID(req.CustomerID)
	if !ok {
		common.JSON(w, http.StatusOK, map[string]any{"success": false, "error": "Invalid customer id"})
		return
	}
	if !s.store.HasCustomer(id) {
		common.JSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Customer not found"})
		return
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = id
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	s.logger.Info().Int64("customer_id", id).Msg("customer_logged_in")
	common.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	common.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) products(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"products": s.store.Products()})
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	customerID, ok := s.customerFor(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "Not logged in")
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	outcome, err := s.store.Checkout(customerID, req.ProductIDs)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "Loyalty account not found")
		return
	}
	s.logger.Info().
		Int64("customer_id", customerID).
		Int("products", len(req.ProductIDs)).
		Int("invalid", len(outcome.Invalid)).
		Int("missing_category", len(outcome.MissingCategory)).
		Str("points", FormatCents(outcome.PointsCents)).
		Msg("points_accrued")
	common.JSON(w, http.StatusOK, checkoutResponse{
		TotalPointsEarned:       json.Number(FormatCents(outcome.PointsCents)),
		InvalidProducts:         outcome.Invalid,
		ProductsMissingCategory: outcome.MissingCategory,
	})
}

// sessionContext tags the request context with the logged-in customer so
// request logs carry it.
func (s *Server) sessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := s.customerFor(r); ok {
			r = r.WithContext(obs.WithCustomerID(r.Context(), strconv.FormatInt(id, 10)))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) customerFor(r *http.Request) (int64, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[c.Value]
	return id, ok
}

// parseCustomerID accepts the id as a JSON number or a numeric string.
func parseCustomerID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, n > 0
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
