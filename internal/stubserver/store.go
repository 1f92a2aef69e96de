package stubserver

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/noah-isme/loyalty-shop/internal/cart"
	"github.com/noah-isme/loyalty-shop/internal/loyalty"
)

// ProductSeed describes a catalog entry. CategoryID 0 means the product has
// no category.
type ProductSeed struct {
	ID         cart.ProductID
	Name       string
	PriceCents int64
	CategoryID int64
	ImageURL   string
}

// Rule awards PointsPerDollar for products of a category from StartDate on.
type Rule struct {
	CategoryID      int64
	PointsPerDollar int64
	StartDate       time.Time
	EndDate         time.Time
}

// Account is a customer's loyalty account.
type Account struct {
	CustomerID  int64
	Name        string
	Email       string
	PointsCents int64
}

// Transaction records points earned for one product.
type Transaction struct {
	CustomerID  int64
	ProductID   cart.ProductID
	PointsCents int64
	At          time.Time
}

// CheckoutOutcome is the store-level result of a checkout.
type CheckoutOutcome struct {
	PointsCents     int64
	Invalid         []cart.ProductID
	MissingCategory []cart.ProductID
}

// Store is the in-memory state behind the backend test double.
type Store struct {
	mu           sync.Mutex
	accounts     map[int64]*Account
	products     map[cart.ProductID]ProductSeed
	categories   map[int64]string
	rules        []Rule
	transactions []Transaction
	now          func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		accounts:   map[int64]*Account{},
		products:   map[cart.ProductID]ProductSeed{},
		categories: map[int64]string{},
		now:        time.Now,
	}
}

// SeededStore returns a store holding the sample customers, categories,
// products and earning rules the shop ships with.
func SeededStore() *Store {
	s := NewStore()
	s.AddAccount(Account{CustomerID: 1, Name: "John Doe", Email: "john.doe@example.com", PointsCents: 100_00})
	s.AddAccount(Account{CustomerID: 2, Name: "Jane Smith", Email: "jane.smith@example.com", PointsCents: 200_00})
	s.AddCategory(1, "Electronics")
	s.AddCategory(2, "Books")
	s.AddProduct(ProductSeed{
		ID:         1,
		Name:       "Laptop",
		PriceCents: 1200_00,
		CategoryID: 1,
		ImageURL:   "https://upload.wikimedia.org/wikipedia/commons/e/e9/Apple-desk-laptop-macbook-pro_%2823699397893%29.jpg",
	})
	s.AddProduct(ProductSeed{
		ID:         2,
		Name:       "Science Fiction Book",
		PriceCents: 15_99,
		CategoryID: 2,
		ImageURL:   "https://upload.wikimedia.org/wikipedia/commons/thumb/e/eb/Eric_Frank_Russell_-_Die_Gro%C3%9Fe_Explosion_-_Cover.jpg/770px-Eric_Frank_Russell_-_Die_Gro%C3%9Fe_Explosion_-_Cover.jpg",
	})
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	s.AddRule(Rule{CategoryID: 1, PointsPerDollar: 2, StartDate: start, EndDate: end})
	s.AddRule(Rule{CategoryID: 2, PointsPerDollar: 1, StartDate: start, EndDate: end})
	return s
}

// AddAccount registers a customer account.
func (s *Store) AddAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := a
	s.accounts[a.CustomerID] = &acc
}

// AddCategory registers a category.
func (s *Store) AddCategory(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[id] = name
}

// AddProduct registers or replaces a product.
func (s *Store) AddProduct(p ProductSeed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// RemoveProduct drops a product from the catalog.
func (s *Store) RemoveProduct(id cart.ProductID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

// AddRule registers an earning rule.
func (s *Store) AddRule(r Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
}

// HasCustomer reports whether an account exists for id.
func (s *Store) HasCustomer(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[id]
	return ok
}

// Account returns a copy of the customer's account.
func (s *Store) Account(id int64) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, false
	}
	return *acc, true
}

// Transactions returns the recorded point transactions.
func (s *Store) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Products lists the catalog ordered by id.
func (s *Store) Products() []loyalty.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]loyalty.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, loyalty.Product{
			ID:       p.ID,
			Name:     p.Name,
			Price:    json.Number(FormatCents(p.PriceCents)),
			ImageURL: p.ImageURL,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Checkout credits the customer's account for every valid product. Unknown
// products are reported as invalid; products without a category or earning
// rule are reported as missing a category. Both are skipped.
func (s *Store) Checkout(customerID int64, ids []cart.ProductID) (CheckoutOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[customerID]
	if !ok {
		return CheckoutOutcome{}, fmt.Errorf("loyalty account not found")
	}
	var out CheckoutOutcome
	now := s.now()
	for _, id := range ids {
		product, ok := s.products[id]
		if !ok {
			out.Invalid = append(out.Invalid, id)
			continue
		}
		rule, ok := s.ruleForLocked(product.CategoryID)
		if !ok {
			out.MissingCategory = append(out.MissingCategory, id)
			continue
		}
		points := product.PriceCents * rule.PointsPerDollar
		s.transactions = append(s.transactions, Transaction{
			CustomerID:  customerID,
			ProductID:   id,
			PointsCents: points,
			At:          now,
		})
		out.PointsCents += points
	}
	acc.PointsCents += out.PointsCents
	return out, nil
}

// ruleForLocked picks the rule with the latest start date for the category.
func (s *Store) ruleForLocked(categoryID int64) (Rule, bool) {
	if _, ok := s.categories[categoryID]; !ok {
		return Rule{}, false
	}
	var (
		best  Rule
		found bool
	)
	for _, r := range s.rules {
		if r.CategoryID != categoryID {
			continue
		}
		if !found || r.StartDate.After(best.StartDate) {
			best = r
			found = true
		}
	}
	return best, found
}

// FormatCents renders a cent amount as a decimal number without trailing
// zero cents, e.g. 240000 -> "2400", 1599 -> "15.99".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	frac := cents % 100
	if frac == 0 {
		return sign + whole
	}
	if frac%10 == 0 {
		return fmt.Sprintf("%s%s.%d", sign, whole, frac/10)
	}
	return fmt.Sprintf("%s%s.%02d", sign, whole, frac)
}
