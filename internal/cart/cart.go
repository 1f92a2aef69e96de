// Package cart holds the shopper's selection: an ordered list of product ids
// with no duplicates, plus change observers that keep a display in sync.
package cart

import (
	"strconv"
	"sync"
)

// ProductID identifies a product selected for purchase.
type ProductID int64

// String renders the identifier the way the backend reports it.
func (id ProductID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseProductID converts user input into a ProductID.
func ParseProductID(value string) (ProductID, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return ProductID(n), nil
}

// Observer is notified with a snapshot of the cart after every mutation.
type Observer func(items []ProductID)

// Cart holds the ordered set of product identifiers pending checkout.
// The zero value is an empty, usable cart.
type Cart struct {
	mu        sync.Mutex
	items     []ProductID
	observers []Observer
	// pending holds snapshots not yet delivered; only the goroutine that set
	// draining delivers them, in mutation order.
	pending  [][]ProductID
	draining bool
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Subscribe registers fn to be called after each change. Observers run
// without any cart lock held and may mutate the cart; such a nested change is
// delivered after the current notification returns.
func (c *Cart) Subscribe(fn Observer) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Add appends id when it is not already present. It reports whether the cart
// changed; adding an existing id is a no-op.
func (c *Cart) Add(id ProductID) bool {
	c.mu.Lock()
	for _, existing := range c.items {
		if existing == id {
			c.mu.Unlock()
			return false
		}
	}
	c.items = append(c.items, id)
	c.enqueueLocked()
	c.mu.Unlock()

	c.drain()
	return true
}

// Items returns a copy of the current selection in insertion order.
func (c *Cart) Items() []ProductID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneItems(c.items)
}

// Contains reports whether id is in the cart.
func (c *Cart) Contains(id ProductID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.items {
		if existing == id {
			return true
		}
	}
	return false
}

// Len returns the number of selected products.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Reset empties the cart.
func (c *Cart) Reset() {
	c.mu.Lock()
	c.items = nil
	c.enqueueLocked()
	c.mu.Unlock()

	c.drain()
}

func (c *Cart) enqueueLocked() {
	if len(c.observers) == 0 {
		return
	}
	c.pending = append(c.pending, cloneItems(c.items))
}

// drain delivers queued snapshots unless another call is already doing so.
func (c *Cart) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.pending) > 0 {
		snapshot := c.pending[0]
		c.pending = c.pending[1:]
		observers := make([]Observer, len(c.observers))
		copy(observers, c.observers)
		c.mu.Unlock()

		for _, fn := range observers {
			fn(cloneItems(snapshot))
		}

		c.mu.Lock()
	}
	c.pending = nil
	c.draining = false
	c.mu.Unlock()
}

func cloneItems(items []ProductID) []ProductID {
	out := make([]ProductID, len(items))
	copy(out, items)
	return out
}
