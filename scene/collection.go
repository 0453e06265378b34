package scene

import (
	"sync"

	"github.com/signalsfoundry/globedraw/primitive"
)

// Collection groups the primitives and billboards owned by one engine.
// It is safe for concurrent use; renderers and pickers read it under the
// read lock while the owning engine mutates it.
type Collection struct {
	name string

	mu         sync.RWMutex
	primitives []*primitive.Primitive
	billboards []*primitive.Billboard
	show       bool
}

// NewCollection returns an empty, visible collection.
func NewCollection(name string) *Collection {
	return &Collection{name: name, show: true}
}

// Name identifies the collection in logs and renderers.
func (c *Collection) Name() string { return c.name }

// AddPrimitive appends p. A nil primitive is ignored so factory results
// can be added without checking for degenerate input.
func (c *Collection) AddPrimitive(p *primitive.Primitive) *primitive.Primitive {
	if p == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primitives = append(c.primitives, p)
	return p
}

// AddBillboard appends b.
func (c *Collection) AddBillboard(b *primitive.Billboard) *primitive.Billboard {
	if b == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.billboards = append(c.billboards, b)
	return b
}

// RemovePrimitive drops p and reports whether it was present.
func (c *Collection) RemovePrimitive(p *primitive.Primitive) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, other := range c.primitives {
		if other == p {
			c.primitives = append(c.primitives[:i], c.primitives[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveBillboards drops every billboard in bs.
func (c *Collection) RemoveBillboards(bs []*primitive.Billboard) {
	if len(bs) == 0 {
		return
	}
	drop := make(map[*primitive.Billboard]struct{}, len(bs))
	for _, b := range bs {
		drop[b] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.billboards[:0]
	for _, b := range c.billboards {
		if _, ok := drop[b]; !ok {
			kept = append(kept, b)
		}
	}
	for i := len(kept); i < len(c.billboards); i++ {
		c.billboards[i] = nil
	}
	c.billboards = kept
}

// RemoveAll empties the collection.
func (c *Collection) RemoveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primitives = nil
	c.billboards = nil
}

// Primitives returns a snapshot slice of the primitives.
func (c *Collection) Primitives() []*primitive.Primitive {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*primitive.Primitive(nil), c.primitives...)
}

// Billboards returns a snapshot slice of the billboards.
func (c *Collection) Billboards() []*primitive.Billboard {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*primitive.Billboard(nil), c.billboards...)
}

// Len returns the number of primitives and billboards.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.primitives) + len(c.billboards)
}

// Update runs fn under the write lock. Engines use it to flip Show or
// restyle billboards they already added.
func (c *Collection) Update(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// View runs fn under the read lock.
func (c *Collection) View(fn func(primitives []*primitive.Primitive, billboards []*primitive.Billboard)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.primitives, c.billboards)
}

// Show reports whether the collection is rendered and pickable.
func (c *Collection) Show() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.show
}

// SetShow toggles the whole collection.
func (c *Collection) SetShow(show bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.show = show
}
