package content

import (
	"fmt"
	"slices"
	"sync"
)

// ChangeType describes a catalog mutation.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// ChangeEvent is delivered to listeners after a user bias changes.
type ChangeEvent struct {
	Type    ChangeType
	BiasID  string
	Version uint64
}

// ChangeListener receives catalog change events.
type ChangeListener func(event ChangeEvent)

// Catalog holds the core biases followed by user-authored biases.
type Catalog struct {
	mu      sync.RWMutex
	core    []Bias
	user    []Bias
	byID    map[string]Bias
	version uint64

	listenerMu sync.RWMutex
	listeners  map[int]ChangeListener
	nextID     int
}

// NewCatalog creates a catalog seeded with core biases.
func NewCatalog(core []Bias) (*Catalog, error) {
	c := &Catalog{
		core:      make([]Bias, 0, len(core)),
		byID:      make(map[string]Bias, len(core)),
		listeners: make(map[int]ChangeListener),
	}
	for _, b := range core {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[b.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
		}
		b.Source = SourceCore
		c.core = append(c.core, b)
		c.byID[b.ID] = b
	}
	return c, nil
}

// All returns core biases followed by user biases.
func (c *Catalog) All() []Bias {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Bias, 0, len(c.core)+len(c.user))
	out = append(out, c.core...)
	out = append(out, c.user...)
	return out
}

// Core returns only the bundled biases.
func (c *Catalog) Core() []Bias {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.core)
}

// User returns only learner-authored biases.
func (c *Catalog) User() []Bias {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.user)
}

// Get returns a bias by ID.
func (c *Catalog) Get(id string) (Bias, error) {
	c.mu.RLock()
	b, ok := c.byID[id]
	c.mu.RUnlock()
	if !ok {
		return Bias{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, nil
}

// ByCategory returns the biases in a category, in catalog order.
func (c *Catalog) ByCategory(cat Category) []Bias {
	var out []Bias
	for _, b := range c.All() {
		if b.Category == cat {
			out = append(out, b)
		}
	}
	return out
}

// Len returns the number of biases in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.core) + len(c.user)
}

// PutUser adds or replaces a user bias. The bias source is forced to
// SourceUser. Replacing a core bias fails with ErrReadOnly.
func (c *Catalog) PutUser(b Bias) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.Source = SourceUser

	c.mu.Lock()
	existing, ok := c.byID[b.ID]
	if ok && existing.Source == SourceCore {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrReadOnly, b.ID)
	}

	changeType := ChangeAdded
	if ok {
		changeType = ChangeUpdated
		for i := range c.user {
			if c.user[i].ID == b.ID {
				c.user[i] = b
				break
			}
		}
	} else {
		c.user = append(c.user, b)
	}
	c.byID[b.ID] = b
	c.version++
	event := ChangeEvent{Type: changeType, BiasID: b.ID, Version: c.version}
	c.mu.Unlock()

	c.notify(event)
	return nil
}

// DeleteUser removes a user bias.
func (c *Catalog) DeleteUser(id string) error {
	c.mu.Lock()
	existing, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if existing.Source == SourceCore {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrReadOnly, id)
	}

	c.user = slices.DeleteFunc(c.user, func(b Bias) bool { return b.ID == id })
	delete(c.byID, id)
	c.version++
	event := ChangeEvent{Type: ChangeRemoved, BiasID: id, Version: c.version}
	c.mu.Unlock()

	c.notify(event)
	return nil
}

// Version increments on every user bias mutation.
func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// OnChange registers a listener and returns a function that removes it.
func (c *Catalog) OnChange(listener ChangeListener) func() {
	if listener == nil {
		return func() {}
	}

	c.listenerMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, id)
		c.listenerMu.Unlock()
	}
}

func (c *Catalog) notify(event ChangeEvent) {
	c.listenerMu.RLock()
	listeners := make([]ChangeListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.listenerMu.RUnlock()

	for _, l := range listeners {
		l(event)
	}
}
