package command

import (
	"fmt"
	"maps"
	"sync"
)

// Definition is one catalog entry.
type Definition struct {
	// Name is the command name, also used as the op field.
	Name string

	// Topic is the topic the command is published on.
	Topic string

	// Params holds the parameter values sent with the command.
	Params map[string]float64
}

// Catalog holds the known commands keyed by name.
//
// Thread Safety: all methods are safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]Definition)}
}

// Add stores def. The params map is copied.
func (c *Catalog) Add(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCommand)
	}
	if def.Topic == "" {
		return fmt.Errorf("%w: %s: topic is required", ErrInvalidCommand, def.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, def.Name)
	}

	stored := def
	stored.Params = make(map[string]float64, len(def.Params))
	maps.Copy(stored.Params, def.Params)

	c.defs[def.Name] = stored
	c.order = append(c.order, def.Name)
	return nil
}

// Get returns a copy of the named definition.
func (c *Catalog) Get(name string) (Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	def.Params = maps.Clone(def.Params)
	return def, nil
}

// Names returns command names in the order they were added.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Len returns the number of commands.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}
