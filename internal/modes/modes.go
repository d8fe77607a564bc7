// ABOUTME: Catalog of conversation modes and their system instructions
// ABOUTME: A mode conditions how assistant replies are generated; the catalog is fixed configuration

package modes

import (
	"errors"
	"sort"
)

// ErrModeNotFound indicates the requested mode id is not in the catalog.
var ErrModeNotFound = errors.New("mode not found")

// Mode is one entry of the conversation-mode catalog: a stable id, a short
// label used in user-facing notices, and the system instruction sent with
// every generation while the mode is active.
type Mode struct {
	ID                string
	Label             string
	SystemInstruction string
}

// Catalog is an immutable set of modes keyed by id. It is built once at
// startup from configuration (or the built-in defaults) and only read
// afterwards.
type Catalog struct {
	modes   map[string]Mode
	defawlt string
}

// NewCatalog builds a catalog from the given modes. The first mode is the
// default. Returns an error for an empty list, a missing field, or a
// duplicate id.
func NewCatalog(list []Mode) (*Catalog, error) {
	if len(list) == 0 {
		return nil, errors.New("mode catalog must not be empty")
	}
	byID := make(map[string]Mode, len(list))
	for _, m := range list {
		if m.ID == "" || m.Label == "" || m.SystemInstruction == "" {
			return nil, errors.New("mode requires id, label and system instruction")
		}
		if _, dup := byID[m.ID]; dup {
			return nil, errors.New("duplicate mode id: " + m.ID)
		}
		byID[m.ID] = m
	}
	return &Catalog{modes: byID, defawlt: list[0].ID}, nil
}

// Default returns the id of the default mode.
func (c *Catalog) Default() string {
	return c.defawlt
}

// Get returns the mode with the given id, or ErrModeNotFound.
func (c *Catalog) Get(id string) (Mode, error) {
	m, ok := c.modes[id]
	if !ok {
		return Mode{}, ErrModeNotFound
	}
	return m, nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.modes[id]
	return ok
}

// List returns all modes sorted by id.
func (c *Catalog) List() []Mode {
	out := make([]Mode, 0, len(c.modes))
	for _, m := range c.modes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
