package column

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Loader supplies the definitions of a table and their backing count.
type Loader interface {
	Load(ctx context.Context, tableID string) ([]Definition, error)
	Count(ctx context.Context, tableID string) (int, error)
}

// Catalog is the column catalog of one table. It loads lazily and reloads
// whenever the number of persisted definitions no longer matches what it
// holds. Every accessor returns copies.
type Catalog struct {
	tableID string
	loader  Loader

	mu     sync.Mutex
	loaded bool
	defs   map[string]Definition
	keys   []string // sorted element keys
}

// NewCatalog creates an unloaded catalog for tableID.
func NewCatalog(tableID string, loader Loader) *Catalog {
	return &Catalog{tableID: tableID, loader: loader}
}

// TableID returns the table the catalog describes.
func (c *Catalog) TableID() string {
	return c.tableID
}

// Refresh reloads the catalog unconditionally.
func (c *Catalog) Refresh(ctx context.Context) error {
	return c.ReloadFrom(ctx, c.loader)
}

// ReloadFrom reloads the catalog through l without rebinding it; later
// freshness checks still use the catalog's own loader.
func (c *Catalog) ReloadFrom(ctx context.Context, l Loader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx, l)
}

func (c *Catalog) load(ctx context.Context, l Loader) error {
	defs, err := l.Load(ctx, c.tableID)
	if err != nil {
		return fmt.Errorf("failed to load columns of %s: %w", c.tableID, err)
	}

	m := make(map[string]Definition, len(defs))
	keys := make([]string, 0, len(defs))
	for _, d := range defs {
		m[d.ElementKey] = d
		keys = append(keys, d.ElementKey)
	}
	sort.Strings(keys)

	c.defs = m
	c.keys = keys
	c.loaded = true
	return nil
}

// ensureFresh must be called with c.mu held.
func (c *Catalog) ensureFresh(ctx context.Context) error {
	if !c.loaded {
		return c.load(ctx, c.loader)
	}
	n, err := c.loader.Count(ctx, c.tableID)
	if err != nil {
		return fmt.Errorf("failed to check columns of %s: %w", c.tableID, err)
	}
	if n != len(c.defs) {
		return c.load(ctx, c.loader)
	}
	return nil
}

// All returns every definition keyed by element key.
func (c *Catalog) All(ctx context.Context) (map[string]Definition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]Definition, len(c.defs))
	for k, d := range c.defs {
		out[k] = d
	}
	return out, nil
}

// List returns every definition ordered by element key.
func (c *Catalog) List(ctx context.Context) ([]Definition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}
	out := make([]Definition, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.defs[k])
	}
	return out, nil
}

// Len returns the number of definitions.
func (c *Catalog) Len(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFresh(ctx); err != nil {
		return 0, err
	}
	return len(c.defs), nil
}

// ByElementKey looks up a definition by its element key.
func (c *Catalog) ByElementKey(ctx context.Context, key string) (Definition, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFresh(ctx); err != nil {
		return Definition{}, false, err
	}
	d, ok := c.defs[key]
	return d, ok, nil
}

// ByDisplayName returns the first definition, in element key order, whose
// display name equals name.
func (c *Catalog) ByDisplayName(ctx context.Context, name string) (Definition, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFresh(ctx); err != nil {
		return Definition{}, false, err
	}
	for _, k := range c.keys {
		if d := c.defs[k]; d.DisplayName == name {
			return d, true, nil
		}
	}
	return Definition{}, false, nil
}

// Containing returns the composite element def belongs to.
func (c *Catalog) Containing(ctx context.Context, def Definition) (Definition, bool, error) {
	if !def.HasParent() {
		return Definition{}, false, nil
	}
	return c.ByElementKey(ctx, def.ParentKey)
}

// UniqueDisplayName returns proposed if no column uses it as a display name,
// otherwise proposed followed by the smallest positive suffix that is free.
func (c *Catalog) UniqueDisplayName(ctx context.Context, proposed string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFresh(ctx); err != nil {
		return "", err
	}
	used := make(map[string]struct{}, len(c.defs))
	for _, d := range c.defs {
		used[d.DisplayName] = struct{}{}
	}

	if _, taken := used[proposed]; !taken {
		return proposed, nil
	}
	for suffix := 1; ; suffix++ {
		candidate := fmt.Sprintf("%s%d", proposed, suffix)
		if _, taken := used[candidate]; !taken {
			return candidate, nil
		}
	}
}

// Persisted returns the element keys of the units of retention, sorted.
func (c *Catalog) Persisted(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}
	keys := []string{}
	for _, k := range c.keys {
		if c.defs[k].UnitOfRetention {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
