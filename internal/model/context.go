package model

// Context is the per-lead accumulator threaded through the processor
// chain and the extraction step. Keys are only ever added or
// overwritten, never removed; insertion order is preserved so a frozen
// context can be replayed deterministically. A stage may read keys
// written by earlier stages only.
type Context struct {
	keys   []string
	values map[string]any
}

// NewContext returns an empty per-lead context.
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Set adds or overwrites a key. Overwriting keeps the original
// insertion position.
func (c *Context) Set(key string, value any) {
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Get returns the value for key and whether it was ever set.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the value for key rendered as a string, or "" when
// the key is absent.
func (c *Context) GetString(key string) string {
	v, ok := c.values[key]
	if !ok || v == nil {
		return ""
	}
	return Stringify(v)
}

// Has reports whether key has been set.
func (c *Context) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Keys returns all keys in insertion order.
func (c *Context) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of distinct keys.
func (c *Context) Len() int {
	return len(c.keys)
}

// Snapshot returns a plain map copy of the current values.
func (c *Context) Snapshot() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
