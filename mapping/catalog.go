package mapping

// Catalog is an immutable, ordered set of scopes.
type Catalog struct {
	scopes         []*Schema
	configurations []string
}

// NewCatalog builds a catalog over scopes, highest priority first. Nil scopes
// are skipped.
func NewCatalog(scopes ...*Schema) *Catalog {
	c := &Catalog{}
	seen := make(map[string]struct{})
	for _, s := range scopes {
		if s == nil {
			continue
		}
		c.scopes = append(c.scopes, s)
		if s.name == "" {
			continue
		}
		if _, ok := seen[s.name]; ok {
			continue
		}
		seen[s.name] = struct{}{}
		c.configurations = append(c.configurations, s.name)
	}
	return c
}

// ForConfiguration builds the catalog a remote configuration resolves to:
// prefix+"."+alias for every alias, the bare prefix, every raw alias, and
// finally the Default scope.
func ForConfiguration(prefix string, aliases []string) *Catalog {
	scopes := make([]*Schema, 0, 2*len(aliases)+2)
	for _, a := range aliases {
		scopes = append(scopes, NewSchema(prefix+"."+a))
	}
	scopes = append(scopes, NewSchema(prefix))
	for _, a := range aliases {
		scopes = append(scopes, NewSchema(a))
	}
	scopes = append(scopes, Default())
	return NewCatalog(scopes...)
}

// ConfigurationList returns the distinct non-empty scope names in priority
// order.
func (c *Catalog) ConfigurationList() []string {
	out := make([]string, len(c.configurations))
	copy(out, c.configurations)
	return out
}

// Scopes returns the scopes in priority order.
func (c *Catalog) Scopes() []*Schema {
	out := make([]*Schema, len(c.scopes))
	copy(out, c.scopes)
	return out
}

// Scope returns the first scope named configuration.
func (c *Catalog) Scope(configuration string) (*Schema, bool) {
	for _, s := range c.scopes {
		if s.name == configuration {
			return s, true
		}
	}
	return nil, false
}

// Lookup returns the value for key from the highest-priority scope that
// defines it.
func (c *Catalog) Lookup(key string) (any, bool) {
	for _, s := range c.scopes {
		if v, ok := s.Get(key); ok {
			return v, true
		}
	}
	return nil, false
}
