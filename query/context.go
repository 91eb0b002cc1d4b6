package query

import (
	"reflect"
	"sync"
)

// Context pairs a Statement with the parameter values of one execution and
// carries the rendered command cache.
type Context struct {
	Statement *Statement

	params   []*Parameter
	mu       sync.Mutex
	commands []string
}

// NewContext creates a context. params is the caller's parameter snapshot; when
// nil the statement's own parameters are used.
func NewContext(stmt *Statement, params ...*Parameter) *Context {
	return &Context{Statement: stmt, params: params}
}

// GetParameters returns the parameter snapshot for this execution.
func (c *Context) GetParameters() []*Parameter {
	if c.params != nil || c.Statement == nil {
		return c.params
	}
	return c.Statement.Parameters
}

// Commands returns the cached rendered commands, or nil.
func (c *Context) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commands
}

// SetCommands stores rendered commands for reuse.
func (c *Context) SetCommands(commands []string) {
	c.mu.Lock()
	c.commands = commands
	c.mu.Unlock()
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
