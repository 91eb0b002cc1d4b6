package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dan-strohschein/remotedb/service"
)

// HookContext describes one remote call. It is passed to hooks to allow
// inspection; Metadata carries data from Before to After.
type HookContext struct {
	// Operation is the service method, e.g. service.MethodExecuteReader
	Operation string

	// Configuration is the configuration name the call targets
	Configuration string

	// StartTime is when the call began
	StartTime time.Time

	// Metadata allows hooks to store arbitrary data for passing between Before/After
	Metadata map[string]interface{}

	// TraceID is the unique identifier for this call
	TraceID string

	// Result stores the call result (available in After hook)
	Result interface{}

	// Error stores any error that occurred (available in After hook)
	Error error

	// Duration is the call time (available in After hook)
	Duration time.Duration
}

// Hook is the interface that all hooks must implement.
type Hook interface {
	// Name returns the unique name of this hook
	Name() string

	// Before is called before the remote call.
	// Returning an error aborts the call and returns the error.
	Before(ctx context.Context, hookCtx *HookContext) error

	// After is called after the remote call, even if it failed. An error
	// returned here is reported only when the call itself succeeded.
	After(ctx context.Context, hookCtx *HookContext) error
}

// RegisterHook adds a hook to the client's hook chain.
// Hooks are executed in FIFO order. A hook with the same name is replaced in
// place.
func (c *Client) RegisterHook(hook Hook) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()

	for i, h := range c.hooks {
		if h.Name() == hook.Name() {
			c.hooks[i] = hook
			c.logger.Debug("hook replaced", String("hook", hook.Name()))
			return
		}
	}

	c.hooks = append(c.hooks, hook)
	c.logger.Debug("hook registered", String("hook", hook.Name()), Int("order", len(c.hooks)-1))
}

// UnregisterHook removes a hook by name.
// Returns true if the hook was found and removed, false otherwise.
func (c *Client) UnregisterHook(name string) bool {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()

	for i, h := range c.hooks {
		if h.Name() == name {
			c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
			c.logger.Debug("hook unregistered", String("hook", name))
			return true
		}
	}

	return false
}

// GetHooks returns the names of all registered hooks in execution order.
func (c *Client) GetHooks() []string {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()

	names := make([]string, len(c.hooks))
	for i, h := range c.hooks {
		names[i] = h.Name()
	}
	return names
}

func (c *Client) snapshotHooks() []Hook {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	hooks := make([]Hook, len(c.hooks))
	copy(hooks, c.hooks)
	return hooks
}

// runHooked wraps call with the Before and After hooks.
func (c *Client) runHooked(ctx context.Context, operation, configuration string, call func(hc *HookContext) error) error {
	hooks := c.snapshotHooks()
	hc := &HookContext{
		Operation:     operation,
		Configuration: configuration,
		StartTime:     time.Now(),
		Metadata:      make(map[string]interface{}),
		TraceID:       uuid.New().String(),
	}

	for _, hook := range hooks {
		if err := hook.Before(ctx, hc); err != nil {
			c.logger.Debug("hook aborted call",
				String("hook", hook.Name()),
				String("operation", operation),
				Error("error", err))
			return err
		}
	}

	err := call(hc)
	hc.Duration = time.Since(hc.StartTime)
	hc.Error = err
	if err != nil {
		c.logger.Warn("remote call failed",
			String("operation", operation),
			String("configuration", configuration),
			String("trace_id", hc.TraceID),
			Error("error", err))
	}

	var hookErr error
	for _, hook := range hooks {
		if herr := hook.After(ctx, hc); herr != nil {
			c.logger.Debug("hook returned error in After",
				String("hook", hook.Name()),
				String("operation", operation),
				Error("error", herr))
			hookErr = herr
		}
	}

	if err != nil {
		return err
	}
	return hookErr
}

// hookedService runs the client's hooks around every call of a handle and
// logs release failures.
type hookedService struct {
	svc service.Service
	c   *Client
}

func (s *hookedService) GetInfo(ctx context.Context, configuration string) (*service.Info, error) {
	var info *service.Info
	err := s.c.runHooked(ctx, service.MethodGetInfo, configuration, func(hc *HookContext) error {
		var err error
		info, err = s.svc.GetInfo(ctx, configuration)
		hc.Result = info
		return err
	})
	return info, err
}

func (s *hookedService) ExecuteNonQuery(ctx context.Context, configuration string, data []byte) (int, error) {
	var n int
	err := s.c.runHooked(ctx, service.MethodExecuteNonQuery, configuration, func(hc *HookContext) error {
		var err error
		n, err = s.svc.ExecuteNonQuery(ctx, configuration, data)
		hc.Result = n
		return err
	})
	return n, err
}

func (s *hookedService) ExecuteScalar(ctx context.Context, configuration string, data []byte) ([]byte, error) {
	var out []byte
	err := s.c.runHooked(ctx, service.MethodExecuteScalar, configuration, func(hc *HookContext) error {
		var err error
		out, err = s.svc.ExecuteScalar(ctx, configuration, data)
		hc.Metadata["bytes"] = len(out)
		return err
	})
	return out, err
}

func (s *hookedService) ExecuteReader(ctx context.Context, configuration string, data []byte) ([]byte, error) {
	var out []byte
	err := s.c.runHooked(ctx, service.MethodExecuteReader, configuration, func(hc *HookContext) error {
		var err error
		out, err = s.svc.ExecuteReader(ctx, configuration, data)
		hc.Metadata["bytes"] = len(out)
		return err
	})
	return out, err
}

func (s *hookedService) ExecuteBatch(ctx context.Context, configuration string, data []byte) error {
	return s.c.runHooked(ctx, service.MethodExecuteBatch, configuration, func(hc *HookContext) error {
		return s.svc.ExecuteBatch(ctx, configuration, data)
	})
}

func (s *hookedService) Close() error {
	err := s.svc.Close()
	if err != nil {
		s.c.logger.Warn("failed to release service handle", Error("error", err))
	}
	return err
}
