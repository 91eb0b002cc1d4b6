package client

import (
	"encoding/json"
	"fmt"
)

// EnableDebugMode enables debug mode: errors formatted with FormatErrorMessage
// carry details and stack traces.
func (c *Client) EnableDebugMode() {
	c.debugMode.Store(true)
	c.logger.Info("debug mode enabled")
}

// DisableDebugMode disables debug mode.
func (c *Client) DisableDebugMode() {
	c.debugMode.Store(false)
	c.logger.Info("debug mode disabled")
}

// IsDebugMode returns whether debug mode is currently enabled.
func (c *Client) IsDebugMode() bool {
	return c.debugMode.Load()
}

// FormatErrorMessage formats err according to the client's debug mode.
func (c *Client) FormatErrorMessage(err error) string {
	return FormatError(err, c.IsDebugMode())
}

// GetDebugInfo returns a snapshot of client state for debugging. It never
// triggers configuration resolution.
func (c *Client) GetDebugInfo() map[string]interface{} {
	info := map[string]interface{}{
		"version":       Version,
		"configuration": c.configuration,
		"debugMode":     c.IsDebugMode(),
		"batchDepth":    c.batchDepth,
		"pending":       len(c.batch),
		"hooks":         c.GetHooks(),
	}

	c.mu.Lock()
	if c.info != nil {
		info["dialect"] = c.info.Info.Dialect
		info["aliases"] = c.info.Info.Configurations
	}
	if c.providerType != "" {
		info["providerType"] = c.providerType
	}
	if c.contextID != "" {
		info["contextID"] = c.contextID
	}
	c.mu.Unlock()

	info["caches"] = map[string]interface{}{
		"configurations":      c.cache.Len(),
		"configurationBuilds": c.cache.Builds(),
		"dialectFactories":    c.factories.Built(),
	}

	c.closeMu.Lock()
	info["closed"] = c.closed
	c.closeMu.Unlock()

	return info
}

// DumpDebugInfoJSON returns debug info as formatted JSON string.
func (c *Client) DumpDebugInfoJSON() string {
	info := c.GetDebugInfo()
	bytes, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to marshal debug info: %s"}`, err.Error())
	}
	return string(bytes)
}
