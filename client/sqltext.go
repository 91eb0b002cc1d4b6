package client

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dan-strohschein/remotedb/query"
)

// GetSQLText renders the statement of e as commented SQL for diagnostics:
//
//	-- ServiceModel <context ID> <dialect name>
//	-- DECLARE <name> <type>
//
//	-- SET <name> = <value>
//
//	<command>
//
// The DECLARE and SET blocks appear only when the statement declares
// parameters. Rendered commands are cached on e.Context unless the statement
// is parameter-dependent, and a cached list is reused. Only the configuration
// lookup ever reaches the remote service.
func (c *Client) GetSQLText(ctx context.Context, e *Execution) (string, error) {
	if err := c.checkOpen("GetSQLText"); err != nil {
		return "", err
	}
	if e == nil || e.Context == nil || e.Context.Statement == nil {
		return "", fmt.Errorf("execution has no statement")
	}

	c.mu.Lock()
	contextID, err := c.contextIDLocked(ctx)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	factory, err := c.providerFactoryLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return "", err
	}

	provider := factory.New()
	stmt := e.Context.Statement

	var sb strings.Builder
	sb.WriteString("-- ServiceModel ")
	sb.WriteString(contextID)
	sb.WriteByte(' ')
	sb.WriteString(provider.Name())
	sb.WriteByte('\n')

	if len(stmt.Parameters) > 0 {
		for _, p := range stmt.Parameters {
			fmt.Fprintf(&sb, "-- DECLARE %s %s\n", p.Name, p.TypeName())
		}
		sb.WriteByte('\n')
		for _, p := range stmt.Parameters {
			fmt.Fprintf(&sb, "-- SET %s = %s\n", p.Name, formatSetValue(p.Value))
		}
		sb.WriteByte('\n')
	}

	commands := e.Context.Commands()
	if commands == nil {
		n := provider.CommandCount(stmt)
		commands = make([]string, n)
		for i := 0; i < n; i++ {
			var cmd strings.Builder
			if err := provider.BuildSQL(i, stmt, &cmd); err != nil {
				return "", err
			}
			commands[i] = cmd.String()
		}
		if !stmt.IsParameterDependent {
			e.Context.SetCommands(commands)
		}
	}

	for _, cmd := range commands {
		sb.WriteString(cmd)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// formatSetValue renders a parameter value for a SET comment. Strings and
// characters are quoted with embedded quotes doubled; nil renders empty.
func formatSetValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case query.Char:
		return "'" + strings.ReplaceAll(string(rune(x)), "'", "''") + "'"
	case []byte:
		return "0x" + strings.ToUpper(hex.EncodeToString(x))
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
