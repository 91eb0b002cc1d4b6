// Package sqlprovider turns query.Statement values into dialect SQL text.
//
// Dialects are registered by identifier in a Registry. A FactoryCache resolves
// an identifier plus capability Flags into a Factory that builds Provider
// instances on demand.
package sqlprovider

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dan-strohschein/remotedb/query"
)

// Provider renders statements for one backend family.
type Provider interface {
	// Name returns the dialect name shown in diagnostics.
	Name() string

	// Flags returns the capability flags the provider was built with.
	Flags() Flags

	// CommandCount returns how many commands stmt renders to.
	CommandCount(stmt *query.Statement) int

	// BuildSQL appends the text of command number commandNumber to sb.
	BuildSQL(commandNumber int, stmt *query.Statement, sb *strings.Builder) error
}

type limitStyle int

const (
	limitOffset limitStyle = iota // LIMIT t OFFSET s
	limitComma                    // LIMIT s, t
	limitTop                      // SELECT TOP t
)

// dialect holds the knobs that differ between backends.
type dialect struct {
	name          string
	quoteOpen     string
	quoteClose    string
	paramPrefix   string
	limit         limitStyle
	trueLiteral   string
	falseLiteral  string
	identityQuery string
	// noLimit is rendered as the row limit when only an offset is present and
	// the dialect requires both.
	noLimit string
}

// basicProvider renders statements according to a dialect.
type basicProvider struct {
	d     dialect
	flags Flags
}

func (p *basicProvider) Name() string { return p.d.name }

func (p *basicProvider) Flags() Flags { return p.flags }

func (p *basicProvider) CommandCount(stmt *query.Statement) int {
	if stmt.Kind == query.KindInsert && stmt.WithIdentity && p.d.identityQuery != "" {
		return 2
	}
	return 1
}

func (p *basicProvider) BuildSQL(commandNumber int, stmt *query.Statement, sb *strings.Builder) error {
	if err := stmt.Validate(); err != nil {
		return err
	}
	if commandNumber < 0 || commandNumber >= p.CommandCount(stmt) {
		return fmt.Errorf("command %d out of range for %s statement", commandNumber, stmt.Kind)
	}
	if commandNumber == 1 {
		sb.WriteString(p.d.identityQuery)
		return nil
	}

	switch stmt.Kind {
	case query.KindSelect:
		return p.buildSelect(stmt, sb)
	case query.KindInsert:
		return p.buildInsert(stmt, sb)
	case query.KindUpdate:
		return p.buildUpdate(stmt, sb)
	case query.KindDelete:
		sb.WriteString("DELETE FROM ")
		sb.WriteString(p.quote(stmt.Table))
		return p.buildWhere(stmt, sb)
	default:
		sb.WriteString(stmt.Text)
		return nil
	}
}

func (p *basicProvider) buildSelect(stmt *query.Statement, sb *strings.Builder) error {
	if stmt.Take != nil && !p.flags.IsTakeSupported {
		return &UnsupportedError{Dialect: p.d.name, Feature: "TAKE"}
	}
	if stmt.Skip != nil && !p.flags.skipSupported(stmt.Take != nil) {
		return &UnsupportedError{Dialect: p.d.name, Feature: "SKIP"}
	}

	sb.WriteString("SELECT ")

	if p.d.limit == limitTop && stmt.Take != nil {
		take, err := p.limitOperand(stmt, stmt.Take, stmt.Skip != nil)
		if err != nil {
			return err
		}
		sb.WriteString("TOP ")
		sb.WriteString(take)
		sb.WriteByte(' ')
	}

	if len(stmt.Columns) == 0 {
		sb.WriteByte('*')
	} else {
		for i, c := range stmt.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.quote(c))
		}
	}

	sb.WriteString("\nFROM ")
	sb.WriteString(p.quote(stmt.Table))

	if err := p.buildWhere(stmt, sb); err != nil {
		return err
	}

	if len(stmt.OrderBy) > 0 {
		sb.WriteString("\nORDER BY ")
		for i, o := range stmt.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.quote(o.Column))
			if o.Desc {
				sb.WriteString(" DESC")
			}
		}
	}

	return p.buildLimit(stmt, sb)
}

func (p *basicProvider) buildLimit(stmt *query.Statement, sb *strings.Builder) error {
	if p.d.limit == limitTop || (stmt.Take == nil && stmt.Skip == nil) {
		return nil
	}

	var take, skip string
	var err error
	if stmt.Take != nil {
		if take, err = p.limitOperand(stmt, stmt.Take, stmt.Skip != nil); err != nil {
			return err
		}
	}
	if stmt.Skip != nil {
		if skip, err = p.operand(stmt, stmt.Skip); err != nil {
			return err
		}
	}

	switch p.d.limit {
	case limitComma:
		sb.WriteString("\nLIMIT ")
		if skip != "" {
			sb.WriteString(skip)
			sb.WriteString(", ")
		}
		if take == "" {
			take = p.d.noLimit
		}
		sb.WriteString(take)
	default:
		if take == "" && p.d.noLimit != "" {
			take = p.d.noLimit
		}
		if take != "" {
			sb.WriteString("\nLIMIT ")
			sb.WriteString(take)
		}
		if skip != "" {
			sb.WriteString("\nOFFSET ")
			sb.WriteString(skip)
		}
	}
	return nil
}

// limitOperand renders a row limit, inlining a parameter value when the
// backend cannot bind the limit.
func (p *basicProvider) limitOperand(stmt *query.Statement, o *query.Operand, hasSkip bool) (string, error) {
	if o.Kind == query.OperandParameter && !p.flags.takeAsParameter(hasSkip) {
		param, ok := stmt.Parameter(o.Name)
		if !ok {
			return "", fmt.Errorf("parameter %q is not declared", o.Name)
		}
		return p.literal(param.Value), nil
	}
	return p.operand(stmt, o)
}

func (p *basicProvider) buildInsert(stmt *query.Statement, sb *strings.Builder) error {
	sb.WriteString("INSERT INTO ")
	sb.WriteString(p.quote(stmt.Table))
	sb.WriteString(" (")
	for i, a := range stmt.Set {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.quote(a.Column))
	}
	sb.WriteString(")\nVALUES (")
	for i, a := range stmt.Set {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, err := p.operand(stmt, a.Value)
		if err != nil {
			return err
		}
		sb.WriteString(v)
	}
	sb.WriteByte(')')
	return nil
}

func (p *basicProvider) buildUpdate(stmt *query.Statement, sb *strings.Builder) error {
	sb.WriteString("UPDATE ")
	sb.WriteString(p.quote(stmt.Table))
	sb.WriteString("\nSET ")
	for i, a := range stmt.Set {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, err := p.operand(stmt, a.Value)
		if err != nil {
			return err
		}
		sb.WriteString(p.quote(a.Column))
		sb.WriteString(" = ")
		sb.WriteString(v)
	}
	return p.buildWhere(stmt, sb)
}

func (p *basicProvider) buildWhere(stmt *query.Statement, sb *strings.Builder) error {
	if len(stmt.Where) == 0 {
		return nil
	}
	sb.WriteString("\nWHERE ")
	for i, w := range stmt.Where {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(p.quote(w.Column))
		sb.WriteByte(' ')
		sb.WriteString(w.Op)
		if w.Op == query.OpIsNull || w.Op == query.OpIsNotNull {
			continue
		}
		if w.Right == nil {
			return fmt.Errorf("predicate on %q has no right operand", w.Column)
		}
		v, err := p.operand(stmt, w.Right)
		if err != nil {
			return err
		}
		sb.WriteByte(' ')
		sb.WriteString(v)
	}
	return nil
}

func (p *basicProvider) operand(stmt *query.Statement, o *query.Operand) (string, error) {
	switch o.Kind {
	case query.OperandParameter:
		if _, ok := stmt.Parameter(o.Name); !ok {
			return "", fmt.Errorf("parameter %q is not declared", o.Name)
		}
		return p.d.paramPrefix + o.Name, nil
	case query.OperandColumn:
		return p.quote(o.Name), nil
	default:
		return p.literal(o.Value), nil
	}
}

func (p *basicProvider) quote(name string) string {
	return p.d.quoteOpen + name + p.d.quoteClose
}

func (p *basicProvider) literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return QuoteString(x)
	case query.Char:
		return QuoteString(string(rune(x)))
	case bool:
		if x {
			return p.d.trueLiteral
		}
		return p.d.falseLiteral
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(x)) + "'"
	case time.Time:
		return "'" + x.Format("2006-01-02 15:04:05.000") + "'"
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// QuoteString wraps s in single quotes, doubling embedded quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
