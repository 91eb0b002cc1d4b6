// Package query holds the provider-neutral description of a statement that the
// client ships to a remote executor.
//
// A Statement is the output of a query compiler: it names a table, the columns
// involved, the predicates and assignments, and the parameters those refer to.
// Dialects in the sqlprovider package turn it into SQL text; the protocol
// package turns it into bytes.
package query

import (
	"fmt"
)

// Kind identifies the statement shape.
type Kind int

const (
	// KindSelect reads rows.
	KindSelect Kind = iota
	// KindInsert adds a row.
	KindInsert
	// KindUpdate changes rows matching Where.
	KindUpdate
	// KindDelete removes rows matching Where.
	KindDelete
	// KindRaw carries SQL text the compiler produced verbatim.
	KindRaw
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindRaw:
		return "RAW"
	default:
		return "UNKNOWN"
	}
}

// ParseKind converts a kind name back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "SELECT":
		return KindSelect, nil
	case "INSERT":
		return KindInsert, nil
	case "UPDATE":
		return KindUpdate, nil
	case "DELETE":
		return KindDelete, nil
	case "RAW":
		return KindRaw, nil
	default:
		return 0, fmt.Errorf("unknown statement kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Char is a single character value. It is distinct from rune so that SQL text
// rendering can quote it the way it quotes strings.
type Char rune

// Parameter is a named statement parameter.
type Parameter struct {
	Name string `json:"name"`

	// Value is the current runtime value. It may be nil.
	Value any `json:"value"`

	// SystemType is the declared type name, reported when Value is nil.
	SystemType string `json:"systemType,omitempty"`
}

// NewParameter creates a parameter with a value.
func NewParameter(name string, value any) *Parameter {
	return &Parameter{Name: name, Value: value}
}

// TypeName returns the name of the value's runtime type, or SystemType when
// the value is nil.
func (p *Parameter) TypeName() string {
	if p.Value == nil {
		return p.SystemType
	}
	return typeName(p.Value)
}

// OperandKind says what an Operand refers to.
type OperandKind int

const (
	// OperandLiteral is a constant embedded in the statement.
	OperandLiteral OperandKind = iota
	// OperandParameter refers to a Parameter by name.
	OperandParameter
	// OperandColumn refers to another column of the same table.
	OperandColumn
)

// Operand is the right-hand side of a predicate or assignment.
type Operand struct {
	Kind  OperandKind `json:"kind"`
	Name  string      `json:"name,omitempty"`
	Value any         `json:"value,omitempty"`
}

// Literal returns a literal operand.
func Literal(v any) *Operand { return &Operand{Kind: OperandLiteral, Value: v} }

// Param returns an operand referring to the named parameter.
func Param(name string) *Operand { return &Operand{Kind: OperandParameter, Name: name} }

// Column returns an operand referring to a column.
func Column(name string) *Operand { return &Operand{Kind: OperandColumn, Name: name} }

// Predicate is a single comparison. Predicates in a Where list are ANDed.
type Predicate struct {
	Column string   `json:"column"`
	Op     string   `json:"op"`
	Right  *Operand `json:"right,omitempty"`
}

// Comparison operators understood by the dialects.
const (
	OpEq        = "="
	OpNe        = "<>"
	OpLt        = "<"
	OpLe        = "<="
	OpGt        = ">"
	OpGe        = ">="
	OpLike      = "LIKE"
	OpIsNull    = "IS NULL"
	OpIsNotNull = "IS NOT NULL"
)

// Assignment sets a column in INSERT or UPDATE.
type Assignment struct {
	Column string   `json:"column"`
	Value  *Operand `json:"value"`
}

// Order is one ORDER BY term.
type Order struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// Statement is the provider-neutral query plan.
type Statement struct {
	Kind    Kind          `json:"kind"`
	Table   string        `json:"table,omitempty"`
	Columns []string      `json:"columns,omitempty"`
	Where   []*Predicate  `json:"where,omitempty"`
	Set     []*Assignment `json:"set,omitempty"`
	OrderBy []*Order      `json:"orderBy,omitempty"`

	// Take and Skip limit the rows of a SELECT. Nil means absent.
	Take *Operand `json:"take,omitempty"`
	Skip *Operand `json:"skip,omitempty"`

	// WithIdentity asks an INSERT to also return the generated identity.
	WithIdentity bool `json:"withIdentity,omitempty"`

	// Text is the SQL of a KindRaw statement.
	Text string `json:"text,omitempty"`

	Parameters []*Parameter `json:"parameters,omitempty"`

	// IsParameterDependent marks statements whose SQL text changes with
	// parameter values. Their rendering is never cached.
	IsParameterDependent bool `json:"isParameterDependent,omitempty"`
}

// Parameter returns the declared parameter with the given name.
func (s *Statement) Parameter(name string) (*Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Validate checks the statement is complete enough to be rendered or sent.
func (s *Statement) Validate() error {
	if s == nil {
		return fmt.Errorf("statement is nil")
	}
	switch s.Kind {
	case KindRaw:
		if s.Text == "" {
			return fmt.Errorf("raw statement has no text")
		}
	case KindSelect, KindInsert, KindUpdate, KindDelete:
		if s.Table == "" {
			return fmt.Errorf("%s statement has no table", s.Kind)
		}
		if (s.Kind == KindInsert || s.Kind == KindUpdate) && len(s.Set) == 0 {
			return fmt.Errorf("%s statement has no assignments", s.Kind)
		}
	default:
		return fmt.Errorf("unknown statement kind %d", int(s.Kind))
	}

	check := func(o *Operand) error {
		if o != nil && o.Kind == OperandParameter {
			if _, ok := s.Parameter(o.Name); !ok {
				return fmt.Errorf("parameter %q is not declared", o.Name)
			}
		}
		return nil
	}
	for _, p := range s.Where {
		if err := check(p.Right); err != nil {
			return err
		}
	}
	for _, a := range s.Set {
		if err := check(a.Value); err != nil {
			return err
		}
	}
	if err := check(s.Take); err != nil {
		return err
	}
	return check(s.Skip)
}

// ProcessParameters returns the statement to send for execution.
//
// A statement that is not parameter-dependent is returned as is. For a
// parameter-dependent one a copy is returned in which equality comparisons
// against a nil-valued parameter become IS NULL / IS NOT NULL, and Parameters
// lists only the parameters still referenced.
func (s *Statement) ProcessParameters() *Statement {
	if !s.IsParameterDependent {
		return s
	}

	out := *s
	out.Where = make([]*Predicate, 0, len(s.Where))
	used := make(map[string]bool)

	for _, p := range s.Where {
		np := *p
		if p.Right != nil && p.Right.Kind == OperandParameter {
			if param, ok := s.Parameter(p.Right.Name); ok && param.Value == nil {
				switch p.Op {
				case OpEq:
					np = Predicate{Column: p.Column, Op: OpIsNull}
				case OpNe:
					np = Predicate{Column: p.Column, Op: OpIsNotNull}
				}
			}
		}
		if np.Right != nil && np.Right.Kind == OperandParameter {
			used[np.Right.Name] = true
		}
		out.Where = append(out.Where, &np)
	}

	mark := func(o *Operand) {
		if o != nil && o.Kind == OperandParameter {
			used[o.Name] = true
		}
	}
	for _, a := range s.Set {
		mark(a.Value)
	}
	mark(s.Take)
	mark(s.Skip)

	out.Parameters = make([]*Parameter, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		if used[p.Name] {
			out.Parameters = append(out.Parameters, p)
		}
	}

	return &out
}
