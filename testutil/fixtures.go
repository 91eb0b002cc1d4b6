package testutil

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dan-strohschein/remotedb/query"
	"github.com/dan-strohschein/remotedb/result"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/sqlprovider"
)

// Option overrides column values of a fixture row.
type Option func(map[string]interface{})

// WithField sets a specific column value.
func WithField(name string, value interface{}) Option {
	return func(data map[string]interface{}) {
		data[name] = value
	}
}

// WithFields sets multiple column values.
func WithFields(fields map[string]interface{}) Option {
	return func(data map[string]interface{}) {
		for k, v := range fields {
			data[k] = v
		}
	}
}

var (
	idSequence   uint64
	nameSequence uint64
)

// SequenceID generates unique IDs.
func SequenceID() int64 {
	return int64(atomic.AddUint64(&idSequence, 1))
}

// SequenceName generates unique person names.
func SequenceName() string {
	n := atomic.AddUint64(&nameSequence, 1)
	return fmt.Sprintf("Person %d", n)
}

// RowFactory builds result rows from per-column defaults. A default may be a
// generator func, which is called once per row.
type RowFactory struct {
	columns  []result.Column
	defaults map[string]interface{}
}

// NewRowFactory creates a factory for columns. Columns without a default are
// NULL unless overridden.
func NewRowFactory(columns []result.Column, defaults map[string]interface{}) *RowFactory {
	return &RowFactory{columns: columns, defaults: defaults}
}

// Columns returns the fixture's columns.
func (f *RowFactory) Columns() []result.Column {
	out := make([]result.Column, len(f.columns))
	copy(out, f.columns)
	return out
}

// Build returns one row keyed by column name.
func (f *RowFactory) Build(options ...Option) map[string]interface{} {
	data := make(map[string]interface{}, len(f.defaults))
	for k, v := range f.defaults {
		data[k] = v
	}
	for _, opt := range options {
		opt(data)
	}

	for k, v := range data {
		switch fn := v.(type) {
		case func() int64:
			data[k] = fn()
		case func() string:
			data[k] = fn()
		case func() time.Time:
			data[k] = fn()
		case func() bool:
			data[k] = fn()
		}
	}
	return data
}

// Table builds a result table with count rows. Options apply to every row.
func (f *RowFactory) Table(count int, options ...Option) (*result.Table, error) {
	tbl := result.NewTable(f.Columns()...)
	for i := 0; i < count; i++ {
		row := f.Build(options...)
		values := make([]any, len(f.columns))
		for j, c := range f.columns {
			values[j] = row[c.Name]
		}
		if err := tbl.AddRow(values...); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// NewPersonFactory creates a factory for a Person table: ID, Name, Active and
// Born.
func NewPersonFactory() *RowFactory {
	return NewRowFactory(
		[]result.Column{
			{Name: "ID", Type: "int64"},
			{Name: "Name", Type: "string", Nullable: true},
			{Name: "Active", Type: "bool"},
			{Name: "Born", Type: "Time", Nullable: true},
		},
		map[string]interface{}{
			"ID":     SequenceID,
			"Name":   SequenceName,
			"Active": true,
			"Born":   time.Date(1980, 1, 2, 0, 0, 0, 0, time.UTC),
		},
	)
}

// Info returns executor metadata for dialect with default flags.
func Info(dialect string, aliases ...string) *service.Info {
	return &service.Info{
		Configurations: aliases,
		Dialect:        dialect,
		Flags:          sqlprovider.DefaultFlags(),
	}
}

// SelectStatement returns a SELECT of columns from table whose WHERE clause
// compares each parameter to the column of the same name. Parameters are
// declared in name order.
func SelectStatement(table string, columns []string, params map[string]any) *query.Statement {
	stmt := &query.Statement{Kind: query.KindSelect, Table: table, Columns: columns}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stmt.Where = append(stmt.Where, &query.Predicate{Column: name, Op: query.OpEq, Right: query.Param(name)})
		stmt.Parameters = append(stmt.Parameters, query.NewParameter(name, params[name]))
	}
	return stmt
}

// RawStatement returns a KindRaw statement.
func RawStatement(text string) *query.Statement {
	return &query.Statement{Kind: query.KindRaw, Text: text}
}
