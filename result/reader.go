package result

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by a Reader used after Close.
var ErrClosed = errors.New("reader is closed")

// ErrNoRow is returned when a value is read before Next or after the last row.
var ErrNoRow = errors.New("reader is not positioned on a row")

// Reader is a forward-only cursor over a Table.
type Reader struct {
	table   *Table
	pos     int
	closed  bool
	conv    Converter
	onClose func() error
}

// NewReader creates a reader positioned before the first row.
func NewReader(t *Table) *Reader {
	if t == nil {
		t = &Table{}
	}
	return &Reader{table: t, pos: -1}
}

// OnClose registers fn to run once when the reader is closed.
func (r *Reader) OnClose(fn func() error) {
	r.onClose = fn
}

// Next advances to the next row.
func (r *Reader) Next() bool {
	if r.closed || r.pos >= len(r.table.Rows) {
		return false
	}
	r.pos++
	return r.pos < len(r.table.Rows)
}

// Columns returns the column schema.
func (r *Reader) Columns() []Column { return r.table.Columns }

// FieldCount returns the number of columns.
func (r *Reader) FieldCount() int { return len(r.table.Columns) }

// Ordinal returns the index of the named column, or -1.
func (r *Reader) Ordinal(name string) int { return r.table.Ordinal(name) }

func (r *Reader) row() ([]any, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.pos < 0 || r.pos >= len(r.table.Rows) {
		return nil, ErrNoRow
	}
	return r.table.Rows[r.pos], nil
}

// Value returns the raw value of column i in the current row.
func (r *Reader) Value(i int) (any, error) {
	row, err := r.row()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(row) {
		return nil, fmt.Errorf("column index %d out of range [0,%d)", i, len(row))
	}
	return row[i], nil
}

// Values returns a copy of the current row.
func (r *Reader) Values() ([]any, error) {
	row, err := r.row()
	if err != nil {
		return nil, err
	}
	out := make([]any, len(row))
	copy(out, row)
	return out, nil
}

// IsNull reports whether column i is nil in the current row.
func (r *Reader) IsNull(i int) (bool, error) {
	v, err := r.Value(i)
	if err != nil {
		return false, err
	}
	return v == nil, nil
}

func (r *Reader) GetString(i int) (string, error) {
	v, err := r.Value(i)
	if err != nil {
		return "", err
	}
	return r.conv.ToString(v), nil
}

func (r *Reader) GetInt64(i int) (int64, error) {
	v, err := r.Value(i)
	if err != nil {
		return 0, err
	}
	return r.conv.ToInt64(v)
}

func (r *Reader) GetFloat64(i int) (float64, error) {
	v, err := r.Value(i)
	if err != nil {
		return 0, err
	}
	return r.conv.ToFloat64(v)
}

func (r *Reader) GetBool(i int) (bool, error) {
	v, err := r.Value(i)
	if err != nil {
		return false, err
	}
	return r.conv.ToBool(v)
}

func (r *Reader) GetTime(i int) (time.Time, error) {
	v, err := r.Value(i)
	if err != nil {
		return time.Time{}, err
	}
	return r.conv.ToTime(v)
}

func (r *Reader) GetBytes(i int) ([]byte, error) {
	v, err := r.Value(i)
	if err != nil {
		return nil, err
	}
	return r.conv.ToBytes(v)
}

// Scan copies the current row into dest, converting where needed. Supported
// destinations are *string, *int, *int64, *float64, *bool, *time.Time,
// *[]byte and *any.
func (r *Reader) Scan(dest ...any) error {
	row, err := r.row()
	if err != nil {
		return err
	}
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destination arguments in Scan, not %d", len(row), len(dest))
	}
	for i, d := range dest {
		if err := r.scanOne(row[i], d); err != nil {
			return fmt.Errorf("column %q: %w", r.table.Columns[i].Name, err)
		}
	}
	return nil
}

func (r *Reader) scanOne(v any, dest any) error {
	var err error
	switch d := dest.(type) {
	case *any:
		*d = v
	case *string:
		*d = r.conv.ToString(v)
	case *int64:
		*d, err = r.conv.ToInt64(v)
	case *int:
		var i int64
		i, err = r.conv.ToInt64(v)
		*d = int(i)
	case *float64:
		*d, err = r.conv.ToFloat64(v)
	case *bool:
		*d, err = r.conv.ToBool(v)
	case *time.Time:
		*d, err = r.conv.ToTime(v)
	case *[]byte:
		*d, err = r.conv.ToBytes(v)
	default:
		err = fmt.Errorf("unsupported scan destination %T", dest)
	}
	return err
}

// Close releases the reader. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.onClose != nil {
		fn := r.onClose
		r.onClose = nil
		return fn()
	}
	return nil
}
