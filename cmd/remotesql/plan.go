package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dan-strohschein/remotedb/query"
)

// readPlan decodes a JSON statement from path, or from stdin when path is "-".
//
//	{"kind": "SELECT", "table": "Person", "columns": ["ID", "Name"],
//	 "where": [{"column": "Name", "op": "=", "right": {"kind": 1, "name": "name"}}],
//	 "parameters": [{"name": "name", "value": "Ann"}]}
func readPlan(path string, stdin io.Reader) (*query.Statement, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	dec.UseNumber()

	var stmt query.Statement
	if err := dec.Decode(&stmt); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", path, err)
	}
	normalizeNumbers(&stmt)
	if err := stmt.Validate(); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return &stmt, nil
}

// normalizeNumbers turns json.Number values into int64 when they are
// integral and float64 otherwise.
func normalizeNumbers(stmt *query.Statement) {
	for _, p := range stmt.Parameters {
		p.Value = number(p.Value)
	}
	operand := func(o *query.Operand) {
		if o != nil {
			o.Value = number(o.Value)
		}
	}
	for _, w := range stmt.Where {
		operand(w.Right)
	}
	for _, a := range stmt.Set {
		operand(a.Value)
	}
	operand(stmt.Take)
	operand(stmt.Skip)
}

func number(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
