package protocol

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dan-strohschein/remotedb/query"
)

var operandKinds = map[query.OperandKind]string{
	query.OperandLiteral:   "literal",
	query.OperandParameter: "parameter",
	query.OperandColumn:    "column",
}

func stringList(values []string) *structpb.Value {
	out := make([]*structpb.Value, len(values))
	for i, v := range values {
		out[i] = structpb.NewStringValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: out})
}

func list(values []*structpb.Value) *structpb.Value {
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func object(fields map[string]*structpb.Value) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

func encodeOperand(o *query.Operand) (*structpb.Value, error) {
	if o == nil {
		return structpb.NewNullValue(), nil
	}
	kind, ok := operandKinds[o.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown operand kind %d", int(o.Kind))
	}
	v, err := encodeValue(o.Value)
	if err != nil {
		return nil, err
	}
	return object(map[string]*structpb.Value{
		"kind":  structpb.NewStringValue(kind),
		"name":  structpb.NewStringValue(o.Name),
		"value": v,
	}), nil
}

func decodeOperand(v *structpb.Value) (*query.Operand, error) {
	s := v.GetStructValue()
	if s == nil {
		return nil, nil
	}
	f := s.GetFields()
	o := &query.Operand{Name: f["name"].GetStringValue()}
	kind := f["kind"].GetStringValue()
	found := false
	for k, name := range operandKinds {
		if name == kind {
			o.Kind = k
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown operand kind %q", kind)
	}
	val, err := decodeValue(f["value"])
	if err != nil {
		return nil, err
	}
	o.Value = val
	return o, nil
}

func encodeParameters(params []*query.Parameter) (*structpb.Value, error) {
	if params == nil {
		return structpb.NewNullValue(), nil
	}
	out := make([]*structpb.Value, len(params))
	for i, p := range params {
		v, err := encodeValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		out[i] = object(map[string]*structpb.Value{
			"name":       structpb.NewStringValue(p.Name),
			"value":      v,
			"systemType": structpb.NewStringValue(p.SystemType),
		})
	}
	return list(out), nil
}

func decodeParameters(v *structpb.Value) ([]*query.Parameter, error) {
	l := v.GetListValue()
	if l == nil {
		return nil, nil
	}
	out := make([]*query.Parameter, 0, len(l.GetValues()))
	for _, pv := range l.GetValues() {
		f := pv.GetStructValue().GetFields()
		val, err := decodeValue(f["value"])
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", f["name"].GetStringValue(), err)
		}
		out = append(out, &query.Parameter{
			Name:       f["name"].GetStringValue(),
			Value:      val,
			SystemType: f["systemType"].GetStringValue(),
		})
	}
	return out, nil
}

func encodeStatement(s *query.Statement) (*structpb.Value, error) {
	where := make([]*structpb.Value, len(s.Where))
	for i, p := range s.Where {
		right, err := encodeOperand(p.Right)
		if err != nil {
			return nil, fmt.Errorf("where %d: %w", i, err)
		}
		where[i] = object(map[string]*structpb.Value{
			"column": structpb.NewStringValue(p.Column),
			"op":     structpb.NewStringValue(p.Op),
			"right":  right,
		})
	}

	set := make([]*structpb.Value, len(s.Set))
	for i, a := range s.Set {
		v, err := encodeOperand(a.Value)
		if err != nil {
			return nil, fmt.Errorf("set %q: %w", a.Column, err)
		}
		set[i] = object(map[string]*structpb.Value{
			"column": structpb.NewStringValue(a.Column),
			"value":  v,
		})
	}

	orderBy := make([]*structpb.Value, len(s.OrderBy))
	for i, o := range s.OrderBy {
		orderBy[i] = object(map[string]*structpb.Value{
			"column": structpb.NewStringValue(o.Column),
			"desc":   structpb.NewBoolValue(o.Desc),
		})
	}

	take, err := encodeOperand(s.Take)
	if err != nil {
		return nil, fmt.Errorf("take: %w", err)
	}
	skip, err := encodeOperand(s.Skip)
	if err != nil {
		return nil, fmt.Errorf("skip: %w", err)
	}
	params, err := encodeParameters(s.Parameters)
	if err != nil {
		return nil, err
	}

	return object(map[string]*structpb.Value{
		"kind":                 structpb.NewStringValue(s.Kind.String()),
		"table":                structpb.NewStringValue(s.Table),
		"columns":              stringList(s.Columns),
		"where":                list(where),
		"set":                  list(set),
		"orderBy":              list(orderBy),
		"take":                 take,
		"skip":                 skip,
		"withIdentity":         structpb.NewBoolValue(s.WithIdentity),
		"text":                 structpb.NewStringValue(s.Text),
		"parameters":           params,
		"isParameterDependent": structpb.NewBoolValue(s.IsParameterDependent),
	}), nil
}

func decodeStatement(s *structpb.Struct) (*query.Statement, error) {
	if s == nil {
		return nil, fmt.Errorf("missing statement")
	}
	f := s.GetFields()

	kind, err := query.ParseKind(f["kind"].GetStringValue())
	if err != nil {
		return nil, err
	}
	stmt := &query.Statement{
		Kind:                 kind,
		Table:                f["table"].GetStringValue(),
		WithIdentity:         f["withIdentity"].GetBoolValue(),
		Text:                 f["text"].GetStringValue(),
		IsParameterDependent: f["isParameterDependent"].GetBoolValue(),
	}

	for _, c := range f["columns"].GetListValue().GetValues() {
		stmt.Columns = append(stmt.Columns, c.GetStringValue())
	}
	for i, wv := range f["where"].GetListValue().GetValues() {
		wf := wv.GetStructValue().GetFields()
		right, err := decodeOperand(wf["right"])
		if err != nil {
			return nil, fmt.Errorf("where %d: %w", i, err)
		}
		stmt.Where = append(stmt.Where, &query.Predicate{
			Column: wf["column"].GetStringValue(),
			Op:     wf["op"].GetStringValue(),
			Right:  right,
		})
	}
	for _, av := range f["set"].GetListValue().GetValues() {
		af := av.GetStructValue().GetFields()
		v, err := decodeOperand(af["value"])
		if err != nil {
			return nil, fmt.Errorf("set %q: %w", af["column"].GetStringValue(), err)
		}
		stmt.Set = append(stmt.Set, &query.Assignment{Column: af["column"].GetStringValue(), Value: v})
	}
	for _, ov := range f["orderBy"].GetListValue().GetValues() {
		of := ov.GetStructValue().GetFields()
		stmt.OrderBy = append(stmt.OrderBy, &query.Order{
			Column: of["column"].GetStringValue(),
			Desc:   of["desc"].GetBoolValue(),
		})
	}

	if stmt.Take, err = decodeOperand(f["take"]); err != nil {
		return nil, fmt.Errorf("take: %w", err)
	}
	if stmt.Skip, err = decodeOperand(f["skip"]); err != nil {
		return nil, fmt.Errorf("skip: %w", err)
	}
	if stmt.Parameters, err = decodeParameters(f["parameters"]); err != nil {
		return nil, err
	}
	return stmt, nil
}
