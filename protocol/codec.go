// Package protocol provides encoding and decoding for the remote query
// protocol.
//
// Every payload is a protobuf message from the well-known structpb types,
// marshaled with proto. Values that structpb cannot carry natively (64-bit
// integers, bytes, times, characters) travel in a typed envelope so that a
// statement and a table round-trip without loss.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dan-strohschein/remotedb/query"
	"github.com/dan-strohschein/remotedb/result"
	"github.com/dan-strohschein/remotedb/service"
)

// PROTOCOL_VERSION is the current wire protocol version
const PROTOCOL_VERSION = 1

// Codec handles encoding and decoding of protocol messages
type Codec interface {
	// EncodeQuery serializes a statement and the parameter values of one
	// execution.
	EncodeQuery(stmt *query.Statement, params []*query.Parameter) ([]byte, error)
	DecodeQuery(data []byte) (*query.Statement, []*query.Parameter, error)

	// EncodeBatch serializes a list of EncodeQuery payloads.
	EncodeBatch(items [][]byte) ([]byte, error)
	DecodeBatch(data []byte) ([][]byte, error)

	EncodeResult(t *result.Table) ([]byte, error)
	DecodeResult(data []byte) (*result.Table, error)

	EncodeScalar(v any) ([]byte, error)
	DecodeScalar(data []byte) (any, error)

	EncodeInfo(info *service.Info) ([]byte, error)
	DecodeInfo(data []byte) (*service.Info, error)

	// EncodeRequest and EncodeResponse frame calls on stream transports.
	EncodeRequest(req *Request) ([]byte, error)
	DecodeRequest(data []byte) (*Request, error)
	EncodeResponse(resp *Response) ([]byte, error)
	DecodeResponse(data []byte) (*Response, error)
}

// StructCodec implements Codec over structpb messages.
type StructCodec struct{}

// NewCodec creates a new protocol codec
func NewCodec() Codec {
	return &StructCodec{}
}

func marshal(subject string, m proto.Message) ([]byte, error) {
	data, err := proto.Marshal(m)
	if err != nil {
		return nil, encodeErr(subject, "marshal failed", err)
	}
	return data, nil
}

func unmarshalStruct(subject string, data []byte) (*structpb.Struct, error) {
	if len(data) == 0 {
		return nil, decodeErr(subject, "empty payload", nil)
	}
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return nil, decodeErr(subject, "unmarshal failed", err)
	}
	return s, nil
}

// EncodeQuery serializes a statement and its execution parameters.
func (c *StructCodec) EncodeQuery(stmt *query.Statement, params []*query.Parameter) ([]byte, error) {
	if err := stmt.Validate(); err != nil {
		return nil, encodeErr("query", "invalid statement", err)
	}
	sv, err := encodeStatement(stmt)
	if err != nil {
		return nil, encodeErr("query", "statement", err)
	}
	pv, err := encodeParameters(params)
	if err != nil {
		return nil, encodeErr("query", "parameters", err)
	}
	return marshal("query", &structpb.Struct{Fields: map[string]*structpb.Value{
		"version":    structpb.NewNumberValue(PROTOCOL_VERSION),
		"statement":  sv,
		"parameters": pv,
	}})
}

// DecodeQuery reverses EncodeQuery.
func (c *StructCodec) DecodeQuery(data []byte) (*query.Statement, []*query.Parameter, error) {
	s, err := unmarshalStruct("query", data)
	if err != nil {
		return nil, nil, err
	}
	f := s.GetFields()
	if v := int(f["version"].GetNumberValue()); v != PROTOCOL_VERSION {
		return nil, nil, decodeErr("query", fmt.Sprintf("unsupported protocol version %d", v), nil)
	}
	stmt, err := decodeStatement(f["statement"].GetStructValue())
	if err != nil {
		return nil, nil, decodeErr("query", "statement", err)
	}
	params, err := decodeParameters(f["parameters"])
	if err != nil {
		return nil, nil, decodeErr("query", "parameters", err)
	}
	return stmt, params, nil
}

// EncodeBatch serializes a list of query payloads as one array.
func (c *StructCodec) EncodeBatch(items [][]byte) ([]byte, error) {
	values := make([]*structpb.Value, len(items))
	for i, item := range items {
		values[i] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(item))
	}
	return marshal("batch", &structpb.ListValue{Values: values})
}

// DecodeBatch reverses EncodeBatch.
func (c *StructCodec) DecodeBatch(data []byte) ([][]byte, error) {
	l := &structpb.ListValue{}
	if err := proto.Unmarshal(data, l); err != nil {
		return nil, decodeErr("batch", "unmarshal failed", err)
	}
	items := make([][]byte, len(l.GetValues()))
	for i, v := range l.GetValues() {
		b, err := base64.StdEncoding.DecodeString(v.GetStringValue())
		if err != nil {
			return nil, decodeErr("batch", fmt.Sprintf("item %d", i), err)
		}
		items[i] = b
	}
	return items, nil
}

// EncodeResult serializes a table.
func (c *StructCodec) EncodeResult(t *result.Table) ([]byte, error) {
	if t == nil {
		return nil, encodeErr("result", "table is nil", nil)
	}
	if err := t.Validate(); err != nil {
		return nil, encodeErr("result", "invalid table", err)
	}

	cols := make([]*structpb.Value, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"name":     structpb.NewStringValue(col.Name),
			"type":     structpb.NewStringValue(col.Type),
			"nullable": structpb.NewBoolValue(col.Nullable),
		}})
	}

	rows := make([]*structpb.Value, len(t.Rows))
	for i, row := range t.Rows {
		values := make([]*structpb.Value, len(row))
		for j, v := range row {
			ev, err := encodeValue(v)
			if err != nil {
				return nil, encodeErr("result", fmt.Sprintf("row %d column %q", i, t.Columns[j].Name), err)
			}
			values[j] = ev
		}
		rows[i] = structpb.NewListValue(&structpb.ListValue{Values: values})
	}

	return marshal("result", &structpb.Struct{Fields: map[string]*structpb.Value{
		"columns": structpb.NewListValue(&structpb.ListValue{Values: cols}),
		"rows":    structpb.NewListValue(&structpb.ListValue{Values: rows}),
	}})
}

// DecodeResult reverses EncodeResult.
func (c *StructCodec) DecodeResult(data []byte) (*result.Table, error) {
	s, err := unmarshalStruct("result", data)
	if err != nil {
		return nil, err
	}

	t := &result.Table{}
	for _, cv := range s.GetFields()["columns"].GetListValue().GetValues() {
		cf := cv.GetStructValue().GetFields()
		t.Columns = append(t.Columns, result.Column{
			Name:     cf["name"].GetStringValue(),
			Type:     cf["type"].GetStringValue(),
			Nullable: cf["nullable"].GetBoolValue(),
		})
	}

	for i, rv := range s.GetFields()["rows"].GetListValue().GetValues() {
		values := rv.GetListValue().GetValues()
		if len(values) != len(t.Columns) {
			return nil, decodeErr("result", fmt.Sprintf("row %d has %d values, table has %d columns", i, len(values), len(t.Columns)), nil)
		}
		row := make([]any, len(values))
		for j, v := range values {
			dv, err := decodeValue(v)
			if err != nil {
				return nil, decodeErr("result", fmt.Sprintf("row %d column %d", i, j), err)
			}
			row[j] = dv
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// EncodeScalar serializes a single value.
func (c *StructCodec) EncodeScalar(v any) ([]byte, error) {
	ev, err := encodeValue(v)
	if err != nil {
		return nil, encodeErr("scalar", "value", err)
	}
	return marshal("scalar", ev)
}

// DecodeScalar reverses EncodeScalar.
func (c *StructCodec) DecodeScalar(data []byte) (any, error) {
	pv := &structpb.Value{}
	if err := proto.Unmarshal(data, pv); err != nil {
		return nil, decodeErr("scalar", "unmarshal failed", err)
	}
	v, err := decodeValue(pv)
	if err != nil {
		return nil, decodeErr("scalar", "value", err)
	}
	return v, nil
}

// EncodeInfo serializes configuration metadata. Flags are carried through
// their JSON field names.
func (c *StructCodec) EncodeInfo(info *service.Info) ([]byte, error) {
	s, err := infoToStruct(info)
	if err != nil {
		return nil, encodeErr("info", "convert", err)
	}
	return marshal("info", s)
}

// DecodeInfo reverses EncodeInfo.
func (c *StructCodec) DecodeInfo(data []byte) (*service.Info, error) {
	s, err := unmarshalStruct("info", data)
	if err != nil {
		return nil, err
	}
	info, err := infoFromStruct(s)
	if err != nil {
		return nil, decodeErr("info", "convert", err)
	}
	return info, nil
}

func infoToStruct(info *service.Info) (*structpb.Struct, error) {
	if info == nil {
		return nil, fmt.Errorf("info is nil")
	}
	flags, err := flagsToStruct(info)
	if err != nil {
		return nil, err
	}
	configs := make([]*structpb.Value, len(info.Configurations))
	for i, name := range info.Configurations {
		configs[i] = structpb.NewStringValue(name)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"configurations": structpb.NewListValue(&structpb.ListValue{Values: configs}),
		"dialect":        structpb.NewStringValue(info.Dialect),
		"flags":          structpb.NewStructValue(flags),
	}}, nil
}

func infoFromStruct(s *structpb.Struct) (*service.Info, error) {
	f := s.GetFields()
	info := &service.Info{Dialect: f["dialect"].GetStringValue()}
	for _, v := range f["configurations"].GetListValue().GetValues() {
		info.Configurations = append(info.Configurations, v.GetStringValue())
	}
	if fs := f["flags"].GetStructValue(); fs != nil {
		raw, err := protojson.Marshal(fs)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &info.Flags); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func flagsToStruct(info *service.Info) (*structpb.Struct, error) {
	raw, err := json.Marshal(info.Flags)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}
