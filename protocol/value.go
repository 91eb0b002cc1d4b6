package protocol

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dan-strohschein/remotedb/query"
)

// Type tags of the typed value envelope. A non-nil value is sent as
// {"t": tag, "v": payload}; integers travel as decimal strings so 64-bit
// values survive the double-precision number type.
const (
	tagBool    = "bool"
	tagInt     = "int"
	tagInt8    = "int8"
	tagInt16   = "int16"
	tagInt32   = "int32"
	tagInt64   = "int64"
	tagUint    = "uint"
	tagUint8   = "uint8"
	tagUint16  = "uint16"
	tagUint32  = "uint32"
	tagUint64  = "uint64"
	tagFloat32 = "float32"
	tagFloat64 = "float64"
	tagString  = "string"
	tagChar    = "char"
	tagBytes   = "bytes"
	tagTime    = "time"
)

func tagged(tag string, v *structpb.Value) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"t": structpb.NewStringValue(tag),
		"v": v,
	}})
}

func encodeValue(v any) (*structpb.Value, error) {
	switch x := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case bool:
		return tagged(tagBool, structpb.NewBoolValue(x)), nil
	case int:
		return tagged(tagInt, intString(int64(x))), nil
	case int8:
		return tagged(tagInt8, intString(int64(x))), nil
	case int16:
		return tagged(tagInt16, intString(int64(x))), nil
	case int32:
		return tagged(tagInt32, intString(int64(x))), nil
	case int64:
		return tagged(tagInt64, intString(x)), nil
	case uint:
		return tagged(tagUint, uintString(uint64(x))), nil
	case uint8:
		return tagged(tagUint8, uintString(uint64(x))), nil
	case uint16:
		return tagged(tagUint16, uintString(uint64(x))), nil
	case uint32:
		return tagged(tagUint32, uintString(uint64(x))), nil
	case uint64:
		return tagged(tagUint64, uintString(x)), nil
	case float32:
		return tagged(tagFloat32, structpb.NewNumberValue(float64(x))), nil
	case float64:
		return tagged(tagFloat64, structpb.NewNumberValue(x)), nil
	case string:
		return tagged(tagString, structpb.NewStringValue(x)), nil
	case query.Char:
		return tagged(tagChar, structpb.NewStringValue(string(rune(x)))), nil
	case []byte:
		return tagged(tagBytes, structpb.NewStringValue(base64.StdEncoding.EncodeToString(x))), nil
	case time.Time:
		return tagged(tagTime, structpb.NewStringValue(x.Format(time.RFC3339Nano))), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func intString(i int64) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatInt(i, 10))
}

func uintString(u uint64) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatUint(u, 10))
}

func decodeValue(pv *structpb.Value) (any, error) {
	if pv == nil {
		return nil, nil
	}
	if _, ok := pv.GetKind().(*structpb.Value_NullValue); ok {
		return nil, nil
	}
	s := pv.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("value is not a typed envelope")
	}
	tag := s.GetFields()["t"].GetStringValue()
	v := s.GetFields()["v"]
	if v == nil {
		return nil, fmt.Errorf("typed value %q has no payload", tag)
	}

	switch tag {
	case tagBool:
		return v.GetBoolValue(), nil
	case tagInt, tagInt8, tagInt16, tagInt32, tagInt64:
		return parseInt(tag, v.GetStringValue())
	case tagUint, tagUint8, tagUint16, tagUint32, tagUint64:
		return parseUint(tag, v.GetStringValue())
	case tagFloat32:
		return float32(v.GetNumberValue()), nil
	case tagFloat64:
		return v.GetNumberValue(), nil
	case tagString:
		return v.GetStringValue(), nil
	case tagChar:
		r := []rune(v.GetStringValue())
		if len(r) != 1 {
			return nil, fmt.Errorf("char payload %q is not one character", v.GetStringValue())
		}
		return query.Char(r[0]), nil
	case tagBytes:
		return base64.StdEncoding.DecodeString(v.GetStringValue())
	case tagTime:
		return time.Parse(time.RFC3339Nano, v.GetStringValue())
	default:
		return nil, fmt.Errorf("unknown value type tag %q", tag)
	}
}

func parseInt(tag, s string) (any, error) {
	bits := map[string]int{tagInt: strconv.IntSize, tagInt8: 8, tagInt16: 16, tagInt32: 32, tagInt64: 64}[tag]
	i, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagInt:
		return int(i), nil
	case tagInt8:
		return int8(i), nil
	case tagInt16:
		return int16(i), nil
	case tagInt32:
		return int32(i), nil
	default:
		return i, nil
	}
}

func parseUint(tag, s string) (any, error) {
	bits := map[string]int{tagUint: strconv.IntSize, tagUint8: 8, tagUint16: 16, tagUint32: 32, tagUint64: 64}[tag]
	u, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagUint:
		return uint(u), nil
	case tagUint8:
		return uint8(u), nil
	case tagUint16:
		return uint16(u), nil
	case tagUint32:
		return uint32(u), nil
	default:
		return u, nil
	}
}
