package protocol

import (
	"encoding/base64"
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"
)

// Request is one call to a remote executor.
type Request struct {
	ID            string
	Method        string
	Configuration string
	Data          []byte
}

// Response answers a Request. Exactly one of Error or the payload fields is
// meaningful.
type Response struct {
	ID    string
	Data  []byte
	Count int64
	Error *TransportError
}

// Message converts the request into the structpb form sent over the wire.
func (r *Request) Message() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":            structpb.NewStringValue(r.ID),
		"method":        structpb.NewStringValue(r.Method),
		"configuration": structpb.NewStringValue(r.Configuration),
		"data":          structpb.NewStringValue(base64.StdEncoding.EncodeToString(r.Data)),
	}}
}

// RequestFromMessage reverses Request.Message.
func RequestFromMessage(s *structpb.Struct) (*Request, error) {
	f := s.GetFields()
	data, err := base64.StdEncoding.DecodeString(f["data"].GetStringValue())
	if err != nil {
		return nil, decodeErr("request", "data", err)
	}
	return &Request{
		ID:            f["id"].GetStringValue(),
		Method:        f["method"].GetStringValue(),
		Configuration: f["configuration"].GetStringValue(),
		Data:          data,
	}, nil
}

// Message converts the response into the structpb form sent over the wire.
func (r *Response) Message() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"id":    structpb.NewStringValue(r.ID),
		"data":  structpb.NewStringValue(base64.StdEncoding.EncodeToString(r.Data)),
		"count": intString(r.Count),
		"error": structpb.NewNullValue(),
	}
	if r.Error != nil {
		fields["error"] = structpb.NewStringValue(mustJSON(r.Error))
	}
	return &structpb.Struct{Fields: fields}
}

// ResponseFromMessage reverses Response.Message.
func ResponseFromMessage(s *structpb.Struct) (*Response, error) {
	f := s.GetFields()
	data, err := base64.StdEncoding.DecodeString(f["data"].GetStringValue())
	if err != nil {
		return nil, decodeErr("response", "data", err)
	}
	count, err := parseInt(tagInt64, f["count"].GetStringValue())
	if err != nil {
		return nil, decodeErr("response", "count", err)
	}
	resp := &Response{ID: f["id"].GetStringValue(), Data: data, Count: count.(int64)}
	if ev := f["error"]; ev != nil && ev.GetStringValue() != "" {
		te, err := FromJSON([]byte(ev.GetStringValue()))
		if err != nil {
			return nil, decodeErr("response", "error", err)
		}
		resp.Error = te
	}
	return resp, nil
}

func mustJSON(e *TransportError) string {
	b, err := e.ToJSON()
	if err != nil {
		b, _ = json.Marshal(map[string]any{"code": e.Code, "message": e.Message})
	}
	return string(b)
}

// EncodeRequest serializes a framed request.
func (c *StructCodec) EncodeRequest(req *Request) ([]byte, error) {
	if req == nil || req.Method == "" {
		return nil, encodeErr("request", "method is required", nil)
	}
	return marshal("request", req.Message())
}

// DecodeRequest reverses EncodeRequest.
func (c *StructCodec) DecodeRequest(data []byte) (*Request, error) {
	s, err := unmarshalStruct("request", data)
	if err != nil {
		return nil, err
	}
	return RequestFromMessage(s)
}

// EncodeResponse serializes a framed response.
func (c *StructCodec) EncodeResponse(resp *Response) ([]byte, error) {
	if resp == nil {
		return nil, encodeErr("response", "response is nil", nil)
	}
	return marshal("response", resp.Message())
}

// DecodeResponse reverses EncodeResponse.
func (c *StructCodec) DecodeResponse(data []byte) (*Response, error) {
	s, err := unmarshalStruct("response", data)
	if err != nil {
		return nil, err
	}
	return ResponseFromMessage(s)
}
