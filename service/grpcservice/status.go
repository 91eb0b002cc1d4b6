package grpcservice

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dan-strohschein/remotedb/protocol"
)

// errorTrailer carries the JSON form of a protocol.TransportError so the
// client can restore the exact code and details.
const errorTrailer = "remotedb-error-bin"

var toGRPC = map[protocol.ErrorCode]codes.Code{
	protocol.ErrorCodeConnectionRefused:    codes.Unavailable,
	protocol.ErrorCodeUnavailable:          codes.Unavailable,
	protocol.ErrorCodeTimeout:              codes.DeadlineExceeded,
	protocol.ErrorCodeCanceled:             codes.Canceled,
	protocol.ErrorCodeAuthFailed:           codes.Unauthenticated,
	protocol.ErrorCodeBackpressure:         codes.ResourceExhausted,
	protocol.ErrorCodeProtocolError:        codes.Internal,
	protocol.ErrorCodeUnknownMethod:        codes.Unimplemented,
	protocol.ErrorCodeQueryError:           codes.Unknown,
	protocol.ErrorCodeUnknownConfiguration: codes.NotFound,
}

var fromGRPC = map[codes.Code]protocol.ErrorCode{
	codes.Unavailable:       protocol.ErrorCodeUnavailable,
	codes.DeadlineExceeded:  protocol.ErrorCodeTimeout,
	codes.Canceled:          protocol.ErrorCodeCanceled,
	codes.Unauthenticated:   protocol.ErrorCodeAuthFailed,
	codes.PermissionDenied:  protocol.ErrorCodeAuthFailed,
	codes.ResourceExhausted: protocol.ErrorCodeBackpressure,
	codes.Internal:          protocol.ErrorCodeProtocolError,
	codes.InvalidArgument:   protocol.ErrorCodeProtocolError,
	codes.Unimplemented:     protocol.ErrorCodeUnknownMethod,
	codes.NotFound:          protocol.ErrorCodeUnknownConfiguration,
}

// CodeOf maps a transport error code to a gRPC status code.
func CodeOf(code protocol.ErrorCode) codes.Code {
	if c, ok := toGRPC[code]; ok {
		return c
	}
	return codes.Unknown
}

// ErrorCodeOf maps a gRPC status code to a transport error code.
func ErrorCodeOf(code codes.Code) protocol.ErrorCode {
	if c, ok := fromGRPC[code]; ok {
		return c
	}
	return protocol.ErrorCodeQueryError
}

// toStatus attaches te to the call's trailer and returns the matching status
// error.
func toStatus(ctx context.Context, te *protocol.TransportError) error {
	if b, err := te.ToJSON(); err == nil {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(errorTrailer, string(b)))
	}
	return status.Error(CodeOf(te.Code), te.Message)
}

// fromStatus restores the transport error of a failed call, preferring the
// trailer over the status code.
func fromStatus(err error, trailer metadata.MD) *protocol.TransportError {
	if vals := trailer.Get(errorTrailer); len(vals) > 0 {
		if te, jerr := protocol.FromJSON([]byte(vals[0])); jerr == nil {
			return te
		}
	}
	st, ok := status.FromError(err)
	if !ok {
		return protocol.ConnectionError(err.Error(), nil)
	}
	return protocol.NewTransportError(ErrorCodeOf(st.Code()), st.Message(), nil)
}
