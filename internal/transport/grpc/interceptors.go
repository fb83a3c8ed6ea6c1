package grpcx

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cwrk-planet/call-service/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const (
	requestIDKey = "x-request-id"
	maxLoggedReq = 1024
)

// UnaryServerInterceptor recovers panics, logs each call and bounds calls that arrive without a deadline.
func UnaryServerInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		if _, ok := ctx.Deadline(); !ok && timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		defer observe(ctx, "unary", info.FullMethod, time.Now(), &err)
		slog.DebugContext(ctx, "grpc request", "method", info.FullMethod, "req", reqString(req))
		return handler(ctx, req)
	}
}

// StreamServerInterceptor covers Health.Watch.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer observe(ss.Context(), "stream", info.FullMethod, time.Now(), &err)
		return handler(srv, ss)
	}
}

// observe must be deferred directly so recover sees the handler's panic.
func observe(ctx context.Context, kind, method string, start time.Time, errp *error) {
	if r := recover(); r != nil {
		slog.ErrorContext(ctx, "grpc panic",
			"kind", kind,
			"method", method,
			"panic", fmt.Sprint(r),
			"stack", string(debug.Stack()))
		*errp = status.Error(codes.Internal, "internal server error")
	}

	attrs := []any{
		"kind", kind,
		"method", method,
		"req_id", requestID(ctx),
		"code", status.Code(*errp).String(),
		"dur_ms", time.Since(start).Milliseconds(),
	}
	if *errp != nil {
		attrs = append(attrs, logger.Err(*errp))
	}
	slog.DebugContext(ctx, "grpc call", attrs...)
}

// reqString renders proto requests as compact JSON, capped at maxLoggedReq bytes.
func reqString(req any) string {
	m, ok := req.(proto.Message)
	if !ok || m == nil {
		return ""
	}
	b, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(m)
	if err != nil {
		return "<unmarshallable>"
	}
	if len(b) > maxLoggedReq {
		return string(b[:maxLoggedReq]) + "...(truncated)"
	}
	return string(b)
}

func requestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(requestIDKey); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
