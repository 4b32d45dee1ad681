package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCallTimeout = 10 * time.Second

// Unary logging + recovery + timeout guard (если у вызова нет deadline)
func UnaryServerInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	log := slog.Default().With("module", "grpc")
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		// deadline guard
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc unary panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			log.Log(ctx, callLevel(info.FullMethod, err), "grpc unary",
				"method", info.FullMethod,
				"dur_ms", time.Since(start).Milliseconds(),
				"err", errString(err))
		}()

		return handler(ctx, req)
	}
}

func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()
		log := slog.Default().With("module", "grpc")

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc stream panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			log.Log(ss.Context(), callLevel(info.FullMethod, err), "grpc stream",
				"method", info.FullMethod,
				"dur_ms", time.Since(start).Milliseconds(),
				"err", errString(err))
		}()

		return handler(srv, ss)
	}
}

// health probes arrive every few seconds; keep them out of info logs
func callLevel(method string, err error) slog.Level {
	switch {
	case err != nil:
		return slog.LevelWarn
	case strings.HasPrefix(method, "/grpc.health.v1.Health/"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
