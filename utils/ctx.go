package utils

import (
	"context"

	"github.com/spf13/cast"
)

type CtxKey string

const (
	CtxKeyBatchID        CtxKey = "batchId"
	CtxKeyWorkKind       CtxKey = "workKind"
	CtxKeyIndex          CtxKey = "index"
	CtxKeyClusterVersion CtxKey = "clusterVersion"
	CtxKeyRequestID      CtxKey = "requestId"
)

func GetCtxKeyBatchID(ctx context.Context) string {
	return cast.ToString(ctx.Value(CtxKeyBatchID))
}

func SetCtxKeyBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, CtxKeyBatchID, batchID)
}

func GetCtxKeyWorkKind(ctx context.Context) string {
	return cast.ToString(ctx.Value(CtxKeyWorkKind))
}

func SetCtxKeyWorkKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, CtxKeyWorkKind, kind)
}

func GetCtxKeyIndex(ctx context.Context) string {
	return cast.ToString(ctx.Value(CtxKeyIndex))
}

func SetCtxKeyIndex(ctx context.Context, index string) context.Context {
	return context.WithValue(ctx, CtxKeyIndex, index)
}

func GetCtxKeyClusterVersion(ctx context.Context) string {
	return cast.ToString(ctx.Value(CtxKeyClusterVersion))
}

func SetCtxKeyClusterVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, CtxKeyClusterVersion, version)
}

func GetCtxKeyRequestID(ctx context.Context) string {
	return cast.ToString(ctx.Value(CtxKeyRequestID))
}

func SetCtxKeyRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxKeyRequestID, requestID)
}
