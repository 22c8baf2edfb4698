// Package logging wraps the shared logutil accessor so every component logs
// through the same request-scoped zap logger instead of a package-level one.
package logging

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

func From(ctx context.Context) *zap.Logger {
	return logutil.GetLogger(ctx)
}

func WithFields(ctx context.Context, fields ...zap.Field) *zap.Logger {
	return logutil.GetLogger(ctx).With(fields...)
}
