package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type spanIDs struct {
	traceID string
	spanID  string
}

// Span times one store operation and logs its outcome when ended.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives a child span from ctx. The first span on a context opens a new
// trace; nested spans record their parent.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	parent, _ := ctx.Value(spanKey).(spanIDs)
	ids := spanIDs{traceID: parent.traceID, spanID: uuid.NewString()}
	if ids.traceID == "" {
		ids.traceID = uuid.NewString()
	}

	attrs := []any{
		slog.String("trace_id", ids.traceID),
		slog.String("span_id", ids.spanID),
		slog.String("span_name", name),
	}
	if parent.spanID != "" {
		attrs = append(attrs, slog.String("parent_span_id", parent.spanID))
	}
	logger := FromContext(ctx).With(attrs...)

	ctx = context.WithValue(ctx, spanKey, ids)
	ctx = WithLogger(ctx, logger)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// TraceIDFromContext returns the trace identifier of the innermost span, if any.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ids, _ := ctx.Value(spanKey).(spanIDs)
	return ids.traceID
}

// End emits a completion entry. A non-nil err is logged at warn level.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if err != nil {
		s.logger.Warn("span failed", elapsed, slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
