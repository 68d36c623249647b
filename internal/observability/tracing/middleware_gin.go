package tracing

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/spotlight/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const httpTracerName = "spotlight/http"

// GinMiddleware opens a server span per request. It must run after the
// logging middleware so the request id is already in the context.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(httpTracerName)
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		span.SetName(c.Request.Method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(started).Milliseconds()),
		}
		// Sellers are identified by account id only; admin ids stay off spans.
		if accountID := obscontext.AccountIDFromContext(c.Request.Context()); accountID != "" {
			attrs = append(attrs, attribute.String("spotlight.account_id", accountID))
		}
		if placement := c.GetString("placement"); placement != "" {
			attrs = append(attrs, attribute.String("spotlight.placement", placement))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		switch {
		case status >= http.StatusInternalServerError:
			if last := c.Errors.Last(); last != nil {
				if safe := SafeError(last.Err); safe != nil {
					span.RecordError(safe)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		case status == http.StatusConflict || status == http.StatusPaymentRequired:
			span.AddEvent("reservation.rejected", trace.WithAttributes(attribute.Int("http.status_code", status)))
		}
	}
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
