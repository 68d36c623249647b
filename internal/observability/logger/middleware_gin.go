package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	auditcontext "github.com/smallbiznis/spotlight/internal/auditcontext"
	obscontext "github.com/smallbiznis/spotlight/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const headerRequestID = "X-Request-Id"

// MiddlewareConfig controls request logging.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps a handler error to (error_type, error_code).
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware seeds request correlation into the context and writes one
// http_request line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		requestID := requestIDFor(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = auditcontext.WithRequestID(ctx, requestID)
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if id := c.Param("id"); id != "" && strings.Contains(route, "/reservations/") {
			fields = append(fields, zap.String("reservation_id", id))
		}
		if placement := c.GetString("placement"); placement != "" {
			fields = append(fields, zap.String("placement", placement))
		}

		errType := ""
		if last := c.Errors.Last(); last != nil {
			var code string
			if cfg.ErrorClassifier != nil {
				errType, code = cfg.ErrorClassifier(last.Err)
			}
			fields = append(fields, zap.String("error_type", errType), zap.String("error_code", code))
			if cfg.Debug {
				fields = append(fields, zap.Error(last.Err))
			}
		}

		log := FromContext(c.Request.Context())
		if ce := log.Check(requestLevel(route, status, errType), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestIDFor(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(headerRequestID))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header(headerRequestID, id)
	return id
}

// requestLevel keeps probes quiet and surfaces business rejections (capacity,
// balance, duplicates) at warn so they stand apart from routine traffic.
func requestLevel(route string, status int, errType string) zapcore.Level {
	switch {
	case route == "/health" || route == "/metrics":
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status == http.StatusConflict || status == http.StatusPaymentRequired:
		return zapcore.WarnLevel
	case errType == "validation_error":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
