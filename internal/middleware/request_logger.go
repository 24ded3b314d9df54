package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/datashare/internal/logger"
)

// TraceHeader carries the request trace id in both directions
const TraceHeader = "X-Request-ID"

// RequestLoggerConfig request log middleware configuration
type RequestLoggerConfig struct {
	// SkipPaths paths that are served without a log line
	SkipPaths []string
	// IncludeHeaders logs request headers, Authorization excluded
	IncludeHeaders bool
	// IncludeBody logs JSON request bodies up to MaxBodySize; multipart uploads are never read
	IncludeBody bool
	MaxBodySize int
}

// DefaultRequestLoggerConfig bodies and headers are only logged outside production
func DefaultRequestLoggerConfig(environment string) *RequestLoggerConfig {
	dev := environment != "production"
	return &RequestLoggerConfig{
		SkipPaths:      []string{"/api/health", "/metrics", "/favicon.ico"},
		IncludeHeaders: dev,
		IncludeBody:    dev,
		MaxBodySize:    64 * 1024,
	}
}

// RequestLogger assigns a trace id to every request and logs its outcome.
// The level follows the status: 5xx error, 4xx warn, otherwise info.
func RequestLogger(cfg *RequestLoggerConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultRequestLoggerConfig("production")
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set("trace_id", traceID)
		c.Header(TraceHeader, traceID)

		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		var body interface{}
		if cfg.IncludeBody {
			body = readJSONBody(c, cfg.MaxBodySize)
		}

		c.Next()

		duration := time.Since(start)
		fields := logrus.Fields{
			"trace_id":      traceID,
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"route":         c.FullPath(),
			"query":         c.Request.URL.RawQuery,
			"status":        c.Writer.Status(),
			"response_size": c.Writer.Size(),
			"duration_ms":   duration.Milliseconds(),
			"client_ip":     c.ClientIP(),
			"user_agent":    c.Request.UserAgent(),
		}
		if user := CurrentUser(c); user != nil {
			fields["user_id"] = user.ID
		}
		if cfg.IncludeHeaders {
			fields["headers"] = extractHeaders(c.Request.Header)
		}
		if body != nil {
			fields["body"] = body
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("request completed")
		case status >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}

// readJSONBody reads and restores a JSON request body
func readJSONBody(c *gin.Context, maxSize int) interface{} {
	if c.Request.Body == nil || !strings.HasPrefix(c.ContentType(), "application/json") {
		return nil
	}
	if c.Request.ContentLength < 0 || c.Request.ContentLength > int64(maxSize) {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(maxSize)))
	if err != nil {
		return nil
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) == 0 {
		return nil
	}

	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	return parsed
}

func extractHeaders(headers map[string][]string) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 || strings.EqualFold(key, "Authorization") || strings.EqualFold(key, "Cookie") {
			continue
		}
		out[key] = values[0]
	}
	return out
}
