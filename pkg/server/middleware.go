package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// AccessKeyHeader はサイトアクセスキーを渡すヘッダーです。
	AccessKeyHeader = "x-site-access-key"
	// RequestIDHeader は応答に付与するリクエスト ID のヘッダーです。
	RequestIDHeader = "X-Request-ID"

	loggerKey = "logger"
	reqIDKey  = "req_id"
)

// requestID はリクエストごとに ID を採番し、ID 付きのロガーをコンテキストに載せます。
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(reqIDKey, id)
		c.Set(loggerKey, slog.With("req_id", id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

// accessLog はリクエストの結果を記録し、HTTP 指標を更新します。
func accessLog(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration.Seconds())

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		requestLogger(c).Log(c.Request.Context(), level, "HTTP",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"elapsed", duration,
		)
	}
}

// verifyAccessKey はヘッダーのアクセスキーが一致しない場合に 403 を返します。
func verifyAccessKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(AccessKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid Site Access Key"})
			return
		}
		c.Next()
	}
}

// limitBody はリクエスト本文の大きさを制限します。
func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
