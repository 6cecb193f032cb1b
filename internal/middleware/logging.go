// Package middleware provides gin middleware shared by the API routes.
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cutroom/internal/logger"
)

// pollingSuffixes are routes a viewport hits continuously; they log at debug
var pollingSuffixes = []string{"/state", "/frame.png", "/diagnostics", "/api/health"}

// RequestLogger logs one line per request. Client errors log at warn, server
// errors at error, and polling routes at debug so playback does not flood
// the log.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		event := logger.Log.WithLevel(requestLevel(route, status)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if id := c.Param("project_id"); id != "" {
			event = event.Str("project_id", id)
		}
		if len(c.Errors) > 0 {
			event = event.Strs("errors", c.Errors.Errors())
		}
		event.Msg("HTTP request")
	}
}

func requestLevel(route string, status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	}
	for _, suffix := range pollingSuffixes {
		if strings.HasSuffix(route, suffix) {
			return zerolog.DebugLevel
		}
	}
	return zerolog.InfoLevel
}
