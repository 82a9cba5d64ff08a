package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Devcavi19/adal-4naga-app/metrics"
	"github.com/gin-gonic/gin"
)

// recovery turns a handler panic into a 500 unless the response has
// already started.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panic",
					"panic", r,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()))
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

func observe(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()

		metrics.ObserveHTTP(c.Request.Method, c.FullPath(), status, elapsed)
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"elapsed", elapsed)
	}
}

func (s *Server) requireUser(c *gin.Context) {
	user := c.GetHeader(UserHeader)
	if user == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	c.Set(UserHeader, user)
	c.Next()
}

func userID(c *gin.Context) string {
	return c.GetString(UserHeader)
}
