package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/yourname/sleepcat/internal"
)

var validate = validator.New()

// RequestIDMiddleware ensures every request has a correlation/request ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Next()
	}
}

// AccessLogMiddleware writes one line per request through the app logger.
func AccessLogMiddleware(logger internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof("[request_id=%s] %s %s %d %s",
			c.GetString("request_id"), c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

var errMissingUser = errors.New("X-User-ID header is required")

// UserMiddleware names the calling user from the X-User-ID header. There is
// no authentication; the header is trusted as given.
func UserMiddleware(logger internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-User-ID")
		if id == "" {
			HandleError(c, logger, errMissingUser, 401, "Unknown user")
			return
		}
		if err := validate.Var(id, "max=64,printascii"); err != nil {
			HandleError(c, logger, err, 400, "Invalid user id")
			return
		}
		c.Set("user", &internal.User{ID: id})
		c.Next()
	}
}

func currentUser(c *gin.Context) *internal.User {
	return c.MustGet("user").(*internal.User)
}
