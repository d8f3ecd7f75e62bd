package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"complaints-backend-go/internal/apperr"
	"complaints-backend-go/internal/config"
	"complaints-backend-go/internal/identity"
	"complaints-backend-go/internal/metrics"
	"complaints-backend-go/internal/models"
)

const (
	ctxUser   = "user"
	ctxUserID = "userID"
)

// AuthMiddleware requires a bearer access token and loads its user into the
// request context.
func AuthMiddleware(ids *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "authorization_header_missing", "message": "authorization header is required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(401, gin.H{"error": "authorization_header_invalid", "message": "authorization header must be: Bearer <token>"})
			return
		}

		user, err := ids.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			switch apperr.KindOf(err) {
			case apperr.KindInvalidToken:
				c.AbortWithStatusJSON(401, gin.H{"error": "invalid_token", "message": "token is invalid or expired"})
			case apperr.KindUnauthenticated:
				c.AbortWithStatusJSON(401, gin.H{"error": "user_not_found", "message": "user not found"})
			default:
				c.AbortWithStatusJSON(500, gin.H{"error": "internal_error", "message": "internal server error"})
			}
			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxUserID, user.ID)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(ctxUser).(*models.User)
}

func cors(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.AllowOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, PUT, PATCH, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// logging writes one line per request and records its latency.
func logging(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).
			Observe(elapsed.Seconds())

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
		}
		if id, ok := c.Get(ctxUserID); ok {
			fields["user_id"] = id
		}
		entry := log.WithFields(fields)
		if status >= 500 {
			entry.Error("request")
			return
		}
		entry.Info("request")
	}
}
