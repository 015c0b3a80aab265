package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opsuite/opsuite-backend/internal/db"
	"github.com/opsuite/opsuite-backend/internal/repository"
	"github.com/opsuite/opsuite-backend/internal/service"
)

const authContextKey = "authContext"

// AuthMiddleware validates the bearer token and builds the per-request
// authorization context. The permission set cached at login is attached when
// the cache has it; a miss leaves Permissions nil and the evaluator falls
// back to a persistent role lookup.
func AuthMiddleware(jwtSecret string, redis *db.RedisDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := service.ParseToken(parts[1], jwtSecret)
		if err != nil {
			log.Printf("❌ [Auth] Invalid token - Path: %s, Error: %v", c.Request.URL.Path, err)
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, _ := claims["sub"].(string)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token claims"})
			c.Abort()
			return
		}

		ac := &service.AuthContext{UserID: userID}
		if roleID, ok := claims["role_id"].(string); ok {
			ac.RoleID = roleID
		}
		if roleName, ok := claims["role_name"].(string); ok {
			ac.RoleName = roleName
		}

		if redis != nil {
			var grants []*repository.PermissionGrant
			if err := redis.GetPermissions(c.Request.Context(), userID, &grants); err == nil {
				ac.Permissions = grants
			}
		}

		c.Set("userID", userID)
		c.Set(authContextKey, ac)
		c.Next()
	}
}

// GetAuthContext extracts the authorization context from gin context
func GetAuthContext(c *gin.Context) *service.AuthContext {
	v, exists := c.Get(authContextKey)
	if !exists {
		return nil
	}
	ac, _ := v.(*service.AuthContext)
	return ac
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get("userID")
	if !exists {
		return ""
	}
	return userID.(string)
}

// RequestLogger logs all incoming requests with details
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		statusEmoji := "✅"
		if status >= 400 && status < 500 {
			statusEmoji = "⚠️"
		} else if status >= 500 {
			statusEmoji = "❌"
		}

		log.Printf("%s [%s] %s %d - %v", statusEmoji, method, path, status, duration)

		if len(c.Errors) > 0 {
			for _, e := range c.Errors {
				log.Printf("❌ [Error] %v", e.Err)
			}
		}
	}
}
