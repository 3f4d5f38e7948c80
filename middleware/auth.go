package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
	"transferdesk/models"
	"transferdesk/repositories"
	"transferdesk/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthMiddleware struct {
	jwtService *utils.JWTService
	userRepo   *repositories.UserRepository
}

func NewAuthMiddleware(jwtService *utils.JWTService, userRepo *repositories.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		userRepo:   userRepo,
	}
}

// RequireAuth validates JWT token and sets user context
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		token := am.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "Authentication token required",
				Code:    "AUTH_TOKEN_REQUIRED",
			})
			c.Abort()
			return
		}

		claims, err := am.jwtService.ValidateToken(token)
		if err != nil {
			logrus.Warnf("Invalid token: %v", err)
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "Invalid authentication token",
				Code:    "AUTH_TOKEN_INVALID",
			})
			c.Abort()
			return
		}

		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "Authentication token expired",
				Code:    "AUTH_TOKEN_EXPIRED",
			})
			c.Abort()
			return
		}

		// The account must still exist and be active.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		user, err := am.userRepo.GetByID(ctx, claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "User account not found",
				Code:    "AUTH_USER_NOT_FOUND",
			})
			c.Abort()
			return
		}
		if !user.IsActive {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "User account is disabled",
				Code:    "AUTH_USER_DISABLED",
			})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("user_role", string(user.Role))

		c.Next()
	})
}

// RequireRoles restricts a route to the given roles. Must run after
// RequireAuth.
func (am *AuthMiddleware) RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "Authentication required",
				Code:    "AUTH_REQUIRED",
			})
			c.Abort()
			return
		}

		for _, role := range roles {
			if string(role) == userRole {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "FORBIDDEN",
			Message: "Insufficient permissions",
			Code:    "AUTH_INSUFFICIENT_ROLE",
		})
		c.Abort()
	})
}

// RequireServiceToken guards the event intake endpoint, which is called
// server-to-server by the DMS backend rather than by a logged-in user.
func RequireServiceToken(serviceToken string) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if serviceToken == "" {
			logrus.Warn("Service token not configured, rejecting intake request")
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "Service authentication not configured",
				Code:    "AUTH_SERVICE_UNCONFIGURED",
			})
			c.Abort()
			return
		}

		provided := c.GetHeader("X-Service-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(serviceToken)) != 1 {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "Invalid service token",
				Code:    "AUTH_SERVICE_TOKEN_INVALID",
			})
			c.Abort()
			return
		}

		c.Next()
	})
}

func (am *AuthMiddleware) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return parts[1]
}
