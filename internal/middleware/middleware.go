package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/workloy/workloy/internal/cache"
	"github.com/workloy/workloy/internal/config"
	apierrors "github.com/workloy/workloy/internal/errors"
	"github.com/workloy/workloy/internal/logging"
	"github.com/workloy/workloy/internal/models"
	"github.com/workloy/workloy/internal/monitoring"
	"github.com/workloy/workloy/internal/user"
)

// ContextKeyEmail is the gin context key holding the authenticated caller's
// email.
const ContextKeyEmail = "email"

// Token validation errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the JWT claims issued by the external identity provider. Only
// the email identifies the caller; roles are never trusted from the token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier validates a bearer token and returns the caller's email.
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// HMACVerifier verifies tokens signed with the identity provider's shared
// secret.
type HMACVerifier struct {
	cfg *config.AuthConfig
}

// NewHMACVerifier creates a verifier from the auth configuration
func NewHMACVerifier(cfg *config.AuthConfig) *HMACVerifier {
	return &HMACVerifier{cfg: cfg}
}

// Verify parses and validates the token, returning the subject email
func (v *HMACVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.cfg.JWTSecret), nil
	}, jwt.WithIssuer(v.cfg.Issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	email := claims.Email
	if email == "" {
		email = claims.Subject
	}
	if email == "" {
		return "", ErrInvalidToken
	}
	return email, nil
}

// Auth validates the bearer token and stores the caller's email in the
// context. Role checks happen separately in RequireRole.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondWithError(c, apierrors.ErrUnauthenticatedError)
			c.Abort()
			return
		}

		tokenString, err := extractBearerToken(authHeader)
		if err != nil {
			respondWithError(c, apierrors.ErrUnauthenticatedError)
			c.Abort()
			return
		}

		email, err := verifier.Verify(tokenString)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				respondWithError(c, apierrors.ErrTokenExpiredError)
			} else {
				logging.LogSecurityEvent("invalid_token", "", c.ClientIP(), err.Error())
				respondWithError(c, apierrors.ErrUnauthenticatedError)
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyEmail, email)
		c.Next()
	}
}

// RequireRole loads the caller's role from the users table and checks it
// against the allowed set. The role is read per request so an admin role
// change takes effect immediately, without waiting for token expiry.
// Must run after Auth.
func RequireRole(users *user.Service, allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := GetEmailFromContext(c)
		if email == "" {
			respondWithError(c, apierrors.ErrUnauthenticatedError)
			c.Abort()
			return
		}

		role, err := users.GetRole(c.Request.Context(), email)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				respondWithError(c, apierrors.ErrUserNotFoundError)
			} else {
				respondWithError(c, apierrors.ErrInternalServerError)
			}
			c.Abort()
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}

		logging.LogSecurityEvent("role_denied", email, c.ClientIP(),
			fmt.Sprintf("role %s not in allowed set", role))
		respondWithError(c, apierrors.ErrForbiddenError)
		c.Abort()
	}
}

// RequireWorker requires the worker role
func RequireWorker(users *user.Service) gin.HandlerFunc {
	return RequireRole(users, models.RoleWorker)
}

// RequireBuyer requires the buyer role
func RequireBuyer(users *user.Service) gin.HandlerFunc {
	return RequireRole(users, models.RoleBuyer)
}

// RequireAdmin requires the admin role
func RequireAdmin(users *user.Service) gin.HandlerFunc {
	return RequireRole(users, models.RoleAdmin)
}

// RateLimit applies the Redis sliding window limit keyed by caller email,
// falling back to client IP before authentication. A nil redis disables the
// limiter.
func RateLimit(redis *cache.Redis, cfg *config.RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redis == nil || !cfg.Enabled {
			c.Next()
			return
		}

		identity := GetEmailFromContext(c)
		if identity == "" {
			identity = c.ClientIP()
		}

		result, err := redis.CheckRateLimit(c.Request.Context(), identity, cfg.Limit, cfg.WindowSeconds)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))

		if !result.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(result.RetryAfter.Seconds())+1))
			logging.LogSecurityEvent("rate_limited", identity, c.ClientIP(), c.Request.URL.Path)
			monitoring.RecordRateLimitHit()
			respondWithError(c, apierrors.ErrRateLimitedError)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CORS configures CORS headers
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, o := range allowedOrigins {
			if o == origin || o == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "43200")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// GetEmailFromContext extracts the caller email from the gin context.
// Returns empty string if not found.
func GetEmailFromContext(c *gin.Context) string {
	email, exists := c.Get(ContextKeyEmail)
	if !exists {
		return ""
	}
	return email.(string)
}

// GetRequestIDFromContext extracts the request ID from the gin context.
// Returns empty string if not found.
func GetRequestIDFromContext(c *gin.Context) string {
	return c.GetString("request_id")
}

func extractBearerToken(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidToken
	}
	return authHeader[len(bearerPrefix):], nil
}

func respondWithError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.ErrorResponse{
		Error:     *err,
		RequestID: c.GetString("request_id"),
	})
}
