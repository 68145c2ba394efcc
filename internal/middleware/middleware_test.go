package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workloy/workloy/internal/config"
	apierrors "github.com/workloy/workloy/internal/errors"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func mintToken(t *testing.T, secret, issuer, email string, expiry time.Duration) string {
	t.Helper()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func testVerifier() *HMACVerifier {
	return NewHMACVerifier(&config.AuthConfig{JWTSecret: testSecret, Issuer: "workloy-auth"})
}

func TestHMACVerifier_Verify(t *testing.T) {
	v := testVerifier()

	token := mintToken(t, testSecret, "workloy-auth", "worker@example.com", time.Hour)
	email, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "worker@example.com", email)
}

func TestHMACVerifier_Expired(t *testing.T) {
	v := testVerifier()

	token := mintToken(t, testSecret, "workloy-auth", "worker@example.com", -time.Hour)
	_, err := v.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestHMACVerifier_WrongSecret(t *testing.T) {
	v := testVerifier()

	token := mintToken(t, "other-secret", "workloy-auth", "worker@example.com", time.Hour)
	_, err := v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHMACVerifier_WrongIssuer(t *testing.T) {
	v := testVerifier()

	token := mintToken(t, testSecret, "someone-else", "worker@example.com", time.Hour)
	_, err := v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHMACVerifier_EmailFallsBackToSubject(t *testing.T) {
	v := testVerifier()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "workloy-auth",
			Subject:   "subject@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	email, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "subject@example.com", email)
}

func TestHMACVerifier_Garbage(t *testing.T) {
	v := testVerifier()

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestExtractBearerToken(t *testing.T) {
	token, err := extractBearerToken("Bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	for _, header := range []string{"abc123", "bearer abc123", "Basic abc123", ""} {
		_, err := extractBearerToken(header)
		assert.ErrorIs(t, err, ErrInvalidToken, "header %q", header)
	}
}

func authRouter(verifier TokenVerifier) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Auth(verifier))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": GetEmailFromContext(c)})
	})
	return r
}

func TestAuth_MissingHeader(t *testing.T) {
	r := authRouter(testVerifier())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), string(apierrors.ErrUnauthenticated))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAuth_ValidToken(t *testing.T) {
	r := authRouter(testVerifier())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "workloy-auth", "worker@example.com", time.Hour))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "worker@example.com")
}

func TestAuth_ExpiredToken(t *testing.T) {
	r := authRouter(testVerifier())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "workloy-auth", "worker@example.com", -time.Hour))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), string(apierrors.ErrTokenExpired))
}

func TestRequestID_EchoesAndGenerates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Client-supplied IDs pass through.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given-id")
	r.ServeHTTP(w, req)
	assert.Equal(t, "given-id", w.Header().Get("X-Request-ID"))

	// Missing IDs are generated.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.workloy.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.workloy.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.workloy.com", w.Header().Get("Access-Control-Allow-Origin"))

	// Unlisted origins get no CORS headers.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	// Preflight short-circuits.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.workloy.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(nil, &config.RateLimitConfig{Enabled: true, Limit: 1, WindowSeconds: 60}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
