package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emarutian/recipesync/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const userIDContextKey contextKey = "userID"

const (
	tokenIssuer          = "recipesync"
	defaultTokenDuration = 24 * time.Hour
)

var (
	// ErrAdminDisabled is returned when no JWT secret is configured.
	ErrAdminDisabled = errors.New("admin authentication is not configured")

	// ErrInvalidCredentials is returned for a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotAdmin is returned when a valid token names a non-admin user.
	ErrNotAdmin = errors.New("user is not an admin")
)

// Config holds authentication configuration
type Config struct {
	JWTSecret         string
	AdminEmails       []string
	AdminPassword     string
	AdminPasswordHash string
	CronSecret        string
	TokenDuration     time.Duration
}

// LoadConfigFromEnv loads auth config from environment variables
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		JWTSecret:         os.Getenv("ADMIN_JWT_SECRET"),
		AdminEmails:       config.SplitList(os.Getenv("ADMIN_EMAILS")),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		CronSecret:        os.Getenv("CRON_SECRET"),
		TokenDuration:     defaultTokenDuration,
	}

	if v := os.Getenv("ADMIN_TOKEN_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("invalid ADMIN_TOKEN_HOURS: must be a positive integer")
		}
		cfg.TokenDuration = time.Duration(hours) * time.Hour
	}

	return cfg, nil
}

// AdminEnabled reports whether admin tokens can be issued and verified.
func (c Config) AdminEnabled() bool {
	return c.JWTSecret != "" && (c.AdminPassword != "" || c.AdminPasswordHash != "")
}

// IsAdmin reports whether email may act as an admin. An empty allow-list
// admits any email that passes the password check.
func (c Config) IsAdmin(email string) bool {
	if len(c.AdminEmails) == 0 {
		return true
	}
	for _, allowed := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(allowed), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

// CheckAdminCredentials verifies a login attempt.
func (c Config) CheckAdminCredentials(email, password string) error {
	if !c.AdminEnabled() {
		return ErrAdminDisabled
	}
	if email == "" || password == "" || !c.IsAdmin(email) {
		return ErrInvalidCredentials
	}
	if c.AdminPasswordHash != "" {
		if !CheckPassword(password, c.AdminPasswordHash) {
			return ErrInvalidCredentials
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(c.AdminPassword)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token
func GenerateToken(userID string, secret string, duration time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, ErrAdminDisabled
	}

	now := time.Now()
	expiresAt := now.Add(duration)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the user ID
func ValidateToken(tokenString string, secret string) (string, error) {
	if secret == "" {
		return "", ErrAdminDisabled
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer))

	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.UserID, nil
	}

	return "", fmt.Errorf("invalid token")
}

// ValidateAdminToken validates a token and checks its subject against the
// admin allow-list.
func (c Config) ValidateAdminToken(tokenString string) (string, error) {
	userID, err := ValidateToken(tokenString, c.JWTSecret)
	if err != nil {
		return "", err
	}
	if !c.IsAdmin(userID) {
		return "", ErrNotAdmin
	}
	return userID, nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware is a middleware that validates admin JWT tokens
func AuthMiddleware(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Set CORS headers first, before any auth checks
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Header.Get("Authorization") == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString, ok := BearerToken(r)
			if !ok {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			userID, err := config.ValidateAdminToken(tokenString)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			// Add user ID to request context
			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok
}
