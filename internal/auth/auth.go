// Package auth provides JWT-based credential issue/verify, bcrypt password
// helpers and the HTTP middleware that resolves the current user from an
// Authorization header. Authentication is optional at the transport level:
// failures here degrade to "no current user", authorization is enforced
// per-resolver.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"linkfeed/internal/logger"
	"linkfeed/internal/models"
)

// bcryptCost matches the cost factor used for all stored password hashes.
const bcryptCost = 10

type userFinder interface {
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Auth issues and verifies bearer tokens and resolves them to users.
type Auth struct {
	db userFinder

	// signingSecret is the key used to sign JWTs, injected from configuration.
	signingSecret []byte

	// tokenTTL limits token lifetime; zero disables the expiry claim.
	tokenTTL time.Duration
}

// Claims represents the JWT claims used by the system.
// It embeds standard JWT claims and adds a user-specific identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

const currentUserKey ContextKey = "currentUser"

// New creates a new Auth handler with the given user data access layer,
// JWT signing secret and token lifetime.
func New(db userFinder, signingSecret []byte, tokenTTL time.Duration) *Auth {
	return &Auth{
		db:            db,
		signingSecret: signingSecret,
		tokenTTL:      tokenTTL,
	}
}

// IssueToken produces a signed token binding the given user id.
// The expiry claim is only set when a token lifetime is configured.
func (a *Auth) IssueToken(userID int64) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	}
	if a.tokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(a.tokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(a.signingSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifyToken validates the token signature and structure and returns the
// embedded user id. Any malformed, expired or tampered token yields
// models.ErrInvalidToken.
func (a *Auth) VerifyToken(tokenString string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingSecret, nil
		},
	)
	if err != nil || !token.Valid {
		return 0, models.ErrInvalidToken
	}

	return claims.UserID, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored hash.
// It returns models.ErrInvalidCredentials on mismatch.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return models.ErrInvalidCredentials
	}

	return nil
}

// WithUser is an HTTP middleware that resolves the bearer token from the
// Authorization header into the current user and stores it in the request
// context. Missing or invalid credentials never fail the request; the
// failure reason is kept visible in logs.
func (a *Auth) WithUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		usr, err := a.userFromRequest(request)
		if err != nil {
			logger.Log.Debugln("request proceeds unauthenticated: ", zap.Error(err))
		}

		if usr != nil {
			requestWithCtx := request.WithContext(ContextWithUser(request.Context(), usr))
			h.ServeHTTP(response, requestWithCtx)

			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

func (a *Auth) userFromRequest(request *http.Request) (*models.User, error) {
	header := request.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}

	parts := strings.Fields(header)
	if len(parts) < 2 {
		return nil, models.ErrInvalidToken
	}

	userID, err := a.VerifyToken(parts[1])
	if err != nil {
		return nil, err
	}

	usr, err := a.db.FindUserByID(request.Context(), userID)
	if err != nil {
		return nil, err
	}

	return usr, nil
}

// ContextWithUser returns a copy of ctx carrying the given user.
func ContextWithUser(ctx context.Context, usr *models.User) context.Context {
	return context.WithValue(ctx, currentUserKey, usr)
}

// UserFromContext retrieves the authenticated user from ctx, or nil when the
// request is unauthenticated.
func UserFromContext(ctx context.Context) *models.User {
	usr, ok := ctx.Value(currentUserKey).(*models.User)
	if !ok {
		return nil
	}

	return usr
}
