package server

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"medi/connect/internal/config"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for storing user claims.
	UserContextKey contextKey = "user"
)

// UserClaims represents the JWT claims issued by the Keycloak realm.
type UserClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string   `json:"preferred_username"`
	Email             string   `json:"email"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// AuthMiddleware handles JWT validation using Keycloak's JWKS.
type AuthMiddleware struct {
	keyFunc      jwt.Keyfunc
	cancelFn     context.CancelFunc
	validIssuers []string
	requiredRole string
	log          zerolog.Logger
}

// NewAuthMiddleware creates a new authentication middleware with JWKS from Keycloak.
func NewAuthMiddleware(ctx context.Context, cfg config.AuthConfig, log zerolog.Logger) (*AuthMiddleware, error) {
	jwksURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.URL, cfg.Realm)

	// Create a cancellable context for JWKS refresh goroutine
	jwksCtx, cancelFn := context.WithCancel(ctx)

	// Create JWKS with automatic refresh
	jwks, err := keyfunc.NewDefaultCtx(jwksCtx, []string{jwksURL})
	if err != nil {
		cancelFn()
		return nil, fmt.Errorf("failed to create JWKS from %s: %w", jwksURL, err)
	}

	validIssuers := issuersFor(cfg)

	log.Info().
		Str("jwks_url", jwksURL).
		Strs("valid_issuers", validIssuers).
		Str("required_role", cfg.RequiredRole).
		Msg("JWT authentication middleware initialized")

	return &AuthMiddleware{
		keyFunc:      jwks.Keyfunc,
		cancelFn:     cancelFn,
		validIssuers: validIssuers,
		requiredRole: cfg.RequiredRole,
		log:          log,
	}, nil
}

// issuersFor accepts tokens minted through either the internal or the public Keycloak URL.
func issuersFor(cfg config.AuthConfig) []string {
	issuers := []string{fmt.Sprintf("%s/realms/%s", cfg.URL, cfg.Realm)}
	if cfg.PublicURL != "" && cfg.PublicURL != cfg.URL {
		issuers = append(issuers, fmt.Sprintf("%s/realms/%s", cfg.PublicURL, cfg.Realm))
	}
	return issuers
}

// Close releases resources used by the auth middleware.
func (a *AuthMiddleware) Close() {
	if a.cancelFn != nil {
		a.cancelFn()
	}
}

// Middleware returns an HTTP middleware that validates JWT tokens.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := a.extractAndValidateToken(r)
		if err != nil {
			a.log.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(*UserClaims)
		if !ok {
			a.log.Debug().Msg("failed to extract claims from token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if a.requiredRole != "" && !a.hasRole(claims, a.requiredRole) {
			a.log.Debug().
				Str("username", claims.PreferredUsername).
				Strs("roles", claims.RealmAccess.Roles).
				Str("required_role", a.requiredRole).
				Msg("user lacks required role")
			http.Error(w, "Forbidden: missing "+a.requiredRole+" role", http.StatusForbidden)
			return
		}

		// Add user claims to context
		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractAndValidateToken extracts and validates the JWT from the Authorization header.
func (a *AuthMiddleware) extractAndValidateToken(r *http.Request) (*jwt.Token, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("missing Authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fmt.Errorf("invalid Authorization header format")
	}

	return a.parseToken(parts[1])
}

func (a *AuthMiddleware) parseToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, a.keyFunc,
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}

	// Validate issuer against allowed list
	claims, ok := token.Claims.(*UserClaims)
	if !ok {
		return nil, fmt.Errorf("failed to extract claims")
	}

	if !slices.Contains(a.validIssuers, claims.Issuer) {
		return nil, fmt.Errorf("invalid issuer: %s", claims.Issuer)
	}

	return token, nil
}

// hasRole checks if the user has a specific realm role.
func (a *AuthMiddleware) hasRole(claims *UserClaims, role string) bool {
	return slices.Contains(claims.RealmAccess.Roles, role)
}

// GetUserFromContext retrieves the user claims from the request context.
func GetUserFromContext(ctx context.Context) (*UserClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*UserClaims)
	return claims, ok
}
