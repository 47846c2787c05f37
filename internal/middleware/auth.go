package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veritas-ledger/gateway/internal/errors"
	"github.com/veritas-ledger/gateway/internal/logging"
)

// Claims represents the JWT claims accepted on guarded endpoints.
type Claims struct {
	Subject string `json:"sub_id,omitempty"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AdminAuthMiddleware guards mutating operational endpoints (configuration
// reload) with an HMAC-signed bearer token. It does not participate in the
// request validation pipeline: client transactions and queries authenticate
// with payload signatures, not tokens.
type AdminAuthMiddleware struct {
	secret []byte
	logger *logging.Logger
}

// NewAdminAuthMiddleware creates an admin auth middleware. An empty secret
// disables the guarded endpoints entirely.
func NewAdminAuthMiddleware(secret string, logger *logging.Logger) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		secret: []byte(secret),
		logger: logger,
	}
}

// Handler returns the middleware handler.
func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 {
			m.respondError(w, r, errors.Unauthorized("Admin endpoints are disabled"))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("Missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondError(w, r, errors.Unauthorized("Invalid Authorization header format"))
			return
		}

		claims, err := m.validateToken(parts[1])
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("Token validation failed")
			m.respondError(w, r, err)
			return
		}

		ctx := r.Context()
		if claims.Subject != "" {
			ctx = context.WithValue(ctx, logging.UserIDKey, claims.Subject)
		}
		if claims.Role != "" {
			ctx = context.WithValue(ctx, logging.RoleKey, claims.Role)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateToken parses and validates a bearer token.
func (m *AdminAuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, errors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "invalid claims type")
	}
	return claims, nil
}

// respondError sends an error response.
func (m *AdminAuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(serviceErr.HTTPStatus)
	json.NewEncoder(w).Encode(serviceErr)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}
