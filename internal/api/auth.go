package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"pairboard/pkg/types"
)

// Identity is the authenticated caller extracted from a bearer token minted
// by the external identity provider.
type Identity struct {
	ID    string
	Admin bool
}

type identityClaims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid or expired token")

// TokenVerifier validates provider-issued bearer tokens with a shared
// secret. Token issuance itself is out of scope; only verification and
// identity extraction happen here.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for HS256 tokens signed with secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses and validates a token, returning the caller's identity.
func (v *TokenVerifier) Verify(tokenString string) (*Identity, error) {
	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !token.Valid || !types.IsValidIdentity(claims.Subject) {
		return nil, errInvalidToken
	}
	return &Identity{ID: claims.Subject, Admin: claims.Admin}, nil
}

type contextKey string

const identityKey contextKey = "identity"

// identityFrom returns the authenticated identity stored by the middleware.
func identityFrom(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey).(*Identity); ok {
		return v
	}
	return nil
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// requireAuth validates the bearer token and stores the caller's identity in
// the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		identity, err := s.verifier.Verify(token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized", err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next(w, r.WithContext(ctx))
	}
}

// requireAdmin additionally demands the admin claim.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r.Context())
		if identity == nil || !identity.Admin {
			s.writeError(w, http.StatusForbidden, "Admin only", nil)
			return
		}
		next(w, r)
	})
}
