// Package auth verifies bearer credentials for HTTP requests and WebSocket
// handshakes. Credential issuance lives in an external identity service; this
// package only validates tokens and extracts the caller's identity.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for missing, malformed, or expired credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the authenticated caller attached to every operation.
type Identity struct {
	UserID      string
	DisplayName string
}

// Verifier validates a raw bearer credential.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWTVerifier validates HS256 tokens minted by the identity service. Claims
// carry the user ID in "sub" (with "id" as a legacy fallback) and the display
// name in "name".
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for the shared signing secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token and extracts the identity.
func (v *JWTVerifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrUnauthorized
	}

	id := stringClaim(claims, "sub")
	if id == "" {
		id = stringClaim(claims, "id")
	}
	if id == "" {
		return Identity{}, ErrUnauthorized
	}

	return Identity{
		UserID:      id,
		DisplayName: stringClaim(claims, "name"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// CredentialFromRequest extracts the bearer credential from a request,
// checking the token cookie first, then the Authorization header, then the
// token query parameter. A "Bearer " prefix is stripped wherever it appears.
func CredentialFromRequest(r *http.Request) string {
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return stripBearer(c.Value)
	}
	if h := r.Header.Get("Authorization"); h != "" {
		return stripBearer(h)
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return stripBearer(q)
	}
	return ""
}

// IdentityFromRequest resolves the request's credential to an identity.
func IdentityFromRequest(r *http.Request, v Verifier) (Identity, error) {
	cred := CredentialFromRequest(r)
	if cred == "" {
		return Identity{}, ErrUnauthorized
	}
	return v.Verify(cred)
}

func stripBearer(s string) string {
	if strings.HasPrefix(s, "Bearer ") {
		return strings.TrimPrefix(s, "Bearer ")
	}
	return s
}
