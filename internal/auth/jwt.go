package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie (and local-storage key) holding the session token.
const CookieName = "accessToken"

var ErrNoToken = errors.New("no access token")

// TokenFromRequest returns the bearer token of the Authorization header or,
// failing that, the accessToken cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" && tok != h {
			return tok
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Claims is the subset of the backend token we look at. Tokens are issued
// and verified by the backend; the gateway never holds the signing key, so
// these values only drive session redirects.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

func ParseClaims(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}

	claims := &Claims{}
	if sub, err := token.Claims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}

// Expired reports whether the token carries an exp claim in the past. Only
// the empty token counts as expired without asking the backend: tokens that
// are not JWTs, and JWTs without exp, are treated as live and left for the
// backend to accept or reject.
func Expired(tokenString string, now time.Time) bool {
	if tokenString == "" {
		return true
	}
	claims, err := ParseClaims(tokenString)
	if err != nil {
		return false
	}
	return !claims.ExpiresAt.IsZero() && !now.Before(claims.ExpiresAt)
}

// SessionCookie builds the accessToken cookie set after login.
func SessionCookie(token string, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false, // the upload utility reads it client-side
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if claims, err := ParseClaims(token); err == nil && !claims.ExpiresAt.IsZero() {
		c.Expires = claims.ExpiresAt
	}
	return c
}

// ClearedSessionCookie expires the accessToken cookie.
func ClearedSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:    CookieName,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	}
}
