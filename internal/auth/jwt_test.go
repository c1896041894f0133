package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := TokenFromRequest(r); got != "" {
		t.Errorf("empty request token = %q", got)
	}

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	if got := TokenFromRequest(r); got != "from-cookie" {
		t.Errorf("cookie token = %q, want from-cookie", got)
	}

	r.Header.Set("Authorization", "Bearer from-header")
	if got := TokenFromRequest(r); got != "from-header" {
		t.Errorf("header token = %q, want header to win over cookie", got)
	}
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()})

	claims, err := ParseClaims(tok)
	if err != nil {
		t.Fatalf("ParseClaims: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Errorf("expires = %v, want %v", claims.ExpiresAt, exp)
	}

	if _, err := ParseClaims(""); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty token err = %v, want ErrNoToken", err)
	}
	if _, err := ParseClaims("not.a.jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	live := signedToken(t, jwt.MapClaims{"sub": "u", "exp": now.Add(time.Minute).Unix()})
	dead := signedToken(t, jwt.MapClaims{"sub": "u", "exp": now.Add(-time.Minute).Unix()})
	noExp := signedToken(t, jwt.MapClaims{"sub": "u"})

	if Expired(live, now) {
		t.Error("live token reported expired")
	}
	if !Expired(dead, now) {
		t.Error("dead token reported live")
	}
	if Expired(noExp, now) {
		t.Error("token without exp should be live")
	}
	if Expired("opaque-session-token", now) {
		t.Error("token that is not a JWT should be left to the backend")
	}
	if !Expired("", now) {
		t.Error("empty token should count as expired")
	}
}

func TestSessionCookie(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	c := SessionCookie(signedToken(t, jwt.MapClaims{"exp": exp.Unix()}), true)
	if c.Name != CookieName || !c.Secure || c.Path != "/" {
		t.Errorf("cookie = %+v", c)
	}
	if !c.Expires.Equal(exp) {
		t.Errorf("cookie expires = %v, want %v", c.Expires, exp)
	}
	if ClearedSessionCookie().MaxAge >= 0 {
		t.Error("cleared cookie must have negative MaxAge")
	}
}
