package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gwi.com/notebook-console/internal/auth"
	"gwi.com/notebook-console/internal/backend"
	"gwi.com/notebook-console/internal/cache"
	"gwi.com/notebook-console/internal/core"
	"gwi.com/notebook-console/internal/poller"
)

type APIHandler struct {
	backend   *backend.Client
	proxy     *http.Client
	views     *cache.ViewCache
	watcher   *poller.Service
	notebooks *core.NotebookService
	sources   *core.SourceService
	auth      *core.AuthService
	upgrader  websocket.Upgrader
	now       func() time.Time

	// SecureCookies marks the session cookie Secure; set it behind TLS.
	SecureCookies bool
}

// NewAPIHandler wires the proxy, the server actions and the source watcher.
// views and watcher must not be nil.
func NewAPIHandler(b *backend.Client, views *cache.ViewCache, watcher *poller.Service, proxyTimeout time.Duration) *APIHandler {
	return &APIHandler{
		backend:   b,
		proxy:     &http.Client{Timeout: proxyTimeout},
		views:     views,
		watcher:   watcher,
		notebooks: core.NewNotebookService(b, views),
		sources:   core.NewSourceService(b, views, watcher),
		auth:      core.NewAuthService(b),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		now: time.Now,
	}
}

type tokenKey struct{}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// SessionMiddleware resolves the caller's token from the bearer header or
// the accessToken cookie. Missing or expired sessions are sent to /login.
func (h *APIHandler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" || auth.Expired(token, h.now()) {
			if token != "" {
				http.SetCookie(w, auth.ClearedSessionCookie())
			}
			writeJSON(w, http.StatusUnauthorized, core.Navigate("/login"))
			return
		}
		ctx := context.WithValue(r.Context(), tokenKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, map[string]string{"status": "ok"})
}

func jsonResp(w http.ResponseWriter, v interface{}) {
	writeJSON(w, http.StatusOK, v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
