package api

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"gwi.com/notebook-console/internal/auth"
	"gwi.com/notebook-console/internal/backend"
	"gwi.com/notebook-console/internal/cache"
)

const requestIDHeader = "X-Request-Id"

// Proxy forwards /api/<path> to the backend under its API prefix. Backend
// error bodies are normalized to {"error": detail} with the backend status;
// a backend that cannot be reached yields 500.
func (h *APIHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	key := cache.Key(auth.TokenFromRequest(r), path)
	cacheable := r.Method == http.MethodGet && !isSourceList(path)

	if cacheable {
		if e, ok := h.views.Get(key); ok {
			w.Header().Set("Content-Type", e.ContentType)
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(e.Status)
			w.Write(e.Body)
			return
		}
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, h.backend.URL(path), r.Body)
	if err != nil {
		log.Printf("Error building backend request for %s %s: %v", r.Method, path, err)
		jsonErr(w, "Failed to reach backend service", http.StatusInternalServerError)
		return
	}
	req.ContentLength = r.ContentLength
	copyHeaders(req, r)

	resp, err := h.proxy.Do(req)
	if err != nil {
		log.Printf("Backend unreachable for %s %s: %v", r.Method, path, err)
		jsonErr(w, "Failed to reach backend service", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Error reading backend response for %s %s: %v", r.Method, path, err)
		jsonErr(w, "Failed to reach backend service", http.StatusInternalServerError)
		return
	}

	if r.Method != http.MethodGet {
		coll := collectionOf(path)
		h.views.Invalidate(coll)
		if coll == "/sources" {
			// sources are listed inside notebooks as well
			h.views.Invalidate("/notebooks")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		jsonErr(w, backend.ErrorDetail(body, http.StatusText(resp.StatusCode)), resp.StatusCode)
		return
	}

	ct := resp.Header.Get("Content-Type")
	if cacheable {
		h.views.Put(key, resp.StatusCode, ct, body)
	}
	if ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}

func copyHeaders(dst, src *http.Request) {
	for _, name := range []string{"Content-Type", "Accept"} {
		if v := src.Header.Get(name); v != "" {
			dst.Header.Set(name, v)
		}
	}

	if h := src.Header.Get("Authorization"); h != "" {
		dst.Header.Set("Authorization", h)
	} else if c, err := src.Cookie(auth.CookieName); err == nil && c.Value != "" {
		dst.Header.Set("Authorization", "Bearer "+c.Value)
	}

	id := src.Header.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	dst.Header.Set(requestIDHeader, id)
}

// collectionOf returns the top-level resource of path: a write to
// /notebooks/n1/sources can change /notebooks and /notebooks/n1 too.
func collectionOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	return "/" + parts[0]
}

// isSourceList matches /notebooks/{id}/sources. Source statuses change inside
// the backend without a write through this gateway, and the list is polled,
// so it is always fetched fresh.
func isSourceList(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	return len(parts) == 3 && parts[0] == "notebooks" && parts[2] == "sources"
}
