package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"gwi.com/notebook-console/internal/auth"
	"gwi.com/notebook-console/internal/backend"
	"gwi.com/notebook-console/internal/poller"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

type watchMessage struct {
	Sources    []backend.Source `json:"sources"`
	Processing bool             `json:"processing"`
}

func toWatchMessage(u poller.Update) any {
	if u.Err != nil {
		return map[string]string{"error": "Failed to load sources"}
	}
	sources := u.Sources
	if sources == nil {
		sources = []backend.Source{}
	}
	return watchMessage{Sources: sources, Processing: u.Processing}
}

// WatchSources streams a notebook's source list over a websocket. Every
// connection for the same session and notebook shares one poll loop.
func (h *APIHandler) WatchSources(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token == "" || auth.Expired(token, h.now()) {
		jsonErr(w, "Not authenticated", http.StatusUnauthorized)
		return
	}
	notebookID := chi.URLParam(r, "notebookID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed for notebook %s: %v", notebookID, err)
		return
	}
	defer conn.Close()

	sub := h.watcher.Subscribe(token, notebookID)
	defer sub.Close()

	// The client never sends anything; reading only surfaces the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case u, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toWatchMessage(u)); err != nil {
				log.Printf("Error writing sources of notebook %s: %v", notebookID, err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
