package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gwi.com/notebook-console/internal/auth"
	"gwi.com/notebook-console/internal/backend"
	"gwi.com/notebook-console/internal/core"
)

// writeResult maps an action result onto an HTTP status.
func writeResult(w http.ResponseWriter, res core.Result) {
	status := http.StatusOK
	switch res.Kind {
	case core.KindValidationError:
		status = http.StatusUnprocessableEntity
	case core.KindFailure:
		status = res.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, res)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || err == io.EOF {
		return true
	}
	writeResult(w, core.Result{
		Kind:       core.KindFailure,
		Message:    "Invalid request body: " + err.Error(),
		StatusCode: http.StatusBadRequest,
	})
	return false
}

// ========== Auth ==========

func (h *APIHandler) LoginAction(w http.ResponseWriter, r *http.Request) {
	var in core.LoginInput
	if !decode(w, r, &in) {
		return
	}
	res := h.auth.Login(r.Context(), in)
	if res.Kind != core.KindSuccess {
		writeResult(w, res)
		return
	}
	data := res.Data.(core.LoginData)
	http.SetCookie(w, auth.SessionCookie(data.Token, h.SecureCookies))
	writeResult(w, core.Navigate(data.To))
}

func (h *APIHandler) RegisterAction(w http.ResponseWriter, r *http.Request) {
	var in core.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	writeResult(w, h.auth.Register(r.Context(), in))
}

func (h *APIHandler) LogoutAction(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearedSessionCookie())
	writeResult(w, h.auth.Logout())
}

// ========== Notebooks ==========

func (h *APIHandler) CreateNotebookAction(w http.ResponseWriter, r *http.Request) {
	var in core.NotebookInput
	if !decode(w, r, &in) {
		return
	}
	writeResult(w, h.notebooks.CreateNotebook(r.Context(), tokenFrom(r.Context()), in))
}

func (h *APIHandler) UpdateNotebookAction(w http.ResponseWriter, r *http.Request) {
	var in core.NotebookInput
	if !decode(w, r, &in) {
		return
	}
	id := chi.URLParam(r, "notebookID")
	writeResult(w, h.notebooks.UpdateNotebook(r.Context(), tokenFrom(r.Context()), id, in))
}

func (h *APIHandler) DeleteNotebookAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notebookID")
	writeResult(w, h.notebooks.DeleteNotebook(r.Context(), tokenFrom(r.Context()), id))
}

// ========== Sources ==========

func (h *APIHandler) CreateSourceAction(w http.ResponseWriter, r *http.Request) {
	var in core.SourceInput
	if !decode(w, r, &in) {
		return
	}
	writeResult(w, h.sources.CreateSource(r.Context(), tokenFrom(r.Context()), in))
}

func (h *APIHandler) UpdateSourceAction(w http.ResponseWriter, r *http.Request) {
	var in core.SourceUpdateInput
	if !decode(w, r, &in) {
		return
	}
	id := chi.URLParam(r, "sourceID")
	writeResult(w, h.sources.UpdateSource(r.Context(), tokenFrom(r.Context()), id, in))
}

func (h *APIHandler) DeleteSourceAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sourceID")
	writeResult(w, h.sources.DeleteSource(r.Context(), tokenFrom(r.Context()), id))
}

func (h *APIHandler) AddSourceToNotebookAction(w http.ResponseWriter, r *http.Request) {
	var in core.AddToNotebookInput
	if !decode(w, r, &in) {
		return
	}
	id := chi.URLParam(r, "notebookID")
	writeResult(w, h.sources.AddSourceToNotebook(r.Context(), tokenFrom(r.Context()), id, in))
}

func (h *APIHandler) AddURLSourceAction(w http.ResponseWriter, r *http.Request) {
	var in core.URLSourceInput
	if !decode(w, r, &in) {
		return
	}
	id := chi.URLParam(r, "notebookID")
	writeResult(w, h.sources.AddURLSource(r.Context(), tokenFrom(r.Context()), id, in))
}

type addDocumentsRequest struct {
	Documents []backend.UploadedDocument `json:"documents"`
}

func (h *APIHandler) AddDocumentSourcesAction(w http.ResponseWriter, r *http.Request) {
	var in addDocumentsRequest
	if !decode(w, r, &in) {
		return
	}
	id := chi.URLParam(r, "notebookID")
	writeResult(w, h.sources.AddDocumentSources(r.Context(), tokenFrom(r.Context()), id, in.Documents))
}

func (h *APIHandler) RemoveSourceFromNotebookAction(w http.ResponseWriter, r *http.Request) {
	notebookID := chi.URLParam(r, "notebookID")
	sourceID := chi.URLParam(r, "sourceID")
	writeResult(w, h.sources.RemoveSourceFromNotebook(r.Context(), tokenFrom(r.Context()), notebookID, sourceID))
}
