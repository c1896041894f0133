package core

import (
	"context"
	"log"
	"net/url"
	"strings"

	"gwi.com/notebook-console/internal/backend"
)

type SourceInput struct {
	Title          string             `json:"title" validate:"required,max=500"`
	SourceType     backend.SourceType `json:"source_type" validate:"required,source_type"`
	SourceMetadata map[string]any     `json:"source_metadata,omitempty"`
}

type URLSourceInput struct {
	URL   string `json:"url" validate:"required,http_url"`
	Title string `json:"title" validate:"max=500"`
}

type SourceUpdateInput struct {
	Title          *string        `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
}

type AddToNotebookInput struct {
	SourceID string `json:"source_id" validate:"required"`
	Position *int   `json:"position,omitempty" validate:"omitempty,min=0"`
}

type SourceService struct {
	backend     Backend
	invalidator Invalidator
	refresher   Refresher
}

// NewSourceService wires the actions. refresher may be nil.
func NewSourceService(b Backend, inv Invalidator, refresher Refresher) *SourceService {
	if inv == nil {
		inv = noopInvalidator{}
	}
	return &SourceService{backend: b, invalidator: inv, refresher: refresher}
}

func (s *SourceService) CreateSource(ctx context.Context, token string, in SourceInput) Result {
	src, res := s.createSource(ctx, token, in)
	if src == nil {
		return res
	}
	return Success(src)
}

func (s *SourceService) createSource(ctx context.Context, token string, in SourceInput) (*backend.Source, Result) {
	in.Title = strings.TrimSpace(in.Title)
	if fields := validateInput(in); fields != nil {
		return nil, Invalid(fields)
	}

	src, err := s.backend.CreateSource(ctx, token, backend.SourceCreate{
		Title:          in.Title,
		SourceType:     in.SourceType,
		SourceMetadata: in.SourceMetadata,
	})
	if err != nil {
		log.Printf("Error creating %s source %q: %v", in.SourceType, in.Title, err)
		return nil, Failure("Failed to create source", err)
	}
	invalidate(s.invalidator, "/sources")
	return src, Success(src)
}

// AddURLSource creates a url source and links it to the notebook with the
// id the backend assigned.
func (s *SourceService) AddURLSource(ctx context.Context, token, notebookID string, in URLSourceInput) Result {
	if notebookID == "" {
		return Invalid(map[string]string{"notebook_id": "This field is required"})
	}
	in.URL = strings.TrimSpace(in.URL)
	if fields := validateInput(in); fields != nil {
		return Invalid(fields)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = titleFromURL(in.URL)
	}
	src, res := s.createSource(ctx, token, SourceInput{
		Title:          title,
		SourceType:     backend.SourceURL,
		SourceMetadata: map[string]any{"url": in.URL},
	})
	if src == nil {
		return res
	}

	return s.link(ctx, token, notebookID, src)
}

// AddDocumentSources turns uploaded documents into document sources of the
// notebook. It stops at the first failure; sources created before it stay.
func (s *SourceService) AddDocumentSources(ctx context.Context, token, notebookID string, docs []backend.UploadedDocument) Result {
	if notebookID == "" {
		return Invalid(map[string]string{"notebook_id": "This field is required"})
	}
	if len(docs) == 0 {
		return Invalid(map[string]string{"documents": "This field is required"})
	}

	linked := make([]backend.NotebookSource, 0, len(docs))
	for _, d := range docs {
		src, res := s.createSource(ctx, token, SourceInput{
			Title:      d.Filename,
			SourceType: backend.SourceDocument,
			SourceMetadata: map[string]any{
				"document_id": d.ID,
				"filename":    d.Filename,
				"mime_type":   d.MimeType,
				"size":        d.Size,
			},
		})
		if src == nil {
			return res
		}
		res = s.link(ctx, token, notebookID, src)
		if res.Kind != KindSuccess {
			return res
		}
		linked = append(linked, *res.Data.(*backend.NotebookSource))
	}
	return Success(linked)
}

func (s *SourceService) AddSourceToNotebook(ctx context.Context, token, notebookID string, in AddToNotebookInput) Result {
	if notebookID == "" {
		return Invalid(map[string]string{"notebook_id": "This field is required"})
	}
	if fields := validateInput(in); fields != nil {
		return Invalid(fields)
	}
	ns, err := s.backend.AddSourceToNotebook(ctx, token, notebookID, backend.AddSourceRequest{SourceID: in.SourceID, Position: in.Position})
	if err != nil {
		log.Printf("Error adding source %s to notebook %s: %v", in.SourceID, notebookID, err)
		return Failure("Failed to add source to notebook", err)
	}
	s.afterNotebookChange(token, notebookID)
	return Success(ns)
}

func (s *SourceService) link(ctx context.Context, token, notebookID string, src *backend.Source) Result {
	ns, err := s.backend.AddSourceToNotebook(ctx, token, notebookID, backend.AddSourceRequest{SourceID: src.ID})
	if err != nil {
		log.Printf("Error linking source %s to notebook %s: %v", src.ID, notebookID, err)
		return Failure("Failed to add source to notebook", err)
	}
	if ns.Source == nil {
		ns.Source = src
	}
	s.afterNotebookChange(token, notebookID)
	return Success(ns)
}

func (s *SourceService) RemoveSourceFromNotebook(ctx context.Context, token, notebookID, sourceID string) Result {
	if notebookID == "" || sourceID == "" {
		return Invalid(map[string]string{"source_id": "This field is required"})
	}
	if err := s.backend.RemoveSourceFromNotebook(ctx, token, notebookID, sourceID); err != nil {
		log.Printf("Error removing source %s from notebook %s: %v", sourceID, notebookID, err)
		return Failure("Failed to remove source", err)
	}
	s.afterNotebookChange(token, notebookID)
	return Success(nil)
}

func (s *SourceService) UpdateSource(ctx context.Context, token, id string, in SourceUpdateInput) Result {
	if id == "" {
		return Invalid(map[string]string{"id": "This field is required"})
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if fields := validateInput(in); fields != nil {
		return Invalid(fields)
	}
	src, err := s.backend.UpdateSource(ctx, token, id, backend.SourceUpdate{Title: in.Title, SourceMetadata: in.SourceMetadata})
	if err != nil {
		log.Printf("Error updating source %s: %v", id, err)
		return Failure("Failed to update source", err)
	}
	invalidate(s.invalidator, "/sources", "/notebooks")
	return Success(src)
}

func (s *SourceService) DeleteSource(ctx context.Context, token, id string) Result {
	if id == "" {
		return Invalid(map[string]string{"id": "This field is required"})
	}
	if err := s.backend.DeleteSource(ctx, token, id); err != nil {
		log.Printf("Error deleting source %s: %v", id, err)
		return Failure("Failed to delete source", err)
	}
	// a source may belong to any notebook
	invalidate(s.invalidator, "/sources", "/notebooks")
	return Success(nil)
}

func (s *SourceService) afterNotebookChange(token, notebookID string) {
	invalidate(s.invalidator, "/sources", notebookSourcesPath(notebookID), notebookPath(notebookID))
	if s.refresher != nil {
		s.refresher.Refresh(token, notebookID)
	}
}

func titleFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}
