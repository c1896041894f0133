package core

import (
	"context"
	"log"
	"strings"

	"gwi.com/notebook-console/internal/backend"
)

type NotebookInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

type NotebookService struct {
	backend     Backend
	invalidator Invalidator
}

func NewNotebookService(b Backend, inv Invalidator) *NotebookService {
	if inv == nil {
		inv = noopInvalidator{}
	}
	return &NotebookService{backend: b, invalidator: inv}
}

func (s *NotebookService) CreateNotebook(ctx context.Context, token string, in NotebookInput) Result {
	in.Title = strings.TrimSpace(in.Title)
	if fields := validateInput(in); fields != nil {
		return Invalid(fields)
	}

	nb, err := s.backend.CreateNotebook(ctx, token, backend.NotebookCreate{Title: in.Title, Description: in.Description})
	if err != nil {
		log.Printf("Error creating notebook %q: %v", in.Title, err)
		return Failure("Failed to create notebook", err)
	}

	invalidate(s.invalidator, "/notebooks")
	return Navigate(notebookPath(nb.ID))
}

func (s *NotebookService) UpdateNotebook(ctx context.Context, token, id string, in NotebookInput) Result {
	if id == "" {
		return Invalid(map[string]string{"id": "This field is required"})
	}
	in.Title = strings.TrimSpace(in.Title)
	if fields := validateInput(in); fields != nil {
		return Invalid(fields)
	}

	nb, err := s.backend.UpdateNotebook(ctx, token, id, backend.NotebookUpdate{Title: &in.Title, Description: in.Description})
	if err != nil {
		log.Printf("Error updating notebook %s: %v", id, err)
		return Failure("Failed to update notebook", err)
	}

	invalidate(s.invalidator, "/notebooks", notebookPath(id))
	return Success(nb)
}

func (s *NotebookService) DeleteNotebook(ctx context.Context, token, id string) Result {
	if id == "" {
		return Invalid(map[string]string{"id": "This field is required"})
	}
	if err := s.backend.DeleteNotebook(ctx, token, id); err != nil {
		log.Printf("Error deleting notebook %s: %v", id, err)
		return Failure("Failed to delete notebook", err)
	}

	invalidate(s.invalidator, "/notebooks", notebookPath(id))
	return Navigate("/notebooks")
}
