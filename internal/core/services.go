package core

import (
	"context"
	"log"

	"gwi.com/notebook-console/internal/backend"
)

// Backend is the part of the backend client the actions use.
type Backend interface {
	Login(ctx context.Context, username, password string) (*backend.Token, error)
	Register(ctx context.Context, token string, in backend.RegisterRequest) (*backend.User, error)

	CreateNotebook(ctx context.Context, token string, in backend.NotebookCreate) (*backend.Notebook, error)
	UpdateNotebook(ctx context.Context, token, id string, in backend.NotebookUpdate) (*backend.Notebook, error)
	DeleteNotebook(ctx context.Context, token, id string) error

	CreateSource(ctx context.Context, token string, in backend.SourceCreate) (*backend.Source, error)
	UpdateSource(ctx context.Context, token, id string, in backend.SourceUpdate) (*backend.Source, error)
	DeleteSource(ctx context.Context, token, id string) error
	AddSourceToNotebook(ctx context.Context, token, notebookID string, in backend.AddSourceRequest) (*backend.NotebookSource, error)
	RemoveSourceFromNotebook(ctx context.Context, token, notebookID, sourceID string) error
}

// Invalidator drops cached views under a path.
type Invalidator interface {
	Invalidate(path string) error
}

// Refresher nudges whoever watches a notebook's sources to refetch.
type Refresher interface {
	Refresh(token, notebookID string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(string) error { return nil }

// invalidate never fails the action: the write already happened and the
// next navigation refetches anyway.
func invalidate(inv Invalidator, paths ...string) {
	for _, p := range paths {
		if err := inv.Invalidate(p); err != nil {
			log.Printf("Failed to invalidate cached view %s: %v", p, err)
		}
	}
}

func notebookPath(id string) string        { return "/notebooks/" + id }
func notebookSourcesPath(id string) string { return "/notebooks/" + id + "/sources" }
