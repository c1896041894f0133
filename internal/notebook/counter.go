package notebook

import (
	"context"

	"gwi.com/notebook-console/internal/backend"
)

// NotebookSourceLister is the backend call the counter needs.
type NotebookSourceLister interface {
	ListNotebookSources(ctx context.Context, token, notebookID string) ([]backend.NotebookSource, error)
}

// BackendCounter counts a notebook's sources with the caller's token.
type BackendCounter struct {
	Backend NotebookSourceLister
	Token   string
}

func (c BackendCounter) CountSources(ctx context.Context, notebookID string) (int, error) {
	sources, err := c.Backend.ListNotebookSources(ctx, c.Token, notebookID)
	if err != nil {
		return 0, err
	}
	return len(sources), nil
}
