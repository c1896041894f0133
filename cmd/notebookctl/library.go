package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"gwi.com/notebook-console/internal/backend"
	"gwi.com/notebook-console/internal/notebook"
)

func (a *app) whoami(ctx context.Context) error {
	token, err := a.token()
	if err != nil {
		return err
	}
	u, err := a.client.CurrentUser(ctx, token)
	if err != nil {
		return err
	}
	state := "active"
	if !u.IsActive {
		state = "inactive"
	}
	fmt.Fprintf(a.out, "%s <%s> (%s, %s)\n", u.Username, u.Email, u.ID, state)
	return nil
}

func (a *app) notebooks(ctx context.Context) error {
	token, err := a.token()
	if err != nil {
		return err
	}
	list, err := a.client.ListNotebooks(ctx, token)
	if err != nil {
		return err
	}
	for _, nb := range list {
		fmt.Fprintf(a.out, "%-36s %s  %s\n", nb.ID, nb.UpdatedAt.Local().Format(time.DateOnly), nb.Title)
	}
	fmt.Fprintf(a.out, "%d notebook(s)\n", len(list))
	return nil
}

// selections reads only local state; no session is needed.
func (a *app) selections() error {
	keys, err := a.storage.Keys(notebook.SelectionPrefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(a.out, "No stored selections")
		return nil
	}
	for _, k := range keys {
		nb := notebook.New(strings.TrimPrefix(k, notebook.SelectionPrefix), a.storage)
		fmt.Fprintf(a.out, "%-36s %d selected\n", nb.NotebookID(), nb.SelectedCount())
	}
	return nil
}

func (a *app) library(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("library", flag.ExitOnError)
	kind := fs.String("type", "", "only sources of this type (document, url, video, image or text)")
	status := fs.String("status", "", "only sources in this status")
	limit := fs.Int("limit", 0, "at most this many sources")
	fs.Parse(args)
	if fs.NArg() != 0 {
		return errors.New("usage: library [-type t] [-status s] [-limit n]")
	}
	f := backend.SourceFilter{SourceType: backend.SourceType(*kind), Status: backend.SourceStatus(*status), Limit: *limit}
	if f.SourceType != "" && !f.SourceType.Valid() {
		return fmt.Errorf("unknown source type %q", *kind)
	}
	token, err := a.token()
	if err != nil {
		return err
	}

	list, err := a.client.ListSources(ctx, token, f)
	if err != nil {
		return err
	}
	for _, s := range list {
		used := "-"
		if s.NotebookCount != nil {
			used = fmt.Sprint(*s.NotebookCount)
		}
		fmt.Fprintf(a.out, "%-36s %-8s %-10s %3s  %s\n", s.ID, s.SourceType, statusLabel(s.Status), used, s.Title)
	}
	fmt.Fprintf(a.out, "%d source(s)\n", len(list))
	return nil
}

func (a *app) source(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: source <id>")
	}
	token, err := a.token()
	if err != nil {
		return err
	}
	s, err := a.client.GetSource(ctx, token, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n  id      %s\n  type    %s\n  status  %s\n  created %s\n",
		s.Title, s.ID, s.SourceType, statusLabel(s.Status), s.CreatedAt.Local().Format(time.RFC822))
	for k, v := range s.SourceMetadata {
		fmt.Fprintf(a.out, "  %-7s %v\n", k, v)
	}
	return nil
}
