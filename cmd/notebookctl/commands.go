package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gwi.com/notebook-console/internal/agent"
	"gwi.com/notebook-console/internal/auth"
	"gwi.com/notebook-console/internal/backend"
	"gwi.com/notebook-console/internal/config"
	"gwi.com/notebook-console/internal/core"
	"gwi.com/notebook-console/internal/notebook"
	"gwi.com/notebook-console/internal/poller"
	"gwi.com/notebook-console/internal/progress"
	"gwi.com/notebook-console/internal/upload"
)

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "account username")
	password := fs.String("password", os.Getenv("NOTEBOOK_PASSWORD"), "account password")
	fs.Parse(args)

	res := core.NewAuthService(a.client).Login(ctx, core.LoginInput{Username: *username, Password: *password})
	if err := resultError(res); err != nil {
		return err
	}
	data := res.Data.(core.LoginData)
	if err := a.storage.Set(auth.CookieName, data.Token); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if claims, err := auth.ParseClaims(data.Token); err == nil && !claims.ExpiresAt.IsZero() {
		fmt.Printf("Signed in as %s until %s\n", *username, claims.ExpiresAt.Local().Format(time.RFC822))
		return nil
	}
	fmt.Printf("Signed in as %s\n", *username)
	return nil
}

func (a *app) upload(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: upload <notebook> <files...>")
	}
	notebookID, paths := args[0], args[1:]
	token, err := a.token()
	if err != nil {
		return err
	}

	files, err := upload.OpenFiles(paths)
	if err != nil {
		return err
	}
	statuses, err := upload.New(a.client, a.tokens).UploadWithStatuses(ctx, files)
	for _, s := range statuses {
		if s.Status == upload.StatusSuccess {
			fmt.Printf("  %s %s\n", progress.StepDone.Render("✔"), s.Filename)
		} else {
			fmt.Printf("  %s %s: %s\n", progress.Failed.Render("✘"), s.Filename, s.Error)
		}
	}
	if err != nil {
		return err
	}

	docs := upload.Documents(statuses)
	if len(docs) == 0 {
		return errors.New("no file was accepted")
	}
	res := core.NewSourceService(a.client, nil, nil).AddDocumentSources(ctx, token, notebookID, docs)
	if err := resultError(res); err != nil {
		return err
	}

	linked := res.Data.([]backend.NotebookSource)
	nb := notebook.New(notebookID, a.storage)
	for range linked {
		nb.IncrementSourceCount()
	}
	if err := nb.SyncSourceCount(ctx, notebook.BackendCounter{Backend: a.client, Token: token}); err != nil {
		fmt.Fprintf(os.Stderr, "could not refresh source count: %v\n", err)
	}
	fmt.Printf("Added %d source(s) to notebook %s, now %d in total\n", len(linked), notebookID, nb.SourceCount())
	return nil
}

func (a *app) addURL(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-url", flag.ExitOnError)
	title := fs.String("title", "", "source title (defaults to the host)")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return errors.New("usage: add-url [-title t] <notebook> <url>")
	}
	token, err := a.token()
	if err != nil {
		return err
	}

	res := core.NewSourceService(a.client, nil, nil).AddURLSource(ctx, token, fs.Arg(0), core.URLSourceInput{URL: fs.Arg(1), Title: *title})
	if err := resultError(res); err != nil {
		return err
	}
	ns := res.Data.(*backend.NotebookSource)
	fmt.Printf("Added %s (%s)\n", ns.Source.Title, ns.SourceID)
	return nil
}

func (a *app) sources(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	watch := fs.Bool("watch", false, "keep polling until no source is processing")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: sources [-watch] <notebook>")
	}
	notebookID := fs.Arg(0)
	token, err := a.token()
	if err != nil {
		return err
	}
	nb := notebook.New(notebookID, a.storage)

	if !*watch {
		list, err := a.client.ListNotebookSources(ctx, token, notebookID)
		if err != nil {
			return err
		}
		sources := make([]backend.Source, 0, len(list))
		for _, ns := range list {
			if ns.Source != nil {
				sources = append(sources, *ns.Source)
			}
		}
		printSources(nb, sources)
		return nil
	}

	watcher := poller.NewService(a.client, config.AppConfig.PollInterval)
	defer watcher.Close()
	sub := watcher.Subscribe(token, notebookID)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-sub.C:
			if !ok {
				return nil
			}
			if u.Err != nil {
				fmt.Fprintf(os.Stderr, "fetch failed: %v\n", u.Err)
				continue
			}
			fmt.Printf("\n%s\n", u.FetchedAt.Local().Format(time.TimeOnly))
			printSources(nb, u.Sources)
			if !u.Processing {
				return nil
			}
		}
	}
}

// printSources also prunes the stored selection to sources that still exist.
func printSources(nb *notebook.Store, sources []backend.Source) {
	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ID
	}
	nb.RetainSources(ids)
	nb.SetSourceCount(len(sources))

	for _, s := range sources {
		mark := "[ ]"
		if nb.IsSelected(s.ID) {
			mark = "[x]"
		}
		fmt.Printf("%s %-36s %-8s %-10s %s\n", mark, s.ID, s.SourceType, statusLabel(s.Status), s.Title)
	}
	fmt.Printf("%d source(s), %d selected\n", nb.SourceCount(), nb.SelectedCount())
}

func statusLabel(s backend.SourceStatus) string {
	switch s {
	case backend.StatusIndexed:
		return progress.StepDone.Render(string(s))
	case backend.StatusFailed:
		return progress.Failed.Render(string(s))
	default:
		return progress.StepActive.Render(string(s))
	}
}

func (a *app) toggle(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: select <notebook> <ids...>")
	}
	nb := notebook.New(args[0], a.storage)
	for _, id := range args[1:] {
		nb.ToggleSourceSelection(id)
	}
	printSelection(nb)
	return nil
}

func (a *app) selectAll(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: select-all <notebook>")
	}
	token, err := a.token()
	if err != nil {
		return err
	}
	list, err := a.client.ListNotebookSources(ctx, token, args[0])
	if err != nil {
		return err
	}
	ids := make([]string, len(list))
	for i, ns := range list {
		ids[i] = ns.SourceID
	}
	nb := notebook.New(args[0], a.storage)
	nb.SelectAllSources(ids)
	printSelection(nb)
	return nil
}

func (a *app) clearSelection(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: clear-selection <notebook>")
	}
	nb := notebook.New(args[0], a.storage)
	nb.DeselectAllSources()
	printSelection(nb)
	return nil
}

func printSelection(nb *notebook.Store) {
	sel := nb.SelectedSources()
	if len(sel) == 0 {
		fmt.Println("No sources selected")
		return
	}
	fmt.Printf("%d selected: %s\n", len(sel), strings.Join(sel, ", "))
}

func (a *app) progress(ctx context.Context, args []string) error {
	url := config.AppConfig.AgentURL
	if len(args) == 1 {
		url = args[0]
	}
	if url == "" || len(args) > 1 {
		return errors.New("usage: progress <agent-url> (or set AGENT_URL)")
	}
	token, _ := a.tokens.Token() // the agent may not need a session

	lines := 0
	err := agent.New(url, token).Watch(ctx, func(st progress.AgentState) {
		// redraw in place
		if lines > 0 {
			fmt.Printf("\033[%dA\033[J", lines)
		}
		out := progress.Header.Render("Agent progress") + "\n" + progress.Render(st)
		fmt.Println(out)
		lines = strings.Count(out, "\n") + 1
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if errors.Is(err, agent.ErrUnauthorized) {
		return errors.New("the agent rejected the session, sign in again")
	}
	return err
}

func (a *app) cleanup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "report what would be removed")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: cleanup [-dry-run] <kind>")
	}
	token, err := a.token()
	if err != nil {
		return err
	}

	report, err := a.client.Cleanup(ctx, token, backend.CleanupKind(fs.Arg(0)), *dryRun)
	if err != nil {
		return err
	}
	verb := "Removed"
	if report.DryRun {
		verb = "Would remove"
	}
	fmt.Printf("%s %d object(s), %d record(s), %d vector(s)\n", verb, report.DeletedObjects, report.DeletedRecords, report.DeletedVectors)
	for _, k := range report.OrphanedObjectKeys {
		fmt.Printf("  object   %s\n", k)
	}
	for _, id := range report.OrphanedDocumentIDs {
		fmt.Printf("  document %s\n", id)
	}
	if c := report.Consistency; c != nil {
		fmt.Printf("Consistency: objects=%d database=%d vectors=%d consistent=%t\n",
			c.ObjectStoreCount, c.DatabaseCount, c.VectorStoreCount, c.Consistent)
	}
	return nil
}

// resultError turns a non-success action result into an error for the
// terminal.
func resultError(res core.Result) error {
	if res.OK() {
		return nil
	}
	switch res.Kind {
	case core.KindValidationError:
		parts := make([]string, 0, len(res.FieldErrors))
		for f, msg := range res.FieldErrors {
			parts = append(parts, f+": "+msg)
		}
		return fmt.Errorf("invalid input: %s", strings.Join(parts, "; "))
	default:
		return fmt.Errorf("%s: %s", res.Context, res.Message)
	}
}
