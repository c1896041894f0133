// Command notebookctl drives a notebook from the terminal: sign in, upload
// files, add links, watch sources finish processing and pick which sources
// the chat uses. State that a browser keeps in local storage lives in a
// sqlite file instead.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gwi.com/notebook-console/internal/auth"
	"gwi.com/notebook-console/internal/backend"
	"gwi.com/notebook-console/internal/config"
	"gwi.com/notebook-console/internal/store"
	"gwi.com/notebook-console/internal/upload"
)

const usage = `usage: notebookctl <command> [arguments]

commands:
  login -username <name>            sign in (password from -password or NOTEBOOK_PASSWORD)
  logout                            forget the stored session
  whoami                            show the signed-in account
  notebooks                         list your notebooks
  upload <notebook> <files...>      upload files and add them as sources
  add-url [-title t] <notebook> <url>
  sources [-watch] <notebook>       list sources, optionally until processing ends
  select <notebook> <ids...>        toggle sources in the chat selection
  select-all <notebook>
  clear-selection <notebook>
  selections                        list notebooks with a stored selection
  library [-type t] [-status s] [-limit n]
                                    list sources across all notebooks
  source <id>                       show one source
  progress [agent-url]              follow an agent run (default AGENT_URL)
  cleanup [-dry-run] <kind>         orphaned-files, orphaned-records or full
`

type app struct {
	client  *backend.Client
	storage *store.SQLiteStore
	tokens  upload.TokenSource
	out     io.Writer
}

func (a *app) token() (string, error) {
	tok, err := a.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("not signed in, run notebookctl login first")
	}
	return tok, nil
}

func main() {
	config.LoadConfig()
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if !config.AppConfig.Debug() {
		// keep the terminal for command output
		log.SetOutput(io.Discard)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	st, err := store.NewSQLiteStore(config.AppConfig.StateDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open state database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	a := &app{
		client:  backend.New(config.AppConfig.BackendURL, config.AppConfig.APIPrefix),
		storage: st,
		tokens:  upload.ClientTokens{Storage: st},
		out:     os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "login":
		err = a.login(ctx, args)
	case "logout":
		err = st.Remove(auth.CookieName)
	case "whoami":
		err = a.whoami(ctx)
	case "notebooks":
		err = a.notebooks(ctx)
	case "upload":
		err = a.upload(ctx, args)
	case "add-url":
		err = a.addURL(ctx, args)
	case "sources":
		err = a.sources(ctx, args)
	case "select":
		err = a.toggle(args)
	case "select-all":
		err = a.selectAll(ctx, args)
	case "clear-selection":
		err = a.clearSelection(args)
	case "selections":
		err = a.selections()
	case "library":
		err = a.library(ctx, args)
	case "source":
		err = a.source(ctx, args)
	case "progress":
		err = a.progress(ctx, args)
	case "cleanup":
		err = a.cleanup(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "notebookctl %s: %v\n", cmd, err)
		os.Exit(1)
	}
}
