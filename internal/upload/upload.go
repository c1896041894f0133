// Package upload sends local files to the backend upload endpoint on behalf
// of a signed-in user. It runs on the client side, so the token comes from
// the client's own storage rather than from an incoming request.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"gwi.com/notebook-console/internal/auth"
	"gwi.com/notebook-console/internal/backend"
	"gwi.com/notebook-console/internal/store"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// File is one file to upload.
type File struct {
	Name string
	Data []byte
}

// FileStatus is the per-file outcome of UploadWithStatuses.
type FileStatus struct {
	Filename string                    `json:"filename"`
	Status   string                    `json:"status"`
	Document *backend.UploadedDocument `json:"document,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

// TokenSource resolves the session token.
type TokenSource interface {
	Token() (string, error)
}

// ClientTokens looks in local storage first and then in the cookie jar,
// mirroring where a browser session keeps its accessToken.
type ClientTokens struct {
	Storage    store.Storage
	Jar        http.CookieJar
	BackendURL string
}

func (c ClientTokens) Token() (string, error) {
	if c.Storage != nil {
		if v, ok, err := c.Storage.Get(auth.CookieName); err == nil && ok && v != "" {
			return v, nil
		}
	}
	if c.Jar != nil && c.BackendURL != "" {
		u, err := url.Parse(c.BackendURL)
		if err == nil {
			for _, ck := range c.Jar.Cookies(u) {
				if ck.Name == auth.CookieName && ck.Value != "" {
					return ck.Value, nil
				}
			}
		}
	}
	return "", auth.ErrNoToken
}

// StaticToken is a TokenSource for a known token.
type StaticToken string

func (s StaticToken) Token() (string, error) {
	if s == "" {
		return "", auth.ErrNoToken
	}
	return string(s), nil
}

type Uploader struct {
	Client *backend.Client
	Tokens TokenSource
}

func New(client *backend.Client, tokens TokenSource) *Uploader {
	return &Uploader{Client: client, Tokens: tokens}
}

// UploadFiles posts all files in one multipart request and returns the
// documents the backend created. The backend's error detail is returned
// as-is; nothing is retried.
func (u *Uploader) UploadFiles(ctx context.Context, files []File) (*backend.UploadResponse, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}
	token, err := u.Tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}

	parts := make([]backend.UploadPart, len(files))
	for i, f := range files {
		parts[i] = backend.UploadPart{Filename: f.Name, Content: bytes.NewReader(f.Data)}
	}
	return u.Client.UploadFiles(ctx, token, parts)
}

// UploadWithStatuses uploads files and reports one status per input file,
// in input order, matched by filename.
func (u *Uploader) UploadWithStatuses(ctx context.Context, files []File) ([]FileStatus, error) {
	statuses := make([]FileStatus, len(files))
	for i, f := range files {
		statuses[i] = FileStatus{Filename: f.Name, Status: StatusError}
	}

	resp, err := u.UploadFiles(ctx, files)
	if err != nil {
		for i := range statuses {
			statuses[i].Error = err.Error()
		}
		return statuses, err
	}
	return MatchStatuses(files, resp), nil
}

// MatchStatuses pairs files with the documents and errors of an upload
// response. Duplicate filenames are matched in order.
func MatchStatuses(files []File, resp *backend.UploadResponse) []FileStatus {
	docs := make(map[string][]backend.UploadedDocument)
	for _, d := range resp.Documents {
		docs[d.Filename] = append(docs[d.Filename], d)
	}
	failures := make(map[string][]string)
	for _, e := range resp.Errors {
		failures[e.Filename] = append(failures[e.Filename], e.Detail)
	}

	statuses := make([]FileStatus, len(files))
	for i, f := range files {
		st := FileStatus{Filename: f.Name}
		switch {
		case len(docs[f.Name]) > 0:
			d := docs[f.Name][0]
			docs[f.Name] = docs[f.Name][1:]
			st.Status = StatusSuccess
			st.Document = &d
		case len(failures[f.Name]) > 0:
			st.Status = StatusError
			st.Error = failures[f.Name][0]
			failures[f.Name] = failures[f.Name][1:]
		default:
			st.Status = StatusError
			st.Error = "not processed by the server"
		}
		statuses[i] = st
	}
	return statuses
}

// Documents returns the created documents of successful statuses.
func Documents(statuses []FileStatus) []backend.UploadedDocument {
	var out []backend.UploadedDocument
	for _, st := range statuses {
		if st.Status == StatusSuccess && st.Document != nil {
			out = append(out, *st.Document)
		}
	}
	return out
}

// OpenFiles reads local paths into Files named by their base name.
func OpenFiles(paths []string) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}
