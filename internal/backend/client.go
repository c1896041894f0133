package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the document-management backend. Every call takes the
// caller's bearer token; an empty token sends an anonymous request.
type Client struct {
	BaseURL    string
	Prefix     string
	HTTPClient *http.Client
}

func New(baseURL, prefix string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Prefix:  "/" + strings.Trim(prefix, "/"),
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// URL returns the absolute backend URL for a prefix-relative path.
func (c *Client) URL(path string) string {
	if c.Prefix == "/" {
		return c.BaseURL + path
	}
	return c.BaseURL + c.Prefix + path
}

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %d: %s", e.StatusCode, e.Detail)
}

// ========== Auth & users ==========

func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL("/auth/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok Token
	if err := c.do(req, "", &tok); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &tok, nil
}

func (c *Client) Register(ctx context.Context, token string, in RegisterRequest) (*User, error) {
	var u User
	if err := c.sendJSON(ctx, http.MethodPost, "/users/", token, in, &u); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &u, nil
}

func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.sendJSON(ctx, http.MethodGet, "/users/me", token, nil, &u); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return &u, nil
}

// ========== Notebooks ==========

func (c *Client) ListNotebooks(ctx context.Context, token string) ([]Notebook, error) {
	var out []Notebook
	if err := c.sendJSON(ctx, http.MethodGet, "/notebooks/", token, nil, &out); err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	return out, nil
}

func (c *Client) GetNotebook(ctx context.Context, token, id string) (*Notebook, error) {
	var nb Notebook
	if err := c.sendJSON(ctx, http.MethodGet, "/notebooks/"+url.PathEscape(id), token, nil, &nb); err != nil {
		return nil, fmt.Errorf("get notebook %s: %w", id, err)
	}
	return &nb, nil
}

func (c *Client) CreateNotebook(ctx context.Context, token string, in NotebookCreate) (*Notebook, error) {
	var nb Notebook
	if err := c.sendJSON(ctx, http.MethodPost, "/notebooks/", token, in, &nb); err != nil {
		return nil, fmt.Errorf("create notebook: %w", err)
	}
	return &nb, nil
}

func (c *Client) UpdateNotebook(ctx context.Context, token, id string, in NotebookUpdate) (*Notebook, error) {
	var nb Notebook
	if err := c.sendJSON(ctx, http.MethodPatch, "/notebooks/"+url.PathEscape(id), token, in, &nb); err != nil {
		return nil, fmt.Errorf("update notebook %s: %w", id, err)
	}
	return &nb, nil
}

func (c *Client) DeleteNotebook(ctx context.Context, token, id string) error {
	if err := c.sendJSON(ctx, http.MethodDelete, "/notebooks/"+url.PathEscape(id), token, nil, nil); err != nil {
		return fmt.Errorf("delete notebook %s: %w", id, err)
	}
	return nil
}

// ========== Sources ==========

func (c *Client) ListSources(ctx context.Context, token string, f SourceFilter) ([]Source, error) {
	q := url.Values{}
	if f.SourceType != "" {
		q.Set("source_type", string(f.SourceType))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Skip > 0 {
		q.Set("skip", strconv.Itoa(f.Skip))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/sources/"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []Source
	if err := c.sendJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return out, nil
}

func (c *Client) GetSource(ctx context.Context, token, id string) (*Source, error) {
	var s Source
	if err := c.sendJSON(ctx, http.MethodGet, "/sources/"+url.PathEscape(id), token, nil, &s); err != nil {
		return nil, fmt.Errorf("get source %s: %w", id, err)
	}
	return &s, nil
}

func (c *Client) CreateSource(ctx context.Context, token string, in SourceCreate) (*Source, error) {
	var s Source
	if err := c.sendJSON(ctx, http.MethodPost, "/sources/", token, in, &s); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}
	return &s, nil
}

func (c *Client) UpdateSource(ctx context.Context, token, id string, in SourceUpdate) (*Source, error) {
	var s Source
	if err := c.sendJSON(ctx, http.MethodPatch, "/sources/"+url.PathEscape(id), token, in, &s); err != nil {
		return nil, fmt.Errorf("update source %s: %w", id, err)
	}
	return &s, nil
}

func (c *Client) DeleteSource(ctx context.Context, token, id string) error {
	if err := c.sendJSON(ctx, http.MethodDelete, "/sources/"+url.PathEscape(id), token, nil, nil); err != nil {
		return fmt.Errorf("delete source %s: %w", id, err)
	}
	return nil
}

// ========== Notebook sources ==========

func (c *Client) ListNotebookSources(ctx context.Context, token, notebookID string) ([]NotebookSource, error) {
	var out []NotebookSource
	if err := c.sendJSON(ctx, http.MethodGet, "/notebooks/"+url.PathEscape(notebookID)+"/sources/", token, nil, &out); err != nil {
		return nil, fmt.Errorf("list sources of notebook %s: %w", notebookID, err)
	}
	return out, nil
}

func (c *Client) AddSourceToNotebook(ctx context.Context, token, notebookID string, in AddSourceRequest) (*NotebookSource, error) {
	var ns NotebookSource
	if err := c.sendJSON(ctx, http.MethodPost, "/notebooks/"+url.PathEscape(notebookID)+"/sources/", token, in, &ns); err != nil {
		return nil, fmt.Errorf("add source %s to notebook %s: %w", in.SourceID, notebookID, err)
	}
	return &ns, nil
}

func (c *Client) RemoveSourceFromNotebook(ctx context.Context, token, notebookID, sourceID string) error {
	path := "/notebooks/" + url.PathEscape(notebookID) + "/sources/" + url.PathEscape(sourceID)
	if err := c.sendJSON(ctx, http.MethodDelete, path, token, nil, nil); err != nil {
		return fmt.Errorf("remove source %s from notebook %s: %w", sourceID, notebookID, err)
	}
	return nil
}

// ========== Uploads & cleanup ==========

// UploadPart is one file of a multipart upload.
type UploadPart struct {
	Filename string
	Content  io.Reader
}

// UploadFiles posts every part under the multipart field "files".
func (c *Client) UploadFiles(ctx context.Context, token string, parts []UploadPart) (*UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := mw.CreateFormFile("files", p.Filename)
		if err != nil {
			return nil, fmt.Errorf("create form part %s: %w", p.Filename, err)
		}
		if _, err := io.Copy(fw, p.Content); err != nil {
			return nil, fmt.Errorf("read %s: %w", p.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL("/uploads/files/"), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.do(req, token, &out); err != nil {
		return nil, fmt.Errorf("upload files: %w", err)
	}
	return &out, nil
}

func (c *Client) Cleanup(ctx context.Context, token string, kind CleanupKind, dryRun bool) (*CleanupReport, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown cleanup kind %q", kind)
	}
	path := "/uploads/cleanup/" + string(kind) + "?dry_run=" + strconv.FormatBool(dryRun)

	var out CleanupReport
	if err := c.sendJSON(ctx, http.MethodPost, path, token, nil, &out); err != nil {
		return nil, fmt.Errorf("cleanup %s: %w", kind, err)
	}
	return &out, nil
}

// ========== plumbing ==========

func (c *Client) sendJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, token, out)
}

func (c *Client) do(req *http.Request, token string, out any) error {
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ParseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ParseError turns a non-2xx response into an *APIError, consuming the body.
func ParseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return &APIError{StatusCode: resp.StatusCode, Detail: ErrorDetail(body, resp.Status)}
}

// ErrorDetail extracts a human message from an error body. It understands
// {"detail": "..."}, FastAPI validation arrays, {"error": ...} and
// {"message": ...}; anything else is returned as trimmed text.
func ErrorDetail(body []byte, fallback string) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if len(payload.Detail) > 0 {
			var s string
			if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
				return s
			}
			var items []struct {
				Loc []any  `json:"loc"`
				Msg string `json:"msg"`
			}
			if json.Unmarshal(payload.Detail, &items) == nil && len(items) > 0 {
				msgs := make([]string, 0, len(items))
				for _, it := range items {
					if len(it.Loc) > 0 {
						msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
					} else {
						msgs = append(msgs, it.Msg)
					}
				}
				return strings.Join(msgs, "; ")
			}
		}
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fallback
}
