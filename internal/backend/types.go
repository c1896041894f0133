package backend

import "time"

type SourceType string

const (
	SourceDocument SourceType = "document"
	SourceURL      SourceType = "url"
	SourceVideo    SourceType = "video"
	SourceImage    SourceType = "image"
	SourceText     SourceType = "text"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceDocument, SourceURL, SourceVideo, SourceImage, SourceText:
		return true
	}
	return false
}

// SourceStatus is assigned by the backend processing pipeline; the client
// only ever reads it.
type SourceStatus string

const (
	StatusPending    SourceStatus = "pending"
	StatusProcessing SourceStatus = "processing"
	StatusIndexed    SourceStatus = "indexed"
	StatusFailed     SourceStatus = "failed"
)

// Terminal reports whether no further transition is expected.
func (s SourceStatus) Terminal() bool {
	return s == StatusIndexed || s == StatusFailed
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Notebook struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	OwnerID     string    `json:"owner_id"`
}

type NotebookCreate struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

type NotebookUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type Source struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	SourceType     SourceType     `json:"source_type"`
	SourceMetadata map[string]any `json:"source_metadata"`
	Status         SourceStatus   `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	NotebookCount  *int           `json:"notebook_count,omitempty"`
}

type SourceCreate struct {
	Title          string         `json:"title"`
	SourceType     SourceType     `json:"source_type"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
}

type SourceUpdate struct {
	Title          *string        `json:"title,omitempty"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
}

// SourceFilter narrows ListSources. Zero values are not sent.
type SourceFilter struct {
	SourceType SourceType
	Status     SourceStatus
	Skip       int
	Limit      int
}

// NotebookSource links a Source to a Notebook.
type NotebookSource struct {
	SourceID string    `json:"source_id"`
	Position int       `json:"position"`
	AddedAt  time.Time `json:"added_at"`
	Source   *Source   `json:"source,omitempty"`
}

type AddSourceRequest struct {
	SourceID string `json:"source_id"`
	Position *int   `json:"position,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type UploadedDocument struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

type UploadError struct {
	Filename string `json:"filename"`
	Detail   string `json:"detail"`
}

type UploadResponse struct {
	Documents []UploadedDocument `json:"documents"`
	Errors    []UploadError      `json:"errors,omitempty"`
}

type CleanupKind string

const (
	CleanupOrphanedFiles   CleanupKind = "orphaned-files"
	CleanupOrphanedRecords CleanupKind = "orphaned-records"
	CleanupFull            CleanupKind = "full"
)

func (k CleanupKind) Valid() bool {
	return k == CleanupOrphanedFiles || k == CleanupOrphanedRecords || k == CleanupFull
}

type CleanupReport struct {
	DryRun              bool               `json:"dry_run"`
	DeletedObjects      int                `json:"deleted_objects"`
	DeletedRecords      int                `json:"deleted_records"`
	DeletedVectors      int                `json:"deleted_vectors,omitempty"`
	OrphanedObjectKeys  []string           `json:"orphaned_object_keys,omitempty"`
	OrphanedDocumentIDs []string           `json:"orphaned_document_ids,omitempty"`
	Consistency         *ConsistencyReport `json:"consistency,omitempty"`
}

// ConsistencyReport compares the three storage layers behind uploads.
type ConsistencyReport struct {
	ObjectStoreCount int  `json:"object_store_count"`
	DatabaseCount    int  `json:"database_count"`
	VectorStoreCount int  `json:"vector_store_count"`
	Consistent       bool `json:"consistent"`
}
