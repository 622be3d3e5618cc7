package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Review statuses for a translation record.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// StringRecord is a standalone source/translation pair with optional
// evaluation metadata. Independent of Translation: used for ad-hoc
// single-string review and as the cache for source-string resyncs.
type StringRecord struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id,omitempty"`
	Locale      string   `json:"locale,omitempty"`
	Source      string   `json:"source"`
	Translation string   `json:"translation"`
	Confidence  *float64 `json:"confidence"`
	Reason      *string  `json:"reason"`
	Suggestion  *string  `json:"suggestion"`
	CreatedAt   time.Time `json:"created_at"`
}

// Credential holds the Smartling identity, secret and OAuth-style token
// pair. There is at most one logical current row; token refresh always
// updates it in place.
type Credential struct {
	ID           int64
	UserID       string
	Secret       string
	AccountID    string
	ProjectID    string
	Locale       string
	AccessToken  string
	RefreshToken string
	TokenExpires int64 // epoch seconds; 0 means unknown
}

// JobFile records that a file belongs to a translation job in a project.
type JobFile struct {
	ID        int64  `json:"id"`
	ProjectID string `json:"project_id"`
	JobID     string `json:"job_id"`
	JobName   string `json:"job_name"`
	FileURI   string `json:"file_uri"`
}

// Translation is a synced translation record. Hashcode is the opaque
// content fingerprint from Smartling and the merge key: unique per
// (project, locale).
type Translation struct {
	ID          int64    `json:"id"`
	ProjectID   string   `json:"project_id"`
	FileURI     string   `json:"file_uri"`
	Locale      string   `json:"locale"`
	SourceText  string   `json:"source_text"`
	Translation string   `json:"translation"`
	Status      string   `json:"status"`
	Confidence  *float64 `json:"confidence"`
	Reason      *string  `json:"reason"`
	Flag        int      `json:"flag"`
	Hashcode    string   `json:"hashcode"`
}

// TranslationFilter narrows translation listings. Zero values mean
// "no filter"; Flag is a pointer so flag=0 can be filtered explicitly.
type TranslationFilter struct {
	ProjectID  string
	Locale     string
	Flag       *int
	Status     string
	SearchType string // "source" or "translation"
	SearchText string
}
