package models

import "time"

// DocType is the declared type tag of an uploaded document.
type DocType string

const (
	DocText DocType = "text"
	DocPDF  DocType = "pdf"
	DocWord DocType = "word"
)

// Document describes an uploaded file. The raw bytes are not retained once the
// text has been extracted.
type Document struct {
	FileName   string    `json:"file_name"`
	Type       DocType   `json:"type"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Workspace holds the per-session state: the current document, its extracted text
// and the last generated summary.
type Workspace struct {
	SessionID string    `json:"session_id"`
	Document  *Document `json:"document,omitempty"`
	Text      string    `json:"text"`
	Revision  int64     `json:"revision"`
	Summary   string    `json:"summary,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
