package model

import (
	"io"
	"time"
)

// UploadRecord maps an opaque identifier to one stored object.
// There is at most one record per content hash.
type UploadRecord struct {
	Identifier string    `json:"identifier"`
	URL        string    `json:"url"`
	Hash       string    `json:"hash"`
	IP         string    `json:"ip"`
	UploadTime time.Time `json:"upload_time"`
}

// FileInput is one uploaded file as handed over by the HTTP layer.
// Content must be rewindable: it is hashed first and then streamed to the blob store.
type FileInput struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.ReadSeeker
}

// UploadResult is the per-file entry of an upload response.
// Identifier is only set when the upload created a new object.
type UploadResult struct {
	URL        string `json:"url"`
	Identifier string `json:"identifier,omitempty"`
	Type       string `json:"type"`
}

// ObjectResponse is what the retrieval pipeline hands back to the HTTP layer.
// Body is always non-nil and must be closed by the caller.
type ObjectResponse struct {
	Status       int
	ContentType  string
	CacheControl string
	Size         int64
	Body         io.ReadCloser
	CacheHit     bool
}
