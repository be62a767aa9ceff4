package files

import (
	"io"
	"time"
)

// Kind groups uploads that share limits.
type Kind string

const (
	KindChatFile   Kind = "chat_files"
	KindProfilePic Kind = "profile_pics"
)

// PublicPrefix is the URL prefix under which blobs are served.
const PublicPrefix = "/uploads/"

// Limit constrains uploads of one kind.
type Limit struct {
	MaxBytes   int64
	ImagesOnly bool
}

// Upload is a blob to store.
type Upload struct {
	Kind        Kind
	Filename    string
	ContentType string
	// Size is the declared size; zero when unknown.
	Size int64
	Body io.Reader
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest"`
	CreatedAt   time.Time `json:"created_at"`
}
