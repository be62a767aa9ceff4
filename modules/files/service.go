package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/message"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/google/uuid"
)

const defaultContentType = "application/octet-stream"

// contentTypes maps common extensions to MIME types for uploads that come
// without a usable part header.
var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

// DefaultLimits returns the limits for chat attachments and avatars.
func DefaultLimits() map[Kind]Limit {
	return map[Kind]Limit{
		KindChatFile:   {MaxBytes: 50 << 20},
		KindProfilePic: {MaxBytes: 5 << 20, ImagesOnly: true},
	}
}

// sanitizeFilename removes path separators and dangerous characters from filename.
func sanitizeFilename(filename string) string {
	clean := filepath.Base(filepath.Clean(strings.ReplaceAll(filename, "\\", "/")))
	clean = strings.ReplaceAll(clean, "/", "_")
	clean = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, clean)
	clean = strings.TrimSpace(clean)
	if clean == "." || clean == ".." || clean == "" {
		return "unnamed"
	}
	return clean
}

// detectContentType prefers the declared type and falls back to the extension.
func detectContentType(filename, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != defaultContentType {
		return declared
	}
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return defaultContentType
}

// keyFromPath converts a public path back to a storage key.
func keyFromPath(path string) (string, error) {
	key, ok := strings.CutPrefix(path, PublicPrefix)
	if !ok {
		return "", ErrInvalidPath
	}
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return "", ErrInvalidPath
	}
	if Kind(parts[0]) != KindChatFile && Kind(parts[0]) != KindProfilePic {
		return "", ErrInvalidPath
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return "", ErrInvalidPath
	}
	if parts[2] == "" || sanitizeFilename(parts[2]) != parts[2] {
		return "", ErrInvalidPath
	}
	return key, nil
}

// limitedReader fails once more than max bytes have been read.
type limitedReader struct {
	r   io.Reader
	max int64
	n   int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		return n, ErrTooLarge
	}
	return n, err
}

// Service stores and serves uploaded blobs using the fs-jetstream plugin.
type Service struct {
	bucket fsjetstream.FileStoragePort
	limits map[Kind]Limit
}

// NewService creates a blob service over bucket. Nil limits use DefaultLimits.
func NewService(bucket fsjetstream.FileStoragePort, limits map[Kind]Limit) *Service {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Service{bucket: bucket, limits: limits}
}

// Limit returns the limit configured for kind.
func (s *Service) Limit(kind Kind) (Limit, bool) {
	l, ok := s.limits[kind]
	return l, ok
}

// Store streams an upload into the bucket and returns its file reference.
func (s *Service) Store(ctx context.Context, up Upload) (*domain.FileRef, error) {
	limit, ok := s.limits[up.Kind]
	if !ok {
		return nil, apperror.Wrap(apperror.KindValidation, apperror.CodeInvalidRequest, "Unknown upload kind", ErrUnknownKind)
	}
	if up.Body == nil {
		return nil, apperror.New(apperror.KindValidation, apperror.CodeInvalidRequest, "No file uploaded")
	}
	if up.Size > limit.MaxBytes {
		return nil, tooLarge(limit)
	}

	name := sanitizeFilename(up.Filename)
	contentType := detectContentType(name, up.ContentType)
	if limit.ImagesOnly && !strings.HasPrefix(contentType, "image/") {
		return nil, apperror.New(apperror.KindValidation, apperror.CodeInvalidFileType, "Only image files are allowed")
	}

	key := fmt.Sprintf("%s/%s/%s", up.Kind, uuid.New().String(), name)
	body := &limitedReader{r: up.Body, max: limit.MaxBytes}

	_, err := s.bucket.PutReader(key, body, 0,
		fsjetstream.WithDescription(fmt.Sprintf("Upload: %s", name)),
		fsjetstream.WithHeaders(map[string]string{
			"Content-Type":  contentType,
			"Original-Name": name,
			"Kind":          string(up.Kind),
			"Uploaded-At":   time.Now().UTC().Format(time.RFC3339),
		}),
	)
	if err != nil {
		if errors.Is(err, ErrTooLarge) || body.n > limit.MaxBytes {
			_ = s.bucket.Delete(key)
			return nil, tooLarge(limit)
		}
		return nil, apperror.Wrap(apperror.KindPersistence, apperror.CodeStorageFailed, "Failed to store file", err)
	}

	return &domain.FileRef{
		Path:     PublicPrefix + key,
		Name:     name,
		MimeType: contentType,
	}, nil
}

// Open returns a reader over the blob at path with its metadata.
func (s *Service) Open(_ context.Context, path string) (io.ReadCloser, *BlobInfo, error) {
	key, info, err := s.find(path)
	if err != nil {
		return nil, nil, err
	}

	reader, _, err := s.bucket.GetReader(key)
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.KindPersistence, apperror.CodeStorageFailed, "Failed to read file", err)
	}
	return reader, info, nil
}

// Stat returns the metadata of the blob at path.
func (s *Service) Stat(_ context.Context, path string) (*BlobInfo, error) {
	_, info, err := s.find(path)
	return info, err
}

// Delete removes the blob at path.
func (s *Service) Delete(_ context.Context, path string) error {
	key, _, err := s.find(path)
	if err != nil {
		return err
	}
	if err := s.bucket.Delete(key); err != nil {
		return apperror.Wrap(apperror.KindPersistence, apperror.CodeStorageFailed, "Failed to delete file", err)
	}
	return nil
}

// Count returns the number of stored blobs.
func (s *Service) Count() (int, error) {
	objects, err := s.bucket.List()
	if err != nil {
		return 0, err
	}
	return len(objects), nil
}

func (s *Service) find(path string) (string, *BlobInfo, error) {
	key, err := keyFromPath(path)
	if err != nil {
		return "", nil, notFound(err)
	}

	objects, err := s.bucket.List(fsjetstream.WithPrefix(key))
	if err != nil {
		return "", nil, apperror.Wrap(apperror.KindPersistence, apperror.CodeStorageFailed, "Failed to look up file", err)
	}
	for i := range objects {
		if objects[i].Name == key {
			return key, buildBlobInfo(&objects[i]), nil
		}
	}
	return "", nil, notFound(ErrBlobNotFound)
}

func buildBlobInfo(obj *fsjetstream.ObjectInfo) *BlobInfo {
	contentType := obj.Headers["Content-Type"]
	if contentType == "" {
		contentType = defaultContentType
	}
	name := obj.Headers["Original-Name"]
	if name == "" {
		name = filepath.Base(obj.Name)
	}
	return &BlobInfo{
		Path:        PublicPrefix + obj.Name,
		Name:        name,
		ContentType: contentType,
		Size:        int64(obj.Size),
		Digest:      obj.Digest,
		CreatedAt:   obj.ModTime,
	}
}

func notFound(err error) error {
	return apperror.Wrap(apperror.KindNotFound, apperror.CodeBlobNotFound, "File not found", err)
}

func tooLarge(limit Limit) error {
	return apperror.Wrap(apperror.KindValidation, apperror.CodeFileTooLarge,
		fmt.Sprintf("File exceeds the %d MB limit", limit.MaxBytes>>20), ErrTooLarge)
}
