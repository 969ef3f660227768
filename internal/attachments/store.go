// Package attachments stores files submitted with workflow actions. Only the
// object bytes live here; metadata rows are written by the workflow core.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/pkg/storage"
)

// MaxFileSize caps a single upload.
const MaxFileSize = 25 << 20

// Upload is one file handed to StoreFiles.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// StoredFile is the result of storing one Upload.
type StoredFile struct {
	ID           uuid.UUID `json:"id"`
	OriginalName string    `json:"original_name"`
	StoredRef    string    `json:"stored_ref"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
}

// Store writes uploads to a bucket under requests/<id>/.
type Store struct {
	client storage.S3Client
	bucket string
	prefix string
	logger *zap.Logger
}

func NewStore(client storage.S3Client, bucket, prefix string, logger *zap.Logger) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// GenerateKey returns the object key of a file belonging to requestID.
func (s *Store) GenerateKey(requestID, fileID uuid.UUID, fileName string) string {
	key := fmt.Sprintf("requests/%s/%s/%s", requestID, fileID, sanitizeName(fileName))
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key
}

// StoreFiles uploads every file. On failure the files already written are
// removed and the error is returned.
func (s *Store) StoreFiles(ctx context.Context, requestID uuid.UUID, files []Upload) ([]StoredFile, error) {
	stored := make([]StoredFile, 0, len(files))
	for _, f := range files {
		if f.Size > MaxFileSize {
			s.RemoveFiles(ctx, refs(stored))
			return nil, fmt.Errorf("file %s exceeds %d bytes", f.Name, MaxFileSize)
		}
		id := uuid.New()
		key := s.GenerateKey(requestID, id, f.Name)
		if err := s.client.Upload(ctx, s.bucket, key, f.ContentType, f.Content); err != nil {
			s.RemoveFiles(ctx, refs(stored))
			return nil, fmt.Errorf("failed to store %s: %w", f.Name, err)
		}
		stored = append(stored, StoredFile{
			ID:           id,
			OriginalName: f.Name,
			StoredRef:    key,
			ContentType:  f.ContentType,
			Size:         f.Size,
		})
	}
	return stored, nil
}

// RemoveFiles deletes objects best-effort. Failures are logged, not returned.
func (s *Store) RemoveFiles(ctx context.Context, storedRefs []string) {
	for _, ref := range storedRefs {
		if err := s.client.Delete(ctx, s.bucket, ref); err != nil {
			s.logger.Warn("Failed to remove orphaned attachment", zap.String("stored_ref", ref), zap.Error(err))
		}
	}
}

// Open returns the content of a stored file.
func (s *Store) Open(ctx context.Context, storedRef string) (io.ReadCloser, error) {
	rc, err := s.client.Download(ctx, s.bucket, storedRef)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return rc, nil
}

// URL returns a time-limited download link.
func (s *Store) URL(ctx context.Context, storedRef string, ttl time.Duration) (string, error) {
	return s.client.GetPresignedURL(ctx, s.bucket, storedRef, ttl)
}

func refs(files []StoredFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.StoredRef)
	}
	return out
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
