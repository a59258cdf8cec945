package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/stellarc/stellarc/internal/platform/httpx"
)

const sniffLen = 3072

// Service stores uploads and records their metadata.
type Service struct {
	objects  ObjectStore
	meta     MetadataStore
	maxBytes int64
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(objects ObjectStore, meta MetadataStore, maxBytes int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{objects: objects, meta: meta, maxBytes: maxBytes, logger: logger}
}

// MaxBytes is the upload size limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores body under <owner>/<uuid>-<name> and records it.
func (s *Service) Upload(ctx context.Context, owner uuid.UUID, name string, body io.ReadSeeker, size int64) (Metadata, error) {
	name = cleanName(name)
	if name == "" {
		return Metadata{}, httpx.NewError(httpx.ErrInvalidRequest, "File name is required")
	}
	if size <= 0 {
		return Metadata{}, httpx.NewError(httpx.ErrInvalidRequest, "File is empty")
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return Metadata{}, httpx.NewError(httpx.ErrInvalidRequest, "File too large")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Metadata{}, fmt.Errorf("read upload: %w", err)
	}
	mime := mimetype.Detect(head[:n]).String()
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return Metadata{}, fmt.Errorf("rewind upload: %w", err)
	}

	key := fmt.Sprintf("%s/%s-%s", owner, uuid.NewString(), name)
	if err := s.objects.Put(ctx, key, body, size, mime); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", httpx.ErrStorage, err)
	}
	m, err := s.meta.Insert(ctx, Metadata{UserID: owner, Name: name, Path: key, Size: size, MimeType: mime})
	if err != nil {
		// An object without a metadata row is unreachable; remove it.
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Error("remove orphaned upload", slog.String("path", key), slog.Any("error", delErr))
		}
		return Metadata{}, fmt.Errorf("%w: insert file metadata: %v", httpx.ErrStorage, err)
	}
	return m, nil
}

// List returns the owner's uploads.
func (s *Service) List(ctx context.Context, owner uuid.UUID) ([]Metadata, error) {
	out, err := s.meta.ListByUser(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: list file metadata: %v", httpx.ErrStorage, err)
	}
	return out, nil
}

func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Join(strings.Fields(name), "_")
}
