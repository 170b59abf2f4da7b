package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	appcfg "github.com/mx-space/wiki/internal/config"
	"go.uber.org/zap"
)

// DefaultMaxSize bounds a single upload.
const DefaultMaxSize = 10 << 20

var (
	ErrDisabled = errors.New("file storage is not configured")
	ErrTooLarge = errors.New("file is too large")
	ErrNotImage = errors.New("file is not an image")
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".avif": true,
}

// Image is an uploaded picture ready to paste into a post.
type Image struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

type Service struct {
	store   Store
	buckets appcfg.StorageBuckets
	maxSize int64
	logger  *zap.Logger
}

// NewService wires uploads. store may be nil; uploads then fail with
// ErrDisabled.
func NewService(store Store, buckets appcfg.StorageBuckets, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, buckets: buckets, maxSize: DefaultMaxSize, logger: logger.Named("FileService")}
}

// ImageMarkdown is the snippet appended to a post for an uploaded image.
func ImageMarkdown(url string) string {
	return "\n\n![Image description](" + url + ")\n"
}

// UploadImage stores a post illustration under a random name.
func (s *Service) UploadImage(ctx context.Context, fh *multipart.FileHeader) (*Image, error) {
	payload, ext, contentType, err := s.readImage(fh)
	if err != nil {
		return nil, err
	}
	url, err := s.store.Put(ctx, s.buckets.Images, randomName()+ext, payload, contentType)
	if err != nil {
		return nil, err
	}
	s.logger.Info("image uploaded", zap.String("url", url), zap.Int("bytes", len(payload)))
	return &Image{URL: url, Markdown: ImageMarkdown(url)}, nil
}

// UploadAvatar stores a profile picture. The profile keeps its previous
// avatar until it is saved with the returned URL.
func (s *Service) UploadAvatar(ctx context.Context, userID string, fh *multipart.FileHeader) (string, error) {
	payload, ext, contentType, err := s.readImage(fh)
	if err != nil {
		return "", err
	}
	return s.store.Put(ctx, s.buckets.Avatars, userID+"-"+randomName()+ext, payload, contentType)
}

func (s *Service) readImage(fh *multipart.FileHeader) ([]byte, string, string, error) {
	if s.store == nil {
		return nil, "", "", ErrDisabled
	}
	if fh.Size > s.maxSize {
		return nil, "", "", ErrTooLarge
	}
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fh.Filename)))
	if !imageExts[ext] {
		return nil, "", "", ErrNotImage
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer f.Close()
	payload, err := io.ReadAll(io.LimitReader(f, s.maxSize+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(payload)) > s.maxSize {
		return nil, "", "", ErrTooLarge
	}

	contentType := http.DetectContentType(payload)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", "", ErrNotImage
	}
	return payload, ext, contentType, nil
}

func randomName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
