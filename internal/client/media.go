package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/vidtube/backend/internal/model"
)

var ErrEmptyUpload = errors.New("media upload is empty")

// LocalMediaStore keeps uploads on disk under baseDir; gin serves them from /media.
type LocalMediaStore struct {
	baseDir string
	baseURL string
}

func NewLocalMediaStore(baseDir, baseURL string) (*LocalMediaStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("local media store: directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &LocalMediaStore{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *LocalMediaStore) Dir() string {
	return s.baseDir
}

func (s *LocalMediaStore) Store(ctx context.Context, upload model.MediaUpload) (*model.MediaRef, error) {
	if upload.Body == nil {
		return nil, ErrEmptyUpload
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := objectKey(upload.Filename)
	out, err := os.Create(filepath.Join(s.baseDir, key))
	if err != nil {
		return nil, fmt.Errorf("local media store: create %s: %w", key, err)
	}
	written, err := copyAndClose(out, upload.Body)
	if err != nil {
		_ = os.Remove(out.Name())
		return nil, fmt.Errorf("local media store: write %s: %w", key, err)
	}
	if written == 0 {
		_ = os.Remove(out.Name())
		return nil, ErrEmptyUpload
	}

	return &model.MediaRef{URL: publicURL(s.baseURL, key), ID: key}, nil
}

func (s *LocalMediaStore) Delete(_ context.Context, id string) error {
	key := path.Base(id)
	if key == "." || key == "/" || key != id {
		return fmt.Errorf("local media store: invalid id %q", id)
	}
	if err := os.Remove(filepath.Join(s.baseDir, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local media store: delete %s: %w", key, err)
	}
	return nil
}

// copyAndClose copies src into dst and reports the error from Close as well.
func copyAndClose(dst io.WriteCloser, src io.Reader) (int64, error) {
	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	return written, err
}

// objectKey keeps the original extension and replaces the name with a uuid.
func objectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return uuid.NewString() + ext
}

func publicURL(baseURL, key string) string {
	if baseURL == "" {
		return key
	}
	return baseURL + "/" + key
}
