package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/models"
)

// LocalStore writes images under Dir and serves them from PublicPrefix.
type LocalStore struct {
	Dir          string
	PublicPrefix string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir, PublicPrefix: "/uploads"}
}

func (s *LocalStore) Save(ctx context.Context, fh *multipart.FileHeader, folder string) (models.ImageRef, error) {
	img, err := openImage(fh)
	if err != nil {
		return models.ImageRef{}, err
	}
	defer img.file.Close()

	dir := filepath.Join(s.Dir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.ImageRef{}, apperrors.Internal("failed to create upload directory", err)
	}

	dst := filepath.Join(dir, img.name)
	out, err := os.Create(dst)
	if err != nil {
		return models.ImageRef{}, apperrors.Internal("failed to store uploaded file", err)
	}
	written, err := io.Copy(out, img.file)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return models.ImageRef{}, apperrors.Internal("failed to store uploaded file", err)
	}

	return models.ImageRef{
		Filename:     img.name,
		Path:         path.Join(s.PublicPrefix, folder, img.name),
		OriginalName: fh.Filename,
		MimeType:     img.mimeType,
		Size:         written,
	}, nil
}

// Delete removes a stored image. Missing files and references outside the
// upload prefix are ignored.
func (s *LocalStore) Delete(ctx context.Context, ref models.ImageRef) error {
	rel, ok := strings.CutPrefix(ref.Path, s.PublicPrefix+"/")
	if !ok || rel == "" {
		return nil
	}
	local := filepath.Join(s.Dir, filepath.FromSlash(path.Clean("/"+rel)))
	if err := os.Remove(local); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
