// Package storage keeps uploaded images on local disk or in S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const MaxImageSize = 5 << 20

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type ImageStore interface {
	Save(ctx context.Context, file *multipart.FileHeader, folder string) (models.ImageRef, error)
	Delete(ctx context.Context, ref models.ImageRef) error
}

type openedImage struct {
	file     multipart.File
	mimeType string
	ext      string
	name     string
}

// openImage checks size and sniffed content type, and leaves the returned
// file positioned at its start.
func openImage(fh *multipart.FileHeader) (*openedImage, error) {
	if fh.Size > MaxImageSize {
		return nil, apperrors.Validation(fmt.Sprintf("image %q exceeds the 5MB limit", fh.Filename))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.Internal("failed to open uploaded file", err)
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, apperrors.Internal("failed to read uploaded file", err)
	}
	ext, ok := allowedImageTypes[mtype.String()]
	if !ok {
		f.Close()
		return nil, apperrors.Validation(fmt.Sprintf("only image files are allowed, got %s", mtype.String()))
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, apperrors.Internal("failed to rewind uploaded file", err)
	}

	return &openedImage{
		file:     f,
		mimeType: mtype.String(),
		ext:      ext,
		name:     uuid.NewString() + ext,
	}, nil
}
