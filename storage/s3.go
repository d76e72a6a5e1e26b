package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"path"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Store struct {
	bucket   string
	uploader uploader
	client   objectDeleter
}

// NewS3Store loads AWS credentials and region from the default chain.
func NewS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Store{
		bucket:   bucket,
		uploader: manager.NewUploader(client),
		client:   client,
	}, nil
}

func (s *S3Store) Save(ctx context.Context, fh *multipart.FileHeader, folder string) (models.ImageRef, error) {
	img, err := openImage(fh)
	if err != nil {
		return models.ImageRef{}, err
	}
	defer img.file.Close()

	key := path.Join(folder, img.name)
	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        img.file,
		ACL:         "public-read",
		ContentType: aws.String(img.mimeType),
	})
	if err != nil {
		return models.ImageRef{}, apperrors.Internal("failed to upload image", err)
	}

	return models.ImageRef{
		Filename:     img.name,
		Path:         result.Location,
		OriginalName: fh.Filename,
		MimeType:     img.mimeType,
		Size:         fh.Size,
		ExternalID:   key,
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, ref models.ImageRef) error {
	if ref.ExternalID == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.ExternalID),
	})
	return err
}
