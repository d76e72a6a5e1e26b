package storage

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/models"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90wS\xde")

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("coverImage", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(MaxImageSize*2))
	return req.MultipartForm.File["coverImage"][0]
}

func TestLocalStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)

	ref, err := store.Save(context.Background(), fileHeader(t, "cover.png", pngHeader), "books")
	require.NoError(t, err)

	assert.Equal(t, "image/png", ref.MimeType)
	assert.Equal(t, "cover.png", ref.OriginalName)
	assert.True(t, strings.HasPrefix(ref.Path, "/uploads/books/"))
	assert.True(t, strings.HasSuffix(ref.Filename, ".png"))
	assert.Equal(t, int64(len(pngHeader)), ref.Size)

	stored := filepath.Join(dir, "books", ref.Filename)
	_, err = os.Stat(stored)
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), ref))
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, store.Delete(context.Background(), ref))
}

func TestLocalStoreRejectsNonImages(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	_, err := store.Save(context.Background(), fileHeader(t, "cover.png", []byte("plain text pretending to be a png")), "books")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestLocalStoreRejectsOversizedFiles(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	big := append(append([]byte{}, pngHeader...), make([]byte, MaxImageSize)...)

	_, err := store.Save(context.Background(), fileHeader(t, "big.png", big), "books")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestLocalStoreDeleteIgnoresForeignPaths(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	assert.NoError(t, store.Delete(context.Background(), models.ImageRef{Path: "https://cdn.example.com/a.png"}))
	assert.NoError(t, store.Delete(context.Background(), models.ImageRef{}))
}

type fakeUploader struct {
	input *s3.PutObjectInput
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Location: "https://readpage.s3.amazonaws.com/" + *input.Key}, nil
}

type fakeDeleter struct {
	keys []string
}

func (f *fakeDeleter) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.keys = append(f.keys, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreSaveAndDelete(t *testing.T) {
	up := &fakeUploader{}
	del := &fakeDeleter{}
	store := &S3Store{bucket: "readpage", uploader: up, client: del}

	ref, err := store.Save(context.Background(), fileHeader(t, "cover.png", pngHeader), "books")
	require.NoError(t, err)

	assert.Equal(t, "readpage", *up.input.Bucket)
	assert.Equal(t, "image/png", *up.input.ContentType)
	assert.Equal(t, "books/"+ref.Filename, ref.ExternalID)
	assert.Equal(t, "https://readpage.s3.amazonaws.com/books/"+ref.Filename, ref.Path)

	require.NoError(t, store.Delete(context.Background(), ref))
	assert.Equal(t, []string{ref.ExternalID}, del.keys)
}

func TestS3StoreUploadFailure(t *testing.T) {
	store := &S3Store{bucket: "readpage", uploader: &fakeUploader{err: errors.New("denied")}, client: &fakeDeleter{}}

	_, err := store.Save(context.Background(), fileHeader(t, "cover.png", pngHeader), "books")
	assert.True(t, apperrors.Is(err, apperrors.KindInternal))
}
