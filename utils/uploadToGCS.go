package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/avast/retry-go/v4"
	"google.golang.org/api/option"
)

const MaxProofPhotoBytes = 5 << 20

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// ImageExtension returns the object suffix for an allowed image content type.
func ImageExtension(contentType string) (string, bool) {
	ext, ok := allowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC; GCS_CREDENTIALS_JSON is for local runs.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func gcsBucket() (string, error) {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	return bucketName, nil
}

// DetectImageType sniffs the payload and rejects anything but jpeg/png.
func DetectImageType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", NewValidationError("empty file")
	}
	if len(data) > MaxProofPhotoBytes {
		return "", NewValidationError("file is larger than 5MB")
	}
	mimeType := http.DetectContentType(data)
	if _, ok := allowedImageTypes[mimeType]; !ok {
		return "", NewValidationError(fmt.Sprintf("unsupported file type: %s", mimeType))
	}
	return mimeType, nil
}

// UploadBytesToGCS writes data to the bucket, retrying transient failures.
func UploadBytesToGCS(ctx context.Context, objectName string, data []byte, contentType string) error {
	bucketName, err := gcsBucket()
	if err != nil {
		return err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	return retry.Do(
		func() error {
			wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
			wc.ContentType = contentType
			if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
				_ = wc.Close()
				return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %w", err)
			}
			if err := wc.Close(); err != nil {
				return fmt.Errorf("failed to close writer: %w", err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// ReadObjectFromGCS downloads an object, capped at limit bytes.
func ReadObjectFromGCS(ctx context.Context, objectName string, limit int64) ([]byte, string, error) {
	bucketName, err := gcsBucket()
	if err != nil {
		return nil, "", err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, "", err
	}
	defer client.Close()

	var (
		data        []byte
		contentType string
	)
	err = retry.Do(
		func() error {
			r, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
			if err != nil {
				if errors.Is(err, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(ErrorRecordNotFound)
				}
				return err
			}
			defer r.Close()
			contentType = r.Attrs.ContentType
			data, err = io.ReadAll(io.LimitReader(r, limit+1))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > limit {
		return nil, "", NewValidationError("object exceeds size limit")
	}
	return data, contentType, nil
}

func DeleteObjectFromGCS(ctx context.Context, objectName string) error {
	bucketName, err := gcsBucket()
	if err != nil {
		return err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Bucket(bucketName).Object(objectName).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}
