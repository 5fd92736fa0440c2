package utils

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/option"
)

type SignedUpload struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"objectKey"`
	AccessURL string            `json:"accessUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// urlSigner holds either a service account private key or a remote IAM
// SignBlob function.
type urlSigner struct {
	accessID   string
	privateKey []byte
	signBytes  func([]byte) ([]byte, error)
}

func (s urlSigner) apply(opts *storage.SignedURLOptions) {
	opts.GoogleAccessID = s.accessID
	if len(s.privateKey) > 0 {
		opts.PrivateKey = s.privateKey
		return
	}
	opts.SignBytes = s.signBytes
}

// SignUpload returns a V4 signed PUT url for a proof photo. GCS enforces the
// size limit through the x-goog-content-length-range header the driver app must send.
func SignUpload(ctx context.Context, objectKey, contentType string, maxBytes int64, expires time.Duration) (*SignedUpload, error) {
	bucket, err := gcsBucket()
	if err != nil {
		return nil, err
	}
	signer, err := signerFor(ctx)
	if err != nil {
		return nil, err
	}

	lengthRange := fmt.Sprintf("0,%d", maxBytes)
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      "PUT",
		Expires:     time.Now().Add(expires),
		ContentType: contentType,
		Headers:     []string{"x-goog-content-length-range:" + lengthRange},
	}
	signer.apply(opts)

	signedURL, err := storage.SignedURL(bucket, objectKey, opts)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", objectKey, err)
	}
	return &SignedUpload{
		UploadURL: signedURL,
		Method:    opts.Method,
		Headers: map[string]string{
			"Content-Type":                contentType,
			"x-goog-content-length-range": lengthRange,
		},
		ObjectKey: objectKey,
		AccessURL: BuildObjectAccessURL(objectKey),
		ExpiresAt: opts.Expires,
	}, nil
}

// signerFor prefers a key from GCS_CREDENTIALS_JSON or GCS_SIGNER_PRIVATE_KEY
// and falls back to IAM SignBlob for the runtime service account.
func signerFor(ctx context.Context) (urlSigner, error) {
	if raw := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON")); raw != "" {
		var key struct {
			ClientEmail string `json:"client_email"`
			PrivateKey  string `json:"private_key"`
		}
		if err := json.Unmarshal([]byte(raw), &key); err != nil {
			return urlSigner{}, fmt.Errorf("invalid GCS_CREDENTIALS_JSON: %w", err)
		}
		if key.ClientEmail == "" || key.PrivateKey == "" {
			return urlSigner{}, errors.New("GCS_CREDENTIALS_JSON missing client_email or private_key")
		}
		return urlSigner{accessID: key.ClientEmail, privateKey: pemBytes(key.PrivateKey)}, nil
	}

	email := strings.TrimSpace(os.Getenv("GCS_SIGNER_EMAIL"))
	if pk := strings.TrimSpace(os.Getenv("GCS_SIGNER_PRIVATE_KEY")); email != "" && pk != "" {
		return urlSigner{accessID: email, privateKey: pemBytes(pk)}, nil
	}
	if email == "" && metadata.OnGCE() {
		defaultEmail, err := metadata.Email("default")
		if err != nil {
			return urlSigner{}, fmt.Errorf("default service account email: %w", err)
		}
		email = defaultEmail
	}
	if email == "" {
		return urlSigner{}, errors.New("GCS_SIGNER_EMAIL is required when no private key is provided")
	}
	sign, err := iamSignBlob(ctx, email)
	if err != nil {
		return urlSigner{}, err
	}
	return urlSigner{accessID: email, signBytes: sign}, nil
}

// env vars carry the PEM with literal \n sequences
func pemBytes(key string) []byte {
	return []byte(strings.ReplaceAll(key, "\\n", "\n"))
}

func iamSignBlob(ctx context.Context, email string) (func([]byte) ([]byte, error), error) {
	creds, err := google.FindDefaultCredentials(ctx, iamcredentials.CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("load ADC credentials: %w", err)
	}
	svc, err := iamcredentials.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create iamcredentials service: %w", err)
	}
	resource := "projects/-/serviceAccounts/" + email
	return func(data []byte) ([]byte, error) {
		resp, err := svc.Projects.ServiceAccounts.SignBlob(resource, &iamcredentials.SignBlobRequest{
			Payload: base64.StdEncoding.EncodeToString(data),
		}).Do()
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(resp.SignedBlob)
	}, nil
}
