package utils

import (
	"net/url"
	"os"
	"strings"
)

// BuildObjectAccessURL turns an object key into the url stored on records.
// STORAGE_ACCESS_BASE_URL may contain an {objectKey} placeholder.
func BuildObjectAccessURL(objectKey string) string {
	base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL"))
	if base != "" {
		if strings.Contains(base, "{objectKey}") {
			escaped := objectKey
			if strings.Contains(base, "?") {
				escaped = url.QueryEscape(objectKey)
			}
			return strings.ReplaceAll(base, "{objectKey}", escaped)
		}
		return strings.TrimRight(base, "/") + "/" + objectKey
	}

	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket != "" {
		return "https://storage.googleapis.com/" + bucket + "/" + objectKey
	}
	return objectKey
}

// ValidateObjectKey rejects keys outside prefix or with path traversal.
func ValidateObjectKey(objectKey, prefix string) error {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" || strings.Contains(objectKey, "..") || strings.HasPrefix(objectKey, "/") {
		return NewValidationError("invalid object key")
	}
	if !strings.HasPrefix(objectKey, prefix) {
		return NewValidationError("object key does not belong to this resource")
	}
	return nil
}

// ThumbnailKey maps a/b/c.jpg to a/b/c_thumb.jpg.
func ThumbnailKey(objectKey string) string {
	dot := strings.LastIndex(objectKey, ".")
	slash := strings.LastIndex(objectKey, "/")
	if dot <= slash {
		return objectKey + "_thumb.jpg"
	}
	return objectKey[:dot] + "_thumb.jpg"
}
