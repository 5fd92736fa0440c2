package utils

import "testing"

func TestBuildObjectAccessURL(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	t.Setenv("GCS_BUCKET", "proofs")
	if got := BuildObjectAccessURL("s1/deliveries/4/a.jpg"); got != "https://storage.googleapis.com/proofs/s1/deliveries/4/a.jpg" {
		t.Fatalf("unexpected url %s", got)
	}

	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example.com/files?key={objectKey}")
	if got := BuildObjectAccessURL("s1/a b.jpg"); got != "https://cdn.example.com/files?key=s1%2Fa+b.jpg" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestValidateObjectKey(t *testing.T) {
	prefix := "s1/deliveries/4/"
	if err := ValidateObjectKey("s1/deliveries/4/x.jpg", prefix); err != nil {
		t.Fatalf("expected valid key, got %v", err)
	}
	for _, key := range []string{"", "s1/deliveries/5/x.jpg", "s1/deliveries/4/../../x.jpg", "/s1/deliveries/4/x.jpg"} {
		if err := ValidateObjectKey(key, prefix); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}

func TestThumbnailKey(t *testing.T) {
	if got := ThumbnailKey("s1/deliveries/4/abc.png"); got != "s1/deliveries/4/abc_thumb.jpg" {
		t.Fatalf("got %s", got)
	}
	if got := ThumbnailKey("s1/v.1/abc"); got != "s1/v.1/abc_thumb.jpg" {
		t.Fatalf("got %s", got)
	}
}
