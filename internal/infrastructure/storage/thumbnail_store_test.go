package storage

import "testing"

func TestObjectBaseURL(t *testing.T) {
	tests := []struct {
		name      string
		publicURL string
		endpoint  string
		useSSL    bool
		want      string
	}{
		{name: "public url wins", publicURL: "https://cdn.example.com/thumbs/", endpoint: "minio:9000", want: "https://cdn.example.com/thumbs"},
		{name: "plain endpoint", endpoint: "minio:9000", want: "http://minio:9000/keyframes"},
		{name: "tls endpoint", endpoint: "s3.example.com", useSSL: true, want: "https://s3.example.com/keyframes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectBaseURL(tt.publicURL, tt.endpoint, "keyframes", tt.useSSL); got != tt.want {
				t.Errorf("objectBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey(42, "/data/thumbnails/clip_0003.jpg"); got != "42/clip_0003.jpg" {
		t.Errorf("ObjectKey() = %q", got)
	}
}
