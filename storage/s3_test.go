package storage

import (
	"testing"

	"immo_scrooper/config"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		cfg  config.S3Config
		want string
	}{
		{config.S3Config{Bucket: "immo", Region: "eu-central-1"}, "https://immo.s3.eu-central-1.amazonaws.com/listings/a.jpg"},
		{config.S3Config{Bucket: "immo", Endpoint: "https://fra1.digitaloceanspaces.com"}, "https://immo.fra1.digitaloceanspaces.com/listings/a.jpg"},
		{config.S3Config{Bucket: "immo", Endpoint: "http://minio:9000/"}, "http://minio:9000/immo/listings/a.jpg"},
	}
	for _, tt := range tests {
		if got := PublicURL(tt.cfg, "listings/a.jpg"); got != tt.want {
			t.Errorf("PublicURL(%+v) = %s, want %s", tt.cfg, got, tt.want)
		}
	}
}
