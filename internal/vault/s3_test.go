package vault

import (
	"context"
	"testing"

	"worktrack/internal/config"
)

func TestS3Vault_KeyMapping(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		key       string
		objectKey string
	}{
		{name: "no prefix", prefix: "", key: "host/a.db.age", objectKey: "host/a.db.age"},
		{name: "prefix", prefix: "worktrack", key: "host/a.db.age", objectKey: "worktrack/host/a.db.age"},
		{name: "slashes trimmed", prefix: "/backups/worktrack/", key: "host/a.db.age", objectKey: "backups/worktrack/host/a.db.age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewS3Vault(context.Background(), config.VaultConfig{
				Type:              "s3",
				Name:              "offsite",
				S3Bucket:          "bucket",
				S3Prefix:          tt.prefix,
				S3Region:          "us-east-1",
				S3AccessKeyID:     "AKIDEXAMPLE",
				S3SecretAccessKey: "secret",
			})
			if err != nil {
				t.Fatalf("NewS3Vault() error = %v", err)
			}

			if got := v.objectKey(tt.key); got != tt.objectKey {
				t.Errorf("objectKey(%q) = %q, want %q", tt.key, got, tt.objectKey)
			}
			if got := v.archiveKey(tt.objectKey); got != tt.key {
				t.Errorf("archiveKey(%q) = %q, want %q", tt.objectKey, got, tt.key)
			}
		})
	}
}

func TestS3Vault_RejectsInvalidKey(t *testing.T) {
	v, err := NewS3Vault(context.Background(), config.VaultConfig{
		Type:              "s3",
		S3Bucket:          "bucket",
		S3Region:          "us-east-1",
		S3AccessKeyID:     "AKIDEXAMPLE",
		S3SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3Vault() error = %v", err)
	}

	if err := v.Put(context.Background(), "../escape", nil, 0); err == nil {
		t.Error("Put() expected invalid key error")
	}
}
