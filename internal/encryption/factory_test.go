package encryption

import (
	"testing"

	"worktrack/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		name       string
		encryption string
		wantAge    bool
		wantErr    bool
	}{
		{name: "default is age", encryption: "", wantAge: true},
		{name: "age", encryption: "age", wantAge: true},
		{name: "test", encryption: "test"},
		{name: "unknown", encryption: "rot13", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptorFromConfig(config.ArchiveConfig{Encryption: tt.encryption})
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewEncryptorFromConfig() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEncryptorFromConfig() error = %v", err)
			}
			_, isAge := enc.(*AgeEncryptor)
			if isAge != tt.wantAge {
				t.Errorf("NewEncryptorFromConfig() returned %T", enc)
			}
		})
	}
}
