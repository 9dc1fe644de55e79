package encryption

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"filippo.io/age"

	"oswl-go/internal/config"
)

func newTestAgeEncryptor(t *testing.T, recipients ...string) *AgeEncryptor {
	t.Helper()

	dir := t.TempDir()
	cfg := config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "oswl.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "oswl.key"),
		Recipients:     recipients,
	}
	return NewAgeEncryptor(cfg)
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()

	t.Run("configures keys", func(t *testing.T) {
		t.Parallel()

		e := newTestAgeEncryptor(t)
		if e.IsConfigured() {
			t.Error("IsConfigured() = true before Setup, want false")
		}
		if err := e.Setup("test-passphrase"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !e.IsConfigured() {
			t.Error("IsConfigured() = false after Setup, want true")
		}
	})

	t.Run("refuses to replace keys", func(t *testing.T) {
		t.Parallel()

		e := newTestAgeEncryptor(t)
		if err := e.Setup("test-passphrase"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if err := e.Setup("other"); !errors.Is(err, ErrKeysExist) {
			t.Errorf("second Setup() error = %v, want ErrKeysExist", err)
		}
	})

	t.Run("rejects empty passphrase", func(t *testing.T) {
		t.Parallel()

		e := newTestAgeEncryptor(t)
		if err := e.Setup(""); err == nil {
			t.Error("Setup(\"\") expected error")
		}
		if e.IsConfigured() {
			t.Error("IsConfigured() = true after failed Setup")
		}
	})
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "report", input: []byte(`{"report_id":"01HX","records":[]}`)},
		{name: "empty", input: []byte{}},
		{name: "large report", input: bytes.Repeat([]byte(`{"id":"vm-1"},`), 5000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			passphrase := "test-passphrase"
			e := newTestAgeEncryptor(t)
			if err := e.Setup(passphrase); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(tt.input) > 0 && bytes.Contains(encrypted.Bytes(), tt.input) {
				t.Error("encrypted output contains the plaintext")
			}

			ctx, err := e.Unlock(passphrase)
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}

			var decrypted bytes.Buffer
			if err := ctx.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", decrypted.Len(), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_ExtraRecipients(t *testing.T) {
	t.Parallel()

	collector, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity() error = %v", err)
	}

	e := newTestAgeEncryptor(t, collector.Recipient().String())
	if err := e.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	var encrypted bytes.Buffer
	if err := e.Encrypt(bytes.NewReader([]byte("report")), &encrypted); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	ctx := &AgeDecryptionContext{identity: collector}
	var decrypted bytes.Buffer
	if err := ctx.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
		t.Fatalf("collector Decrypt() error = %v", err)
	}
	if decrypted.String() != "report" {
		t.Errorf("collector decrypted %q, want %q", decrypted.String(), "report")
	}
}

func TestAgeEncryptor_Errors(t *testing.T) {
	t.Parallel()

	t.Run("wrong passphrase", func(t *testing.T) {
		t.Parallel()

		e := newTestAgeEncryptor(t)
		if err := e.Setup("correct-passphrase"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if _, err := e.Unlock("wrong-passphrase"); err == nil {
			t.Error("Unlock() with wrong passphrase should return error")
		}
	})

	t.Run("encrypt before setup", func(t *testing.T) {
		t.Parallel()

		e := newTestAgeEncryptor(t)
		var buf bytes.Buffer
		if err := e.Encrypt(bytes.NewReader([]byte("data")), &buf); err == nil {
			t.Error("Encrypt() before Setup should return error")
		}
	})

	t.Run("unlock before setup", func(t *testing.T) {
		t.Parallel()

		e := newTestAgeEncryptor(t)
		if _, err := e.Unlock("passphrase"); err == nil {
			t.Error("Unlock() before Setup should return error")
		}
	})

	t.Run("invalid extra recipient", func(t *testing.T) {
		t.Parallel()

		e := newTestAgeEncryptor(t, "not-an-age-key")
		if err := e.Setup("passphrase"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		var buf bytes.Buffer
		if err := e.Encrypt(bytes.NewReader([]byte("data")), &buf); err == nil {
			t.Error("Encrypt() with invalid recipient should return error")
		}
	})
}

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ     string
		wantNil bool
		wantErr bool
	}{
		{typ: "", wantNil: false},
		{typ: "age", wantNil: false},
		{typ: "test", wantNil: false},
		{typ: "none", wantNil: true},
		{typ: "rot13", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("type "+tt.typ, func(t *testing.T) {
			t.Parallel()

			got, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: tt.typ})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (got == nil) != tt.wantNil {
				t.Errorf("NewEncryptorFromConfig() = %v, wantNil %v", got, tt.wantNil)
			}
		})
	}
}
