package crypto

import (
	"errors"
	"testing"
)

func TestSealRoundTrip(t *testing.T) {
	m, err := NewManager("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	sealed, err := m.SealString("ya29.token")
	if err != nil {
		t.Fatalf("SealString: %v", err)
	}
	if sealed == "ya29.token" {
		t.Fatalf("token stored in clear")
	}
	again, _ := m.SealString("ya29.token")
	if again == sealed {
		t.Fatalf("nonce reused")
	}
	got, err := m.OpenString(sealed)
	if err != nil || got != "ya29.token" {
		t.Fatalf("OpenString = %q, %v", got, err)
	}
	if s, _ := m.SealString(""); s != "" {
		t.Fatalf("empty sealed to %q", s)
	}
}

func TestRotationKeepsOldKeysReadable(t *testing.T) {
	old, _ := NewManager("old secret value 123")
	sealed, _ := old.SealString("refresh")

	rotated, err := NewManager("new secret value 456", "old secret value 123")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := rotated.OpenString(sealed); err != nil || got != "refresh" {
		t.Fatalf("OpenString = %q, %v", got, err)
	}

	fresh, _ := NewManager("new secret value 456")
	if _, err := fresh.OpenString(sealed); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("err = %v, want ErrKeyNotFound", err)
	}
}

func TestTamperDetected(t *testing.T) {
	m, _ := NewManager("correct horse battery staple")
	b, _ := m.Encrypt([]byte("secret"))
	b[len(b)-1] ^= 0xff
	if _, err := m.Decrypt(b); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewManager("short"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("short secret accepted")
	}
}
