// internal/crypto/crypto.go
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidKey    = errors.New("invalid encryption key")
	ErrKeyNotFound   = errors.New("encryption key not found")
	ErrDecryptFailed = errors.New("failed to decrypt data")
)

const (
	keySize = 32 // AES-256
	memory  = 64 * 1024
	threads = 4
)

// salt is fixed so the same secret always derives the same key; the
// secret itself must carry the entropy.
var salt = []byte("inboxai/token-seal/v1")

type key struct {
	id  string
	gcm cipher.AEAD
}

// Manager seals short secrets such as OAuth tokens. Data sealed under a
// previous secret can still be opened while that secret is configured.
type Manager struct {
	active *key
	keys   map[string]*key
}

// NewManager derives the active key from secret and read-only keys from
// previous.
func NewManager(secret string, previous ...string) (*Manager, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("%w: need at least 16 characters", ErrInvalidKey)
	}
	m := &Manager{keys: make(map[string]*key)}
	active, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	m.active = active
	m.keys[active.id] = active
	for _, p := range previous {
		if p == "" {
			continue
		}
		k, err := deriveKey(p)
		if err != nil {
			return nil, err
		}
		if _, ok := m.keys[k.id]; !ok {
			m.keys[k.id] = k
		}
	}
	return m, nil
}

func deriveKey(secret string) (*key, error) {
	raw := argon2.IDKey([]byte(secret), salt, 1, memory, threads, keySize)
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	sum := sha256.Sum256(raw)
	return &key{id: base64.RawURLEncoding.EncodeToString(sum[:6]), gcm: gcm}, nil
}

// Encrypt seals data as len(id) | id | nonce | ciphertext.
func (m *Manager) Encrypt(data []byte) ([]byte, error) {
	k := m.active
	nonce := make([]byte, k.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+len(k.id)+len(nonce)+len(data)+k.gcm.Overhead())
	out = append(out, byte(len(k.id)))
	out = append(out, k.id...)
	out = append(out, nonce...)
	return k.gcm.Seal(out, nonce, data, nil), nil
}

func (m *Manager) Decrypt(data []byte) ([]byte, error) {
	if len(data) < 1 {
		return nil, ErrDecryptFailed
	}
	idLen := int(data[0])
	if len(data) < 1+idLen {
		return nil, ErrDecryptFailed
	}
	k, ok := m.keys[string(data[1:1+idLen])]
	if !ok {
		return nil, ErrKeyNotFound
	}
	rest := data[1+idLen:]
	if len(rest) < k.gcm.NonceSize() {
		return nil, ErrDecryptFailed
	}
	plaintext, err := k.gcm.Open(nil, rest[:k.gcm.NonceSize()], rest[k.gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// SealString encrypts s into a base64 string. The empty string stays empty.
func (m *Manager) SealString(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	b, err := m.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// OpenString reverses SealString.
func (m *Manager) OpenString(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	out, err := m.Decrypt(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
