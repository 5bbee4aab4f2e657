package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"
)

// Cipher seals provider tokens before they reach storage.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type Option func(*AppKeyCipher)

// AppKeyCipher encrypts with AES-GCM under a single application key.
type AppKeyCipher struct {
	key     []byte
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(c *AppKeyCipher) {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			c.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(c *AppKeyCipher) {
		if version > 0 {
			c.version = version
		}
	}
}

func NewAppKeyCipher(keyMaterial []byte, opts ...Option) (*AppKeyCipher, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	c := &AppKeyCipher{
		key:     normalizeKey(key),
		keyID:   "app-key",
		version: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func NewAppKeyCipherFromString(key string, opts ...Option) (*AppKeyCipher, error) {
	return NewAppKeyCipher([]byte(key), opts...)
}

func (c *AppKeyCipher) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("security: cipher is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	return encodeEnvelope(envelope{
		KeyID:      c.keyID,
		Version:    c.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      encodePayload(nonce),
		Ciphertext: encodePayload(gcm.Seal(nil, nonce, plaintext, nil)),
	})
}

func (c *AppKeyCipher) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("security: cipher is nil")
	}
	parsed, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	return c.open(parsed)
}

func (c *AppKeyCipher) open(parsed envelope) ([]byte, error) {
	if parsed.KeyID != "" && parsed.KeyID != c.keyID {
		return nil, fmt.Errorf("security: key id mismatch: got %q want %q", parsed.KeyID, c.keyID)
	}
	if parsed.Version > 0 && parsed.Version != c.version {
		return nil, fmt.Errorf("security: key version mismatch: got %d want %d", parsed.Version, c.version)
	}
	nonce, err := decodePayload("nonce", parsed.Nonce)
	if err != nil {
		return nil, err
	}
	sealed, err := decodePayload("ciphertext payload", parsed.Ciphertext)
	if err != nil {
		return nil, err
	}
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("security: invalid nonce size %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (c *AppKeyCipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

func (c *AppKeyCipher) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

func (c *AppKeyCipher) Version() int {
	if c == nil {
		return 0
	}
	return c.version
}

// PlaintextCipher stores tokens unchanged. It is meant for local development
// and tests; it refuses to read values sealed by an AppKeyCipher.
type PlaintextCipher struct{}

func (PlaintextCipher) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return append([]byte(nil), plaintext...), nil
}

func (PlaintextCipher) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if IsEnvelope(ciphertext) {
		return nil, fmt.Errorf("security: plaintext cipher cannot open an encrypted envelope")
	}
	return append([]byte(nil), ciphertext...), nil
}

// EncryptString seals value. Blank values stay blank so optional tokens
// round-trip as empty columns.
func EncryptString(ctx context.Context, c Cipher, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if c == nil {
		c = PlaintextCipher{}
	}
	sealed, err := c.Encrypt(ctx, []byte(value))
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}

func DecryptString(ctx context.Context, c Cipher, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if c == nil {
		c = PlaintextCipher{}
	}
	opened, err := c.Decrypt(ctx, []byte(value))
	if err != nil {
		return "", err
	}
	return string(opened), nil
}

func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	key := make([]byte, len(sum))
	copy(key, sum[:])
	return key
}

var (
	_ Cipher = (*AppKeyCipher)(nil)
	_ Cipher = PlaintextCipher{}
)
