package security

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestAppKeyCipher_EncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewAppKeyCipherFromString("super-secret-test-key", WithKeyID("banking-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	plaintext := []byte("access-sandbox-123")
	encrypted, err := c.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Fatalf("expected encrypted payload to hide plaintext")
	}
	if !IsEnvelope(encrypted) {
		t.Fatalf("expected envelope prefix")
	}
	meta, err := ParseEnvelopeMetadata(encrypted)
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if meta.KeyID != "banking-v1" || meta.Version != 3 || meta.Algorithm != envelopeAlgorithm {
		t.Fatalf("unexpected metadata %+v", meta)
	}

	decrypted, err := c.Decrypt(context.Background(), encrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected roundtrip plaintext; got %q", string(decrypted))
	}
}

func TestAppKeyCipher_RejectsMetadataMismatch(t *testing.T) {
	issuer, err := NewAppKeyCipherFromString("super-secret-test-key", WithKeyID("banking-v1"), WithVersion(1))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	receiver, err := NewAppKeyCipherFromString("super-secret-test-key", WithKeyID("banking-v2"), WithVersion(2))
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}

	encrypted, err := issuer.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := receiver.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected metadata mismatch error")
	}
	if _, err := NewAppKeyCipher(nil); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestStringHelpers_BlankAndPlaintext(t *testing.T) {
	ctx := context.Background()
	sealed, err := EncryptString(ctx, nil, "")
	if err != nil || sealed != "" {
		t.Fatalf("expected blank passthrough, got %q %v", sealed, err)
	}
	sealed, err = EncryptString(ctx, PlaintextCipher{}, "token")
	if err != nil || sealed != "token" {
		t.Fatalf("expected plaintext passthrough, got %q %v", sealed, err)
	}

	appKey, err := NewAppKeyCipherFromString("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	sealed, err = EncryptString(ctx, appKey, "token")
	if err != nil {
		t.Fatalf("encrypt string: %v", err)
	}
	if _, err := DecryptString(ctx, PlaintextCipher{}, sealed); err == nil {
		t.Fatalf("expected plaintext cipher to refuse envelope")
	}
	opened, err := DecryptString(ctx, appKey, sealed)
	if err != nil || opened != "token" {
		t.Fatalf("expected token, got %q %v", opened, err)
	}
}

func TestKeyRing_RotatesAndReadsOlderKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ring := NewKeyRing(func() time.Time { return now })

	first, _ := NewAppKeyCipherFromString("first-key", WithKeyID("k1"))
	second, _ := NewAppKeyCipherFromString("second-key", WithKeyID("k2"))
	if err := ring.Add(first, KeyRotationWindow{}); err != nil {
		t.Fatalf("add first: %v", err)
	}
	if err := ring.Add(second, KeyRotationWindow{NotBefore: now.Add(24 * time.Hour)}); err != nil {
		t.Fatalf("add second: %v", err)
	}
	if err := ring.Add(first, KeyRotationWindow{}); err == nil {
		t.Fatalf("expected duplicate key error")
	}

	old, err := ring.Encrypt(ctx, []byte("before"))
	if err != nil {
		t.Fatalf("encrypt before rotation: %v", err)
	}
	if meta, _ := ParseEnvelopeMetadata(old); meta.KeyID != "k1" {
		t.Fatalf("expected k1 before rotation, got %+v", meta)
	}

	now = now.Add(48 * time.Hour)
	rotated, err := ring.Encrypt(ctx, []byte("after"))
	if err != nil {
		t.Fatalf("encrypt after rotation: %v", err)
	}
	if meta, _ := ParseEnvelopeMetadata(rotated); meta.KeyID != "k2" {
		t.Fatalf("expected k2 after rotation, got %+v", meta)
	}

	for want, sealed := range map[string][]byte{"before": old, "after": rotated} {
		opened, err := ring.Decrypt(ctx, sealed)
		if err != nil {
			t.Fatalf("decrypt %s: %v", want, err)
		}
		if string(opened) != want {
			t.Fatalf("expected %q, got %q", want, opened)
		}
	}

	empty := NewKeyRing(nil)
	if _, err := empty.Encrypt(ctx, []byte("x")); err == nil || !strings.Contains(err.Error(), "no active key") {
		t.Fatalf("expected no active key error, got %v", err)
	}
}
