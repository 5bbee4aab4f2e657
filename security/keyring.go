package security

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// KeyRotationWindow gates when a key version is allowed to encrypt.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	ts := at.UTC()
	if !w.NotBefore.IsZero() && ts.Before(w.NotBefore.UTC()) {
		return false
	}
	if !w.NotAfter.IsZero() && ts.After(w.NotAfter.UTC()) {
		return false
	}
	return true
}

type keyringEntry struct {
	cipher *AppKeyCipher
	window KeyRotationWindow
}

// KeyRing encrypts with the newest key whose window is open and decrypts
// with whichever key the envelope names, so stored tokens stay readable
// across rotations.
type KeyRing struct {
	mu      sync.RWMutex
	entries []keyringEntry
	now     func() time.Time
}

func NewKeyRing(now func() time.Time) *KeyRing {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &KeyRing{now: now}
}

// Add registers c. Keys added later take precedence for encryption.
func (r *KeyRing) Add(c *AppKeyCipher, window KeyRotationWindow) error {
	if c == nil {
		return fmt.Errorf("security: key ring cipher is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.cipher.KeyID() == c.KeyID() && entry.cipher.Version() == c.Version() {
			return fmt.Errorf("security: key %s v%d already registered", c.KeyID(), c.Version())
		}
	}
	r.entries = append(r.entries, keyringEntry{cipher: c, window: window})
	return nil
}

func (r *KeyRing) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	active, err := r.active()
	if err != nil {
		return nil, err
	}
	return active.Encrypt(ctx, plaintext)
}

func (r *KeyRing) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	parsed, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if entry.cipher.KeyID() == parsed.KeyID && entry.cipher.Version() == parsed.Version {
			return entry.cipher.open(parsed)
		}
	}
	return nil, fmt.Errorf("security: no key registered for %s v%d", parsed.KeyID, parsed.Version)
}

func (r *KeyRing) active() (*AppKeyCipher, error) {
	if r == nil {
		return nil, fmt.Errorf("security: key ring is nil")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	at := r.now()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].window.Allows(at) {
			return r.entries[i].cipher, nil
		}
	}
	return nil, fmt.Errorf("security: no active key at %s", at.Format(time.RFC3339))
}

var _ Cipher = (*KeyRing)(nil)
