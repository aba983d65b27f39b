package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mentorlab/mentor-server/internal/model"
)

var _ model.Encryptor = (*Gateway)(nil)

// Gateway encrypts and decrypts sensitive fields with XChaCha20-Poly1305.
// The key is process-wide, loaded once at startup. The context key is bound
// as additional authenticated data, so ciphertext copied between records
// fails authentication on decrypt. Safe for concurrent use.
type Gateway struct {
	key []byte
}

// New creates a Gateway with the given 32-byte key.
func New(key []byte) (*Gateway, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	// Keep a private copy so the caller cannot mutate key material later.
	k := make([]byte, len(key))
	copy(k, key)
	return &Gateway{key: k}, nil
}

// Encrypt seals plaintext under the process key, binding contextKey as AAD.
// The random nonce is prepended to the returned ciphertext.
func (g *Gateway) Encrypt(plaintext, contextKey []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(g.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, contextKey), nil
}

// Decrypt opens ciphertext produced by Encrypt. Tampered ciphertext, a wrong
// key or a mismatched context key fail with model.ErrDecryptionFailed; a
// corrupted plaintext is never returned silently.
func (g *Gateway) Decrypt(ciphertext, contextKey []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(g.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, model.ErrDecryptionFailed
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, contextKey)
	if err != nil {
		return nil, model.ErrDecryptionFailed
	}

	return plaintext, nil
}
