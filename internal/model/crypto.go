package model

// Encryptor encrypts and decrypts sensitive free-text fields at rest.
// The context key binds ciphertext to its owning record: decrypting with a
// different context key fails with ErrDecryptionFailed.
type Encryptor interface {
	Encrypt(plaintext, contextKey []byte) ([]byte, error)
	Decrypt(ciphertext, contextKey []byte) ([]byte, error)
}
