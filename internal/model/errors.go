package model

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidBackground indicates the user-supplied background text is empty
	// after normalization or exceeds the allowed length.
	ErrInvalidBackground = errors.New("invalid background text")

	// ErrGenerationFailed indicates the completion provider failed or returned
	// output that does not conform to the expected shape.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrMemoryUnavailable indicates the vector store backend is unreachable.
	// Callers degrade gracefully rather than abort the turn.
	ErrMemoryUnavailable = errors.New("memory unavailable")

	// ErrDecryptionFailed indicates ciphertext failed authentication on decrypt.
	// Fatal for the affected record only, never for the conversation path.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrPersistenceFailed indicates a write to the conversation log failed after
	// a reply was already generated. The reply is still delivered.
	ErrPersistenceFailed = errors.New("persistence failed")
)
