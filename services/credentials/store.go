package credentials

import "context"

// SecretStore persists opaque blobs keyed by name. The client keeps one
// logical record per instance. Read returns (nil, nil) when the key has
// never been written.
type SecretStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, blob []byte) error
}

// Cipher is the optional security capability used to protect API keys at
// rest. A nil Cipher is valid; keys are then stored in plaintext.
type Cipher interface {
	Encrypt(plaintext, scope string) (string, error)
	Decrypt(ciphertext, scope string) (string, error)
}
