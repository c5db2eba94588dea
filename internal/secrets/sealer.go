package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	sealerSalt = "supamon/secret-store/v1"
	sealerInfo = "aes-256-gcm"
)

// Sealer encrypts values with AES-256-GCM. The storage key is bound as
// additional data, so a blob copied under another key fails to open.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the AES key from secret with HKDF-SHA256.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is empty")
	}
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), []byte(sealerSalt), []byte(sealerInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// Seal returns nonce||ciphertext.
func (s *Sealer) Seal(key string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(key)), nil
}

// Open reverses Seal.
func (s *Sealer) Open(key string, payload []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(payload) < nonceSize {
		return nil, io.ErrUnexpectedEOF
	}
	nonce := payload[:nonceSize]
	ciphertext := payload[nonceSize:]
	return s.aead.Open(nil, nonce, ciphertext, []byte(key))
}
