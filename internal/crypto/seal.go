// Package crypto provides password-based sealing of small secrets (stored
// session credentials) and HMAC signing of exported snapshots.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the OWASP-recommended minimum for HMAC-SHA256.
	DefaultIterations = 480_000
	saltLen           = 16
	aesKeyLen         = 32
	currentVersion    = 1
)

// ErrWrongPassphrase is returned when authenticated decryption fails.
var ErrWrongPassphrase = errors.New("crypto: decryption failed (wrong passphrase?)")

// sealedJSON is the on-disk format of a sealed secret.
type sealedJSON struct {
	Version    int    `json:"version"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// Sealer encrypts secrets with PBKDF2-HMAC-SHA256 key derivation and
// AES-256-GCM.
type Sealer struct {
	passphrase string
	iterations int
}

// NewSealer returns a Sealer for passphrase. iterations <= 0 selects
// DefaultIterations.
func NewSealer(passphrase string, iterations int) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("crypto: passphrase must not be empty")
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Sealer{passphrase: passphrase, iterations: iterations}, nil
}

// Seal encrypts plaintext and returns a JSON blob suitable for writing to disk.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	gcm, err := s.gcm(salt, s.iterations)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	out := sealedJSON{
		Version:    currentVersion,
		Iterations: s.iterations,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	}
	return json.MarshalIndent(out, "", "  ")
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(blob []byte) ([]byte, error) {
	var stored sealedJSON
	if err := json.Unmarshal(blob, &stored); err != nil {
		return nil, fmt.Errorf("crypto: parsing sealed JSON: %w", err)
	}
	if stored.Version != currentVersion {
		return nil, fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	iterations := stored.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	gcm, err := s.gcm(salt, iterations)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: nonce length %d", len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

func (s *Sealer) gcm(salt []byte, iterations int) (cipher.AEAD, error) {
	derivedKey := pbkdf2.Key([]byte(s.passphrase), salt, iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}
