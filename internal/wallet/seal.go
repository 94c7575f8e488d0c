package wallet

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealing errors.
var (
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted secret")
	ErrSealedFormat    = errors.New("malformed sealed secret")
	ErrEmptyPassphrase = errors.New("empty passphrase")
)

const (
	sealVersion byte = 1
	saltSize         = 16
	// Sealed format: [version(1)][salt(16)][memory(4)][iterations(4)][parallelism(1)][nonce(24)][ciphertext...]
	headerSize = 1 + saltSize + 4 + 4 + 1
)

// KDFParams holds Argon2id parameters.
type KDFParams struct {
	Memory      uint32 // in KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultKDFParams returns the Argon2id parameters used for new secrets.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
	}
}

func deriveKey(passphrase, salt []byte, params KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, params.Iterations, params.Memory, params.Parallelism, chacha20poly1305.KeySize)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Seal encrypts secret with Argon2id + XChaCha20-Poly1305 and returns the
// result base64 encoded, ready for the secret_sealed record field. The
// commitment hash is bound as associated data, so a sealed secret cannot be
// moved to another record.
func Seal(secret, passphrase, commitment []byte, params KDFParams) (string, error) {
	if len(passphrase) == 0 {
		return "", ErrEmptyPassphrase
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, headerSize+len(nonce)+len(secret)+aead.Overhead())
	out = append(out, sealVersion)
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, params.Memory)
	out = binary.LittleEndian.AppendUint32(out, params.Iterations)
	out = append(out, params.Parallelism)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, secret, commitment)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func Open(sealed string, passphrase, commitment []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealedFormat, err)
	}
	nonceSize := chacha20poly1305.NonceSizeX
	if minSize := headerSize + nonceSize + chacha20poly1305.Overhead; len(raw) < minSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrSealedFormat, len(raw), minSize)
	}
	if raw[0] != sealVersion {
		return nil, fmt.Errorf("%w: version %d", ErrSealedFormat, raw[0])
	}

	salt := raw[1 : 1+saltSize]
	params := KDFParams{
		Memory:      binary.LittleEndian.Uint32(raw[1+saltSize:]),
		Iterations:  binary.LittleEndian.Uint32(raw[1+saltSize+4:]),
		Parallelism: raw[1+saltSize+8],
	}
	if params.Iterations == 0 || params.Parallelism == 0 {
		return nil, fmt.Errorf("%w: invalid KDF parameters", ErrSealedFormat)
	}
	nonce := raw[headerSize : headerSize+nonceSize]
	ciphertext := raw[headerSize+nonceSize:]

	key := deriveKey(passphrase, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	secret, err := aead.Open(nil, nonce, ciphertext, commitment)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return secret, nil
}
