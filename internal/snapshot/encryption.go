package snapshot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	encryptionSaltSize  = 16
	encryptionKeySize   = 32 // AES-256
	pbkdf2Iterations    = 100_000
	encryptionMinLength = encryptionSaltSize + 12 // salt + GCM nonce
)

// ArtifactCipher encrypts and decrypts snapshot artifacts with AES-256-GCM.
// The key is derived from an operator-supplied passphrase with PBKDF2; key
// management beyond "read the passphrase from the configured source" is out
// of scope.
type ArtifactCipher struct {
	config *EncryptionConfig
}

// NewArtifactCipher creates a cipher for the given configuration.
func NewArtifactCipher(config *EncryptionConfig) *ArtifactCipher {
	return &ArtifactCipher{config: config}
}

// Enabled reports whether artifact encryption is configured.
func (ac *ArtifactCipher) Enabled() bool {
	return ac.config != nil && ac.config.Enabled
}

// Encrypt seals the artifact. The output layout is salt || nonce || ciphertext.
func (ac *ArtifactCipher) Encrypt(data []byte) ([]byte, error) {
	if !ac.Enabled() {
		return data, nil
	}

	passphrase, err := ac.passphrase()
	if err != nil {
		return nil, err
	}

	salt := make([]byte, encryptionSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, NewEncryptionError("failed to generate salt", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, NewEncryptionError("failed to generate nonce", err)
	}

	sealed := gcm.Seal(nil, nonce, data, nil)
	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt opens an artifact produced by Encrypt.
func (ac *ArtifactCipher) Decrypt(data []byte) ([]byte, error) {
	if !ac.Enabled() {
		return data, nil
	}

	if len(data) < encryptionMinLength {
		return nil, NewEncryptionError("encrypted artifact is truncated", nil)
	}

	passphrase, err := ac.passphrase()
	if err != nil {
		return nil, err
	}

	salt := data[:encryptionSaltSize]
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	rest := data[encryptionSaltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, NewEncryptionError("encrypted artifact is truncated", nil)
	}
	nonce := rest[:gcm.NonceSize()]
	ciphertext := rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, NewEncryptionError("failed to decrypt artifact (wrong passphrase or corrupt data)", err)
	}
	return plaintext, nil
}

func (ac *ArtifactCipher) passphrase() ([]byte, error) {
	if ac.config.PassphrasePath != "" {
		data, err := os.ReadFile(ac.config.PassphrasePath)
		if err != nil {
			return nil, NewEncryptionError("failed to read passphrase file", err)
		}
		return []byte(strings.TrimSpace(string(data))), nil
	}
	if ac.config.PassphraseEnv != "" {
		value := os.Getenv(ac.config.PassphraseEnv)
		if value == "" {
			return nil, NewEncryptionError("passphrase environment variable is empty", nil)
		}
		return []byte(value), nil
	}
	return nil, NewEncryptionError("no passphrase source configured", nil)
}

func newGCM(passphrase, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(passphrase, salt, pbkdf2Iterations, encryptionKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewEncryptionError("failed to create AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewEncryptionError("failed to create GCM cipher", err)
	}
	return gcm, nil
}
