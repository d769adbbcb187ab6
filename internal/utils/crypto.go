package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDecrypt is returned when a stored credential cannot be decrypted,
// typically because the master key changed or the ciphertext was corrupted.
var ErrDecrypt = errors.New("credential decrypt failed")

// credentialSalt is a deployment-wide fixed salt. The derived key only has to
// bind ciphertexts to the process master key, not to individual credentials.
var credentialSalt = []byte("mailsentry_credential_salt_v1")

// PasswordEncryptor encrypts mailbox app passwords at rest.
// The AES-256-GCM key is derived from the master key via PBKDF2-HMAC-SHA256.
type PasswordEncryptor struct {
	aead cipher.AEAD
}

func NewPasswordEncryptor(masterKey string, iterations int) (*PasswordEncryptor, error) {
	if iterations <= 0 {
		iterations = 100000
	}
	key := pbkdf2.Key([]byte(masterKey), credentialSalt, iterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &PasswordEncryptor{aead: aead}, nil
}

// Encrypt returns a base64 string of nonce||ciphertext. Empty input stays empty.
func (e *PasswordEncryptor) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Empty input decrypts to the empty string;
// any other failure surfaces as ErrDecrypt.
func (e *PasswordEncryptor) Decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}
	raw, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < e.aead.NonceSize() {
		return "", ErrDecrypt
	}
	nonce, ciphertext := raw[:e.aead.NonceSize()], raw[e.aead.NonceSize():]
	plain, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}
