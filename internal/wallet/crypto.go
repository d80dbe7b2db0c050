package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2 parameters for deriving the encryption key that protects wallet
// secrets at rest. Only Argon2id + AES-256-GCM is supported.
const (
	argon2Time        = 3
	argon2Memory      = 64 * 1024
	argon2Parallelism = 4
	argon2KeyLen      = 32
	argon2SaltLen     = 32
)

// EncryptedSecret is an Argon2id+AES-256-GCM encrypted blob, stored as a
// base64 JSON string in the account's wallet columns.
type EncryptedSecret struct {
	Ciphertext []byte `json:"ciphertext"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
}

// encryptSecret encrypts plaintext under the server's master encryption
// key, returning a base64-encoded JSON envelope suitable for storage.
func encryptSecret(plaintext []byte, serverKey string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(serverKey), salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLen)
	defer secureClear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	data, err := json.Marshal(&EncryptedSecret{Ciphertext: ciphertext, Salt: salt, Nonce: nonce})
	if err != nil {
		return "", fmt.Errorf("failed to marshal encrypted secret: %w", err)
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// decryptSecret reverses encryptSecret.
func decryptSecret(encoded string, serverKey string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode secret: %w", err)
	}

	var secret EncryptedSecret
	if err := json.Unmarshal(data, &secret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret: %w", err)
	}

	key := argon2.IDKey([]byte(serverKey), secret.Salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLen)
	defer secureClear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, secret.Nonce, secret.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt (wrong server key?): %w", err)
	}

	return plaintext, nil
}

// secureClear overwrites a byte slice with zeros.
func secureClear(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
