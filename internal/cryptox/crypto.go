// Package cryptox is the only place secret material is encrypted or
// decrypted. Blobs are AES-256-GCM: a fresh 12 byte nonce followed by the
// sealed ciphertext and tag.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the master key length required for AES-256.
	KeySize = 32
	// NonceSize is the GCM nonce length prepended to every blob.
	NonceSize = 12
)

var ErrInvalidKey = errors.New("master key must be 32 bytes")

// DeriveMasterKey stretches a deployment passphrase into a 32 byte key with
// argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// Cipher encrypts and decrypts item payloads with the process-wide master
// key. The key lives in a memguard enclave and is only unsealed for the
// duration of a single call.
type Cipher struct {
	key *memguard.Enclave
}

// NewCipher takes ownership of key: the slice is wiped before returning.
func NewCipher(key []byte) (*Cipher, error) {
	defer common.WipeByteArray(key)
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return &Cipher{key: memguard.NewEnclave(key)}, nil
}

// NewCipherFromHex builds a Cipher from a hex encoded 32 byte key.
func NewCipherFromHex(s string) (*Cipher, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	return NewCipher(key)
}

// NewCipherFromPassphrase derives the key with DeriveMasterKey.
func NewCipherFromPassphrase(passphrase, salt string) (*Cipher, error) {
	if passphrase == "" || salt == "" {
		return nil, errors.New("passphrase and salt are required")
	}
	return NewCipher(DeriveMasterKey([]byte(passphrase), []byte(salt)))
}

func (c *Cipher) aead() (cipher.AEAD, error) {
	buf, err := c.key.Open()
	if err != nil {
		return nil, fmt.Errorf("open key enclave: %w", err)
	}
	defer buf.Destroy()

	block, err := aes.NewCipher(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	aesgcm, err := c.aead()
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(NonceSize)

	blob := make([]byte, 0, NonceSize+len(plaintext)+aesgcm.Overhead())
	blob = append(blob, nonce...)
	return aesgcm.Seal(blob, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Short or tampered blobs yield
// common.ErrIntegrity and no plaintext.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	aesgcm, err := c.aead()
	if err != nil {
		return nil, err
	}

	if len(blob) < NonceSize+aesgcm.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", common.ErrIntegrity)
	}

	plaintext, err := aesgcm.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", common.ErrIntegrity)
	}
	return plaintext, nil
}
