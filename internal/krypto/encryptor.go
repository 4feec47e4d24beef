package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrUnknownKey indicates that the key used to encrypt the data is unknown.
	ErrUnknownKey = errors.New("unknown key")
	// ErrInvalidData indicates that the data is invalid.
	ErrInvalidData = errors.New("invalid data")
)

const indexBytes = 4

// Encryptor encrypts and decrypts data at rest using AES-GCM.
//
// Keys are an append only list, the last key is used to encrypt. Every
// ciphertext is prefixed with the index of its key so that data encrypted
// with an older key can still be decrypted after a new key was added.
//
// The index is not secret, it's used as additional data for the AEAD.
type Encryptor struct {
	keys []Key
}

// NewEncryptor creates a new encryptor with the provided keys.
func NewEncryptor(keys []Key) (*Encryptor, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one key is required")
	}

	for i, k := range keys {
		if len(k.value) != keyLen {
			return nil, fmt.Errorf("key %d: %w", i, ErrInvalidKey)
		}
	}

	return &Encryptor{
		keys: keys,
	}, nil
}

// Encrypt encrypts the data using the latest key.
// The output is: key index (4 bytes) | nonce | ciphertext.
func (e *Encryptor) Encrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	index := uint32(len(e.keys) - 1) //nolint:gosec // number of keys is small.
	gcm, err := e.aead(index)
	if err != nil {
		return nil, err
	}

	nonce, err := genRandomBytes(gcm.NonceSize())
	if err != nil {
		return nil, err
	}

	prefix := binary.BigEndian.AppendUint32(nil, index)

	out := make([]byte, 0, indexBytes+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, prefix...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, data, prefix)
	return out, nil
}

// Decrypt decrypts a message created by Encrypt, using the key
// identified by the index prefix.
func (e *Encryptor) Decrypt(message []byte) ([]byte, error) {
	if len(message) < indexBytes {
		return nil, ErrInvalidData
	}

	index := binary.BigEndian.Uint32(message[:indexBytes])
	if int(index) >= len(e.keys) {
		return nil, ErrUnknownKey
	}

	gcm, err := e.aead(index)
	if err != nil {
		return nil, err
	}

	minLen := indexBytes + gcm.NonceSize()
	if len(message) <= minLen {
		return nil, ErrInvalidData
	}

	nonce := message[indexBytes:minLen]
	return gcm.Open(nil, nonce, message[minLen:], message[:indexBytes])
}

func (e *Encryptor) aead(index uint32) (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.keys[index].value)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
