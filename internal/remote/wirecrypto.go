package remote

import (
	"crypto/aes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Wire constants of the upstream app protocol. The platform's mobile client
// ships these baked in; requests signed or encrypted with anything else are
// rejected upstream.
const (
	wireAESKey     = "23DbtQHR2UMbH6mJ"
	wireSignSecret = "3478cbbc33f84bd00d75d7dfa69e0daa"
)

// EncryptField AES-encrypts a request field with the app-wide wire key and
// returns it hex-encoded, the form the platform expects for login fields and
// request timestamps.
func EncryptField(plaintext string) (string, error) {
	ct, err := aesECBEncrypt([]byte(plaintext), []byte(wireAESKey))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ct), nil
}

// DecryptField reverses EncryptField for hex-encoded response payloads.
func DecryptField(ciphertext string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("decode hex ciphertext: %w", err)
	}
	pt, err := aesECBDecrypt(raw, []byte(wireAESKey))
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// EncryptWithKeyB64 AES-encrypts plaintext under a per-challenge secret key
// and returns it base64-encoded, the form the captcha verify endpoints expect.
func EncryptWithKeyB64(plaintext, key string) (string, error) {
	ct, err := aesECBEncrypt([]byte(plaintext), []byte(key))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Sign computes the request signature header: the MD5 hex digest of the
// ordered fields concatenated with the app secret. The field order is part of
// the upstream contract and must match the endpoint being called.
func Sign(fields ...string) string {
	sum := md5.Sum([]byte(strings.Join(fields, "") + wireSignSecret))
	return hex.EncodeToString(sum[:])
}

// The platform uses AES-128-ECB with PKCS#7 padding. ECB is weak, but it is
// what the upstream service implements; this is protocol compatibility, not a
// security boundary.

func aesECBEncrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += block.BlockSize() {
		block.Encrypt(out[i:i+block.BlockSize()], padded[i:i+block.BlockSize()])
	}
	return out, nil
}

func aesECBDecrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += block.BlockSize() {
		block.Decrypt(out[i:i+block.BlockSize()], ciphertext[i:i+block.BlockSize()])
	}
	return pkcs7Unpad(out, block.BlockSize())
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid padding byte")
		}
	}
	return data[:len(data)-padLen], nil
}
