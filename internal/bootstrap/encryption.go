package bootstrap

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/punchd-io/punchd/internal/data/cryptoutil"
)

// CreateEncryptor creates an AES-GCM encryptor for at-rest account password
// encryption. A 64-char hex key is used directly; any other key is hashed to
// 32 bytes. Returns a noop encryptor when the key is empty or invalid (with
// a warning log), which keeps development setups working.
//
//nolint:ireturn // Returning interface is intentional for encryptor abstraction
func CreateEncryptor(key string, logger *slog.Logger) cryptoutil.Encryptor {
	if key == "" {
		if logger != nil {
			logger.Warn("encryption key is empty, storing credentials unencrypted")
		}
		return &cryptoutil.NoopEncryptor{}
	}

	enc, err := createAESGCMEncryptor(key)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to create encryptor, storing credentials unencrypted", "error", err)
		}
		return &cryptoutil.NoopEncryptor{}
	}
	return enc
}

func createAESGCMEncryptor(key string) (*cryptoutil.AESGCMEncryptor, error) {
	if key == "" {
		return nil, errors.New("encryption key is required")
	}

	var keyBytes []byte
	if decoded, err := hex.DecodeString(key); err == nil && len(decoded) == 32 {
		keyBytes = decoded
	} else {
		hash := sha256.Sum256([]byte(key))
		keyBytes = hash[:]
	}
	return cryptoutil.NewAESGCMEncryptor(keyBytes)
}
