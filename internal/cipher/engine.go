package cipher

import (
	"bytes"
	"crypto/aes"
	aead "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/pbkdf2"

	"github.com/verita-sec/verita/internal/core"
)

const (
	// KDF parameters. Changing any of these requires a new envelope version.
	pbkdf2Iterations = 100_000
	keySize          = 32

	saltSize = 16
	ivSize   = 12
	hashSize = sha256.Size
)

// DeriveKey stretches the secret into an AES-256 key with
// PBKDF2-HMAC-SHA256. The salt is expected to be fresh per encryption.
func DeriveKey(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, pbkdf2Iterations, keySize, sha256.New)
}

// fingerprint is the fast-reject hash of the derivation secret. It lets a
// decryptor detect a wrong key without paying for the KDF.
func fingerprint(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// Encrypt seals plaintext under a key derived from secret. With compress
// set, the plaintext is gzipped before sealing and the envelope records
// the flag so Decrypt can undo it. Salt and IV are drawn fresh from
// crypto/rand on every call.
func Encrypt(plaintext []byte, secret string, compress bool) (*Envelope, error) {
	body := plaintext
	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(plaintext); err != nil {
			return nil, fmt.Errorf("compressing plaintext: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compressing plaintext: %w", err)
		}
		body = buf.Bytes()
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}

	gcm, err := newGCM(DeriveKey(secret, salt))
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Salt:       salt,
		IV:         iv,
		KeyHash:    fingerprint(secret),
		Ciphertext: gcm.Seal(nil, iv, body, nil),
		Compressed: compress,
	}, nil
}

// Decrypt opens an envelope with the given secret. The secret fingerprint
// is checked first: a mismatch fails with ErrWrongDecryptionKey before any
// key derivation or AES work happens.
func Decrypt(env *Envelope, secret string) ([]byte, error) {
	if len(env.Salt) == 0 || len(env.IV) == 0 || len(env.Ciphertext) == 0 {
		return nil, core.ErrCorruptedEnvelope
	}
	if subtle.ConstantTimeCompare(env.KeyHash, fingerprint(secret)) != 1 {
		return nil, core.ErrWrongDecryptionKey
	}

	gcm, err := newGCM(DeriveKey(secret, env.Salt))
	if err != nil {
		return nil, err
	}

	body, err := gcm.Open(nil, env.IV, env.Ciphertext, nil)
	if err != nil {
		// the fingerprint matched, so a GCM failure means the envelope
		// itself was damaged, not that the key was wrong
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptedEnvelope, err)
	}

	if !env.Compressed {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: bad gzip stream: %v", core.ErrCorruptedEnvelope, err)
	}
	defer func() {
		_ = zr.Close()
	}()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad gzip stream: %v", core.ErrCorruptedEnvelope, err)
	}
	return out, nil
}

func newGCM(key []byte) (aead.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	gcm, err := aead.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("initializing gcm: %w", err)
	}
	return gcm, nil
}
