// Package cipher implements the secrecy layer (spec.md §4.C): symmetric
// encryption of designated document fields on write, and decryption on
// read.
//
// Each encrypted value is self-contained: a single base64 string carrying
// a random salt, the GCM nonce, and the ciphertext, in that order. The
// PBKDF2 iteration count is a fixed constant of this package and is not
// stored. No external key material beyond the configured secret is
// needed to decrypt.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"docbase/internal/dberrors"
)

const (
	saltSize   = 16
	keySize    = 32 // AES-256
	iterations = 100_000
)

// Cipher encrypts and decrypts individual field values using a
// process-wide secret, injected once at initialization and never mutated
// thereafter (spec.md §5).
type Cipher struct {
	secret []byte
}

// New returns a Cipher keyed by secret. secret must be non-empty.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: cipher secret must not be empty", dberrors.ErrCipher)
	}
	return &Cipher{secret: []byte(secret)}, nil
}

// EncryptField encrypts plaintext into a self-contained base64 payload.
func (c *Cipher) EncryptField(plain string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: generating salt: %v", dberrors.ErrCipher, err)
	}

	key := pbkdf2.Key(c.secret, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", dberrors.ErrCipher, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", dberrors.ErrCipher, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", dberrors.ErrCipher, err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plain), nil)

	// payload = salt | nonce | ciphertext, each length implied by fixed
	// sizes except the trailing ciphertext.
	payload := make([]byte, 0, saltSize+len(nonce)+len(ciphertext)+4)
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, ciphertext...)

	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecryptField reverses EncryptField. Fails with ErrCipher on tamper
// (GCM authentication failure) or wrong key.
func (c *Cipher) DecryptField(encoded string) (string, error) {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding: %v", dberrors.ErrCipher, err)
	}
	if len(payload) < saltSize {
		return "", fmt.Errorf("%w: ciphertext too short", dberrors.ErrCipher)
	}
	salt := payload[:saltSize]
	rest := payload[saltSize:]

	key := pbkdf2.Key(c.secret, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", dberrors.ErrCipher, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", dberrors.ErrCipher, err)
	}
	if len(rest) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", dberrors.ErrCipher)
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed (tamper or wrong key)", dberrors.ErrCipher)
	}
	return string(plain), nil
}

// EncryptFields encrypts every string value found at the given dot-paths
// in doc, in place. The Collection Store calls this on every secret field
// before handing a document to the codec for writing (spec.md §4.C).
// A path whose value is absent or not a string is left untouched — the
// store's descriptor validation is what rejects malformed documents
// before they reach here.
func (c *Cipher) EncryptFields(doc map[string]any, paths []string) error {
	for _, path := range paths {
		if err := transformPath(doc, path, c.EncryptField); err != nil {
			return err
		}
	}
	return nil
}

// DecryptFields reverses EncryptFields, used on every read (spec.md
// §4.C) so that callers and listeners never see ciphertext.
func (c *Cipher) DecryptFields(doc map[string]any, paths []string) error {
	for _, path := range paths {
		if err := transformPath(doc, path, c.DecryptField); err != nil {
			return err
		}
	}
	return nil
}

func transformPath(doc map[string]any, path string, fn func(string) (string, error)) error {
	parts := strings.Split(path, ".")
	cur := doc
	for i, p := range parts {
		if i == len(parts)-1 {
			v, ok := cur[p]
			if !ok {
				return nil
			}
			s, ok := v.(string)
			if !ok {
				return nil
			}
			out, err := fn(s)
			if err != nil {
				return err
			}
			cur[p] = out
			return nil
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return nil
}
