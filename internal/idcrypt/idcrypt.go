// Package idcrypt encrypts national ID numbers at rest and derives the
// lookup hash used to detect duplicates without decrypting.
package idcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	Digits         = 12
	invalidPrefix  = "INVALID:"
	InvalidDisplay = "INVALID"
)

var ErrEmptyKey = errors.New("national id key is empty")

// Sealed is what gets stored for one national ID. Both fields are empty
// when no ID was given.
type Sealed struct {
	Ciphertext string
	Hash       string
}

func (s Sealed) Empty() bool {
	return s.Ciphertext == ""
}

// Opened is the decrypted view of a stored ID.
type Opened struct {
	Valid  bool
	Masked string
	plain  string
}

// Reveal returns the full ID. Callers must check permissions first.
func (o Opened) Reveal() string {
	return o.plain
}

type Cipher struct {
	aead    cipher.AEAD
	hashKey []byte
}

func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}
	encKey, macKey := deriveKeys(secret)
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Cipher{aead: aead, hashKey: macKey}, nil
}

// deriveKeys splits secret into an AES-256 key and a separate HMAC key.
func deriveKeys(secret string) (enc, mac []byte) {
	e := sha256.Sum256([]byte("enc:" + secret))
	m := sha256.Sum256([]byte("mac:" + secret))
	return e[:], m[:]
}

// Clean keeps the digits of s.
func Clean(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func IsValid(s string) bool {
	return len(Clean(s)) == Digits && len(strings.TrimSpace(s)) > 0
}

// Mask renders a clean 12-digit ID as XXXX-XXXX-nnnn.
func Mask(clean string) string {
	if len(clean) != Digits {
		return InvalidDisplay
	}
	return "XXXX-XXXX-" + clean[Digits-4:]
}

// Hash is the hex HMAC-SHA256 of the digits of s.
func (c *Cipher) Hash(s string) string {
	clean := Clean(s)
	if clean == "" {
		return ""
	}
	m := hmac.New(sha256.New, c.hashKey)
	m.Write([]byte(clean))
	return hex.EncodeToString(m.Sum(nil))
}

// Seal encrypts a national ID. Input that is not 12 digits is stored
// behind the INVALID: marker so it still round-trips.
func (c *Cipher) Seal(raw string) (Sealed, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sealed{}, nil
	}

	plain := Clean(raw)
	if len(plain) != Digits {
		plain = invalidPrefix + raw
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Sealed{}, fmt.Errorf("nonce: %w", err)
	}
	out := c.aead.Seal(nonce, nonce, []byte(plain), nil)

	return Sealed{
		Ciphertext: base64.StdEncoding.EncodeToString(out),
		Hash:       c.Hash(raw),
	}, nil
}

// Open decrypts a stored ciphertext. An empty input opens to an empty,
// invalid value.
func (c *Cipher) Open(ciphertext string) (Opened, error) {
	if ciphertext == "" {
		return Opened{}, nil
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return Opened{}, fmt.Errorf("decode: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(data) < ns {
		return Opened{}, errors.New("ciphertext too short")
	}
	plain, err := c.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return Opened{}, fmt.Errorf("decrypt: %w", err)
	}

	s := string(plain)
	if strings.HasPrefix(s, invalidPrefix) {
		return Opened{Valid: false, Masked: InvalidDisplay, plain: strings.TrimPrefix(s, invalidPrefix)}, nil
	}
	return Opened{Valid: true, Masked: Mask(s), plain: s}, nil
}
