// Package navstate carries a selected entity (an account, a loan, a
// beneficiary) from one view to another inside a URL query parameter.
//
// Tokens are JSON, compressed, sealed with AES-256-GCM under a key derived
// from a shared secret, then base64 and percent encoded. The secret ships
// with the client, so this hides query-string content from casual
// inspection; it is not a security boundary.
//
// Decoding never fails loudly: any malformed, tampered or foreign token
// decodes to nil and callers render their "no selection" placeholder.
package navstate

import (
	"bytes"
	"compress/zlib"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

// Param is the query parameter that holds an encoded selection.
const Param = "state"

const (
	DefaultSalt   = "fif-navstate"
	keyIterations = 100000
	keyLength     = 32
)

// MaxPayloadSize bounds the serialized value on both sides of a round trip.
const MaxPayloadSize = 1 << 20

var (
	errTokenTooShort = errors.New("token shorter than nonce")

	// ErrPayloadTooLarge is returned for values whose JSON form exceeds
	// MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("navigation state payload too large")
)

// Codec encodes and decodes navigation state under one secret.
type Codec struct {
	gcm cipher.AEAD
}

// NewCodec derives the cipher key from secret and salt. An empty salt uses
// DefaultSalt; both sides of a round trip must agree on secret and salt.
func NewCodec(secret string, salt string) (*Codec, error) {

	if len(secret) == 0 {
		return nil, errors.New("navigation state secret cannot be empty")
	}

	if len(salt) == 0 {
		salt = DefaultSalt
	}

	key := pbkdf2.Key([]byte(secret), []byte(salt), keyIterations, keyLength, sha256.New)
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Codec{gcm: gcm}, nil
}

// Encode turns value into an opaque, query-string safe token. It fails only
// for a value encoding/json cannot serialize or one whose JSON form is larger
// than MaxPayloadSize.
func (c *Codec) Encode(value any) (string, error) {

	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to serialize navigation state: %w", err)
	}

	if len(data) > MaxPayloadSize {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(data), MaxPayloadSize)
	}

	var compressed bytes.Buffer
	writer := zlib.NewWriter(&compressed)
	_, _ = writer.Write(data)
	_ = writer.Close()

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.gcm.Seal(nonce, nonce, compressed.Bytes(), nil)

	return url.QueryEscape(base64.StdEncoding.EncodeToString(sealed)), nil
}

// Decode returns the value held by token, or nil if the token cannot be
// decoded. Objects decode to map[string]any and numbers to float64.
func (c *Codec) Decode(token string) any {
	var value any
	if !c.DecodeInto(token, &value) {
		return nil
	}
	return value
}

// DecodeInto unmarshals the token into out and reports success.
func (c *Codec) DecodeInto(token string, out any) bool {

	data, err := c.open(token)
	if err != nil {
		logrus.WithError(err).Warnln("Failed to decode navigation state")
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		logrus.WithError(err).Warnln("Navigation state is not valid JSON for the requested shape")
		return false
	}

	return true
}

// DecodeAs decodes a token into a new T, or returns nil.
func DecodeAs[T any](c *Codec, token string) *T {
	var out T
	if !c.DecodeInto(token, &out) {
		return nil
	}
	return &out
}

func (c *Codec) open(token string) ([]byte, error) {

	unescaped, err := url.QueryUnescape(token)
	if err != nil {
		return nil, fmt.Errorf("failed to unescape token: %w", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	nonceSize := c.gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errTokenTooShort
	}

	compressed, err := c.gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress token: %w", err)
	}
	defer reader.Close()

	var data bytes.Buffer
	if _, err := io.Copy(&data, io.LimitReader(reader, MaxPayloadSize+1)); err != nil {
		return nil, fmt.Errorf("failed to decompress token: %w", err)
	}

	if data.Len() > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	return data.Bytes(), nil
}

// URL appends the encoded value to base as the state query parameter.
func (c *Codec) URL(base string, value any) (string, error) {

	token, err := c.Encode(value)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid navigation target %q: %w", base, err)
	}

	// The token is already percent-encoded, so it is appended verbatim.
	if len(u.RawQuery) > 0 {
		u.RawQuery += "&"
	}
	u.RawQuery += Param + "=" + token

	return u.String(), nil
}

// FromURL decodes the state parameter of raw, or returns nil.
func (c *Codec) FromURL(raw string) any {
	token, ok := TokenFromURL(raw)
	if !ok {
		return nil
	}
	return c.Decode(token)
}

// TokenFromURL extracts the still-escaped state token from a URL or query
// string.
func TokenFromURL(raw string) (string, bool) {

	u, err := url.Parse(raw)
	if err != nil {
		logrus.WithError(err).Warnln("Failed to parse navigation URL")
		return "", false
	}

	return rawQueryParam(u.RawQuery, Param)
}

// rawQueryParam reads a parameter without unescaping it; the token is
// unescaped once by Decode.
func rawQueryParam(query string, name string) (string, bool) {
	for len(query) > 0 {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		key, value, _ := strings.Cut(pair, "=")
		if key == name {
			return value, true
		}
	}
	return "", false
}
