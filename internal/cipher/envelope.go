package cipher

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/verita-sec/verita/internal/core"
)

// Envelope wire format versions. Version 1 was a JSON object with
// std-base64 fields; it remains decodable for payloads sealed by older
// services but is never produced anymore.
const (
	versionJSON   = 1
	versionBinary = 2

	flagCompressed = 0x01

	headerSize = 5
)

// Envelope carries everything needed to decrypt one sealed payload except
// the secret itself: KDF salt, GCM nonce, secret fingerprint, ciphertext.
type Envelope struct {
	Salt       []byte
	IV         []byte
	KeyHash    []byte
	Ciphertext []byte
	Compressed bool
}

// Marshal encodes the envelope in the version-2 binary format: a 5-byte
// header (version, flags, salt length, iv length, hash length) followed by
// salt || iv || keyHash || ciphertext.
func (e *Envelope) Marshal() []byte {
	out := make([]byte, 0, headerSize+len(e.Salt)+len(e.IV)+len(e.KeyHash)+len(e.Ciphertext))
	flags := byte(0)
	if e.Compressed {
		flags |= flagCompressed
	}
	out = append(out, versionBinary, flags, byte(len(e.Salt)), byte(len(e.IV)), byte(len(e.KeyHash)))
	out = append(out, e.Salt...)
	out = append(out, e.IV...)
	out = append(out, e.KeyHash...)
	out = append(out, e.Ciphertext...)
	return out
}

// Unmarshal decodes either envelope version. JSON envelopes are detected
// by their leading '{'; everything else is treated as binary and gated on
// the version byte.
func Unmarshal(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, core.ErrCorruptedEnvelope
	}
	if data[0] == '{' {
		return unmarshalJSON(data)
	}
	return unmarshalBinary(data)
}

func unmarshalBinary(data []byte) (*Envelope, error) {
	if len(data) < headerSize {
		return nil, core.ErrCorruptedEnvelope
	}
	if data[0] != versionBinary {
		return nil, fmt.Errorf("%w: version %d", core.ErrUnsupportedEnvelopeVersion, data[0])
	}
	flags := data[1]
	saltLen, ivLen, hashLen := int(data[2]), int(data[3]), int(data[4])

	need := headerSize + saltLen + ivLen + hashLen
	if len(data) <= need {
		return nil, core.ErrCorruptedEnvelope
	}

	off := headerSize
	env := &Envelope{
		Salt:       data[off : off+saltLen],
		IV:         data[off+saltLen : off+saltLen+ivLen],
		KeyHash:    data[off+saltLen+ivLen : off+saltLen+ivLen+hashLen],
		Ciphertext: data[need:],
		Compressed: flags&flagCompressed != 0,
	}
	return env, nil
}

// jsonEnvelope is the legacy version-1 shape. Fields use standard base64,
// unlike everything else in this layer.
type jsonEnvelope struct {
	Version    int    `json:"v"`
	Salt       string `json:"salt"`
	IV         string `json:"iv"`
	KeyHash    string `json:"hash"`
	Ciphertext string `json:"data"`
	Compressed bool   `json:"gzip"`
}

func unmarshalJSON(data []byte) (*Envelope, error) {
	var raw jsonEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptedEnvelope, err)
	}
	if raw.Version != versionJSON {
		return nil, fmt.Errorf("%w: version %d", core.ErrUnsupportedEnvelopeVersion, raw.Version)
	}

	env := &Envelope{Compressed: raw.Compressed}
	for _, f := range []struct {
		dst *[]byte
		src string
	}{
		{&env.Salt, raw.Salt},
		{&env.IV, raw.IV},
		{&env.KeyHash, raw.KeyHash},
		{&env.Ciphertext, raw.Ciphertext},
	} {
		b, err := base64.StdEncoding.DecodeString(f.src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrCorruptedEnvelope, err)
		}
		*f.dst = b
	}
	return env, nil
}

// Seal is the one-call form of Encrypt+Marshal used by the HTTP layer:
// plaintext in, opaque base64url blob out.
func Seal(plaintext []byte, secret string, compress bool) (string, error) {
	env, err := Encrypt(plaintext, secret, compress)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(env.Marshal()), nil
}

// Open reverses Seal.
func Open(blob string, secret string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptedEnvelope, err)
	}
	env, err := Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	return Decrypt(env, secret)
}
