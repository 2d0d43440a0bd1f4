// Package privacy layers the cipher engine over individual response
// fields. A sealed field is a stack of independently keyed envelopes:
// encoding pushes layers in order, decoding pops them in strict reverse
// order. The stage count is part of the sealed value, so a two-stage field
// can never be mistaken for a single-stage one.
package privacy

import (
	"fmt"

	"github.com/verita-sec/verita/internal/cipher"
	"github.com/verita-sec/verita/internal/core"
)

// Layer is one encryption stage. Layers are listed innermost first: the
// first layer's secret seals the plaintext, the last layer's secret seals
// everything beneath it.
type Layer struct {
	Secret   string
	Compress bool
}

// SealedField is the wire form of a privacy-encoded field value.
type SealedField struct {
	Stages int    `json:"stages"`
	Blob   string `json:"blob"`
}

// Encode seals a field value under the given layers. At least one layer
// is required.
func Encode(value []byte, layers ...Layer) (SealedField, error) {
	if len(layers) == 0 {
		return SealedField{}, fmt.Errorf("privacy: at least one layer required")
	}

	blob, err := cipher.Seal(value, layers[0].Secret, layers[0].Compress)
	if err != nil {
		return SealedField{}, fmt.Errorf("sealing stage 1: %w", err)
	}
	for i, layer := range layers[1:] {
		if blob, err = cipher.Seal([]byte(blob), layer.Secret, layer.Compress); err != nil {
			return SealedField{}, fmt.Errorf("sealing stage %d: %w", i+2, err)
		}
	}

	return SealedField{Stages: len(layers), Blob: blob}, nil
}

// Decode unwinds a sealed field. Layers are passed in the same order they
// were passed to Encode; decoding applies them outermost first. The layer
// count must match the field's stage count exactly.
func Decode(field SealedField, layers ...Layer) ([]byte, error) {
	if field.Stages < 1 || field.Blob == "" {
		return nil, core.ErrCorruptedEnvelope
	}
	if len(layers) != field.Stages {
		return nil, fmt.Errorf("%w: field has %d stages, %d layers given",
			core.ErrWrongDecryptionKey, field.Stages, len(layers))
	}

	blob := field.Blob
	for i := len(layers) - 1; i > 0; i-- {
		inner, err := cipher.Open(blob, layers[i].Secret)
		if err != nil {
			return nil, fmt.Errorf("opening stage %d: %w", i+1, err)
		}
		blob = string(inner)
	}
	value, err := cipher.Open(blob, layers[0].Secret)
	if err != nil {
		return nil, fmt.Errorf("opening stage 1: %w", err)
	}
	return value, nil
}

// EncodeTwoStage seals a private field for peer sharing: stage 1 under the
// data owner's own token, stage 2 under the request key minted for the
// approved sharing request. The request key alone opens only the outer
// stage; without the owner's secret the inner envelope stays shut.
func EncodeTwoStage(value []byte, ownerSecret, requestKey string) (SealedField, error) {
	return Encode(value,
		Layer{Secret: ownerSecret},
		Layer{Secret: requestKey},
	)
}

// DecodeTwoStage reverses EncodeTwoStage.
func DecodeTwoStage(field SealedField, ownerSecret, requestKey string) ([]byte, error) {
	return Decode(field,
		Layer{Secret: ownerSecret},
		Layer{Secret: requestKey},
	)
}
