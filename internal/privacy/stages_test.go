package privacy

import (
	"bytes"
	"errors"
	"testing"

	"github.com/verita-sec/verita/internal/core"
)

func TestTwoStage_RoundTrip(t *testing.T) {
	value := []byte("owner@example.com")

	field, err := EncodeTwoStage(value, "owner-token", "request-key")
	if err != nil {
		t.Fatalf("EncodeTwoStage: %v", err)
	}
	if field.Stages != 2 {
		t.Fatalf("stages = %d, want 2", field.Stages)
	}

	got, err := DecodeTwoStage(field, "owner-token", "request-key")
	if err != nil {
		t.Fatalf("DecodeTwoStage: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("got %q want %q", got, value)
	}
}

func TestTwoStage_ReverseOrderFails(t *testing.T) {
	field, err := EncodeTwoStage([]byte("owner@example.com"), "owner-token", "request-key")
	if err != nil {
		t.Fatalf("EncodeTwoStage: %v", err)
	}

	// swapping the layers attempts the owner secret on the outer stage,
	// which must fast-reject on the key fingerprint
	_, err = DecodeTwoStage(field, "request-key", "owner-token")
	if !errors.Is(err, core.ErrWrongDecryptionKey) {
		t.Fatalf("expected ErrWrongDecryptionKey, got %v", err)
	}
}

func TestTwoStage_RequestKeyAloneInsufficient(t *testing.T) {
	field, err := EncodeTwoStage([]byte("owner@example.com"), "owner-token", "request-key")
	if err != nil {
		t.Fatalf("EncodeTwoStage: %v", err)
	}

	// the capability secret opens only the outer stage
	if _, err := Decode(field, Layer{Secret: "request-key"}); err == nil {
		t.Fatal("decode with request key alone should fail")
	}
}

func TestDecode_StageCountMismatch(t *testing.T) {
	single, err := Encode([]byte("v"), Layer{Secret: "s"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := Decode(single, Layer{Secret: "s"}, Layer{Secret: "t"}); !errors.Is(err, core.ErrWrongDecryptionKey) {
		t.Errorf("expected stage mismatch error, got %v", err)
	}
}

func TestEncode_NStage(t *testing.T) {
	layers := []Layer{
		{Secret: "alpha"},
		{Secret: "beta"},
		{Secret: "gamma", Compress: true},
	}

	field, err := Encode([]byte("deeply nested"), layers...)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(field, layers...)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "deeply nested" {
		t.Errorf("got %q", got)
	}
}
