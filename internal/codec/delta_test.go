package codec

import (
	"bytes"
	"io"
	"testing"
)

func TestDeltaRoundTrip(t *testing.T) {
	for _, dist := range []int{1, 2, 4, 16, 256} {
		plain := make([]byte, 200)
		for i := range plain {
			plain[i] = byte(i*7 + dist)
		}

		var encoded bytes.Buffer
		enc, err := encodeDelta(&encoded, EncodeParams{Config: &DeltaConfig{Distance: dist}})
		if err != nil {
			t.Fatalf("distance %d: encodeDelta: %v", dist, err)
		}
		if _, err := enc.Write(plain); err != nil {
			t.Fatalf("distance %d: Write: %v", dist, err)
		}
		if err := enc.Close(); err != nil {
			t.Fatalf("distance %d: Close: %v", dist, err)
		}

		props := enc.Properties()
		if len(props) != 1 || int(props[0])+1 != dist {
			t.Fatalf("distance %d: Properties() = %v", dist, props)
		}

		rc, err := decodeDelta(bytes.NewReader(encoded.Bytes()), DecodeParams{Properties: props})
		if err != nil {
			t.Fatalf("distance %d: decodeDelta: %v", dist, err)
		}
		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("distance %d: ReadAll: %v", dist, err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("distance %d: round trip mismatch", dist)
		}
	}
}

func TestDeltaDistanceOutOfRange(t *testing.T) {
	if _, err := encodeDelta(io.Discard, EncodeParams{Config: &DeltaConfig{Distance: 0}}); err != nil {
		t.Fatalf("distance 0 should fall back to the default of 1, got error: %v", err)
	}
	if _, err := encodeDelta(io.Discard, EncodeParams{Config: &DeltaConfig{Distance: 257}}); err == nil {
		t.Fatalf("expected an error for distance > 256")
	}
}
