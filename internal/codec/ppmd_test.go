package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

func TestPPMdDecodeValidatesPropertiesBeforeFailing(t *testing.T) {
	if _, err := decodePPMd(bytes.NewReader(nil), DecodeParams{Properties: []byte{1, 2}}); err == nil {
		t.Fatalf("expected an error for a too-short properties blob")
	} else if !errors.Is(err, szerr.New(szerr.MalformedMetadata, "", "")) {
		t.Fatalf("got %v, want MalformedMetadata", err)
	}
}

func TestPPMdDecodeEnforcesMemoryLimit(t *testing.T) {
	props := make([]byte, 5)
	props[0] = 6 // order
	binary.LittleEndian.PutUint32(props[1:], 64*1024*1024)

	_, err := decodePPMd(nil, DecodeParams{Properties: props, MemLimitKB: 1024})
	if !errors.Is(err, szerr.New(szerr.MemoryLimitExceeded, "", "")) {
		t.Fatalf("got %v, want MemoryLimitExceeded", err)
	}
}

func TestPPMdDecodeReportsUnsupportedOnceWithinLimits(t *testing.T) {
	props := make([]byte, 5)
	props[0] = 6
	binary.LittleEndian.PutUint32(props[1:], 16*1024*1024)

	_, err := decodePPMd(nil, DecodeParams{Properties: props, MemLimitKB: 0})
	if !errors.Is(err, szerr.New(szerr.UnsupportedCompressionMethod, "", "")) {
		t.Fatalf("got %v, want UnsupportedCompressionMethod", err)
	}
}

func TestPPMdEncodeAlwaysUnsupported(t *testing.T) {
	_, err := encodePPMd(nil, EncodeParams{Config: &PPMdConfig{Order: 6, MemBytes: 16 << 20}})
	if !errors.Is(err, szerr.New(szerr.UnsupportedCompressionMethod, "", "")) {
		t.Fatalf("got %v, want UnsupportedCompressionMethod", err)
	}
}
