package skippable

import (
	"bytes"
	"io"
	"testing"
)

// identity encoder/decoder pair isolates frame-level behavior from any
// real codec's own correctness.
func identityEncoder(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func identityDecoder(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func TestStandardModeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, false, 0, identityEncoder)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	payload := []byte("standard mode, no framing at all")
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()), false, identityDecoder)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestFramedModeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, false, 8, identityEncoder)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	payload := []byte("this payload spans several eight byte frames of plaintext")
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()), false, identityDecoder)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestFramedModeBrotliHeaderShape(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, true, 16, identityEncoder)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	payload := bytes.Repeat([]byte("x"), 40)
	w.Write(payload)
	w.Close()

	r, err := NewReader(bytes.NewReader(buf.Bytes()), true, identityDecoder)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

// TestConcatenatedStreamsResumable exercises spec.md's P5 property:
// independently produced skippable streams, concatenated, decode as one
// continuous byte sequence.
func TestConcatenatedStreamsResumable(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	w1, _ := NewWriter(&buf1, false, 8, identityEncoder)
	w1.Write([]byte("first chunk of data"))
	w1.Close()

	w2, _ := NewWriter(&buf2, false, 8, identityEncoder)
	w2.Write([]byte("second chunk of data"))
	w2.Close()

	var combined bytes.Buffer
	combined.Write(buf1.Bytes())
	combined.Write(buf2.Bytes())

	r, err := NewReader(bytes.NewReader(combined.Bytes()), false, identityDecoder)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := "first chunk of datasecond chunk of data"
	if string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestTruncationAtFrameBoundaryIsResumable exercises spec.md's P5
// property from the other direction: cutting a stream off right after a
// complete frame (mid-header of the next one, which never gets written)
// yields that frame's decoded bytes and a clean EOF rather than an error
// — frame boundaries are resumption points, not hard failures.
func TestTruncationAtFrameBoundaryIsResumable(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, false, 8, identityEncoder)
	w.Write([]byte("eight by")) // exactly one full frame
	w.Write([]byte("te fram2")) // exactly one more full frame
	w.Close()

	fullFrame := 12 + 8 // header + 8-byte payload, identity codec doesn't grow data
	if buf.Len() != fullFrame*2 {
		t.Fatalf("unexpected encoded length %d, want %d", buf.Len(), fullFrame*2)
	}

	// Keep only the first frame intact; cut the second frame's header short.
	truncated := buf.Bytes()[:fullFrame+5]

	r, err := NewReader(bytes.NewReader(truncated), false, identityDecoder)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "eight by" {
		t.Fatalf("got %q, want just the first complete frame", got)
	}
}
