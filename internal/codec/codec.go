// Package codec implements component B of the 7z engine: the registry of
// supported coders, composition of per-block decode/encode pipelines, and
// the memory-bound enforcement spec.md §4.B requires. The codec kernels
// themselves (LZMA2, PPMd, Brotli, ...) are external collaborators per
// spec.md §1 — this package owns only the property-byte encoding, chain
// wiring and dispatch table.
package codec

import (
	"io"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

// Method identifies one row of spec.md §4.B's closed method table by its
// raw, big-endian on-disk id bytes.
type Method string

// NewMethod builds a Method key from raw id bytes.
func NewMethod(id []byte) Method { return Method(id) }

// Bytes returns the raw on-disk id bytes for m.
func (m Method) Bytes() []byte { return []byte(m) }

// The closed table of method ids from spec.md §4.B.
var (
	MethodCopy    = NewMethod([]byte{0x00})
	MethodDelta   = NewMethod([]byte{0x03})
	MethodBCJX86  = NewMethod([]byte{0x03, 0x03, 0x01, 0x03})
	MethodLZMA    = NewMethod([]byte{0x03, 0x01, 0x01})
	MethodPPMd    = NewMethod([]byte{0x03, 0x04, 0x01})
	MethodLZMA2   = NewMethod([]byte{0x21})
	MethodDeflate = NewMethod([]byte{0x04, 0x01, 0x08})
	MethodBZip2   = NewMethod([]byte{0x04, 0x02, 0x02})
	MethodZstd    = NewMethod([]byte{0x04, 0xF7, 0x11, 0x01})
	MethodBrotli  = NewMethod([]byte{0x04, 0xF7, 0x11, 0x02})
	MethodLZ4     = NewMethod([]byte{0x04, 0xF7, 0x11, 0x04})
	MethodAES256  = NewMethod([]byte{0x06, 0xF1, 0x07, 0x01})

	// BCJ branch-filter variants; all are no-properties, single in/out
	// byte transforms per spec.md §4.B.
	MethodBCJARM    = NewMethod([]byte{0x03, 0x03, 0x05, 0x01})
	MethodBCJARMT   = NewMethod([]byte{0x03, 0x03, 0x07, 0x01})
	MethodBCJARM64  = NewMethod([]byte{0x0A})
	MethodBCJPPC    = NewMethod([]byte{0x03, 0x03, 0x02, 0x05})
	MethodBCJSPARC  = NewMethod([]byte{0x03, 0x03, 0x08, 0x05})
	MethodBCJIA64   = NewMethod([]byte{0x03, 0x03, 0x01, 0x01})
)

// DecodeParams carries everything a decoder factory needs to build a
// streaming decoder around its input.
type DecodeParams struct {
	Properties  []byte
	UnpackSize  int64 // declared decompressed size, used for bounded readers
	Password    []byte
	MemLimitKB  int64 // 0 means unlimited
	CoderRegion string // for error messages, e.g. "block 2 coder 1"
}

// DecoderFactory builds a streaming decoder reading compressed bytes from
// in and yielding the decompressed byte stream.
type DecoderFactory func(in io.Reader, p DecodeParams) (io.ReadCloser, error)

// EncodeParams configures an encoder factory.
type EncodeParams struct {
	Password []byte
	Config   any // method-specific option struct, e.g. *LZMA2Config
}

// Encoder is a streaming encoder that also knows how to emit its
// property bytes once configured, and must be closed to flush trailers
// (LZMA end-marker, BCJ tail bytes, AES zero-padding) before the packed
// size is sampled (spec.md §4.B "Pipeline composition (encode)").
type Encoder interface {
	io.WriteCloser
	Properties() []byte
}

// EncoderFactory builds a streaming encoder writing compressed bytes to out.
type EncoderFactory func(out io.Writer, p EncodeParams) (Encoder, error)

type registration struct {
	decode DecoderFactory
	encode EncoderFactory
}

var registry = map[Method]registration{}

// register adds a method to the closed dispatch table. Called only from
// this package's init functions (one per codec file), matching spec.md
// §9's "dispatch table... adding a method is a source-code change, not a
// runtime registration" design note.
func register(m Method, dec DecoderFactory, enc EncoderFactory) {
	registry[m] = registration{decode: dec, encode: enc}
}

// Decoder looks up the decoder factory for m.
func Decoder(m Method) (DecoderFactory, bool) {
	r, ok := registry[m]
	if !ok || r.decode == nil {
		return nil, false
	}
	return r.decode, true
}

// EncoderFor looks up the encoder factory for m.
func EncoderFor(m Method) (EncoderFactory, bool) {
	r, ok := registry[m]
	if !ok || r.encode == nil {
		return nil, false
	}
	return r.encode, true
}

// nopCloser adapts an io.Reader with no Close method, the way bodgit's
// util.NopCloser wraps a pack-stream section reader (see
// other_examples/0219355d_bodgit-sevenzip__struct.go.go).
type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }

// NopCloser wraps r with a no-op Close.
func NopCloser(r io.Reader) io.ReadCloser { return nopCloser{r} }

// limitedCloser bounds the number of bytes a decoder will ever yield to
// its declared unpack size, the way bodgit's plumbing.LimitReadCloser
// bounds each coder's output (spec.md §3.2: unpack sizes are declarative,
// not self-terminating for every codec).
type limitedCloser struct {
	io.Reader
	io.Closer
}

// LimitReadCloser truncates rc's output to n bytes while preserving Close.
func LimitReadCloser(rc io.ReadCloser, n int64) io.ReadCloser {
	return limitedCloser{Reader: io.LimitReader(rc, n), Closer: rc}
}

// checkMemLimit enforces spec.md §4.B's memory bound rule.
func checkMemLimit(region string, limitKB, requestedKB int64) error {
	if limitKB > 0 && requestedKB > limitKB {
		return szerr.MemLimit(region, limitKB, requestedKB)
	}
	return nil
}

// requireProps is a small helper used by property-length-sensitive codecs
// (Delta, LZMA2 dict size byte) to assert a minimum properties length.
func requireProps(region string, props []byte, n int) error {
	if len(props) < n {
		return szerr.New(szerr.MalformedMetadata, region, "properties too short for method")
	}
	return nil
}
