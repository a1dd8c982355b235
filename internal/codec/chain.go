package codec

import (
	"io"

	"github.com/sevenzlib/sevenz/internal/bitio"
	"github.com/sevenzlib/sevenz/internal/header"
	"github.com/sevenzlib/sevenz/internal/szerr"
)

// Order returns the folder's coder indices in data-flow order: the coder
// fed directly by the pack stream first, through to the coder whose
// output is the folder's unbound final output.
//
// Every coder this engine supports has exactly one input and one output
// stream, so a folder's bind pairs form a simple chain rather than a
// general DAG. This function rejects anything else (multiple packed
// streams, a coder with more than one input/output, a bind pair that
// doesn't resolve) with UnsupportedFeature, per spec.md §9's guidance to
// reject non-linear bind pairs rather than guess.
func Order(f *header.Folder) ([]int, error) {
	for _, c := range f.Coders {
		if c.NumIn != 1 || c.NumOut != 1 {
			return nil, szerr.New(szerr.UnsupportedFeature, "folder", "multi-stream coders are not supported")
		}
	}
	if len(f.PackedIndices) != 1 {
		return nil, szerr.New(szerr.UnsupportedFeature, "folder", "folders with more than one pack stream are not supported")
	}

	n := len(f.Coders)
	order := make([]int, 0, n)
	cur := int(f.PackedIndices[0])
	seen := make(map[int]bool, n)

	for {
		if seen[cur] {
			return nil, szerr.New(szerr.UnsupportedFeature, "folder", "cyclic bind pairs")
		}
		seen[cur] = true
		order = append(order, cur)

		bp := f.FindBindPairForOutIndex(uint64(cur))
		if bp == nil {
			break
		}
		cur = int(bp.InIndex)
	}

	if len(order) != n {
		return nil, szerr.New(szerr.UnsupportedFeature, "folder", "disconnected coder graph")
	}
	return order, nil
}

// BuildDecodeChain wires a folder's coders, in flow order, into a single
// io.ReadCloser over the folder's decompressed output. packReader is the
// single section reader positioned at the folder's pack-stream bytes.
func BuildDecodeChain(f *header.Folder, packReader io.Reader, password []byte, memLimitKB int64, region string) (io.ReadCloser, error) {
	order, err := Order(f)
	if err != nil {
		return nil, err
	}

	var cur io.ReadCloser = NopCloser(packReader)
	for _, idx := range order {
		c := f.Coders[idx]
		m := NewMethod(c.Method)
		factory, ok := Decoder(m)
		if !ok {
			return nil, szerr.New(szerr.UnsupportedCompressionMethod, region, methodName(c.Method))
		}

		next, err := factory(cur, DecodeParams{
			Properties:  c.Properties,
			UnpackSize:  int64(f.UnpackSizes[idx]),
			Password:    password,
			MemLimitKB:  memLimitKB,
			CoderRegion: region,
		})
		if err != nil {
			return nil, err
		}
		cur = LimitReadCloser(next, int64(f.UnpackSizes[idx]))
	}

	return cur, nil
}

// EncodeChain is a built, still-open encoder pipeline. Close must be
// called exactly once, after the last plaintext byte has been written,
// to flush every coder's trailer in innermost-to-outermost order before
// the sink's byte count is sampled (spec.md §4.F "Finalization ordering").
type EncodeChain struct {
	head io.Writer // where callers write plaintext
	tail []Encoder // innermost first; tail[0].Properties() etc are per-coder
}

// Write implements io.Writer by writing to the head of the chain (the
// user-facing, innermost encoder).
func (c *EncodeChain) Write(p []byte) (int, error) { return c.head.Write(p) }

// Close flushes every encoder's trailer, outermost last, since each
// encoder's Close must run before its own sink (the next encoder in, or
// the packed-byte sink) is considered final.
func (c *EncodeChain) Close() error {
	var firstErr error
	for _, e := range c.tail {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CoderSpec names one stage of an encode chain to build and the
// properties to record for it once built.
type CoderSpec struct {
	Method   Method
	Config   any
	Password []byte
}

// BuildEncodeChain composes encoders for specs in user-facing-to-pack-
// stream order (specs[0] is innermost / closest to the caller's
// plaintext, specs[len-1] is outermost / closest to the pack stream),
// writing the final packed bytes to sink. It returns the chain, the
// Folder metadata (coders + bind pairs + packed properties) needed to
// describe it in the end header, and one CountingWriter per spec
// recording how many bytes that stage wrote into whatever comes next
// (the following stage, or sink for the outermost) — a Folder's
// UnpackSizes entry for coder i is the byte count the *previous* stage's
// counter reports (coder 0's own input is the caller's raw plaintext,
// which the caller already tracks itself).
func BuildEncodeChain(sink io.Writer, specs []CoderSpec) (*EncodeChain, []header.Coder, []header.BindPair, []*bitio.CountingWriter, error) {
	coders := make([]header.Coder, len(specs))
	writers := make([]Encoder, len(specs))
	counters := make([]*bitio.CountingWriter, len(specs))

	var cur io.Writer = sink
	// Build from outermost (closest to sink) to innermost, so each
	// encoder wraps the previous one's writer.
	for i := len(specs) - 1; i >= 0; i-- {
		counter := bitio.NewCountingWriter(cur)
		counters[i] = counter

		factory, ok := EncoderFor(specs[i].Method)
		if !ok {
			return nil, nil, nil, nil, szerr.New(szerr.UnsupportedCompressionMethod, "encode chain", methodName(specs[i].Method.Bytes()))
		}
		enc, err := factory(counter, EncodeParams{Password: specs[i].Password, Config: specs[i].Config})
		if err != nil {
			return nil, nil, nil, nil, err
		}
		writers[i] = enc
		cur = enc
		coders[i] = header.Coder{Method: specs[i].Method.Bytes(), NumIn: 1, NumOut: 1}
	}

	// writers is innermost-first; Close() walks it in that order so each
	// coder flushes its trailer into its sink before that sink's own
	// Close is called.
	chain := &EncodeChain{head: cur, tail: writers}

	// bind pairs: coder i's input (index i) is fed by coder i+1's output
	// (index i+1), for i in [0, len-2]; coder len-1's input is the pack
	// stream.
	var bindPairs []header.BindPair
	for i := 0; i < len(specs)-1; i++ {
		bindPairs = append(bindPairs, header.BindPair{InIndex: uint64(i), OutIndex: uint64(i + 1)})
	}

	// fill in properties now that each encoder has been fully configured
	// (constructed); some encoders only know their properties once built
	// (e.g. LZMA needs its negotiated dictionary size).
	for i, e := range writers {
		coders[i].Properties = e.Properties()
	}

	return chain, coders, bindPairs, counters, nil
}

func methodName(id []byte) string {
	switch NewMethod(id) {
	case MethodCopy:
		return "COPY"
	case MethodLZMA:
		return "LZMA"
	case MethodLZMA2:
		return "LZMA2"
	case MethodDeflate:
		return "DEFLATE"
	case MethodBZip2:
		return "BZIP2"
	case MethodZstd:
		return "ZSTD"
	case MethodBrotli:
		return "BROTLI"
	case MethodLZ4:
		return "LZ4"
	case MethodPPMd:
		return "PPMD"
	case MethodDelta:
		return "DELTA"
	case MethodAES256:
		return "AES256_SHA256"
	default:
		return "unknown method"
	}
}
