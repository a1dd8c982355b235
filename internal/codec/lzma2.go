package codec

import (
	"bufio"
	"io"

	"github.com/ulikunitz/xz/lzma2"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

func init() {
	register(MethodLZMA2, decodeLZMA2, encodeLZMA2)
}

// lzma2DictSize decodes the single LZMA2 dictionary-size byte per
// spec.md §4.B: b must satisfy b&^0x3F==0 and b<=40; b==40 means the
// maximum 0xFFFFFFFF; otherwise size = (2 | (b&1)) << (b/2 + 11).
func lzma2DictSize(b byte) (uint32, error) {
	if b&^0x3F != 0 {
		return 0, szerr.New(szerr.MalformedMetadata, "lzma2", "reserved bits set in dictionary size byte")
	}
	if b > 40 {
		return 0, szerr.New(szerr.MalformedMetadata, "lzma2", "dictionary size byte out of range")
	}
	if b == 40 {
		return 0xFFFFFFFF, nil
	}
	return (uint32(2) | (uint32(b) & 1)) << (uint(b)/2 + 11), nil
}

// packLZMA2DictSize finds the smallest encodable dictionary size byte
// covering at least want bytes.
func packLZMA2DictSize(want uint32) byte {
	for b := byte(0); b < 40; b++ {
		size, _ := lzma2DictSize(b)
		if size >= want {
			return b
		}
	}
	return 40
}

func decodeLZMA2(in io.Reader, p DecodeParams) (io.ReadCloser, error) {
	if err := requireProps("LZMA2", p.Properties, 1); err != nil {
		return nil, err
	}
	dictSize, err := lzma2DictSize(p.Properties[0])
	if err != nil {
		return nil, err
	}

	// Estimated LZMA2 working-set size per spec.md §4.B: roughly the
	// dictionary plus the encoder/decoder's internal match-finder state,
	// here approximated as dictSize + a small fixed overhead, the same
	// shape ulikunitz/xz uses internally to size its sliding window.
	reqKB := int64(dictSize)/1024 + 16*1024
	if err := checkMemLimit(p.CoderRegion, p.MemLimitKB, reqKB); err != nil {
		return nil, err
	}

	r, err := lzma2.ReaderConfig{DictCap: int(dictSize)}.NewReader2(bufio.NewReader(in))
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, p.CoderRegion, err)
	}
	return io.NopCloser(r), nil
}

// LZMA2Config configures the LZMA2 encoder, including the optional
// multi-threaded match-finding spec.md §5 allows per block.
type LZMA2Config struct {
	DictCap int
	Threads int // >1 enables the coder's internal parallel dictionary passes
}

type lzma2Encoder struct {
	w    *lzma2.Writer
	dict byte
}

func (e *lzma2Encoder) Write(p []byte) (int, error) { return e.w.Write(p) }
func (e *lzma2Encoder) Close() error                 { return e.w.Close() }
func (e *lzma2Encoder) Properties() []byte           { return []byte{e.dict} }

func encodeLZMA2(out io.Writer, p EncodeParams) (Encoder, error) {
	cfg, _ := p.Config.(*LZMA2Config)
	if cfg == nil {
		cfg = &LZMA2Config{}
	}
	dict := cfg.DictCap
	if dict == 0 {
		dict = 1 << 24
	}

	w, err := lzma2.WriterConfig{DictCap: dict, Workers: cfg.Threads}.NewWriter2(out)
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, "lzma2 encoder", err)
	}

	return &lzma2Encoder{w: w, dict: packLZMA2DictSize(uint32(dict))}, nil
}
