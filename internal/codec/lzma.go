package codec

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/ulikunitz/xz/lzma"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

func init() {
	register(MethodLZMA, decodeLZMA, encodeLZMA)
}

// lzmaProps decodes the single LZMA properties byte into (lc, lp, pb),
// the standard `d = (pb*5+lp)*9+lc` packing every LZMA implementation
// uses.
func lzmaProps(b byte) (lc, lp, pb int) {
	d := int(b)
	lc = d % 9
	d /= 9
	lp = d % 5
	pb = d / 5
	return
}

func packLZMAProps(lc, lp, pb int) byte {
	return byte((pb*5+lp)*9 + lc)
}

func decodeLZMA(in io.Reader, p DecodeParams) (io.ReadCloser, error) {
	if err := requireProps("LZMA", p.Properties, 5); err != nil {
		return nil, err
	}
	lc, lp, pb := lzmaProps(p.Properties[0])
	dictCap := binary.LittleEndian.Uint32(p.Properties[1:5])

	reqKB := int64(dictCap) / 1024
	if err := checkMemLimit(p.CoderRegion, p.MemLimitKB, reqKB); err != nil {
		return nil, err
	}

	cfg := lzma.ReaderConfig{
		Properties:   &lzma.Properties{LC: lc, LP: lp, PB: pb},
		DictCap:      int(dictCap),
		SizeInHeader: false,
		EOSMarker:    true,
	}
	r, err := cfg.NewReader(bufio.NewReader(in))
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, p.CoderRegion, err)
	}
	return io.NopCloser(r), nil
}

// LZMAConfig configures the LZMA1 encoder.
type LZMAConfig struct {
	DictCap int // bytes; 0 picks 16 MiB (1<<24)
	LC, LP, PB int
}

type lzmaEncoder struct {
	w     *lzma.Writer
	props byte
	dict  uint32
}

func (e *lzmaEncoder) Write(p []byte) (int, error) { return e.w.Write(p) }
func (e *lzmaEncoder) Close() error                 { return e.w.Close() }
func (e *lzmaEncoder) Properties() []byte {
	buf := make([]byte, 5)
	buf[0] = e.props
	binary.LittleEndian.PutUint32(buf[1:], e.dict)
	return buf
}

func encodeLZMA(out io.Writer, p EncodeParams) (Encoder, error) {
	cfg, _ := p.Config.(*LZMAConfig)
	if cfg == nil {
		cfg = &LZMAConfig{}
	}
	dict := cfg.DictCap
	if dict == 0 {
		dict = 1 << 24
	}
	lc, lp, pb := cfg.LC, cfg.LP, cfg.PB

	w, err := lzma.WriterConfig{
		Properties: &lzma.Properties{LC: lc, LP: lp, PB: pb},
		DictCap:    dict,
		SizeInHeader: false,
		EOSMarker:  true,
	}.NewWriter(out)
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, "lzma encoder", err)
	}

	return &lzmaEncoder{w: w, props: packLZMAProps(lc, lp, pb), dict: uint32(dict)}, nil
}
