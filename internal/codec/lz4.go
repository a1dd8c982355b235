package codec

import (
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/sevenzlib/sevenz/internal/skippable"
	"github.com/sevenzlib/sevenz/internal/szerr"
)

func init() {
	register(MethodLZ4, decodeLZ4, encodeLZ4)
}

func decodeLZ4(in io.Reader, p DecodeParams) (io.ReadCloser, error) {
	r, err := skippable.NewReader(in, false, func(fr io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(lz4.NewReader(fr)), nil
	})
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, p.CoderRegion, err)
	}
	return r, nil
}

// LZ4Config configures the Lz4 encoder. FrameSize enables the
// skippable-frame multipart wrapper (spec.md §4.C).
type LZ4Config struct {
	Level     lz4.CompressionLevel
	FrameSize int64
}

type lz4Encoder struct {
	w *skippable.Writer
}

func (e *lz4Encoder) Write(p []byte) (int, error) { return e.w.Write(p) }
func (e *lz4Encoder) Close() error                 { return e.w.Close() }
func (e *lz4Encoder) Properties() []byte           { return []byte{1, 0, 0} }

func encodeLZ4(out io.Writer, p EncodeParams) (Encoder, error) {
	cfg, _ := p.Config.(*LZ4Config)
	if cfg == nil {
		cfg = &LZ4Config{}
	}

	w, err := skippable.NewWriter(out, false, cfg.FrameSize, func(fw io.Writer) (io.WriteCloser, error) {
		zw := lz4.NewWriter(fw)
		if err := zw.Apply(lz4.CompressionLevelOption(cfg.Level)); err != nil {
			return nil, err
		}
		return zw, nil
	})
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, "lz4 encoder", err)
	}
	return &lz4Encoder{w: w}, nil
}
