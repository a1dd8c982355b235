package codec

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

func init() {
	register(MethodZstd, decodeZstd, encodeZstd)
}

// zstd frames are self-describing; the 3 property bytes (version+level,
// spec.md §4.B) are advisory only and not required to decode.
func decodeZstd(in io.Reader, p DecodeParams) (io.ReadCloser, error) {
	d, err := zstd.NewReader(in)
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, p.CoderRegion, err)
	}
	return d.IOReadCloser(), nil
}

// ZstdConfig configures the Zstd encoder.
type ZstdConfig struct {
	Level int // maps to zstd.EncoderLevelFromZstd
}

type zstdEncoder struct {
	w     *zstd.Encoder
	level int
}

func (e *zstdEncoder) Write(p []byte) (int, error) { return e.w.Write(p) }
func (e *zstdEncoder) Close() error                 { return e.w.Close() }
func (e *zstdEncoder) Properties() []byte {
	return []byte{1, 0, byte(e.level)}
}

func encodeZstd(out io.Writer, p EncodeParams) (Encoder, error) {
	level := 3
	if cfg, ok := p.Config.(*ZstdConfig); ok && cfg.Level != 0 {
		level = cfg.Level
	}
	w, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, "zstd encoder", err)
	}
	return &zstdEncoder{w: w, level: level}, nil
}
