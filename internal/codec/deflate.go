package codec

import (
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

func init() {
	register(MethodDeflate, decodeDeflate, encodeDeflate)
}

func decodeDeflate(in io.Reader, p DecodeParams) (io.ReadCloser, error) {
	return flate.NewReader(in), nil
}

// DeflateConfig configures the DEFLATE encoder.
type DeflateConfig struct {
	Level int // 0 picks flate.DefaultCompression
}

type deflateEncoder struct {
	w *flate.Writer
}

func (e *deflateEncoder) Write(p []byte) (int, error) { return e.w.Write(p) }
func (e *deflateEncoder) Close() error                 { return e.w.Close() }
func (e *deflateEncoder) Properties() []byte           { return nil }

func encodeDeflate(out io.Writer, p EncodeParams) (Encoder, error) {
	level := flate.DefaultCompression
	if cfg, ok := p.Config.(*DeflateConfig); ok && cfg.Level != 0 {
		level = cfg.Level
	}
	w, err := flate.NewWriter(out, level)
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, "deflate encoder", err)
	}
	return &deflateEncoder{w: w}, nil
}
