package codec

import (
	"io"

	"github.com/dsnet/compress/bzip2"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

func init() {
	register(MethodBZip2, decodeBZip2, encodeBZip2)
}

func decodeBZip2(in io.Reader, p DecodeParams) (io.ReadCloser, error) {
	r, err := bzip2.NewReader(in, nil)
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, p.CoderRegion, err)
	}
	return r, nil
}

// BZip2Config configures the BZip2 encoder.
type BZip2Config struct {
	Level int // 1-9, matching dsnet/compress/bzip2's block-size levels
}

type bzip2Encoder struct {
	w *bzip2.Writer
}

func (e *bzip2Encoder) Write(p []byte) (int, error) { return e.w.Write(p) }
func (e *bzip2Encoder) Close() error                 { return e.w.Close() }
func (e *bzip2Encoder) Properties() []byte           { return nil }

func encodeBZip2(out io.Writer, p EncodeParams) (Encoder, error) {
	level := 6
	if cfg, ok := p.Config.(*BZip2Config); ok && cfg.Level != 0 {
		level = cfg.Level
	}
	w, err := bzip2.NewWriter(out, &bzip2.WriterConfig{Level: level})
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, "bzip2 encoder", err)
	}
	return &bzip2Encoder{w: w}, nil
}
