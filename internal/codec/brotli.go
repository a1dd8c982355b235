package codec

import (
	"io"

	"github.com/andybalholm/brotli"

	"github.com/sevenzlib/sevenz/internal/skippable"
	"github.com/sevenzlib/sevenz/internal/szerr"
)

func init() {
	register(MethodBrotli, decodeBrotli, encodeBrotli)
}

// Brotli properties are 3 bytes (version+quality, spec.md §4.B); advisory
// only, not required to decode a well-formed Brotli stream.
func decodeBrotli(in io.Reader, p DecodeParams) (io.ReadCloser, error) {
	r, err := skippable.NewReader(in, true, func(fr io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(brotli.NewReader(fr)), nil
	})
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, p.CoderRegion, err)
	}
	return r, nil
}

// BrotliConfig configures the Brotli encoder. FrameSize enables the
// skippable-frame multipart wrapper (spec.md §4.C); zero means a single
// unframed stream.
type BrotliConfig struct {
	Quality   int
	FrameSize int64
}

type brotliEncoder struct {
	w *skippable.Writer
}

func (e *brotliEncoder) Write(p []byte) (int, error) { return e.w.Write(p) }
func (e *brotliEncoder) Close() error                 { return e.w.Close() }
func (e *brotliEncoder) Properties() []byte           { return []byte{1, 0, 0} }

func encodeBrotli(out io.Writer, p EncodeParams) (Encoder, error) {
	cfg, _ := p.Config.(*BrotliConfig)
	if cfg == nil {
		cfg = &BrotliConfig{}
	}
	quality := cfg.Quality
	if quality == 0 {
		quality = brotli.DefaultCompression
	}

	w, err := skippable.NewWriter(out, true, cfg.FrameSize, func(fw io.Writer) (io.WriteCloser, error) {
		return brotli.NewWriterLevel(fw, quality), nil
	})
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, "brotli encoder", err)
	}
	return &brotliEncoder{w: w}, nil
}
