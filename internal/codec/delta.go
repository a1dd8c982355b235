package codec

import (
	"io"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

func init() {
	register(MethodDelta, decodeDelta, encodeDelta)
}

// deltaDistance decodes the single properties byte: on-disk value is
// distance-1, per spec.md §4.B.
func deltaDistance(props []byte) (int, error) {
	if err := requireProps("delta", props, 1); err != nil {
		return 0, err
	}
	return int(props[0]) + 1, nil
}

type deltaReader struct {
	src      io.Reader
	distance int
	history  []byte
	pos      int
}

func decodeDelta(in io.Reader, p DecodeParams) (io.ReadCloser, error) {
	dist, err := deltaDistance(p.Properties)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(&deltaReader{src: in, distance: dist, history: make([]byte, dist)}), nil
}

func (d *deltaReader) Read(p []byte) (int, error) {
	n, err := d.src.Read(p)
	for i := 0; i < n; i++ {
		p[i] += d.history[d.pos%d.distance]
		d.history[d.pos%d.distance] = p[i]
		d.pos++
	}
	return n, err
}

// DeltaConfig configures the Delta encoder.
type DeltaConfig struct {
	Distance int // 1..256
}

type deltaEncoder struct {
	dst      io.Writer
	distance int
	history  []byte
	pos      int
}

func encodeDelta(out io.Writer, p EncodeParams) (Encoder, error) {
	cfg, _ := p.Config.(*DeltaConfig)
	dist := 1
	if cfg != nil && cfg.Distance > 0 {
		dist = cfg.Distance
	}
	if dist < 1 || dist > 256 {
		return nil, szerr.New(szerr.MalformedMetadata, "delta encoder", "distance out of range")
	}
	return &deltaEncoder{dst: out, distance: dist, history: make([]byte, dist)}, nil
}

func (e *deltaEncoder) Write(p []byte) (int, error) {
	out := make([]byte, len(p))
	for i, b := range p {
		prev := e.history[e.pos%e.distance]
		out[i] = b - prev
		e.history[e.pos%e.distance] = b
		e.pos++
	}
	return e.dst.Write(out)
}

func (e *deltaEncoder) Close() error { return nil }

func (e *deltaEncoder) Properties() []byte {
	return []byte{byte(e.distance - 1)}
}
