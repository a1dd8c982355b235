package skippable

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Writer implements the encode side of spec.md §4.C: frameSize==0 streams
// straight to one underlying encoder (standard mode); frameSize>0
// accumulates up to frameSize uncompressed bytes per frame, closes that
// frame's encoder, measures its compressed length, and only then writes
// the frame header followed by the payload — the "explicit per-frame
// close-then-header-then-payload" discipline spec.md §9 calls out as the
// one the source's several variants do NOT consistently implement.
type Writer struct {
	dst       io.Writer
	isBrotli  bool
	frameSize int64
	newEnc    NewEncoderFunc

	// standard mode
	stdEnc io.WriteCloser

	// framed mode
	buf       bytes.Buffer
	uncounted int64
}

// NewWriter builds a Writer. frameSize==0 selects standard mode.
func NewWriter(dst io.Writer, isBrotli bool, frameSize int64, newEnc NewEncoderFunc) (*Writer, error) {
	w := &Writer{dst: dst, isBrotli: isBrotli, frameSize: frameSize, newEnc: newEnc}
	if frameSize == 0 {
		enc, err := newEnc(dst)
		if err != nil {
			return nil, err
		}
		w.stdEnc = enc
	}
	return w, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.stdEnc != nil {
		return w.stdEnc.Write(p)
	}

	total := 0
	for len(p) > 0 {
		room := w.frameSize - w.uncounted
		chunk := p
		if int64(len(chunk)) > room {
			chunk = chunk[:room]
		}
		n, err := w.buf.Write(chunk)
		total += n
		w.uncounted += int64(n)
		if err != nil {
			return total, err
		}
		p = p[len(chunk):]
		if w.uncounted >= w.frameSize {
			if err := w.flushFrame(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// flushFrame closes out the in-progress frame buffer: encodes the
// accumulated plaintext, fully closes that frame's encoder so its
// trailer is flushed, then emits the frame header followed by the
// compressed payload.
func (w *Writer) flushFrame() error {
	if w.uncounted == 0 {
		return nil
	}

	var compressed bytes.Buffer
	enc, err := w.newEnc(&compressed)
	if err != nil {
		return err
	}
	if _, err := enc.Write(w.buf.Bytes()); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if err := w.writeHeader(uint32(compressed.Len()), uint64(w.uncounted)); err != nil {
		return err
	}
	if _, err := w.dst.Write(compressed.Bytes()); err != nil {
		return err
	}

	w.buf.Reset()
	w.uncounted = 0
	return nil
}

func (w *Writer) writeHeader(compSize uint32, uncompressedBytes uint64) error {
	hl := headerLen(w.isBrotli)
	buf := make([]byte, hl)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	skip := uint32(SkipSizeLZ4)
	if w.isBrotli {
		skip = SkipSizeBrotli
	}
	binary.LittleEndian.PutUint32(buf[4:8], skip)
	binary.LittleEndian.PutUint32(buf[8:12], compSize)
	if w.isBrotli {
		binary.LittleEndian.PutUint16(buf[12:14], BrotliMagic)
		hint := (uncompressedBytes + 65535) / 65536
		if hint > 0xFFFF {
			hint = 0xFFFF
		}
		binary.LittleEndian.PutUint16(buf[14:16], uint16(hint))
	}
	_, err := w.dst.Write(buf)
	return err
}

// Close flushes any in-progress frame (framed mode) or closes the single
// underlying encoder (standard mode).
func (w *Writer) Close() error {
	if w.stdEnc != nil {
		return w.stdEnc.Close()
	}
	return w.flushFrame()
}
