// Package skippable implements component C of the 7z engine: the
// zstdmt-style skippable-frame convention (spec.md §4.C) that lets
// externally produced, multi-threaded Brotli/Lz4 streams be concatenated
// and decoded transparently.
package skippable

import (
	"encoding/binary"
	"io"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

// Magic is the little-endian skippable-frame magic number.
const Magic uint32 = 0x184D2A50

// BrotliMagic is the 2-byte "BR" tag following the skippable header in a
// Brotli frame.
const BrotliMagic uint16 = 0x5242

// SkipSize is the frame's declared skip_size field: 8 for Brotli (which
// carries the 4-byte comp_size plus 4 bytes of Brotli-specific hint
// fields), 4 for Lz4 (comp_size only).
const (
	SkipSizeLZ4    = 4
	SkipSizeBrotli = 8
)

// NewDecoderFunc builds a fresh underlying codec decoder for one frame's
// payload bytes.
type NewDecoderFunc func(r io.Reader) (io.ReadCloser, error)

// NewEncoderFunc builds a fresh underlying codec encoder writing to w.
type NewEncoderFunc func(w io.Writer) (io.WriteCloser, error)

// headerLen is brotli (16) or lz4 (12) depending on isBrotli.
func headerLen(isBrotli bool) int {
	if isBrotli {
		return 16
	}
	return 12
}

// Reader transparently decodes a sequence of skippable frames, or a
// single plain codec-native stream if no skippable header is present
// (spec.md §4.C "standard mode").
type Reader struct {
	src      io.Reader
	isBrotli bool
	newDec   NewDecoderFunc

	framed    bool
	cur       io.ReadCloser
	remaining int64 // comp_size of cur's frame, framed mode only
	standard  io.Reader
	peeked    []byte
	done      bool
}

// NewReader wraps src. isBrotli selects the 16-byte Brotli header shape
// (with the "BR"+hint fields) versus the 12-byte Lz4 shape.
func NewReader(src io.Reader, isBrotli bool, newDec NewDecoderFunc) (*Reader, error) {
	r := &Reader{src: src, isBrotli: isBrotli, newDec: newDec}
	if err := r.openNextFrame(true); err != nil && err != io.EOF {
		return nil, err
	}
	return r, nil
}

// openNextFrame attempts to read the next skippable-frame header. first
// distinguishes the initial peek (which also decides framed vs standard
// mode) from subsequent frame transitions.
func (r *Reader) openNextFrame(first bool) error {
	hl := headerLen(r.isBrotli)
	buf := make([]byte, hl)
	n, err := io.ReadFull(r.src, buf)
	if err != nil {
		if first {
			if n == 0 {
				r.done = true
				return io.EOF
			}
			// Short read on the very first peek: fewer bytes than a
			// full header exist, so this can only be a short standard
			// stream; treat what we got as its leading bytes.
			r.standard = io.MultiReader(sliceReader(buf[:n]), r.src)
			return nil
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			r.done = true
			return io.EOF
		}
		return szerr.Wrap(szerr.MalformedMetadata, "skippable frame", err)
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		if !first {
			return szerr.New(szerr.MalformedMetadata, "skippable frame", "expected frame header or EOF after prior frame")
		}
		// Standard mode: the peeked bytes are the leading bytes of a
		// single codec-native stream.
		r.standard = io.MultiReader(sliceReader(buf), r.src)
		return nil
	}

	skipSize := binary.LittleEndian.Uint32(buf[4:8])
	compSize := binary.LittleEndian.Uint32(buf[8:12])
	wantSkip := uint32(SkipSizeLZ4)
	if r.isBrotli {
		wantSkip = SkipSizeBrotli
	}
	if skipSize != wantSkip {
		return szerr.New(szerr.MalformedMetadata, "skippable frame", "unexpected skip_size field")
	}

	r.framed = true
	dec, err := r.newDec(io.LimitReader(r.src, int64(compSize)))
	if err != nil {
		return szerr.Wrap(szerr.CodecError, "skippable frame", err)
	}
	r.cur = dec
	r.remaining = int64(compSize)
	return nil
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	if !r.framed {
		return r.standard.Read(p)
	}

	n, err := r.cur.Read(p)
	if n > 0 {
		return n, nil
	}
	if err != nil && err != io.EOF {
		return 0, err
	}

	// Current frame's decoder is drained; close it and look for another
	// frame header.
	if cerr := r.cur.Close(); cerr != nil {
		return 0, cerr
	}
	if nerr := r.openNextFrame(false); nerr != nil {
		if nerr == io.EOF {
			return 0, io.EOF
		}
		return 0, nerr
	}
	return r.Read(p)
}

// Close releases the current frame's decoder, if any.
func (r *Reader) Close() error {
	if r.cur != nil {
		return r.cur.Close()
	}
	return nil
}

func sliceReader(b []byte) io.Reader {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &byteSliceReader{b: cp}
}

type byteSliceReader struct {
	b []byte
	i int
}

func (s *byteSliceReader) Read(p []byte) (int, error) {
	if s.i >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.i:])
	s.i += n
	return n, nil
}
