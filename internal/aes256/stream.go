package aes256

import (
	"crypto/cipher"
	"io"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

const blockSize = 16

// Reader decrypts an AES-256-CBC stream, buffering up to one partial
// block (spec.md §4.D: the coder has no self-describing padding, so the
// last block's true length comes from the declared unpack size, not from
// the ciphertext itself) and handing decrypted bytes to the caller as
// soon as a full block is available.
type Reader struct {
	src  io.Reader
	mode cipher.BlockMode

	pending []byte // undecrypted bytes read from src, < 2*blockSize
	ready   []byte // decrypted bytes not yet returned to the caller
	eof     bool
}

// NewReader wraps src, decrypting with mode (built via NewCBCDecrypter).
func NewReader(src io.Reader, mode cipher.BlockMode) *Reader {
	return &Reader{src: src, mode: mode}
}

func (r *Reader) Read(p []byte) (int, error) {
	for len(r.ready) == 0 {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.ready)
	r.ready = r.ready[n:]
	return n, nil
}

// fill reads and decrypts one more block, or reports EOF once the
// source is drained and no full block remains pending (a trailing
// partial block is zero-padding artifact per spec.md §4.D and is
// dropped, the caller's declared unpack size is what truncates output).
func (r *Reader) fill() error {
	if r.eof {
		return io.EOF
	}
	buf := make([]byte, 4096)
	n, err := r.src.Read(buf)
	r.pending = append(r.pending, buf[:n]...)

	for len(r.pending) >= blockSize {
		block := r.pending[:blockSize]
		out := make([]byte, blockSize)
		r.mode.CryptBlocks(out, block)
		r.ready = append(r.ready, out...)
		r.pending = r.pending[blockSize:]
	}

	if err != nil {
		if err == io.EOF {
			r.eof = true
			if len(r.ready) == 0 {
				return io.EOF
			}
			return nil
		}
		return szerr.Wrap(szerr.CodecError, "aes256 decrypt", err)
	}
	return nil
}

// Writer encrypts to dst with AES-256-CBC, buffering a partial final
// block and zero-padding it (not PKCS#7) at Close, per spec.md §4.D.
type Writer struct {
	dst  io.Writer
	mode cipher.BlockMode

	pending []byte
}

// NewWriter wraps dst, encrypting with mode (built via NewCBCEncrypter).
func NewWriter(dst io.Writer, mode cipher.BlockMode) *Writer {
	return &Writer{dst: dst, mode: mode}
}

func (w *Writer) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for len(w.pending) >= blockSize {
		block := w.pending[:blockSize]
		out := make([]byte, blockSize)
		w.mode.CryptBlocks(out, block)
		if _, err := w.dst.Write(out); err != nil {
			return len(p), err
		}
		w.pending = w.pending[blockSize:]
	}
	return len(p), nil
}

// Close zero-pads and flushes any partial final block.
func (w *Writer) Close() error {
	if len(w.pending) == 0 {
		return nil
	}
	block := make([]byte, blockSize)
	copy(block, w.pending)
	out := make([]byte, blockSize)
	w.mode.CryptBlocks(out, block)
	w.pending = nil
	_, err := w.dst.Write(out)
	return err
}
