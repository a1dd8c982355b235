package bitio

import "io"

// CountingWriter wraps a sink and exposes the number of bytes written so
// far, used to measure a block's packed size as its encoder chain
// produces bytes. Grounded on the 7z writer's own counting writer
// (original_source/src/writer/counting_writer.rs) and shaped like
// bodgit/plumbing.WriteCounter.
type CountingWriter struct {
	W io.Writer
	N int64
}

// NewCountingWriter wraps w.
func NewCountingWriter(w io.Writer) *CountingWriter {
	return &CountingWriter{W: w}
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.N += int64(n)
	return n, err
}

// Count returns the number of bytes written so far.
func (c *CountingWriter) Count() int64 { return c.N }

// CountingReader wraps a source and counts the bytes delivered through it,
// used to discard leading substream bytes when seeking within a block's
// decoded output.
type CountingReader struct {
	R io.Reader
	N int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{R: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}

// Count returns the number of bytes read so far.
func (c *CountingReader) Count() int64 { return c.N }
