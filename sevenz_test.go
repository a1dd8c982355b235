package sevenz

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sevenzlib/sevenz/internal/codec"
)

// entrySummary reduces an Entry to the fields these round-trip tests care
// about, so cmp.Diff output stays readable instead of dumping every
// internal bookkeeping field.
type entrySummary struct {
	Name  string
	IsDir bool
	Size  uint64
}

func summarizeEntries(entries []Entry) []entrySummary {
	out := make([]entrySummary, len(entries))
	for i, e := range entries {
		out[i] = entrySummary{Name: e.Name, IsDir: e.IsDir, Size: e.Size}
	}
	return out
}

// memWriteSeeker is a minimal io.WriteSeeker backed by an in-memory
// buffer, standing in for an *os.File in these tests.
type memWriteSeeker struct {
	buf []byte
	pos int64
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.buf))
	}
	m.pos = base + offset
	return m.pos, nil
}

func src(data []byte) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

func writeSingleEntryArchive(t *testing.T, name string, content []byte) *memWriteSeeker {
	t.Helper()
	m := &memWriteSeeker{}
	w, err := NewWriter(m)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.SetContentMethods(codec.CoderSpec{Method: codec.MethodCopy})
	if err := w.PushEntry(PendingEntry{
		Name:       name,
		Size:       int64(len(content)),
		ModTime:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		HasModTime: true,
		Source:     src(content),
	}); err != nil {
		t.Fatalf("PushEntry: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return m
}

func TestWriterReaderRoundTripSingleEntry(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")
	m := writeSingleEntryArchive(t, "fox.txt", content)

	r, err := Open(bytes.NewReader(m.buf), int64(len(m.buf)), ReaderConfig{VerifyCRC32: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc, err := r.ReadEntry("fox.txt")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	rc.Close()
	if !bytes.Equal(got, content) {
		t.Fatalf("got %q, want %q", got, content)
	}
}

func TestWriterReaderRoundTripSolidMultiEntry(t *testing.T) {
	a := bytes.Repeat([]byte("alpha"), 100)
	b := bytes.Repeat([]byte("beta"), 50)

	m := &memWriteSeeker{}
	w, err := NewWriter(m)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.SetContentMethods(codec.CoderSpec{Method: codec.MethodCopy})
	err = w.PushEntriesSolid([]PendingEntry{
		{Name: "a.txt", Size: int64(len(a)), Source: src(a)},
		{Name: "b.txt", Size: int64(len(b)), Source: src(b)},
	})
	if err != nil {
		t.Fatalf("PushEntriesSolid: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := Open(bytes.NewReader(m.buf), int64(len(m.buf)), ReaderConfig{VerifyCRC32: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := []entrySummary{
		{Name: "a.txt", Size: uint64(len(a))},
		{Name: "b.txt", Size: uint64(len(b))},
	}
	if diff := cmp.Diff(want, summarizeEntries(r.Archive().Entries)); diff != "" {
		t.Fatalf("archive entries mismatch (-want +got):\n%s", diff)
	}

	gotA, err := r.ReadEntry("a.txt")
	if err != nil {
		t.Fatalf("ReadEntry a: %v", err)
	}
	dataA, _ := io.ReadAll(gotA)
	gotA.Close()
	if !bytes.Equal(dataA, a) {
		t.Fatalf("entry a mismatch")
	}

	gotB, err := r.ReadEntry("b.txt")
	if err != nil {
		t.Fatalf("ReadEntry b: %v", err)
	}
	dataB, _ := io.ReadAll(gotB)
	gotB.Close()
	if !bytes.Equal(dataB, b) {
		t.Fatalf("entry b mismatch")
	}
}

func TestWriterDirEntryOnly(t *testing.T) {
	m := &memWriteSeeker{}
	w, err := NewWriter(m)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.PushDir("emptydir"); err != nil {
		t.Fatalf("PushDir: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := Open(bytes.NewReader(m.buf), int64(len(m.buf)), ReaderConfig{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := []entrySummary{{Name: "emptydir", IsDir: true}}
	if diff := cmp.Diff(want, summarizeEntries(r.Archive().Entries)); diff != "" {
		t.Fatalf("archive entries mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyArchive(t *testing.T) {
	m := &memWriteSeeker{}
	w, err := NewWriter(m)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := Open(bytes.NewReader(m.buf), int64(len(m.buf)), ReaderConfig{})
	if err != nil {
		t.Fatalf("Open empty archive: %v", err)
	}
	if len(r.Archive().Entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(r.Archive().Entries))
	}
}

func TestBlockDecoderDirectAccess(t *testing.T) {
	content := []byte("block-level extraction bypasses the Reader entirely")
	m := writeSingleEntryArchive(t, "direct.bin", content)

	r, err := Open(bytes.NewReader(m.buf), int64(len(m.buf)), ReaderConfig{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a := r.Archive()

	rc, err := BlockDecoder(a, 0, nil, 0, bytes.NewReader(m.buf))
	if err != nil {
		t.Fatalf("BlockDecoder: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("got %q, want %q", got, content)
	}
}

func TestReaderRejectsTruncatedArchive(t *testing.T) {
	content := []byte("this content will be truncated before the end header")
	m := writeSingleEntryArchive(t, "cut.bin", content)

	truncated := m.buf[:len(m.buf)-5]
	if _, err := Open(bytes.NewReader(truncated), int64(len(truncated)), ReaderConfig{}); err == nil {
		t.Fatalf("expected an error opening a truncated archive")
	}
}

func TestReaderRejectsCorruptedEntryWithCRCVerification(t *testing.T) {
	content := []byte("crc protected payload, corrupt one byte after writing")
	m := writeSingleEntryArchive(t, "corrupt.bin", content)

	// Flip a byte inside the packed data region (well before the end
	// header, which starts at StartHeaderSize+len(content) for a COPY
	// coder with a single small entry).
	m.buf[35] ^= 0xFF

	r, err := Open(bytes.NewReader(m.buf), int64(len(m.buf)), ReaderConfig{VerifyCRC32: true})
	if err != nil {
		// A corrupted pack byte can also land inside the end header and
		// be caught there; either failure mode demonstrates detection.
		return
	}
	rc, err := r.ReadEntry("corrupt.bin")
	if err != nil {
		return
	}
	if _, err := io.ReadAll(rc); err == nil {
		t.Fatalf("expected a CRC mismatch reading corrupted content")
	}
}
