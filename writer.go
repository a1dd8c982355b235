package sevenz

import (
	"hash/crc32"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sevenzlib/sevenz/internal/codec"
	"github.com/sevenzlib/sevenz/internal/header"
	"github.com/sevenzlib/sevenz/internal/szerr"
)

// MaxSolidBlockSize is the largest combined plaintext size a multi-entry
// solid block may declare before PushEntriesSolid rejects it; a
// single-entry block carries no such cap (original_source's
// util/compress.rs MAX_BLOCK_SIZE, 4 GiB - 1).
const MaxSolidBlockSize = 4*1024*1024*1024 - 1

// writerState tracks the Writer's lifecycle: Fresh (nothing written
// yet) -> Accepting (entries being pushed) -> Finalizing (Finish
// building the end header) -> Finished, or Failed from any state once
// an operation errors.
type writerState int

const (
	writerFresh writerState = iota
	writerAccepting
	writerFinalizing
	writerFinished
	writerFailed
)

// PendingEntry describes one file to push into the archive. Size is the
// caller's expected byte count, used only to validate a solid group
// against MaxSolidBlockSize before any bytes are read; the actual
// streamed byte count (from Source) is authoritative for the archive
// metadata.
type PendingEntry struct {
	Name       string
	Size       int64
	ModTime    time.Time
	HasModTime bool

	// Source is called exactly once, lazily, when this entry's bytes are
	// actually about to be compressed; the returned ReadCloser is closed
	// once fully read.
	Source func() (io.ReadCloser, error)
}

// Writer builds a 7z archive, streaming packed bytes out to w as each
// block is finished rather than buffering the whole archive in memory.
// Styled after dsnet/compress's Writer types (sticky err field, Config
// passed at construction) with the solid-grouping state machine spec.md
// §4.F and original_source's encoder.rs/util/compress.rs describe.
type Writer struct {
	w     io.WriteSeeker
	state writerState
	err   error

	specs []codec.CoderSpec

	blocks  []Block
	entries []Entry

	packOffset uint64 // bytes of packed data written so far, relative to basePos
}

// NewWriter begins a new archive, writing a placeholder start header
// immediately (patched by Finish once the real offsets are known). w
// must support Seek so Finish can go back and fill in that placeholder.
func NewWriter(w io.WriteSeeker) (*Writer, error) {
	if err := header.WriteStartHeader(w, header.StartHeader{}); err != nil {
		return nil, szerr.Wrap(szerr.CodecError, "archive writer", err)
	}
	return &Writer{w: w, state: writerFresh}, nil
}

// SetContentMethods configures the coder chain applied to every block
// pushed after this call (innermost spec first, i.e. the one touching
// raw plaintext; outermost last, i.e. the one writing packed bytes).
// The default, if never called, is a single LZMA2 stage.
func (wr *Writer) SetContentMethods(specs ...codec.CoderSpec) {
	wr.specs = specs
}

func (wr *Writer) contentSpecs() []codec.CoderSpec {
	if len(wr.specs) > 0 {
		return wr.specs
	}
	return []codec.CoderSpec{{Method: codec.MethodLZMA2}}
}

func (wr *Writer) fail(err error) error {
	wr.state = writerFailed
	wr.err = err
	return err
}

func (wr *Writer) checkWritable() error {
	switch wr.state {
	case writerFailed:
		return szerr.Wrap(szerr.CodecError, "archive writer", wr.err)
	case writerFinished, writerFinalizing:
		return szerr.New(szerr.CodecError, "archive writer", "writer is already finishing or finished")
	}
	return nil
}

// PushDir appends an empty, stream-less directory entry.
func (wr *Writer) PushDir(name string) error {
	if err := wr.checkWritable(); err != nil {
		return err
	}
	wr.state = writerAccepting
	wr.entries = append(wr.entries, Entry{Name: name, IsDir: true})
	return nil
}

// PushEntry writes name as its own solid block (no grouping overhead
// with any other entry), streaming source's bytes through the
// configured content methods.
func (wr *Writer) PushEntry(pe PendingEntry) error {
	return wr.PushEntriesSolid([]PendingEntry{pe})
}

// PushEntriesSolid writes entries as a single solid block: all of their
// plaintext bytes pass through one instance of the configured content
// coder chain, back to back, so repetition across files in the group
// compresses together. Rejected if the group has more than one entry and
// their declared Size sums past MaxSolidBlockSize.
func (wr *Writer) PushEntriesSolid(entries []PendingEntry) error {
	if err := wr.checkWritable(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if len(entries) > 1 {
		var total int64
		for _, e := range entries {
			total += e.Size
		}
		if total > MaxSolidBlockSize {
			return wr.fail(szerr.New(szerr.UnsupportedFeature, "solid block", "combined entry size exceeds the solid block cap"))
		}
	}
	wr.state = writerAccepting

	if err := wr.flushGroup(entries); err != nil {
		return wr.fail(err)
	}
	return nil
}

func (wr *Writer) flushGroup(entries []PendingEntry) error {
	sink := io.Writer(wr.w)
	chain, coders, bindPairs, counters, err := codec.BuildEncodeChain(sink, wr.contentSpecs())
	if err != nil {
		return err
	}

	var entrySizes []uint64
	var entryCRCs []uint32
	var totalPlain uint64

	for _, pe := range entries {
		rc, err := pe.Source()
		if err != nil {
			return err
		}
		crc := crc32.NewIEEE()
		n, err := io.Copy(io.MultiWriter(chain, crc), rc)
		rc.Close()
		if err != nil {
			return err
		}
		entrySizes = append(entrySizes, uint64(n))
		entryCRCs = append(entryCRCs, crc.Sum32())
		totalPlain += uint64(n)
	}

	if err := chain.Close(); err != nil {
		return err
	}

	unpackSizes := make([]uint64, len(coders))
	unpackSizes[0] = totalPlain
	for i := 1; i < len(coders); i++ {
		unpackSizes[i] = uint64(counters[i-1].N)
	}
	packSize := uint64(counters[len(counters)-1].N)

	block := Block{
		Coders:        coders2BlockCoders(coders),
		BindPairs:     bindPairs2Block(bindPairs),
		PackedIndices: []uint64{uint64(len(coders) - 1)},
		UnpackSizes:   unpackSizes,
		NumSubstreams: len(entries),
		EntrySizes:    entrySizes,
		EntryHasCRC:   allTrue(len(entries)),
		EntryDigests:  entryCRCs,
		packPos:       wr.packOffset,
		packSizes:     []uint64{packSize},
	}
	if len(entries) == 1 {
		block.HasCRC = true
		block.CRC = entryCRCs[0]
	}
	wr.packOffset += packSize
	blockIdx := len(wr.blocks)
	wr.blocks = append(wr.blocks, block)

	for i, pe := range entries {
		wr.entries = append(wr.entries, Entry{
			Name:       pe.Name,
			HasStream:  true,
			HasCRC:     true,
			CRC:        entryCRCs[i],
			Size:       entrySizes[i],
			ModTime:    pe.ModTime,
			HasModTime: pe.HasModTime,

			blockIndex:   blockIdx,
			indexInBlock: i,
		})
	}
	return nil
}

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}

func coders2BlockCoders(cs []header.Coder) []Coder {
	out := make([]Coder, len(cs))
	for i, c := range cs {
		out[i] = Coder{Method: c.Method, NumIn: c.NumIn, NumOut: c.NumOut, Properties: c.Properties}
	}
	return out
}

func bindPairs2Block(bs []header.BindPair) []BindPair {
	out := make([]BindPair, len(bs))
	for i, b := range bs {
		out[i] = BindPair{InIndex: b.InIndex, OutIndex: b.OutIndex}
	}
	return out
}

// Finish writes the end header and patches the start header with its
// location, size and CRC. The Writer must not be used afterward.
func (wr *Writer) Finish() error {
	if err := wr.checkWritable(); err != nil {
		return err
	}
	wr.state = writerFinalizing

	h := wr.buildHeader()
	raw := header.Write(h)

	if _, err := wr.w.Write(raw); err != nil {
		return wr.fail(err)
	}

	sh := header.StartHeader{
		NextHeaderOffset: wr.packOffset,
		NextHeaderSize:   uint64(len(raw)),
		NextHeaderCRC:    crc32.ChecksumIEEE(raw),
	}

	// Patching the placeholder start header and restoring the write
	// position are independent failure points; a reader left mid-seek
	// on error is worth reporting alongside whatever the patch itself
	// did, so both are collected rather than the first one winning.
	var merr *multierror.Error
	if _, err := wr.w.Seek(0, io.SeekStart); err != nil {
		merr = multierror.Append(merr, err)
	} else if err := header.WriteStartHeader(wr.w, sh); err != nil {
		merr = multierror.Append(merr, err)
	}
	if _, err := wr.w.Seek(0, io.SeekEnd); err != nil {
		merr = multierror.Append(merr, err)
	}
	if err := merr.ErrorOrNil(); err != nil {
		return wr.fail(err)
	}

	wr.state = writerFinished
	return nil
}

func (wr *Writer) buildHeader() *header.Header {
	h := &header.Header{}

	if len(wr.blocks) > 0 {
		si := &header.StreamsInfo{
			PackInfo:   &header.PackInfo{PackPos: 0},
			UnpackInfo: &header.UnpackInfo{},
		}
		ssi := &header.SubStreamsInfo{}

		for i := range wr.blocks {
			b := &wr.blocks[i]
			si.PackInfo.PackSizes = append(si.PackInfo.PackSizes, b.packSizes...)
			si.UnpackInfo.Folders = append(si.UnpackInfo.Folders, toHeaderFolder(b))

			ssi.NumUnpackStreamsInFolders = append(ssi.NumUnpackStreamsInFolders, uint64(b.NumSubstreams))
			ssi.UnpackSizes = append(ssi.UnpackSizes, b.EntrySizes...)
			ssi.Digests = append(ssi.Digests, b.EntryDigests...)
			ssi.DigestsDefined = append(ssi.DigestsDefined, b.EntryHasCRC...)
		}
		si.SubStreamsInfo = ssi
		h.MainStreamsInfo = si
	}

	fi := &header.FilesInfo{}
	for _, e := range wr.entries {
		fi.Files = append(fi.Files, header.FileEntry{
			Name:          e.Name,
			HasStream:     e.HasStream,
			IsDir:         e.IsDir,
			IsAnti:        e.IsAnti,
			HasCRC:        e.HasCRC,
			CRC:           e.CRC,
			Size:          e.Size,
			HasMTime:      e.HasModTime,
			MTime:         e.ModTime,
			HasAttributes: e.HasAttributes,
			Attributes:    e.Attributes,
		})
	}
	h.FilesInfo = fi

	return h
}
