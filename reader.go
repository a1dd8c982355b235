package sevenz

import (
	"bufio"
	"hash/crc32"
	"io"
	"strconv"

	"github.com/bodgit/plumbing"
	"github.com/sevenzlib/sevenz/internal/codec"
	"github.com/sevenzlib/sevenz/internal/header"
	"github.com/sevenzlib/sevenz/internal/szerr"
)

// ReaderConfig carries the options an Open caller may set.
type ReaderConfig struct {
	// Password unlocks AES256_SHA256-encrypted blocks. Leave nil for
	// unencrypted archives.
	Password []byte

	// MemLimitKB bounds any single coder's declared working-memory
	// requirement (spec.md §4.B); 0 means unlimited.
	MemLimitKB int64

	// VerifyCRC32 has no effect: every entry read through ReadEntry or
	// ForEachEntry has its CRC32 digest (when present) checked against
	// its decompressed bytes as it is read, surfacing ErrChecksumMismatch
	// on a mismatch, whatever this field holds.
	VerifyCRC32 bool
}

// Reader provides random access to one opened 7z archive: its parsed
// Archive() metadata, and per-entry streaming via ReadEntry/ForEachEntry.
// Styled after saracen/go7z's Reader (other_examples's reader.go) but
// presenting random access rather than a forward-only Next/Read cursor,
// since spec.md §4.F requires ReadEntry(name) and block-level seeking.
type Reader struct {
	ra   io.ReaderAt
	size int64
	cfg  ReaderConfig

	archive *Archive
}

// Open parses the 7z archive readable through ra (of the given total
// size) and returns a Reader ready to list and extract entries.
func Open(ra io.ReaderAt, size int64, cfg ReaderConfig) (*Reader, error) {
	r := &Reader{ra: ra, size: size, cfg: cfg}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) init() error {
	sr := io.NewSectionReader(r.ra, 0, r.size)
	sh, err := header.ReadStartHeader(sr)
	if err != nil {
		return err
	}

	if sh.NextHeaderSize == 0 {
		// An archive with no entries at all carries no end header.
		r.archive = &Archive{basePos: header.StartHeaderSize}
		return nil
	}

	headerPos := header.StartHeaderSize + int64(sh.NextHeaderOffset)
	raw := make([]byte, sh.NextHeaderSize)
	if _, err := sr.ReadAt(raw, headerPos); err != nil {
		return szerr.Wrap(szerr.MalformedMetadata, "end header", err)
	}
	if crc32.ChecksumIEEE(raw) != sh.NextHeaderCRC {
		return szerr.New(szerr.ChecksumMismatch, "end header", "next header CRC mismatch")
	}

	pr, err := header.Parse(raw)
	if err != nil {
		return err
	}

	var h *header.Header
	if pr.Encoded != nil {
		// The real header is itself stored as an encoded stream: decode
		// its sole block, then reparse.
		decoded, err := r.decodeMetaBlock(pr.Encoded)
		if err != nil {
			return err
		}
		pr2, err := header.Parse(decoded)
		if err != nil {
			return err
		}
		if pr2.Header == nil {
			return szerr.New(szerr.MalformedMetadata, "end header", "encoded header did not contain a header")
		}
		h = pr2.Header
	} else {
		h = pr.Header
	}

	return r.buildArchive(h)
}

// decodeMetaBlock decodes the single folder of an encoded-header
// StreamsInfo fully into memory; end headers are small relative to
// archive payloads, so this does not need block-level streaming.
func (r *Reader) decodeMetaBlock(si *header.StreamsInfo) ([]byte, error) {
	if si.PackInfo == nil || si.UnpackInfo == nil || len(si.UnpackInfo.Folders) != 1 {
		return nil, szerr.New(szerr.UnsupportedFeature, "encoded header", "expected exactly one folder")
	}
	f := si.UnpackInfo.Folders[0]
	packBase := header.StartHeaderSize + int64(si.PackInfo.PackPos)

	packReader, err := r.openPackedBlock(f, si.PackInfo, packBase, 0)
	if err != nil {
		return nil, err
	}
	rc, err := r.decodeBlock(&f, packReader, "encoded header")
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// openPackedBlock builds the single reader over a folder's (possibly
// multiple) packed input streams. Only folders needing exactly one
// packed stream are supported here (see internal/codec.Order).
func (r *Reader) openPackedBlock(f header.Folder, pi *header.PackInfo, packBase int64, packIndexOffset int) (io.Reader, error) {
	if len(f.PackedIndices) != 1 {
		return nil, szerr.New(szerr.UnsupportedFeature, "folder", "folders with more than one packed stream are not supported")
	}
	// This folder's own packed stream is the one and only entry at
	// packIndexOffset in the archive-wide PackInfo.PackSizes run for this
	// folder; PackedIndices[0] instead names which coder input consumes
	// it and is consulted by internal/codec, not here.
	idx := packIndexOffset

	var offset int64
	for i := 0; i < idx; i++ {
		offset += int64(pi.PackSizes[i])
	}
	size := int64(pi.PackSizes[idx])

	return bufio.NewReader(io.NewSectionReader(r.ra, packBase+offset, size)), nil
}

func (r *Reader) decodeBlock(f *header.Folder, packReader io.Reader, region string) (io.ReadCloser, error) {
	return codec.BuildDecodeChain(f, packReader, r.cfg.Password, r.cfg.MemLimitKB, region)
}

func (r *Reader) buildArchive(h *header.Header) error {
	a := &Archive{basePos: header.StartHeaderSize}

	if h.MainStreamsInfo != nil && h.MainStreamsInfo.UnpackInfo != nil {
		for _, f := range h.MainStreamsInfo.UnpackInfo.Folders {
			a.Blocks = append(a.Blocks, fromHeaderFolder(f))
		}
		r.attachPackOffsets(a, h.MainStreamsInfo)
		r.attachSubstreams(a, h.MainStreamsInfo)
	}

	if h.FilesInfo != nil {
		blockIdx, inBlock := 0, 0
		for _, fe := range h.FilesInfo.Files {
			e := Entry{
				Name:          fe.Name,
				HasStream:     fe.HasStream,
				IsDir:         fe.IsDir,
				IsAnti:        fe.IsAnti,
				HasCRC:        fe.HasCRC,
				CRC:           fe.CRC,
				Size:          fe.Size,
				HasModTime:    fe.HasMTime,
				ModTime:       fe.MTime,
				HasCreateTime: fe.HasCTime,
				CreateTime:    fe.CTime,
				HasAccessTime: fe.HasATime,
				AccessTime:    fe.ATime,
				HasAttributes: fe.HasAttributes,
				Attributes:    fe.Attributes,
			}
			if fe.HasStream {
				for blockIdx < len(a.Blocks) && inBlock >= a.Blocks[blockIdx].NumSubstreams {
					blockIdx++
					inBlock = 0
				}
				if blockIdx >= len(a.Blocks) {
					return szerr.New(szerr.MalformedMetadata, "files info", "more streamed entries than substreams")
				}
				e.blockIndex = blockIdx
				e.indexInBlock = inBlock
				e.Size = a.Blocks[blockIdx].EntrySizes[inBlock]
				e.HasCRC = a.Blocks[blockIdx].EntryHasCRC[inBlock]
				e.CRC = a.Blocks[blockIdx].EntryDigests[inBlock]
				inBlock++
			}
			a.Entries = append(a.Entries, e)
		}
	}

	r.archive = a
	return nil
}

func (r *Reader) attachPackOffsets(a *Archive, si *header.StreamsInfo) {
	if si.PackInfo == nil {
		return
	}
	packIdx := 0
	byteOffset := uint64(0)
	for i := range a.Blocks {
		n := len(a.Blocks[i].PackedIndices)
		if n == 0 {
			n = 1
		}
		sizes := si.PackInfo.PackSizes[packIdx : packIdx+n]
		a.Blocks[i].packSizes = append([]uint64(nil), sizes...)
		a.Blocks[i].packPos = si.PackInfo.PackPos + byteOffset
		for _, s := range sizes {
			byteOffset += s
		}
		packIdx += n
	}
}

func (r *Reader) attachSubstreams(a *Archive, si *header.StreamsInfo) {
	if si.SubStreamsInfo == nil {
		for i := range a.Blocks {
			a.Blocks[i].NumSubstreams = 1
			a.Blocks[i].EntrySizes = []uint64{a.Blocks[i].FinalUnpackSize()}
			a.Blocks[i].EntryHasCRC = []bool{a.Blocks[i].HasCRC}
			a.Blocks[i].EntryDigests = []uint32{a.Blocks[i].CRC}
		}
		return
	}
	ssi := si.SubStreamsInfo
	sizeIdx, digestIdx := 0, 0
	for i := range a.Blocks {
		n := int(ssi.NumUnpackStreamsInFolders[i])
		a.Blocks[i].NumSubstreams = n
		a.Blocks[i].EntrySizes = append([]uint64(nil), ssi.UnpackSizes[sizeIdx:sizeIdx+n]...)
		a.Blocks[i].EntryHasCRC = append([]bool(nil), ssi.DigestsDefined[digestIdx:digestIdx+n]...)
		a.Blocks[i].EntryDigests = append([]uint32(nil), ssi.Digests[digestIdx:digestIdx+n]...)
		sizeIdx += n
		digestIdx += n
	}
}

// Archive returns the parsed archive metadata: every block and entry,
// without any payload bytes read yet.
func (r *Reader) Archive() *Archive { return r.archive }

// ForEachEntry visits every entry in archive order, opening each
// stream-bearing entry's content lazily only when visit requests it by
// calling the supplied open func. Directory and anti-item entries carry
// a nil open func.
func (r *Reader) ForEachEntry(visit func(e Entry, open func() (io.ReadCloser, error)) error) error {
	// Each block's decode chain is built lazily, the first time one of
	// its substreams is opened, and substreams are peeled off in order,
	// matching the solid archive's sole valid read order (spec.md §3.2,
	// §6.1).
	cursor := make(map[int]*blockCursor)
	for i, e := range r.archive.Entries {
		var open func() (io.ReadCloser, error)
		if e.HasStream {
			bi, idx := e.blockIndex, i
			open = func() (io.ReadCloser, error) {
				bc := cursor[bi]
				if bc == nil {
					var err error
					bc, err = r.openBlockCursor(bi)
					if err != nil {
						return nil, err
					}
					cursor[bi] = bc
				}
				return bc.next(r.archive.Entries[idx])
			}
		}
		if err := visit(e, open); err != nil {
			return err
		}
	}
	return nil
}

// ReadEntry returns a ReadCloser over the single named entry's
// decompressed bytes, decoding (and discarding) every preceding
// substream in its block to reach it. For random access across many
// entries in the same solid block, prefer BlockDecoder.
func (r *Reader) ReadEntry(name string) (io.ReadCloser, error) {
	for i, e := range r.archive.Entries {
		if e.Name != name {
			continue
		}
		if !e.HasStream {
			return nil, szerr.New(szerr.MalformedMetadata, name, "entry has no stream")
		}
		bc, err := r.openBlockCursor(e.blockIndex)
		if err != nil {
			return nil, err
		}
		for j := 0; j < e.indexInBlock; j++ {
			discard, err := bc.next(r.archive.Entries[blockEntryAt(r.archive, e.blockIndex, j)])
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(io.Discard, discard); err != nil {
				return nil, err
			}
			discard.Close()
		}
		return bc.next(r.archive.Entries[i])
	}
	return nil, szerr.New(szerr.MalformedMetadata, name, "no such entry")
}

func blockEntryAt(a *Archive, blockIdx, indexInBlock int) int {
	for i, e := range a.Entries {
		if e.HasStream && e.blockIndex == blockIdx && e.indexInBlock == indexInBlock {
			return i
		}
	}
	return -1
}

// blockCursor decodes one block's substreams in order, each next call
// handing back exactly one substream's bytes as an independent
// io.ReadCloser whose Close drains any unread remainder so the
// underlying chain stays positioned for the next substream.
type blockCursor struct {
	rc      io.ReadCloser
	nextIdx int
}

func (bc *blockCursor) next(e Entry) (io.ReadCloser, error) {
	if e.indexInBlock != bc.nextIdx {
		return nil, szerr.New(szerr.UnsupportedFeature, e.Name, "substreams must be read in block order")
	}
	bc.nextIdx++
	limited := plumbing.LimitReadCloser(io.NopCloser(bc.rc), int64(e.Size))
	crc := crc32.NewIEEE()
	return &substreamReader{rc: plumbing.TeeReadCloser(limited, crc), crc: crc, want: e}, nil
}

type substreamReader struct {
	rc   io.ReadCloser
	crc  hashWriter
	want Entry
}

// hashWriter is the subset of hash.Hash32 a substreamReader needs.
type hashWriter interface {
	io.Writer
	Sum32() uint32
}

func (s *substreamReader) Read(p []byte) (int, error) {
	n, err := s.rc.Read(p)
	if err == io.EOF {
		if s.want.HasCRC && s.crc.Sum32() != s.want.CRC {
			return n, szerr.New(szerr.ChecksumMismatch, s.want.Name, "entry CRC mismatch")
		}
	}
	return n, err
}

func (s *substreamReader) Close() error {
	_, err := io.Copy(io.Discard, s.rc)
	return err
}

func (r *Reader) openBlockCursor(blockIdx int) (*blockCursor, error) {
	b := &r.archive.Blocks[blockIdx]
	region := entryRegion(blockIdx)

	hf := toHeaderFolder(b)
	packBase := r.archive.basePos + int64(b.packPos)
	packReader, err := r.openPackedBlock(hf, &header.PackInfo{PackSizes: b.packSizes}, packBase, 0)
	if err != nil {
		return nil, err
	}
	rc, err := r.decodeBlock(&hf, packReader, region)
	if err != nil {
		return nil, err
	}
	return &blockCursor{rc: rc}, nil
}

func entryRegion(blockIdx int) string {
	return "block " + strconv.Itoa(blockIdx)
}

func toHeaderFolder(b *Block) header.Folder {
	hf := header.Folder{
		PackedIndices: append([]uint64(nil), b.PackedIndices...),
		UnpackSizes:   append([]uint64(nil), b.UnpackSizes...),
		HasCRC:        b.HasCRC,
		CRC:           b.CRC,
	}
	for _, c := range b.Coders {
		hf.Coders = append(hf.Coders, header.Coder{
			Method:     c.Method,
			NumIn:      c.NumIn,
			NumOut:     c.NumOut,
			Properties: c.Properties,
		})
	}
	for _, bp := range b.BindPairs {
		hf.BindPairs = append(hf.BindPairs, header.BindPair{InIndex: bp.InIndex, OutIndex: bp.OutIndex})
	}
	return hf
}
