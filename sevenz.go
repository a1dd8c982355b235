// Package sevenz implements a 7z archive container engine: parsing and
// writing the 7z binary format, composing its per-block codec pipelines,
// and streaming entries in and out without holding a whole archive in
// memory. Codec kernels (LZMA2, Brotli, AES256_SHA256, ...) are wired in
// from internal/codec; this package owns the archive model, the Reader
// and Writer state machines, and block-level random access.
//
// Styled after saracen/go7z's Reader (see
// other_examples/b84ff533_saracen-go7z__reader.go.go) and
// bodgit/sevenzip's folder/entry model (see
// other_examples/0219355d_bodgit-sevenzip__struct.go.go), in the ambient
// idiom of dsnet/compress (package-local Error type, *Config option
// structs).
package sevenz

import (
	"time"

	"github.com/sevenzlib/sevenz/internal/header"
)

// Coder is one stage of a Block's decompression pipeline.
type Coder struct {
	Method     []byte
	NumIn      uint64
	NumOut     uint64
	Properties []byte
}

// BindPair links one coder's input stream to another coder's output
// stream, chaining pipeline stages together.
type BindPair struct {
	InIndex  uint64
	OutIndex uint64
}

// Block is one "folder": a packed-stream group decoded by a chain of
// coders into one or more unpacked substreams. spec.md's Open Question
// on non-linear bind pairs is resolved by internal/codec.Order, which
// rejects any Block whose coders aren't a single 1-in/1-out chain.
type Block struct {
	Coders        []Coder
	BindPairs     []BindPair
	PackedIndices []uint64
	UnpackSizes   []uint64
	HasCRC        bool
	CRC           uint32

	// NumSubstreams is how many entries this block's decompressed bytes
	// are split into; EntrySizes/EntryDigests/EntryHasCRC describe each one.
	NumSubstreams int
	EntrySizes    []uint64
	EntryDigests  []uint32
	EntryHasCRC   []bool

	packPos   uint64
	packSizes []uint64
}

// FinalUnpackSize is the total number of decompressed bytes this block
// produces before substream splitting.
func (b *Block) FinalUnpackSize() uint64 {
	for i := range b.Coders {
		used := false
		for _, bp := range b.BindPairs {
			if bp.OutIndex == uint64(i) {
				used = true
				break
			}
		}
		if !used {
			if i < len(b.UnpackSizes) {
				return b.UnpackSizes[i]
			}
		}
	}
	if len(b.UnpackSizes) > 0 {
		return b.UnpackSizes[len(b.UnpackSizes)-1]
	}
	return 0
}

// Entry is one file, directory, or anti-item record in an archive.
type Entry struct {
	Name string

	HasStream bool
	IsDir     bool
	IsAnti    bool

	HasCRC bool
	CRC    uint32
	Size   uint64

	ModTime    time.Time
	HasModTime bool
	CreateTime time.Time
	HasCreateTime bool
	AccessTime time.Time
	HasAccessTime bool

	HasAttributes bool
	Attributes    uint32

	// blockIndex/indexInBlock locate this entry's bytes within
	// Archive.Blocks, set by Reader when parsing FilesInfo against
	// SubStreamsInfo. Entries with HasStream==false carry neither.
	blockIndex   int
	indexInBlock int
}

// Archive is the parsed, in-memory model of a 7z file's metadata: every
// block and every entry, but none of the actual compressed payload bytes
// (those are read on demand via Reader/BlockDecoder).
type Archive struct {
	Blocks  []Block
	Entries []Entry

	// basePos is the byte offset of the first packed stream, i.e. just
	// past the 32-byte start header (spec.md §3.1).
	basePos int64
}

func fromHeaderFolder(f header.Folder) Block {
	b := Block{
		PackedIndices: append([]uint64(nil), f.PackedIndices...),
		UnpackSizes:   append([]uint64(nil), f.UnpackSizes...),
		HasCRC:        f.HasCRC,
		CRC:           f.CRC,
	}
	for _, c := range f.Coders {
		b.Coders = append(b.Coders, Coder{
			Method:     append([]byte(nil), c.Method...),
			NumIn:      c.NumIn,
			NumOut:     c.NumOut,
			Properties: append([]byte(nil), c.Properties...),
		})
	}
	for _, bp := range f.BindPairs {
		b.BindPairs = append(b.BindPairs, BindPair{InIndex: bp.InIndex, OutIndex: bp.OutIndex})
	}
	return b
}
