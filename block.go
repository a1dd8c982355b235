package sevenz

import (
	"bufio"
	"io"

	"github.com/sevenzlib/sevenz/internal/codec"
	"github.com/sevenzlib/sevenz/internal/szerr"
)

// BlockDecoder opens archive.Blocks[blockIndex]'s full decompressed
// stream directly, without first opening a Reader over the whole
// archive: given just the parsed Archive metadata and something that can
// read the archive's raw bytes at an offset, it rebuilds that one
// block's codec chain and returns its decompressed bytes. This is the
// block-level extraction path spec.md §6.2 calls for, letting a caller
// hold only a single block's metadata (e.g. from a prior Archive()
// snapshot) and a file handle opened fresh for this one read.
//
// The returned stream concatenates every substream in the block; split
// it into individual entries using Block.EntrySizes if needed.
func BlockDecoder(archive *Archive, blockIndex int, password []byte, memLimitKB int64, source io.ReaderAt) (io.ReadCloser, error) {
	if blockIndex < 0 || blockIndex >= len(archive.Blocks) {
		return nil, szerr.New(szerr.MalformedMetadata, "block decoder", "block index out of range")
	}
	b := &archive.Blocks[blockIndex]

	hf := toHeaderFolder(b)
	if len(hf.PackedIndices) != 1 {
		return nil, szerr.New(szerr.UnsupportedFeature, "block decoder", "folders with more than one packed stream are not supported")
	}

	// b.packSizes holds this one block's own pack-stream size run; the
	// supported linear-chain case always has exactly one entry in it.
	packBase := archive.basePos + int64(b.packPos)
	size := int64(b.packSizes[0])
	packReader := bufio.NewReader(io.NewSectionReader(source, packBase, size))

	region := entryRegion(blockIndex)
	return codec.BuildDecodeChain(&hf, packReader, password, memLimitKB, region)
}
