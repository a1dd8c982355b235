package header

import "time"

// Coder is one node of a block's codec pipeline. Method is the raw,
// big-endian method id as stored on disk (1-4 bytes); Properties is the
// opaque, method-specific property blob. Grounded on
// other_examples/0219355d_bodgit-sevenzip__struct.go.go's coder type.
type Coder struct {
	Method     []byte
	NumIn      uint64
	NumOut     uint64
	Properties []byte
}

// BindPair describes which coder output feeds which coder input in a
// block whose chain is not purely linear.
type BindPair struct {
	InIndex  uint64
	OutIndex uint64
}

// Folder is one compression unit ("block" in spec.md vocabulary; the
// on-disk term is kept here since this package mirrors the wire format
// 1:1, same as bodgit/sevenzip's struct.go naming this type "folder").
type Folder struct {
	Coders          []Coder
	BindPairs       []BindPair
	PackedIndices   []uint64 // which coder inputs are fed directly from pack streams, in order
	UnpackSizes     []uint64 // per output-stream, in coder declaration order
	HasCRC          bool
	CRC             uint32
	NumUnpackStreams uint64 // from SubStreamsInfo; defaults to 1
}

// FindBindPairForInIndex returns the bind pair whose InIndex matches i, if any.
func (f *Folder) FindBindPairForInIndex(i uint64) *BindPair {
	for k := range f.BindPairs {
		if f.BindPairs[k].InIndex == i {
			return &f.BindPairs[k]
		}
	}
	return nil
}

// FindBindPairForOutIndex returns the bind pair whose OutIndex matches i, if any.
func (f *Folder) FindBindPairForOutIndex(i uint64) *BindPair {
	for k := range f.BindPairs {
		if f.BindPairs[k].OutIndex == i {
			return &f.BindPairs[k]
		}
	}
	return nil
}

// NumOutStreams returns the total number of coder outputs in the folder.
func (f *Folder) NumOutStreams() uint64 {
	var n uint64
	for _, c := range f.Coders {
		n += c.NumOut
	}
	return n
}

// NumInStreams returns the total number of coder inputs in the folder.
func (f *Folder) NumInStreams() uint64 {
	var n uint64
	for _, c := range f.Coders {
		n += c.NumIn
	}
	return n
}

// FinalUnpackSize returns the size of the folder's single unbound output
// stream: the decompressed payload size of the whole block.
func (f *Folder) FinalUnpackSize() uint64 {
	if len(f.UnpackSizes) == 0 {
		return 0
	}
	for i := len(f.UnpackSizes) - 1; i >= 0; i-- {
		if f.FindBindPairForOutIndex(uint64(i)) == nil {
			return f.UnpackSizes[i]
		}
	}
	return f.UnpackSizes[len(f.UnpackSizes)-1]
}

// PackInfo records the pack stream region of the archive.
type PackInfo struct {
	PackPos     uint64
	PackSizes   []uint64
	HasCRCs     []bool
	CRCs        []uint32
}

// UnpackInfo records the per-block coder graphs.
type UnpackInfo struct {
	Folders []Folder
}

// SubStreamsInfo records per-substream sizes and CRCs within each folder.
type SubStreamsInfo struct {
	NumUnpackStreamsInFolders []uint64
	UnpackSizes               []uint64
	Digests                   []uint32
	DigestsDefined            []bool
}

// StreamsInfo is the top-level MainStreamsInfo (or AdditionalStreamsInfo)
// scope.
type StreamsInfo struct {
	PackInfo       *PackInfo
	UnpackInfo     *UnpackInfo
	SubStreamsInfo *SubStreamsInfo
}

// FileEntry is one record from FilesInfo.
type FileEntry struct {
	Name            string
	HasStream       bool
	IsDir           bool
	IsAnti          bool
	HasCRC          bool
	CRC             uint32
	Size            uint64
	HasMTime        bool
	MTime           time.Time
	HasCTime        bool
	CTime           time.Time
	HasATime        bool
	ATime           time.Time
	HasAttributes   bool
	Attributes      uint32
}

// FilesInfo is the parsed FilesInfo scope.
type FilesInfo struct {
	Files []FileEntry
}

// Header is the fully parsed end-header tree.
type Header struct {
	MainStreamsInfo *StreamsInfo
	FilesInfo       *FilesInfo
}
