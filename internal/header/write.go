package header

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"github.com/sevenzlib/sevenz/internal/bitio"
)

// treeWriter accumulates a tagged tree scope into an in-memory buffer.
type treeWriter struct {
	buf bytes.Buffer
}

func (w *treeWriter) writeByte(b byte) { w.buf.WriteByte(b) }

func (w *treeWriter) writeUint64(v uint64) {
	_ = bitio.WriteUint64(&w.buf, v)
}

func (w *treeWriter) writeBytes(b []byte) { w.buf.Write(b) }

func (w *treeWriter) writeU32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *treeWriter) writeU64LE(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// Write serializes h as the (uncompressed) end-header tree and returns the
// raw bytes, ready to either be written directly or passed through a codec
// chain to build an EncodedHeader wrapper.
func Write(h *Header) []byte {
	w := &treeWriter{}
	w.writeByte(idHeader)

	if h.MainStreamsInfo != nil {
		w.writeByte(idMainStreamsInfo)
		writeStreamsInfo(w, h.MainStreamsInfo)
	}

	if h.FilesInfo != nil {
		w.writeByte(idFilesInfo)
		writeFilesInfo(w, h.FilesInfo)
	}

	w.writeByte(idEnd)
	return w.buf.Bytes()
}

// WrapEncoded serializes a single-folder StreamsInfo describing how the
// real header was compressed, producing the on-disk
// "EncodedHeader" wrapper.
func WrapEncoded(si *StreamsInfo) []byte {
	w := &treeWriter{}
	w.writeByte(idEncodedHeader)
	writeStreamsInfo(w, si)
	return w.buf.Bytes()
}

func writeStreamsInfo(w *treeWriter, si *StreamsInfo) {
	if si.PackInfo != nil {
		w.writeByte(idPackInfo)
		writePackInfo(w, si.PackInfo)
	}
	if si.UnpackInfo != nil {
		w.writeByte(idUnpackInfo)
		writeUnpackInfo(w, si.UnpackInfo)
	}
	if si.SubStreamsInfo != nil && needsExplicitSubStreamsInfo(si) {
		w.writeByte(idSubStreamsInfo)
		writeSubStreamsInfo(w, si)
	}
	w.writeByte(idEnd)
}

// needsExplicitSubStreamsInfo reports whether the substream layout differs
// from the implicit "one substream per folder" default, in which case it
// must be spelled out.
func needsExplicitSubStreamsInfo(si *StreamsInfo) bool {
	for _, c := range si.SubStreamsInfo.NumUnpackStreamsInFolders {
		if c != 1 {
			return true
		}
	}
	needed := needDigestSlots(si)
	for i, d := range si.SubStreamsInfo.DigestsDefined {
		if needed[i] && d {
			return true
		}
	}
	return false
}

// needDigestSlots mirrors parseSubStreamsInfo's exclusion rule: a folder
// whose sole substream is already covered by a folder-level CRC carries no
// substream digest of its own on the wire.
func needDigestSlots(si *StreamsInfo) []bool {
	counts := si.SubStreamsInfo.NumUnpackStreamsInFolders
	total := 0
	for _, c := range counts {
		total += int(c)
	}
	needed := make([]bool, 0, total)
	for fi, count := range counts {
		if count == 1 && si.UnpackInfo != nil && si.UnpackInfo.Folders[fi].HasCRC {
			needed = append(needed, false)
			continue
		}
		for i := uint64(0); i < count; i++ {
			needed = append(needed, true)
		}
	}
	return needed
}

func writePackInfo(w *treeWriter, pi *PackInfo) {
	w.writeUint64(pi.PackPos)
	w.writeUint64(uint64(len(pi.PackSizes)))

	w.writeByte(idSize)
	for _, s := range pi.PackSizes {
		w.writeUint64(s)
	}

	if hasAnyDefined(pi.HasCRCs) {
		w.writeByte(idCRC)
		writeDigests(w, pi.HasCRCs, pi.CRCs)
	}

	w.writeByte(idEnd)
}

func hasAnyDefined(defined []bool) bool {
	for _, d := range defined {
		if d {
			return true
		}
	}
	return false
}

func writeDigests(w *treeWriter, defined []bool, digests []uint32) {
	_ = bitio.WriteBoolVector(&w.buf, defined)
	for i, d := range defined {
		if d {
			w.writeU32LE(digests[i])
		}
	}
}

func writeUnpackInfo(w *treeWriter, ui *UnpackInfo) {
	w.writeByte(idFolder)
	w.writeUint64(uint64(len(ui.Folders)))
	w.writeByte(0) // external = inline

	for i := range ui.Folders {
		writeFolder(w, &ui.Folders[i])
	}

	w.writeByte(idCodersUnpackSize)
	for i := range ui.Folders {
		for _, s := range ui.Folders[i].UnpackSizes {
			w.writeUint64(s)
		}
	}

	hasAny := false
	for _, f := range ui.Folders {
		if f.HasCRC {
			hasAny = true
			break
		}
	}
	if hasAny {
		w.writeByte(idCRC)
		defined := make([]bool, len(ui.Folders))
		digests := make([]uint32, len(ui.Folders))
		for i, f := range ui.Folders {
			defined[i], digests[i] = f.HasCRC, f.CRC
		}
		writeDigests(w, defined, digests)
	}

	w.writeByte(idEnd)
}

func writeFolder(w *treeWriter, f *Folder) {
	w.writeUint64(uint64(len(f.Coders)))

	for _, c := range f.Coders {
		flag := byte(len(c.Method)) & 0x0F
		isComplex := c.NumIn != 1 || c.NumOut != 1
		hasAttrs := len(c.Properties) > 0
		if isComplex {
			flag |= 0x10
		}
		if hasAttrs {
			flag |= 0x20
		}
		w.writeByte(flag)
		w.writeBytes(c.Method)
		if isComplex {
			w.writeUint64(c.NumIn)
			w.writeUint64(c.NumOut)
		}
		if hasAttrs {
			w.writeUint64(uint64(len(c.Properties)))
			w.writeBytes(c.Properties)
		}
	}

	for _, bp := range f.BindPairs {
		w.writeUint64(bp.InIndex)
		w.writeUint64(bp.OutIndex)
	}

	if len(f.Coders) > 1 {
		for _, idx := range f.PackedIndices {
			w.writeUint64(idx)
		}
	}
}

func writeFilesInfo(w *treeWriter, fi *FilesInfo) {
	n := len(fi.Files)
	w.writeUint64(uint64(n))

	var emptyStream, emptyFile, anti []bool
	numNonEmpty := 0
	for _, f := range fi.Files {
		emptyStream = append(emptyStream, !f.HasStream)
		if !f.HasStream {
			emptyFile = append(emptyFile, !f.IsDir)
			anti = append(anti, f.IsAnti)
		} else {
			numNonEmpty++
		}
	}

	if hasAnyDefined(emptyStream) {
		writeProp(w, idEmptyStream, func(pw *treeWriter) {
			_ = bitio.WriteBitVector(&pw.buf, emptyStream)
		})
	}
	if hasAnyDefined(emptyFile) {
		writeProp(w, idEmptyFile, func(pw *treeWriter) {
			_ = bitio.WriteBitVector(&pw.buf, emptyFile)
		})
	}
	if hasAnyDefined(anti) {
		writeProp(w, idAnti, func(pw *treeWriter) {
			_ = bitio.WriteBitVector(&pw.buf, anti)
		})
	}

	writeProp(w, idName, func(pw *treeWriter) {
		pw.writeByte(0) // external = inline
		for _, f := range fi.Files {
			for _, r := range utf16.Encode([]rune(f.Name)) {
				var b [2]byte
				binary.LittleEndian.PutUint16(b[:], r)
				pw.writeBytes(b[:])
			}
			pw.writeBytes([]byte{0, 0})
		}
	})

	attrDefined := make([]bool, n)
	hasAnyAttr := false
	for i, f := range fi.Files {
		attrDefined[i] = f.HasAttributes
		if f.HasAttributes {
			hasAnyAttr = true
		}
	}
	if hasAnyAttr {
		writeProp(w, idWinAttributes, func(pw *treeWriter) {
			_ = bitio.WriteBoolVector(&pw.buf, attrDefined)
			pw.writeByte(0)
			for i, f := range fi.Files {
				if attrDefined[i] {
					pw.writeU32LE(f.Attributes)
				}
			}
		})
	}

	writeTimeProp(w, idMTime, fi.Files, func(f FileEntry) (bool, uint64) { return f.HasMTime, timeToFiletime(f.MTime) })
	writeTimeProp(w, idCTime, fi.Files, func(f FileEntry) (bool, uint64) { return f.HasCTime, timeToFiletime(f.CTime) })
	writeTimeProp(w, idATime, fi.Files, func(f FileEntry) (bool, uint64) { return f.HasATime, timeToFiletime(f.ATime) })

	w.writeByte(idEnd)
}

func writeTimeProp(w *treeWriter, id byte, files []FileEntry, get func(FileEntry) (bool, uint64)) {
	defined := make([]bool, len(files))
	hasAny := false
	for i, f := range files {
		has, _ := get(f)
		defined[i] = has
		if has {
			hasAny = true
		}
	}
	if !hasAny {
		return
	}
	writeProp(w, id, func(pw *treeWriter) {
		_ = bitio.WriteBoolVector(&pw.buf, defined)
		pw.writeByte(0)
		for i, f := range files {
			if defined[i] {
				_, ticks := get(f)
				pw.writeU64LE(ticks)
			}
		}
	})
}

// writeProp serializes a length-prefixed property chunk using a scratch
// treeWriter for the body, matching FilesInfo's "tagged chunk with byte
// length" grammar (spec.md §4.E step 6).
func writeProp(w *treeWriter, id byte, body func(*treeWriter)) {
	pw := &treeWriter{}
	body(pw)
	w.writeByte(id)
	w.writeUint64(uint64(pw.buf.Len()))
	w.writeBytes(pw.buf.Bytes())
}

func writeSubStreamsInfo(w *treeWriter, si *StreamsInfo) {
	ssi := si.SubStreamsInfo

	needCounts := false
	for _, c := range ssi.NumUnpackStreamsInFolders {
		if c != 1 {
			needCounts = true
			break
		}
	}
	if needCounts {
		w.writeByte(idNumUnpackStream)
		for _, c := range ssi.NumUnpackStreamsInFolders {
			w.writeUint64(c)
		}
	}

	w.writeByte(idSize)
	idx := 0
	for _, count := range ssi.NumUnpackStreamsInFolders {
		for i := uint64(0); i+1 < count; i++ {
			w.writeUint64(ssi.UnpackSizes[idx])
			idx++
		}
		idx++ // skip the implicit last size
	}

	needed := needDigestSlots(si)
	var defined []bool
	var digests []uint32
	for i, n := range needed {
		if !n {
			continue
		}
		defined = append(defined, ssi.DigestsDefined[i])
		digests = append(digests, ssi.Digests[i])
	}
	if hasAnyDefined(defined) {
		w.writeByte(idCRC)
		writeDigests(w, defined, digests)
	}
}
