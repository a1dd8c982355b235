package header

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"time"
	"unicode/utf16"

	"github.com/sevenzlib/sevenz/internal/bitio"
	"github.com/sevenzlib/sevenz/internal/szerr"
)

// StartHeader is the fixed 32-byte prefix that locates the end header.
type StartHeader struct {
	NextHeaderOffset uint64
	NextHeaderSize   uint64
	NextHeaderCRC    uint32
}

// ReadStartHeader parses and validates the 32-byte start header from r.
func ReadStartHeader(r io.Reader) (StartHeader, error) {
	var buf [StartHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return StartHeader{}, szerr.Wrap(szerr.BadSignature, "start header", err)
	}
	if !bytes.Equal(buf[0:6], Signature[:]) {
		return StartHeader{}, szerr.New(szerr.BadSignature, "start header", "signature mismatch")
	}

	startHeaderCRC := binary.LittleEndian.Uint32(buf[8:12])
	if bitio.CRC32(buf[12:32]) != startHeaderCRC {
		return StartHeader{}, szerr.New(szerr.ChecksumMismatch, "start header", "start header CRC mismatch")
	}

	return StartHeader{
		NextHeaderOffset: binary.LittleEndian.Uint64(buf[12:20]),
		NextHeaderSize:   binary.LittleEndian.Uint64(buf[20:28]),
		NextHeaderCRC:    binary.LittleEndian.Uint32(buf[28:32]),
	}, nil
}

// WriteStartHeader serializes sh as the fixed 32-byte start header.
func WriteStartHeader(w io.Writer, sh StartHeader) error {
	var buf [StartHeaderSize]byte
	copy(buf[0:6], Signature[:])
	buf[6] = 0 // version major
	buf[7] = 4 // version minor
	binary.LittleEndian.PutUint64(buf[12:20], sh.NextHeaderOffset)
	binary.LittleEndian.PutUint64(buf[20:28], sh.NextHeaderSize)
	binary.LittleEndian.PutUint32(buf[28:32], sh.NextHeaderCRC)
	binary.LittleEndian.PutUint32(buf[8:12], bitio.CRC32(buf[12:32]))
	_, err := w.Write(buf[:])
	return err
}

// treeReader adapts a bufio.Reader to the io.ByteReader interface used by
// the bitio primitives, while giving us bufio's buffering for small reads.
type treeReader struct {
	*bufio.Reader
}

func newTreeReader(data []byte) *treeReader {
	return &treeReader{bufio.NewReader(bytes.NewReader(data))}
}

func (t *treeReader) readID() (byte, error) {
	return t.ReadByte()
}

func (t *treeReader) readUint64() (uint64, error) {
	v, err := bitio.ReadUint64(t.Reader)
	if err != nil {
		return 0, szerr.Wrap(szerr.MalformedMetadata, "header tree", err)
	}
	return v, nil
}

func (t *treeReader) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.Reader, buf); err != nil {
		return nil, szerr.Wrap(szerr.MalformedMetadata, "header tree", err)
	}
	return buf, nil
}

func (t *treeReader) expect(id byte) error {
	got, err := t.readID()
	if err != nil {
		return szerr.Wrap(szerr.MalformedMetadata, "header tree", err)
	}
	if got != id {
		return szerr.New(szerr.MalformedMetadata, "header tree", "unexpected property id")
	}
	return nil
}

// ParseResult is either a fully parsed Header, or (when the end header was
// itself compressed) the StreamsInfo describing how to decompress it.
type ParseResult struct {
	Header  *Header
	Encoded *StreamsInfo // non-nil when the real header must be decoded first
}

// Parse parses the raw end-header bytes (already CRC-verified by the
// caller against the start header's NextHeaderCRC).
func Parse(data []byte) (*ParseResult, error) {
	t := newTreeReader(data)
	id, err := t.readID()
	if err != nil {
		return nil, szerr.Wrap(szerr.MalformedMetadata, "header tree", err)
	}

	if id == idEncodedHeader {
		si, err := parseStreamsInfo(t)
		if err != nil {
			return nil, err
		}
		return &ParseResult{Encoded: si}, nil
	}

	if id != idHeader {
		return nil, szerr.New(szerr.MalformedMetadata, "header tree", "top-level id is not Header")
	}

	h, err := parseHeaderBody(t)
	if err != nil {
		return nil, err
	}
	return &ParseResult{Header: h}, nil
}

func parseHeaderBody(t *treeReader) (*Header, error) {
	h := &Header{}

	id, err := t.readID()
	if err != nil {
		return nil, err
	}

	if id == idArchiveProperties {
		if err := skipArchiveProperties(t); err != nil {
			return nil, err
		}
		id, err = t.readID()
		if err != nil {
			return nil, err
		}
	}

	if id == idAdditionalStreamsInfo {
		// Additional streams (external data for names/attributes) are not
		// produced by this engine's writer and are not required to
		// interpret MainStreamsInfo/FilesInfo; skip the scope.
		if _, err := parseStreamsInfo(t); err != nil {
			return nil, err
		}
		id, err = t.readID()
		if err != nil {
			return nil, err
		}
	}

	if id == idMainStreamsInfo {
		si, err := parseStreamsInfo(t)
		if err != nil {
			return nil, err
		}
		h.MainStreamsInfo = si
		id, err = t.readID()
		if err != nil {
			return nil, err
		}
	}

	if id == idFilesInfo {
		fi, err := parseFilesInfo(t)
		if err != nil {
			return nil, err
		}
		h.FilesInfo = fi
		id, err = t.readID()
		if err != nil {
			return nil, err
		}
	}

	if id != idEnd {
		return nil, szerr.New(szerr.MalformedMetadata, "header tree", "trailing unknown property")
	}

	return h, nil
}

func skipArchiveProperties(t *treeReader) error {
	for {
		id, err := t.readID()
		if err != nil {
			return err
		}
		if id == idEnd {
			return nil
		}
		n, err := t.readUint64()
		if err != nil {
			return err
		}
		if _, err := t.readFull(int(n)); err != nil {
			return err
		}
	}
}

func parseStreamsInfo(t *treeReader) (*StreamsInfo, error) {
	si := &StreamsInfo{}

	id, err := t.readID()
	if err != nil {
		return nil, err
	}

	if id == idPackInfo {
		pi, err := parsePackInfo(t)
		if err != nil {
			return nil, err
		}
		si.PackInfo = pi
		id, err = t.readID()
		if err != nil {
			return nil, err
		}
	}

	if id == idUnpackInfo {
		ui, err := parseUnpackInfo(t)
		if err != nil {
			return nil, err
		}
		si.UnpackInfo = ui
		id, err = t.readID()
		if err != nil {
			return nil, err
		}
	}

	if id == idSubStreamsInfo {
		ssi, err := parseSubStreamsInfo(t, si.UnpackInfo)
		if err != nil {
			return nil, err
		}
		si.SubStreamsInfo = ssi
		id, err = t.readID()
		if err != nil {
			return nil, err
		}
	} else if si.UnpackInfo != nil {
		// No SubStreamsInfo means exactly one substream per folder, equal
		// to the folder's final unpack size (spec.md §4.E step 5).
		ssi := &SubStreamsInfo{}
		for _, f := range si.UnpackInfo.Folders {
			ssi.NumUnpackStreamsInFolders = append(ssi.NumUnpackStreamsInFolders, 1)
			ssi.UnpackSizes = append(ssi.UnpackSizes, f.FinalUnpackSize())
			if f.HasCRC {
				ssi.Digests = append(ssi.Digests, f.CRC)
				ssi.DigestsDefined = append(ssi.DigestsDefined, true)
			} else {
				ssi.Digests = append(ssi.Digests, 0)
				ssi.DigestsDefined = append(ssi.DigestsDefined, false)
			}
		}
		si.SubStreamsInfo = ssi
	}

	if id != idEnd {
		return nil, szerr.New(szerr.MalformedMetadata, "streams info", "trailing unknown property")
	}

	return si, nil
}

func parsePackInfo(t *treeReader) (*PackInfo, error) {
	pos, err := t.readUint64()
	if err != nil {
		return nil, err
	}
	numPack, err := t.readUint64()
	if err != nil {
		return nil, err
	}

	pi := &PackInfo{PackPos: pos}

	for {
		id, err := t.readID()
		if err != nil {
			return nil, err
		}
		switch id {
		case idSize:
			pi.PackSizes = make([]uint64, numPack)
			for i := range pi.PackSizes {
				v, err := t.readUint64()
				if err != nil {
					return nil, err
				}
				pi.PackSizes[i] = v
			}
		case idCRC:
			defined, digests, err := parseDigests(t, int(numPack))
			if err != nil {
				return nil, err
			}
			pi.HasCRCs = defined
			pi.CRCs = digests
		case idEnd:
			return pi, nil
		default:
			return nil, szerr.New(szerr.MalformedMetadata, "pack info", "unexpected property id")
		}
	}
}

func parseDigests(t *treeReader, n int) ([]bool, []uint32, error) {
	defined, err := bitio.ReadBoolVector(t.Reader, n)
	if err != nil {
		return nil, nil, szerr.Wrap(szerr.MalformedMetadata, "digests", err)
	}
	digests := make([]uint32, n)
	for i := 0; i < n; i++ {
		if !defined[i] {
			continue
		}
		buf, err := t.readFull(4)
		if err != nil {
			return nil, nil, err
		}
		digests[i] = binary.LittleEndian.Uint32(buf)
	}
	return defined, digests, nil
}

func parseUnpackInfo(t *treeReader) (*UnpackInfo, error) {
	if err := t.expect(idFolder); err != nil {
		return nil, err
	}
	numFolders, err := t.readUint64()
	if err != nil {
		return nil, err
	}
	external, err := t.ReadByte()
	if err != nil {
		return nil, szerr.Wrap(szerr.MalformedMetadata, "unpack info", err)
	}
	if external != 0 {
		return nil, szerr.New(szerr.UnsupportedFeature, "unpack info", "external folder data is not supported")
	}

	folders := make([]Folder, numFolders)
	for i := range folders {
		f, err := parseFolder(t)
		if err != nil {
			return nil, err
		}
		folders[i] = f
	}

	if err := t.expect(idCodersUnpackSize); err != nil {
		return nil, err
	}
	for i := range folders {
		n := int(folders[i].NumOutStreams())
		folders[i].UnpackSizes = make([]uint64, n)
		for j := 0; j < n; j++ {
			v, err := t.readUint64()
			if err != nil {
				return nil, err
			}
			folders[i].UnpackSizes[j] = v
		}
	}

	for {
		id, err := t.readID()
		if err != nil {
			return nil, err
		}
		switch id {
		case idCRC:
			defined, digests, err := parseDigests(t, len(folders))
			if err != nil {
				return nil, err
			}
			for i := range folders {
				folders[i].HasCRC = defined[i]
				folders[i].CRC = digests[i]
			}
		case idEnd:
			return &UnpackInfo{Folders: folders}, nil
		default:
			return nil, szerr.New(szerr.MalformedMetadata, "unpack info", "unexpected property id")
		}
	}
}

func parseFolder(t *treeReader) (Folder, error) {
	var f Folder

	numCoders, err := t.readUint64()
	if err != nil {
		return f, err
	}

	for i := uint64(0); i < numCoders; i++ {
		flag, err := t.ReadByte()
		if err != nil {
			return f, szerr.Wrap(szerr.MalformedMetadata, "folder", err)
		}
		idLen := int(flag & 0x0F)
		isComplex := flag&0x10 != 0
		hasAttrs := flag&0x20 != 0
		if flag&0x80 != 0 {
			return f, szerr.New(szerr.UnsupportedFeature, "folder", "reserved coder flag bit set")
		}

		method, err := t.readFull(idLen)
		if err != nil {
			return f, err
		}

		c := Coder{Method: method, NumIn: 1, NumOut: 1}
		if isComplex {
			in, err := t.readUint64()
			if err != nil {
				return f, err
			}
			out, err := t.readUint64()
			if err != nil {
				return f, err
			}
			c.NumIn, c.NumOut = in, out
		}
		if hasAttrs {
			n, err := t.readUint64()
			if err != nil {
				return f, err
			}
			props, err := t.readFull(int(n))
			if err != nil {
				return f, err
			}
			c.Properties = props
		}

		f.Coders = append(f.Coders, c)
	}

	numIn := f.NumInStreams()
	numOut := f.NumOutStreams()
	numBindPairs := numOut - 1

	for i := uint64(0); i < numBindPairs; i++ {
		in, err := t.readUint64()
		if err != nil {
			return f, err
		}
		out, err := t.readUint64()
		if err != nil {
			return f, err
		}
		f.BindPairs = append(f.BindPairs, BindPair{InIndex: in, OutIndex: out})
	}

	numPacked := numIn - numBindPairs
	if numPacked == 1 {
		// The sole input not covered by a bind pair is the pack stream.
		for i := uint64(0); i < numIn; i++ {
			if f.FindBindPairForInIndex(i) == nil {
				f.PackedIndices = []uint64{i}
				break
			}
		}
	} else {
		for i := uint64(0); i < numPacked; i++ {
			idx, err := t.readUint64()
			if err != nil {
				return f, err
			}
			f.PackedIndices = append(f.PackedIndices, idx)
		}
	}

	return f, nil
}

func parseSubStreamsInfo(t *treeReader, ui *UnpackInfo) (*SubStreamsInfo, error) {
	ssi := &SubStreamsInfo{}
	numFolders := 0
	if ui != nil {
		numFolders = len(ui.Folders)
	}

	counts := make([]uint64, numFolders)
	for i := range counts {
		counts[i] = 1
	}

	id, err := t.readID()
	if err != nil {
		return nil, err
	}
	if id == idNumUnpackStream {
		for i := range counts {
			v, err := t.readUint64()
			if err != nil {
				return nil, err
			}
			counts[i] = v
		}
		id, err = t.readID()
		if err != nil {
			return nil, err
		}
	}
	ssi.NumUnpackStreamsInFolders = counts

	// Per-substream sizes: for each folder, the first (count-1) streams
	// have an explicit size; the last is the folder's remaining size.
	if id == idSize {
		for fi, count := range counts {
			if count == 0 {
				continue
			}
			var sum uint64
			for i := uint64(0); i < count-1; i++ {
				v, err := t.readUint64()
				if err != nil {
					return nil, err
				}
				ssi.UnpackSizes = append(ssi.UnpackSizes, v)
				sum += v
			}
			ssi.UnpackSizes = append(ssi.UnpackSizes, ui.Folders[fi].FinalUnpackSize()-sum)
		}
		id, err = t.readID()
		if err != nil {
			return nil, err
		}
	} else {
		for fi, count := range counts {
			if count == 1 {
				ssi.UnpackSizes = append(ssi.UnpackSizes, ui.Folders[fi].FinalUnpackSize())
			} else if count > 1 {
				return nil, szerr.New(szerr.MalformedMetadata, "substreams info", "missing substream sizes")
			}
		}
	}

	totalStreams := 0
	for _, c := range counts {
		totalStreams += int(c)
	}

	// Digests: only required for folders whose single substream has no
	// folder-level CRC, or whose substream count != 1.
	needDigest := make([]bool, 0, totalStreams)
	for fi, count := range counts {
		if count == 1 && ui != nil && ui.Folders[fi].HasCRC {
			needDigest = append(needDigest, false)
		} else {
			for i := uint64(0); i < count; i++ {
				needDigest = append(needDigest, true)
			}
		}
	}

	ssi.Digests = make([]uint32, totalStreams)
	ssi.DigestsDefined = make([]bool, totalStreams)

	if id == idCRC {
		numNeeded := 0
		for _, v := range needDigest {
			if v {
				numNeeded++
			}
		}
		defined, digests, err := parseDigests(t, numNeeded)
		if err != nil {
			return nil, err
		}
		di := 0
		for i, need := range needDigest {
			if need {
				ssi.DigestsDefined[i] = defined[di]
				ssi.Digests[i] = digests[di]
				di++
			}
		}
		id, err = t.readID()
		if err != nil {
			return nil, err
		}
	} else {
		si := 0
		for fi, count := range counts {
			if count == 1 && ui != nil && ui.Folders[fi].HasCRC {
				ssi.DigestsDefined[si] = true
				ssi.Digests[si] = ui.Folders[fi].CRC
			}
			si += int(count)
		}
	}

	if id != idEnd {
		return nil, szerr.New(szerr.MalformedMetadata, "substreams info", "trailing unknown property")
	}

	return ssi, nil
}

func parseFilesInfo(t *treeReader) (*FilesInfo, error) {
	numFiles, err := t.readUint64()
	if err != nil {
		return nil, err
	}
	n := int(numFiles)

	files := make([]FileEntry, n)
	var emptyStream []bool
	var emptyFile []bool
	var anti []bool

	for {
		id, err := t.readID()
		if err != nil {
			return nil, err
		}
		if id == idEnd {
			break
		}

		size, err := t.readUint64()
		if err != nil {
			return nil, err
		}
		payload, err := t.readFull(int(size))
		if err != nil {
			return nil, err
		}
		pt := newTreeReader(payload)

		switch id {
		case idEmptyStream:
			emptyStream, err = bitio.ReadBitVector(pt.Reader, n)
			if err != nil {
				return nil, szerr.Wrap(szerr.MalformedMetadata, "files info", err)
			}
		case idEmptyFile:
			numEmptyStreams := 0
			for _, v := range emptyStream {
				if v {
					numEmptyStreams++
				}
			}
			emptyFile, err = bitio.ReadBitVector(pt.Reader, numEmptyStreams)
			if err != nil {
				return nil, szerr.Wrap(szerr.MalformedMetadata, "files info", err)
			}
		case idAnti:
			numEmptyStreams := 0
			for _, v := range emptyStream {
				if v {
					numEmptyStreams++
				}
			}
			anti, err = bitio.ReadBitVector(pt.Reader, numEmptyStreams)
			if err != nil {
				return nil, szerr.Wrap(szerr.MalformedMetadata, "files info", err)
			}
		case idName:
			external, err := pt.ReadByte()
			if err != nil {
				return nil, szerr.Wrap(szerr.MalformedMetadata, "names", err)
			}
			if external != 0 {
				return nil, szerr.New(szerr.UnsupportedFeature, "names", "external name data is not supported")
			}
			names, err := readNames(pt, n)
			if err != nil {
				return nil, err
			}
			for i, name := range names {
				files[i].Name = name
			}
		case idWinAttributes:
			defined, err := bitio.ReadBoolVector(pt.Reader, n)
			if err != nil {
				return nil, szerr.Wrap(szerr.MalformedMetadata, "attributes", err)
			}
			external, err := pt.ReadByte()
			if err != nil {
				return nil, szerr.Wrap(szerr.MalformedMetadata, "attributes", err)
			}
			if external != 0 {
				return nil, szerr.New(szerr.UnsupportedFeature, "attributes", "external attribute data is not supported")
			}
			for i := 0; i < n; i++ {
				if !defined[i] {
					continue
				}
				buf, err := pt.readFull(4)
				if err != nil {
					return nil, err
				}
				files[i].HasAttributes = true
				files[i].Attributes = binary.LittleEndian.Uint32(buf)
			}
		case idCTime, idATime, idMTime:
			if err := readTimes(pt, n, id, files); err != nil {
				return nil, err
			}
		case idDummy, idStartPos:
			// Padding / rarely-used fields; no effect on the archive model.
		default:
			// Unknown/reserved property: skip, per spec.md's "each scope
			// delimited by the next property id" rule.
		}
	}

	for i := range files {
		files[i].HasStream = true
	}
	ei := 0
	afi := 0
	for i := range files {
		if ei < len(emptyStream) && emptyStream[ei] {
			files[i].HasStream = false
			isFile := afi < len(emptyFile) && emptyFile[afi]
			isAnti := afi < len(anti) && anti[afi]
			files[i].IsDir = !isFile
			files[i].IsAnti = isAnti
			afi++
		}
		ei++
	}

	return &FilesInfo{Files: files}, nil
}

func readNames(pt *treeReader, n int) ([]string, error) {
	rest, err := io.ReadAll(pt.Reader)
	if err != nil {
		return nil, szerr.Wrap(szerr.MalformedMetadata, "names", err)
	}
	names := make([]string, 0, n)
	var u16 []uint16
	for i := 0; i+1 < len(rest); i += 2 {
		c := binary.LittleEndian.Uint16(rest[i : i+2])
		if c == 0 {
			names = append(names, string(utf16.Decode(u16)))
			u16 = u16[:0]
			continue
		}
		u16 = append(u16, c)
	}
	if len(names) != n {
		return nil, szerr.New(szerr.MalformedMetadata, "names", "name count mismatch")
	}
	return names, nil
}

func readTimes(pt *treeReader, n int, id byte, files []FileEntry) error {
	defined, err := bitio.ReadBoolVector(pt.Reader, n)
	if err != nil {
		return szerr.Wrap(szerr.MalformedMetadata, "timestamps", err)
	}
	external, err := pt.ReadByte()
	if err != nil {
		return szerr.Wrap(szerr.MalformedMetadata, "timestamps", err)
	}
	if external != 0 {
		return szerr.New(szerr.UnsupportedFeature, "timestamps", "external timestamp data is not supported")
	}
	for i := 0; i < n; i++ {
		if !defined[i] {
			continue
		}
		buf, err := pt.readFull(8)
		if err != nil {
			return err
		}
		ticks := binary.LittleEndian.Uint64(buf)
		tm := filetimeToTime(ticks)
		switch id {
		case idMTime:
			files[i].HasMTime, files[i].MTime = true, tm
		case idCTime:
			files[i].HasCTime, files[i].CTime = true, tm
		case idATime:
			files[i].HasATime, files[i].ATime = true, tm
		}
	}
	return nil
}

// windowsEpoch is 1601-01-01 UTC, the FILETIME epoch.
var windowsEpoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

func filetimeToTime(ticks uint64) time.Time {
	return windowsEpoch.Add(time.Duration(ticks) * 100)
}

func timeToFiletime(t time.Time) uint64 {
	d := t.UTC().Sub(windowsEpoch)
	return uint64(d.Nanoseconds() / 100)
}
