// Package header implements component E of the 7z engine: parsing and
// emitting the nested, tagged end-header tree (spec.md §4.E) and the
// fixed 32-byte start header.
package header

// Property ids that tag each scope of the end-header tree. Every scope
// begins with one of these bytes and ends with idEnd.
const (
	idEnd                 = 0x00
	idHeader              = 0x01
	idArchiveProperties    = 0x02
	idAdditionalStreamsInfo = 0x03
	idMainStreamsInfo      = 0x04
	idFilesInfo            = 0x05
	idPackInfo             = 0x06
	idUnpackInfo           = 0x07
	idSubStreamsInfo       = 0x08
	idSize                 = 0x09
	idCRC                  = 0x0A
	idFolder               = 0x0B
	idCodersUnpackSize     = 0x0C
	idNumUnpackStream      = 0x0D
	idEmptyStream          = 0x0E
	idEmptyFile            = 0x0F
	idAnti                = 0x10
	idName                 = 0x11
	idCTime                = 0x12
	idATime                = 0x13
	idMTime                = 0x14
	idWinAttributes        = 0x15
	idEncodedHeader        = 0x17
	idStartPos             = 0x18
	idDummy                = 0x19
)

// Signature is the fixed 6-byte 7z magic.
var Signature = [6]byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}

// StartHeaderSize is the size, in bytes, of the fixed start header.
const StartHeaderSize = 32
