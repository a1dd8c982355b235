// Package aes256 implements component D of the 7z engine: the
// AES-256-SHA256 coder's key schedule and CBC streaming, spec.md §4.D.
// It follows dsnet/compress's internal/aes256 shape (property-byte
// parsing. the way bzip2.go's header parsing unpacks a flag byte) hewed
// around stdlib crypto/aes, crypto/cipher and crypto/sha256; no pack
// library wraps 7z's particular key-derivation variant, so those three
// stdlib packages are this component's bedrock rather than a gap (see
// DESIGN.md).
package aes256

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

// Properties decodes the AES256_SHA256 coder's property byte layout
// (spec.md §4.D):
//
//	byte0 bits 0-5: cycles (key derivation rounds is 2^cycles, or the
//	                0x3F shortcut)
//	byte0 bit 6:    adds 1 to iv_size
//	byte0 bit 7:    adds 1 to salt_size
//	byte1 bits 0-3: iv_size (0-15, before byte0 bit 6 is added)
//	byte1 bits 4-7: salt_size (0-15, before byte0 bit 7 is added)
//	remaining bytes: salt_size bytes of salt, then iv_size bytes of IV
type Properties struct {
	Cycles int
	Salt   []byte
	IV     [16]byte
}

// Parse decodes the on-disk property bytes into a Properties value.
func Parse(props []byte) (Properties, error) {
	if len(props) < 2 {
		return Properties{}, szerr.New(szerr.MalformedMetadata, "aes256 properties", "properties too short")
	}
	b0, b1 := props[0], props[1]
	cycles := int(b0 & 0x3F)
	ivSize := int((b0>>6)&1) + int(b1&0x0F)
	saltSize := int((b0>>7)&1) + int(b1>>4)

	want := 2 + saltSize + ivSize
	if len(props) < want {
		return Properties{}, szerr.New(szerr.MalformedMetadata, "aes256 properties", "salt/iv truncated")
	}

	var p Properties
	p.Cycles = cycles
	p.Salt = append([]byte(nil), props[2:2+saltSize]...)
	copy(p.IV[:], props[2+saltSize:2+saltSize+ivSize])
	return p, nil
}

// Encode serializes cycles/salt/iv back into the on-disk property bytes.
func Encode(cycles int, salt []byte, iv []byte) []byte {
	ivSize := len(iv)
	saltSize := len(salt)

	b0 := byte(cycles & 0x3F)
	b1 := byte(0)
	if ivSize > 0x0F {
		b0 |= 0x40
		b1 |= byte(ivSize - 1)
	} else {
		b1 |= byte(ivSize)
	}
	if saltSize > 0x0F {
		b0 |= 0x80
		b1 |= byte(saltSize-1) << 4
	} else {
		b1 |= byte(saltSize) << 4
	}

	out := make([]byte, 0, 2+saltSize+ivSize)
	out = append(out, b0, b1)
	out = append(out, salt...)
	out = append(out, iv...)
	return out
}

// DeriveKey implements spec.md §4.D's key-derivation algorithm: when
// cycles is the 0x3F shortcut, the key is salt||password zero-padded (or
// truncated) to 32 bytes; otherwise a single SHA-256 hash is fed salt,
// password and an 8-byte little-endian round counter, in that order, for
// each of 2^cycles rounds, and its final digest is the key.
func DeriveKey(password, salt []byte, cycles int) [32]byte {
	if cycles == 0x3F {
		var key [32]byte
		n := copy(key[:], salt)
		copy(key[n:], password)
		return key
	}

	h := sha256.New()
	var counter [8]byte
	rounds := uint64(1) << uint(cycles)
	for i := uint64(0); i < rounds; i++ {
		counter[0] = byte(i)
		counter[1] = byte(i >> 8)
		counter[2] = byte(i >> 16)
		counter[3] = byte(i >> 24)
		counter[4] = byte(i >> 32)
		counter[5] = byte(i >> 40)
		counter[6] = byte(i >> 48)
		counter[7] = byte(i >> 56)
		h.Write(salt)
		h.Write(password)
		h.Write(counter[:])
	}
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// NewCBCDecrypter builds an AES-256-CBC block cipher keyed by
// DeriveKey's output, ready for use by a StreamReader.
func NewCBCDecrypter(key [32]byte, iv [16]byte) (cipher.BlockMode, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, "aes256", err)
	}
	return cipher.NewCBCDecrypter(block, iv[:]), nil
}

// NewCBCEncrypter builds the encrypt-direction counterpart.
func NewCBCEncrypter(key [32]byte, iv [16]byte) (cipher.BlockMode, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, szerr.Wrap(szerr.CodecError, "aes256", err)
	}
	return cipher.NewCBCEncrypter(block, iv[:]), nil
}
