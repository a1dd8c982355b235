package bitio

import "io"

// ReadBoolVector decodes a 7z "all defined" boolean vector of n elements:
// a leading 0x01 byte means every element is true with nothing further to
// read; a leading 0x00 byte means n bits follow, packed big-endian (the
// MSB of byte i is element 8*i).
func ReadBoolVector(r io.ByteReader, n int) ([]bool, error) {
	allDefined, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if allDefined != 0 {
		out := make([]bool, n)
		for i := range out {
			out[i] = true
		}
		return out, nil
	}
	return ReadBitVector(r, n)
}

// ReadBitVector decodes n big-endian-packed bits (MSB of byte i is
// element 8*i) with no leading "all defined" byte.
func ReadBitVector(r io.ByteReader, n int) ([]bool, error) {
	out := make([]bool, n)
	var b byte
	var mask byte
	for i := 0; i < n; i++ {
		if mask == 0 {
			var err error
			b, err = r.ReadByte()
			if err != nil {
				return nil, ErrTruncated
			}
			mask = 0x80
		}
		out[i] = b&mask != 0
		mask >>= 1
	}
	return out, nil
}

// WriteBitVector packs vec into ceil(len(vec)/8) big-endian bytes.
func WriteBitVector(w io.ByteWriter, vec []bool) error {
	var b byte
	var mask byte = 0x80
	for _, v := range vec {
		if v {
			b |= mask
		}
		mask >>= 1
		if mask == 0 {
			if err := w.WriteByte(b); err != nil {
				return err
			}
			b = 0
			mask = 0x80
		}
	}
	if mask != 0x80 {
		if err := w.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}

// AllTrue reports whether every element of vec is true.
func AllTrue(vec []bool) bool {
	for _, v := range vec {
		if !v {
			return false
		}
	}
	return true
}

// WriteBoolVector writes the "all defined" shortcut form when possible,
// otherwise a leading zero byte followed by the packed bitmap.
func WriteBoolVector(w io.ByteWriter, vec []bool) error {
	if AllTrue(vec) {
		return w.WriteByte(0x01)
	}
	if err := w.WriteByte(0x00); err != nil {
		return err
	}
	return WriteBitVector(w, vec)
}
