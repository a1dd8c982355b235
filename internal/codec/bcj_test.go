package codec

import "testing"

func bcjRoundTrip(t *testing.T, name string, conv bcjConverter, data []byte) {
	t.Helper()
	original := append([]byte(nil), data...)

	encoded := append([]byte(nil), data...)
	conv(encoded, true)

	decoded := append([]byte(nil), encoded...)
	conv(decoded, false)

	for i := range original {
		if decoded[i] != original[i] {
			t.Fatalf("%s: round trip mismatch at byte %d: got %x want %x", name, i, decoded[i], original[i])
		}
	}
}

func sampleBuffer(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*37 + 11)
	}
	return buf
}

func TestBCJX86RoundTrip(t *testing.T) {
	data := sampleBuffer(64)
	// Plant a call instruction (E8) followed by a plausible 4-byte
	// displacement so the converter's branch actually fires.
	data[10] = 0xE8
	data[11], data[12], data[13], data[14] = 0x00, 0x00, 0x00, 0x00
	bcjRoundTrip(t, "x86", bcjX86, data)
}

func TestBCJARMRoundTrip(t *testing.T) {
	data := sampleBuffer(32)
	data[3] = 0xEB // BL opcode at the first 4-byte slot
	bcjRoundTrip(t, "arm", bcjARM, data)
}

func TestBCJARMTRoundTrip(t *testing.T) {
	data := sampleBuffer(32)
	data[1] = 0xF0
	data[3] = 0xF8
	bcjRoundTrip(t, "armt", bcjARMT, data)
}

func TestBCJARM64RoundTrip(t *testing.T) {
	data := sampleBuffer(32)
	// 0x94000000 BL encoding, little-endian bytes.
	data[0], data[1], data[2], data[3] = 0x00, 0x00, 0x00, 0x94
	bcjRoundTrip(t, "arm64", bcjARM64, data)
}

func TestBCJPPCRoundTrip(t *testing.T) {
	data := sampleBuffer(32)
	data[0] = 0x48
	data[3] = 0x01
	bcjRoundTrip(t, "ppc", bcjPPC, data)
}

func TestBCJSPARCRoundTrip(t *testing.T) {
	data := sampleBuffer(32)
	data[0] = 0x40
	data[1] = 0x00
	bcjRoundTrip(t, "sparc", bcjSPARC, data)
}

func TestBCJIA64IsNoOp(t *testing.T) {
	data := sampleBuffer(48)
	original := append([]byte(nil), data...)
	bcjIA64(data, true)
	for i := range data {
		if data[i] != original[i] {
			t.Fatalf("bcjIA64 modified byte %d, expected a no-op", i)
		}
	}
}
