package bitio

import (
	"bufio"
	"bytes"
	"testing"
)

func TestUint64RoundTrip(t *testing.T) {
	vals := []uint64{
		0, 1, 127, 128, 129, 255, 256,
		1<<14 - 1, 1 << 14, 1<<21 - 1, 1 << 21,
		1<<28 - 1, 1 << 28, 1<<35 - 1, 1 << 35,
		1<<42 - 1, 1 << 42, 1<<49 - 1, 1 << 49,
		1<<56 - 1, 1 << 56, 1<<63 - 1, 1 << 63,
		^uint64(0),
	}
	for _, v := range vals {
		buf := PutUint64(nil, v)
		got, err := ReadUint64(bufio.NewReader(bytes.NewReader(buf)))
		if err != nil {
			t.Fatalf("ReadUint64(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d -> %x -> %d", v, buf, got)
		}
	}
}

func TestUint64MinimalLength(t *testing.T) {
	cases := []struct {
		v    uint64
		want int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{1<<14 - 1, 2},
		{1 << 14, 3},
		{^uint64(0), 9},
	}
	for _, c := range cases {
		buf := PutUint64(nil, c.v)
		if len(buf) != c.want {
			t.Errorf("PutUint64(%d) = %d bytes, want %d", c.v, len(buf), c.want)
		}
	}
}

func TestUint64Truncated(t *testing.T) {
	_, err := ReadUint64(bufio.NewReader(bytes.NewReader([]byte{0xFF, 1, 2})))
	if err != ErrTruncated {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
}

func TestBoolVectorAllTrue(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if err := WriteBoolVector(bw, []bool{true, true, true}); err != nil {
		t.Fatal(err)
	}
	bw.Flush()
	if buf.Bytes()[0] != 0x01 {
		t.Fatalf("expected shortcut all-defined byte, got %x", buf.Bytes())
	}

	got, err := ReadBoolVector(bufio.NewReader(bytes.NewReader(buf.Bytes())), 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range got {
		if !v {
			t.Fatalf("expected all true, got %v", got)
		}
	}
}

func TestBoolVectorMixed(t *testing.T) {
	vec := []bool{true, false, true, true, false, false, false, false, true}
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if err := WriteBoolVector(bw, vec); err != nil {
		t.Fatal(err)
	}
	bw.Flush()
	if buf.Bytes()[0] != 0x00 {
		t.Fatalf("expected explicit bitmap marker, got %x", buf.Bytes())
	}

	got, err := ReadBoolVector(bufio.NewReader(bytes.NewReader(buf.Bytes())), len(vec))
	if err != nil {
		t.Fatal(err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Fatalf("index %d: got %v want %v", i, got[i], vec[i])
		}
	}
}

func TestCRC32(t *testing.T) {
	if CRC32(nil) != 0 {
		t.Fatalf("CRC32(nil) = %x, want 0", CRC32(nil))
	}
	if CRC32([]byte("hello")) == 0 {
		t.Fatalf("CRC32 of non-empty input must not be zero by coincidence here")
	}
}
