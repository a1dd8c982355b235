package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/sevenzlib/sevenz/internal/header"
)

func TestBuildEncodeChainCounters(t *testing.T) {
	plain := bytes.Repeat([]byte("round trip through two chained coders "), 20)

	var sink bytes.Buffer
	specs := []CoderSpec{
		{Method: MethodDelta, Config: &DeltaConfig{Distance: 1}},
		{Method: MethodCopy},
	}
	chain, coders, bindPairs, counters, err := BuildEncodeChain(&sink, specs)
	if err != nil {
		t.Fatalf("BuildEncodeChain: %v", err)
	}
	if len(coders) != 2 || len(bindPairs) != 1 {
		t.Fatalf("coders=%d bindPairs=%d, want 2 and 1", len(coders), len(bindPairs))
	}
	if _, err := chain.Write(plain); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := chain.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(counters) != 2 {
		t.Fatalf("len(counters) = %d, want 2", len(counters))
	}
	// Delta and Copy are both 1:1 byte transforms, so every stage writes
	// exactly as many bytes as it was given.
	if counters[0].N != int64(len(plain)) {
		t.Fatalf("counters[0].N = %d, want %d", counters[0].N, len(plain))
	}
	if counters[1].N != int64(sink.Len()) {
		t.Fatalf("outermost counter = %d, want sink length %d", counters[1].N, sink.Len())
	}
}

func TestOrderRejectsDisconnectedGraph(t *testing.T) {
	f := &header.Folder{
		Coders: []header.Coder{
			{Method: []byte{0x00}, NumIn: 1, NumOut: 1},
			{Method: []byte{0x00}, NumIn: 1, NumOut: 1},
		},
		PackedIndices: []uint64{0},
	}
	if _, err := Order(f); err == nil {
		t.Fatalf("expected an error for a folder with no bind pair linking its two coders")
	}
}

func TestOrderRejectsMultiStreamCoder(t *testing.T) {
	f := &header.Folder{
		Coders: []header.Coder{
			{Method: []byte{0x03, 0x04, 0x01}, NumIn: 2, NumOut: 1},
		},
		PackedIndices: []uint64{0},
	}
	if _, err := Order(f); err == nil {
		t.Fatalf("expected an error for a multi-input coder")
	}
}

func TestOrderLinearChain(t *testing.T) {
	f := &header.Folder{
		Coders: []header.Coder{
			{Method: []byte{0x21}, NumIn: 1, NumOut: 1},
			{Method: []byte{0x00}, NumIn: 1, NumOut: 1},
		},
		BindPairs:     []header.BindPair{{InIndex: 0, OutIndex: 1}},
		PackedIndices: []uint64{1},
	}
	order, err := Order(f)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	want := []int{1, 0}
	for i, idx := range order {
		if idx != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestDecodeChainMatchesEncodeChain(t *testing.T) {
	plain := bytes.Repeat([]byte("matched encode/decode chain content "), 15)

	var sink bytes.Buffer
	specs := []CoderSpec{
		{Method: MethodCopy},
		{Method: MethodCopy},
	}
	chain, coders, bindPairs, counters, err := BuildEncodeChain(&sink, specs)
	if err != nil {
		t.Fatalf("BuildEncodeChain: %v", err)
	}
	chain.Write(plain)
	chain.Close()

	f := &header.Folder{
		Coders:        coders,
		BindPairs:     bindPairs,
		PackedIndices: []uint64{1},
		UnpackSizes:   []uint64{uint64(len(plain)), uint64(counters[0].N)},
	}

	rc, err := BuildDecodeChain(f, bytes.NewReader(sink.Bytes()), nil, 0, "test")
	if err != nil {
		t.Fatalf("BuildDecodeChain: %v", err)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("decode chain output mismatch")
	}
}
