package aes256

import (
	"bytes"
	"io"
	"testing"
)

func TestPropertiesRoundTrip(t *testing.T) {
	salt := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	iv := [16]byte{9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24}

	raw := Encode(19, salt, iv[:])
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Cycles != 19 {
		t.Fatalf("cycles = %d, want 19", got.Cycles)
	}
	if !bytes.Equal(got.Salt, salt) {
		t.Fatalf("salt = %x, want %x", got.Salt, salt)
	}
	if got.IV != iv {
		t.Fatalf("iv = %x, want %x", got.IV, iv)
	}
}

func TestPropertiesRoundTripLargeSizes(t *testing.T) {
	salt := bytes.Repeat([]byte{0xAB}, 16)
	iv := make([]byte, 16)
	for i := range iv {
		iv[i] = byte(i)
	}

	raw := Encode(10, salt, iv)
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !bytes.Equal(got.Salt, salt) {
		t.Fatalf("salt = %x, want %x", got.Salt, salt)
	}
}

func TestParseRejectsTruncatedProperties(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatalf("expected error for empty properties")
	}
	// b0=0xFF, b1=0xFF claims the maximum salt and iv sizes with no
	// trailing bytes supplied at all.
	if _, err := Parse([]byte{0xFF, 0xFF}); err == nil {
		t.Fatalf("expected error when salt/iv bytes are missing")
	}
}

func TestDeriveKeyShortcut(t *testing.T) {
	salt := []byte("shortsalt")
	password := []byte("hunter2")
	key := DeriveKey(password, salt, 0x3F)

	var want [32]byte
	n := copy(want[:], salt)
	copy(want[n:], password)
	if key != want {
		t.Fatalf("shortcut key = %x, want %x", key, want)
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	salt := []byte{1, 2, 3}
	password := []byte("correct horse battery staple")

	k1 := DeriveKey(password, salt, 4)
	k2 := DeriveKey(password, salt, 4)
	if k1 != k2 {
		t.Fatalf("DeriveKey not deterministic: %x != %x", k1, k2)
	}

	k3 := DeriveKey(password, salt, 5)
	if k1 == k3 {
		t.Fatalf("different cycle counts produced the same key")
	}
}

func TestCBCStreamRoundTrip(t *testing.T) {
	password := []byte("archive password")
	salt := []byte{1, 2, 3, 4}
	var iv [16]byte
	copy(iv[:], []byte("0123456789abcdef"))

	key := DeriveKey(password, salt, 2)

	plain := bytes.Repeat([]byte("0123456789abcdef block aligned!!"), 10)

	encMode, err := NewCBCEncrypter(key, iv)
	if err != nil {
		t.Fatalf("NewCBCEncrypter: %v", err)
	}
	var ciphertext bytes.Buffer
	w := NewWriter(&ciphertext, encMode)
	if _, err := w.Write(plain); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	decMode, err := NewCBCDecrypter(key, iv)
	if err != nil {
		t.Fatalf("NewCBCDecrypter: %v", err)
	}
	r := NewReader(bytes.NewReader(ciphertext.Bytes()), decMode)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got[:len(plain)], plain) {
		t.Fatalf("round trip mismatch")
	}
}

func TestCBCStreamRoundTripUnalignedLength(t *testing.T) {
	password := []byte("another password")
	salt := []byte{9, 9, 9}
	var iv [16]byte
	copy(iv[:], []byte("fedcba9876543210"))

	key := DeriveKey(password, salt, 1)
	plain := []byte("this message is not a multiple of sixteen bytes long")

	encMode, _ := NewCBCEncrypter(key, iv)
	var ciphertext bytes.Buffer
	w := NewWriter(&ciphertext, encMode)
	w.Write(plain)
	w.Close()

	if ciphertext.Len()%16 != 0 {
		t.Fatalf("ciphertext length %d is not block aligned", ciphertext.Len())
	}

	decMode, _ := NewCBCDecrypter(key, iv)
	r := NewReader(bytes.NewReader(ciphertext.Bytes()), decMode)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	// The reader hands back whole decrypted blocks including the
	// zero-padded tail; callers truncate to the declared unpack size.
	if !bytes.Equal(got[:len(plain)], plain) {
		t.Fatalf("round trip mismatch: got %q want prefix %q", got, plain)
	}
}
