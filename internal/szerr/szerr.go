// Package szerr holds the error taxonomy shared by every component of the
// engine (spec.md §7). It has no dependencies on the rest of the module so
// that internal/header, internal/codec, internal/aes256 and
// internal/skippable can all raise these errors without creating an
// import cycle with the root package, which re-exports them for callers.
package szerr

import "fmt"

// Kind classifies an error per spec.md §7's abstract taxonomy.
type Kind int

const (
	_ Kind = iota
	BadSignature
	ChecksumMismatch
	UnsupportedCompressionMethod
	UnsupportedFeature
	PasswordRequired
	MemoryLimitExceeded
	MalformedMetadata
	CodecError
)

func (k Kind) String() string {
	switch k {
	case BadSignature:
		return "bad signature"
	case ChecksumMismatch:
		return "checksum mismatch"
	case UnsupportedCompressionMethod:
		return "unsupported compression method"
	case UnsupportedFeature:
		return "unsupported feature"
	case PasswordRequired:
		return "password required"
	case MemoryLimitExceeded:
		return "memory limit exceeded"
	case MalformedMetadata:
		return "malformed metadata"
	case CodecError:
		return "codec error"
	default:
		return "unknown error"
	}
}

// Error is a taxonomy-tagged error carrying a human-readable message
// describing which region or coder triggered it, per spec.md §7.
type Error struct {
	Kind    Kind
	Region  string // e.g. "end header", "block 3 coder 1", "entry a.txt"
	Message string
	MaxKB   int64 // only meaningful for MemoryLimitExceeded
	ReqKB   int64 // only meaningful for MemoryLimitExceeded
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Kind == MemoryLimitExceeded {
		return fmt.Sprintf("sevenz: %s: %s: limit %dKB, requested %dKB", e.Region, e.Kind, e.MaxKB, e.ReqKB)
	}
	if e.Region == "" {
		return fmt.Sprintf("sevenz: %s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("sevenz: %s: %s: %s", e.Region, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, szerr.New(szerr.ChecksumMismatch, "", "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a taxonomy error.
func New(kind Kind, region, message string) *Error {
	return &Error{Kind: kind, Region: region, Message: message}
}

// Wrap builds a taxonomy error around an underlying cause.
func Wrap(kind Kind, region string, err error) *Error {
	return &Error{Kind: kind, Region: region, Err: err}
}

// MemLimit builds a MemoryLimitExceeded error.
func MemLimit(region string, maxKB, reqKB int64) *Error {
	return &Error{Kind: MemoryLimitExceeded, Region: region, MaxKB: maxKB, ReqKB: reqKB}
}
