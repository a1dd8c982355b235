package sevenz

import (
	"errors"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

// Sentinel errors callers can match against with errors.Is. Each wraps
// internal/szerr's Kind taxonomy so package-internal code need only
// build one *szerr.Error and have it compare equal here.
var (
	ErrBadSignature                = szerr.New(szerr.BadSignature, "", "")
	ErrChecksumMismatch             = szerr.New(szerr.ChecksumMismatch, "", "")
	ErrUnsupportedCompressionMethod = szerr.New(szerr.UnsupportedCompressionMethod, "", "")
	ErrUnsupportedFeature           = szerr.New(szerr.UnsupportedFeature, "", "")
	ErrPasswordRequired             = szerr.New(szerr.PasswordRequired, "", "")
	ErrMemoryLimitExceeded          = szerr.New(szerr.MemoryLimitExceeded, "", "")
	ErrMalformedMetadata            = szerr.New(szerr.MalformedMetadata, "", "")
	ErrCodecError                   = szerr.New(szerr.CodecError, "", "")
)

// Is reports whether err matches one of this package's sentinel errors,
// comparing only by szerr.Kind (region/message are diagnostic, not part
// of identity).
func Is(err, target error) bool {
	return errors.Is(err, target)
}
