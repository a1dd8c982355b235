package codec

import (
	"crypto/rand"
	"io"

	"github.com/sevenzlib/sevenz/internal/aes256"
	"github.com/sevenzlib/sevenz/internal/szerr"
)

func init() {
	register(MethodAES256, decodeAES256, encodeAES256)
}

func decodeAES256(in io.Reader, p DecodeParams) (io.ReadCloser, error) {
	if len(p.Password) == 0 {
		return nil, szerr.New(szerr.PasswordRequired, p.CoderRegion, "archive entry is encrypted, no password supplied")
	}
	props, err := aes256.Parse(p.Properties)
	if err != nil {
		return nil, err
	}
	key := aes256.DeriveKey(p.Password, props.Salt, props.Cycles)
	mode, err := aes256.NewCBCDecrypter(key, props.IV)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(aes256.NewReader(in, mode)), nil
}

// AES256Config configures the AES256_SHA256 encoder. Cycles==0 defaults
// to 19 (dsnet/compress's bzip2 writer-style "zero means a sane
// default" convention); Salt/IV are generated via crypto/rand when nil.
type AES256Config struct {
	Cycles int
	Salt   []byte
	IV     []byte
}

type aes256Encoder struct {
	w      *aes256.Writer
	cycles int
	salt   []byte
	iv     []byte
}

func (e *aes256Encoder) Write(p []byte) (int, error) { return e.w.Write(p) }
func (e *aes256Encoder) Close() error                 { return e.w.Close() }

func (e *aes256Encoder) Properties() []byte {
	return aes256.Encode(e.cycles, e.salt, e.iv)
}

func encodeAES256(out io.Writer, p EncodeParams) (Encoder, error) {
	if len(p.Password) == 0 {
		return nil, szerr.New(szerr.PasswordRequired, "aes256 encoder", "AES256_SHA256 coder requires a password")
	}
	cfg, _ := p.Config.(*AES256Config)
	if cfg == nil {
		cfg = &AES256Config{}
	}
	cycles := cfg.Cycles
	if cycles == 0 {
		cycles = 19
	}

	salt := cfg.Salt
	if salt == nil {
		salt = make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return nil, szerr.Wrap(szerr.CodecError, "aes256 encoder", err)
		}
	}
	iv := cfg.IV
	if iv == nil {
		iv = make([]byte, 16)
		if _, err := rand.Read(iv); err != nil {
			return nil, szerr.Wrap(szerr.CodecError, "aes256 encoder", err)
		}
	}
	var iv16 [16]byte
	copy(iv16[:], iv)

	key := aes256.DeriveKey(p.Password, salt, cycles)
	mode, err := aes256.NewCBCEncrypter(key, iv16)
	if err != nil {
		return nil, err
	}

	return &aes256Encoder{
		w:      aes256.NewWriter(out, mode),
		cycles: cycles,
		salt:   salt,
		iv:     iv,
	}, nil
}
