package codec

import (
	"encoding/binary"
	"io"

	"github.com/sevenzlib/sevenz/internal/szerr"
)

func init() {
	register(MethodPPMd, decodePPMd, encodePPMd)
}

// PPMd has no available kernel anywhere in this module's dependency
// corpus (see DESIGN.md and SPEC_FULL.md's DOMAIN STACK table); the
// method is still registered so that its property bytes parse and its
// memory requirement is checked before failing, distinguishing a
// malformed property blob or an over-budget memory request from the
// "we have no PPMd implementation to plug in" gap.
func decodePPMd(in io.Reader, p DecodeParams) (io.ReadCloser, error) {
	if err := requireProps("PPMd", p.Properties, 5); err != nil {
		return nil, err
	}
	memKB := int64(binary.LittleEndian.Uint32(p.Properties[1:5])) / 1024
	if err := checkMemLimit(p.CoderRegion, p.MemLimitKB, memKB); err != nil {
		return nil, err
	}
	return nil, szerr.New(szerr.UnsupportedCompressionMethod, p.CoderRegion, "PPMD: no kernel available")
}

// PPMdConfig configures the PPMd encoder, for archives this engine is
// never actually able to produce until a kernel is wired in.
type PPMdConfig struct {
	Order    int
	MemBytes uint32
}

func encodePPMd(out io.Writer, p EncodeParams) (Encoder, error) {
	return nil, szerr.New(szerr.UnsupportedCompressionMethod, "ppmd encoder", "PPMD: no kernel available")
}
