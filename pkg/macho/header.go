package macho

import (
	"encoding/binary"

	"github.com/blacktop/machodec/pkg/macho/layout"
	"github.com/blacktop/machodec/pkg/macho/types"
	"github.com/pkg/errors"
)

// A Header is a decoded mach_header or mach_header_64.
type Header struct {
	types.FileHeader
	// Capabilities holds the bits masked off SubCPU (e.g. CPUSubtypeLib64).
	Capabilities types.CPUSubtype
	ByteOrder    binary.ByteOrder `json:"-"`
	magic        MagicInfo
}

// Is64 reports whether the header is a mach_header_64.
func (h *Header) Is64() bool { return h.magic.Is64() }

// Size returns the on-disk size of the header, which is where load commands start.
func (h *Header) Size() int { return h.magic.HeaderSize() }

// MagicInfo returns the magic classification the header was decoded with.
func (h *Header) MagicInfo() MagicInfo { return h.magic }

// HasFlag reports whether the named header flag is set. Both "PIE" and
// "MH_PIE" spellings are accepted; unknown names report false.
func (h *Header) HasFlag(name string) bool {
	f, ok := types.LookupHeaderFlag(name)
	if !ok || f == types.None {
		return false
	}
	return h.Flags.Has(f)
}

// ParseHeader decodes the mach header at the start of a thin image.
func ParseHeader(buf []byte) (*Header, error) {
	mi, err := DetectMagic(buf)
	if err != nil {
		return nil, err
	}
	return parseHeader(buf, mi)
}

func parseHeader(buf []byte, mi MagicInfo) (*Header, error) {
	var desc *layout.Descriptor
	switch mi.Kind {
	case KindThin32:
		desc = machHeaderDesc
	case KindThin64:
		desc = machHeader64Desc
	case KindFat:
		return nil, errors.Wrap(ErrFatFile, "use ParseFat or Decode for universal binaries")
	default:
		return nil, ErrNotMachO
	}

	rec, _, err := desc.Decode(buf, 0, mi.ByteOrder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mach header")
	}

	raw := types.CPUSubtype(rec.Int32("cpusubtype"))
	h := &Header{
		FileHeader: types.FileHeader{
			Magic:        types.Magic(rec.Uint32("magic")),
			CPU:          types.CPU(rec.Int32("cputype")),
			SubCPU:       raw.Masked(),
			Type:         types.HeaderFileType(rec.Uint32("filetype")),
			NCommands:    rec.Uint32("ncmds"),
			SizeCommands: rec.Uint32("sizeofcmds"),
			Flags:        types.HeaderFlag(rec.Uint32("flags")),
		},
		Capabilities: raw.Caps(),
		ByteOrder:    mi.ByteOrder,
		magic:        mi,
	}
	if mi.Is64() {
		h.Reserved = rec.Uint32("reserved")
	}
	return h, nil
}
