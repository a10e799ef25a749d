package macho

import (
	"encoding/binary"
	"fmt"

	"github.com/blacktop/machodec/pkg/macho/types"
	"github.com/pkg/errors"
)

// A Kind is the container format announced by the leading magic.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindFat
	KindThin32
	KindThin64
)

func (k Kind) String() string {
	switch k {
	case KindFat:
		return "fat"
	case KindThin32:
		return "thin32"
	case KindThin64:
		return "thin64"
	}
	return "unknown"
}

// MagicInfo is what the first four bytes of a buffer say about the rest of it.
type MagicInfo struct {
	Kind      Kind
	ByteOrder binary.ByteOrder // always big endian for fat files
	Magic     types.Magic      // canonical (unswapped) magic
	Swapped   bool             // the magic was stored byte swapped
}

// Is64 reports whether a thin image uses the 64-bit header and segment layout.
func (m MagicInfo) Is64() bool { return m.Kind == KindThin64 }

// HeaderSize returns the size of the mach header that follows this magic.
func (m MagicInfo) HeaderSize() int {
	switch m.Kind {
	case KindThin32:
		return types.FileHeaderSize32
	case KindThin64:
		return types.FileHeaderSize64
	case KindFat:
		return fatHeaderDesc.Size()
	}
	return 0
}

// DetectMagic classifies a buffer by its first four bytes.
func DetectMagic(b []byte) (MagicInfo, error) {
	if len(b) < 4 {
		return MagicInfo{}, errors.Wrapf(ErrTruncatedBuffer, "magic needs 4 bytes, have %d", len(b))
	}
	switch be := types.Magic(binary.BigEndian.Uint32(b[0:4])); be {
	case types.Magic32:
		return MagicInfo{Kind: KindThin32, ByteOrder: binary.BigEndian, Magic: types.Magic32}, nil
	case types.Magic64:
		return MagicInfo{Kind: KindThin64, ByteOrder: binary.BigEndian, Magic: types.Magic64}, nil
	case types.Cigam32:
		return MagicInfo{Kind: KindThin32, ByteOrder: binary.LittleEndian, Magic: types.Magic32, Swapped: true}, nil
	case types.Cigam64:
		return MagicInfo{Kind: KindThin64, ByteOrder: binary.LittleEndian, Magic: types.Magic64, Swapped: true}, nil
	case types.MagicFat, types.CigamFat:
		return MagicInfo{Kind: KindFat, ByteOrder: binary.BigEndian, Magic: types.MagicFat, Swapped: be == types.CigamFat}, nil
	default:
		return MagicInfo{}, formatError(ErrNotMachO, 0, "invalid magic number", fmt.Sprintf("%#08x", uint32(be)))
	}
}
