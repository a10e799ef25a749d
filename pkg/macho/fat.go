package macho

import (
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/machodec/pkg/macho/types"
	"github.com/pkg/errors"
)

// A FatHeader is the header of a universal (fat) file.
type FatHeader struct {
	Magic types.Magic
	NArch uint32
}

const (
	fatHeaderSize = 8
	fatArchSize   = 20
)

// A FatArchHeader is one entry of the fat arch table, as stored on disk.
type FatArchHeader struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype // raw, capability bits included
	Offset uint32
	Size   uint32
	Align  uint32 // power of 2
}

// A FatArch is an arch table entry plus the slice of the file it points at.
type FatArch struct {
	FatArchHeader
	Index int
	Valid bool // Offset+Size lies inside the file

	data []byte
}

// Data returns the thin image of a valid arch. It aliases the fat buffer.
func (a *FatArch) Data() []byte { return a.data }

// Name returns the lipo style name of the arch ("arm64e"), or the cpu name if it has none.
func (a *FatArch) Name() string {
	if n := types.ArchName(a.CPU, a.SubCPU); n != "" {
		return n
	}
	return a.CPU.String()
}

func (a *FatArch) String() string {
	return fmt.Sprintf("%-8s offset=%#x size=%#x align=2^%d", a.Name(), a.Offset, a.Size, a.Align)
}

// A FatFile is a parsed universal binary. Arches keeps the on-disk order,
// including duplicates and invalid entries.
type FatFile struct {
	FatHeader
	Arches      []FatArch
	Diagnostics Diagnostics
}

// ParseFat parses the fat header and arch table at the start of buf. Fat
// headers are big endian regardless of the architectures they contain.
func ParseFat(buf []byte) (*FatFile, error) {
	mi, err := DetectMagic(buf)
	if err != nil {
		return nil, err
	}
	if mi.Kind != KindFat {
		return nil, formatError(ErrNotMachO, 0, "not a fat file, magic", mi.Magic)
	}

	hdr, _, err := fatHeaderDesc.Decode(buf, 0, nil)
	if err != nil {
		return nil, err
	}
	ff := &FatFile{
		FatHeader: FatHeader{
			Magic: types.Magic(hdr.Uint32("magic")),
			NArch: hdr.Uint32("nfat_arch"),
		},
	}

	need := uint64(fatHeaderSize) + uint64(ff.NArch)*fatArchSize
	if need > uint64(len(buf)) {
		return nil, errors.Wrapf(ErrTruncatedBuffer, "fat arch table of %d entries needs %d bytes, have %d",
			ff.NArch, need, len(buf))
	}

	ff.Arches = make([]FatArch, ff.NArch)
	for i := range ff.Arches {
		off := fatHeaderSize + i*fatArchSize
		rec, _, err := fatArchDesc.Decode(buf, off, nil)
		if err != nil {
			return nil, err
		}
		a := FatArch{
			FatArchHeader: FatArchHeader{
				CPU:    types.CPU(rec.Int32("cputype")),
				SubCPU: types.CPUSubtype(rec.Int32("cpusubtype")),
				Offset: rec.Uint32("offset"),
				Size:   rec.Uint32("size"),
				Align:  rec.Uint32("align"),
			},
			Index: i,
		}
		if end := uint64(a.Offset) + uint64(a.Size); end > uint64(len(buf)) {
			err := formatError(ErrBadArchSlice, int64(off),
				fmt.Sprintf("slice [%#x, %#x) exceeds file size %#x for arch", a.Offset, end, len(buf)), a.Name())
			log.WithFields(log.Fields{"index": i, "arch": a.Name()}).Debug(err.Error())
			ff.Diagnostics = append(ff.Diagnostics, Diagnostic{
				Scope:  ScopeArch,
				Index:  i,
				Offset: int64(off),
				Err:    err,
			})
		} else {
			a.Valid = true
			a.data = buf[a.Offset:end]
		}
		ff.Arches[i] = a
	}

	return ff, nil
}

// Arch returns the first valid arch with the given cpu type, in table order.
func (ff *FatFile) Arch(cpu types.CPU) (*FatArch, bool) {
	for i := range ff.Arches {
		if ff.Arches[i].Valid && ff.Arches[i].CPU == cpu {
			return &ff.Arches[i], true
		}
	}
	return nil, false
}

// ArchByName returns the first valid arch matching a lipo style name such as "arm64e".
func (ff *FatFile) ArchByName(name string) (*FatArch, bool) {
	want, ok := types.LookupArch(name)
	if !ok {
		return nil, false
	}
	for i := range ff.Arches {
		a := &ff.Arches[i]
		if a.Valid && a.CPU == want.CPU && a.SubCPU.Masked() == want.SubCPU {
			return a, true
		}
	}
	return nil, false
}
