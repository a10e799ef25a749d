// Package machotest builds small Mach-O and fat images in memory for tests.
package machotest

import (
	"bytes"
	"encoding/binary"

	"github.com/blacktop/machodec/pkg/macho/types"
	"github.com/lunixbochs/struc"
)

type machHeader struct {
	Magic      uint32
	CPU        int32
	SubCPU     int32
	Type       uint32
	NCmds      uint32
	SizeOfCmds uint32
	Flags      uint32
}

type machHeader64 struct {
	Magic      uint32
	CPU        int32
	SubCPU     int32
	Type       uint32
	NCmds      uint32
	SizeOfCmds uint32
	Flags      uint32
	Reserved   uint32
}

type segment32 struct {
	Cmd     uint32
	Len     uint32
	Name    [16]byte
	Addr    uint32
	Memsz   uint32
	Offset  uint32
	Filesz  uint32
	Maxprot int32
	Prot    int32
	Nsect   uint32
	Flag    uint32
}

type segment64 struct {
	Cmd     uint32
	Len     uint32
	Name    [16]byte
	Addr    uint64
	Memsz   uint64
	Offset  uint64
	Filesz  uint64
	Maxprot int32
	Prot    int32
	Nsect   uint32
	Flag    uint32
}

type section32 struct {
	Name      [16]byte
	Seg       [16]byte
	Addr      uint32
	Size      uint32
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     uint32
	Reserved1 uint32
	Reserved2 uint32
}

type section64 struct {
	Name      [16]byte
	Seg       [16]byte
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     uint32
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
}

type fatHeader struct {
	Magic uint32
	NArch uint32
}

type fatArch struct {
	CPU    int32
	SubCPU int32
	Offset uint32
	Size   uint32
	Align  uint32
}

func name16(s string) [16]byte {
	var b [16]byte
	copy(b[:], s)
	return b
}

func pack(order binary.ByteOrder, v any) []byte {
	var buf bytes.Buffer
	if err := struc.PackWithOrder(&buf, v, order); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// A Section describes one section record of a Segment.
type Section struct {
	Name   string
	Seg    string
	Addr   uint64
	Size   uint64
	Offset uint32
	Align  uint32
	Flags  types.SectionFlag
}

// A Segment describes a segment command. Nsect overrides the section count
// written to the command when non-nil. Slack is appended after the section
// records and counted in cmdsize.
type Segment struct {
	Name     string
	Addr     uint64
	Memsz    uint64
	Offset   uint64
	Filesz   uint64
	Maxprot  types.VmProtection
	Prot     types.VmProtection
	Sections []Section
	Nsect    *uint32
	Slack    []byte
}

// Builder assembles a thin image: a mach header followed by load commands.
type Builder struct {
	Order  binary.ByteOrder
	Is64   bool
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Type   types.HeaderFileType
	Flags  types.HeaderFlag

	// NCmds and SizeOfCmds override the computed header values when non-nil.
	NCmds      *uint32
	SizeOfCmds *uint32

	cmds [][]byte
}

// New returns a builder for an arm64/x86_64 style executable.
func New(order binary.ByteOrder, is64 bool) *Builder {
	b := &Builder{Order: order, Is64: is64, Type: types.MH_EXECUTE}
	if is64 {
		b.CPU = types.CPUArm64
	} else {
		b.CPU = types.CPUArm
		b.SubCPU = types.CPUSubtypeArmV7
	}
	return b
}

func U32(v uint32) *uint32 { return &v }

// HeaderSize returns the size of the mach header the builder writes.
func (b *Builder) HeaderSize() int {
	if b.Is64 {
		return types.FileHeaderSize64
	}
	return types.FileHeaderSize32
}

// Raw appends a command exactly as given.
func (b *Builder) Raw(cmd []byte) *Builder {
	b.cmds = append(b.cmds, cmd)
	return b
}

// Command appends a command built from its id, the fixed fields following
// cmd/cmdsize and any trailing bytes. cmdsize is computed unless size is non-zero.
func (b *Builder) Command(cmd types.LoadCmd, size uint32, fields []uint32, trailing []byte) *Builder {
	body := new(bytes.Buffer)
	for _, f := range fields {
		binary.Write(body, b.Order, f)
	}
	body.Write(trailing)
	if size == 0 {
		size = uint32(8 + body.Len())
	}
	out := make([]byte, 8, 8+body.Len())
	b.Order.PutUint32(out[0:], uint32(cmd))
	b.Order.PutUint32(out[4:], size)
	return b.Raw(append(out, body.Bytes()...))
}

// padStr NUL terminates s and pads it to a multiple of 8 bytes.
func padStr(s string) []byte {
	n := (len(s) + 1 + 7) &^ 7
	out := make([]byte, n)
	copy(out, s)
	return out
}

// Dylib appends a dylib command (LC_LOAD_DYLIB, LC_ID_DYLIB, ...) for path.
func (b *Builder) Dylib(cmd types.LoadCmd, path string, current, compat types.Version) *Builder {
	return b.Command(cmd, 0, []uint32{24, 2, uint32(current), uint32(compat)}, padStr(path))
}

// Dylinker appends a LC_LOAD_DYLINKER style command.
func (b *Builder) Dylinker(cmd types.LoadCmd, path string) *Builder {
	return b.Command(cmd, 0, []uint32{12}, padStr(path))
}

// Rpath appends a LC_RPATH command.
func (b *Builder) Rpath(path string) *Builder {
	return b.Command(types.LoadCmdRpath, 0, []uint32{12}, padStr(path))
}

// UUID appends a LC_UUID command.
func (b *Builder) UUID(u types.UUID) *Builder {
	return b.Command(types.LoadCmdUUID, 0, nil, u[:])
}

// Symtab appends a LC_SYMTAB command.
func (b *Builder) Symtab(symoff, nsyms, stroff, strsize uint32) *Builder {
	return b.Command(types.LoadCmdSymtab, 0, []uint32{symoff, nsyms, stroff, strsize}, nil)
}

// BuildVersion appends a LC_BUILD_VERSION command with the given tools.
func (b *Builder) BuildVersion(platform types.Platform, minos, sdk types.Version, tools ...types.BuildToolVersion) *Builder {
	fields := []uint32{uint32(platform), uint32(minos), uint32(sdk), uint32(len(tools))}
	for _, t := range tools {
		fields = append(fields, uint32(t.Tool), uint32(t.Version))
	}
	return b.Command(types.LoadCmdBuildVersion, 0, fields, nil)
}

// SourceVersion appends a LC_SOURCE_VERSION command.
func (b *Builder) SourceVersion(v types.SrcVersion) *Builder {
	var raw [8]byte
	b.Order.PutUint64(raw[:], uint64(v))
	return b.Command(types.LoadCmdSourceVersion, 0, nil, raw[:])
}

// Main appends a LC_MAIN command.
func (b *Builder) Main(entryoff, stacksize uint64) *Builder {
	var raw [16]byte
	b.Order.PutUint64(raw[0:], entryoff)
	b.Order.PutUint64(raw[8:], stacksize)
	return b.Command(types.LoadCmdMain, 0, nil, raw[:])
}

// Segment appends a segment command of the builder's width with its sections.
func (b *Builder) Segment(s Segment) *Builder {
	nsect := uint32(len(s.Sections))
	if s.Nsect != nil {
		nsect = *s.Nsect
	}
	var secs []byte
	if b.Is64 {
		for _, sec := range s.Sections {
			secs = append(secs, pack(b.Order, &section64{
				Name:   name16(sec.Name),
				Seg:    name16(sec.Seg),
				Addr:   sec.Addr,
				Size:   sec.Size,
				Offset: sec.Offset,
				Align:  sec.Align,
				Flags:  uint32(sec.Flags),
			})...)
		}
		secs = append(secs, s.Slack...)
		seg := pack(b.Order, &segment64{
			Cmd:     uint32(types.LoadCmdSegment64),
			Len:     uint32(72 + len(secs)),
			Name:    name16(s.Name),
			Addr:    s.Addr,
			Memsz:   s.Memsz,
			Offset:  s.Offset,
			Filesz:  s.Filesz,
			Maxprot: int32(s.Maxprot),
			Prot:    int32(s.Prot),
			Nsect:   nsect,
		})
		return b.Raw(append(seg, secs...))
	}
	for _, sec := range s.Sections {
		secs = append(secs, pack(b.Order, &section32{
			Name:   name16(sec.Name),
			Seg:    name16(sec.Seg),
			Addr:   uint32(sec.Addr),
			Size:   uint32(sec.Size),
			Offset: sec.Offset,
			Align:  sec.Align,
			Flags:  uint32(sec.Flags),
		})...)
	}
	secs = append(secs, s.Slack...)
	seg := pack(b.Order, &segment32{
		Cmd:     uint32(types.LoadCmdSegment),
		Len:     uint32(56 + len(secs)),
		Name:    name16(s.Name),
		Addr:    uint32(s.Addr),
		Memsz:   uint32(s.Memsz),
		Offset:  uint32(s.Offset),
		Filesz:  uint32(s.Filesz),
		Maxprot: int32(s.Maxprot),
		Prot:    int32(s.Prot),
		Nsect:   nsect,
	})
	return b.Raw(append(seg, secs...))
}

// Bytes returns the header followed by every command in order.
func (b *Builder) Bytes() []byte {
	var cmds []byte
	for _, c := range b.cmds {
		cmds = append(cmds, c...)
	}
	ncmds := uint32(len(b.cmds))
	if b.NCmds != nil {
		ncmds = *b.NCmds
	}
	sizeofcmds := uint32(len(cmds))
	if b.SizeOfCmds != nil {
		sizeofcmds = *b.SizeOfCmds
	}

	var hdr []byte
	if b.Is64 {
		hdr = pack(b.Order, &machHeader64{
			Magic:      uint32(types.Magic64),
			CPU:        int32(b.CPU),
			SubCPU:     int32(b.SubCPU),
			Type:       uint32(b.Type),
			NCmds:      ncmds,
			SizeOfCmds: sizeofcmds,
			Flags:      uint32(b.Flags),
		})
	} else {
		hdr = pack(b.Order, &machHeader{
			Magic:      uint32(types.Magic32),
			CPU:        int32(b.CPU),
			SubCPU:     int32(b.SubCPU),
			Type:       uint32(b.Type),
			NCmds:      ncmds,
			SizeOfCmds: sizeofcmds,
			Flags:      uint32(b.Flags),
		})
	}
	return append(hdr, cmds...)
}

// A FatArch is one slice of a fat image. When Data is nil, Offset and Size
// are written as given, which is how out of range entries are produced.
type FatArch struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Align  uint32
	Data   []byte
	Offset uint32
	Size   uint32
}

// Fat lays out a big endian fat header, the arch table and each slice at
// its 2^Align boundary.
func Fat(arches ...FatArch) []byte {
	table := make([]fatArch, len(arches))
	off := uint32(8 + 20*len(arches))
	var body []byte
	for i, a := range arches {
		table[i] = fatArch{
			CPU:    int32(a.CPU),
			SubCPU: int32(a.SubCPU),
			Offset: a.Offset,
			Size:   a.Size,
			Align:  a.Align,
		}
		if a.Data == nil {
			continue
		}
		align := uint32(1) << a.Align
		if pad := (align - off%align) % align; pad > 0 {
			body = append(body, make([]byte, pad)...)
			off += pad
		}
		table[i].Offset = off
		table[i].Size = uint32(len(a.Data))
		body = append(body, a.Data...)
		off += uint32(len(a.Data))
	}

	out := pack(binary.BigEndian, &fatHeader{Magic: uint32(types.MagicFat), NArch: uint32(len(arches))})
	for i := range table {
		out = append(out, pack(binary.BigEndian, &table[i])...)
	}
	return append(out, body...)
}
