package macho

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/machodec/internal/machotest"
	"github.com/blacktop/machodec/pkg/macho/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUUID = types.UUID{0x4c, 0x4c, 0x44, 0x8e, 0x55, 0x55, 0x31, 0x44, 0xa1, 0x77, 0x1e, 0x16, 0x2a, 0xf0, 0x3d, 0x22}

// sampleImage builds a small but complete executable.
func sampleImage(order binary.ByteOrder, is64 bool) []byte {
	b := machotest.New(order, is64)
	b.Flags = types.NoUndefs | types.DyldLink | types.TwoLevel | types.PIE
	b.Segment(machotest.Segment{
		Name:    "__TEXT",
		Addr:    0x4000,
		Memsz:   0x4000,
		Filesz:  0x4000,
		Maxprot: 5,
		Prot:    5,
		Sections: []machotest.Section{
			{Name: "__text", Seg: "__TEXT", Addr: 0x7f00, Size: 0x40, Offset: 0x3f00, Align: 2,
				Flags: types.PURE_INSTRUCTIONS | types.SOME_INSTRUCTIONS},
			{Name: "__cstring", Seg: "__TEXT", Addr: 0x7f40, Size: 0x20, Offset: 0x3f40,
				Flags: types.CstringLiterals},
		},
	})
	b.Symtab(0x8000, 12, 0x8100, 0x80)
	b.Dylinker(types.LoadCmdLoadDylinker, "/usr/lib/dyld")
	b.UUID(testUUID)
	b.BuildVersion(types.MacOS, 0x000e0000, 0x000e0200, types.BuildToolVersion{Tool: types.LD, Version: 0x03860b00})
	b.SourceVersion(types.SrcVersion(1300 << 40))
	b.Main(0x3f00, 0)
	b.Dylib(types.LoadCmdDylib, "/usr/lib/libSystem.B.dylib", 0x05276403, 0x00010000)
	b.Rpath("@executable_path/../Frameworks")
	return b.Bytes()
}

func TestDetectMagic(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		kind    Kind
		order   binary.ByteOrder
		magic   types.Magic
		swapped bool
	}{
		{"thin32 big", []byte{0xfe, 0xed, 0xfa, 0xce}, KindThin32, binary.BigEndian, types.Magic32, false},
		{"thin32 little", []byte{0xce, 0xfa, 0xed, 0xfe}, KindThin32, binary.LittleEndian, types.Magic32, true},
		{"thin64 big", []byte{0xfe, 0xed, 0xfa, 0xcf}, KindThin64, binary.BigEndian, types.Magic64, false},
		{"thin64 little", []byte{0xcf, 0xfa, 0xed, 0xfe, 0xff}, KindThin64, binary.LittleEndian, types.Magic64, true},
		{"fat", []byte{0xca, 0xfe, 0xba, 0xbe}, KindFat, binary.BigEndian, types.MagicFat, false},
		{"fat swapped", []byte{0xbe, 0xba, 0xfe, 0xca}, KindFat, binary.BigEndian, types.MagicFat, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mi, err := DetectMagic(tt.buf)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, mi.Kind)
			assert.Equal(t, tt.order, mi.ByteOrder)
			assert.Equal(t, tt.magic, mi.Magic)
			assert.Equal(t, tt.swapped, mi.Swapped)
		})
	}
}

func TestDetectMagicErrors(t *testing.T) {
	_, err := DetectMagic([]byte{0xfe, 0xed, 0xfa})
	assert.True(t, errors.Is(err, ErrTruncatedBuffer), "got %v", err)

	_, err = DetectMagic(nil)
	assert.True(t, errors.Is(err, ErrTruncatedBuffer), "got %v", err)

	_, err = DetectMagic([]byte("\x7fELF"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotMachO))
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, int64(0), fe.Offset())
	assert.Contains(t, err.Error(), "invalid magic number")
}

func TestNewFileRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
		is64  bool
	}{
		{"32 big", binary.BigEndian, false},
		{"32 little", binary.LittleEndian, false},
		{"64 big", binary.BigEndian, true},
		{"64 little", binary.LittleEndian, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := sampleImage(tt.order, tt.is64)
			f, err := NewFile(buf)
			require.NoError(t, err)
			assert.Empty(t, f.Diagnostics)

			hdrSize, segSize, secSize := 28, 56, 68
			magic, cpu := types.Magic32, types.CPUArm
			if tt.is64 {
				hdrSize, segSize, secSize = 32, 72, 80
				magic, cpu = types.Magic64, types.CPUArm64
			}
			assert.Equal(t, tt.is64, f.Is64())
			assert.Equal(t, hdrSize, f.Size())
			assert.Equal(t, magic, f.Magic)
			assert.Equal(t, cpu, f.CPU)
			assert.Equal(t, tt.order, f.ByteOrder)
			assert.Equal(t, types.MH_EXECUTE, f.Type)
			assert.Equal(t, uint32(9), f.NCommands)
			assert.Equal(t, uint32(len(buf)-hdrSize), f.SizeCommands)
			assert.True(t, f.HasFlag("MH_PIE"))
			require.Len(t, f.Loads, 9)

			wantCmds := []types.LoadCmd{
				types.LoadCmdSegment,
				types.LoadCmdSymtab,
				types.LoadCmdLoadDylinker,
				types.LoadCmdUUID,
				types.LoadCmdBuildVersion,
				types.LoadCmdSourceVersion,
				types.LoadCmdMain,
				types.LoadCmdDylib,
				types.LoadCmdRpath,
			}
			if tt.is64 {
				wantCmds[0] = types.LoadCmdSegment64
			}
			var sum uint32
			for i, l := range f.Loads {
				assert.Equal(t, wantCmds[i], l.Command(), "load %d", i)
				assert.Equal(t, int64(hdrSize)+int64(sum), l.CmdOffset(), "load %d", i)
				assert.Len(t, l.Raw(), int(l.LoadSize()))
				sum += l.LoadSize()
			}
			assert.Equal(t, f.SizeCommands, sum)

			seg := f.Segment("__TEXT")
			require.NotNil(t, seg)
			assert.Equal(t, tt.is64, seg.Is64())
			assert.Equal(t, uint64(0x4000), seg.Addr)
			assert.Equal(t, uint64(0x4000), seg.Memsz)
			assert.Equal(t, "r-x", seg.Prot.String())
			require.Len(t, seg.Sections, 2)
			text := seg.Section("__text")
			require.NotNil(t, text)
			assert.Equal(t, "__TEXT", text.Seg())
			assert.Equal(t, uint64(0x7f00), text.Addr)
			assert.Equal(t, uint64(0x40), text.Size)
			assert.Equal(t, uint32(0x3f00), text.Offset)
			assert.Equal(t, uint32(2), text.Align)
			assert.True(t, text.Flags.IsPureInstructions())
			assert.Equal(t, int64(hdrSize+segSize), text.Off)
			cstr := f.Section("__TEXT", "__cstring")
			require.NotNil(t, cstr)
			assert.True(t, cstr.Flags.IsCstringLiterals())
			assert.Equal(t, int64(hdrSize+segSize+secSize), cstr.Off)
			assert.Len(t, f.Sections(), 2)
			assert.Nil(t, f.Section("__DATA", "__data"))

			require.NotNil(t, f.UUID())
			assert.Equal(t, testUUID, f.UUID().UUID)
			assert.Nil(t, f.DylibID())
			assert.Equal(t, []string{"/usr/lib/libSystem.B.dylib"}, f.ImportedLibraries())
			assert.Equal(t, []string{"@executable_path/../Frameworks"}, f.Rpaths())

			bv := f.BuildVersion()
			require.NotNil(t, bv)
			assert.Equal(t, types.MacOS, bv.Platform)
			assert.Equal(t, "14.0.0", bv.Minos.String())
			assert.Equal(t, "14.2.0", bv.Sdk.String())
			require.Len(t, bv.Tools, 1)
			assert.Equal(t, types.LD, bv.Tools[0].Tool)

			require.NotNil(t, f.SourceVersion())
			assert.Equal(t, "1300.0.0.0.0", f.SourceVersion().Version.String())

			dyld, ok := f.Loads[2].(*Dylinker)
			require.True(t, ok)
			assert.Equal(t, "/usr/lib/dyld", dyld.Name.String())

			ep, ok := f.Loads[6].(*EntryPoint)
			require.True(t, ok)
			assert.Equal(t, uint64(0x3f00), ep.EntryOffset)

			lib, ok := f.Loads[7].(*Dylib)
			require.True(t, ok)
			assert.Equal(t, "1319.100.3", lib.CurrentVersion.String())
		})
	}
}

func TestNewFileIdempotent(t *testing.T) {
	buf := sampleImage(binary.LittleEndian, true)
	a, err := NewFile(buf)
	require.NoError(t, err)
	b, err := NewFile(buf)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseHeaderEndianness(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		t.Run(order.String(), func(t *testing.T) {
			b := machotest.New(order, false)
			b.CPU = types.CPU386
			b.SubCPU = types.CPUSubtypeX86All
			h, err := ParseHeader(b.Bytes())
			require.NoError(t, err)
			assert.Equal(t, types.CPU(7), h.CPU)
			assert.Equal(t, types.CPUSubtype(3), h.SubCPU)
		})
	}
}

func TestParseHeaderCapabilityMask(t *testing.T) {
	b := machotest.New(binary.LittleEndian, true)
	b.CPU = types.CPUAmd64
	b.SubCPU = 0x80000003
	h, err := ParseHeader(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, types.CPUSubtype(3), h.SubCPU)
	assert.Equal(t, types.CPUSubtypeLib64, h.Capabilities)
}

func TestParseHeaderTruncation(t *testing.T) {
	for _, is64 := range []bool{false, true} {
		b := machotest.New(binary.LittleEndian, is64)
		buf := b.Bytes()
		require.Len(t, buf, b.HeaderSize())

		_, err := ParseHeader(buf[:b.HeaderSize()-1])
		assert.True(t, errors.Is(err, ErrTruncatedBuffer), "got %v", err)

		h, err := ParseHeader(buf)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), h.NCommands)

		f, err := NewFile(buf)
		require.NoError(t, err)
		assert.Empty(t, f.Loads)
		assert.Empty(t, f.Diagnostics)
	}
}

func TestParseHeaderRejectsFat(t *testing.T) {
	fat := machotest.Fat(machotest.FatArch{CPU: types.CPUArm64, Data: sampleImage(binary.LittleEndian, true)})
	_, err := ParseHeader(fat)
	assert.True(t, errors.Is(err, ErrFatFile), "got %v", err)
	_, err = NewFile(fat)
	assert.True(t, errors.Is(err, ErrFatFile), "got %v", err)
}

func TestHasFlag(t *testing.T) {
	b := machotest.New(binary.BigEndian, true)
	b.Flags = types.PIE | types.TwoLevel
	h, err := ParseHeader(b.Bytes())
	require.NoError(t, err)

	tests := []struct {
		flag string
		want bool
	}{
		{"PIE", true},
		{"MH_PIE", true},
		{"pie", true},
		{"MH_TWOLEVEL", true},
		{"BindAtLoad", false},
		{"MH_NO_SUCH_FLAG", false},
		{"None", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			assert.Equal(t, tt.want, h.HasFlag(tt.flag))
		})
	}
}

func TestLoadCommandMalformedSize(t *testing.T) {
	b := machotest.New(binary.LittleEndian, true)
	b.Command(types.LoadCmdUUID, 4, nil, nil)   // cmdsize 4 in an 8 byte slot
	b.Command(types.LoadCmdPrepage, 0, nil, nil) // valid 8 byte command
	f, err := NewFile(b.Bytes())
	require.NoError(t, err)

	require.Len(t, f.Diagnostics, 1)
	assert.Equal(t, 1, f.Diagnostics.Count(ErrInvalidCommandSize))
	d := f.Diagnostics[0]
	assert.Equal(t, ScopeCommand, d.Scope)
	assert.Equal(t, 0, d.Index)
	assert.Equal(t, int64(32), d.Offset)
	assert.Equal(t, types.LoadCmdUUID, d.Cmd)

	require.Len(t, f.Loads, 1)
	assert.Equal(t, types.LoadCmdPrepage, f.Loads[0].Command())
	assert.IsType(t, &LoadCmdBytes{}, f.Loads[0])
	assert.Equal(t, 1, f.Loads[0].CmdIndex())
}

func TestLoadCommandFixedPartTooLarge(t *testing.T) {
	b := machotest.New(binary.BigEndian, true)
	b.Command(types.LoadCmdUUID, 0, nil, make([]byte, 8)) // 16 bytes, uuid_command needs 24
	b.Rpath("/opt/lib")
	f, err := NewFile(b.Bytes())
	require.NoError(t, err)

	require.Len(t, f.Diagnostics, 1)
	assert.True(t, f.Diagnostics.Has(ErrInvalidCommandSize))
	var fe *FormatError
	require.True(t, errors.As(f.Diagnostics.Err(), &fe))
	assert.Equal(t, int64(32), fe.Offset())

	require.Len(t, f.Loads, 1)
	assert.Equal(t, []string{"/opt/lib"}, f.Rpaths())
	assert.Nil(t, f.UUID())
}

func TestLoadCommandRunsOffBuffer(t *testing.T) {
	b := machotest.New(binary.LittleEndian, true)
	b.Command(types.LoadCmdPrepage, 0, nil, nil)
	b.Command(types.LoadCmdRpath, 0x100, []uint32{12}, []byte("/x\x00\x00"))
	f, err := NewFile(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, f.Diagnostics.Count(ErrInvalidCommandSize))
	assert.False(t, f.Diagnostics.Has(ErrLoadCommandsMismatch))
	require.Len(t, f.Loads, 1)
}

func TestLoadCommandsTruncatedWalk(t *testing.T) {
	b := machotest.New(binary.LittleEndian, true)
	b.Command(types.LoadCmdPrepage, 0, nil, nil)
	b.NCmds = machotest.U32(2)
	b.SizeOfCmds = machotest.U32(64)
	f, err := NewFile(b.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Diagnostics, 1)
	assert.True(t, f.Diagnostics.Has(ErrTruncatedBuffer))
	assert.Equal(t, 1, f.Diagnostics[0].Index)
	assert.Len(t, f.Loads, 1)
}

func TestLoadCommandsMismatch(t *testing.T) {
	b := machotest.New(binary.BigEndian, false)
	b.Command(types.LoadCmdPrepage, 0, nil, nil)
	b.Command(types.LoadCmdPrepage, 0, nil, nil)
	b.NCmds = machotest.U32(1)
	f, err := NewFile(b.Bytes())
	require.NoError(t, err)
	assert.Len(t, f.Loads, 1)
	require.Len(t, f.Diagnostics, 1)
	assert.True(t, f.Diagnostics.Has(ErrLoadCommandsMismatch))
	assert.Equal(t, ScopeHeader, f.Diagnostics[0].Scope)
}

func TestUnknownLoadCommand(t *testing.T) {
	b := machotest.New(binary.LittleEndian, true)
	b.Command(types.LoadCmd(0x7f), 0, []uint32{0xdeadbeef}, nil)
	f, err := NewFile(b.Bytes())
	require.NoError(t, err)
	assert.Empty(t, f.Diagnostics)
	require.Len(t, f.Loads, 1)
	raw, ok := f.Loads[0].(*LoadCmdBytes)
	require.True(t, ok)
	assert.Equal(t, uint32(12), raw.Len)
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, raw.Raw()[8:])
}

func TestSectionCountMismatch(t *testing.T) {
	for _, is64 := range []bool{false, true} {
		b := machotest.New(binary.LittleEndian, is64)
		b.Segment(machotest.Segment{
			Name:  "__DATA",
			Addr:  0x8000,
			Memsz: 0x1000,
			Prot:  3,
			Nsect: machotest.U32(2),
			Sections: []machotest.Section{
				{Name: "__data", Seg: "__DATA", Addr: 0x8000, Size: 0x10},
			},
		})
		f, err := NewFile(b.Bytes())
		require.NoError(t, err)

		require.Len(t, f.Diagnostics, 1)
		assert.True(t, f.Diagnostics.Has(ErrSectionCountMismatch))
		assert.Equal(t, ScopeSection, f.Diagnostics[0].Scope)

		seg := f.Segment("__DATA")
		require.NotNil(t, seg)
		assert.Equal(t, uint32(2), seg.Nsect)
		assert.Equal(t, uint64(0x8000), seg.Addr)
		assert.Equal(t, "rw-", seg.Prot.String())
		require.Len(t, seg.Sections, 1)
		assert.Equal(t, "__data", seg.Sections[0].Name())
	}
}

func TestSectionSlack(t *testing.T) {
	data := machotest.Section{Name: "__data", Seg: "__DATA", Addr: 0x8000, Size: 0x10}
	bss := machotest.Section{Name: "__bss", Seg: "__DATA", Addr: 0x8010, Size: 0x20}
	tests := []struct {
		name     string
		nsect    uint32
		sections []machotest.Section
		slack    []byte
	}{
		{"extra whole record", 0, []machotest.Section{data}, nil},
		{"two records one declared", 1, []machotest.Section{data, bss}, nil},
		{"trailing partial record", 1, []machotest.Section{data}, make([]byte, 4)},
		{"padding only", 0, nil, make([]byte, 8)},
	}
	for _, tt := range tests {
		for _, is64 := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/64=%v", tt.name, is64), func(t *testing.T) {
				b := machotest.New(binary.BigEndian, is64)
				b.Segment(machotest.Segment{
					Name:     "__DATA",
					Addr:     0x8000,
					Memsz:    0x1000,
					Nsect:    machotest.U32(tt.nsect),
					Sections: tt.sections,
					Slack:    tt.slack,
				})
				f, err := NewFile(b.Bytes())
				require.NoError(t, err)

				require.Len(t, f.Diagnostics, 1)
				assert.True(t, f.Diagnostics.Has(ErrSectionCountMismatch))
				assert.False(t, f.Diagnostics.Has(ErrLoadCommandsMismatch))

				seg := f.Segment("__DATA")
				require.NotNil(t, seg)
				require.Len(t, seg.Sections, int(tt.nsect))
				if tt.nsect > 0 {
					assert.Equal(t, "__data", seg.Sections[0].Name())
				}
			})
		}
	}
}

func TestLCStr(t *testing.T) {
	b := machotest.New(binary.BigEndian, true)
	b.Command(types.LoadCmdRpath, 0, []uint32{200}, []byte("abc\x00\x00\x00\x00\x00"))
	b.Command(types.LoadCmdRpath, 0, []uint32{12}, []byte("abc\x00\x00\x00\x00\x00"))
	b.Command(types.LoadCmdRpath, 0, []uint32{12}, []byte("unterminated"))
	f, err := NewFile(b.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Loads, 3)

	bad := f.Loads[0].(*Rpath)
	assert.False(t, bad.Path.Valid())
	assert.Nil(t, bad.Path.Bytes())
	assert.Equal(t, "", bad.Path.String())
	assert.Equal(t, 0, bad.Path.Len())

	good := f.Loads[1].(*Rpath)
	assert.True(t, good.Path.Valid())
	assert.Equal(t, uint32(12), good.Path.Off)
	assert.Equal(t, 8, good.Path.Len())
	assert.Equal(t, "abc", good.Path.String())

	open := f.Loads[2].(*Rpath)
	assert.Equal(t, "unterminated", open.Path.String())
}

func TestLCStrInsideFixedFields(t *testing.T) {
	tests := []struct {
		off   uint32
		valid bool
	}{
		{0, false},
		{8, false},
		{11, false},
		{12, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("offset %d", tt.off), func(t *testing.T) {
			b := machotest.New(binary.LittleEndian, true)
			b.Command(types.LoadCmdRpath, 0, []uint32{tt.off}, []byte("/lib\x00\x00\x00\x00"))
			f, err := NewFile(b.Bytes())
			require.NoError(t, err)
			require.Len(t, f.Loads, 1)
			p := f.Loads[0].(*Rpath).Path
			assert.Equal(t, tt.valid, p.Valid())
			if tt.valid {
				assert.Equal(t, "/lib", p.String())
			} else {
				assert.Empty(t, p.String())
			}
		})
	}
}

func TestDispatchTableCoverage(t *testing.T) {
	for cmd := range decoders {
		t.Run(cmd.String(), func(t *testing.T) {
			b := machotest.New(binary.LittleEndian, true)
			b.Command(cmd, 0, nil, make([]byte, 88))
			f, err := NewFile(b.Bytes())
			require.NoError(t, err)
			require.Len(t, f.Loads, 1)
			assert.Equal(t, cmd, f.Loads[0].Command())
			assert.NotPanics(t, func() { _ = f.Loads[0].String() })
			_, generic := f.Loads[0].(*LoadCmdBytes)
			assert.False(t, generic)
			assert.False(t, f.Diagnostics.Has(ErrInvalidCommandSize))
		})
	}
}

func u64s(order binary.ByteOrder, vals ...uint64) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		order.PutUint64(out[8*i:], v)
	}
	return out
}

func TestDecodeCommandFields(t *testing.T) {
	tests := []struct {
		name     string
		cmd      types.LoadCmd
		fields   []uint32
		trailing func(order binary.ByteOrder) []byte
		check    func(t *testing.T, l Load)
	}{
		{
			name:   "routines",
			cmd:    types.LoadCmdRoutines,
			fields: []uint32{0x1f00, 7, 11, 12, 13, 14, 15, 16},
			check: func(t *testing.T, l Load) {
				r := l.(*Routines)
				assert.Equal(t, uint64(0x1f00), r.InitAddress)
				assert.Equal(t, uint64(7), r.InitModule)
				assert.Equal(t, [6]uint64{11, 12, 13, 14, 15, 16}, r.Reserved)
			},
		},
		{
			name: "routines 64",
			cmd:  types.LoadCmdRoutines64,
			trailing: func(order binary.ByteOrder) []byte {
				return u64s(order, 0x1_0000_3f00, 9, 21, 22, 23, 24, 25, 26)
			},
			check: func(t *testing.T, l Load) {
				r := l.(*Routines)
				assert.Equal(t, uint64(0x1_0000_3f00), r.InitAddress)
				assert.Equal(t, uint64(9), r.InitModule)
				assert.Equal(t, [6]uint64{21, 22, 23, 24, 25, 26}, r.Reserved)
			},
		},
		{
			name:   "prebound dylib",
			cmd:    types.LoadCmdPreboundDylib,
			fields: []uint32{20, 3, 28},
			trailing: func(binary.ByteOrder) []byte {
				return []byte("libfoo\x00\x00\x05\x00\x00\x00\x00\x00\x00\x00")
			},
			check: func(t *testing.T, l Load) {
				p := l.(*PreboundDylib)
				assert.Equal(t, "libfoo", p.Name.String())
				assert.Equal(t, uint32(3), p.NModules)
				assert.Equal(t, uint32(28), p.LinkedModules.Off)
				assert.Equal(t, []byte{0x05}, p.LinkedModules.Bytes())
			},
		},
		{
			name:     "sub framework",
			cmd:      types.LoadCmdSubFramework,
			fields:   []uint32{12},
			trailing: func(binary.ByteOrder) []byte { return []byte("UIKit\x00\x00\x00") },
			check: func(t *testing.T, l Load) {
				assert.Equal(t, "UIKit", l.(*SubFramework).Umbrella.String())
			},
		},
		{
			name:     "sub umbrella",
			cmd:      types.LoadCmdSubUmbrella,
			fields:   []uint32{12},
			trailing: func(binary.ByteOrder) []byte { return []byte("Core\x00\x00\x00\x00") },
			check: func(t *testing.T, l Load) {
				assert.Equal(t, "Core", l.(*SubUmbrella).Umbrella.String())
			},
		},
		{
			name:     "sub library",
			cmd:      types.LoadCmdSubLibrary,
			fields:   []uint32{12},
			trailing: func(binary.ByteOrder) []byte { return []byte("libz\x00\x00\x00\x00") },
			check: func(t *testing.T, l Load) {
				assert.Equal(t, "libz", l.(*SubLibrary).Library.String())
			},
		},
		{
			name:     "sub client",
			cmd:      types.LoadCmdSubClient,
			fields:   []uint32{12},
			trailing: func(binary.ByteOrder) []byte { return []byte("Xcode\x00\x00\x00") },
			check: func(t *testing.T, l Load) {
				assert.Equal(t, "Xcode", l.(*SubClient).Client.String())
			},
		},
		{
			name: "dysymtab",
			cmd:  types.LoadCmdDysymtab,
			fields: []uint32{
				0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09,
				0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12,
			},
			check: func(t *testing.T, l Load) {
				assert.Equal(t, &Dysymtab{
					LoadHeader:     l.(*Dysymtab).LoadHeader,
					Ilocalsym:      0x01,
					Nlocalsym:      0x02,
					Iextdefsym:     0x03,
					Nextdefsym:     0x04,
					Iundefsym:      0x05,
					Nundefsym:      0x06,
					Tocoffset:      0x07,
					Ntoc:           0x08,
					Modtaboff:      0x09,
					Nmodtab:        0x0a,
					Extrefsymoff:   0x0b,
					Nextrefsyms:    0x0c,
					Indirectsymoff: 0x0d,
					Nindirectsyms:  0x0e,
					Extreloff:      0x0f,
					Nextrel:        0x10,
					Locreloff:      0x11,
					Nlocrel:        0x12,
				}, l)
			},
		},
	}
	orders := []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}
	for _, tt := range tests {
		for _, order := range orders {
			t.Run(fmt.Sprintf("%s/%s", tt.name, order), func(t *testing.T) {
				b := machotest.New(order, true)
				var trailing []byte
				if tt.trailing != nil {
					trailing = tt.trailing(order)
				}
				b.Command(tt.cmd, 0, tt.fields, trailing)
				f, err := NewFile(b.Bytes())
				require.NoError(t, err)
				assert.Empty(t, f.Diagnostics)
				require.Len(t, f.Loads, 1)
				assert.Equal(t, tt.cmd, f.Loads[0].Command())
				tt.check(t, f.Loads[0])
			})
		}
	}
}

func TestParseFat(t *testing.T) {
	good := sampleImage(binary.LittleEndian, true)
	buf := machotest.Fat(
		machotest.FatArch{CPU: types.CPUAmd64, SubCPU: types.CPUSubtypeX8664All, Offset: 0x10000, Size: 0x1000},
		machotest.FatArch{CPU: types.CPUArm64, SubCPU: types.CPUSubtypeArm64E | types.CPUSubtypeLib64, Align: 4, Data: good},
	)
	ff, err := ParseFat(buf)
	require.NoError(t, err)
	assert.Equal(t, types.MagicFat, ff.Magic)
	assert.Equal(t, uint32(2), ff.NArch)
	require.Len(t, ff.Arches, 2)

	assert.False(t, ff.Arches[0].Valid)
	assert.Nil(t, ff.Arches[0].Data())
	assert.Equal(t, "x86_64", ff.Arches[0].Name())
	require.Len(t, ff.Diagnostics, 1)
	assert.True(t, ff.Diagnostics.Has(ErrBadArchSlice))
	assert.Equal(t, ScopeArch, ff.Diagnostics[0].Scope)
	assert.Equal(t, 0, ff.Diagnostics[0].Index)
	assert.Equal(t, int64(8), ff.Diagnostics[0].Offset)

	a := ff.Arches[1]
	assert.True(t, a.Valid)
	assert.Equal(t, 1, a.Index)
	assert.Equal(t, uint32(0), a.Offset%16)
	assert.Equal(t, good, a.Data())
	assert.Equal(t, "arm64e", a.Name())

	got, ok := ff.ArchByName("arm64e")
	require.True(t, ok)
	assert.Equal(t, 1, got.Index)
	_, ok = ff.ArchByName("x86_64")
	assert.False(t, ok)
	_, ok = ff.ArchByName("nonsense")
	assert.False(t, ok)
	got, ok = ff.Arch(types.CPUArm64)
	require.True(t, ok)
	assert.Equal(t, 1, got.Index)
	_, ok = ff.Arch(types.CPUAmd64)
	assert.False(t, ok)
}

func TestParseFatKeepsOrderAndDuplicates(t *testing.T) {
	img := sampleImage(binary.BigEndian, false)
	buf := machotest.Fat(
		machotest.FatArch{CPU: types.CPUArm, SubCPU: types.CPUSubtypeArmV7, Data: img},
		machotest.FatArch{CPU: types.CPUArm, SubCPU: types.CPUSubtypeArmV7, Data: img},
	)
	ff, err := ParseFat(buf)
	require.NoError(t, err)
	require.Len(t, ff.Arches, 2)
	assert.Less(t, ff.Arches[0].Offset, ff.Arches[1].Offset)
	assert.Empty(t, ff.Diagnostics)
	got, ok := ff.Arch(types.CPUArm)
	require.True(t, ok)
	assert.Equal(t, 0, got.Index)
}

func TestParseFatTruncatedTable(t *testing.T) {
	buf := machotest.Fat(
		machotest.FatArch{CPU: types.CPUArm64, Offset: 0, Size: 0},
		machotest.FatArch{CPU: types.CPUAmd64, Offset: 0, Size: 0},
	)
	_, err := ParseFat(buf[:8+20+19])
	assert.True(t, errors.Is(err, ErrTruncatedBuffer), "got %v", err)
	_, err = ParseFat(buf[:7])
	assert.True(t, errors.Is(err, ErrTruncatedBuffer), "got %v", err)

	_, err = ParseFat(sampleImage(binary.LittleEndian, true))
	assert.True(t, errors.Is(err, ErrNotMachO), "got %v", err)
}

func TestDecodeFatSliceIsolation(t *testing.T) {
	buf := machotest.Fat(
		machotest.FatArch{CPU: types.CPUAmd64, SubCPU: types.CPUSubtypeX8664All, Offset: 0x10000, Size: 0x1000},
		machotest.FatArch{CPU: types.CPUArm64, Align: 4, Data: sampleImage(binary.LittleEndian, true)},
	)
	res, err := Decode(context.Background(), buf)
	require.NoError(t, err)
	assert.True(t, res.IsFat())
	assert.Equal(t, KindFat, res.Magic.Kind)
	require.Len(t, res.Files, 2)
	assert.Nil(t, res.Files[0])
	require.NotNil(t, res.Files[1])
	assert.Equal(t, types.CPUArm64, res.Files[1].CPU)
	assert.Equal(t, 1, res.Diagnostics.Count(ErrBadArchSlice))

	f, ok := res.File("arm64")
	require.True(t, ok)
	assert.Same(t, res.Files[1], f)
	_, ok = res.File("x86_64")
	assert.False(t, ok)
}

func TestDecodeFatBadSliceHeader(t *testing.T) {
	buf := machotest.Fat(
		machotest.FatArch{CPU: types.CPUArm64, Data: []byte("not a macho at all")},
		machotest.FatArch{CPU: types.CPUArm64, Data: sampleImage(binary.LittleEndian, true)},
	)
	res, err := Decode(context.Background(), buf)
	require.NoError(t, err)
	assert.Nil(t, res.Files[0])
	assert.NotNil(t, res.Files[1])
	require.Len(t, res.Diagnostics, 1)
	assert.True(t, res.Diagnostics.Has(ErrNotMachO))
	assert.Equal(t, ScopeArch, res.Diagnostics[0].Scope)
	assert.Equal(t, 0, res.Diagnostics[0].Index)
}

func TestDecodeConcurrentMatchesSerial(t *testing.T) {
	buf := machotest.Fat(
		machotest.FatArch{CPU: types.CPUArm64, Align: 4, Data: sampleImage(binary.LittleEndian, true)},
		machotest.FatArch{CPU: types.CPUArm, SubCPU: types.CPUSubtypeArmV7, Align: 4, Data: sampleImage(binary.BigEndian, false)},
		machotest.FatArch{CPU: types.CPUArm64, Align: 4, Data: sampleImage(binary.BigEndian, true)},
	)
	serial, err := Decode(context.Background(), buf, WithConcurrency(1))
	require.NoError(t, err)
	parallel, err := Decode(context.Background(), buf, WithConcurrency(8))
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)
	assert.Empty(t, parallel.AllDiagnostics())
	for i, f := range parallel.Files {
		require.NotNil(t, f, "slice %d", i)
		assert.Len(t, f.Loads, 9)
	}
}

func TestDecodeCancelled(t *testing.T) {
	buf := machotest.Fat(machotest.FatArch{CPU: types.CPUArm64, Data: sampleImage(binary.LittleEndian, true)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Decode(ctx, buf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeThin(t *testing.T) {
	res, err := Decode(context.Background(), sampleImage(binary.BigEndian, true))
	require.NoError(t, err)
	assert.False(t, res.IsFat())
	require.Len(t, res.Files, 1)
	f, ok := res.File("arm64")
	require.True(t, ok)
	assert.Equal(t, types.CPUArm64, f.CPU)
	assert.NoError(t, res.AllDiagnostics().Err())
}

func TestOpen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "a.out")
	require.NoError(t, os.WriteFile(name, sampleImage(binary.LittleEndian, true), 0o644))
	res, err := Open(name)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Len(t, res.Files[0].Loads, 9)

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	junk := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(junk, []byte("#!/bin/sh\n"), 0o644))
	_, err = Open(junk)
	assert.True(t, errors.Is(err, ErrNotMachO), "got %v", err)
}

func TestDiagnosticsErr(t *testing.T) {
	var ds Diagnostics
	assert.NoError(t, ds.Err())
	assert.False(t, ds.Has(ErrBadArchSlice))

	ds = append(ds,
		Diagnostic{Scope: ScopeArch, Index: 1, Offset: 0x1c, Err: errors.Wrap(ErrBadArchSlice, "x")},
		Diagnostic{Scope: ScopeCommand, Index: 3, Offset: 0x40, Cmd: types.LoadCmdUUID, Err: ErrInvalidCommandSize},
	)
	err := ds.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadArchSlice))
	assert.True(t, errors.Is(err, ErrInvalidCommandSize))
	assert.False(t, errors.Is(err, ErrNotMachO))
	assert.Contains(t, err.Error(), "2 problems")
	assert.Contains(t, err.Error(), "command 3 (LC_UUID) at 0x40")
	assert.Equal(t, 1, ds.Count(ErrBadArchSlice))
}
