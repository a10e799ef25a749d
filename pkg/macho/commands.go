package macho

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/blacktop/machodec/pkg/macho/types"
)

// A Load represents any Mach-O load command. The set of implementations is
// closed: every value is one of the command types in this file.
type Load interface {
	Raw() []byte
	Command() types.LoadCmd
	LoadSize() uint32
	CmdOffset() int64
	CmdIndex() int
	String() string
	load()
}

// A LoadHeader is the cmd/cmdsize prefix every load command starts with.
type LoadHeader struct {
	Off   int64 // offset of the command in its thin image
	Index int   // position in the header's command table, dropped commands included
	Cmd   types.LoadCmd
	Len   uint32

	raw []byte
}

func (h LoadHeader) Raw() []byte            { return h.raw }
func (h LoadHeader) Command() types.LoadCmd { return h.Cmd }
func (h LoadHeader) LoadSize() uint32       { return h.Len }
func (h LoadHeader) CmdOffset() int64       { return h.Off }
func (h LoadHeader) CmdIndex() int          { return h.Index }
func (h LoadHeader) load()                  {}

// An LCStr is an lc_str: a NUL terminated string stored inside the command
// it belongs to, addressed by an offset from the start of that command.
type LCStr struct {
	Off uint32

	raw []byte
	min uint32 // size of the command's fixed part
}

func lcStr(raw []byte, off, min uint32) LCStr {
	return LCStr{Off: off, raw: raw, min: min}
}

// Valid reports whether the offset points past the command's fixed fields
// and inside the command.
func (s LCStr) Valid() bool {
	return s.Off >= s.min && uint64(s.Off) < uint64(len(s.raw))
}

// Len is the number of bytes from Off to the end of the command.
func (s LCStr) Len() int {
	if !s.Valid() {
		return 0
	}
	return len(s.raw) - int(s.Off)
}

// Bytes returns the string bytes up to the first NUL (or the end of the command).
func (s LCStr) Bytes() []byte {
	if !s.Valid() {
		return nil
	}
	b := s.raw[s.Off:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return b
}

func (s LCStr) String() string { return string(s.Bytes()) }

func (s LCStr) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// LoadCmdBytes is a load command this package does not decode.
type LoadCmdBytes struct {
	LoadHeader
}

func (l *LoadCmdBytes) String() string {
	return fmt.Sprintf("%s len=%d", l.Cmd, l.Len)
}

// A Segment represents a LC_SEGMENT or LC_SEGMENT_64 command.
type Segment struct {
	LoadHeader
	SegName  [16]byte
	Addr     uint64
	Memsz    uint64
	Offset   uint64
	Filesz   uint64
	Maxprot  types.VmProtection
	Prot     types.VmProtection
	Nsect    uint32
	Flag     SegFlag
	Sections []*Section
}

type SegFlag uint32

const (
	HighVM            SegFlag = 0x1 // the file contents for this segment is for the high part of the VM space
	FvmLib            SegFlag = 0x2 // this segment is the VM that is allocated by a fixed VM library
	NoReLoc           SegFlag = 0x4 // this segment has nothing that was relocated in it and nothing relocated to it
	ProtectedVersion1 SegFlag = 0x8 // this segment is protected
	ReadOnly          SegFlag = 0x10
)

func (s *Segment) Name() string { return cstring(s.SegName[:]) }
func (s *Segment) Is64() bool   { return s.Cmd == types.LoadCmdSegment64 }

// Section returns the named section of the segment, or nil.
func (s *Segment) Section(name string) *Section {
	for _, sec := range s.Sections {
		if sec.Name() == name {
			return sec
		}
	}
	return nil
}

func (s *Segment) String() string {
	return fmt.Sprintf("%-16s addr=%#09x-%#09x off=%#x-%#x %s/%s nsect=%d",
		s.Name(), s.Addr, s.Addr+s.Memsz, s.Offset, s.Offset+s.Filesz, s.Prot, s.Maxprot, s.Nsect)
}

// A Symtab represents a LC_SYMTAB command.
type Symtab struct {
	LoadHeader
	Symoff  uint32
	Nsyms   uint32
	Stroff  uint32
	Strsize uint32
}

func (s *Symtab) String() string {
	return fmt.Sprintf("symoff=%#x nsyms=%d stroff=%#x strsize=%d", s.Symoff, s.Nsyms, s.Stroff, s.Strsize)
}

// A Dysymtab represents a LC_DYSYMTAB command.
type Dysymtab struct {
	LoadHeader
	Ilocalsym      uint32
	Nlocalsym      uint32
	Iextdefsym     uint32
	Nextdefsym     uint32
	Iundefsym      uint32
	Nundefsym      uint32
	Tocoffset      uint32
	Ntoc           uint32
	Modtaboff      uint32
	Nmodtab        uint32
	Extrefsymoff   uint32
	Nextrefsyms    uint32
	Indirectsymoff uint32
	Nindirectsyms  uint32
	Extreloff      uint32
	Nextrel        uint32
	Locreloff      uint32
	Nlocrel        uint32
}

func (d *Dysymtab) String() string {
	return fmt.Sprintf("%d locals, %d exported, %d undefined, %d indirect", d.Nlocalsym, d.Nextdefsym, d.Nundefsym, d.Nindirectsyms)
}

// A Dylib represents any of the dylib load/id commands; Cmd tells which.
type Dylib struct {
	LoadHeader
	Name           LCStr
	Time           uint32
	CurrentVersion types.Version
	CompatVersion  types.Version
}

func (d *Dylib) Path() string { return d.Name.String() }

func (d *Dylib) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.CurrentVersion)
}

// A Dylinker represents LC_LOAD_DYLINKER, LC_ID_DYLINKER or LC_DYLD_ENVIRONMENT.
type Dylinker struct {
	LoadHeader
	Name LCStr
}

func (d *Dylinker) String() string { return d.Name.String() }

// A PreboundDylib represents a LC_PREBOUND_DYLIB command.
type PreboundDylib struct {
	LoadHeader
	Name          LCStr
	NModules      uint32
	LinkedModules LCStr // bit vector, one bit per module
}

func (p *PreboundDylib) String() string {
	return fmt.Sprintf("%s nmodules=%d", p.Name, p.NModules)
}

// A UUIDCmd represents a LC_UUID command.
type UUIDCmd struct {
	LoadHeader
	UUID types.UUID
}

func (u *UUIDCmd) String() string { return u.UUID.String() }

// A Routines represents LC_ROUTINES or LC_ROUTINES_64.
type Routines struct {
	LoadHeader
	InitAddress uint64
	InitModule  uint64
	Reserved    [6]uint64
}

func (r *Routines) String() string {
	return fmt.Sprintf("init_address=%#x init_module=%d", r.InitAddress, r.InitModule)
}

// A SubFramework represents a LC_SUB_FRAMEWORK command.
type SubFramework struct {
	LoadHeader
	Umbrella LCStr
}

func (s *SubFramework) String() string { return s.Umbrella.String() }

// A SubUmbrella represents a LC_SUB_UMBRELLA command.
type SubUmbrella struct {
	LoadHeader
	Umbrella LCStr
}

func (s *SubUmbrella) String() string { return s.Umbrella.String() }

// A SubLibrary represents a LC_SUB_LIBRARY command.
type SubLibrary struct {
	LoadHeader
	Library LCStr
}

func (s *SubLibrary) String() string { return s.Library.String() }

// A SubClient represents a LC_SUB_CLIENT command.
type SubClient struct {
	LoadHeader
	Client LCStr
}

func (s *SubClient) String() string { return s.Client.String() }

// A Rpath represents a LC_RPATH command.
type Rpath struct {
	LoadHeader
	Path LCStr
}

func (r *Rpath) String() string { return r.Path.String() }

// A LinkEditData is any linkedit_data_command (code signature, function
// starts, chained fixups, ...); Cmd tells which.
type LinkEditData struct {
	LoadHeader
	DataOff  uint32
	DataSize uint32
}

func (l *LinkEditData) String() string {
	return fmt.Sprintf("offset=%#08x-%#08x size=%5d", l.DataOff, l.DataOff+l.DataSize, l.DataSize)
}

// A DyldInfo represents LC_DYLD_INFO or LC_DYLD_INFO_ONLY.
type DyldInfo struct {
	LoadHeader
	RebaseOff    uint32
	RebaseSize   uint32
	BindOff      uint32
	BindSize     uint32
	WeakBindOff  uint32
	WeakBindSize uint32
	LazyBindOff  uint32
	LazyBindSize uint32
	ExportOff    uint32
	ExportSize   uint32
}

func (d *DyldInfo) String() string {
	return fmt.Sprintf("rebase=%#x/%d bind=%#x/%d weak_bind=%#x/%d lazy_bind=%#x/%d export=%#x/%d",
		d.RebaseOff, d.RebaseSize, d.BindOff, d.BindSize, d.WeakBindOff, d.WeakBindSize,
		d.LazyBindOff, d.LazyBindSize, d.ExportOff, d.ExportSize)
}

// An EncryptionInfo represents LC_ENCRYPTION_INFO or LC_ENCRYPTION_INFO_64.
type EncryptionInfo struct {
	LoadHeader
	CryptOff  uint32
	CryptSize uint32
	CryptID   uint32
}

func (e *EncryptionInfo) Encrypted() bool { return e.CryptID != 0 }

func (e *EncryptionInfo) String() string {
	return fmt.Sprintf("offset=%#x size=%#x id=%d", e.CryptOff, e.CryptSize, e.CryptID)
}

// A VersionMin represents one of the LC_VERSION_MIN_* commands.
type VersionMin struct {
	LoadHeader
	Version types.Version
	Sdk     types.Version
}

func (v *VersionMin) String() string {
	return fmt.Sprintf("version=%s sdk=%s", v.Version, v.Sdk)
}

// A SourceVersion represents a LC_SOURCE_VERSION command.
type SourceVersion struct {
	LoadHeader
	Version types.SrcVersion
}

func (s *SourceVersion) String() string { return s.Version.String() }

// A BuildVersion represents a LC_BUILD_VERSION command.
type BuildVersion struct {
	LoadHeader
	Platform types.Platform
	Minos    types.Version
	Sdk      types.Version
	NumTools uint32
	Tools    []types.BuildToolVersion
}

func (b *BuildVersion) String() string {
	s := fmt.Sprintf("platform=%s minos=%s sdk=%s", b.Platform, b.Minos, b.Sdk)
	if len(b.Tools) > 0 {
		tools := make([]string, 0, len(b.Tools))
		for _, t := range b.Tools {
			tools = append(tools, t.String())
		}
		s += " tools=" + strings.Join(tools, ", ")
	}
	return s
}

// An EntryPoint represents a LC_MAIN command.
type EntryPoint struct {
	LoadHeader
	EntryOffset uint64
	StackSize   uint64
}

func (e *EntryPoint) String() string {
	return fmt.Sprintf("entryoff=%#x stacksize=%#x", e.EntryOffset, e.StackSize)
}
