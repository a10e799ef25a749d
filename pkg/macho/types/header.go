package types

import (
	"fmt"
	"strings"
)

// A FileHeader represents a Mach-O file header.
type FileHeader struct {
	Magic        Magic
	CPU          CPU
	SubCPU       CPUSubtype
	Type         HeaderFileType
	NCommands    uint32
	SizeCommands uint32
	Flags        HeaderFlag
	Reserved     uint32 // 64-bit only
}

const (
	FileHeaderSize32 = 7 * 4
	FileHeaderSize64 = 8 * 4
)

type Magic uint32

const (
	Magic32  Magic = 0xfeedface
	Magic64  Magic = 0xfeedfacf
	MagicFat Magic = 0xcafebabe
	// byte swapped forms, as read with the wrong byte order
	Cigam32  Magic = 0xcefaedfe
	Cigam64  Magic = 0xcffaedfe
	CigamFat Magic = 0xbebafeca
)

var magicStrings = []IntName{
	{uint32(Magic32), "32-bit MachO"},
	{uint32(Magic64), "64-bit MachO"},
	{uint32(MagicFat), "Fat MachO"},
	{uint32(Cigam32), "32-bit MachO (swapped)"},
	{uint32(Cigam64), "64-bit MachO (swapped)"},
	{uint32(CigamFat), "Fat MachO (swapped)"},
}

func (i Magic) Int() uint32      { return uint32(i) }
func (i Magic) String() string   { return StringName(uint32(i), magicStrings, false) }
func (i Magic) GoString() string { return StringName(uint32(i), magicStrings, true) }

// A HeaderFileType is the Mach-O file type, e.g. an object file, executable, or dynamic library.
type HeaderFileType uint32

const (
	MH_OBJECT      HeaderFileType = 0x1 /* relocatable object file */
	MH_EXECUTE     HeaderFileType = 0x2 /* demand paged executable file */
	MH_FVMLIB      HeaderFileType = 0x3 /* fixed VM shared library file */
	MH_CORE        HeaderFileType = 0x4 /* core file */
	MH_PRELOAD     HeaderFileType = 0x5 /* preloaded executable file */
	MH_DYLIB       HeaderFileType = 0x6 /* dynamically bound shared library */
	MH_DYLINKER    HeaderFileType = 0x7 /* dynamic link editor */
	MH_BUNDLE      HeaderFileType = 0x8 /* dynamically bound bundle file */
	MH_DYLIB_STUB  HeaderFileType = 0x9 /* shared library stub for static linking only, no section contents */
	MH_DSYM        HeaderFileType = 0xa /* companion file with only debug sections */
	MH_KEXT_BUNDLE HeaderFileType = 0xb /* x86_64 kexts */
	MH_FILESET     HeaderFileType = 0xc /* a file composed of other Mach-Os to be run in the same userspace sharing a single linkedit. */
)

var fileTypeStrings = []IntName{
	{uint32(MH_OBJECT), "Object"},
	{uint32(MH_EXECUTE), "Executable"},
	{uint32(MH_FVMLIB), "FVMLib"},
	{uint32(MH_CORE), "Core"},
	{uint32(MH_PRELOAD), "Preload"},
	{uint32(MH_DYLIB), "Dylib"},
	{uint32(MH_DYLINKER), "Dylinker"},
	{uint32(MH_BUNDLE), "Bundle"},
	{uint32(MH_DYLIB_STUB), "DylibStub"},
	{uint32(MH_DSYM), "Dsym"},
	{uint32(MH_KEXT_BUNDLE), "KextBundle"},
	{uint32(MH_FILESET), "FileSet"},
}

func (t HeaderFileType) String() string   { return StringName(uint32(t), fileTypeStrings, false) }
func (t HeaderFileType) GoString() string { return StringName(uint32(t), fileTypeStrings, true) }

type HeaderFlag uint32

const (
	None                       HeaderFlag = 0x0
	NoUndefs                   HeaderFlag = 0x1
	IncrLink                   HeaderFlag = 0x2
	DyldLink                   HeaderFlag = 0x4
	BindAtLoad                 HeaderFlag = 0x8
	Prebound                   HeaderFlag = 0x10
	SplitSegs                  HeaderFlag = 0x20
	LazyInit                   HeaderFlag = 0x40
	TwoLevel                   HeaderFlag = 0x80
	ForceFlat                  HeaderFlag = 0x100
	NoMultiDefs                HeaderFlag = 0x200
	NoFixPrebinding            HeaderFlag = 0x400
	Prebindable                HeaderFlag = 0x800
	AllModsBound               HeaderFlag = 0x1000
	SubsectionsViaSymbols      HeaderFlag = 0x2000
	Canonical                  HeaderFlag = 0x4000
	WeakDefines                HeaderFlag = 0x8000
	BindsToWeak                HeaderFlag = 0x10000
	AllowStackExecution        HeaderFlag = 0x20000
	RootSafe                   HeaderFlag = 0x40000
	SetuidSafe                 HeaderFlag = 0x80000
	NoReexportedDylibs         HeaderFlag = 0x100000
	PIE                        HeaderFlag = 0x200000
	DeadStrippableDylib        HeaderFlag = 0x400000
	HasTLVDescriptors          HeaderFlag = 0x800000
	NoHeapExecution            HeaderFlag = 0x1000000
	AppExtensionSafe           HeaderFlag = 0x2000000
	NlistOutofsyncWithDyldinfo HeaderFlag = 0x4000000
	SimSupport                 HeaderFlag = 0x8000000
	DylibInCache               HeaderFlag = 0x80000000
)

// headerFlagStrings is ordered by bit so List output is stable.
var headerFlagStrings = []IntName{
	{uint32(NoUndefs), "NoUndefs"},
	{uint32(IncrLink), "IncrLink"},
	{uint32(DyldLink), "DyldLink"},
	{uint32(BindAtLoad), "BindAtLoad"},
	{uint32(Prebound), "Prebound"},
	{uint32(SplitSegs), "SplitSegs"},
	{uint32(LazyInit), "LazyInit"},
	{uint32(TwoLevel), "TwoLevel"},
	{uint32(ForceFlat), "ForceFlat"},
	{uint32(NoMultiDefs), "NoMultiDefs"},
	{uint32(NoFixPrebinding), "NoFixPrebinding"},
	{uint32(Prebindable), "Prebindable"},
	{uint32(AllModsBound), "AllModsBound"},
	{uint32(SubsectionsViaSymbols), "SubsectionsViaSymbols"},
	{uint32(Canonical), "Canonical"},
	{uint32(WeakDefines), "WeakDefines"},
	{uint32(BindsToWeak), "BindsToWeak"},
	{uint32(AllowStackExecution), "AllowStackExecution"},
	{uint32(RootSafe), "RootSafe"},
	{uint32(SetuidSafe), "SetuidSafe"},
	{uint32(NoReexportedDylibs), "NoReexportedDylibs"},
	{uint32(PIE), "PIE"},
	{uint32(DeadStrippableDylib), "DeadStrippableDylib"},
	{uint32(HasTLVDescriptors), "HasTLVDescriptors"},
	{uint32(NoHeapExecution), "NoHeapExecution"},
	{uint32(AppExtensionSafe), "AppExtensionSafe"},
	{uint32(NlistOutofsyncWithDyldinfo), "NlistOutofsyncWithDyldinfo"},
	{uint32(SimSupport), "SimSupport"},
	{uint32(DylibInCache), "DylibInCache"},
}

// mh_ spellings from <mach-o/loader.h>, keyed upper case
var headerFlagCNames = map[string]HeaderFlag{
	"MH_NOUNDEFS":                      NoUndefs,
	"MH_INCRLINK":                      IncrLink,
	"MH_DYLDLINK":                      DyldLink,
	"MH_BINDATLOAD":                    BindAtLoad,
	"MH_PREBOUND":                      Prebound,
	"MH_SPLIT_SEGS":                    SplitSegs,
	"MH_LAZY_INIT":                     LazyInit,
	"MH_TWOLEVEL":                      TwoLevel,
	"MH_FORCE_FLAT":                    ForceFlat,
	"MH_NOMULTIDEFS":                   NoMultiDefs,
	"MH_NOFIXPREBINDING":               NoFixPrebinding,
	"MH_PREBINDABLE":                   Prebindable,
	"MH_ALLMODSBOUND":                  AllModsBound,
	"MH_SUBSECTIONS_VIA_SYMBOLS":       SubsectionsViaSymbols,
	"MH_CANONICAL":                     Canonical,
	"MH_WEAK_DEFINES":                  WeakDefines,
	"MH_BINDS_TO_WEAK":                 BindsToWeak,
	"MH_ALLOW_STACK_EXECUTION":         AllowStackExecution,
	"MH_ROOT_SAFE":                     RootSafe,
	"MH_SETUID_SAFE":                   SetuidSafe,
	"MH_NO_REEXPORTED_DYLIBS":          NoReexportedDylibs,
	"MH_PIE":                           PIE,
	"MH_DEAD_STRIPPABLE_DYLIB":         DeadStrippableDylib,
	"MH_HAS_TLV_DESCRIPTORS":           HasTLVDescriptors,
	"MH_NO_HEAP_EXECUTION":             NoHeapExecution,
	"MH_APP_EXTENSION_SAFE":            AppExtensionSafe,
	"MH_NLIST_OUTOFSYNC_WITH_DYLDINFO": NlistOutofsyncWithDyldinfo,
	"MH_SIM_SUPPORT":                   SimSupport,
	"MH_DYLIB_IN_CACHE":                DylibInCache,
}

// LookupHeaderFlag resolves a flag by its Go name ("PIE") or its loader.h
// name ("MH_PIE"), ignoring case.
func LookupHeaderFlag(name string) (HeaderFlag, bool) {
	if f, ok := headerFlagCNames[strings.ToUpper(name)]; ok {
		return f, true
	}
	for _, n := range headerFlagStrings {
		if strings.EqualFold(n.S, name) {
			return HeaderFlag(n.I), true
		}
	}
	return None, false
}

// Has reports whether every bit of flag is set in f.
func (f HeaderFlag) Has(flag HeaderFlag) bool {
	return f&flag == flag
}

// List returns a string array of flag names
func (f HeaderFlag) List() []string {
	var flags []string
	for _, n := range headerFlagStrings {
		if f.Has(HeaderFlag(n.I)) {
			flags = append(flags, n.S)
		}
	}
	return flags
}

func (f HeaderFlag) Flags() string {
	return strings.Join(f.List(), ", ")
}

func (f HeaderFlag) String() string {
	if s, ok := stringFlag(f); ok {
		return s
	}
	return fmt.Sprintf("HeaderFlag(%#x)", uint32(f))
}

func stringFlag(f HeaderFlag) (string, bool) {
	for _, n := range headerFlagStrings {
		if n.I == uint32(f) {
			return n.S, true
		}
	}
	return "", false
}

func (h FileHeader) String() string {
	return fmt.Sprintf(
		"Magic         = %s\n"+
			"Type          = %s\n"+
			"CPU           = %s, %s\n"+
			"Commands      = %d (Size: %d)\n"+
			"Flags         = %s\n",
		h.Magic,
		h.Type,
		h.CPU, h.SubCPU.String(h.CPU),
		h.NCommands,
		h.SizeCommands,
		h.Flags.Flags(),
	)
}
