package types

import "strings"

type SectionFlag uint32

const (
	SectionType       SectionFlag = 0x000000ff /* 256 section types */
	SectionAttributes SectionFlag = 0xffffff00 /*  24 section attributes */
)

/*
 * The flags field of a section structure is separated into two parts a section
 * type and section attributes.  The section types are mutually exclusive (it
 * can only have one type) but the section attributes are not (it may have more
 * than one attribute).
 */
const (
	Regular                         SectionFlag = 0x0  /* regular section */
	Zerofill                        SectionFlag = 0x1  /* zero fill on demand section */
	CstringLiterals                 SectionFlag = 0x2  /* section with only literal C strings*/
	ByteLiterals4                   SectionFlag = 0x3  /* section with only 4 byte literals */
	ByteLiterals8                   SectionFlag = 0x4  /* section with only 8 byte literals */
	LiteralPointers                 SectionFlag = 0x5  /* section with only pointers to literals */
	NonLazySymbolPointers           SectionFlag = 0x6  /* section with only non-lazy symbol pointers */
	LazySymbolPointers              SectionFlag = 0x7  /* section with only lazy symbol pointers */
	SymbolStubs                     SectionFlag = 0x8  /* section with only symbol stubs, byte size of stub in the reserved2 field */
	ModInitFuncPointers             SectionFlag = 0x9  /* section with only function pointers for initialization*/
	ModTermFuncPointers             SectionFlag = 0xa  /* section with only function pointers for termination */
	Coalesced                       SectionFlag = 0xb  /* section contains symbols that are to be coalesced */
	GbZerofill                      SectionFlag = 0xc  /* zero fill on demand section (that can be larger than 4 gigabytes) */
	Interposing                     SectionFlag = 0xd  /* section with only pairs of function pointers for interposing */
	ByteLiterals16                  SectionFlag = 0xe  /* section with only 16 byte literals */
	DtraceDof                       SectionFlag = 0xf  /* section contains DTrace Object Format */
	LazyDylibSymbolPointers         SectionFlag = 0x10 /* section with only lazy symbol pointers to lazy loaded dylibs */
	ThreadLocalRegular              SectionFlag = 0x11 /* template of initial values for TLVs */
	ThreadLocalZerofill             SectionFlag = 0x12 /* template of initial values for TLVs */
	ThreadLocalVariables            SectionFlag = 0x13 /* TLV descriptors */
	ThreadLocalVariablePointers     SectionFlag = 0x14 /* pointers to TLV descriptors */
	ThreadLocalInitFunctionPointers SectionFlag = 0x15 /* functions to call to initialize TLV values */
	InitFuncOffsets                 SectionFlag = 0x16 /* 32-bit offsets to initializers */
)

var sectionTypeStrings = []IntName{
	{uint32(Regular), "Regular"},
	{uint32(Zerofill), "Zerofill"},
	{uint32(CstringLiterals), "Cstring Literals"},
	{uint32(ByteLiterals4), "4Byte Literals"},
	{uint32(ByteLiterals8), "8Byte Literals"},
	{uint32(LiteralPointers), "Literal Pointers"},
	{uint32(NonLazySymbolPointers), "NonLazySymbolPointers"},
	{uint32(LazySymbolPointers), "LazySymbolPointers"},
	{uint32(SymbolStubs), "SymbolStubs"},
	{uint32(ModInitFuncPointers), "ModInitFuncPointers"},
	{uint32(ModTermFuncPointers), "ModTermFuncPointers"},
	{uint32(Coalesced), "Coalesced"},
	{uint32(GbZerofill), "GbZerofill"},
	{uint32(Interposing), "Interposing"},
	{uint32(ByteLiterals16), "16Byte Literals"},
	{uint32(DtraceDof), "DtraceDof"},
	{uint32(LazyDylibSymbolPointers), "LazyDylibSymbolPointers"},
	{uint32(ThreadLocalRegular), "ThreadLocalRegular"},
	{uint32(ThreadLocalZerofill), "ThreadLocalZerofill"},
	{uint32(ThreadLocalVariables), "ThreadLocalVariables"},
	{uint32(ThreadLocalVariablePointers), "ThreadLocalVariablePointers"},
	{uint32(ThreadLocalInitFunctionPointers), "ThreadLocalInitFunctionPointers"},
	{uint32(InitFuncOffsets), "InitFuncOffsets"},
}

const (
	SECTION_ATTRIBUTES_USR SectionFlag = 0xff000000 /* User setable attributes */
	SECTION_ATTRIBUTES_SYS SectionFlag = 0x00ffff00 /* system setable attributes */

	PURE_INSTRUCTIONS   SectionFlag = 0x80000000 /* section contains only true machine instructions */
	NO_TOC              SectionFlag = 0x40000000 /* section contains coalesced symbols that are not to be in a ranlib table of contents */
	STRIP_STATIC_SYMS   SectionFlag = 0x20000000 /* ok to strip static symbols in this section in files with the MH_DYLDLINK flag */
	NO_DEAD_STRIP       SectionFlag = 0x10000000 /* no dead stripping */
	LIVE_SUPPORT        SectionFlag = 0x08000000 /* blocks are live if they reference live blocks */
	SELF_MODIFYING_CODE SectionFlag = 0x04000000 /* Used with i386 code stubs written on by dyld */
	DEBUG               SectionFlag = 0x02000000 /* a debug section */
	SOME_INSTRUCTIONS   SectionFlag = 0x00000400 /* section contains some machine instructions */
	EXT_RELOC           SectionFlag = 0x00000200 /* section has external relocation entries */
	LOC_RELOC           SectionFlag = 0x00000100 /* section has local relocation entries */
)

var sectionAttrStrings = []IntName{
	{uint32(PURE_INSTRUCTIONS), "PureInstructions"},
	{uint32(NO_TOC), "NoToc"},
	{uint32(STRIP_STATIC_SYMS), "StripStaticSyms"},
	{uint32(NO_DEAD_STRIP), "NoDeadStrip"},
	{uint32(LIVE_SUPPORT), "LiveSupport"},
	{uint32(SELF_MODIFYING_CODE), "SelfModifyingCode"},
	{uint32(DEBUG), "Debug"},
	{uint32(SOME_INSTRUCTIONS), "SomeInstructions"},
	{uint32(EXT_RELOC), "ExtReloc"},
	{uint32(LOC_RELOC), "LocReloc"},
}

// Type returns the mutually exclusive section type.
func (t SectionFlag) Type() SectionFlag { return t & SectionType }

func (t SectionFlag) GetAttributes() SectionFlag { return t & SectionAttributes }

func (t SectionFlag) IsZerofill() bool {
	return t.Type() == Zerofill || t.Type() == GbZerofill || t.Type() == ThreadLocalZerofill
}
func (t SectionFlag) IsCstringLiterals() bool     { return t.Type() == CstringLiterals }
func (t SectionFlag) IsSymbolStubs() bool         { return t.Type() == SymbolStubs }
func (t SectionFlag) IsModInitFuncPointers() bool { return t.Type() == ModInitFuncPointers }

func (t SectionFlag) IsPureInstructions() bool { return t.GetAttributes()&PURE_INSTRUCTIONS != 0 }
func (t SectionFlag) IsSomeInstructions() bool { return t.GetAttributes()&SOME_INSTRUCTIONS != 0 }
func (t SectionFlag) IsDebug() bool            { return t.GetAttributes()&DEBUG != 0 }

// TypeString returns the name of the section type. Regular sections return "".
func (t SectionFlag) TypeString() string {
	if t.Type() == Regular {
		return ""
	}
	return StringName(uint32(t.Type()), sectionTypeStrings, false)
}

func (t SectionFlag) AttributesList() []string {
	var attrs []string
	for _, n := range sectionAttrStrings {
		if uint32(t.GetAttributes())&n.I != 0 {
			attrs = append(attrs, n.S)
		}
	}
	return attrs
}

// List returns the type name (if not regular) followed by the attribute names.
func (t SectionFlag) List() []string {
	var flags []string
	if s := t.TypeString(); s != "" {
		flags = append(flags, s)
	}
	return append(flags, t.AttributesList()...)
}

func (t SectionFlag) String() string {
	return strings.Join(t.List(), "|")
}
