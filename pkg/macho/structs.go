package macho

import (
	"encoding/binary"

	"github.com/blacktop/machodec/pkg/macho/layout"
)

// On-disk records, in <mach-o/fat.h> and <mach-o/loader.h> field order.

var (
	fatHeaderDesc = layout.New("fat_header",
		layout.U32("magic"),
		layout.U32("nfat_arch"),
	).Fixed(binary.BigEndian)

	fatArchDesc = layout.New("fat_arch",
		layout.I32("cputype"),
		layout.I32("cpusubtype"),
		layout.U32("offset"),
		layout.U32("size"),
		layout.U32("align"),
	).Fixed(binary.BigEndian)

	machHeaderDesc = layout.New("mach_header",
		layout.U32("magic"),
		layout.I32("cputype"),
		layout.I32("cpusubtype"),
		layout.U32("filetype"),
		layout.U32("ncmds"),
		layout.U32("sizeofcmds"),
		layout.U32("flags"),
	)
	machHeader64Desc = machHeaderDesc.Extend("mach_header_64",
		layout.U32("reserved"),
	)

	loadCmdDesc = layout.New("load_command",
		layout.U32("cmd"),
		layout.U32("cmdsize"),
	)

	segmentDesc = loadCmdDesc.Extend("segment_command",
		layout.Arr("segname", 16),
		layout.U32("vmaddr"),
		layout.U32("vmsize"),
		layout.U32("fileoff"),
		layout.U32("filesize"),
		layout.I32("maxprot"),
		layout.I32("initprot"),
		layout.U32("nsects"),
		layout.U32("flags"),
	)
	segment64Desc = loadCmdDesc.Extend("segment_command_64",
		layout.Arr("segname", 16),
		layout.U64("vmaddr"),
		layout.U64("vmsize"),
		layout.U64("fileoff"),
		layout.U64("filesize"),
		layout.I32("maxprot"),
		layout.I32("initprot"),
		layout.U32("nsects"),
		layout.U32("flags"),
	)

	sectionDesc = layout.New("section",
		layout.Arr("sectname", 16),
		layout.Arr("segname", 16),
		layout.U32("addr"),
		layout.U32("size"),
		layout.U32("offset"),
		layout.U32("align"),
		layout.U32("reloff"),
		layout.U32("nreloc"),
		layout.U32("flags"),
		layout.U32("reserved1"),
		layout.U32("reserved2"),
	)
	section64Desc = layout.New("section_64",
		layout.Arr("sectname", 16),
		layout.Arr("segname", 16),
		layout.U64("addr"),
		layout.U64("size"),
		layout.U32("offset"),
		layout.U32("align"),
		layout.U32("reloff"),
		layout.U32("nreloc"),
		layout.U32("flags"),
		layout.U32("reserved1"),
		layout.U32("reserved2"),
		layout.U32("reserved3"),
	)

	symtabDesc = loadCmdDesc.Extend("symtab_command",
		layout.U32("symoff"),
		layout.U32("nsyms"),
		layout.U32("stroff"),
		layout.U32("strsize"),
	)

	dysymtabDesc = loadCmdDesc.Extend("dysymtab_command",
		layout.U32("ilocalsym"),
		layout.U32("nlocalsym"),
		layout.U32("iextdefsym"),
		layout.U32("nextdefsym"),
		layout.U32("iundefsym"),
		layout.U32("nundefsym"),
		layout.U32("tocoff"),
		layout.U32("ntoc"),
		layout.U32("modtaboff"),
		layout.U32("nmodtab"),
		layout.U32("extrefsymoff"),
		layout.U32("nextrefsyms"),
		layout.U32("indirectsymoff"),
		layout.U32("nindirectsyms"),
		layout.U32("extreloff"),
		layout.U32("nextrel"),
		layout.U32("locreloff"),
		layout.U32("nlocrel"),
	)

	dylibDesc = loadCmdDesc.Extend("dylib_command",
		layout.U32("name"),
		layout.U32("timestamp"),
		layout.U32("current_version"),
		layout.U32("compatibility_version"),
	)

	dylinkerDesc = loadCmdDesc.Extend("dylinker_command",
		layout.U32("name"),
	)

	preboundDylibDesc = loadCmdDesc.Extend("prebound_dylib_command",
		layout.U32("name"),
		layout.U32("nmodules"),
		layout.U32("linked_modules"),
	)

	uuidDesc = loadCmdDesc.Extend("uuid_command",
		layout.Arr("uuid", 16),
	)

	routinesDesc = loadCmdDesc.Extend("routines_command",
		layout.U32("init_address"),
		layout.U32("init_module"),
		layout.U32("reserved1"),
		layout.U32("reserved2"),
		layout.U32("reserved3"),
		layout.U32("reserved4"),
		layout.U32("reserved5"),
		layout.U32("reserved6"),
	)
	routines64Desc = loadCmdDesc.Extend("routines_command_64",
		layout.U64("init_address"),
		layout.U64("init_module"),
		layout.U64("reserved1"),
		layout.U64("reserved2"),
		layout.U64("reserved3"),
		layout.U64("reserved4"),
		layout.U64("reserved5"),
		layout.U64("reserved6"),
	)

	subFrameworkDesc = loadCmdDesc.Extend("sub_framework_command", layout.U32("umbrella"))
	subUmbrellaDesc  = loadCmdDesc.Extend("sub_umbrella_command", layout.U32("sub_umbrella"))
	subLibraryDesc   = loadCmdDesc.Extend("sub_library_command", layout.U32("sub_library"))
	subClientDesc    = loadCmdDesc.Extend("sub_client_command", layout.U32("client"))
	rpathDesc        = loadCmdDesc.Extend("rpath_command", layout.U32("path"))

	linkEditDataDesc = loadCmdDesc.Extend("linkedit_data_command",
		layout.U32("dataoff"),
		layout.U32("datasize"),
	)

	dyldInfoDesc = loadCmdDesc.Extend("dyld_info_command",
		layout.U32("rebase_off"),
		layout.U32("rebase_size"),
		layout.U32("bind_off"),
		layout.U32("bind_size"),
		layout.U32("weak_bind_off"),
		layout.U32("weak_bind_size"),
		layout.U32("lazy_bind_off"),
		layout.U32("lazy_bind_size"),
		layout.U32("export_off"),
		layout.U32("export_size"),
	)

	encryptionInfoDesc = loadCmdDesc.Extend("encryption_info_command",
		layout.U32("cryptoff"),
		layout.U32("cryptsize"),
		layout.U32("cryptid"),
	)
	encryptionInfo64Desc = encryptionInfoDesc.Extend("encryption_info_command_64",
		layout.U32("pad"),
	)

	versionMinDesc = loadCmdDesc.Extend("version_min_command",
		layout.U32("version"),
		layout.U32("sdk"),
	)

	sourceVersionDesc = loadCmdDesc.Extend("source_version_command",
		layout.U64("version"),
	)

	buildVersionDesc = loadCmdDesc.Extend("build_version_command",
		layout.U32("platform"),
		layout.U32("minos"),
		layout.U32("sdk"),
		layout.U32("ntools"),
	)
	buildToolDesc = layout.New("build_tool_version",
		layout.U32("tool"),
		layout.U32("version"),
	)

	entryPointDesc = loadCmdDesc.Extend("entry_point_command",
		layout.U64("entryoff"),
		layout.U64("stacksize"),
	)
)
