package macho

import (
	"encoding/binary"
	"fmt"

	"github.com/blacktop/machodec/pkg/macho/layout"
	"github.com/blacktop/machodec/pkg/macho/types"
)

// cmdReader carries one load command through its decoder.
type cmdReader struct {
	LoadHeader
	order binary.ByteOrder
	size  int // fixed part decoded by the last call to fixed
	diags Diagnostics
}

// fixed decodes the fixed part of the command. A cmdsize smaller than the
// record fails the command with ErrInvalidCommandSize.
func (r *cmdReader) fixed(desc *layout.Descriptor) (layout.Record, error) {
	if int(r.Len) < desc.Size() {
		return layout.Record{}, formatError(ErrInvalidCommandSize, r.Off,
			fmt.Sprintf("%s needs %d bytes, cmdsize", desc.Name(), desc.Size()), r.Len)
	}
	rec, _, err := desc.Decode(r.raw, 0, r.order)
	r.size = desc.Size()
	return rec, err
}

func (r *cmdReader) str(rec layout.Record, field string) LCStr {
	return lcStr(r.raw, rec.Uint32(field), uint32(r.size))
}

// warn records a non-fatal problem; the command is still returned.
func (r *cmdReader) warn(scope Scope, err error) {
	r.diags = append(r.diags, Diagnostic{
		Scope:  scope,
		Index:  r.Index,
		Offset: r.Off,
		Cmd:    r.Cmd,
		Err:    err,
	})
}

type decoder func(r *cmdReader) (Load, error)

// decoders maps every load command with a typed representation to its
// decoder. Commands missing from the table decode as LoadCmdBytes.
var decoders = map[types.LoadCmd]decoder{
	types.LoadCmdSegment:   decodeSegment,
	types.LoadCmdSegment64: decodeSegment,
	types.LoadCmdSymtab:    decodeSymtab,
	types.LoadCmdDysymtab:  decodeDysymtab,

	types.LoadCmdDylib:           decodeDylib,
	types.LoadCmdDylibID:         decodeDylib,
	types.LoadCmdLoadWeakDylib:   decodeDylib,
	types.LoadCmdReexportDylib:   decodeDylib,
	types.LoadCmdLazyLoadDylib:   decodeDylib,
	types.LoadCmdLoadUpwardDylib: decodeDylib,

	types.LoadCmdLoadDylinker:    decodeDylinker,
	types.LoadCmdDylinkerID:      decodeDylinker,
	types.LoadCmdDyldEnvironment: decodeDylinker,

	types.LoadCmdPreboundDylib: decodePreboundDylib,
	types.LoadCmdUUID:          decodeUUID,
	types.LoadCmdRoutines:      decodeRoutines,
	types.LoadCmdRoutines64:    decodeRoutines,
	types.LoadCmdSubFramework:  decodeSubFramework,
	types.LoadCmdSubUmbrella:   decodeSubUmbrella,
	types.LoadCmdSubLibrary:    decodeSubLibrary,
	types.LoadCmdSubClient:     decodeSubClient,
	types.LoadCmdRpath:         decodeRpath,

	types.LoadCmdCodeSignature:          decodeLinkEditData,
	types.LoadCmdSegmentSplitInfo:       decodeLinkEditData,
	types.LoadCmdFunctionStarts:         decodeLinkEditData,
	types.LoadCmdDataInCode:             decodeLinkEditData,
	types.LoadCmdDylibCodeSignDrs:       decodeLinkEditData,
	types.LoadCmdLinkerOptimizationHint: decodeLinkEditData,
	types.LoadCmdDyldExportsTrie:        decodeLinkEditData,
	types.LoadCmdDyldChainedFixups:      decodeLinkEditData,

	types.LoadCmdDyldInfo:         decodeDyldInfo,
	types.LoadCmdDyldInfoOnly:     decodeDyldInfo,
	types.LoadCmdEncryptionInfo:   decodeEncryptionInfo,
	types.LoadCmdEncryptionInfo64: decodeEncryptionInfo,

	types.LoadCmdVersionMinMacosx:   decodeVersionMin,
	types.LoadCmdVersionMinIphoneos: decodeVersionMin,
	types.LoadCmdVersionMinTvos:     decodeVersionMin,
	types.LoadCmdVersionMinWatchos:  decodeVersionMin,

	types.LoadCmdSourceVersion: decodeSourceVersion,
	types.LoadCmdBuildVersion:  decodeBuildVersion,
	types.LoadCmdMain:          decodeEntryPoint,
}

func decodeSegment(r *cmdReader) (Load, error) {
	desc := segmentDesc
	if r.Cmd == types.LoadCmdSegment64 {
		desc = segment64Desc
	}
	rec, err := r.fixed(desc)
	if err != nil {
		return nil, err
	}
	seg := &Segment{
		LoadHeader: r.LoadHeader,
		SegName:    rec.Array16("segname"),
		Maxprot:    types.VmProtection(rec.Int32("maxprot")),
		Prot:       types.VmProtection(rec.Int32("initprot")),
		Nsect:      rec.Uint32("nsects"),
		Flag:       SegFlag(rec.Uint32("flags")),
	}
	// u32 and u64 fields both come back widened
	seg.Addr = rec.Uint64("vmaddr")
	seg.Memsz = rec.Uint64("vmsize")
	seg.Offset = rec.Uint64("fileoff")
	seg.Filesz = rec.Uint64("filesize")

	seg.Sections = parseSections(r, seg, desc.Size())
	return seg, nil
}

func decodeSymtab(r *cmdReader) (Load, error) {
	rec, err := r.fixed(symtabDesc)
	if err != nil {
		return nil, err
	}
	return &Symtab{
		LoadHeader: r.LoadHeader,
		Symoff:     rec.Uint32("symoff"),
		Nsyms:      rec.Uint32("nsyms"),
		Stroff:     rec.Uint32("stroff"),
		Strsize:    rec.Uint32("strsize"),
	}, nil
}

func decodeDysymtab(r *cmdReader) (Load, error) {
	rec, err := r.fixed(dysymtabDesc)
	if err != nil {
		return nil, err
	}
	return &Dysymtab{
		LoadHeader:     r.LoadHeader,
		Ilocalsym:      rec.Uint32("ilocalsym"),
		Nlocalsym:      rec.Uint32("nlocalsym"),
		Iextdefsym:     rec.Uint32("iextdefsym"),
		Nextdefsym:     rec.Uint32("nextdefsym"),
		Iundefsym:      rec.Uint32("iundefsym"),
		Nundefsym:      rec.Uint32("nundefsym"),
		Tocoffset:      rec.Uint32("tocoff"),
		Ntoc:           rec.Uint32("ntoc"),
		Modtaboff:      rec.Uint32("modtaboff"),
		Nmodtab:        rec.Uint32("nmodtab"),
		Extrefsymoff:   rec.Uint32("extrefsymoff"),
		Nextrefsyms:    rec.Uint32("nextrefsyms"),
		Indirectsymoff: rec.Uint32("indirectsymoff"),
		Nindirectsyms:  rec.Uint32("nindirectsyms"),
		Extreloff:      rec.Uint32("extreloff"),
		Nextrel:        rec.Uint32("nextrel"),
		Locreloff:      rec.Uint32("locreloff"),
		Nlocrel:        rec.Uint32("nlocrel"),
	}, nil
}

func decodeDylib(r *cmdReader) (Load, error) {
	rec, err := r.fixed(dylibDesc)
	if err != nil {
		return nil, err
	}
	return &Dylib{
		LoadHeader:     r.LoadHeader,
		Name:           r.str(rec, "name"),
		Time:           rec.Uint32("timestamp"),
		CurrentVersion: types.Version(rec.Uint32("current_version")),
		CompatVersion:  types.Version(rec.Uint32("compatibility_version")),
	}, nil
}

func decodeDylinker(r *cmdReader) (Load, error) {
	rec, err := r.fixed(dylinkerDesc)
	if err != nil {
		return nil, err
	}
	return &Dylinker{LoadHeader: r.LoadHeader, Name: r.str(rec, "name")}, nil
}

func decodePreboundDylib(r *cmdReader) (Load, error) {
	rec, err := r.fixed(preboundDylibDesc)
	if err != nil {
		return nil, err
	}
	return &PreboundDylib{
		LoadHeader:    r.LoadHeader,
		Name:          r.str(rec, "name"),
		NModules:      rec.Uint32("nmodules"),
		LinkedModules: r.str(rec, "linked_modules"),
	}, nil
}

func decodeUUID(r *cmdReader) (Load, error) {
	rec, err := r.fixed(uuidDesc)
	if err != nil {
		return nil, err
	}
	return &UUIDCmd{LoadHeader: r.LoadHeader, UUID: types.UUID(rec.Array16("uuid"))}, nil
}

func decodeRoutines(r *cmdReader) (Load, error) {
	desc := routinesDesc
	if r.Cmd == types.LoadCmdRoutines64 {
		desc = routines64Desc
	}
	rec, err := r.fixed(desc)
	if err != nil {
		return nil, err
	}
	l := &Routines{
		LoadHeader:  r.LoadHeader,
		InitAddress: rec.Uint64("init_address"),
		InitModule:  rec.Uint64("init_module"),
	}
	for i := range l.Reserved {
		l.Reserved[i] = rec.Uint64(fmt.Sprintf("reserved%d", i+1))
	}
	return l, nil
}

func decodeSubFramework(r *cmdReader) (Load, error) {
	rec, err := r.fixed(subFrameworkDesc)
	if err != nil {
		return nil, err
	}
	return &SubFramework{LoadHeader: r.LoadHeader, Umbrella: r.str(rec, "umbrella")}, nil
}

func decodeSubUmbrella(r *cmdReader) (Load, error) {
	rec, err := r.fixed(subUmbrellaDesc)
	if err != nil {
		return nil, err
	}
	return &SubUmbrella{LoadHeader: r.LoadHeader, Umbrella: r.str(rec, "sub_umbrella")}, nil
}

func decodeSubLibrary(r *cmdReader) (Load, error) {
	rec, err := r.fixed(subLibraryDesc)
	if err != nil {
		return nil, err
	}
	return &SubLibrary{LoadHeader: r.LoadHeader, Library: r.str(rec, "sub_library")}, nil
}

func decodeSubClient(r *cmdReader) (Load, error) {
	rec, err := r.fixed(subClientDesc)
	if err != nil {
		return nil, err
	}
	return &SubClient{LoadHeader: r.LoadHeader, Client: r.str(rec, "client")}, nil
}

func decodeRpath(r *cmdReader) (Load, error) {
	rec, err := r.fixed(rpathDesc)
	if err != nil {
		return nil, err
	}
	return &Rpath{LoadHeader: r.LoadHeader, Path: r.str(rec, "path")}, nil
}

func decodeLinkEditData(r *cmdReader) (Load, error) {
	rec, err := r.fixed(linkEditDataDesc)
	if err != nil {
		return nil, err
	}
	return &LinkEditData{
		LoadHeader: r.LoadHeader,
		DataOff:    rec.Uint32("dataoff"),
		DataSize:   rec.Uint32("datasize"),
	}, nil
}

func decodeDyldInfo(r *cmdReader) (Load, error) {
	rec, err := r.fixed(dyldInfoDesc)
	if err != nil {
		return nil, err
	}
	return &DyldInfo{
		LoadHeader:   r.LoadHeader,
		RebaseOff:    rec.Uint32("rebase_off"),
		RebaseSize:   rec.Uint32("rebase_size"),
		BindOff:      rec.Uint32("bind_off"),
		BindSize:     rec.Uint32("bind_size"),
		WeakBindOff:  rec.Uint32("weak_bind_off"),
		WeakBindSize: rec.Uint32("weak_bind_size"),
		LazyBindOff:  rec.Uint32("lazy_bind_off"),
		LazyBindSize: rec.Uint32("lazy_bind_size"),
		ExportOff:    rec.Uint32("export_off"),
		ExportSize:   rec.Uint32("export_size"),
	}, nil
}

func decodeEncryptionInfo(r *cmdReader) (Load, error) {
	desc := encryptionInfoDesc
	if r.Cmd == types.LoadCmdEncryptionInfo64 {
		desc = encryptionInfo64Desc
	}
	rec, err := r.fixed(desc)
	if err != nil {
		return nil, err
	}
	return &EncryptionInfo{
		LoadHeader: r.LoadHeader,
		CryptOff:   rec.Uint32("cryptoff"),
		CryptSize:  rec.Uint32("cryptsize"),
		CryptID:    rec.Uint32("cryptid"),
	}, nil
}

func decodeVersionMin(r *cmdReader) (Load, error) {
	rec, err := r.fixed(versionMinDesc)
	if err != nil {
		return nil, err
	}
	return &VersionMin{
		LoadHeader: r.LoadHeader,
		Version:    types.Version(rec.Uint32("version")),
		Sdk:        types.Version(rec.Uint32("sdk")),
	}, nil
}

func decodeSourceVersion(r *cmdReader) (Load, error) {
	rec, err := r.fixed(sourceVersionDesc)
	if err != nil {
		return nil, err
	}
	return &SourceVersion{LoadHeader: r.LoadHeader, Version: types.SrcVersion(rec.Uint64("version"))}, nil
}

func decodeBuildVersion(r *cmdReader) (Load, error) {
	rec, err := r.fixed(buildVersionDesc)
	if err != nil {
		return nil, err
	}
	b := &BuildVersion{
		LoadHeader: r.LoadHeader,
		Platform:   types.Platform(rec.Uint32("platform")),
		Minos:      types.Version(rec.Uint32("minos")),
		Sdk:        types.Version(rec.Uint32("sdk")),
		NumTools:   rec.Uint32("ntools"),
	}
	off := buildVersionDesc.Size()
	if want := uint64(off) + uint64(b.NumTools)*uint64(buildToolDesc.Size()); want > uint64(r.Len) {
		return nil, formatError(ErrInvalidCommandSize, r.Off,
			fmt.Sprintf("%d build tools need %d bytes, cmdsize", b.NumTools, want), r.Len)
	}
	for i := uint32(0); i < b.NumTools; i++ {
		t, n, err := buildToolDesc.Decode(r.raw, off, r.order)
		if err != nil {
			return nil, err
		}
		b.Tools = append(b.Tools, types.BuildToolVersion{
			Tool:    types.Tool(t.Uint32("tool")),
			Version: types.Version(t.Uint32("version")),
		})
		off += n
	}
	return b, nil
}

func decodeEntryPoint(r *cmdReader) (Load, error) {
	rec, err := r.fixed(entryPointDesc)
	if err != nil {
		return nil, err
	}
	return &EntryPoint{
		LoadHeader:  r.LoadHeader,
		EntryOffset: rec.Uint64("entryoff"),
		StackSize:   rec.Uint64("stacksize"),
	}, nil
}
