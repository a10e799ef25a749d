package macho

import (
	"fmt"

	"github.com/blacktop/machodec/pkg/macho/layout"
	"github.com/blacktop/machodec/pkg/macho/types"
)

// A Section is a section or section_64 record of a segment command.
type Section struct {
	SectName  [16]byte
	SegName   [16]byte
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32 // power of 2
	Reloff    uint32
	Nreloc    uint32
	Flags     types.SectionFlag
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32 // section_64 only

	// Off is where the record itself lives in the thin image.
	Off int64
}

func (s *Section) Name() string { return cstring(s.SectName[:]) }
func (s *Section) Seg() string  { return cstring(s.SegName[:]) }

func (s *Section) String() string {
	secFlags := ""
	if s.Flags.String() != "" {
		secFlags = fmt.Sprintf("(%s)", s.Flags)
	}
	return fmt.Sprintf("%s.%s addr=%#09x-%#09x off=%#x size=%#x align=2^%d %s",
		s.Seg(), s.Name(), s.Addr, s.Addr+s.Size, s.Offset, s.Size, s.Align, secFlags)
}

func sectionDescFor(is64 bool) *layout.Descriptor {
	if is64 {
		return section64Desc
	}
	return sectionDesc
}

// parseSections decodes the section records that follow a segment command's
// fixed part. It returns every whole record that fits inside the command and
// reports ErrSectionCountMismatch when nsects does not account for cmdsize.
func parseSections(r *cmdReader, seg *Segment, fixed int) []*Section {
	desc := sectionDescFor(seg.Is64())
	recSize := desc.Size()

	avail := len(seg.raw) - fixed
	if avail < 0 {
		avail = 0
	}
	if want := uint64(fixed) + uint64(seg.Nsect)*uint64(recSize); want != uint64(seg.Len) {
		r.warn(ScopeSection, formatError(ErrSectionCountMismatch, seg.Off,
			fmt.Sprintf("%s declares %d sections (%d bytes) in cmdsize", seg.Name(), seg.Nsect, want), seg.Len))
	}

	n := avail / recSize
	if uint64(n) > uint64(seg.Nsect) {
		n = int(seg.Nsect)
	}
	sections := make([]*Section, 0, n)
	for i := 0; i < n; i++ {
		base := fixed + i*recSize
		rec, _, err := desc.Decode(seg.raw, base, r.order)
		if err != nil {
			// n only counts whole records
			r.warn(ScopeSection, err)
			break
		}
		s := &Section{
			SectName:  rec.Array16("sectname"),
			SegName:   rec.Array16("segname"),
			Offset:    rec.Uint32("offset"),
			Align:     rec.Uint32("align"),
			Reloff:    rec.Uint32("reloff"),
			Nreloc:    rec.Uint32("nreloc"),
			Flags:     types.SectionFlag(rec.Uint32("flags")),
			Reserved1: rec.Uint32("reserved1"),
			Reserved2: rec.Uint32("reserved2"),
			Off:       seg.Off + int64(base),
		}
		if seg.Is64() {
			s.Addr = rec.Uint64("addr")
			s.Size = rec.Uint64("size")
			s.Reserved3 = rec.Uint32("reserved3")
		} else {
			s.Addr = uint64(rec.Uint32("addr"))
			s.Size = uint64(rec.Uint32("size"))
		}
		sections = append(sections, s)
	}
	return sections
}
