package macho

import (
	"fmt"

	"github.com/blacktop/machodec/pkg/macho"
	"github.com/blacktop/machodec/pkg/macho/types"
)

// A Report is the serializable view of a decoded file used by `info`.
type Report struct {
	Path        string        `json:"path" yaml:"path"`
	Size        int           `json:"size" yaml:"size"`
	Kind        string        `json:"kind" yaml:"kind"`
	Arches      []ArchReport  `json:"arches,omitempty" yaml:"arches,omitempty"`
	Images      []ImageReport `json:"images" yaml:"images"`
	Diagnostics []DiagReport  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

type ArchReport struct {
	Index  int    `json:"index" yaml:"index"`
	Name   string `json:"name" yaml:"name"`
	CPU    string `json:"cpu" yaml:"cpu"`
	SubCPU string `json:"subcpu" yaml:"subcpu"`
	Offset uint32 `json:"offset" yaml:"offset"`
	Size   uint32 `json:"size" yaml:"size"`
	Align  uint32 `json:"align" yaml:"align"`
	Valid  bool   `json:"valid" yaml:"valid"`
}

type ImageReport struct {
	Arch         string       `json:"arch" yaml:"arch"`
	Magic        string       `json:"magic" yaml:"magic"`
	ByteOrder    string       `json:"byte_order" yaml:"byte_order"`
	CPU          string       `json:"cpu" yaml:"cpu"`
	SubCPU       string       `json:"subcpu" yaml:"subcpu"`
	Capabilities uint32       `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Type         string       `json:"type" yaml:"type"`
	Flags        []string     `json:"flags" yaml:"flags"`
	NCommands    uint32       `json:"ncmds" yaml:"ncmds"`
	SizeCommands uint32       `json:"sizeofcmds" yaml:"sizeofcmds"`
	UUID         string       `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Loads        []LoadReport `json:"loads" yaml:"loads"`
	Diagnostics  []DiagReport `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

type LoadReport struct {
	Index    int             `json:"index" yaml:"index"`
	Offset   int64           `json:"offset" yaml:"offset"`
	Cmd      string          `json:"cmd" yaml:"cmd"`
	Size     uint32          `json:"cmdsize" yaml:"cmdsize"`
	Summary  string          `json:"summary" yaml:"summary"`
	Sections []SectionReport `json:"sections,omitempty" yaml:"sections,omitempty"`
}

type SectionReport struct {
	Segment string   `json:"segment" yaml:"segment"`
	Name    string   `json:"name" yaml:"name"`
	Addr    uint64   `json:"addr" yaml:"addr"`
	Size    uint64   `json:"size" yaml:"size"`
	Offset  uint32   `json:"offset" yaml:"offset"`
	Align   uint32   `json:"align" yaml:"align"`
	Flags   []string `json:"flags,omitempty" yaml:"flags,omitempty"`
}

type DiagReport struct {
	Scope  string `json:"scope" yaml:"scope"`
	Index  int    `json:"index" yaml:"index"`
	Offset int64  `json:"offset" yaml:"offset"`
	Cmd    string `json:"cmd,omitempty" yaml:"cmd,omitempty"`
	Error  string `json:"error" yaml:"error"`
}

// NewReport builds the report for a decoded buffer of size bytes. A non-empty
// arch restricts the images to that architecture.
func NewReport(path string, size int, res *macho.Result, arch string) (*Report, error) {
	r := &Report{
		Path:        path,
		Size:        size,
		Kind:        res.Magic.Kind.String(),
		Diagnostics: diagReports(res.Diagnostics),
	}

	if res.IsFat() {
		for _, a := range res.Fat.Arches {
			r.Arches = append(r.Arches, ArchReport{
				Index:  a.Index,
				Name:   a.Name(),
				CPU:    a.CPU.String(),
				SubCPU: a.SubCPU.String(a.CPU),
				Offset: a.Offset,
				Size:   a.Size,
				Align:  a.Align,
				Valid:  a.Valid,
			})
		}
	}

	if arch != "" {
		f, ok := res.File(arch)
		if !ok {
			return nil, fmt.Errorf("--arch '%s' not found in %s", arch, path)
		}
		r.Images = append(r.Images, newImageReport(f))
		return r, nil
	}

	for _, f := range res.Files {
		if f != nil {
			r.Images = append(r.Images, newImageReport(f))
		}
	}
	return r, nil
}

func newImageReport(f *macho.File) ImageReport {
	img := ImageReport{
		Arch:         types.ArchName(f.CPU, f.SubCPU),
		Magic:        f.Magic.String(),
		ByteOrder:    f.ByteOrder.String(),
		CPU:          f.CPU.String(),
		SubCPU:       f.SubCPU.String(f.CPU),
		Capabilities: uint32(f.Capabilities),
		Type:         f.Type.String(),
		Flags:        f.Flags.List(),
		NCommands:    f.NCommands,
		SizeCommands: f.SizeCommands,
		Diagnostics:  diagReports(f.Diagnostics),
	}
	if img.Arch == "" {
		img.Arch = img.CPU
	}
	if u := f.UUID(); u != nil {
		img.UUID = u.UUID.String()
	}
	for _, l := range f.Loads {
		lr := LoadReport{
			Index:   l.CmdIndex(),
			Offset:  l.CmdOffset(),
			Cmd:     l.Command().String(),
			Size:    l.LoadSize(),
			Summary: l.String(),
		}
		if seg, ok := l.(*macho.Segment); ok {
			for _, sec := range seg.Sections {
				lr.Sections = append(lr.Sections, SectionReport{
					Segment: sec.Seg(),
					Name:    sec.Name(),
					Addr:    sec.Addr,
					Size:    sec.Size,
					Offset:  sec.Offset,
					Align:   sec.Align,
					Flags:   sec.Flags.List(),
				})
			}
		}
		img.Loads = append(img.Loads, lr)
	}
	return img
}

func diagReports(ds macho.Diagnostics) []DiagReport {
	var out []DiagReport
	for _, d := range ds {
		dr := DiagReport{
			Scope:  d.Scope.String(),
			Index:  d.Index,
			Offset: d.Offset,
			Error:  d.Err.Error(),
		}
		if d.Cmd != 0 {
			dr.Cmd = d.Cmd.String()
		}
		out = append(out, dr)
	}
	return out
}
