package macho

import (
	"context"
	"os"
	"runtime"

	"github.com/blacktop/machodec/pkg/macho/types"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// A File is a decoded thin Mach-O image.
type File struct {
	Header
	Loads       []Load
	Diagnostics Diagnostics
}

// NewFile decodes a thin Mach-O image held in buf. The header must decode;
// problems after that are collected in the file's Diagnostics.
func NewFile(buf []byte) (*File, error) {
	mi, err := DetectMagic(buf)
	if err != nil {
		return nil, err
	}
	hdr, err := parseHeader(buf, mi)
	if err != nil {
		return nil, err
	}
	f := &File{Header: *hdr}
	f.Loads, f.Diagnostics = DecodeLoadCommands(buf, hdr)
	return f, nil
}

// Segments returns all segment commands in load order.
func (f *File) Segments() []*Segment {
	var segs []*Segment
	for _, l := range f.Loads {
		if s, ok := l.(*Segment); ok {
			segs = append(segs, s)
		}
	}
	return segs
}

// Segment returns the first segment with the given name, or nil.
func (f *File) Segment(name string) *Segment {
	for _, s := range f.Segments() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Sections returns the sections of all segments in load order.
func (f *File) Sections() []*Section {
	var secs []*Section
	for _, s := range f.Segments() {
		secs = append(secs, s.Sections...)
	}
	return secs
}

// Section returns the named section of the named segment, or nil.
func (f *File) Section(segment, section string) *Section {
	for _, s := range f.Sections() {
		if s.Seg() == segment && s.Name() == section {
			return s
		}
	}
	return nil
}

// UUID returns the LC_UUID command, or nil.
func (f *File) UUID() *UUIDCmd {
	for _, l := range f.Loads {
		if u, ok := l.(*UUIDCmd); ok {
			return u
		}
	}
	return nil
}

// DylibID returns the LC_ID_DYLIB command of a dylib, or nil.
func (f *File) DylibID() *Dylib {
	for _, l := range f.Loads {
		if d, ok := l.(*Dylib); ok && d.Cmd == types.LoadCmdDylibID {
			return d
		}
	}
	return nil
}

// ImportedLibraries returns the paths of all libraries referred to by the
// image that are expected to be linked with it at dynamic link time.
func (f *File) ImportedLibraries() []string {
	var all []string
	for _, l := range f.Loads {
		if d, ok := l.(*Dylib); ok && d.Cmd != types.LoadCmdDylibID {
			all = append(all, d.Path())
		}
	}
	return all
}

// Rpaths returns the LC_RPATH search paths in load order.
func (f *File) Rpaths() []string {
	var paths []string
	for _, l := range f.Loads {
		if r, ok := l.(*Rpath); ok {
			paths = append(paths, r.Path.String())
		}
	}
	return paths
}

// BuildVersion returns the LC_BUILD_VERSION command, or nil.
func (f *File) BuildVersion() *BuildVersion {
	for _, l := range f.Loads {
		if b, ok := l.(*BuildVersion); ok {
			return b
		}
	}
	return nil
}

// SourceVersion returns the LC_SOURCE_VERSION command, or nil.
func (f *File) SourceVersion() *SourceVersion {
	for _, l := range f.Loads {
		if s, ok := l.(*SourceVersion); ok {
			return s
		}
	}
	return nil
}

// A Result is everything Decode found in a buffer. For fat input Files is
// index aligned with Fat.Arches and holds nil for arches that failed.
type Result struct {
	Magic       MagicInfo
	Fat         *FatFile
	Files       []*File
	Diagnostics Diagnostics // fat level only, see AllDiagnostics
}

func (r *Result) IsFat() bool { return r.Fat != nil }

// File returns the thin image for a lipo style arch name. For thin input the
// name is matched against the header's cpu pair.
func (r *Result) File(arch string) (*File, bool) {
	if r.Fat == nil {
		if len(r.Files) == 1 && types.ArchName(r.Files[0].CPU, r.Files[0].SubCPU) == arch {
			return r.Files[0], true
		}
		return nil, false
	}
	a, ok := r.Fat.ArchByName(arch)
	if !ok || r.Files[a.Index] == nil {
		return nil, false
	}
	return r.Files[a.Index], true
}

// AllDiagnostics returns the fat level diagnostics followed by each file's.
func (r *Result) AllDiagnostics() Diagnostics {
	all := append(Diagnostics(nil), r.Diagnostics...)
	for _, f := range r.Files {
		if f != nil {
			all = append(all, f.Diagnostics...)
		}
	}
	return all
}

type options struct {
	concurrency int
}

type Option func(*options)

// WithConcurrency bounds how many fat slices are decoded at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// Decode decodes a thin or fat Mach-O held in buf. Slices of a fat file are
// decoded concurrently; cancelling ctx stops further slices from starting.
func Decode(ctx context.Context, buf []byte, opts ...Option) (*Result, error) {
	o := options{concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mi, err := DetectMagic(buf)
	if err != nil {
		return nil, err
	}

	if mi.Kind != KindFat {
		f, err := NewFile(buf)
		if err != nil {
			return nil, err
		}
		return &Result{Magic: mi, Files: []*File{f}}, nil
	}

	ff, err := ParseFat(buf)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Magic:       mi,
		Fat:         ff,
		Files:       make([]*File, len(ff.Arches)),
		Diagnostics: append(Diagnostics(nil), ff.Diagnostics...),
	}

	// each worker owns its slot in Files and errs
	errs := make([]error, len(ff.Arches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i := range ff.Arches {
		a := &ff.Arches[i]
		if !a.Valid {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := NewFile(a.Data())
			if err != nil {
				errs[i] = err
				return nil
			}
			res.Files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, err := range errs {
		if err == nil {
			continue
		}
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Scope:  ScopeArch,
			Index:  i,
			Offset: int64(ff.Arches[i].Offset),
			Err:    errors.Wrapf(err, "arch %s", ff.Arches[i].Name()),
		})
	}

	return res, nil
}

// Open reads the named file into memory and decodes it.
func Open(name string, opts ...Option) (*Result, error) {
	dat, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	res, err := Decode(context.Background(), dat, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", name)
	}
	return res, nil
}
