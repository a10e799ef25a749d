package layout

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// A Descriptor is an ordered list of fields making up one fixed-size record.
//
// The byte order is normally supplied at decode time so one descriptor serves
// both big and little endian images. Fixed returns a copy pinned to a single
// order for records whose encoding never changes (e.g. fat headers).
type Descriptor struct {
	name    string
	fields  []Field
	offsets []int
	index   map[string]int
	size    int
	order   binary.ByteOrder
}

// New builds a descriptor. It panics on duplicate field names since descriptors
// are package level declarations.
func New(name string, fields ...Field) *Descriptor {
	d := &Descriptor{
		name:    name,
		fields:  fields,
		offsets: make([]int, len(fields)),
		index:   make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, dup := d.index[f.Name]; dup {
			panic(fmt.Sprintf("layout: duplicate field %q in %s", f.Name, name))
		}
		d.index[f.Name] = i
		d.offsets[i] = d.size
		d.size += f.Width()
	}
	return d
}

// Fixed returns a copy of d that always decodes with o.
func (d *Descriptor) Fixed(o binary.ByteOrder) *Descriptor {
	c := *d
	c.order = o
	return &c
}

// Extend returns a new descriptor with fields appended to the ones of d.
func (d *Descriptor) Extend(name string, fields ...Field) *Descriptor {
	all := make([]Field, 0, len(d.fields)+len(fields))
	all = append(all, d.fields...)
	all = append(all, fields...)
	n := New(name, all...)
	n.order = d.order
	return n
}

func (d *Descriptor) Name() string       { return d.name }
func (d *Descriptor) Size() int          { return d.size }
func (d *Descriptor) Fields() []Field    { return append([]Field(nil), d.fields...) }
func (d *Descriptor) IsFixedOrder() bool { return d.order != nil }

// Offset returns the byte offset of the named field within the record.
func (d *Descriptor) Offset(name string) (int, bool) {
	i, ok := d.index[name]
	if !ok {
		return 0, false
	}
	return d.offsets[i], true
}

// Decode reads one record starting at base. The pinned order of a Fixed
// descriptor wins over o. It returns the record and the number of bytes consumed.
func (d *Descriptor) Decode(buf []byte, base int, o binary.ByteOrder) (Record, int, error) {
	if d.order != nil {
		o = d.order
	}
	if o == nil {
		return Record{}, 0, errors.Errorf("%s: no byte order", d.name)
	}
	if base < 0 || base > len(buf) || len(buf)-base < d.size {
		have := len(buf) - base
		if have < 0 {
			have = 0
		}
		return Record{}, 0, errors.Wrapf(ErrTruncated, "%s needs %d bytes at offset %#x, have %d",
			d.name, d.size, base, have)
	}
	r := Record{desc: d, values: make([]Value, len(d.fields))}
	for i, f := range d.fields {
		v, err := ReadField(buf, base+d.offsets[i], o, f)
		if err != nil {
			return Record{}, 0, errors.Wrapf(err, "%s", d.name)
		}
		r.values[i] = v
	}
	return r, d.size, nil
}

// A Record is one decoded instance of a Descriptor.
type Record struct {
	desc   *Descriptor
	values []Value
}

// Descriptor returns the descriptor r was decoded with.
func (r Record) Descriptor() *Descriptor { return r.desc }

// Value returns the named field. Asking for a field the descriptor does not
// declare is a programming error and panics.
func (r Record) Value(name string) Value {
	i, ok := r.desc.index[name]
	if !ok {
		panic(fmt.Sprintf("layout: %s has no field %q", r.desc.name, name))
	}
	return r.values[i]
}

func (r Record) Uint8(name string) uint8   { return uint8(r.Value(name).Uint()) }
func (r Record) Uint16(name string) uint16 { return uint16(r.Value(name).Uint()) }
func (r Record) Uint32(name string) uint32 { return uint32(r.Value(name).Uint()) }
func (r Record) Uint64(name string) uint64 { return r.Value(name).Uint() }
func (r Record) Int32(name string) int32   { return int32(r.Value(name).Int()) }
func (r Record) Int64(name string) int64   { return r.Value(name).Int() }
func (r Record) Bytes(name string) []byte  { return r.Value(name).Bytes() }

// Array16 copies a 16 byte field (segment/section names, UUIDs) into an array.
func (r Record) Array16(name string) [16]byte {
	var a [16]byte
	copy(a[:], r.Value(name).Bytes())
	return a
}
