// Package layout decodes fixed-width binary records described by ordered field lists.
package layout

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// ErrTruncated is returned when a field or record reaches past the end of its buffer.
var ErrTruncated = errors.New("truncated buffer")

// A Kind is the on-disk encoding of a single field.
type Kind uint8

const (
	Uint8 Kind = iota + 1
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Bytes // fixed-length byte array, see Field.Len
)

var kindStrings = [...]string{
	Uint8:  "u8",
	Int8:   "i8",
	Uint16: "u16",
	Int16:  "i16",
	Uint32: "u32",
	Int32:  "i32",
	Uint64: "u64",
	Int64:  "i64",
	Bytes:  "bytes",
}

func (k Kind) String() string {
	if int(k) < len(kindStrings) && kindStrings[k] != "" {
		return kindStrings[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Signed reports whether values of this kind are two's complement integers.
func (k Kind) Signed() bool {
	switch k {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// A Field is one named, typed member of a record.
type Field struct {
	Name string
	Kind Kind
	Len  int // only used by Bytes
}

// U8 through Arr are shorthands used when declaring field lists.
func U8(name string) Field  { return Field{Name: name, Kind: Uint8} }
func I8(name string) Field  { return Field{Name: name, Kind: Int8} }
func U16(name string) Field { return Field{Name: name, Kind: Uint16} }
func I16(name string) Field { return Field{Name: name, Kind: Int16} }
func U32(name string) Field { return Field{Name: name, Kind: Uint32} }
func I32(name string) Field { return Field{Name: name, Kind: Int32} }
func U64(name string) Field { return Field{Name: name, Kind: Uint64} }
func I64(name string) Field { return Field{Name: name, Kind: Int64} }
func Arr(name string, n int) Field {
	return Field{Name: name, Kind: Bytes, Len: n}
}

// Width returns the number of bytes the field occupies on disk.
func (f Field) Width() int {
	switch f.Kind {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32:
		return 4
	case Uint64, Int64:
		return 8
	case Bytes:
		return f.Len
	default:
		return 0
	}
}

// A Value is a decoded field. Integers are held as their raw bit pattern,
// sign-extended from the declared width for signed kinds.
type Value struct {
	Kind Kind
	bits uint64
	raw  []byte
}

func (v Value) Uint() uint64 { return v.bits }
func (v Value) Int() int64   { return int64(v.bits) }

// Bytes returns the raw bytes of a Bytes field. The slice aliases the source buffer.
func (v Value) Bytes() []byte { return v.raw }

// ReadField decodes f from buf at off using o.
func ReadField(buf []byte, off int, o binary.ByteOrder, f Field) (Value, error) {
	w := f.Width()
	if w <= 0 && f.Kind != Bytes {
		return Value{}, errors.Errorf("field %q has unknown kind %s", f.Name, f.Kind)
	}
	if off < 0 || off > len(buf) || len(buf)-off < w {
		return Value{}, errors.Wrapf(ErrTruncated, "field %q (%s) needs %d bytes at offset %#x, buffer has %d",
			f.Name, f.Kind, w, off, len(buf))
	}
	b := buf[off : off+w]
	v := Value{Kind: f.Kind}
	switch f.Kind {
	case Uint8:
		v.bits = uint64(b[0])
	case Int8:
		v.bits = uint64(int64(int8(b[0])))
	case Uint16:
		v.bits = uint64(o.Uint16(b))
	case Int16:
		v.bits = uint64(int64(int16(o.Uint16(b))))
	case Uint32:
		v.bits = uint64(o.Uint32(b))
	case Int32:
		v.bits = uint64(int64(int32(o.Uint32(b))))
	case Uint64, Int64:
		v.bits = o.Uint64(b)
	case Bytes:
		v.raw = b
	}
	return v, nil
}
