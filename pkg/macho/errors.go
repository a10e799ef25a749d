package macho

import (
	"fmt"
	"strings"

	"github.com/blacktop/machodec/pkg/macho/layout"
	"github.com/blacktop/machodec/pkg/macho/types"
	"github.com/pkg/errors"
)

var (
	// ErrNotMachO is returned when the leading magic is neither a thin nor a fat Mach-O magic.
	ErrNotMachO = errors.New("not a Mach-O file")
	// ErrTruncatedBuffer is returned (or recorded) when a record reaches past the end of its buffer.
	ErrTruncatedBuffer = layout.ErrTruncated
	// ErrInvalidCommandSize is recorded for a load command whose cmdsize is below
	// 8, runs past the buffer, or is smaller than the command's fixed part.
	ErrInvalidCommandSize = errors.New("invalid load command size")
	// ErrBadArchSlice is recorded for a fat arch whose offset/size leave the buffer.
	ErrBadArchSlice = errors.New("fat arch slice out of range")
	// ErrSectionCountMismatch is recorded when nsects does not account for a segment's cmdsize.
	ErrSectionCountMismatch = errors.New("section count does not match segment size")
	// ErrLoadCommandsMismatch is recorded when the walked load commands disagree with ncmds/sizeofcmds.
	ErrLoadCommandsMismatch = errors.New("load commands do not match header")
	// ErrFatFile is returned by the thin parsers when handed a fat file.
	ErrFatFile = errors.New("fat file")
)

// FormatError is returned by some operations if the data does
// not have the correct format for an object file.
type FormatError struct {
	off int64
	msg string
	val any
	err error
}

func formatError(err error, off int64, msg string, val any) *FormatError {
	return &FormatError{off: off, msg: msg, val: val, err: err}
}

func (e *FormatError) Error() string {
	msg := e.msg
	if e.val != nil {
		msg += fmt.Sprintf(" '%v'", e.val)
	}
	msg += fmt.Sprintf(" in record at byte %#x", e.off)
	if e.err != nil {
		msg = e.err.Error() + ": " + msg
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.err }

// Offset is the byte offset of the offending record.
func (e *FormatError) Offset() int64 { return e.off }

// A Scope says which kind of element a Diagnostic is about.
type Scope uint8

const (
	ScopeHeader Scope = iota
	ScopeArch
	ScopeCommand
	ScopeSection
)

var scopeStrings = [...]string{
	ScopeHeader:  "header",
	ScopeArch:    "arch",
	ScopeCommand: "command",
	ScopeSection: "section",
}

func (s Scope) String() string {
	if int(s) < len(scopeStrings) {
		return scopeStrings[s]
	}
	return fmt.Sprintf("Scope(%d)", uint8(s))
}

func (s Scope) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// A Diagnostic is a non-fatal problem with one element of the file. The
// element is either dropped (commands, arches) or kept partially decoded
// (segments); the decoder carries on with the next one.
type Diagnostic struct {
	Scope  Scope
	Index  int           // arch or load command index
	Offset int64         // offset of the element in the buffer it was decoded from
	Cmd    types.LoadCmd // zero unless Scope is command or section
	Err    error
}

func (d Diagnostic) Error() string {
	switch d.Scope {
	case ScopeCommand, ScopeSection:
		return fmt.Sprintf("%s %d (%s) at %#x: %v", d.Scope, d.Index, d.Cmd, d.Offset, d.Err)
	case ScopeArch:
		return fmt.Sprintf("arch %d at %#x: %v", d.Index, d.Offset, d.Err)
	}
	return fmt.Sprintf("%s at %#x: %v", d.Scope, d.Offset, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

type Diagnostics []Diagnostic

// Has reports whether any diagnostic matches target (see errors.Is).
func (ds Diagnostics) Has(target error) bool {
	return ds.Count(target) > 0
}

// Count returns the number of diagnostics matching target.
func (ds Diagnostics) Count(target error) int {
	var n int
	for _, d := range ds {
		if errors.Is(d.Err, target) {
			n++
		}
	}
	return n
}

// Err returns nil if there are no diagnostics, otherwise an error wrapping all of them.
func (ds Diagnostics) Err() error {
	if len(ds) == 0 {
		return nil
	}
	return diagnosticsError(ds)
}

type diagnosticsError []Diagnostic

func (e diagnosticsError) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, 0, len(e))
	for _, d := range e {
		msgs = append(msgs, d.Error())
	}
	return fmt.Sprintf("%d problems: %s", len(e), strings.Join(msgs, "; "))
}

func (e diagnosticsError) Unwrap() []error {
	errs := make([]error, 0, len(e))
	for _, d := range e {
		errs = append(errs, d)
	}
	return errs
}
