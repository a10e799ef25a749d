package macho

import (
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/machodec/pkg/macho/types"
	"github.com/pkg/errors"
)

const loadCmdPrefixSize = 8

// DecodeLoadCommands walks the load commands that follow hdr in buf. It
// never fails as a whole: a command that can't be decoded is left out of the
// returned list and described by a Diagnostic instead.
func DecodeLoadCommands(buf []byte, hdr *Header) ([]Load, Diagnostics) {
	var (
		loads   []Load
		diags   Diagnostics
		decoded uint32
		aborted bool
	)

	start := hdr.Size()
	end := uint64(start) + uint64(hdr.SizeCommands)
	cursor := uint64(start)

	for i := 0; decoded < hdr.NCommands && cursor < end; i++ {
		if uint64(len(buf)) < cursor+loadCmdPrefixSize {
			diags = append(diags, Diagnostic{
				Scope:  ScopeCommand,
				Index:  i,
				Offset: int64(cursor),
				Err: errors.Wrapf(ErrTruncatedBuffer, "load command %d of %d at %#x, buffer ends at %#x",
					i, hdr.NCommands, cursor, len(buf)),
			})
			aborted = true
			break
		}

		pre, _, _ := loadCmdDesc.Decode(buf, int(cursor), hdr.ByteOrder)
		cmd := types.LoadCmd(pre.Uint32("cmd"))
		siz := pre.Uint32("cmdsize")

		if siz < loadCmdPrefixSize || cursor+uint64(siz) > uint64(len(buf)) {
			diags = append(diags, Diagnostic{
				Scope:  ScopeCommand,
				Index:  i,
				Offset: int64(cursor),
				Cmd:    cmd,
				Err:    formatError(ErrInvalidCommandSize, int64(cursor), fmt.Sprintf("%s cmdsize", cmd), siz),
			})
			log.WithFields(log.Fields{"index": i, "cmd": cmd, "cmdsize": siz}).Debug("skipping malformed load command")
			decoded++
			if siz < loadCmdPrefixSize {
				cursor += loadCmdPrefixSize
				continue
			}
			// the command runs off the end of the image, nothing after it is readable
			aborted = true
			break
		}

		h := LoadHeader{
			Off:   int64(cursor),
			Index: i,
			Cmd:   cmd,
			Len:   siz,
			raw:   buf[cursor : cursor+uint64(siz)],
		}

		dec, ok := decoders[cmd]
		if !ok {
			log.WithFields(log.Fields{"index": i, "cmd": fmt.Sprintf("%#x", uint32(cmd)), "cmdsize": siz}).Debug("found unknown load command")
			loads = append(loads, &LoadCmdBytes{LoadHeader: h})
		} else {
			r := &cmdReader{LoadHeader: h, order: hdr.ByteOrder}
			l, err := dec(r)
			diags = append(diags, r.diags...)
			if err != nil {
				log.WithFields(log.Fields{"index": i, "cmd": cmd}).Debugf("failed to decode load command: %v", err)
				diags = append(diags, Diagnostic{
					Scope:  ScopeCommand,
					Index:  i,
					Offset: int64(cursor),
					Cmd:    cmd,
					Err:    err,
				})
			} else {
				loads = append(loads, l)
			}
		}

		cursor += uint64(siz)
		decoded++
	}

	if !aborted && (decoded != hdr.NCommands || cursor != end) {
		diags = append(diags, Diagnostic{
			Scope:  ScopeHeader,
			Offset: int64(start),
			Err: errors.Wrapf(ErrLoadCommandsMismatch, "walked %d commands in %d bytes, header says %d in %d",
				decoded, cursor-uint64(start), hdr.NCommands, hdr.SizeCommands),
		})
	}

	return loads, diags
}
