// Package magic sniffs files on disk for Mach-O magics without decoding them.
package magic

import (
	"fmt"
	"io"
	"os"

	"github.com/blacktop/machodec/pkg/macho"
)

// Sniff reads the first four bytes of filePath and classifies them.
func Sniff(filePath string) (macho.MagicInfo, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return macho.MagicInfo{}, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err = io.ReadFull(f, magic[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return macho.MagicInfo{}, fmt.Errorf("%s: %w", filePath, macho.ErrTruncatedBuffer)
		}
		return macho.MagicInfo{}, fmt.Errorf("failed to read magic: %w", err)
	}

	return macho.DetectMagic(magic[:])
}

// IsMachO reports whether filePath starts with a thin or fat Mach-O magic.
func IsMachO(filePath string) (bool, error) {
	if _, err := Sniff(filePath); err != nil {
		return false, err
	}
	return true, nil
}

// IsFat reports whether filePath is a universal binary.
func IsFat(filePath string) (bool, error) {
	mi, err := Sniff(filePath)
	if err != nil {
		return false, err
	}
	return mi.Kind == macho.KindFat, nil
}
