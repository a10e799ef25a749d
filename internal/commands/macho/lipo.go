package macho

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blacktop/machodec/pkg/macho"
)

// ArchChoices returns the prompt labels and lipo names of the valid arches of ff.
func ArchChoices(ff *macho.FatFile) (labels []string, names []string) {
	for _, a := range ff.Arches {
		if !a.Valid {
			continue
		}
		labels = append(labels, fmt.Sprintf("%s, %s", a.CPU, a.SubCPU.String(a.CPU)))
		names = append(names, a.Name())
	}
	return labels, names
}

// ExtractArch writes the slice named arch next to machoPath, or into outDir
// when it is set, and returns the path written.
func ExtractArch(ff *macho.FatFile, arch, machoPath, outDir string) (string, error) {
	a, ok := ff.ArchByName(arch)
	if !ok {
		_, names := ArchChoices(ff)
		return "", fmt.Errorf("--arch '%s' not found in: %s", arch, strings.Join(names, ", "))
	}

	outFile := fmt.Sprintf("%s.%s", machoPath, strings.ToLower(a.Name()))
	folder := filepath.Dir(outFile)
	if len(outDir) > 0 {
		folder = outDir
	}
	if err := os.MkdirAll(folder, 0o750); err != nil {
		return "", fmt.Errorf("failed to create folder %s: %v", folder, err)
	}
	fname := filepath.Join(folder, filepath.Base(outFile))
	if err := os.WriteFile(fname, a.Data(), 0o660); err != nil {
		return "", fmt.Errorf("failed to create file %s: %v", fname, err)
	}
	return fname, nil
}
