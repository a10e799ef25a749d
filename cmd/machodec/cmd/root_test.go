package cmd

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	mcmd "github.com/blacktop/machodec/internal/commands/macho"
	"github.com/blacktop/machodec/internal/machotest"
	"github.com/blacktop/machodec/pkg/macho/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFixtures(t *testing.T) (dir, thin, fat string) {
	t.Helper()
	dir = t.TempDir()
	b := machotest.New(binary.LittleEndian, true)
	b.UUID(types.UUID{0xaa})
	b.Rpath("@loader_path")
	img := b.Bytes()

	thin = filepath.Join(dir, "thin")
	require.NoError(t, os.WriteFile(thin, img, 0o644))
	fat = filepath.Join(dir, "fat")
	require.NoError(t, os.WriteFile(fat, machotest.Fat(
		machotest.FatArch{CPU: types.CPUArm64, Align: 4, Data: img},
	), 0o644))
	return dir, thin, fat
}

func TestInfoJSON(t *testing.T) {
	_, thin, _ := writeFixtures(t)
	out, err := run(t, "info", thin, "--format", "json", "--arch", "", "--sections=false")
	require.NoError(t, err)

	var r mcmd.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	require.Len(t, r.Images, 1)
	assert.Equal(t, "arm64", r.Images[0].Arch)
	assert.Equal(t, types.UUID{0xaa}.String(), r.Images[0].UUID)
	assert.Len(t, r.Images[0].Loads, 2)
}

func TestInfoRejectsNonMachO(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))
	_, err := run(t, "info", path, "--format", "text", "--arch", "")
	assert.Error(t, err)
}

func TestInfoStatError(t *testing.T) {
	dir, thin, _ := writeFixtures(t)
	tests := []struct {
		name string
		path string
		want string
	}{
		{"not a directory", filepath.Join(thin, "child"), "failed to stat"},
		{"missing", filepath.Join(dir, "missing"), "failed to stat"},
		{"directory", dir, "is a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			assert.NotPanics(t, func() {
				_, err = run(t, "info", tt.path, "--format", "text", "--arch", "")
			})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLipoListAndExtract(t *testing.T) {
	dir, _, fat := writeFixtures(t)

	out, err := run(t, "lipo", fat, "--arch", "", "--extract=false")
	require.NoError(t, err)
	assert.Contains(t, out, "arm64")

	outDir := filepath.Join(dir, "out")
	_, err = run(t, "lipo", fat, "--arch", "arm64", "--output", outDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "fat.arm64"))
}

func TestScanCommand(t *testing.T) {
	dir, _, _ := writeFixtures(t)
	out, err := run(t, "scan", dir, "--workers", "2", "--cache-size", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "thin")
	assert.Contains(t, out, "fat")
}

// keep last: slice flags accumulate across executions of rootCmd
func TestScanUUIDFlag(t *testing.T) {
	dir, _, _ := writeFixtures(t)
	b := machotest.New(binary.BigEndian, false)
	b.UUID(types.UUID{0xbb})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), b.Bytes(), 0o644))

	out, err := run(t, "scan", dir, "--workers", "1", "--uuid", "bb000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Contains(t, out, "other")
	assert.NotContains(t, out, "thin")
}
