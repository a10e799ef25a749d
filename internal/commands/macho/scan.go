package macho

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/machodec/internal/magic"
	"github.com/blacktop/machodec/pkg/macho"
	"github.com/blacktop/machodec/pkg/macho/types"
	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// ScanConfig is the configuration for Scan
type ScanConfig struct {
	Workers   int
	CacheSize int
	UUIDs     []string // keep only images with one of these uuids, in any form uuid.Parse accepts
}

// A Summary is one line of `scan` output.
type Summary struct {
	Path        string
	Size        int64
	SHA256      string
	Kind        macho.Kind
	Arches      []string
	UUIDs       []string
	Diagnostics int
	Duplicate   string // first path seen with the same contents
	Err         error
}

func (s Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\t%s\t%s", s.Path, humanize.Bytes(uint64(s.Size)), s.Kind)
	switch {
	case s.Err != nil:
		fmt.Fprintf(&sb, "\terror: %v", s.Err)
	case s.Duplicate != "":
		fmt.Fprintf(&sb, "\tduplicate of %s", s.Duplicate)
	default:
		fmt.Fprintf(&sb, "\t%s", strings.Join(s.Arches, ","))
		if len(s.UUIDs) > 0 {
			fmt.Fprintf(&sb, "\t%s", strings.Join(s.UUIDs, ","))
		}
		if s.Diagnostics > 0 {
			fmt.Fprintf(&sb, "\t%d diagnostics", s.Diagnostics)
		}
	}
	return sb.String()
}

// Matches reports whether any image of s carries one of the uuids in want.
func (s Summary) Matches(want map[string]bool) bool {
	for _, u := range s.UUIDs {
		if want[u] {
			return true
		}
	}
	return false
}

// Scan walks root and decodes every Mach-O file under it. Files whose
// contents were already decoded are reported as duplicates of the first one.
// The summaries are returned in walk order.
func Scan(ctx context.Context, root string, conf ScanConfig) ([]Summary, error) {
	want := make(map[string]bool, len(conf.UUIDs))
	for _, s := range conf.UUIDs {
		u, err := types.ParseUUID(s)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %v", s, err)
		}
		want[u.String()] = true
	}

	if conf.Workers < 1 {
		conf.Workers = 1
	}
	if conf.CacheSize < 1 {
		conf.CacheSize = 1
	}

	var paths []string
	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, err := magic.IsMachO(path); !ok {
			log.WithField("path", path).Debugf("skipping: %v", err)
			return nil
		}
		paths = append(paths, path)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to walk %s: %v", root, err)
	}

	seen, err := lru.New[string, string](conf.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan cache: %v", err)
	}

	sums := make([]Summary, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conf.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sums[i] = scanFile(path, seen)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(want) > 0 {
		sums = filterByUUID(sums, want)
	}

	return sums, nil
}

// filterByUUID keeps the summaries that match want. A duplicate is kept when
// the file it duplicates is.
func filterByUUID(sums []Summary, want map[string]bool) []Summary {
	matched := make(map[string]bool)
	for _, s := range sums {
		if s.Duplicate == "" && s.Matches(want) {
			matched[s.Path] = true
		}
	}
	var out []Summary
	for _, s := range sums {
		if matched[s.Path] || (s.Duplicate != "" && matched[s.Duplicate]) {
			out = append(out, s)
		}
	}
	return out
}

func scanFile(path string, seen *lru.Cache[string, string]) Summary {
	s := Summary{Path: path}

	dat, err := os.ReadFile(path)
	if err != nil {
		s.Err = err
		return s
	}
	s.Size = int64(len(dat))
	sum := sha256.Sum256(dat)
	s.SHA256 = hex.EncodeToString(sum[:])

	if first, found, _ := seen.PeekOrAdd(s.SHA256, path); found {
		s.Duplicate = first
		if mi, err := macho.DetectMagic(dat); err == nil {
			s.Kind = mi.Kind
		}
		return s
	}

	res, err := macho.Decode(context.Background(), dat, macho.WithConcurrency(1))
	if err != nil {
		s.Err = err
		return s
	}
	s.Kind = res.Magic.Kind
	s.Diagnostics = len(res.AllDiagnostics())
	for _, f := range res.Files {
		if f == nil {
			continue
		}
		name := types.ArchName(f.CPU, f.SubCPU)
		if name == "" {
			name = f.CPU.String()
		}
		s.Arches = append(s.Arches, name)
		if u := f.UUID(); u != nil {
			s.UUIDs = append(s.UUIDs, u.UUID.String())
		}
	}
	log.WithFields(log.Fields{"path": path, "arches": s.Arches}).Debug("decoded")
	return s
}
