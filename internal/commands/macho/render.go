package macho

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/blacktop/machodec/internal/colors"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// RenderOptions controls the text renderer. The structured formats always
// carry everything.
type RenderOptions struct {
	Format   string
	Sections bool
}

// Render writes r to w in the requested format.
func Render(w io.Writer, r *Report, opts RenderOptions) error {
	switch opts.Format {
	case "json":
		dat, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report as JSON: %v", err)
		}
		if _, err := w.Write(append(dat, '\n')); err != nil {
			return err
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to marshal report as YAML: %v", err)
		}
		return enc.Close()
	case "", "text":
		return renderText(w, r, opts)
	default:
		return fmt.Errorf("unknown format %q", opts.Format)
	}
}

func renderText(w io.Writer, r *Report, opts RenderOptions) error {
	fmt.Fprintf(w, "%s %s (%s, %s)\n", colors.Title("File:"), r.Path, r.Kind, humanize.Bytes(uint64(r.Size)))

	if len(r.Arches) > 0 {
		fmt.Fprintf(w, "\n%s\n", colors.Title("Fat Arches"))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, a := range r.Arches {
			status := ""
			if !a.Valid {
				status = colors.Invalid("out of range")
			}
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\talign=2^%d\t%s\n",
				a.Index, colors.Label(a.Name), a.SubCPU,
				colors.Offset("offset=%#x", a.Offset), humanize.Bytes(uint64(a.Size)), a.Align, status)
		}
		tw.Flush()
	}
	renderDiags(w, r.Diagnostics)

	for _, img := range r.Images {
		fmt.Fprintf(w, "\n%s\n", colors.Title("Mach Header"))
		tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
		fmt.Fprintf(tw, "  magic\t= %s (%s)\n", img.Magic, img.ByteOrder)
		fmt.Fprintf(tw, "  type\t= %s\n", img.Type)
		fmt.Fprintf(tw, "  cpu\t= %s, %s\n", img.CPU, img.SubCPU)
		if img.Capabilities != 0 {
			fmt.Fprintf(tw, "  caps\t= %#x\n", img.Capabilities)
		}
		fmt.Fprintf(tw, "  commands\t= %d (size %d)\n", img.NCommands, img.SizeCommands)
		fmt.Fprintf(tw, "  flags\t= %s\n", colors.Flags(strings.Join(img.Flags, ", ")))
		if img.UUID != "" {
			fmt.Fprintf(tw, "  uuid\t= %s\n", img.UUID)
		}
		tw.Flush()

		fmt.Fprintf(w, "\n%s\n", colors.Title("Load Commands"))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, l := range img.Loads {
			fmt.Fprintf(tw, "%03d:\t%s\t%s\t%s\n", l.Index, colors.Command(l.Cmd), colors.Offset("%#x/%d", l.Offset, l.Size), l.Summary)
			if !opts.Sections {
				continue
			}
			for _, s := range l.Sections {
				flags := ""
				if len(s.Flags) > 0 {
					flags = colors.Flags("(" + strings.Join(s.Flags, "|") + ")")
				}
				fmt.Fprintf(tw, "\t  %s\t%s\t%s\n",
					colors.Segment(s.Segment+"."+s.Name),
					colors.Offset("%#x-%#x", s.Addr, s.Addr+s.Size),
					flags)
			}
		}
		tw.Flush()
		renderDiags(w, img.Diagnostics)
	}

	return nil
}

func renderDiags(w io.Writer, diags []DiagReport) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", colors.Warning(fmt.Sprintf("Diagnostics (%d)", len(diags))))
	for _, d := range diags {
		fmt.Fprintf(w, "  %s\n", colors.Warning(d.Error))
	}
}
