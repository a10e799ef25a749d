/*
Copyright © 2018-2023 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/AlecAivazis/survey/v2"
	"github.com/apex/log"
	mcmd "github.com/blacktop/machodec/internal/commands/macho"
	"github.com/blacktop/machodec/pkg/macho"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(lipoCmd)

	lipoCmd.Flags().StringP("arch", "a", "", "Which architecture to extract")
	lipoCmd.Flags().BoolP("extract", "x", false, "Extract a slice (prompts for the arch if --arch is not set)")
	lipoCmd.Flags().String("output", "", "Directory to extract the MachO")
	viper.BindPFlag("lipo.arch", lipoCmd.Flags().Lookup("arch"))
	viper.BindPFlag("lipo.extract", lipoCmd.Flags().Lookup("extract"))
	viper.BindPFlag("lipo.output", lipoCmd.Flags().Lookup("output"))
	lipoCmd.MarkZshCompPositionalArgumentFile(1)
}

// lipoCmd represents the lipo command
var lipoCmd = &cobra.Command{
	Use:     "lipo <fat>",
	Aliases: []string{"l"},
	Short:   "List or extract the slices of a universal/fat MachO",
	Example: heredoc.Doc(`
		# List the slices
		❯ machodec lipo /usr/lib/dyld
		# Extract the x86_64 slice into /tmp
		❯ machodec lipo --arch x86_64 --output /tmp /usr/lib/dyld`),
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// flags
		selectedArch := viper.GetString("lipo.arch")
		extract := viper.GetBool("lipo.extract")
		extractPath := viper.GetString("lipo.output")

		machoPath := filepath.Clean(args[0])

		dat, err := os.ReadFile(machoPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %v", machoPath, err)
		}

		fat, err := macho.ParseFat(dat)
		if err != nil {
			return fmt.Errorf("input file is not a universal/fat MachO: %v", err)
		}
		for _, d := range fat.Diagnostics {
			log.Warn(d.Error())
		}

		if len(selectedArch) == 0 && !extract {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tARCH\tCPU\tOFFSET\tSIZE\tALIGN")
			for _, a := range fat.Arches {
				fmt.Fprintf(w, "%d\t%s\t%s\t%#x\t%s\t2^%d\n",
					a.Index, a.Name(), a.SubCPU.String(a.CPU), a.Offset, humanize.Bytes(uint64(a.Size)), a.Align)
			}
			return w.Flush()
		}

		if len(selectedArch) == 0 {
			labels, names := mcmd.ArchChoices(fat)
			if len(names) == 0 {
				return fmt.Errorf("%s has no valid slices", machoPath)
			}
			choice := 0
			prompt := &survey.Select{
				Message: "Detected a universal MachO file, please select an architecture to extract:",
				Options: labels,
			}
			if err := survey.AskOne(prompt, &choice); err != nil {
				return err
			}
			selectedArch = names[choice]
		}

		fname, err := mcmd.ExtractArch(fat, selectedArch, machoPath, extractPath)
		if err != nil {
			return err
		}
		log.Infof("Extracted %s file as %s", selectedArch, fname)

		return nil
	},
}
