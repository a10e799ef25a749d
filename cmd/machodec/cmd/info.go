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

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/blacktop/machodec/internal/colors"
	mcmd "github.com/blacktop/machodec/internal/commands/macho"
	"github.com/blacktop/machodec/internal/config"
	"github.com/blacktop/machodec/internal/magic"
	"github.com/blacktop/machodec/pkg/macho"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringP("arch", "a", "", "Which architecture to use for fat/universal MachO")
	infoCmd.Flags().StringP("format", "f", "text", "Output format (text, json or yaml)")
	infoCmd.Flags().BoolP("sections", "s", false, "Print the sections of each segment")
	viper.BindPFlag("info.arch", infoCmd.Flags().Lookup("arch"))
	viper.BindPFlag("info.format", infoCmd.Flags().Lookup("format"))
	viper.BindPFlag("info.sections", infoCmd.Flags().Lookup("sections"))

	infoCmd.MarkZshCompPositionalArgumentFile(1)
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:     "info <macho>",
	Aliases: []string{"i"},
	Short:   "Print the header, load commands and sections of a MachO",
	Example: heredoc.Doc(`
		# Print the header and load commands
		❯ machodec info /usr/lib/dyld
		# Print the arm64e slice with its sections as JSON
		❯ machodec info -a arm64e -s -f json /usr/lib/dyld`),
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}

		machoPath := filepath.Clean(args[0])

		if info, err := os.Stat(machoPath); err != nil {
			return fmt.Errorf("failed to stat %s: %v", machoPath, err)
		} else if info.IsDir() {
			return fmt.Errorf("%s is a directory (use 'machodec scan')", machoPath)
		}

		if ok, err := magic.IsMachO(machoPath); !ok {
			return err
		}

		dat, err := os.ReadFile(machoPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %v", machoPath, err)
		}

		res, err := macho.Decode(cmd.Context(), dat, macho.WithConcurrency(conf.Scan.Workers))
		if err != nil {
			return fmt.Errorf("failed to decode %s: %v", machoPath, err)
		}

		report, err := mcmd.NewReport(machoPath, len(dat), res, conf.Info.Arch)
		if err != nil {
			return err
		}

		if conf.Info.Format != "text" {
			forceOff := false
			colors.Init(&forceOff)
		}

		return mcmd.Render(cmd.OutOrStdout(), report, mcmd.RenderOptions{
			Format:   conf.Info.Format,
			Sections: conf.Info.Sections,
		})
	},
}
