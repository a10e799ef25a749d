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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	mcmd "github.com/blacktop/machodec/internal/commands/macho"
	"github.com/blacktop/machodec/internal/config"
	"github.com/caarlos0/ctrlc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntP("workers", "w", 0, "Number of files to decode at once (default is the number of CPUs)")
	scanCmd.Flags().Int("cache-size", config.DefaultCacheSize, "Number of file hashes remembered for duplicate detection")
	scanCmd.Flags().StringSliceP("uuid", "u", nil, "Only list images with this LC_UUID (repeatable)")
	viper.BindPFlag("scan.workers", scanCmd.Flags().Lookup("workers"))
	viper.BindPFlag("scan.cache-size", scanCmd.Flags().Lookup("cache-size"))
	viper.BindPFlag("scan.uuid", scanCmd.Flags().Lookup("uuid"))
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Decode every MachO in a directory",
	Example: heredoc.Doc(`
		# Summarize every MachO under /usr/lib with 8 workers
		❯ machodec scan -w 8 /usr/lib
		# Find the binary a crash log's UUID belongs to
		❯ machodec scan --uuid 4C4C448E-5555-3144-A177-1E162AF03D22 /usr/lib`),
	Args: cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveFilterDirs
	},
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}

		root := filepath.Clean(args[0])
		if info, err := os.Stat(root); err != nil {
			return fmt.Errorf("failed to stat %s: %v", root, err)
		} else if !info.IsDir() {
			return fmt.Errorf("%s is not a directory (use 'machodec info')", root)
		}

		log.WithFields(log.Fields{"dir": root, "workers": conf.Scan.Workers}).Info("Scanning")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		var sums []mcmd.Summary
		if err := ctrlc.Default.Run(ctx, func() error {
			s, err := mcmd.Scan(ctx, root, mcmd.ScanConfig{
				Workers:   conf.Scan.Workers,
				CacheSize: conf.Scan.CacheSize,
				UUIDs:     conf.Scan.UUIDs,
			})
			sums = s
			return err
		}); err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				cancel()
				log.Warn("Scan interrupted")
				return nil
			}
			return err
		}

		var failed, dups int
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, s := range sums {
			switch {
			case s.Err != nil:
				failed++
			case s.Duplicate != "":
				dups++
			}
			fmt.Fprintln(w, s.String())
		}
		if err := w.Flush(); err != nil {
			return err
		}

		log.Infof("Decoded %d MachO files (%d duplicates, %d failed)", len(sums)-dups-failed, dups, failed)

		return nil
	},
}
