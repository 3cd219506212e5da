// sweep.go: One-shot retention sweep
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"io"

	"github.com/agilira/mnemo"
	"github.com/agilira/mnemo/upload"
	"github.com/spf13/cobra"
)

func sweepCommand(opts *options) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Archive or delete logs older than the retention period",
		Long: `Run one retention sweep over the configured log directory using the
configured compress mode and backup settings, then print what was done.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, warns, err := opts.loadConfig()
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), warns)
			if dir != "" {
				cfg.Dir = dir
			}
			cfg.HeadlessMode = true

			eng, err := mnemo.New(cfg, mnemo.WithUploader(upload.New()))
			if err != nil {
				return err
			}
			defer eng.Close()

			rep, err := eng.Sweep(cmd.Context())
			if opts.output == outputYAML {
				if yerr := writeYAML(cmd.OutOrStdout(), sweepView{Dir: eng.Dir(), SweepReport: rep}); yerr != nil {
					return yerr
				}
				return err
			}
			printReport(cmd.OutOrStdout(), eng.Dir(), rep)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "log directory (overrides the configuration)")
	return cmd
}

type sweepView struct {
	Dir               string `yaml:"dir"`
	mnemo.SweepReport `yaml:",inline"`
}

func printReport(w io.Writer, dir string, r mnemo.SweepReport) {
	fmt.Fprintf(w, "Swept %s\n", dir)
	fmt.Fprintf(w, "  scanned:  %d\n", r.Scanned)
	fmt.Fprintf(w, "  stale:    %d\n", r.Stale)
	fmt.Fprintf(w, "  archived: %d\n", r.Archived)
	fmt.Fprintf(w, "  deleted:  %d\n", r.Deleted)
	fmt.Fprintf(w, "  uploaded: %d\n", r.Uploaded)
	fmt.Fprintf(w, "  skipped:  %d\n", r.Skipped)
	fmt.Fprintf(w, "  failed:   %d\n", r.Failed)
	for _, a := range r.Archives {
		fmt.Fprintf(w, "  archive:  %s\n", a)
	}
}
