// root.go: Root command and shared flags
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package cli implements the mnemo command line.
package cli

import (
	"fmt"
	"io"

	"github.com/agilira/mnemo"
	"github.com/agilira/mnemo/config"
	"github.com/agilira/mnemo/secret"
	"github.com/spf13/cobra"
)

// AppName scopes the secret key file and derived encryption key.
const AppName = "mnemo"

// Version is overridden at link time.
var Version = "dev"

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	keyPath    string
	output     string
}

// secretStore opens the key file named by --key-file or the default one.
func (o *options) secretStore() (*secret.Store, error) {
	path := o.keyPath
	if path == "" {
		p, err := secret.DefaultKeyPath(AppName)
		if err != nil {
			return nil, err
		}
		path = p
	}
	return secret.New(path, AppName), nil
}

// loadConfig reads --config, writing the default file first when missing.
func (o *options) loadConfig() (mnemo.Config, []string, error) {
	store, err := o.secretStore()
	if err != nil {
		return mnemo.Config{}, nil, err
	}
	return config.Load(o.configPath, store)
}

// RootCommand creates the mnemo command tree.
func RootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "mnemo",
		Short:         "Concurrent rotating log engine",
		Long:          "mnemo writes leveled log lines to daily rotating files, archives old days and ships archives to a backup server.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validOutput(opts.output)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultFileName, "configuration file (created with defaults when missing)")
	root.PersistentFlags().StringVar(&opts.keyPath, "key-file", "", "secret key file (default: user config directory)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "report format for bench and sweep: text or yaml")

	root.AddCommand(
		runCommand(opts),
		benchCommand(opts),
		sweepCommand(opts),
		secretCommand(opts),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	root := RootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func printWarnings(w io.Writer, warns []string) {
	for _, s := range warns {
		fmt.Fprintln(w, "warning:", s)
	}
}
