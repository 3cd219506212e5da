// secret.go: Credential encryption commands
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func secretCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Encrypt or decrypt backup credentials",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "encrypt [value]",
			Short: "Print the encrypted form of a value for ftpSecret",
			Long:  "Encrypt a value with the local key file. The value is read from standard input when not given as an argument.",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := argOrStdin(cmd, args)
				if err != nil {
					return err
				}
				store, err := opts.secretStore()
				if err != nil {
					return err
				}
				enc, err := store.Encrypt(value)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), enc)
				return nil
			},
		},
		&cobra.Command{
			Use:   "decrypt [value]",
			Short: "Print the plaintext of an encrypted value",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := argOrStdin(cmd, args)
				if err != nil {
					return err
				}
				store, err := opts.secretStore()
				if err != nil {
					return err
				}
				plain, err := store.Decrypt(value)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), plain)
				return nil
			},
		},
	)
	return cmd
}

func argOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read value: %w", err)
		}
		return "", errors.New("empty value")
	}
	return line, nil
}
