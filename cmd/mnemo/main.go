// main.go: mnemo command line entry point
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Command mnemo runs, benchmarks and maintains a mnemo log directory.
package main

import (
	"os"

	"github.com/agilira/mnemo/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
