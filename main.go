// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

package main

import (
	"fmt"
	"os"

	"github.com/m17gateway/m17gateway/cmd"
	"github.com/m17gateway/m17gateway/internal/sdk"
)

func main() {
	rootCmd := cmd.NewCommand(sdk.Version, sdk.GitCommit)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "M17Gateway: %v\n", err)
		os.Exit(1)
	}
}
