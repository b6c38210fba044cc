package main

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"
)

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			_, _ = fmt.Fprintf(stdout, "cratemap %s\n", version)
			if info, ok := debug.ReadBuildInfo(); ok {
				_, _ = fmt.Fprintf(stdout, "go version %s\n", info.GoVersion)
			}
		},
	}
}
