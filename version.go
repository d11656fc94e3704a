package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show platecam version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "platecam %s\n", version)
		fmt.Fprintf(out, "OpenCV: %s (gocv %s)\n", gocv.OpenCVVersion(), gocv.Version())
		fmt.Fprintf(out, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
