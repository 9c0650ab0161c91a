package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version 由构建参数 -ldflags "-X main.Version=..." 设置
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of rxswitch",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rxswitch %s (%s %s/%s)\n",
				Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
