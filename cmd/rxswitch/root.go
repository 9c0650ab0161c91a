package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xinjiayu/rxswitch/internal/config"
)

var (
	configFile string
	envFile    string
)

// rootCmd 不带子命令时只打印帮助
var rootCmd = &cobra.Command{
	Use:           "rxswitch",
	Short:         "Multi-switch-scan stream demo",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行命令行
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initDotEnv)

	rootCmd.SetVersionTemplate(fmt.Sprintf("rxswitch version: %s\n", Version))
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(newDemoCmd(), newVersionCmd())
}

// initDotEnv 加载 .env 文件中的环境变量
func initDotEnv() {
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", envFile, err)
		os.Exit(1)
	}
}
