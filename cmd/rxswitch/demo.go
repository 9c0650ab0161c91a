package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xinjiayu/rxswitch/internal/config"
	"github.com/xinjiayu/rxswitch/internal/demo"
	"github.com/xinjiayu/rxswitch/internal/logging"
)

func newDemoCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Stream an order book rebuilt on every snapshot as JSON lines",
		Long: `demo subscribes to a snapshot ticker (the primary stream) and two auxiliary
tickers, trades and quotes. Every snapshot starts a new book; trades and quotes
are folded into the current book and each state is printed as a JSON line.

Flags can also be set with RXSWITCH_ environment variables or a YAML config file.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return config.BindPFlags(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}

			logConf, err := logging.ParseEnv()
			if err != nil {
				return err
			}
			logger, closer := logging.New(logConf, os.Stderr)
			defer closer.Close()

			return demo.Run(context.Background(), cfg, cmd.OutOrStdout(), logger)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}
