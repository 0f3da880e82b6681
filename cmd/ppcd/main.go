package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cosmossdk.io/log"
	"github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pricepicks/chain/internal/app"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ppcd: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ppcd",
		Short:        "prediction card game ABCI app server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home := viper.GetString("home")
			addr := viper.GetString("addr")
			transport := viper.GetString("transport")

			filter, err := log.ParseLogLevel(viper.GetString("log-level"))
			if err != nil {
				return fmt.Errorf("parse log level: %w", err)
			}
			logger := log.NewLogger(cmd.ErrOrStderr(), log.FilterOption(filter))

			a, err := app.New(home, logger.With("module", "app"))
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			srv, err := server.NewServer(addr, transport, a)
			if err != nil {
				return fmt.Errorf("create abci server: %w", err)
			}
			if err := srv.Start(); err != nil {
				return fmt.Errorf("start abci server: %w", err)
			}
			defer func() { _ = srv.Stop() }()

			logger.Info("abci server listening", "addr", addr, "transport", transport, "home", home)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logger.Info("shutting down")
			return nil
		},
	}

	cmd.Flags().String("home", ".ppc", "app home directory (state stored under <home>/app)")
	cmd.Flags().String("addr", "tcp://127.0.0.1:26658", "ABCI listen address")
	cmd.Flags().String("transport", "socket", "ABCI transport (socket|grpc)")
	cmd.Flags().String("log-level", "info", "log level (debug|info|warn|error or <module>:<level> list)")

	// Flags may also come from PPCD_* env vars (PPCD_LOG_LEVEL etc).
	viper.SetEnvPrefix("PPCD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(cmd.Flags())

	return cmd
}
