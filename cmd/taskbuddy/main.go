// Command taskbuddy runs the TaskBuddy Telegram bot.
//
// @title       TaskBuddy API
// @version     1.0
// @description Telegram webhook and read-only reporting API of the TaskBuddy bot.
// @BasePath    /
//
// @securityDefinitions.apikey ApiKeyAuth
// @in   header
// @name X-API-Key
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-taskbuddy/internal/config"
	"github.com/tbourn/go-taskbuddy/internal/observability"
	"github.com/tbourn/go-taskbuddy/internal/sysutil"
)

var Version = "dev"

const serviceName = "taskbuddy"

// app is the state shared by all subcommands, set up in the root pre-run.
type app struct {
	cfg          config.Config
	shutdownOTel func(context.Context) error
	envFile      string
}

func main() {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "taskbuddy",
		Short:         "TaskBuddy: a Telegram bot for exchanging tasks with a partner",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.shutdownOTel == nil {
				return nil
			}
			return a.shutdownOTel(context.Background())
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd(a))
	rootCmd.AddCommand(pollCmd(a))
	rootCmd.AddCommand(migrateCmd(a))
	rootCmd.AddCommand(recomputeStatsCmd(a))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads .env and the configuration, then installs logging and tracing.
// Variables already present in the environment win over the dotenv file.
func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty, serviceName, os.Stdout)

	shutdown, err := observability.SetupOTel(cmd.Context(), cfg.OTEL, Version, cmd.Name())
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	} else {
		a.shutdownOTel = shutdown
	}

	cmd.SetContext(log.Logger.WithContext(cmd.Context()))
	return nil
}
