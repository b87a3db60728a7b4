package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ircgate/ircgate/internal/app"
	"github.com/ircgate/ircgate/internal/auth"
	"github.com/ircgate/ircgate/internal/config"
	"github.com/ircgate/ircgate/internal/log"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "ircgate",
		Short:        "IRC gateway to a remote messaging network",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd(), hashpassCmd(), tokenCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.New("info")
			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				return err
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting ircgate")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("ircgate stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func hashpassCmd() *cobra.Command {
	var useBcrypt bool

	cmd := &cobra.Command{
		Use:   "hashpass <password>",
		Short: "Hash a password for the credentials file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if useBcrypt {
				hash, err := auth.HashPasswordBcrypt(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), auth.HashPassword(args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&useBcrypt, "bcrypt", false, "use bcrypt instead of sha256")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("IRCGATE_ADMIN_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("admin secret required (--secret or IRCGATE_ADMIN_SECRET)")
			}
			tok, err := auth.GenerateToken(&auth.JWTConfig{
				Secret:   []byte(secret),
				Issuer:   "ircgate",
				Audience: "admin",
				TTL:      ttl,
			}, subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "admin JWT secret")
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ircgate version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
