package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mozilla/logins-sync/internal/loginsdb"
	"github.com/mozilla/logins-sync/internal/loginstoreconfig"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "loginstore",
		Short:   "Maintenance CLI for a local login store",
		Version: version,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().String("db", "", "Path to the login store database file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Duration("busy-timeout", 0, "SQLite busy timeout")

	rootCmd.AddCommand(
		migrateCmd(),
		statsCmd(),
		vacuumCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openFromFlags(cmd *cobra.Command) (*loginsdb.Store, error) {
	cfg, err := loginstoreconfig.Load(cmd)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	setupLogging(cfg.LogLevel)

	return loginsdb.Open(loginsdb.Options{Path: cfg.DBPath, BusyTimeout: cfg.BusyTimeout})
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the store's schema up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFromFlags(cmd)
			if err != nil {
				return fmt.Errorf("open login store: %w", err)
			}
			defer s.Close()
			logrus.Info("login store schema is current")
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report pending-sync state without changing any stored login",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFromFlags(cmd)
			if err != nil {
				return fmt.Errorf("open login store: %w", err)
			}
			defer s.Close()

			have, err := s.HaveSyncedLogins()
			if err != nil {
				return fmt.Errorf("have_synced_logins: %w", err)
			}
			out, err := s.FetchOutgoing(context.Background(), 0)
			if err != nil {
				return fmt.Errorf("fetch_outgoing: %w", err)
			}
			logrus.WithFields(logrus.Fields{
				"have_synced_logins": have,
				"pending_outgoing":   len(out.Changes),
			}).Info("login store stats")
			return nil
		},
	}
}

func vacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Reclaim free pages in the store's database file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFromFlags(cmd)
			if err != nil {
				return fmt.Errorf("open login store: %w", err)
			}
			defer s.Close()
			return s.Vacuum()
		},
	}
}

func setupLogging(level string) {
	switch level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}
