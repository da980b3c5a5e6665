// Package loginstoreconfig loads the loginstore CLI's configuration from
// flags, environment variables, an optional config file, and defaults, in
// that order of precedence.
package loginstoreconfig

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds everything the loginstore CLI needs to open a store.
type Config struct {
	DBPath      string        `mapstructure:"db_path"`
	LogLevel    string        `mapstructure:"log_level"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// Load resolves Config from cmd's bound flags, an optional --config file,
// and LOGINSTORE_-prefixed environment variables.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("LOGINSTORE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required: specify via --db flag, config file, or LOGINSTORE_DB_PATH")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("busy_timeout", 5*time.Second)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"db":           "db_path",
		"log-level":    "log_level",
		"busy-timeout": "busy_timeout",
	}
	for flag, key := range flags {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}
