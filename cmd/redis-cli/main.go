package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pior/redis"
)

var (
	flagConfig   string
	flagHost     string
	flagPort     int
	flagPassword string
	flagDB       int
	flagTimeout  time.Duration
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "redis-cli",
	Short: "Command line client for a key-value server speaking the redis protocol",
	Long: `redis-cli runs commands against a single server.

Without a subcommand it reads commands from stdin, one per line, and prints
each reply.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, logger, err := connect(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		return repl(cmd.Context(), conn, logger, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "config file (.toml, .yaml or .yml)")
	pf.StringVarP(&flagHost, "host", "H", "127.0.0.1", "server host")
	pf.IntVarP(&flagPort, "port", "p", redis.DefaultPort, "server port")
	pf.StringVarP(&flagPassword, "password", "a", "", "password sent with AUTH")
	pf.IntVarP(&flagDB, "db", "n", 0, "database number")
	pf.DurationVar(&flagTimeout, "timeout", 5*time.Second, "connect, send and receive timeout")
	pf.StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// connect builds the connection from the config file and the flags.
// Flags set on the command line win over the config file.
func connect(cmd *cobra.Command) (*redis.Connection, zerolog.Logger, error) {
	cfg := redis.Config{
		Host:           flagHost,
		Port:           flagPort,
		ConnectTimeout: flagTimeout,
		SendTimeout:    flagTimeout,
		ReceiveTimeout: flagTimeout,
	}
	level := flagLogLevel

	if flagConfig != "" {
		if err := loadConfigFile(flagConfig, &cfg, &level); err != nil {
			return nil, zerolog.Logger{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = flagHost
	}
	if flags.Changed("port") {
		cfg.Port = flagPort
	}
	if flags.Changed("password") {
		cfg.Password = flagPassword
	}
	if flags.Changed("db") {
		cfg.DB = flagDB
	}
	if flags.Changed("timeout") {
		cfg.ConnectTimeout = flagTimeout
		cfg.SendTimeout = flagTimeout
		cfg.ReceiveTimeout = flagTimeout
	}
	if flags.Changed("log-level") {
		level = flagLogLevel
	}

	logger, err := newLogger(level, cmd.ErrOrStderr())
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	cfg.Logger = &logger
	cfg.NewCircuitBreaker = redis.NewCircuitBreakerConfig(1, time.Minute, 10*time.Second)

	conn, err := redis.NewConnection(cfg)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	logger.Debug().Str("addr", conn.Addr()).Int("db", cfg.DB).Msg("connection configured")
	return conn, logger, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
