package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pior/redis"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print every command the server runs until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStream(cmd, func(ctx context.Context, conn *redis.Connection) (*redis.Stream, error) {
			out := cmd.OutOrStdout()
			return conn.Monitor(ctx, func(ev redis.TraceEvent) {
				fmt.Fprintln(out, ev)
			})
		})
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <channel>...",
	Short: "Print the messages published on channels until interrupted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStream(cmd, func(ctx context.Context, conn *redis.Connection) (*redis.Stream, error) {
			return conn.Subscribe(ctx, printEvent(cmd), args...)
		})
	},
}

var psubscribeCmd = &cobra.Command{
	Use:   "psubscribe <pattern>...",
	Short: "Print the messages published on channels matching patterns until interrupted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStream(cmd, func(ctx context.Context, conn *redis.Connection) (*redis.Stream, error) {
			return conn.PSubscribe(ctx, printEvent(cmd), args...)
		})
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd, subscribeCmd, psubscribeCmd)
}

func printEvent(cmd *cobra.Command) redis.PubSubHandler {
	out := cmd.OutOrStdout()
	return func(ev redis.PubSubEvent) {
		fmt.Fprintln(out, ev)
	}
}

// runStream starts a stream and waits for it to end or for a signal.
func runStream(cmd *cobra.Command, start func(context.Context, *redis.Connection) (*redis.Stream, error)) error {
	conn, logger, err := connect(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	// streams have no receive deadline, a signal is the way out
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream, err := start(ctx, conn)
	if err != nil {
		return err
	}

	err = stream.Wait()
	stats := conn.Stats()
	logger.Info().Uint64("events", stats.Events).Uint64("errors", stats.Errors).Msg("stream ended")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
