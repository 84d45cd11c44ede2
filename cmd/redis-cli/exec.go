package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pior/redis"
	"github.com/pior/redis/resp"
)

var execCmd = &cobra.Command{
	Use:   "exec <command> [args...]",
	Short: "Run one command and print its reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, _, err := connect(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		reply := conn.Do(cmd.Context(), args...)
		printReply(cmd.OutOrStdout(), reply)
		return conn.Check(reply, strings.ToLower(args[0]))
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the server version and mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, _, err := connect(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		version, err := conn.ServerVersion(cmd.Context())
		if err != nil {
			return err
		}
		mode := "standalone"
		if conn.SentinelMode() {
			mode = "sentinel"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "server %s (%s), mode %s\n", conn.ServerVersionText(), redis.FormatVersion(version), mode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(execCmd, infoCmd)
}

// repl runs the commands read from in, one per line, until EOF or "quit".
func repl(ctx context.Context, conn *redis.Connection, logger zerolog.Logger, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		args, err := splitLine(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "(error) %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if name := strings.ToLower(args[0]); name == "quit" || name == "exit" {
			return nil
		}

		reply := conn.Do(ctx, args...)
		printReply(out, reply)
		if resp.ShouldCloseConnection(reply.Err()) {
			logger.Warn().Str("command", conn.LastCommand()).Msg(conn.LastError())
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return scanner.Err()
}
