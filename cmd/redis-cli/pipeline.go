package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pipelineFile string

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Send every command of a file in one write and print the replies",
	Long: `pipeline reads commands, one per line, from --file or stdin.
The commands are written at once and the replies printed in order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if pipelineFile != "" {
			f, err := os.Open(pipelineFile)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		conn, logger, err := connect(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx := cmd.Context()
		if err := conn.BeginPipeline(); err != nil {
			return err
		}

		var commands [][]string
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			args, err := splitLine(scanner.Text())
			if err != nil {
				conn.EndPipeline()
				return err
			}
			if len(args) == 0 {
				continue
			}
			if reply := conn.Do(ctx, args...); !reply.IsPipelined() {
				// refused before reaching the queue
				fmt.Fprintf(cmd.OutOrStdout(), "-) %v\n", args)
				printReply(cmd.OutOrStdout(), reply)
				continue
			}
			commands = append(commands, args)
		}
		if err := scanner.Err(); err != nil {
			conn.EndPipeline()
			return err
		}

		logger.Debug().Int("commands", conn.Queued()).Msg("flushing")
		replies, err := conn.FlushPipeline(ctx)
		if err != nil {
			conn.EndPipeline()
			return err
		}
		if err := conn.EndPipeline(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, reply := range replies {
			fmt.Fprintf(out, "%d) %v\n", i+1, commands[i])
			printReply(out, reply)
		}
		return nil
	},
}

func init() {
	pipelineCmd.Flags().StringVarP(&pipelineFile, "file", "f", "", "file holding the commands, stdin when empty")
	rootCmd.AddCommand(pipelineCmd)
}
