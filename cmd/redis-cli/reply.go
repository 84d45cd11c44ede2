package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pior/redis/resp"
)

// printReply writes reply the way the reference command line client does:
// quoted bulks, typed integers and numbered array elements.
func printReply(w io.Writer, reply resp.Reply) {
	writeReply(w, reply, "")
}

func writeReply(w io.Writer, reply resp.Reply, indent string) {
	switch reply.Type {
	case resp.TypeError:
		if reply.Kind == resp.ServerError {
			fmt.Fprintf(w, "(error) %s\n", reply.Message)
		} else {
			fmt.Fprintf(w, "(error) %s: %s\n", reply.Kind, reply.Message)
		}
	case resp.TypeStatus:
		fmt.Fprintln(w, reply.Text)
	case resp.TypeInteger:
		fmt.Fprintf(w, "(integer) %d\n", reply.Integer)
	case resp.TypeBulk:
		if reply.IsNil() {
			fmt.Fprintln(w, "(nil)")
			return
		}
		fmt.Fprintln(w, strconv.Quote(string(reply.Bulk)))
	case resp.TypeArray:
		switch {
		case reply.IsNil():
			fmt.Fprintln(w, "(nil)")
		case len(reply.Array) == 0:
			fmt.Fprintln(w, "(empty array)")
		default:
			width := len(strconv.Itoa(len(reply.Array)))
			for i, elem := range reply.Array {
				prefix := fmt.Sprintf("%*d) ", width, i+1)
				if i > 0 {
					fmt.Fprint(w, indent)
				}
				fmt.Fprint(w, prefix)
				writeReply(w, elem, indent+strings.Repeat(" ", len(prefix)))
			}
		}
	case resp.TypePipelined:
		fmt.Fprintln(w, "QUEUED")
	}
}

// splitLine splits a command line on spaces. Double quoted arguments may
// contain spaces and the usual backslash escapes.
func splitLine(line string) ([]string, error) {
	var args []string
	rest := strings.TrimSpace(line)

	for rest != "" {
		if rest[0] == '"' {
			prefix, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("unbalanced quotes in %q", line)
			}
			arg, err := strconv.Unquote(prefix)
			if err != nil {
				return nil, fmt.Errorf("invalid quoted argument %s: %w", prefix, err)
			}
			args = append(args, arg)
			rest = strings.TrimLeft(rest[len(prefix):], " \t")
			continue
		}

		end := strings.IndexAny(rest, " \t")
		if end == -1 {
			end = len(rest)
		}
		args = append(args, rest[:end])
		rest = strings.TrimLeft(rest[end:], " \t")
	}
	return args, nil
}
