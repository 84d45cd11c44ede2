package redis

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pior/redis/resp"
)

// TraceEvent is one line of a MONITOR or SYNC stream.
//
// A monitor line looks like:
//
//	+1339518083.107412 [0 127.0.0.1:60866] "keys" "*"
type TraceEvent struct {
	// Time is the server timestamp, in local time. Zero when absent.
	Time time.Time

	// DB is the database the command ran against, -1 when absent.
	DB int

	// Address and Port identify the client that ran the command.
	// Port is 0 when absent or not numeric (lua, unix sockets).
	Address string
	Port    int

	// Command is the quoted command and its arguments, or the whole line
	// for markers.
	Command string

	// Marker is set for lines without a status sigil, passed through verbatim.
	Marker bool
}

// ParseTraceEvent parses one line of a trace stream, CR/LF removed.
func ParseTraceEvent(line string) TraceEvent {
	ev := TraceEvent{DB: -1}

	switch {
	case strings.TrimSpace(line) == "":
		return ev
	case line[0] != resp.SigilStatus:
		ev.Command = line
		ev.Marker = true
		return ev
	case strings.IndexByte(line, ' ') == -1:
		// a bare status, like the +OK acknowledging MONITOR
		ev.Command = line[1:]
		return ev
	}

	tokens := strings.Split(line, " ")
	used := make([]bool, len(tokens))

	if ts, ok := parseTimestamp(tokens[0]); ok {
		ev.Time = ts
		used[0] = true
	}

	if strings.HasPrefix(tokens[1], "[") {
		inner := strings.Trim(tokens[1], "[]")
		if db, err := strconv.Atoi(inner); err == nil {
			ev.DB = db
		} else {
			ev.Address = inner
		}
		used[1] = true
	}

	if len(tokens) > 3 && strings.HasSuffix(tokens[2], "]") {
		ev.Address = strings.Trim(tokens[2], "[]")
		used[2] = true
	}

	if i := strings.LastIndexByte(ev.Address, ':'); i != -1 {
		if port, err := strconv.Atoi(ev.Address[i+1:]); err == nil {
			ev.Port = port
			ev.Address = ev.Address[:i]
		}
	}

	rest := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if !used[i] {
			rest = append(rest, tok)
		}
	}
	ev.Command = strings.TrimSpace(strings.Join(rest, " "))
	return ev
}

// parseTimestamp reads "+seconds.micros" into a local time.
func parseTimestamp(token string) (time.Time, bool) {
	f, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)), true
}

func (e TraceEvent) String() string {
	switch {
	case e.Time.IsZero():
		return e.Command
	case e.Address == "":
		return e.Time.Format(time.DateTime) + " : " + e.Command
	default:
		return e.Time.Format(time.DateTime) + " - " + e.Address + " - " + e.Command
	}
}

// PubSubEvent is one frame of a publish/subscribe stream.
type PubSubEvent struct {
	// Kind is subscribe, psubscribe, unsubscribe, punsubscribe, message or
	// pmessage. Empty for frames of an unexpected shape.
	Kind string

	// Pattern is set for pmessage events.
	Pattern string

	Channel string

	// Payload is the message, or the subscription count for acks.
	// For frames of an unexpected shape it holds all elements joined by ", ".
	Payload string

	// Count is the number of active subscriptions reported by an ack,
	// -1 for other events.
	Count int
}

// ParsePubSubEvent converts a decoded push frame into an event.
//
// Three elements are [kind, channel, payload], four elements are
// [kind, pattern, channel, payload].
func ParsePubSubEvent(reply resp.Reply) PubSubEvent {
	var elems []string
	if reply.Type == resp.TypeArray {
		elems = reply.FlatStrings()
	} else {
		elems = []string{reply.String()}
	}

	ev := PubSubEvent{Count: -1}
	switch len(elems) {
	case 3:
		ev.Kind, ev.Channel, ev.Payload = elems[0], elems[1], elems[2]
	case 4:
		ev.Kind, ev.Pattern, ev.Channel, ev.Payload = elems[0], elems[1], elems[2], elems[3]
	default:
		ev.Payload = strings.Join(elems, ", ")
		return ev
	}

	if ev.isAck() {
		if n, err := strconv.Atoi(ev.Payload); err == nil {
			ev.Count = n
		}
	}
	return ev
}

func (e PubSubEvent) isAck() bool {
	switch e.Kind {
	case EventSubscribe, EventPSubscribe, EventUnsubscribe, EventPUnsubscribe:
		return true
	default:
		return false
	}
}

// Terminates returns true for the unsubscribe ack leaving no subscription:
// the server is back to normal mode after it.
func (e PubSubEvent) Terminates() bool {
	return (e.Kind == EventUnsubscribe || e.Kind == EventPUnsubscribe) && e.Payload == "0"
}

func (e PubSubEvent) String() string {
	switch {
	case e.Kind == "":
		return e.Payload
	case e.Pattern != "":
		return e.Kind + " " + e.Pattern + " " + e.Channel + ": " + e.Payload
	default:
		return e.Kind + " " + e.Channel + ": " + e.Payload
	}
}
