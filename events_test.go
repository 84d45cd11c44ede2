package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pior/redis/resp"
)

func TestParseTraceEvent(t *testing.T) {
	ts := time.Unix(1339518083, 107412000)

	tests := []struct {
		name string
		line string
		want TraceEvent
	}{
		{
			name: "monitor line",
			line: `+1339518083.107412 [0 127.0.0.1:60866] "keys" "*"`,
			want: TraceEvent{Time: ts, DB: 0, Address: "127.0.0.1", Port: 60866, Command: `"keys" "*"`},
		},
		{
			name: "monitor line with db",
			line: `+1339518083.107412 [12 10.0.0.1:6000] "get" "k"`,
			want: TraceEvent{Time: ts, DB: 12, Address: "10.0.0.1", Port: 6000, Command: `"get" "k"`},
		},
		{
			name: "without client",
			line: `+1339518083.107412 "keys" "*"`,
			want: TraceEvent{Time: ts, DB: -1, Command: `"keys" "*"`},
		},
		{
			name: "client without db",
			line: `+1339518083.107412 [127.0.0.1:60866] "get" "k"`,
			want: TraceEvent{Time: ts, DB: -1, Address: "127.0.0.1", Port: 60866, Command: `"get" "k"`},
		},
		{
			name: "lua client",
			line: `+1339518083.107412 [0 lua] "get" "k"`,
			want: TraceEvent{Time: ts, DB: 0, Address: "lua", Command: `"get" "k"`},
		},
		{
			name: "unix socket client",
			line: `+1339518083.107412 [0 unix:/tmp/redis.sock] "ping"`,
			want: TraceEvent{Time: ts, DB: 0, Address: "unix:/tmp/redis.sock", Command: `"ping"`},
		},
		{
			name: "bare status",
			line: "+OK",
			want: TraceEvent{DB: -1, Command: "OK"},
		},
		{
			name: "marker",
			line: "$1234",
			want: TraceEvent{DB: -1, Command: "$1234", Marker: true},
		},
		{
			name: "empty",
			line: "",
			want: TraceEvent{DB: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTraceEvent(tt.line)

			assert.True(t, tt.want.Time.Equal(got.Time), "time: want %v, got %v", tt.want.Time, got.Time)
			got.Time = tt.want.Time
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTraceEvent_String(t *testing.T) {
	ts := time.Unix(1339518083, 107412000)

	assert.Equal(t, "$1234", TraceEvent{DB: -1, Command: "$1234", Marker: true}.String())
	assert.Equal(t, ts.Format(time.DateTime)+` : "ping"`, TraceEvent{Time: ts, DB: -1, Command: `"ping"`}.String())
	assert.Equal(t,
		ts.Format(time.DateTime)+` - 127.0.0.1 - "ping"`,
		TraceEvent{Time: ts, DB: 0, Address: "127.0.0.1", Port: 1234, Command: `"ping"`}.String(),
	)
}

func bulks(values ...string) resp.Reply {
	elems := make([]resp.Reply, len(values))
	for i, v := range values {
		elems[i] = resp.BulkReply([]byte(v))
	}
	return resp.ArrayReply(elems)
}

func TestParsePubSubEvent(t *testing.T) {
	tests := []struct {
		name string
		in   resp.Reply
		want PubSubEvent
	}{
		{
			name: "message",
			in:   bulks("message", "news", "hello"),
			want: PubSubEvent{Kind: EventMessage, Channel: "news", Payload: "hello", Count: -1},
		},
		{
			name: "pmessage",
			in:   bulks("pmessage", "news.*", "news.tech", "hello"),
			want: PubSubEvent{Kind: EventPMessage, Pattern: "news.*", Channel: "news.tech", Payload: "hello", Count: -1},
		},
		{
			name: "subscribe ack",
			in: resp.ArrayReply([]resp.Reply{
				resp.BulkReply([]byte("subscribe")),
				resp.BulkReply([]byte("news")),
				resp.IntegerReply(2),
			}),
			want: PubSubEvent{Kind: EventSubscribe, Channel: "news", Payload: "2", Count: 2},
		},
		{
			name: "unsubscribe all without subscription",
			in: resp.ArrayReply([]resp.Reply{
				resp.BulkReply([]byte("unsubscribe")),
				resp.NilBulk(),
				resp.IntegerReply(0),
			}),
			want: PubSubEvent{Kind: EventUnsubscribe, Payload: "0", Count: 0},
		},
		{
			name: "unexpected shape",
			in:   bulks("foo", "bar"),
			want: PubSubEvent{Payload: "foo, bar", Count: -1},
		},
		{
			name: "server error",
			in:   resp.ErrorReply(resp.ServerError, "wrong kind of value"),
			want: PubSubEvent{Payload: "wrong kind of value", Count: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePubSubEvent(tt.in))
		})
	}
}

func TestPubSubEvent_Terminates(t *testing.T) {
	tests := []struct {
		event PubSubEvent
		want  bool
	}{
		{PubSubEvent{Kind: EventUnsubscribe, Channel: "a", Payload: "0", Count: 0}, true},
		{PubSubEvent{Kind: EventPUnsubscribe, Channel: "a.*", Payload: "0", Count: 0}, true},
		{PubSubEvent{Kind: EventUnsubscribe, Channel: "a", Payload: "2", Count: 2}, false},
		{PubSubEvent{Kind: EventSubscribe, Channel: "a", Payload: "0", Count: 0}, false},
		{PubSubEvent{Kind: EventMessage, Channel: "a", Payload: "0", Count: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.event.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Terminates())
		})
	}
}

func TestPubSubEvent_String(t *testing.T) {
	assert.Equal(t, "message news: hello", PubSubEvent{Kind: EventMessage, Channel: "news", Payload: "hello"}.String())
	assert.Equal(t, "pmessage n.* n.a: hi", PubSubEvent{Kind: EventPMessage, Pattern: "n.*", Channel: "n.a", Payload: "hi"}.String())
	assert.Equal(t, "foo, bar", PubSubEvent{Payload: "foo, bar"}.String())
}
