// Package redis is a client for a single key-value server speaking the redis
// protocol over one persistent TCP connection.
//
// A Connection dials lazily, reconnects after failures and restores the
// selected database and the password on the new transport:
//
//	conn, err := redis.NewConnection(redis.Config{Host: "localhost", DB: 2})
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	reply := conn.Do(ctx, "INCR", "visits")
//	if err := conn.Check(reply, "incr"); err != nil {
//	    return err
//	}
//	n, _ := reply.Int()
//
// Do never returns a Go error: failures are replies with an error Kind (see
// package resp). The helpers (Get, Set, Exists, ZRank...) convert replies into
// Go values and errors.
//
// # Pipelining
//
// Between BeginPipeline and EndPipeline, Do queues commands. FlushPipeline
// writes them at once and returns the replies in issue order:
//
//	conn.BeginPipeline()
//	conn.Do(ctx, "SET", "a", "1")
//	conn.Do(ctx, "INCR", "a")
//	replies, err := conn.FlushPipeline(ctx)
//	conn.EndPipeline()
//
// # Streams
//
// Monitor, Sync, Subscribe and PSubscribe hand the connection to a push
// stream. Events are delivered to the handler in arrival order from a
// dedicated goroutine:
//
//	stream, err := conn.Subscribe(ctx, func(ev redis.PubSubEvent) {
//	    fmt.Println(ev.Channel, ev.Payload)
//	}, "news")
//	...
//	conn.Unsubscribe(ctx) // the stream ends with the last subscription
//	err = stream.Wait()
//
// # Server versions
//
// Commands introduced after 2.4 are refused with resp.Unsupported when the
// server is older, without being written. The version comes from INFO and is
// cached per transport.
package redis
