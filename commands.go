package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pior/redis/resp"
)

// ErrQueued is returned by helpers in pipeline mode: the command was queued
// and its reply comes with FlushPipeline.
var ErrQueued = errors.New("redis: command queued in pipeline")

// result turns a reply into the error returned by helpers.
// Successful replies clear the last error.
func (c *Connection) result(reply resp.Reply, name string) error {
	if reply.IsPipelined() {
		return ErrQueued
	}
	if err := c.Check(reply, "redis: "+strings.ToLower(name)); err != nil {
		return err
	}
	c.ClearLastError()
	return nil
}

// Bool runs a command answering 1/0 or OK.
func (c *Connection) Bool(ctx context.Context, args ...string) (bool, error) {
	reply := c.Do(ctx, args...)
	if err := c.result(reply, commandName(args)); err != nil {
		return false, err
	}
	return replyBool(reply), nil
}

func replyBool(reply resp.Reply) bool {
	switch reply.Type {
	case resp.TypeInteger:
		return reply.Integer == 1
	case resp.TypeStatus:
		return reply.Text == "OK"
	case resp.TypeBulk:
		s := string(reply.Bulk)
		return s == "1" || s == "OK"
	default:
		return false
	}
}

// Int runs a command answering an integer.
func (c *Connection) Int(ctx context.Context, args ...string) (int64, error) {
	reply := c.Do(ctx, args...)
	if err := c.result(reply, commandName(args)); err != nil {
		return 0, err
	}
	n, ok := reply.Int()
	if !ok {
		c.lastError = "not a number: " + reply.String()
		return 0, fmt.Errorf("redis: %s: not a number: %q", strings.ToLower(commandName(args)), reply.String())
	}
	return n, nil
}

// Strings runs a command answering an array.
// Nested arrays are flattened when Config.LegacyFlatten is set, rejected otherwise.
func (c *Connection) Strings(ctx context.Context, args ...string) ([]string, error) {
	reply := c.Do(ctx, args...)
	if err := c.result(reply, commandName(args)); err != nil {
		return nil, err
	}
	if c.cfg.LegacyFlatten {
		return reply.FlatStrings(), nil
	}
	return reply.Strings()
}

// Ping checks the server answers.
func (c *Connection) Ping(ctx context.Context) error {
	return c.result(c.Do(ctx, "PING"), "PING")
}

// Echo returns message as echoed by the server.
func (c *Connection) Echo(ctx context.Context, message string) (string, error) {
	reply := c.Do(ctx, "ECHO", message)
	if err := c.result(reply, "ECHO"); err != nil {
		return "", err
	}
	return reply.String(), nil
}

// Auth authenticates and remembers the password for later reconnections.
func (c *Connection) Auth(ctx context.Context, password string) error {
	return c.result(c.Do(ctx, CmdAuth, password), CmdAuth)
}

// Select changes the database. The choice survives reconnections.
func (c *Connection) Select(ctx context.Context, db int) error {
	if db < 0 || db > MaxDB {
		return fmt.Errorf("%w: %d", ErrInvalidDB, db)
	}
	return c.result(c.Do(ctx, CmdSelect, strconv.Itoa(db)), CmdSelect)
}

// Get returns the value of key. found is false when the key does not exist.
func (c *Connection) Get(ctx context.Context, key string) (value string, found bool, err error) {
	reply := c.Do(ctx, "GET", key)
	if err := c.result(reply, "GET"); err != nil {
		return "", false, err
	}
	if reply.IsNil() {
		return "", false, nil
	}
	return reply.String(), true, nil
}

// Set stores value at key.
func (c *Connection) Set(ctx context.Context, key, value string) error {
	return c.result(c.Do(ctx, "SET", key, value), "SET")
}

// Del removes keys and returns how many existed.
func (c *Connection) Del(ctx context.Context, keys ...string) (int64, error) {
	return c.Int(ctx, append([]string{"DEL"}, keys...)...)
}

// Exists returns true when key exists.
func (c *Connection) Exists(ctx context.Context, key string) (bool, error) {
	return c.Bool(ctx, "EXISTS", key)
}

// Publish posts message on channel and returns how many subscribers got it.
func (c *Connection) Publish(ctx context.Context, channel, message string) (int64, error) {
	return c.Int(ctx, "PUBLISH", channel, message)
}

// LPush prepends values to the list at key and returns the list length.
// Servers older than 2.4 get one command per value.
func (c *Connection) LPush(ctx context.Context, key string, values ...string) (int64, error) {
	return c.push(ctx, "LPUSH", key, values)
}

// RPush appends values to the list at key and returns the list length.
// Servers older than 2.4 get one command per value.
func (c *Connection) RPush(ctx context.Context, key string, values ...string) (int64, error) {
	return c.push(ctx, "RPUSH", key, values)
}

func (c *Connection) push(ctx context.Context, cmd, key string, values []string) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("redis: %s needs at least one value", strings.ToLower(cmd))
	}

	variadic := len(values) == 1 || c.pipelining
	if !variadic {
		version, err := c.ServerVersion(ctx)
		if err != nil {
			return 0, err
		}
		variadic = version == VersionUnknown || version >= Version24
	}

	if variadic {
		return c.Int(ctx, append([]string{cmd, key}, values...)...)
	}

	var length int64
	for _, value := range values {
		n, err := c.Int(ctx, cmd, key, value)
		if err != nil {
			return 0, err
		}
		length = n
	}
	return length, nil
}

// ZRank returns the rank of member in the sorted set at key, lowest score first.
// found is false when the member or the key does not exist.
func (c *Connection) ZRank(ctx context.Context, key, member string) (rank int64, found bool, err error) {
	return c.rank(ctx, "ZRANK", key, member)
}

// ZRevRank returns the rank of member in the sorted set at key, highest score first.
// found is false when the member or the key does not exist.
func (c *Connection) ZRevRank(ctx context.Context, key, member string) (rank int64, found bool, err error) {
	return c.rank(ctx, "ZREVRANK", key, member)
}

func (c *Connection) rank(ctx context.Context, cmd, key, member string) (int64, bool, error) {
	reply := c.Do(ctx, cmd, key, member)
	if err := c.result(reply, cmd); err != nil {
		return 0, false, err
	}
	if reply.IsNil() {
		return 0, false, nil
	}
	n, ok := reply.Int()
	if !ok {
		return 0, false, fmt.Errorf("redis: %s: not a number: %q", strings.ToLower(cmd), reply.String())
	}
	return n, true, nil
}

// SRandMember returns random members of the set at key.
//
//   - count == 0: one member
//   - count > 0: up to count distinct members
//   - count < 0: -count members, possibly repeated
//
// Servers older than 2.6 do not accept a count: the members are sampled with
// one SRANDMEMBER per draw. The result is empty for a missing key.
func (c *Connection) SRandMember(ctx context.Context, key string, count int) ([]string, error) {
	if count != 0 {
		version, err := c.ServerVersion(ctx)
		if err != nil {
			return nil, err
		}
		if version == VersionUnknown || version >= Version26 {
			members, err := c.Strings(ctx, "SRANDMEMBER", key, strconv.Itoa(count))
			if err != nil {
				return nil, err
			}
			if members == nil {
				members = []string{}
			}
			return members, nil
		}
	}

	switch {
	case count == 0:
		return c.sampleMembers(ctx, key, 1)
	case count < 0:
		return c.sampleMembers(ctx, key, -count)
	default:
		return c.distinctMembers(ctx, key, count)
	}
}

// sampleMembers draws n independent random members.
func (c *Connection) sampleMembers(ctx context.Context, key string, n int) ([]string, error) {
	members := make([]string, 0, n)
	for range n {
		member, found, err := c.randMember(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		members = append(members, member)
	}
	return members, nil
}

// distinctMembers draws random members until count distinct ones are found
// or the whole set was returned.
func (c *Connection) distinctMembers(ctx context.Context, key string, count int) ([]string, error) {
	size, err := c.Int(ctx, "SCARD", key)
	if err != nil {
		return nil, err
	}
	if int64(count) >= size {
		members, err := c.Strings(ctx, "SMEMBERS", key)
		if err != nil {
			return nil, err
		}
		if members == nil {
			members = []string{}
		}
		return members, nil
	}

	seen := make(map[string]struct{}, count)
	members := make([]string, 0, count)
	// the set may shrink between draws
	for attempts := 0; len(members) < count && attempts < count*16; attempts++ {
		member, found, err := c.randMember(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		if _, dup := seen[member]; dup {
			continue
		}
		seen[member] = struct{}{}
		members = append(members, member)
	}
	return members, nil
}

func (c *Connection) randMember(ctx context.Context, key string) (string, bool, error) {
	reply := c.Do(ctx, "SRANDMEMBER", key)
	if err := c.result(reply, "SRANDMEMBER"); err != nil {
		return "", false, err
	}
	if reply.IsNil() {
		return "", false, nil
	}
	return reply.String(), true, nil
}

// Dump returns the serialized value of key. Needs a 2.6 server.
func (c *Connection) Dump(ctx context.Context, key string) (value []byte, found bool, err error) {
	reply := c.Do(ctx, "DUMP", key)
	if err := c.result(reply, "DUMP"); err != nil {
		return nil, false, err
	}
	if reply.IsNil() {
		return nil, false, nil
	}
	return reply.Bulk, true, nil
}

// Time returns the server clock. Needs a 2.6 server.
func (c *Connection) Time(ctx context.Context) (time.Time, error) {
	reply := c.Do(ctx, "TIME")
	if err := c.result(reply, "TIME"); err != nil {
		return time.Time{}, err
	}

	parts, err := reply.Strings()
	if err != nil || len(parts) != 2 {
		return time.Time{}, fmt.Errorf("redis: time: unexpected reply %v", reply.FlatStrings())
	}
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: time: %w", err)
	}
	usec, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: time: %w", err)
	}
	return time.Unix(sec, usec*int64(time.Microsecond)), nil
}

// Shutdown stops the server. option is "", "SAVE" or "NOSAVE", the options
// need a 2.6 server. The server closes the connection when it complies.
func (c *Connection) Shutdown(ctx context.Context, option string) error {
	args := []string{CmdShutdown}
	if option != "" {
		args = append(args, strings.ToUpper(option))
	}

	reply := c.Do(ctx, args...)
	if reply.Kind == resp.NoAnswerReceived {
		c.ClearLastError()
		return nil
	}
	return c.result(reply, CmdShutdown)
}

// DebugSegfault crashes the server. It always returns an error, of kind
// resp.ServerDown once the command was written.
func (c *Connection) DebugSegfault(ctx context.Context) error {
	return c.Check(c.Do(ctx, CmdDebug, CmdSegfault), "redis: debug segfault")
}

func commandName(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.ToUpper(args[0])
}
