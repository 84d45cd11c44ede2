package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pior/redis/resp"
)

// minVersions lists the commands introduced after the oldest supported server.
var minVersions = map[string]int{
	"DUMP":         Version26,
	"RESTORE":      Version26,
	"MIGRATE":      Version26,
	"PEXPIRE":      Version26,
	"PEXPIREAT":    Version26,
	"PTTL":         Version26,
	"PSETEX":       Version26,
	"BITCOUNT":     Version26,
	"BITOP":        Version26,
	"INCRBYFLOAT":  Version26,
	"HINCRBYFLOAT": Version26,
	"EVAL":         Version26,
	"EVALSHA":      Version26,
	"SCRIPT":       Version26,
	"TIME":         Version26,
}

// CommandMinVersion returns the server version a command needs, 0 when any
// version supports it. SHUTDOWN needs 2.6 only with a SAVE/NOSAVE option.
func CommandMinVersion(args ...string) int {
	if len(args) == 0 {
		return 0
	}
	name := strings.ToUpper(args[0])
	if v, ok := minVersions[name]; ok {
		return v
	}
	if name == CmdShutdown && len(args) > 1 {
		return Version26
	}
	return 0
}

// ServerVersion returns the server version as major*100+minor.
// The first call issues INFO, the result is cached until the next connection.
func (c *Connection) ServerVersion(ctx context.Context) (int, error) {
	if c.version != VersionUnknown {
		return c.version, nil
	}
	if c.pipelining {
		return VersionUnknown, ErrPipelining
	}
	if _, err := c.Info(ctx); err != nil {
		return VersionUnknown, err
	}
	return c.version, nil
}

// ServerVersionText returns the version string reported by the server,
// empty until INFO ran on the current connection.
func (c *Connection) ServerVersionText() string {
	return c.versionText
}

// SentinelMode returns true when the server reported running as a sentinel.
func (c *Connection) SentinelMode() bool {
	return c.sentinel
}

// DoMinVersion runs a command only when the server is at least minVersion.
// Older servers get an Unsupported reply and nothing is written.
func (c *Connection) DoMinVersion(ctx context.Context, minVersion int, args ...string) resp.Reply {
	if len(args) == 0 {
		return c.fail(resp.UnknownError, ErrEmptyCommand.Error())
	}
	if reply, ok := c.gateVersion(ctx, minVersion, args[0]); !ok {
		return reply
	}
	return c.Do(ctx, args...)
}

// gate applies the minimum version table to a command.
func (c *Connection) gate(ctx context.Context, args []string) (resp.Reply, bool) {
	minVersion := CommandMinVersion(args...)
	if minVersion == 0 {
		return resp.Reply{}, true
	}
	return c.gateVersion(ctx, minVersion, args[0])
}

// gateVersion refuses a command when the server is known to be older than
// minVersion. In pipeline mode the version is not fetched: an unknown version
// lets the command through.
func (c *Connection) gateVersion(ctx context.Context, minVersion int, name string) (resp.Reply, bool) {
	version := c.version
	if version == VersionUnknown && !c.pipelining {
		var err error
		version, err = c.ServerVersion(ctx)
		if err != nil {
			return c.fail(resp.KindOf(err), err.Error()), false
		}
	}

	if version != VersionUnknown && version < minVersion {
		c.stats.recordUnsupported()
		msg := fmt.Sprintf("%s requires server %s, connected to %s", strings.ToUpper(name), FormatVersion(minVersion), c.versionText)
		return c.fail(resp.Unsupported, msg), false
	}
	return resp.Reply{}, true
}

// Info runs INFO and returns its key:value fields.
// The server version and mode are cached on the connection.
func (c *Connection) Info(ctx context.Context, section ...string) (map[string]string, error) {
	reply := c.Do(ctx, append([]string{CmdInfo}, section...)...)
	if reply.IsPipelined() {
		return nil, ErrPipelining
	}
	if err := c.Check(reply, "info"); err != nil {
		return nil, err
	}
	return parseInfo(reply.String()), nil
}

func (c *Connection) cacheInfo(fields map[string]string) {
	if v, ok := fields[infoVersion]; ok {
		c.versionText = v
		c.version = ParseVersion(v)
	}
	if mode, ok := fields[infoMode]; ok {
		c.sentinel = mode == modeSentinel
	}
}

// parseInfo reads the "key:value" lines of an INFO reply.
// Section headers and blank lines are skipped.
func parseInfo(text string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[key] = value
	}
	return fields
}

// ParseVersion reduces a "major.minor.patch" version string to major*100+minor.
// It returns VersionUnknown when the string cannot be parsed.
func ParseVersion(text string) int {
	parts := strings.SplitN(text, ".", 3)
	if len(parts) < 2 {
		return VersionUnknown
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return VersionUnknown
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil || minor < 0 || minor > 99 {
		return VersionUnknown
	}
	return major*100 + minor
}

// FormatVersion renders an encoded version as "major.minor".
func FormatVersion(version int) string {
	if version < 0 {
		return "unknown"
	}
	return strconv.Itoa(version/100) + "." + strconv.Itoa(version%100)
}
