package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/armon/circbuf"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/netresearch/testenv/core/domain"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	attemptTimeout      = 2 * time.Second
	logTailSize         = 4096
)

// WaitTarget is the started container a WaitStrategy checks.
type WaitTarget interface {
	Host() string
	MappedPort(port domain.Port) (int, error)
	Logs(ctx context.Context) (string, error)
}

// WaitStrategy blocks until a service is ready or ctx expires.
type WaitStrategy interface {
	WaitUntilReady(ctx context.Context, target WaitTarget) error
}

// WaitFunc adapts a function to WaitStrategy.
type WaitFunc func(ctx context.Context, target WaitTarget) error

func (f WaitFunc) WaitUntilReady(ctx context.Context, target WaitTarget) error {
	return f(ctx, target)
}

// poll calls check until it succeeds or ctx expires. Calls are paced by a
// token bucket so a fast-failing check does not spin.
func poll(ctx context.Context, interval time.Duration, check func(ctx context.Context) error) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	var lastErr error
	for {
		if err := limiter.Wait(ctx); err != nil {
			return pollError(ctx, lastErr)
		}
		if lastErr = check(ctx); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return pollError(ctx, lastErr)
		}
	}
}

func pollError(ctx context.Context, lastErr error) error {
	cause := ctx.Err()
	if cause == nil {
		// rate.Limiter refuses waits that would pass the deadline.
		cause = context.DeadlineExceeded
	}
	if lastErr != nil {
		return fmt.Errorf("%w (last attempt: %v)", cause, lastErr)
	}
	return cause
}

// PortStrategy waits until a TCP connection to the mapped port succeeds.
type PortStrategy struct {
	Port         domain.Port
	PollInterval time.Duration
}

// ForListeningPort waits for port to accept TCP connections.
func ForListeningPort(port domain.Port) *PortStrategy {
	return &PortStrategy{Port: port}
}

func (s *PortStrategy) WaitUntilReady(ctx context.Context, target WaitTarget) error {
	return poll(ctx, s.PollInterval, func(ctx context.Context) error {
		addr, err := targetAddr(target, s.Port)
		if err != nil {
			return err
		}
		d := net.Dialer{Timeout: attemptTimeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

// HTTPStrategy waits until an HTTP GET on the mapped port answers with the
// expected status.
type HTTPStrategy struct {
	Port         domain.Port
	Path         string
	Status       int
	PollInterval time.Duration
	Client       *http.Client
}

// ForHTTP waits for GET path on port to return 200.
func ForHTTP(port domain.Port, path string) *HTTPStrategy {
	return &HTTPStrategy{Port: port, Path: path, Status: http.StatusOK}
}

// WithStatus sets the expected response status.
func (s *HTTPStrategy) WithStatus(status int) *HTTPStrategy {
	s.Status = status
	return s
}

func (s *HTTPStrategy) WaitUntilReady(ctx context.Context, target WaitTarget) error {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: attemptTimeout}
	}
	path := s.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return poll(ctx, s.PollInterval, func(ctx context.Context) error {
		addr, err := targetAddr(target, s.Port)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+path, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != s.Status {
			return fmt.Errorf("GET %s: status %d, want %d", path, resp.StatusCode, s.Status)
		}
		return nil
	})
}

// LogStrategy waits until the container output matches a pattern a number
// of times.
type LogStrategy struct {
	Pattern      *regexp.Regexp
	Occurrences  int
	PollInterval time.Duration
}

// ForLog waits for pattern to appear once in the container output.
func ForLog(pattern string) *LogStrategy {
	return &LogStrategy{Pattern: regexp.MustCompile(pattern), Occurrences: 1}
}

// WithOccurrence sets how often the pattern must appear.
func (s *LogStrategy) WithOccurrence(n int) *LogStrategy {
	s.Occurrences = n
	return s
}

func (s *LogStrategy) WaitUntilReady(ctx context.Context, target WaitTarget) error {
	want := max(s.Occurrences, 1)
	return poll(ctx, s.PollInterval, func(ctx context.Context) error {
		logs, err := target.Logs(ctx)
		if err != nil {
			return err
		}
		if got := len(s.Pattern.FindAllStringIndex(logs, -1)); got < want {
			return fmt.Errorf("log pattern %q seen %d/%d times", s.Pattern, got, want)
		}
		return nil
	})
}

// SQLStrategy waits until a postgres connection can be opened and pinged.
type SQLStrategy struct {
	Port         domain.Port
	DSN          func(host string, port int) string
	PollInterval time.Duration
}

// ForSQL waits for a successful ping over the DSN built for the mapped port.
func ForSQL(port domain.Port, dsn func(host string, port int) string) *SQLStrategy {
	return &SQLStrategy{Port: port, DSN: dsn}
}

func (s *SQLStrategy) WaitUntilReady(ctx context.Context, target WaitTarget) error {
	return poll(ctx, s.PollInterval, func(ctx context.Context) error {
		mapped, err := target.MappedPort(s.Port)
		if err != nil {
			return err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()

		conn, err := pgx.Connect(attemptCtx, s.DSN(target.Host(), mapped))
		if err != nil {
			return err
		}
		defer conn.Close(context.Background())
		return conn.Ping(attemptCtx)
	})
}

// RedisStrategy waits until the server answers PING.
type RedisStrategy struct {
	Port         domain.Port
	PollInterval time.Duration
}

// ForRedisPing waits for a PONG on port.
func ForRedisPing(port domain.Port) *RedisStrategy {
	return &RedisStrategy{Port: port}
}

func (s *RedisStrategy) WaitUntilReady(ctx context.Context, target WaitTarget) error {
	return poll(ctx, s.PollInterval, func(ctx context.Context) error {
		addr, err := targetAddr(target, s.Port)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:        addr,
			DialTimeout: attemptTimeout,
			ReadTimeout: attemptTimeout,
			MaxRetries:  -1,
		})
		defer rdb.Close()
		return rdb.Ping(ctx).Err()
	})
}

// MultiStrategy runs strategies one after another under the same deadline.
type MultiStrategy struct {
	Strategies []WaitStrategy
}

// ForAll waits for every strategy in order.
func ForAll(strategies ...WaitStrategy) *MultiStrategy {
	return &MultiStrategy{Strategies: strategies}
}

func (s *MultiStrategy) WaitUntilReady(ctx context.Context, target WaitTarget) error {
	for _, strategy := range s.Strategies {
		if err := strategy.WaitUntilReady(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

func targetAddr(target WaitTarget, port domain.Port) (string, error) {
	mapped, err := target.MappedPort(port)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(target.Host(), strconv.Itoa(mapped)), nil
}

// containerTarget is the WaitTarget of a started container.
type containerTarget struct {
	engine      logSource
	containerID string
	host        string
	ports       map[domain.Port]int
}

type logSource interface {
	Logs(ctx context.Context, containerID string, opts domain.LogOptions) (io.ReadCloser, error)
}

func (t *containerTarget) Host() string { return t.host }

func (t *containerTarget) MappedPort(port domain.Port) (int, error) {
	p, ok := t.ports[port]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoPublishedPort, port)
	}
	return p, nil
}

func (t *containerTarget) Logs(ctx context.Context) (string, error) {
	rc, err := t.engine.Logs(ctx, t.containerID, domain.LogOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var sb strings.Builder
	if _, err := io.Copy(&sb, rc); err != nil && !errors.Is(err, io.EOF) {
		return sb.String(), err
	}
	return sb.String(), nil
}

// logTail returns the last bytes of the container output, for diagnostics.
func logTail(ctx context.Context, target WaitTarget) string {
	logs, err := target.Logs(ctx)
	if err != nil && logs == "" {
		return ""
	}
	buf, err := circbuf.NewBuffer(logTailSize)
	if err != nil {
		return ""
	}
	_, _ = buf.Write([]byte(logs))
	return strings.TrimSpace(buf.String())
}
