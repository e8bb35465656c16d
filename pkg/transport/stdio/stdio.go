// Package stdio implements the Transport contract over the process's own
// stdin/stdout: one newline-delimited JSON-RPC message per line, the same
// framing every MCP stdio client speaks.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gomcp/internal/logging"
	"github.com/fyrsmithlabs/gomcp/pkg/transport"
)

const maxLineSize = 10 * 1024 * 1024

// Transport serves JSON-RPC over stdin/stdout.
type Transport struct {
	transport.StateHolder

	in  io.Reader
	out io.Writer

	writeMu sync.Mutex
}

// Config configures a Transport. In/Out default to os.Stdin/os.Stdout when
// left nil -- tests supply in-memory readers/writers instead.
type Config struct {
	In  io.Reader
	Out io.Writer
}

// New constructs a stdio Transport.
func New(cfg Config) *Transport {
	in, out := cfg.In, cfg.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Transport{in: in, out: out}
}

func (t *Transport) Name() string { return "stdio" }

// Start scans stdin line by line, dispatching each decoded message and
// writing its response (if any) back to stdout. Returns nil on a clean
// EOF or context cancellation.
func (t *Transport) Start(ctx context.Context, d transport.Dispatcher) error {
	t.Set(transport.StateConnected)
	defer t.Set(transport.StateClosed)

	logger := logging.FromContext(ctx)
	logger.Info(ctx, "stdio transport starting")

	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			cp := make([]byte, len(line))
			copy(cp, line)
			select {
			case lines <- cp:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "stdio transport shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if err := t.handleLine(ctx, d, line); err != nil {
				logger.Warn(ctx, "stdio transport failed to handle message", zap.Error(err))
			}
		}
	}
}

func (t *Transport) handleLine(ctx context.Context, d transport.Dispatcher, line []byte) error {
	out, ok, err := transport.DecodeAndDispatch(ctx, line, d)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return t.writeLine(out)
}

func (t *Transport) writeLine(out []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.out.Write(out); err != nil {
		return fmt.Errorf("stdio: write response: %w", err)
	}
	_, err := t.out.Write([]byte("\n"))
	return err
}

// Stop is a no-op beyond marking the transport closed: Start already
// returns as soon as ctx is cancelled, and stdin/stdout have no connection
// to tear down the way a socket does.
func (t *Transport) Stop(ctx context.Context) error {
	t.Set(transport.StateClosed)
	return nil
}
