// Package childproc implements the Transport contract by spawning a child
// process and exchanging newline-delimited JSON-RPC over its stdin/stdout,
// the same framing pkg/transport/stdio uses for the parent process's own
// standard streams. The child is the requesting side: each line it writes
// to stdout is dispatched through the Dispatcher, and the response is
// written to its stdin.
package childproc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gomcp/internal/logging"
	"github.com/fyrsmithlabs/gomcp/pkg/transport"
)

const maxLineSize = 10 * 1024 * 1024

// Transport spawns Command with Args and speaks newline-delimited
// JSON-RPC over its stdin/stdout.
type Transport struct {
	transport.StateHolder

	command string
	args    []string

	mu   sync.Mutex
	proc *exec.Cmd
}

// Config configures a Transport.
type Config struct {
	Command string
	Args    []string
}

// New constructs a childproc Transport.
func New(cfg Config) *Transport {
	return &Transport{command: cfg.Command, args: cfg.Args}
}

func (t *Transport) Name() string { return "childproc" }

// Start launches the child process and serves requests over its pipes
// until ctx is cancelled, the process exits, or Stop is called.
func (t *Transport) Start(ctx context.Context, d transport.Dispatcher) error {
	logger := logging.FromContext(ctx)

	cmd := exec.CommandContext(ctx, t.command, t.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("childproc: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("childproc: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("childproc: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("childproc: start %s: %w", t.command, err)
	}

	t.mu.Lock()
	t.proc = cmd
	t.mu.Unlock()

	t.Set(transport.StateConnected)
	defer t.Set(transport.StateClosed)

	// Child stderr is forwarded to the parent's own log stream at WARN: it
	// is diagnostic output from the child, not a protocol message, and
	// must never be interleaved with the stdout JSON-RPC stream.
	go forwardStderr(ctx, stderr, logger)

	var writeMu sync.Mutex
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return waitForExit(cmd)
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		out, ok, err := transport.DecodeAndDispatch(ctx, line, d)
		if err != nil {
			logger.Warn(ctx, "childproc failed to handle message", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		writeMu.Lock()
		_, writeErr := stdin.Write(append(out, '\n'))
		writeMu.Unlock()
		if writeErr != nil {
			return fmt.Errorf("childproc: write to child stdin: %w", writeErr)
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return waitForExit(cmd)
}

func waitForExit(cmd *exec.Cmd) error {
	if err := cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil
		}
		return err
	}
	return nil
}

func forwardStderr(ctx context.Context, stderr io.Reader, logger *logging.Logger) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		logger.Warn(ctx, "childproc stderr", zap.String("line", scanner.Text()))
	}
}

// Stop kills the child process at once with os.Process.Kill; it sends no
// gentler signal first.
func (t *Transport) Stop(ctx context.Context) error {
	defer t.Set(transport.StateClosed)
	t.mu.Lock()
	proc := t.proc
	t.mu.Unlock()
	if proc == nil || proc.Process == nil {
		return nil
	}
	return proc.Process.Kill()
}
