package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gomcp/internal/logging"
)

// ServeListener runs the accept loop shared by the TCP and Unix domain
// socket transports: each accepted connection is framed as newline-
// delimited JSON-RPC messages and served concurrently, until ctx is
// cancelled or ln is closed.
//
// name identifies the calling transport in log lines ("tcp", "unixsock").
func ServeListener(ctx context.Context, ln net.Listener, d Dispatcher, name string) error {
	logger := logging.FromContext(ctx)
	logger.Info(ctx, "listener accepting connections", zap.String("transport", name), zap.String("addr", ln.Addr().String()))

	var wg sync.WaitGroup
	defer wg.Wait()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(ctx, conn, d, name, logger)
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, d Dispatcher, name string, logger *logging.Logger) {
	defer conn.Close()
	// Closing conn on cancellation unblocks a pending Scan, so the
	// connection ends and ServeListener's wait for it returns.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var writeMu sync.Mutex
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxConnLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		out, ok, err := DecodeAndDispatch(ctx, line, d)
		if err != nil {
			logger.Warn(ctx, "connection failed to handle message", zap.String("transport", name), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		writeMu.Lock()
		_, writeErr := conn.Write(append(out, '\n'))
		writeMu.Unlock()
		if writeErr != nil {
			logger.Warn(ctx, "connection write failed", zap.String("transport", name), zap.Error(writeErr))
			return
		}
	}
}

const maxConnLineSize = 10 * 1024 * 1024
