package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// WaitForTCP polls addr until a TCP connection succeeds or ctx expires.
// It is used to observe the moment a launched server has bound its
// listening socket.
func WaitForTCP(ctx context.Context, addr string, pollEvery time.Duration) error {
	dialer := net.Dialer{Timeout: pollEvery}

	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn.Close()
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", addr, ctx.Err())
		case <-time.After(pollEvery):
		}
	}
}

// TailPollUntilIdle copies content from the file at path to out until
// no new output has appeared for idle, polling every pollEvery.
// Cancelling ctx stops the tail early; everything read so far stays
// written.
func TailPollUntilIdle(ctx context.Context, path string, out io.Writer, idle, pollEvery time.Duration) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	reader := bufio.NewReader(f)
	idleSince := time.Now()

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			if _, err := out.Write(line); err != nil {
				return err
			}
			idleSince = time.Now()
		}

		if readErr == nil {
			continue
		}
		if !errors.Is(readErr, io.EOF) {
			return readErr
		}
		if time.Since(idleSince) > idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollEvery):
		}
	}
}
