package utils

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTailPollUntilIdleCopiesAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	if err := os.WriteFile(path, []byte("one\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("two\n")
	}()

	var buf bytes.Buffer
	err := TailPollUntilIdle(context.Background(), path, &buf, 150*time.Millisecond, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if got := buf.String(); got != "one\ntwo\n" {
		t.Errorf("tail copied %q, want %q", got, "one\ntwo\n")
	}
}

func TestTailPollUntilIdleStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	if err := os.WriteFile(path, []byte("only\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	err := TailPollUntilIdle(ctx, path, &buf, 10*time.Second, 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if got := buf.String(); got != "only\n" {
		t.Errorf("tail copied %q, want %q", got, "only\n")
	}
}

func TestTailPollUntilIdleMissingFile(t *testing.T) {
	err := TailPollUntilIdle(context.Background(), filepath.Join(t.TempDir(), "absent.log"), &bytes.Buffer{}, time.Millisecond, time.Millisecond)
	if err == nil {
		t.Fatal("tail of a missing file succeeded")
	}
}

func TestNewUUID7Ordered(t *testing.T) {
	first, err := NewUUID7()
	if err != nil {
		t.Fatalf("first id: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := NewUUID7()
	if err != nil {
		t.Fatalf("second id: %v", err)
	}
	if !(first < second) {
		t.Errorf("ids not time-ordered: %s then %s", first, second)
	}
}
