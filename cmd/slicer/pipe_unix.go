//go:build unix

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// ensureFIFO creates a named pipe at path unless one already exists.
func ensureFIFO(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := unix.Mkfifo(path, 0o600); err != nil {
			return fmt.Errorf("failed to create named pipe %s: %w", path, err)
		}
		return nil
	case err != nil:
		return err
	case info.Mode()&fs.ModeNamedPipe == 0:
		return fmt.Errorf("%s exists and is not a named pipe", path)
	}
	return nil
}

// servePipe waits for a writer on the named pipe and hands the stream to
// handle until the writer closes it.
func servePipe(ctx context.Context, path string, handle func(context.Context, io.Reader) error) error {
	if err := ensureFIFO(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open named pipe %s: %w", path, err)
	}
	defer f.Close()
	return handle(ctx, f)
}
