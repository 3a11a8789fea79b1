//go:build unix

package main

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureFIFO(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slicer.pipe")

	require.NoError(t, ensureFIFO(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&fs.ModeNamedPipe)

	// An existing pipe is reused.
	assert.NoError(t, ensureFIFO(path))

	regular := filepath.Join(dir, "regular")
	require.NoError(t, os.WriteFile(regular, nil, 0o600))
	assert.Error(t, ensureFIFO(regular))
}

func TestServePipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slicer.pipe")
	require.NoError(t, ensureFIFO(path))

	go func() {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return
		}
		_, _ = f.WriteString("one two\nthree\n")
		_ = f.Close()
	}()

	var out bytes.Buffer
	s, err := (&sliceFlags{maxTokens: 4, encoding: "words", separators: "text"}).slicer(testConfig())
	require.NoError(t, err)
	d := &daemon{slicer: s, out: &out, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, servePipe(context.Background(), path, d.run))
	assert.Equal(t, 2, bytes.Count(out.Bytes(), []byte("\n")))
}
