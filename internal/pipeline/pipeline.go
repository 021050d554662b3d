// Package pipeline wires a backend command's standard streams to artifact
// payloads on disk. It owns the subprocess for the whole transfer: every
// exit path, success or failure, tears the other side down, and a dump never
// leaves a partial payload behind.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/kebairia/backhaul/internal/backend"
	"github.com/kebairia/backhaul/internal/catalog"
	"github.com/kebairia/backhaul/internal/command"
)

// ErrEmptyOutput indicates a dump subprocess that exited cleanly without
// producing a single byte. Treated as a failure: an unreachable database can
// hide behind a zero exit status.
var ErrEmptyOutput = errors.New("dump produced no output")

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// DumpToFile starts cmd on ex and streams its stdout into path, optionally
// through a zstd compressor. It returns the number of payload bytes the
// subprocess produced and the subprocess result. On any failure — transport
// error, I/O error, non-zero exit, or empty output — the file at path is
// removed before returning.
func DumpToFile(ctx context.Context, ex backend.Executor, cmd command.Command, path string, compress bool) (int64, backend.Result, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, backend.Result{}, fmt.Errorf("create %q: %w", path, err)
	}

	var zw *zstd.Encoder
	discard := func() {
		// Closing the encoder releases its worker goroutines.
		if zw != nil {
			zw.Close()
		}
		file.Close()
		os.Remove(path)
	}

	counter := &countingWriter{w: file}
	if compress {
		zw, err = zstd.NewWriter(file)
		if err != nil {
			discard()
			return 0, backend.Result{}, fmt.Errorf("compressor: %w", err)
		}
		counter.w = zw
	}

	res, err := backend.Run(ctx, ex, cmd, nil, counter)
	if err != nil {
		discard()
		return 0, backend.Result{}, err
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			discard()
			return 0, backend.Result{}, fmt.Errorf("flush compressor: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return 0, backend.Result{}, fmt.Errorf("close %q: %w", path, err)
	}

	if res.ExitCode != 0 {
		os.Remove(path)
		return 0, res, nil
	}
	if counter.n == 0 {
		os.Remove(path)
		return 0, res, ErrEmptyOutput
	}
	return counter.n, res, nil
}

// RestoreFromFile streams the payload at path into cmd's stdin on ex,
// decompressing transparently when the payload carries the compressed
// extension. The subprocess result is returned as-is; interpreting a
// non-zero exit is the caller's decision.
func RestoreFromFile(ctx context.Context, ex backend.Executor, cmd command.Command, path string) (backend.Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return backend.Result{}, fmt.Errorf("open %q: %w", path, err)
	}
	defer file.Close()

	var source io.Reader = file
	if strings.HasSuffix(path, catalog.CompressedExt) {
		zr, err := zstd.NewReader(file)
		if err != nil {
			return backend.Result{}, fmt.Errorf("decompressor: %w", err)
		}
		defer zr.Close()
		source = zr
	}

	return backend.Run(ctx, ex, cmd, source, nil)
}
