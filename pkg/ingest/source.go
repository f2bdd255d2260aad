package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultChunkSize is how much of the log ReverseFileSource reads per step
const DefaultChunkSize = 64 * 1024

// LogSource yields the occupancy log newest line first.
type LogSource interface {
	Open(ctx context.Context) (LineReader, error)
}

// LineReader returns lines until io.EOF.
type LineReader interface {
	Next() (string, error)
	Close() error
}

// ReverseFileSource reads an append-only log file from its end. Only the
// tail up to the cursor is ever read.
type ReverseFileSource struct {
	Path      string
	ChunkSize int
}

// Open opens the file and positions at its end
func (s ReverseFileSource) Open(ctx context.Context) (LineReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	chunk := s.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return &reverseReader{f: f, offset: info.Size(), chunk: chunk}, nil
}

// reverseReader walks a file backwards in fixed-size chunks
type reverseReader struct {
	f      *os.File
	offset int64    // bytes before this position are unread
	carry  []byte   // head of a line whose start lies in an unread chunk
	lines  [][]byte // complete lines from the last chunk, file order
	chunk  int
}

func (r *reverseReader) Next() (string, error) {
	for len(r.lines) == 0 {
		if r.offset == 0 {
			return "", io.EOF
		}
		if err := r.fill(); err != nil {
			return "", err
		}
	}

	last := r.lines[len(r.lines)-1]
	r.lines = r.lines[:len(r.lines)-1]
	return string(bytes.TrimSuffix(last, []byte{'\r'})), nil
}

func (r *reverseReader) fill() error {
	n := int64(r.chunk)
	if n > r.offset {
		n = r.offset
	}
	r.offset -= n

	data := make([]byte, n, n+int64(len(r.carry)))
	read, err := r.f.ReadAt(data, r.offset)
	if err != nil && !(errors.Is(err, io.EOF) && int64(read) == n) {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	data = append(data, r.carry...)

	parts := bytes.Split(data, []byte{'\n'})
	if r.offset > 0 {
		// The first part may continue into the previous chunk.
		r.carry = parts[0]
		parts = parts[1:]
	} else {
		r.carry = nil
	}
	r.lines = parts
	return nil
}

func (r *reverseReader) Close() error {
	return r.f.Close()
}

// Lines is an in-memory log, oldest line first, read newest first.
type Lines []string

// Open returns a reader over a snapshot of the lines
func (l Lines) Open(ctx context.Context) (LineReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &sliceReader{lines: append([]string(nil), l...)}, nil
}

type sliceReader struct {
	lines []string
}

func (r *sliceReader) Next() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	last := r.lines[len(r.lines)-1]
	r.lines = r.lines[:len(r.lines)-1]
	return last, nil
}

func (r *sliceReader) Close() error { return nil }
