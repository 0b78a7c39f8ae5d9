// Package logger provides file writers used by the telemetry manager.
package logger

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CappedFile is an append-only log file that keeps roughly the last maxLines
// lines. Once twice the cap has been written the file is rewritten with only
// the most recent maxLines lines.
type CappedFile struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	maxLines int
	tail     [][]byte
	next     int
	written  int
}

// OpenCapped opens or creates path for appending. A maxLines of zero or less
// disables the cap.
func OpenCapped(path string, maxLines int) (*CappedFile, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	c := &CappedFile{path: path, file: file, maxLines: maxLines}
	if maxLines > 0 {
		c.tail = make([][]byte, 0, maxLines)
	}
	return c, nil
}

// Write implements io.Writer.
func (c *CappedFile) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.file.Write(p)
	if err != nil || c.maxLines <= 0 {
		return n, err
	}

	for line := range bytes.SplitSeq(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		c.remember(bytes.Clone(line))

		if c.written >= c.maxLines*2 {
			if err := c.compact(); err != nil {
				return n, fmt.Errorf("failed to compact log file: %w", err)
			}
			c.written = len(c.tail)
		}
	}
	return n, nil
}

// Sync implements zapcore.WriteSyncer.
func (c *CappedFile) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file.Sync()
}

// Close closes the underlying file.
func (c *CappedFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file.Close()
}

func (c *CappedFile) remember(line []byte) {
	if len(c.tail) < c.maxLines {
		c.tail = append(c.tail, line)
	} else {
		c.tail[c.next] = line
	}
	c.next = (c.next + 1) % c.maxLines
	c.written++
}

// lines returns the remembered lines oldest first.
func (c *CappedFile) lines() [][]byte {
	if len(c.tail) < c.maxLines {
		return c.tail
	}
	out := make([][]byte, 0, len(c.tail))
	out = append(out, c.tail[c.next:]...)
	return append(out, c.tail[:c.next]...)
}

// compact replaces the file with the remembered tail through a temp file.
func (c *CappedFile) compact() error {
	temp, err := os.CreateTemp(filepath.Dir(c.path), ".compact-*")
	if err != nil {
		return err
	}
	tempPath := temp.Name()

	var buf bytes.Buffer
	for _, line := range c.lines() {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if _, err := temp.Write(buf.Bytes()); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return err
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	c.file.Close()
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return err
	}

	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	c.file = file
	return nil
}
