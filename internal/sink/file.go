package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"

	"logpipe/internal/record"
)

// FileSink appends rendered bytes to a log file, rotating by size and keeping
// a bounded set of numbered backups (app.log.1 is the newest). Backups can
// optionally be gzip-compressed.
type FileSink struct {
	path        string
	maxBytes    int64
	backupCount int
	compress    bool

	mu          sync.Mutex
	file        *os.File
	currentSize int64
	closed      bool
}

// NewFile opens (or creates) the log file, creating the directory if needed.
// A directory that cannot be created is a configuration error surfaced to
// the caller, never silently downgraded.
func NewFile(path string, maxBytes int64, backupCount int, compress bool) (*FileSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create log directory %s: %w", dir, err)
	}
	s := &FileSink{
		path:        path,
		maxBytes:    maxBytes,
		backupCount: backupCount,
		compress:    compress,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSink) open() error {
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open log file %s: %w", s.path, err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	s.file = file
	s.currentSize = fi.Size()
	return nil
}

func (s *FileSink) Write(rendered []byte, _ *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if s.maxBytes > 0 && s.currentSize+int64(len(rendered)) > s.maxBytes && s.currentSize > 0 {
		if err := s.rotate(); err != nil {
			return err
		}
	}
	n, err := s.file.Write(rendered)
	s.currentSize += int64(n)
	return err
}

// rotate shifts existing backups up one slot, moves the active file into
// slot 1 and reopens a fresh file. Called with the lock held.
func (s *FileSink) rotate() error {
	if err := s.file.Close(); err != nil {
		return err
	}

	if s.backupCount > 0 {
		ext := ""
		if s.compress {
			ext = ".gz"
		}
		_ = os.Remove(s.backupName(s.backupCount, ext))
		for i := s.backupCount - 1; i >= 1; i-- {
			src := s.backupName(i, ext)
			if _, err := os.Stat(src); err == nil {
				_ = os.Rename(src, s.backupName(i+1, ext))
			}
		}
		if s.compress {
			if err := gzipFile(s.path, s.backupName(1, ext)); err != nil {
				return err
			}
			_ = os.Remove(s.path)
		} else if err := os.Rename(s.path, s.backupName(1, "")); err != nil {
			return err
		}
	} else {
		// No backups kept: start the file over.
		_ = os.Remove(s.path)
	}

	return s.open()
}

func (s *FileSink) backupName(i int, ext string) string {
	return fmt.Sprintf("%s.%d%s", s.path, i, ext)
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Close syncs and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.file.Sync()
	return s.file.Close()
}

// Path returns the active file path, used by reload diagnostics and tests.
func (s *FileSink) Path() string {
	return s.path
}
