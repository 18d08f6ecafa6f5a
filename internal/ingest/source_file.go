package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gapscan/pkg/exception"

	"github.com/fsnotify/fsnotify"
	"github.com/yanun0323/logs"
)

// FileConfig controls the file tail source.
type FileConfig struct {
	Path string
	// Follow keeps waiting for appended lines at end of file.
	Follow bool
	// DisableNotify falls back to plain polling even when fsnotify is available.
	DisableNotify bool
}

// FileSource tails a line-delimited file. It is not safe for concurrent use.
type FileSource struct {
	cfg     FileConfig
	file    *os.File
	reader  *bufio.Reader
	offset  int64
	partial []byte
	watcher *fsnotify.Watcher
	rotated bool
	closed  bool
}

// NewFileSource creates a file source. The file is opened on the first Next.
func NewFileSource(cfg FileConfig) *FileSource {
	return &FileSource{cfg: cfg}
}

// Next returns the next complete line.
func (s *FileSource) Next(ctx context.Context) ([]byte, error) {
	if s.closed {
		return nil, exception.ErrSourceClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.file == nil {
		if err := s.open(); err != nil {
			return nil, err
		}
	}
	chunk, err := s.reader.ReadBytes('\n')
	s.offset += int64(len(chunk))
	if err == nil {
		if len(s.partial) == 0 {
			return chunk, nil
		}
		line := append(s.partial, chunk...)
		s.partial = nil
		return line, nil
	}
	if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", s.cfg.Path, err)
	}

	// an unterminated tail stays buffered until its newline arrives
	s.partial = append(s.partial, chunk...)
	if !s.cfg.Follow {
		if len(s.partial) > 0 {
			line := s.partial
			s.partial = nil
			return line, nil
		}
		return nil, io.EOF
	}

	if s.rotated {
		// the old file is drained, continue with the new one
		if len(s.partial) > 0 {
			line := s.partial
			s.partial = nil
			return line, nil
		}
		if err := s.reopen(); err != nil {
			return nil, err
		}
		return s.Next(ctx)
	}
	if err := s.checkTruncated(); err != nil {
		return nil, err
	}
	return nil, exception.ErrNoData
}

// Wait blocks until the file is written, rotated, or d passes.
func (s *FileSource) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		var (
			events <-chan fsnotify.Event
			errs   <-chan error
		)
		if s.watcher != nil {
			events = s.watcher.Events
			errs = s.watcher.Errors
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case ev, ok := <-events:
			if !ok {
				s.watcher = nil
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				s.rotated = true
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				s.watcher = nil
				continue
			}
			logs.Warnf("file watcher %s, err: %+v", s.cfg.Path, err)
		}
	}
}

// Close releases the file and the watcher.
func (s *FileSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.watcher != nil {
		_ = s.watcher.Close()
		s.watcher = nil
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *FileSource) open() error {
	file, err := os.Open(s.cfg.Path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", exception.ErrSourceUnavailable, s.cfg.Path, err)
	}
	s.file = file
	s.reader = bufio.NewReader(file)
	s.offset = 0
	s.partial = nil

	if s.cfg.Follow && !s.cfg.DisableNotify && s.watcher == nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logs.Warnf("file watcher unavailable, polling %s, err: %+v", s.cfg.Path, err)
			return nil
		}
		if err := watcher.Add(s.cfg.Path); err != nil {
			_ = watcher.Close()
			logs.Warnf("watch %s failed, polling instead, err: %+v", s.cfg.Path, err)
			return nil
		}
		s.watcher = watcher
	}
	return nil
}

// reopen switches to the file now living at the path after a rotation.
// Until it exists the source reports no data.
func (s *FileSource) reopen() error {
	file, err := os.Open(s.cfg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exception.ErrNoData
		}
		return fmt.Errorf("reopen %s: %w", s.cfg.Path, err)
	}
	_ = s.file.Close()
	s.file = file
	s.reader.Reset(file)
	s.offset = 0
	s.rotated = false

	if s.watcher != nil {
		_ = s.watcher.Remove(s.cfg.Path)
		if err := s.watcher.Add(s.cfg.Path); err != nil {
			logs.Warnf("rewatch %s failed, err: %+v", s.cfg.Path, err)
		}
	}
	logs.Infof("file source reopened after rotation: %s", s.cfg.Path)
	return nil
}

func (s *FileSource) checkTruncated() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.cfg.Path, err)
	}
	if info.Size() >= s.offset {
		return nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", s.cfg.Path, err)
	}
	s.reader.Reset(s.file)
	s.offset = 0
	s.partial = nil
	logs.Warnf("file source truncated, rewinding: %s", s.cfg.Path)
	return nil
}
