// Package diaglog records notable vehicle events to an append-only text
// file. Callers never block: entries are queued and written by a single
// goroutine, so the lines of one entry are never split by another.
package diaglog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"drone-facade/internal/logger"
	"drone-facade/internal/types"
)

const (
	DefaultPath      = "log.log"
	DefaultQueueSize = 128

	timeLayout = "02.01.06 15:04:05"
)

type Options struct {
	// Path of the log file, relative to the working directory unless absolute.
	Path string

	// Console mirrors every entry to ConsoleWriter (stdout when nil).
	Console       bool
	ConsoleWriter io.Writer

	QueueSize int

	// OnDrop is called for each entry discarded on a full queue.
	OnDrop func()
}

type Sink struct {
	opts   Options
	logger *logger.Logger
	now    func() time.Time

	mu     sync.RWMutex // guards closed against sends on a closed queue
	closed bool
	queue  chan types.LogEntry
	done   chan struct{}
}

func New(opts Options, l *logger.Logger) *Sink {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Console && opts.ConsoleWriter == nil {
		opts.ConsoleWriter = os.Stdout
	}
	if l == nil {
		l = logger.NewLogger(nil, logger.LogLevelNone)
	}

	s := &Sink{
		opts:   opts,
		logger: l.WithTag("diag"),
		now:    time.Now,
		queue:  make(chan types.LogEntry, opts.QueueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Log schedules one entry. It returns immediately; an entry that does not
// fit in the queue is dropped.
func (s *Sink) Log(messages ...string) {
	entry := types.LogEntry{
		Time:     s.now(),
		Messages: append([]string(nil), messages...),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- entry:
	default:
		if s.opts.OnDrop != nil {
			s.opts.OnDrop()
		}
	}
}

// Close flushes queued entries and stops the writer.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)

	var file *os.File
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	for entry := range s.queue {
		data := Format(entry)

		if file == nil {
			f, err := os.OpenFile(s.opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				s.logger.Warnf("Failed to open %s: %v", s.opts.Path, err)
			} else {
				file = f
			}
		}

		if file != nil {
			if err := appendLocked(file, data); err != nil {
				s.logger.Warnf("Failed to append to %s: %v", s.opts.Path, err)
				file.Close()
				file = nil
			}
		}

		if s.opts.Console {
			if _, err := s.opts.ConsoleWriter.Write(data); err != nil {
				s.logger.Debugf("Console mirror failed: %v", err)
			}
		}
	}
}

// appendLocked writes data under an exclusive advisory lock so other
// processes appending to the same file cannot interleave with it.
func appendLocked(f *os.File, data []byte) error {
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	_, err := f.Write(data)
	return err
}

// Format renders an entry as a bracketed timestamp line followed by one
// quoted line per message.
func Format(e types.LogEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString("[")
	buf.WriteString(e.Time.Format(timeLayout))
	buf.WriteString("]\n")
	for _, msg := range e.Messages {
		buf.WriteString(`"`)
		buf.WriteString(msg)
		buf.WriteString("\"\n")
	}
	return buf.Bytes()
}
