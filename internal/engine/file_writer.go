package engine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/datallboy/execlogs/internal/domain"
)

const sinkBufferSize = 64 * 1024

// FileWriter hands out destination files and guarantees that no path is
// owned by two sinks at once.
type FileWriter struct {
	mu       sync.Mutex
	open     map[string]struct{}
	openFile func(path string) (*os.File, error)
}

func NewFileWriter() *FileWriter {
	return &FileWriter{
		open:     make(map[string]struct{}),
		openFile: createFile,
	}
}

func createFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
}

// Open creates or truncates path and returns a buffered sink that owns it
// until Close. It fails with domain.ErrSinkBusy while another sink holds path.
func (fw *FileWriter) Open(path string) (*Sink, error) {
	key, err := fw.acquire(path)
	if err != nil {
		return nil, err
	}

	f, err := fw.openFile(path)
	if err != nil {
		fw.release(key)
		return nil, fmt.Errorf("could not open destination file: %w", err)
	}

	return &Sink{
		fw:   fw,
		key:  key,
		path: path,
		file: f,
		buf:  bufio.NewWriterSize(f, sinkBufferSize),
	}, nil
}

// CreateEmpty leaves an empty file at path.
func (fw *FileWriter) CreateEmpty(path string) error {
	s, err := fw.Open(path)
	if err != nil {
		return err
	}
	return s.Close()
}

// OpenCount reports how many sinks are currently open.
func (fw *FileWriter) OpenCount() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return len(fw.open)
}

func (fw *FileWriter) acquire(path string) (string, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, busy := fw.open[key]; busy {
		return "", fmt.Errorf("%s: %w", path, domain.ErrSinkBusy)
	}
	fw.open[key] = struct{}{}
	return key, nil
}

func (fw *FileWriter) release(key string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	delete(fw.open, key)
}

// Sink appends to one destination file. It is not safe for concurrent use;
// a stream writes its pages strictly in order.
type Sink struct {
	fw      *FileWriter
	key     string
	path    string
	file    *os.File
	buf     *bufio.Writer
	written int64
	closed  bool
}

func (s *Sink) Path() string { return s.path }

// Written is the number of bytes accepted so far.
func (s *Sink) Written() int64 { return s.written }

func (s *Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	n, err := s.buf.Write(p)
	s.written += int64(n)
	return n, err
}

func (s *Sink) WriteString(str string) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	n, err := s.buf.WriteString(str)
	s.written += int64(n)
	return n, err
}

// Close flushes, syncs and closes the file and gives the path back to the
// FileWriter. Only the first call does any work.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.fw.release(s.key)

	flushErr := s.buf.Flush()
	syncErr := s.file.Sync()
	closeErr := s.file.Close()

	switch {
	case flushErr != nil:
		return flushErr
	case syncErr != nil:
		return syncErr
	default:
		return closeErr
	}
}
