package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errSinkClosed = errors.New("logger: sink closed")

// asyncSink fans lines out to buffered writers from a single goroutine.
type asyncSink struct {
	queue   chan []byte
	flushes chan chan error
	done    chan struct{}

	gate   sync.RWMutex
	closed bool

	mu      sync.Mutex
	writers []*bufio.Writer
	err     error
}

func newAsyncSink(outputs []io.Writer, bufSize int) *asyncSink {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	s := &asyncSink{
		queue:   make(chan []byte, 256),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	for _, w := range outputs {
		if w != nil {
			s.writers = append(s.writers, bufio.NewWriterSize(w, bufSize))
		}
	}
	go s.loop()
	return s
}

func (s *asyncSink) loop() {
	defer close(s.done)
	for {
		select {
		case line, ok := <-s.queue:
			if !ok {
				_ = s.flush()
				return
			}
			s.write(line)
		case ack := <-s.flushes:
			s.drain()
			ack <- s.flush()
		}
	}
}

func (s *asyncSink) drain() {
	for {
		select {
		case line, ok := <-s.queue:
			if !ok {
				return
			}
			s.write(line)
		default:
			return
		}
	}
}

// Write copies p and queues it; it blocks when the queue is full.
func (s *asyncSink) Write(p []byte) error {
	if err := s.lastErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	s.gate.RLock()
	defer s.gate.RUnlock()
	if s.closed {
		return errSinkClosed
	}
	s.queue <- append([]byte(nil), p...)
	return nil
}

// Flush waits until every queued line reached the writers.
func (s *asyncSink) Flush() error {
	ack := make(chan error, 1)
	select {
	case s.flushes <- ack:
		return <-ack
	case <-s.done:
		return s.lastErr()
	}
}

// Close drains the queue and returns the first write error.
func (s *asyncSink) Close() error {
	s.gate.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.gate.Unlock()
	<-s.done
	return s.lastErr()
}

func (s *asyncSink) write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.writers {
		if _, err := w.Write(p); err != nil && s.err == nil {
			s.err = err
		}
		if err := w.Flush(); err != nil && s.err == nil {
			s.err = err
		}
	}
}

func (s *asyncSink) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, w := range s.writers {
		errs = append(errs, w.Flush())
	}
	return errors.Join(errs...)
}

func (s *asyncSink) lastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
