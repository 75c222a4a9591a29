package net

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultQueueSize is the capacity of the queue between the line reader
	// and the dispatcher.
	DefaultQueueSize = 10

	bufSize = 64 * 1024
)

/*
StreamTransport reads newline-delimited JSON envelopes from an io.Reader and
writes envelopes, one per line, to an io.Writer. In production the reader is
stdin and the writer is stdout.

Inbound lines are parsed in order and pushed onto a bounded channel; a full
channel blocks the reader, which is the only backpressure mechanism. Lines
that cannot be parsed are logged and dropped.

Outbound envelopes are serialised by a mutex, terminated by a newline and
flushed immediately.
*/
type StreamTransport struct {
	logger *logrus.Entry

	r *bufio.Reader

	w     *bufio.Writer
	wLock sync.Mutex

	consumeCh chan *Envelope

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewStreamTransport creates a StreamTransport over r and w. queueSize bounds
// the number of parsed envelopes waiting for dispatch.
func NewStreamTransport(
	r io.Reader,
	w io.Writer,
	queueSize int,
	logger *logrus.Entry,
) *StreamTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &StreamTransport{
		logger:     logger,
		r:          bufio.NewReaderSize(r, bufSize),
		w:          bufio.NewWriterSize(w, bufSize),
		consumeCh:  make(chan *Envelope, queueSize),
		shutdownCh: make(chan struct{}),
	}
}

// Consumer implements the Transport interface.
func (t *StreamTransport) Consumer() <-chan *Envelope {
	return t.consumeCh
}

// IsShutdown is used to check if the transport is shutdown.
func (t *StreamTransport) IsShutdown() bool {
	select {
	case <-t.shutdownCh:
		return true
	default:
		return false
	}
}

// Close is used to stop the transport. It does not close the underlying
// reader, so a Listen blocked on a read only returns once that read does.
func (t *StreamTransport) Close() error {
	t.shutdownLock.Lock()
	defer t.shutdownLock.Unlock()

	if !t.shutdown {
		close(t.shutdownCh)
		t.shutdown = true
	}
	return nil
}

// Listen implements the Transport interface. io.EOF is a clean end of input
// and is reported as nil.
func (t *StreamTransport) Listen() error {
	for {
		line, err := t.r.ReadBytes('\n')

		if len(bytes.TrimSpace(line)) > 0 {
			if qErr := t.handleLine(line); qErr != nil {
				return nil
			}
		}

		if err != nil {
			if err == io.EOF {
				t.logger.Debug("Input closed")
				return nil
			}
			if t.IsShutdown() {
				return nil
			}
			t.logger.WithError(err).Error("Failed to read input")
			return err
		}

		if t.IsShutdown() {
			return nil
		}
	}
}

// handleLine parses a line and queues it. It only returns an error when the
// transport was shut down while waiting for room in the queue.
func (t *StreamTransport) handleLine(line []byte) error {
	t.logger.WithField("line", string(bytes.TrimSpace(line))).Debug("Received")

	env, err := ParseEnvelope(line)
	if err != nil {
		t.logger.WithError(err).Error("Dropping line")
		return nil
	}

	select {
	case t.consumeCh <- env:
		return nil
	case <-t.shutdownCh:
		return ErrTransportShutdown
	}
}

// Send implements the Transport interface.
func (t *StreamTransport) Send(env *Envelope) error {
	if t.IsShutdown() {
		return ErrTransportShutdown
	}

	data, err := env.Marshal()
	if err != nil {
		return err
	}

	t.wLock.Lock()
	defer t.wLock.Unlock()

	if _, err := t.w.Write(data); err != nil {
		return err
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := t.w.Flush(); err != nil {
		return err
	}

	t.logger.WithField("envelope", string(data)).Debug("Sent")

	return nil
}
