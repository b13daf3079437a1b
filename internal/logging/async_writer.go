package logging

import (
	"io"
	"sync"
	"time"

	"github.com/worktrack/worktrack/internal/config"
)

// AsyncWriter hands writes to a background goroutine that writes them to
// the underlying writer in batches. Write blocks only when the buffer is
// full. Close drains the buffer; it does not close the underlying writer.
type AsyncWriter struct {
	w         io.Writer
	entries   chan []byte
	flushReqs chan chan struct{}
	batchSize int
	interval  time.Duration

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

// NewAsyncWriter starts the write loop. Zero values in cfg are not
// defaulted here; the logging config fills them.
func NewAsyncWriter(w io.Writer, cfg config.AsyncConfig) *AsyncWriter {
	aw := &AsyncWriter{
		w:         w,
		entries:   make(chan []byte, cfg.BufferSize),
		flushReqs: make(chan chan struct{}),
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go aw.loop()
	return aw
}

// Write queues a copy of p.
func (aw *AsyncWriter) Write(p []byte) (int, error) {
	aw.mu.RLock()
	defer aw.mu.RUnlock()
	if aw.closed {
		return 0, io.ErrClosedPipe
	}
	aw.entries <- append([]byte(nil), p...)
	return len(p), nil
}

// Flush returns once everything queued before the call has been written.
func (aw *AsyncWriter) Flush() error {
	aw.mu.RLock()
	if aw.closed {
		aw.mu.RUnlock()
		return nil
	}
	ack := make(chan struct{})
	aw.flushReqs <- ack
	aw.mu.RUnlock()
	<-ack
	return nil
}

// Close writes everything still queued and stops the loop.
func (aw *AsyncWriter) Close() error {
	aw.mu.Lock()
	if aw.closed {
		aw.mu.Unlock()
		return nil
	}
	aw.closed = true
	close(aw.stop)
	aw.mu.Unlock()

	<-aw.done
	return nil
}

func (aw *AsyncWriter) loop() {
	defer close(aw.done)
	ticker := time.NewTicker(aw.interval)
	defer ticker.Stop()

	batch := make([][]byte, 0, aw.batchSize)
	for {
		select {
		case p := <-aw.entries:
			batch = append(batch, p)
			if len(batch) >= aw.batchSize {
				batch = aw.write(batch)
			}
		case <-ticker.C:
			batch = aw.write(batch)
		case ack := <-aw.flushReqs:
			batch = aw.write(aw.drain(batch))
			close(ack)
		case <-aw.stop:
			aw.write(aw.drain(batch))
			return
		}
	}
}

// drain moves everything already queued into batch.
func (aw *AsyncWriter) drain(batch [][]byte) [][]byte {
	for {
		select {
		case p := <-aw.entries:
			batch = append(batch, p)
		default:
			return batch
		}
	}
}

func (aw *AsyncWriter) write(batch [][]byte) [][]byte {
	for _, p := range batch {
		_, _ = aw.w.Write(p)
	}
	return batch[:0]
}
