package recorder

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var ErrWriterClosed = errors.New("recorder writer closed")

// WriterConfig controls the capture file location and queue sizing.
type WriterConfig struct {
	Dir       string
	Prefix    string
	QueueSize int
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.Prefix == "" {
		c.Prefix = "session"
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 4096
	}
	return c
}

// Writer appends records to a session file from a buffered queue. Append
// never blocks the caller; records are dropped with a counter when the
// queue is full.
type Writer struct {
	cfg WriterConfig
	ch  chan Record
	wg  sync.WaitGroup

	closed  uint32
	dropped atomic.Uint64

	path string
}

// NewWriter opens a new session file named by start time and begins the
// writer loop.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create recorder dir")
	}
	name := cfg.Prefix + "-" + time.Now().UTC().Format("20060102-150405") + ".jsonl"
	path := filepath.Join(cfg.Dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open recorder file").With("path", path)
	}

	w := &Writer{
		cfg:  cfg,
		ch:   make(chan Record, cfg.QueueSize),
		path: path,
	}
	w.wg.Add(1)
	go w.run(f)
	return w, nil
}

// Path is the session file being written.
func (w *Writer) Path() string { return w.path }

// Dropped reports how many records the full queue discarded.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

// Append enqueues one record. Safe for concurrent use.
func (w *Writer) Append(rec Record) error {
	if atomic.LoadUint32(&w.closed) == 1 {
		return ErrWriterClosed
	}
	select {
	case w.ch <- rec:
	default:
		w.dropped.Add(1)
	}
	return nil
}

// Close drains the queue, flushes, and closes the file.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return nil
}

func (w *Writer) run(f *os.File) {
	defer w.wg.Done()
	defer f.Close()

	bw := bufio.NewWriter(f)
	defer bw.Flush()
	enc := json.NewEncoder(bw)

	flush := time.NewTicker(time.Second)
	defer flush.Stop()

	for {
		select {
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			if err := enc.Encode(rec); err != nil {
				logs.Errorf("write capture record, err: %+v", err)
				return
			}
		case <-flush.C:
			if err := bw.Flush(); err != nil {
				logs.Errorf("flush capture file, err: %+v", err)
				return
			}
		}
	}
}
