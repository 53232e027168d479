package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// PlaybackConfig controls replay pacing.
type PlaybackConfig struct {
	Path string

	// Speed scales inter-record gaps: 2 replays twice as fast, 0 means
	// as fast as possible.
	Speed float64
}

// Clock allows deterministic playback in tests.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays a capture file in record order.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

// NewPlayback creates a playback engine for one capture file.
func NewPlayback(cfg PlaybackConfig) *Playback {
	return &Playback{cfg: cfg, clock: realClock{}}
}

// WithClock substitutes the pacing clock.
func (p *Playback) WithClock(c Clock) *Playback {
	p.clock = c
	return p
}

// Run streams records to handler, sleeping between records to reproduce
// the captured gaps. Malformed lines are counted and skipped.
func (p *Playback) Run(ctx context.Context, handler func(Record) error) error {
	f, err := os.Open(p.cfg.Path)
	if err != nil {
		return errors.Wrap(err, "open capture file").With("path", p.cfg.Path)
	}
	defer f.Close()

	var (
		scanner   = bufio.NewScanner(f)
		prevTs    int64
		replayed  int
		malformed int
	)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<22)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			malformed++
			continue
		}
		if prevTs > 0 && rec.Ts > prevTs {
			gap := time.Duration(rec.Ts - prevTs)
			if p.cfg.Speed > 0 {
				gap = time.Duration(float64(gap) / p.cfg.Speed)
			} else {
				gap = 0
			}
			if err := p.clock.Sleep(ctx, gap); err != nil {
				return err
			}
		}
		prevTs = rec.Ts

		if err := handler(rec); err != nil {
			return errors.Wrap(err, "replay record")
		}
		replayed++
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return errors.Wrap(err, "scan capture file")
	}

	logs.Infof("replayed %d records, %d malformed lines skipped", replayed, malformed)
	return nil
}
