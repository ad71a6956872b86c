package lua

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/groutine"
)

// DefaultOutputBufferSize is the number of print records kept before the oldest are overwritten
const DefaultOutputBufferSize uint32 = 1024

// OutputRecord is a single line produced by a script
type OutputRecord struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // "stdout" or "stderr"
}

// output buffers script output in an overlapped ring and forwards it to writers
// from a single drainer goroutine, so a slow terminal never blocks the script.
type output struct {
	buffer      mpmc.RichOverlappedRingBuffer[OutputRecord]
	wake        chan struct{}
	stdout      io.Writer
	stderr      io.Writer
	logger      *logrus.Logger
	overwritten atomic.Int64
}

func newOutput(size uint32, stdout, stderr io.Writer, logger *logrus.Logger) *output {
	if size == 0 {
		size = DefaultOutputBufferSize
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &output{
		buffer: mpmc.NewOverlappedRingBuffer[OutputRecord](size),
		wake:   make(chan struct{}, 1),
		stdout: stdout,
		stderr: stderr,
		logger: logger,
	}
}

func (o *output) send(source, content string) {
	overwrites, err := o.buffer.EnqueueM(OutputRecord{
		Content:   content,
		Timestamp: time.Now(),
		Source:    source,
	})
	if err != nil {
		o.logger.WithError(err).Warn("Dropped script output record")
		return
	}
	if overwrites > 0 {
		o.overwritten.Add(int64(overwrites))
	}

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// start runs the drainer until the returned stop function is called. stop flushes
// everything still buffered before returning.
func (o *output) start(ctx context.Context) (stop func()) {
	quit := make(chan struct{})
	done := groutine.Go(ctx, "lua-output-drainer", func(ctx context.Context) {
		for {
			select {
			case <-quit:
				return
			case <-o.wake:
				o.flush()
			}
		}
	})

	return func() {
		close(quit)
		<-done
		o.flush()
		if lost := o.overwritten.Swap(0); lost > 0 {
			o.logger.WithField("records", lost).Warn("Script output overflowed, oldest lines were dropped")
		}
	}
}

func (o *output) flush() {
	for !o.buffer.IsEmpty() {
		rec, err := o.buffer.Dequeue()
		if err != nil {
			return
		}

		w := o.stdout
		if rec.Source == "stderr" {
			w = o.stderr
		}
		if _, err := fmt.Fprint(w, rec.Content); err != nil {
			o.logger.WithError(err).WithField("source", rec.Source).Debug("Failed to write script output")
		}
	}
}
